package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"studio-schedule-service/api"
	"studio-schedule-service/pkg/response"
	"studio-schedule-service/pkg/sl"
)

type IntegrationLister interface {
	ListIntegrations(ctx context.Context, orgID string) ([]*api.IntegrationResponse, error)
}

type Response struct {
	response.Response
	Integrations []*api.IntegrationResponse `json:"calendar_integrations"`
}

func New(log *slog.Logger, lister IntegrationLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.integrations.list.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		orgID := r.URL.Query().Get("org_id")
		if orgID == "" {
			log.Error("org_id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "org_id is required"))
			return
		}

		integrations, err := lister.ListIntegrations(r.Context(), orgID)
		if err != nil {
			log.Error("Failed to list calendar integrations", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list calendar integrations"))
			return
		}

		log.Info("Calendar integrations listed", slog.Int("count", len(integrations)))

		render.JSON(w, r, Response{
			Integrations: integrations,
		})
	}
}
