package get

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

type BufferResolver interface {
	EffectiveBuffer(ctx context.Context, orgID string, serviceID *string) (*api.BufferResponse, error)
}

type Response struct {
	response.Response
	Buffer api.BufferResponse `json:"buffer,omitempty"`
}

func New(log *slog.Logger, resolver BufferResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.buffers.get.New"

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

		var serviceID *string
		if sid := r.URL.Query().Get("service_id"); sid != "" {
			serviceID = &sid
		}

		buffer, err := resolver.EffectiveBuffer(r.Context(), orgID, serviceID)
		if err != nil {
			log.Error("Failed to resolve effective buffer", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to resolve effective buffer"))
			return
		}

		log.Info("Effective buffer resolved", slog.Any("buffer", buffer))

		render.JSON(w, r, Response{
			Buffer: *buffer,
		})
	}
}
