package sync

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"studio-schedule-service/api"
	"studio-schedule-service/pkg/response"
	"studio-schedule-service/pkg/sl"
)

type SyncToggler interface {
	SetIntegrationSync(ctx context.Context, orgID, id string, enabled bool) error
}

type Request struct {
	api.IntegrationSyncRequest
}

func New(log *slog.Logger, toggler SyncToggler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.integrations.sync.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		orgID := r.URL.Query().Get("org_id")

		if id == "" || orgID == "" {
			log.Error("id or org_id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "id and org_id are required"))
			return
		}

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		err := toggler.SetIntegrationSync(r.Context(), orgID, id, req.Enabled)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("calendar integration not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "calendar integration not found"))
			return
		}

		if err != nil {
			log.Error("Failed to toggle sync", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to toggle sync"))
			return
		}

		log.Info("Sync toggled", slog.String("id", id), slog.Bool("enabled", req.Enabled))

		w.WriteHeader(http.StatusNoContent)
	}
}
