package delete

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"studio-schedule-service/pkg/response"
	"studio-schedule-service/pkg/sl"
)

type BlockDeleter interface {
	DeleteBlock(ctx context.Context, orgID, id string) error
}

func New(log *slog.Logger, deleter BlockDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.delete.New"

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

		err := deleter.DeleteBlock(r.Context(), orgID, id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("availability block not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "availability block not found"))
			return
		}

		if err != nil {
			log.Error("Failed to delete availability block", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to delete availability block"))
			return
		}

		log.Info("Availability block deleted", slog.String("id", id))

		w.WriteHeader(http.StatusNoContent)
	}
}
