package get

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

type BlockGetter interface {
	GetBlock(ctx context.Context, orgID, id string) (*api.AvailabilityBlockResponse, error)
}

type Response struct {
	response.Response
	Block api.AvailabilityBlockResponse `json:"availability_block,omitempty"`
}

func New(log *slog.Logger, getter BlockGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.get.New"

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

		block, err := getter.GetBlock(r.Context(), orgID, id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("availability block not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "availability block not found"))
			return
		}

		if err != nil {
			log.Error("Failed to get availability block", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get availability block"))
			return
		}

		render.JSON(w, r, Response{
			Block: *block,
		})
	}
}
