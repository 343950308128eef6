package list

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"studio-schedule-service/api"
	"studio-schedule-service/pkg/response"
	"studio-schedule-service/pkg/sl"
)

type BlockLister interface {
	ListBlocks(ctx context.Context, orgID string, from, to time.Time) ([]*api.AvailabilityBlockResponse, error)
}

type Response struct {
	response.Response
	Blocks []*api.AvailabilityBlockResponse `json:"availability_blocks"`
}

func New(log *slog.Logger, lister BlockLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.list.New"

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

		from, err := parseTime(r.URL.Query().Get("from"))
		if err != nil {
			log.Error("Invalid from", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid from"))
			return
		}

		to, err := parseTime(r.URL.Query().Get("to"))
		if err != nil {
			log.Error("Invalid to", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid to"))
			return
		}

		if from.IsZero() {
			from = time.Now()
		}
		if to.IsZero() {
			to = from.AddDate(0, 0, 90)
		}

		blocks, err := lister.ListBlocks(r.Context(), orgID, from, to)
		if err != nil {
			log.Error("Failed to list availability blocks", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list availability blocks"))
			return
		}

		log.Info("Availability blocks listed", slog.Int("count", len(blocks)))

		render.JSON(w, r, Response{
			Blocks: blocks,
		})
	}
}

// parseTime accepts RFC3339 or a plain date. An empty value yields the
// zero time; the handler substitutes a 90-day window from now.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
