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

type BookingLister interface {
	ListBookings(ctx context.Context, orgID string, from, to *time.Time, status *string) ([]*api.BookingResponse, error)
}

type Response struct {
	response.Response
	Bookings []*api.BookingResponse `json:"bookings"`
}

func New(log *slog.Logger, lister BookingLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.list.New"

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

		var from, to *time.Time
		if s := r.URL.Query().Get("from"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				log.Error("Invalid from", sl.Err(err))
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid from"))
				return
			}
			from = &t
		}
		if s := r.URL.Query().Get("to"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				log.Error("Invalid to", sl.Err(err))
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid to"))
				return
			}
			to = &t
		}

		var status *string
		if s := r.URL.Query().Get("status"); s != "" {
			status = &s
		}

		bookings, err := lister.ListBookings(r.Context(), orgID, from, to, status)
		if err != nil {
			log.Error("Failed to list bookings", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list bookings"))
			return
		}

		log.Info("Bookings listed", slog.Int("count", len(bookings)))

		render.JSON(w, r, Response{
			Bookings: bookings,
		})
	}
}
