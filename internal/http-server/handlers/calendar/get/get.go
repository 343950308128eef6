package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"studio-schedule-service/api"
	"studio-schedule-service/pkg/response"
	"studio-schedule-service/pkg/sl"
)

type CalendarMaterializer interface {
	MonthCalendar(ctx context.Context, orgID string, year, month int) (*api.CalendarResponse, error)
}

type Response struct {
	response.Response
	Calendar api.CalendarResponse `json:"calendar,omitempty"`
}

func New(log *slog.Logger, materializer CalendarMaterializer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.calendar.get.New"

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

		year, err := strconv.Atoi(r.URL.Query().Get("year"))
		if err != nil {
			log.Error("Invalid year", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid year"))
			return
		}

		month, err := strconv.Atoi(r.URL.Query().Get("month"))
		if err != nil {
			log.Error("Invalid month", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid month"))
			return
		}

		cal, err := materializer.MonthCalendar(r.Context(), orgID, year, month)

		if errors.Is(err, response.ErrValidation) {
			log.Error("Validation failed", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), err.Error()))
			return
		}

		if err != nil {
			log.Error("Failed to materialize calendar", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to materialize calendar"))
			return
		}

		log.Info("Calendar materialized",
			slog.Int("year", year),
			slog.Int("month", month),
			slog.Int("days", len(cal.Days)),
		)

		render.JSON(w, r, Response{
			Calendar: *cal,
		})
	}
}
