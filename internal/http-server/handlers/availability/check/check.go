package check

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"studio-schedule-service/api"
	"studio-schedule-service/pkg/response"
	"studio-schedule-service/pkg/sl"
)

type SlotChecker interface {
	CheckSlot(ctx context.Context, req *api.SlotCheckRequest) (*api.SlotCheckResponse, error)
}

type Request struct {
	api.SlotCheckRequest
}

type Response struct {
	response.Response
	Decision api.SlotCheckResponse `json:"decision"`
}

func New(log *slog.Logger, checker SlotChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.check.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		log.Info("Request body decoded", slog.Any("request", req))

		if err := validator.New().Struct(req.SlotCheckRequest); err != nil {
			var validateErr validator.ValidationErrors
			errors.As(err, &validateErr)

			log.Error("Invalid request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}

		decision, err := checker.CheckSlot(r.Context(), &req.SlotCheckRequest)

		if errors.Is(err, response.ErrValidation) {
			log.Error("Validation failed", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), err.Error()))
			return
		}

		if err != nil {
			log.Error("Failed to check slot", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to check slot"))
			return
		}

		// A declined slot is a regular 200 response: the reason is data
		// for the caller, not a server failure.
		log.Info("Slot checked",
			slog.Bool("available", decision.Available),
			slog.String("reason", decision.Reason),
		)

		render.JSON(w, r, Response{
			Decision: *decision,
		})
	}
}
