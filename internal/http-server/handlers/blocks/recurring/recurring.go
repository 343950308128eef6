package recurring

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

type RecurringBlockCreator interface {
	CreateWeeklyRecurringBlock(ctx context.Context, req *api.RecurringBlockRequest) (*api.AvailabilityBlockResponse, error)
}

type Request struct {
	api.RecurringBlockRequest
}

type Response struct {
	response.Response
	Block api.AvailabilityBlockResponse `json:"availability_block,omitempty"`
}

func New(log *slog.Logger, creator RecurringBlockCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.recurring.New"

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

		if err := validator.New().Struct(req.RecurringBlockRequest); err != nil {
			var validateErr validator.ValidationErrors
			errors.As(err, &validateErr)

			log.Error("Invalid request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}

		block, err := creator.CreateWeeklyRecurringBlock(r.Context(), &req.RecurringBlockRequest)

		if errors.Is(err, response.ErrValidation) {
			log.Error("Validation failed", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), err.Error()))
			return
		}

		if err != nil {
			log.Error("Failed to create recurring block", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to create recurring block"))
			return
		}

		log.Info("Weekly recurring block created", slog.Any("block", block))

		w.WriteHeader(http.StatusCreated)
		responseOK(w, r, block)
	}
}

func responseOK(w http.ResponseWriter, r *http.Request, block *api.AvailabilityBlockResponse) {
	render.JSON(w, r, Response{
		Block: *block,
	})
}
