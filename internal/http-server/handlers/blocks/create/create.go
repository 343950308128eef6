package create

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

type BlockCreator interface {
	CreateBlock(ctx context.Context, req *api.AvailabilityBlockRequest) (*api.AvailabilityBlockResponse, error)
}

type Request struct {
	api.AvailabilityBlockRequest
}

type Response struct {
	response.Response
	Block api.AvailabilityBlockResponse `json:"availability_block,omitempty"`
}

func New(log *slog.Logger, creator BlockCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.create.New"

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

		if err := validator.New().Struct(req.AvailabilityBlockRequest); err != nil {
			var validateErr validator.ValidationErrors
			errors.As(err, &validateErr)

			log.Error("Invalid request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}

		block, err := creator.CreateBlock(r.Context(), &req.AvailabilityBlockRequest)

		if errors.Is(err, response.ErrValidation) {
			log.Error("Validation failed", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), err.Error()))
			return
		}

		if err != nil {
			log.Error("Failed to create availability block", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to create availability block"))
			return
		}

		log.Info("Availability block created", slog.Any("block", block))

		w.WriteHeader(http.StatusCreated)
		responseOK(w, r, block)
	}
}

func responseOK(w http.ResponseWriter, r *http.Request, block *api.AvailabilityBlockResponse) {
	render.JSON(w, r, Response{
		Block: *block,
	})
}
