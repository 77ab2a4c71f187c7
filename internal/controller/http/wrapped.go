package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
	"github.com/vadim/barkwrapped/internal/domain/wrapped/policy"
	"github.com/vadim/barkwrapped/internal/httpx/response"
)

// WrappedPolicy defines the interface for on-demand Wrapped runs
// Interface is defined by consumer (handler), not provider (policy)
type WrappedPolicy interface {
	Run(ctx context.Context, in policy.RunInput) (*policy.RunOutput, error)
	Reset(ctx context.Context, username string) error
}

// WrappedHandler handles HTTP requests for Wrapped generation
type WrappedHandler struct {
	policy WrappedPolicy
}

// NewWrappedHandler creates a new wrapped handler
func NewWrappedHandler(p WrappedPolicy) *WrappedHandler {
	return &WrappedHandler{policy: p}
}

// RegisterRoutes registers wrapped routes
func (h *WrappedHandler) RegisterRoutes(r chi.Router) {
	r.Route("/wrapped", func(r chi.Router) {
		r.Post("/{username}", h.Generate())
		r.Delete("/{username}", h.Reset())
	})
}

// Generate handles POST /wrapped/{username}
func (h *WrappedHandler) Generate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := chi.URLParam(r, "username")
		if err := entity.ValidateUsername(username); err != nil {
			response.BadRequest(w, err.Error())
			return
		}

		out, err := h.policy.Run(r.Context(), policy.RunInput{
			Username:  username,
			ReplyToID: r.URL.Query().Get("reply_to"),
		})
		if err != nil {
			handleRunError(w, out, err)
			return
		}

		response.OK(w, out)
	}
}

// Reset handles DELETE /wrapped/{username}
func (h *WrappedHandler) Reset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := chi.URLParam(r, "username")
		if err := h.policy.Reset(r.Context(), username); err != nil {
			if errors.Is(err, entity.ErrInvalidUsername) {
				response.BadRequest(w, err.Error())
				return
			}
			response.InternalError(w, "failed to reset user")
			return
		}
		response.NoContent(w)
	}
}

// handleRunError maps run outcomes to HTTP errors
func handleRunError(w http.ResponseWriter, out *policy.RunOutput, err error) {
	outcome := policy.OutcomeFailed
	if out != nil {
		outcome = out.Outcome
	}

	switch {
	case errors.Is(err, entity.ErrInvalidUsername):
		response.BadRequest(w, err.Error())
	case outcome == policy.OutcomeAlreadyProcessed:
		response.Error(w, http.StatusConflict, string(outcome), err.Error())
	case outcome == policy.OutcomeUserNotFound:
		response.Error(w, http.StatusNotFound, string(outcome), err.Error())
	case outcome == policy.OutcomeNoContent:
		response.Error(w, http.StatusUnprocessableEntity, string(outcome), err.Error())
	case outcome == policy.OutcomeUpstreamFailure:
		response.Error(w, http.StatusBadGateway, string(outcome), "upstream platform request failed")
	default:
		response.Error(w, http.StatusInternalServerError, string(outcome), "internal server error")
	}
}
