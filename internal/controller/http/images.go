package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
	"github.com/vadim/barkwrapped/internal/httpx/response"
	"github.com/vadim/barkwrapped/internal/storage"
)

// ImageReader defines the interface for reading stored images
type ImageReader interface {
	Open(ctx context.Context, username string, kind entity.ImageKind) (io.ReadCloser, error)
}

// ImageHandler serves rendered Wrapped images
type ImageHandler struct {
	reader ImageReader
	logger *slog.Logger
}

// NewImageHandler creates a new image handler
func NewImageHandler(reader ImageReader, logger *slog.Logger) *ImageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageHandler{reader: reader, logger: logger}
}

// RegisterRoutes registers image routes
func (h *ImageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/wrapped/{username}/images/{kind}", h.Get())
}

// Get handles GET /wrapped/{username}/images/{kind}; kind is a slug or 1-4
func (h *ImageHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := chi.URLParam(r, "username")
		if err := entity.ValidateUsername(username); err != nil {
			response.BadRequest(w, err.Error())
			return
		}
		kind, err := entity.ParseImageKind(chi.URLParam(r, "kind"))
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}

		rc, err := h.reader.Open(r.Context(), username, kind)
		if errors.Is(err, storage.ErrImageNotFound) {
			response.Error(w, http.StatusNotFound, "image_not_found", fmt.Sprintf("no %s image for %s", kind, username))
			return
		}
		if err != nil {
			h.logger.Error("opening image", "username", username, "kind", kind.String(), "error", err)
			response.InternalError(w, "failed to read image")
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", storage.ContentTypePNG)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s-%d-%s.png"`, username, kind.Index(), kind))
		w.WriteHeader(http.StatusOK)
		if n, err := io.Copy(w, rc); err != nil {
			// headers are already sent, the client sees a truncated body
			h.logger.Error("streaming image", "username", username, "kind", kind.String(), "bytes", n, "error", err)
		}
	}
}
