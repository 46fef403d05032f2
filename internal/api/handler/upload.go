package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maraichr/slidepilot/pkg/apierr"
)

const (
	maxUploadMB    = 50
	maxUploadBytes = maxUploadMB << 20
	presignExpiry  = time.Hour
)

type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Presigner is implemented by object stores that can hand out download URLs.
type Presigner interface {
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type UploadHandler struct {
	logger *slog.Logger
	blobs  BlobStore
}

func NewUploadHandler(logger *slog.Logger, blobs BlobStore) *UploadHandler {
	return &UploadHandler{logger: logger, blobs: blobs}
}

// UploadKey is the object key of an uploaded file.
func UploadKey(owner, name string) string {
	return fmt.Sprintf("uploads/%s/%s", owner, name)
}

func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sub, ok := owner(w, r)
	if !ok {
		return
	}

	// Multipart overhead on top of the file limit
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeAPIError(w, h.logger, apierr.FileTooLarge(maxUploadMB))
			return
		}
		writeAPIError(w, h.logger, apierr.FileRequired())
		return
	}
	defer file.Close()

	name := path.Base(strings.ReplaceAll(header.Filename, "\\", "/"))
	if !strings.EqualFold(path.Ext(name), ".pdf") {
		writeAPIError(w, h.logger, apierr.FileNotPDF())
		return
	}
	if header.Size == 0 {
		writeAPIError(w, h.logger, apierr.FileEmpty())
		return
	}
	if header.Size > maxUploadBytes {
		writeAPIError(w, h.logger, apierr.FileTooLarge(maxUploadMB))
		return
	}

	stored := uuid.New().String() + "_" + name
	key := UploadKey(sub, stored)
	if err := h.blobs.Put(r.Context(), key, file, header.Size, "application/pdf"); err != nil {
		writeAPIError(w, h.logger, apierr.UploadFailed(err))
		return
	}

	resp := map[string]any{
		"key":  key,
		"name": stored,
		"size": header.Size,
	}
	if p, ok := h.blobs.(Presigner); ok {
		url, err := p.PresignedURL(r.Context(), key, presignExpiry)
		if err != nil {
			h.logger.Warn("presign upload", slog.String("key", key), slog.String("error", err.Error()))
		} else {
			resp["url"] = url
			resp["expires_in"] = int(presignExpiry.Seconds())
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Delete removes an upload. Names are resolved inside the caller's prefix.
func (h *UploadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sub, ok := owner(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		writeAPIError(w, h.logger, apierr.UploadNotFound())
		return
	}

	key := UploadKey(sub, name)
	rc, err := h.blobs.Get(r.Context(), key)
	if err != nil {
		if apierr.IsNotFound(err) {
			writeAPIError(w, h.logger, apierr.UploadNotFound())
			return
		}
		writeAPIError(w, h.logger, apierr.DeleteFailed(err))
		return
	}
	rc.Close()

	if err := h.blobs.Delete(r.Context(), key); err != nil {
		writeAPIError(w, h.logger, apierr.DeleteFailed(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
