package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"loan-api/internal/common/errors"
	"loan-api/internal/models"
	"loan-api/internal/underwriting"
)

const (
	readyTimeout = 2 * time.Second
	// maxBodyBytes caps JSON request bodies at 100 kB.
	maxBodyBytes = 100 << 10
)

func (h *Handler) timestamp() string {
	return models.FormatTimestamp(h.now())
}

// Health is a liveness probe; it never touches the store.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": h.timestamp(),
	})
}

// Ready reports whether the storage backend answers.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", map[string]interface{}{"error": err.Error()})
		JSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"timestamp": h.timestamp(),
	})
}

func (h *Handler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if violations := h.engine.Validate(fields); len(violations) > 0 {
		writeStandardError(w, errors.NewValidationFailedError(violations))
		return
	}

	app, err := h.store.Submit(r.Context(), underwriting.FromFields(fields))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, app)
}

func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.store.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if apps == nil {
		apps = []*models.Application{}
	}
	JSON(w, http.StatusOK, apps)
}

func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, app)
}

func (h *Handler) UpdateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status, _ := fields["status"].(string)

	app, err := h.store.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, app)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := errors.AsStandardError(err)
	if errors.HTTPStatus(stdErr.Code) >= http.StatusInternalServerError {
		h.logger.Error("request failed", map[string]interface{}{
			"method":    r.Method,
			"path":      r.URL.Path,
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
	}
	writeStandardError(w, stdErr)
}

// decodeFields reads a JSON request body of at most maxBodyBytes. An empty
// body or a JSON array yields no fields, which validation then reports field
// by field. Anything else that is not a single JSON object is an error.
func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if r.Body == nil {
		return fields, nil
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return fields, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	switch raw[0] {
	case '{':
		err = dec.Decode(&fields)
	case '[':
		var list []interface{}
		err = dec.Decode(&list)
	default:
		return nil, fmt.Errorf("decode request body: expected a JSON object or array")
	}
	if err != nil {
		return nil, fmt.Errorf("decode request body: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("decode request body: unexpected data after JSON value")
	}
	return fields, nil
}
