package http

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/example/gov-agenda/internal/application"
)

var (
	errBadRequestBody   = errors.New("Format de requête invalide.")
	errInvalidID        = errors.New("Identifiant invalide.")
	errMissingPrincipal = errors.New("Identité de l'utilisateur manquante ou invalide.")
	errInvalidDueDate   = errors.New("Date d'échéance invalide.")
	errInvalidPath      = errors.New("Chemin invalide.")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeCacheable writes payload with a content fingerprint ETag and answers
// 304 Not Modified when the request already holds that representation.
func (r responder) writeCacheable(w http.ResponseWriter, req *http.Request, contentType string, body []byte) {
	etag := fingerprint(body)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, no-cache")
	if etagMatches(req.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		r.loggerFor(req.Context()).ErrorContext(req.Context(), "failed to write response", "error", err)
	}
}

func (r responder) writeCacheableJSON(w http.ResponseWriter, req *http.Request, payload any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		r.writeError(req.Context(), w, http.StatusInternalServerError, err)
		return
	}
	r.writeCacheable(w, req, "application/json; charset=utf-8", buf.Bytes())
}

// fingerprint returns a strong ETag derived from the BLAKE2b-256 digest of body.
func fingerprint(body []byte) string {
	sum := blake2b.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" && status < http.StatusInternalServerError {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: statusErrorCode(status), Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: statusErrorCode(http.StatusForbidden),
			Message:   localizedStatusMessage(http.StatusForbidden),
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: statusErrorCode(http.StatusNotFound),
			Message:   localizedStatusMessage(http.StatusNotFound),
		})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: statusErrorCode(http.StatusConflict),
			Message:   "Cette ressource existe déjà.",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				ErrorCode: statusErrorCode(http.StatusUnprocessableEntity),
				Message:   localizedStatusMessage(http.StatusUnprocessableEntity),
				Errors:    vErr.FieldErrors,
			})
			return
		}

		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			ErrorCode: statusErrorCode(http.StatusInternalServerError),
			Message:   localizedStatusMessage(http.StatusInternalServerError),
		})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "La requête est invalide."
	case http.StatusUnauthorized:
		return "Authentification requise."
	case http.StatusForbidden:
		return "Vous n'avez pas les droits nécessaires pour cette opération."
	case http.StatusNotFound:
		return "La ressource demandée est introuvable."
	case http.StatusConflict:
		return "La requête est en conflit avec l'état actuel de la ressource."
	case http.StatusUnprocessableEntity:
		return "Les données saisies comportent des erreurs."
	case http.StatusTooManyRequests:
		return "Trop de requêtes, veuillez réessayer plus tard."
	default:
		return "Une erreur interne est survenue."
	}
}

func statusErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "ALREADY_EXISTS"
	case http.StatusUnprocessableEntity:
		return "VALIDATION_FAILED"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		return "INTERNAL"
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
