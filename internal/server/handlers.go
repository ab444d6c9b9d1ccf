package server

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	apperrors "github.com/lepinkainen/librarian/internal/errors"
)

const (
	headerContentType = "Content-Type"
	headerRetryAfter  = "Retry-After"

	contentTypeJSONUTF8      = "application/json; charset=utf-8"
	contentTypeTextPlainUTF8 = "text/plain; charset=utf-8"
	contentTypeFictionBook   = "application/x-fictionbook+xml"
)

// AppHandler is a handler that returns its failure instead of writing it.
type AppHandler func(w http.ResponseWriter, r *http.Request) error

// MakeHandler adapts an AppHandler to http.HandlerFunc. Returned errors are
// logged and turned into a JSON error body with the matching status code.
func MakeHandler(handler AppHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := handler(w, r)
		if err == nil {
			return
		}

		var httpErr *HTTPError
		var rateErr *apperrors.RateLimitError
		var statusCode int
		var publicMessage string

		switch {
		case errors.As(err, &httpErr):
			statusCode = httpErr.Code
			publicMessage = httpErr.Message
			logLevel := slog.LevelWarn
			if statusCode >= 500 {
				logLevel = slog.LevelError
			}
			slog.Log(r.Context(), logLevel, "Client error response",
				"code", httpErr.Code,
				"msg", httpErr.Message,
				"cause", errors.Unwrap(httpErr),
				"path", r.URL.Path,
				"method", r.Method,
			)

		case errors.As(err, &rateErr):
			statusCode = http.StatusTooManyRequests
			publicMessage = "Too many downloads, slow down"
			if rateErr.RetryAfter > 0 {
				w.Header().Set(headerRetryAfter, strconv.Itoa(int(math.Ceil(rateErr.RetryAfter.Seconds()))))
			}
			slog.Info("Download rate limited", "path", r.URL.Path, "retry_after", rateErr.RetryAfter)

		default:
			statusCode = http.StatusInternalServerError
			publicMessage = msgInternalServer
			slog.Error("Unhandled internal error", "path", r.URL.Path, "method", r.Method, "error", err)
		}

		if hasResponseWriterSentHeader(w) {
			slog.Warn("Handler returned error after writing response header",
				"path", r.URL.Path,
				"method", r.Method,
				"error", err,
			)
			return
		}

		RespondWithJSON(w, statusCode, map[string]string{"error": publicMessage})
	}
}

// RespondWithJSON writes payload as a JSON response.
func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		w.Header().Set(headerContentType, contentTypeJSONUTF8)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal Server Error"}`))
		return
	}

	w.Header().Set(headerContentType, contentTypeJSONUTF8)
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

// RespondWithText writes body as a plain text response.
func RespondWithText(w http.ResponseWriter, status int, body string) {
	w.Header().Set(headerContentType, contentTypeTextPlainUTF8)
	w.WriteHeader(status)
	_, _ = fmt.Fprint(w, body)
}

// Handlers only set Content-Type right before writing a body.
func hasResponseWriterSentHeader(w http.ResponseWriter) bool {
	return w.Header().Get(headerContentType) != ""
}
