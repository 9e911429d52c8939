package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/rezkam/tutorplan/internal/infrastructure/http/response"
)

// MaxBodyBytes limits request bodies to maxBytes and answers 413 with the
// standard error envelope when a body is larger.
//
// A declared Content-Length over the limit is rejected before reading. Bodies
// without one (chunked) or with a wrong one are read through
// http.MaxBytesReader and buffered so handlers can decode them normally.
func MaxBodyBytes(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				tooLarge(w, r, maxBytes, nil)
				return
			}

			buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
			if err != nil {
				tooLarge(w, r, maxBytes, err)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(buf))
			next.ServeHTTP(w, r)
		})
	}
}

func tooLarge(w http.ResponseWriter, r *http.Request, limit int64, err error) {
	slog.WarnContext(r.Context(), "Request body size limit exceeded",
		"method", r.Method,
		"path", r.URL.Path,
		"content_length", r.ContentLength,
		"limit", limit,
		"error", err)
	response.Error(w, "PAYLOAD_TOO_LARGE", "request body exceeds size limit", http.StatusRequestEntityTooLarge)
}
