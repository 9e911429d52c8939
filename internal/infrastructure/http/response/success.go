package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// encodeFailedJSON is written when a response body cannot be marshaled.
const encodeFailedJSON = `{"error":{"code":"INTERNAL_ERROR","message":"failed to encode response","details":[]}}`

// OK sends a 200 OK response with JSON data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created sends a 201 Created response with JSON data.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent sends a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// JSON marshals data before touching the response so that an encoding
// failure can still be reported as a 500.
func JSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		body = []byte(encodeFailedJSON)
		status = http.StatusInternalServerError
	} else {
		body = append(body, '\n')
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// Raw sends a non-JSON body with the given content type.
func Raw(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
