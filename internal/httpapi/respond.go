// Package httpapi holds the JSON response helpers shared by the REST
// handlers. Error bodies follow the { "error": <code>, "message": <text> }
// shape the clients already depend on.
package httpapi

import (
	"encoding/json"
	"net/http"
)

type ErrorResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: status, Message: message})
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

func Internal(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, "Internal server error.")
}
