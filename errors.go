package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

const msgInvalidPayload = "Invalid request payload"

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServerError logs err and answers 500 with the error text as details.
func writeServerError(w http.ResponseWriter, r *http.Request, label string, err error) {
	hlog.FromRequest(r).Error().Err(err).Str("route", r.URL.Path).Msg(label)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: label, Details: err.Error()})
}
