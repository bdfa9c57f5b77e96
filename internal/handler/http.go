package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"bustrack/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondDomainError maps the data-availability error taxonomy onto
// HTTP statuses; anything outside it is an internal failure and stays
// opaque to the client.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBusNotFound), errors.Is(err, domain.ErrRouteNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNoRouteAssigned),
		errors.Is(err, domain.ErrEmptyRoute),
		errors.Is(err, domain.ErrNoLocationData):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
