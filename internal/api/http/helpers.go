package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/linguaprep/assessment-engine/internal/faults"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the engine's error taxonomy onto HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	var (
		nf   *faults.NotFoundError
		val  *faults.ValidationError
		trn  *faults.InvalidTransitionError
		auth *faults.AuthorizationError
		exp  *faults.ExpiredAttemptError
		cre  *faults.CreationError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &val):
		status = http.StatusBadRequest
	case errors.As(err, &auth):
		status = http.StatusForbidden
	case errors.As(err, &nf):
		status = http.StatusNotFound
	case errors.As(err, &trn):
		status = http.StatusConflict
	case errors.As(err, &exp):
		status = http.StatusGone
	case errors.As(err, &cre):
		status = http.StatusUnprocessableEntity
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
