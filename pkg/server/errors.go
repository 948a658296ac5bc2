package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/snapshot"
)

// Sentinel errors for mount and watcher conditions.
var (
	// ErrMountNotFound is returned when no mount has the given name.
	ErrMountNotFound = stderrors.New("server: mount not found")

	// ErrSnapshotsDisabled is returned by snapshot endpoints without a store.
	ErrSnapshotsDisabled = stderrors.New("server: snapshots are disabled")

	// ErrSlowWatcher is reported when a watcher's send queue overflows.
	ErrSlowWatcher = stderrors.New("server: watcher send queue full")

	// ErrServerClosed is returned for renders after Shutdown.
	ErrServerClosed = stderrors.New("server: closed")
)

func mountNotFound(name string) error {
	return errors.New("E050").
		WithDetail(fmt.Sprintf("no mount named %q", name)).
		Wrap(ErrMountNotFound)
}

// errorBody is the JSON body of every error response.
type errorBody struct {
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// statusOf maps an error to an HTTP status by its code.
func statusOf(err error) int {
	switch errors.CodeOf(err) {
	case "E010":
		return http.StatusBadRequest
	case "E011":
		return http.StatusUnsupportedMediaType
	case "E001", "E003":
		return http.StatusUnprocessableEntity
	case "E030", "E050":
		return http.StatusNotFound
	}
	var tooLarge *http.MaxBytesError
	switch {
	case stderrors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case stderrors.Is(err, snapshot.ErrInvalidName):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrSnapshotsDisabled), stderrors.Is(err, ErrServerClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Message: err.Error()}
	var ve *errors.VdiffError
	if stderrors.As(err, &ve) {
		body = errorBody{
			Code:       ve.Code,
			Message:    ve.Message,
			Detail:     ve.Detail,
			Suggestion: ve.Suggestion,
		}
		if ve.Wrapped != nil && body.Detail == "" {
			body.Detail = ve.Wrapped.Error()
		}
	}
	writeJSON(w, statusOf(err), body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
