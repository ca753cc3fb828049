package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"cafelist/internal/apperrors"
	"cafelist/internal/service"
)

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, map[string]interface{}{
		"status":    status,
		"error_msg": message,
	})
}

var statusByType = map[apperrors.ErrorType]int{
	apperrors.ErrorTypeNotFound:        http.StatusNotFound,
	apperrors.ErrorTypeDuplicateEmail:  http.StatusConflict,
	apperrors.ErrorTypeDuplicateName:   http.StatusConflict,
	apperrors.ErrorTypeUserNotFound:    http.StatusUnauthorized,
	apperrors.ErrorTypeBadCredential:   http.StatusUnauthorized,
	apperrors.ErrorTypeForbidden:       http.StatusForbidden,
	apperrors.ErrorTypeUnauthorized:    http.StatusUnauthorized,
	apperrors.ErrorTypeValidation:      http.StatusBadRequest,
	apperrors.ErrorTypeTooManyRequests: http.StatusTooManyRequests,
}

// handleError writes the response for a failed use-case. Login-required
// advisories become a flash message and a redirect to the login page.
func (api *API) handleError(w http.ResponseWriter, r *http.Request, err error) {
	t := apperrors.TypeOf(err)

	if t == apperrors.ErrorTypeLoginRequired {
		if ferr := api.sessions.AddFlash(w, r, apperrors.MessageOf(err)); ferr != nil {
			api.logger.WithError(ferr).Warn("Failed to store flash message")
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	status, ok := statusByType[t]
	if !ok {
		api.logger.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
		status = http.StatusInternalServerError
	}
	respondWithError(w, status, apperrors.MessageOf(err))
}

// pathID returns the {id} route variable. Ids that do not fit a uint are
// reported as not found.
func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 0)
	if err != nil || id == 0 {
		return 0, apperrors.NewNotFoundError(service.MsgCafeNotFound)
	}
	return uint(id), nil
}
