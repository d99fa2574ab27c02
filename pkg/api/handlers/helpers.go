package handlers

import (
	"errors"
	"net/http"

	"whisperboard/pkg/board"
	"whisperboard/pkg/utils"
)

// writeServiceError maps mutation service error kinds onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, board.ErrUnauthenticated):
		utils.JSONError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, board.ErrUnauthorized):
		utils.JSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, board.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, board.ErrValidation):
		utils.JSONError(w, http.StatusBadRequest, err.Error())
	default:
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
	}
}
