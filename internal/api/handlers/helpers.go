package handlers

import (
	"encoding/json"
	"github.com/rs/zerolog/log"
	"net/http"
)

var errorCodes = map[int]string{
	http.StatusNotFound:            "NOT_FOUND",
	http.StatusMethodNotAllowed:    "METHOD_NOT_ALLOWED",
	http.StatusInternalServerError: "INTERNAL_ERROR",
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	errorCode, ok := errorCodes[code]
	if !ok {
		errorCode = "INTERNAL_ERROR"
	}

	respondWithJSON(w, code, ErrorResponse{
		Errors: []Error{
			{
				Code:   errorCode,
				Detail: message,
				Status: code,
				Title:  http.StatusText(code),
			},
		},
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
