package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/anayak07/walletsync/internal/repositories"
	"github.com/anayak07/walletsync/internal/services"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// errorCode names the specific rule a rejected push violated; clients
// and tests key off the code, not the message.
var errorCodes = []struct {
	err  error
	code string
}{
	{services.ErrUnsupportedEventType, "UNSUPPORTED_EVENT_TYPE"},
	{services.ErrMalformedPayload, "MALFORMED_PAYLOAD"},
	{services.ErrWalletMismatch, "WALLET_MISMATCH"},
	{services.ErrDeviceMismatch, "DEVICE_MISMATCH"},
	{services.ErrInvalidAmount, "INVALID_AMOUNT"},
	{services.ErrMissingDescription, "MISSING_DESCRIPTION"},
	{services.ErrInvalidCounterparty, "INVALID_COUNTERPARTY"},
	{services.ErrInvalidAccount, "INVALID_ACCOUNT"},
	{services.ErrInvalidCategory, "INVALID_CATEGORY"},
	{services.ErrInvalidCounterpartyAccount, "INVALID_COUNTERPARTY_ACCOUNT"},
	{services.ErrInvalidTimestamp, "INVALID_TIMESTAMP"},
}

// writeSyncError maps sync service failures onto the wire. Validation
// failures are client errors and carry the violated rule's code;
// anything unrecognized is treated as transient infrastructure failure.
func writeSyncError(w http.ResponseWriter, err error) {
	if errors.Is(err, repositories.ErrWalletNotFound) {
		writeError(w, http.StatusNotFound, "WALLET_NOT_FOUND", err.Error())
		return
	}
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			writeError(w, http.StatusUnprocessableEntity, m.code, err.Error())
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}
