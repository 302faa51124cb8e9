package api

import "net/http"

// APIError is the body of every non-2xx response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	ErrCodeInvalidToken  = "INVALID_TOKEN"
	ErrCodeInvalidTarget = "INVALID_TARGET"
	ErrCodeInvalidAmount = "INVALID_AMOUNT"
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNoPairs       = "NO_PAIRS"
	ErrCodeNoValidPair   = "NO_VALID_PAIR"
	ErrCodeNoVenues      = "NO_VENUES"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeWalletMissing = "WALLET_NOT_CONFIGURED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]APIError{"error": {Code: code, Message: message}})
}
