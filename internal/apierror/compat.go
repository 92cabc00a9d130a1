package apierror

import (
	"net/http"
	"strings"
)

// Phrases the verification endpoint has used for "this email is already verified",
// including the case where a consumed token is reported as invalid.
var alreadyVerifiedPhrases = []string{
	"already verified",
	"already been verified",
	"email is already verified",
	"invalid or expired verification token",
}

// isAlreadyVerified is the free-text fallback for servers that report an
// already-verified account as a plain 400 with prose.
func isAlreadyVerified(status int, message string) bool {
	if status != http.StatusBadRequest && status != http.StatusConflict {
		return false
	}
	msg := strings.ToLower(message)
	for _, p := range alreadyVerifiedPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
