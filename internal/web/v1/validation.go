package v1

import "strings"

// sanitizeValidationError returns a user-friendly message for binding and
// validation errors. Raw decoder errors expose internal structure and are
// replaced with a generic message.
func sanitizeValidationError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if strings.Contains(msg, "Field validation") ||
		strings.Contains(msg, "cannot unmarshal") ||
		strings.Contains(msg, "bind") ||
		strings.Contains(msg, "Key:") ||
		msg == "EOF" {
		return "Invalid request"
	}
	// Short, safe messages (e.g. "invalid request: missing email") pass through
	if len(msg) < 100 && !strings.Contains(msg, "Error:") {
		return msg
	}
	return "Invalid request"
}
