package common

import "fmt"

// ErrorFields builds the structured field set every error-path log call in
// this service attaches to its entry. subject names whatever the error was
// about in caller-local terms — a write-off id, a sync entity type, a
// scheduled job name, a webhook event type — never a fixed vocabulary,
// since the call sites span the sync engine, the Telegram bot, and the
// webhook dispatcher and each has its own natural key.
func ErrorFields(err error, subject string) map[string]interface{} {
	return map[string]interface{}{
		"error":      err.Error(),
		"error_type": fmt.Sprintf("%T", err),
		"subject":    subject,
	}
}
