package config

import (
	"os"
	"strings"
)

// MailDirectProcessing makes the server deliver queued JD mails itself
// instead of relying on the Pub/Sub push subscription.
//
// Set via env:
// - MAIL_DIRECT_PROCESSING=true
func MailDirectProcessing() bool {
	return boolFromEnv("MAIL_DIRECT_PROCESSING")
}

// OutboxDispatcherEnabled starts the background publisher for pending mail outbox rows.
//
// Set via env:
// - OUTBOX_DISPATCHER_ENABLED=true
func OutboxDispatcherEnabled() bool {
	return boolFromEnv("OUTBOX_DISPATCHER_ENABLED")
}

// ReportCacheDisabled bypasses the redis cache of the analytics endpoints.
//
// Set via env:
// - REPORT_CACHE_DISABLED=true
func ReportCacheDisabled() bool {
	return boolFromEnv("REPORT_CACHE_DISABLED")
}

// AdminOnlyUserTypes lists the user type names allowed to manage other users.
//
// Set via env:
// - ADMIN_USER_TYPES="admin,super admin" (default "admin")
func AdminOnlyUserTypes() []string {
	raw := os.Getenv("ADMIN_USER_TYPES")
	if strings.TrimSpace(raw) == "" {
		return []string{"admin"}
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
