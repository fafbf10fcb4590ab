package stream

import (
	"net/http"
	"strings"
)

// SetSSEHeaders applies headers that keep event streams stable across proxies.
func SetSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Content-Type-Options", "nosniff")
}

const (
	corsMaxAge         = "300"
	corsAllowedHeaders = "Cache-Control,Content-Type,Last-Event-ID"
)

// SetCORSHeaders sets the allowed origin for requestOrigin. "*" in allowed
// admits any origin; otherwise only exact matches are echoed back and other
// origins get no CORS headers at all.
func SetCORSHeaders(w http.ResponseWriter, requestOrigin string, allowed []string) bool {
	origin := ""
	for _, a := range allowed {
		a = strings.TrimSpace(a)
		if a == "*" {
			origin = "*"
			break
		}
		if requestOrigin != "" && strings.EqualFold(a, requestOrigin) {
			origin = requestOrigin
			break
		}
	}
	if origin == "" {
		return false
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	if origin != "*" {
		h.Add("Vary", "Origin")
	}
	h.Set("Access-Control-Allow-Credentials", "false")
	h.Set("Access-Control-Max-Age", corsMaxAge)
	h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
	return true
}
