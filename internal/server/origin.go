package server

import (
	"net/http"
	"strings"
)

// OriginChecker accepts websocket upgrades from the configured origins. An
// empty list accepts every origin.
type OriginChecker struct {
	allowed map[string]struct{}
}

func NewOriginChecker(origins []string) *OriginChecker {
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowed[strings.ToLower(origin)] = struct{}{}
		}
	}

	return &OriginChecker{
		allowed,
	}
}

func (c *OriginChecker) Check(r *http.Request) bool {
	if len(c.allowed) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	_, ok := c.allowed[strings.ToLower(origin)]

	return ok
}
