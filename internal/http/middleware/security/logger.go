package security

import (
	"strings"
	"time"

	httpInternal "github.com/onyx-go/dispatch/internal/http"
)

var suspiciousAgents = []string{
	"sqlmap", "nikto", "nmap", "masscan", "acunetix", "nessus",
	"openvas", "w3af", "dirbuster", "gobuster", "wfuzz",
}

var suspiciousPaths = []string{
	"../",
	"..\\",
	"/etc/passwd",
	"/proc/",
	"<script",
	"javascript:",
	"union+select",
	"drop+table",
	"/wp-admin",
	"/phpmyadmin",
	"/.env",
	"/.git",
}

// SecurityLogger logs suspicious requests before they are handled and
// failures after. It never blocks a request.
func (f *MiddlewareFactory) SecurityLogger() httpInternal.Middleware {
	logger := f.deps.Logger.WithChannel("security")

	return httpInternal.MiddlewareFunc(func(c *httpInternal.Context, next httpInternal.Next) (*httpInternal.Response, error) {
		if isSuspicious(c) {
			logger.Warn("Suspicious request detected", requestFields(c, "suspicious_request"))
		}

		start := time.Now()
		res, err := next(c)

		if err != nil {
			fields := requestFields(c, "request_error")
			fields["error"] = err.Error()
			logger.Error("Request failed", fields)
		} else if res != nil && res.Status >= 500 {
			fields := requestFields(c, "request_error")
			fields["status"] = res.Status
			logger.Error("Request failed", fields)
		} else if res != nil && res.Status >= 400 {
			fields := requestFields(c, "request_rejected")
			fields["status"] = res.Status
			fields["duration_ms"] = time.Since(start).Milliseconds()
			logger.Info("Request rejected", fields)
		}
		return res, err
	})
}

func isSuspicious(c *httpInternal.Context) bool {
	agent := strings.ToLower(c.UserAgent())
	for _, pattern := range suspiciousAgents {
		if strings.Contains(agent, pattern) {
			return true
		}
	}

	url := strings.ToLower(c.URL())
	for _, pattern := range suspiciousPaths {
		if strings.Contains(url, pattern) {
			return true
		}
	}
	return false
}

func requestFields(c *httpInternal.Context, event string) map[string]interface{} {
	return map[string]interface{}{
		"ip":         c.RemoteIP(),
		"method":     c.Method(),
		"url":        c.URL(),
		"user_agent": c.UserAgent(),
		"event":      event,
	}
}
