package utils

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRequestCreation   = errors.New("failed to create HTTP request")
	ErrResponseBodyRead  = errors.New("failed to read response body")
	ErrRetryFailed       = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError   = errors.New("client HTTP error (4xx)")
	ErrServerHTTPError   = errors.New("server HTTP error (5xx)")
	ErrOtherHTTPError    = errors.New("other HTTP error (non-2xx)")
	ErrRobotsDisallowed  = errors.New("disallowed by robots.txt")
	ErrMaxDepthExceeded  = errors.New("maximum crawl depth exceeded")
	ErrAlreadyVisited    = errors.New("URL already visited")
	ErrParsing           = errors.New("parsing error") // Wraps specific parsing error (HTML, URL, JSON)
	ErrFilesystem        = errors.New("filesystem error")
	ErrDatabase          = errors.New("database error")
	ErrSemaphoreTimeout  = errors.New("timeout acquiring semaphore")
	ErrConfigValidation  = errors.New("configuration validation error")
	ErrUnsupportedMedia  = errors.New("unsupported media type")
	ErrSizeLimitExceeded = errors.New("media size limit exceeded")
	ErrSessionNotFound   = errors.New("cache session not found")
	ErrCacheCorrupted    = errors.New("cache file corrupted")
	ErrCrawlFailed       = errors.New("crawl failed") // Wraps the engine's hard failure
)

// CategorizeError maps an error to a predefined category string for logging.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrRetryFailed):
		switch {
		case errors.Is(err, ErrServerHTTPError):
			return "RetryFailed_HTTPServer"
		case errors.Is(err, ErrClientHTTPError):
			return "RetryFailed_HTTPClient"
		case isTimeout(err):
			return "RetryFailed_NetworkTimeout"
		}
		return "RetryFailed_NetworkOther"
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		for _, code := range []string{"404", "403", "401", "429"} {
			if strings.Contains(errMsg, " "+code+" ") || strings.HasSuffix(errMsg, " "+code) {
				return "HTTP_" + code
			}
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrMaxDepthExceeded):
		return "Policy_MaxDepth"
	case errors.Is(err, ErrAlreadyVisited):
		return "Policy_Visited"
	case errors.Is(err, ErrUnsupportedMedia):
		return "Content_UnsupportedMedia"
	case errors.Is(err, ErrSizeLimitExceeded):
		return "Content_SizeLimit"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		switch {
		case strings.Contains(errMsg, "URL"):
			return "Content_ParsingURL"
		case strings.Contains(errMsg, "HTML"):
			return "Content_ParsingHTML"
		case strings.Contains(errMsg, "JSON"):
			return "Content_ParsingJSON"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrCrawlFailed):
		return "Crawl_Failed"
	case errors.Is(err, ErrSessionNotFound):
		return "Cache_SessionNotFound"
	case errors.Is(err, ErrCacheCorrupted):
		return "Cache_Corrupted"
	case errors.Is(err, ErrFilesystem):
		switch {
		case errors.Is(err, os.ErrPermission):
			return "Filesystem_Permission"
		case errors.Is(err, os.ErrNotExist):
			return "Filesystem_NotExist"
		case errors.Is(err, os.ErrExist):
			return "Filesystem_Exist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrSemaphoreTimeout):
		return "Resource_SemaphoreTimeout"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// --- Fallback checks for common underlying error types/strings ---
	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Network_Timeout"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}

	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"):
		return "Network_TimeoutGeneric"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	}

	return "Unknown"
}

// isTimeout reports whether err looks like a network or context timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}
