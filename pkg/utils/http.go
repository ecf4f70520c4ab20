package utils

import (
	"fmt"
	"net/http"
	"strings"
)

// HTTPHelper provides HTTP utility functions.
type HTTPHelper struct{}

// NewHTTPHelper creates a new HTTP helper.
func NewHTTPHelper() *HTTPHelper {
	return &HTTPHelper{}
}

// AttachmentHeaders creates the response headers for a file download.
func (h *HTTPHelper) AttachmentHeaders(filename, contentType string, customHeaders map[string]string) http.Header {
	headers := http.Header{}

	safe := strings.NewReplacer(`"`, "", "\r", "", "\n", "").Replace(filename)

	headers.Set("Content-Type", contentType)
	headers.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, safe))
	headers.Set("X-Content-Type-Options", "nosniff")

	for key, value := range customHeaders {
		headers.Add(key, value)
	}

	return headers
}
