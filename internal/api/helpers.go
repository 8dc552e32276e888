package api

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// negotiate picks the media type to respond with from the Accept header.
// An empty header or a wildcard selects the default media type.
func negotiate[T any](accept string, available map[string]T, defaultType string) (string, bool) {
	accept = strings.TrimSpace(accept)
	if accept == "" {
		return defaultType, true
	}

	for _, part := range strings.Split(accept, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mediaType {
		case "*/*":
			return defaultType, true
		case "application/*":
			if strings.HasPrefix(defaultType, "application/") {
				return defaultType, true
			}
		}
		if _, ok := available[mediaType]; ok {
			return mediaType, true
		}
	}

	return "", false
}

// requestMediaType returns the media type of the request body.
func requestMediaType(r *http.Request) string {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mediaType
}

// baseURL returns the scheme and host the request was made to.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// pageURL returns the request URL with the page parameter replaced.
func pageURL(r *http.Request, page int) string {
	q := url.Values{}
	for k, v := range r.URL.Query() {
		q[k] = v
	}
	q.Set("page", fmt.Sprint(page))
	return baseURL(r) + r.URL.Path + "?" + q.Encode()
}

// parseETag returns the revision named by an If-Match header, or 0 when the
// header is absent or "*".
func parseETag(header string) (int, error) {
	header = strings.TrimSpace(header)
	if header == "" || header == "*" {
		return 0, nil
	}
	header = strings.TrimPrefix(header, "W/")
	var rev int
	if _, err := fmt.Sscanf(strings.Trim(header, `"`), "%d", &rev); err != nil || rev < 1 {
		return 0, fmt.Errorf("invalid If-Match header %q", header)
	}
	return rev, nil
}

func etag(revision int) string {
	return fmt.Sprintf(`"%d"`, revision)
}
