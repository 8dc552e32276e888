package client

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ConcatenateURL appends parts to base. An absolute http(s) part replaces
// the whole URL, a part starting with "/" replaces the path of the URL and
// any other part is joined with a single "/".
func ConcatenateURL(base string, parts ...string) string {
	for _, part := range parts {
		switch {
		case strings.HasPrefix(part, "http://") || strings.HasPrefix(part, "https://"):
			base = part
		case strings.HasPrefix(part, "/"):
			// Keep the scheme and host. The first 8 bytes cover "https://".
			if len(base) <= 8 {
				base += part
				continue
			}
			host, _, _ := strings.Cut(base[8:], "/")
			base = base[:8] + host + part
		case strings.HasSuffix(base, "/"):
			base += part
		default:
			base += "/" + part
		}
	}
	return base
}

// StringifyQuery renders query as a URL query string with a leading "?", or
// "" when nothing remains. Keys are sorted. nil, false and "" values are
// skipped, true renders the bare key and slices repeat the key.
func StringifyQuery(query map[string]any) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		pairs = appendPairs(pairs, k, query[k])
	}
	if len(pairs) == 0 {
		return ""
	}
	return "?" + strings.Join(pairs, "&")
}

func appendPairs(pairs []string, key string, val any) []string {
	switch v := val.(type) {
	case nil:
		return pairs
	case bool:
		if v {
			pairs = append(pairs, encodeComponent(key))
		}
		return pairs
	case string:
		if v == "" {
			return pairs
		}
		return append(pairs, encodeComponent(key)+"="+encodeComponent(v))
	case []string:
		for _, item := range v {
			pairs = append(pairs, encodeComponent(key)+"="+encodeComponent(item))
		}
		return pairs
	case []any:
		for _, item := range v {
			if item == nil {
				pairs = append(pairs, encodeComponent(key))
				continue
			}
			pairs = append(pairs, encodeComponent(key)+"="+encodeComponent(fmt.Sprint(item)))
		}
		return pairs
	default:
		return append(pairs, encodeComponent(key)+"="+encodeComponent(fmt.Sprint(v)))
	}
}

var componentReplacer = strings.NewReplacer(
	"+", "%20",
	"%2A", "%2a",
	"%2C", ",",
)

// encodeComponent escapes s for use as a query key or value. Only
// alphanumerics, "-", "_", ".", "~" and "," are left as is.
func encodeComponent(s string) string {
	return componentReplacer.Replace(url.QueryEscape(s))
}
