package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// sensitiveParams is the case-insensitive deny-list for cache key
// derivation. A parameter whose name contains any of these substrings is
// excluded from key computation so secret-bearing values never influence,
// or leak through, a cache key.
var sensitiveParams = []string{
	"api_key",
	"apikey",
	"token",
	"secret",
	"password",
}

// IsSensitiveParam reports whether a parameter name matches the deny-list.
func IsSensitiveParam(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range sensitiveParams {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// SanitizeParams returns a copy of params with sensitive entries removed.
func SanitizeParams(params map[string]string) map[string]string {
	clean := make(map[string]string, len(params))
	for name, value := range params {
		if IsSensitiveParam(name) {
			continue
		}
		clean[name] = value
	}
	return clean
}

// Key derives a cache key from an endpoint key and request parameters.
// Parameters are sanitized and canonically ordered, so the key is invariant
// to map iteration order and to the values of any sensitive parameters.
func Key(endpoint string, params map[string]string) string {
	clean := SanitizeParams(params)

	names := make([]string, 0, len(clean))
	for name := range clean {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(endpoint)
	for _, name := range names {
		sb.WriteByte('&')
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(clean[name])
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return endpoint + ":" + hex.EncodeToString(sum[:16])
}
