package logger

import (
	"net/http"
	"sort"
	"strings"
)

// sensitiveHeaders never appear in logs. The principal signature is a
// credential: anyone holding it can act as that user.
var sensitiveHeaders = map[string]struct{}{
	"authorization":    {},
	"cookie":           {},
	"x-user-signature": {},
}

// SafeHeaders renders request headers for logging with credential values
// redacted. Output is sorted so log lines are stable.
func SafeHeaders(r *http.Request) string {
	parts := make([]string, 0, len(r.Header))
	for k, vals := range r.Header {
		if len(vals) == 0 {
			continue
		}
		v := vals[0]
		if _, ok := sensitiveHeaders[strings.ToLower(k)]; ok && v != "" {
			v = "<redacted>"
		}
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
