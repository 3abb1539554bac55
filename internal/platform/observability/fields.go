package observability

import (
	"net"
	"net/http"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

const (
	maxRouteLen = 180
	maxIDLen    = 64
)

// logSafe strips control characters so request data cannot forge log lines,
// then truncates to limit runes.
func logSafe(value string, limit int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	if runes := []rune(cleaned); len(runes) > limit {
		cleaned = string(runes[:limit])
	}
	return cleaned
}

// TenantFields identifies the caller of a private endpoint in log entries.
func TenantFields(uid, companyID, role string) []zap.Field {
	fields := []zap.Field{zap.String("user_id", logSafe(uid, maxIDLen))}
	if companyID != "" {
		fields = append(fields, zap.String("company_id", logSafe(companyID, maxIDLen)))
	}
	if role != "" {
		fields = append(fields, zap.String("role", role))
	}
	return fields
}

// methodLabel folds unknown verbs into one label value to bound metric cardinality.
func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return method
	}
	return "OTHER"
}

func remoteIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return logSafe(addr, maxIDLen)
}
