package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

var knownStatus = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"skip":         {},
	"retry":        {},
	"rate_limited": {},
	"cancelled":    {},
	"rejected":     {},
}

var knownOutcome = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"cancelled":    {},
	"rejected":     {},
	"unauthorized": {},
	"rate_limited": {},
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if mapped, ok := levelNames[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeEnum(value string, known map[string]struct{}) (string, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	_, ok := known[value]
	return value, ok && value != ""
}

// defaultKeyOrder puts correlation keys first, then the domain identifiers
// most often grepped for, then error details.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"job",
	"kind",
	"cmd",
	"token",
	"flow",
	"step",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"count",
	"sent",
	"skipped",
	"backend_user",
	"task_id",
	"deal_id",
	"meeting_id",
	"collection",
	"key",
	"mode",
	"listen",
	"public_url",
	"driver",
	"host",
	"port",
	"err",
	"err_code",
	"retryable",
	"attempts",
	"backoff_ms",
}
