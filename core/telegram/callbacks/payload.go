package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Token returns the raw callback payload. Buttons built with telebot's
// markup.Data carry a "\f<unique>|<data>" encoding; it is flattened to
// "<unique>|<data>".
func Token(cb *tele.Callback) string {
	if cb == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(cb.Data, "\f"))
}

// Arg returns what follows prefix in token, or "" when token does not carry it.
func Arg(token, prefix string) string {
	rest, ok := strings.CutPrefix(token, prefix)
	if !ok {
		return ""
	}
	return rest
}

// Args splits what follows prefix into exactly n colon-separated parts. The
// last part keeps any remaining colons. It reports false when a part is empty
// or missing.
func Args(token, prefix string, n int) ([]string, bool) {
	rest, ok := strings.CutPrefix(token, prefix)
	if !ok || n <= 0 {
		return nil, false
	}
	parts := strings.SplitN(rest, ":", n)
	if len(parts) != n {
		return nil, false
	}
	for _, p := range parts {
		if p == "" {
			return nil, false
		}
	}
	return parts, true
}

// Join builds a token from a prefix and its parts.
func Join(prefix string, parts ...string) string {
	return prefix + strings.Join(parts, ":")
}
