package flow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTitleLen bounds task and deal titles, in characters.
const MaxTitleLen = 200

// ValidationError rejects the input of a step; the step is asked again.
type ValidationError struct {
	Step   Step
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("flow: %s: %s", e.Step, e.Reason)
}

func invalid(step Step, reason string) error {
	return &ValidationError{Step: step, Reason: reason}
}

var (
	dueDateRe = regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`)
	chatIDRe  = regexp.MustCompile(`^-?\d+$`)
)

// ParseDueDate accepts "-" for today or D.M.YYYY with optional zero
// padding, and returns the day as YYYY-MM-DD.
func ParseDueDate(s, today string) (string, error) {
	s = strings.TrimSpace(s)
	if s == SkipSentinel {
		return today, nil
	}
	if !dueDateRe.MatchString(s) {
		return "", invalid(StepDueDate, "use the DD.MM.YYYY format, or \"-\" for today")
	}
	t, err := time.Parse("2.1.2006", s)
	if err != nil {
		return "", invalid(StepDueDate, "no such date")
	}
	return t.Format("2006-01-02"), nil
}

// ParseChatID accepts a non-zero signed integer.
func ParseChatID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if !chatIDRe.MatchString(s) {
		return 0, invalid(StepChatID, "a chat id is a number such as -1001234567890")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id == 0 {
		return 0, invalid(StepChatID, "a chat id is a number such as -1001234567890")
	}
	return id, nil
}

func requireText(step Step, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalid(step, "the value cannot be empty")
	}
	if max > 0 && utf8.RuneCountInString(s) > max {
		return "", invalid(step, fmt.Sprintf("keep it under %d characters", max))
	}
	return s, nil
}
