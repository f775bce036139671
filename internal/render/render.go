// Package render formats CRM records and reports as Telegram HTML.
package render

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/m3rciful/crmbot/internal/crm"
)

const (
	unassigned = "Unassigned"
	unknown    = "Unknown"
	untitled   = "Untitled"

	// excerptLen bounds descriptions and document contents in cards.
	excerptLen = 200
)

// Directory resolves ids referenced by records to display names.
type Directory struct {
	users   map[string]crm.User
	funnels map[string]crm.Funnel
}

// NewDirectory indexes users and funnels by id.
func NewDirectory(users []crm.User, funnels []crm.Funnel) Directory {
	d := Directory{users: make(map[string]crm.User, len(users)), funnels: make(map[string]crm.Funnel, len(funnels))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	for _, f := range funnels {
		d.funnels[f.ID] = f
	}
	return d
}

// UserName returns the display name of id, or a placeholder.
func (d Directory) UserName(id string) string {
	if id == "" {
		return unassigned
	}
	if u, ok := d.users[id]; ok {
		return u.DisplayName()
	}
	return unknown
}

// Escape quotes s for HTML parse mode.
func Escape(s string) string { return html.EscapeString(s) }

// ShortID returns the first eight characters of id.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Excerpt cuts s to n characters, appending an ellipsis when cut.
func Excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

// Day renders a date or timestamp as DD.MM.YYYY; unparsable values are
// returned as-is.
func Day(s string) string {
	day := crm.DayOf(s)
	if day == "" {
		return s
	}
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return s
	}
	return t.Format("02.01.2006")
}

// Amount formats a sum with thousands separators.
func Amount(v float64, currency string) string {
	if currency == "" {
		currency = crm.DefaultCurrency
	}
	return humanize.Commaf(v) + " " + currency
}

// Days renders a day count with its unit.
func Days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func title(s string) string {
	if strings.TrimSpace(s) == "" {
		return untitled
	}
	return s
}

type card struct {
	b strings.Builder
}

func (c *card) header(format string, args ...any) {
	fmt.Fprintf(&c.b, format, args...)
	c.b.WriteString("\n\n")
}

// field writes an escaped "label: value" line, skipping empty values.
func (c *card) field(label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(&c.b, "<b>%s:</b> %s\n", label, Escape(value))
}

func (c *card) block(label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(&c.b, "\n<b>%s:</b>\n%s", label, Escape(Excerpt(value, excerptLen)))
}

func (c *card) line(format string, args ...any) {
	fmt.Fprintf(&c.b, format, args...)
	c.b.WriteByte('\n')
}

func (c *card) String() string { return strings.TrimRight(c.b.String(), "\n") }
