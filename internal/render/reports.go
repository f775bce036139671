package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/m3rciful/crmbot/internal/crm"
)

const (
	reminderLimit = 10
	digestLimit   = 15
)

// DailyReminder lists a user's tasks due today and overdue.
func DailyReminder(todayTasks, overdue []crm.Task, today string) string {
	var c card
	c.header("📋 <b>Daily task overview</b>")
	if len(todayTasks) == 0 {
		c.line("✅ <b>Due today:</b> none")
	} else {
		c.line("✅ <b>Due today (%d):</b>", len(todayTasks))
		list(&c, todayTasks, reminderLimit, func(t crm.Task) string {
			if t.Due() == "" {
				return " (no due date)"
			}
			return " (due " + Day(t.EndDate)[:5] + ")"
		})
	}
	c.line("")
	if len(overdue) == 0 {
		c.line("⚠️ <b>Overdue:</b> none")
	} else {
		c.line("⚠️ <b>Overdue (%d):</b>", len(overdue))
		list(&c, overdue, reminderLimit, func(t crm.Task) string {
			return " (" + Days(crm.DaysBetween(t.Due(), today)) + " late)"
		})
	}
	return c.String()
}

// GroupSummary is the morning digest posted to the group chat.
func GroupSummary(yesterday, overdue, todayTasks []crm.Task, dir Directory, today string) string {
	var c card
	c.header("📋 <b>Daily task summary</b>")
	owner := func(t crm.Task) string { return " - <b>" + Escape(dir.UserName(t.AssigneeID)) + "</b>" }

	section(&c, "📅", "Unfinished from yesterday", yesterday, owner)
	section(&c, "⚠️", "Overdue from earlier", overdue, func(t crm.Task) string {
		return owner(t) + " (" + Days(crm.DaysBetween(t.Due(), today)) + ")"
	})
	section(&c, "✅", "Due today", todayTasks, owner)
	return c.String()
}

func section(c *card, icon, label string, tasks []crm.Task, suffix func(crm.Task) string) {
	if len(tasks) == 0 {
		c.line("%s <b>%s:</b> none", icon, label)
		c.line("")
		return
	}
	c.line("%s <b>%s (%d):</b>", icon, label, len(tasks))
	list(c, tasks, digestLimit, suffix)
	c.line("")
}

// list writes numbered titles; suffix returns HTML.
func list(c *card, tasks []crm.Task, limit int, suffix func(crm.Task) string) {
	for i, t := range tasks {
		if i == limit {
			c.line("... and %d more", len(tasks)-limit)
			break
		}
		c.line("%d. %s%s", i+1, Escape(title(t.Title)), suffix(t))
	}
}

// Performer is one assignee in the weekly report.
type Performer struct {
	Name      string
	Completed int
	Total     int
}

// Ratio returns the completed share of the assignee's tasks.
func (p Performer) Ratio() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}

// Weekly is the input of WeeklyReport.
type Weekly struct {
	WeekStart string
	WeekEnd   string
	Completed int
	// Open counts tasks of the week that are not finished.
	Open   int
	Top    []Performer
	Bottom []Performer
}

// WeeklyReport renders the weekly completion report.
func WeeklyReport(w Weekly) string {
	var c card
	c.header("📊 <b>Weekly report</b> (%s – %s)", Day(w.WeekStart), Day(w.WeekEnd))
	c.line("✅ Tasks completed: %d", w.Completed)
	c.line("⚠️ Tasks still open: %d", w.Open)
	c.line("")
	if len(w.Top) > 0 {
		c.line("🏆 <b>Top performers:</b>")
		for i, p := range w.Top {
			c.line("%d. %s - %d tasks (%s done) - %s", i+1, Escape(p.Name), p.Completed, percent(p), topBadge(p))
		}
		c.line("")
	}
	if len(w.Bottom) > 0 {
		c.line("📈 <b>Needs improvement:</b>")
		for _, p := range w.Bottom {
			badge := "📝"
			if p.Ratio() >= 0.6 {
				badge = "💪"
			}
			c.line("- %s - %d tasks (%s done) - %s", Escape(p.Name), p.Completed, percent(p), badge)
		}
		c.line("")
	}
	c.line("Keep it up! 🚀")
	return c.String()
}

func percent(p Performer) string {
	return fmt.Sprintf("%.0f%%", math.Round(p.Ratio()*100))
}

func topBadge(p Performer) string {
	switch r := p.Ratio(); {
	case r >= 1:
		return "🎉"
	case r >= 0.9:
		return "👏"
	}
	return "👍"
}

// TaskList renders one page of a task list.
func TaskList(heading string, tasks []crm.Task, page, pages int, today string) string {
	var c card
	if pages > 1 {
		c.header("<b>%s</b> (page %d/%d)", Escape(heading), page+1, pages)
	} else {
		c.header("<b>%s</b>", Escape(heading))
	}
	if len(tasks) == 0 {
		c.line("No tasks.")
		return c.String()
	}
	for _, t := range tasks {
		mark := "▫️"
		switch {
		case t.Done():
			mark = "✅"
		case crm.IsOverdue(t, today):
			mark = "⚠️"
		}
		due := ""
		if t.Due() != "" {
			due = " · " + Day(t.EndDate)
		}
		c.line("%s %s%s", mark, Escape(title(t.Title)), due)
	}
	return c.String()
}

// Choices lists ambiguous lookup results as a numbered list.
func Choices(kind string, labels []string, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔎 Found %d %s:\n\n", total, kind)
	for i, l := range labels {
		fmt.Fprintf(&b, "%d. %s\n", i+1, Escape(l))
	}
	if total > len(labels) {
		fmt.Fprintf(&b, "... and %d more\n", total-len(labels))
	}
	b.WriteString("\nUse a more specific id or title to refine your query.")
	return b.String()
}

// Prefs renders the notification settings screen.
func Prefs(p crm.Prefs) string {
	var c card
	c.header("🔔 <b>Notification settings</b>")
	if p.HasGroup() {
		c.line("Group chat: <code>%d</code>", p.GroupChatID)
	} else {
		c.line("Group chat: not configured")
	}
	c.line("")
	c.line("Tap a toggle to switch it. 👤 personal, 👥 group.")
	return c.String()
}

// CategoryLabel names a notification category.
func CategoryLabel(cat crm.Category) string {
	switch cat {
	case crm.CatNewTask:
		return "New tasks"
	case crm.CatDealCreated:
		return "New deals"
	case crm.CatDealWon:
		return "Won deals"
	case crm.CatMeetingReminder:
		return "Meetings"
	case crm.CatDailyReminder:
		return "Daily reminder"
	case crm.CatGroupDigest:
		return "Group digest"
	case crm.CatWeeklyReport:
		return "Weekly report"
	}
	return string(cat)
}
