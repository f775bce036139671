package render

import (
	"strings"

	"github.com/m3rciful/crmbot/internal/crm"
)

// Task renders a task card.
func Task(t crm.Task, dir Directory) string {
	var c card
	c.header("📋 <b>Task #%s</b>", Escape(ShortID(t.ID)))
	c.field("Title", title(t.Title))
	if t.CreatedBy != "" {
		c.field("Created by", dir.UserName(t.CreatedBy))
	}
	c.field("Priority", t.Priority)
	c.field("Status", t.Status)
	if t.EndDate != "" {
		c.field("Due", Day(t.EndDate))
	}
	c.field("Assignee", dir.UserName(t.AssigneeID))
	c.block("Description", t.Description)
	return c.String()
}

// Deal renders a deal card. client may be nil.
func Deal(d crm.Deal, client *crm.Client, dir Directory) string {
	var c card
	c.header("🎯 <b>Deal #%s</b>", Escape(ShortID(d.ID)))
	c.field("Title", title(d.DisplayTitle()))
	c.field("Client", clientName(d, client))
	if d.Amount != 0 {
		c.field("Amount", Amount(d.Amount, d.Currency))
	}
	if f, ok := dir.funnels[d.FunnelID]; ok {
		c.field("Funnel", f.Name)
		c.field("Stage", f.StageName(d.Stage))
	} else {
		c.field("Stage", d.Stage)
	}
	c.field("Owner", dir.UserName(d.AssigneeID))
	if d.HasCreatedAt {
		c.field("Created", d.CreatedAt.Format("02.01.2006"))
	}
	c.block("Description", d.Description)
	return c.String()
}

func clientName(d crm.Deal, client *crm.Client) string {
	if client != nil && client.DisplayName() != "" {
		return client.DisplayName()
	}
	return d.ContactName
}

// WonDeal announces a won deal to the group chat. client and owner may be nil.
func WonDeal(d crm.Deal, client *crm.Client, owner *crm.User) string {
	var c card
	c.header("🎉 <b>Congratulations everyone, we have a new client!</b>")
	c.field("Deal", d.Title)
	c.field("Client", clientName(d, client))
	if d.Amount != 0 {
		c.field("Amount", Amount(d.Amount, d.Currency))
	}
	if owner != nil {
		c.field("Owner", owner.DisplayName())
	}
	c.b.WriteString("\n🚀 Keep it up!")
	return c.String()
}

// Meeting renders a meeting card.
func Meeting(m crm.Meeting, dir Directory) string {
	var c card
	c.header("📅 <b>Meeting #%s</b>", Escape(ShortID(m.ID)))
	c.field("Title", title(m.Title))
	c.field("Date", Day(m.Date))
	c.field("Time", m.Time)
	var names []string
	for _, id := range m.ParticipantIDs {
		if u, ok := dir.users[id]; ok {
			names = append(names, u.DisplayName())
		}
	}
	c.field("Participants", strings.Join(names, ", "))
	c.block("Summary", m.Summary)
	return c.String()
}

// MeetingReminder warns about a meeting starting soon.
func MeetingReminder(m crm.Meeting, dir Directory) string {
	return "⏰ <b>Meeting starts soon</b>\n\n" + Meeting(m, dir)
}

// Doc renders a document card.
func Doc(d crm.Doc, dir Directory) string {
	var c card
	c.header("📄 <b>Document #%s</b>", Escape(ShortID(d.ID)))
	c.field("Title", title(d.Title))
	switch d.Type {
	case "":
	case "link":
		c.field("Type", "Link")
	default:
		c.field("Type", "Internal document")
	}
	if d.CreatedBy != "" {
		if u, ok := dir.users[d.CreatedBy]; ok {
			c.field("Author", u.DisplayName())
		}
	}
	if !d.CreatedAt.IsZero() {
		c.field("Created", d.CreatedAt.Format("02.01.2006"))
	}
	c.field("Link", d.URL)
	c.block("Content", d.Content)
	return c.String()
}

// Profile renders the signed-in user.
func Profile(u crm.User) string {
	var c card
	c.header("👤 <b>Profile</b>")
	c.field("Name", u.DisplayName())
	c.field("Login", u.Login)
	c.field("Role", u.Role)
	c.field("Email", u.Email)
	c.field("Phone", u.Phone)
	return c.String()
}

// NewTask announces a task assigned to the reader.
func NewTask(t crm.Task, dir Directory) string {
	return "🆕 <b>New task for you</b>\n\n" + Task(t, dir)
}

// NewDeal announces a newly created deal.
func NewDeal(d crm.Deal, client *crm.Client, dir Directory) string {
	return "🆕 <b>New deal</b>\n\n" + Deal(d, client, dir)
}
