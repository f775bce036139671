// Package crm decodes backend records into the typed views the bot works
// with and wraps the collection queries it needs.
package crm

import (
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/crmbot/internal/store"
)

// Backend collections.
const (
	CollUsers    = "users"
	CollTasks    = "tasks"
	CollStatuses = "statuses"
	CollDeals    = "deals"
	CollClients  = "clients"
	CollFunnels  = "salesFunnels"
	CollMeetings = "meetings"
	CollDocs     = "docs"
	CollPrefs    = "notificationPrefs"

	// PrefsDocID is the singleton notification preferences document.
	PrefsDocID = "default"
)

// Task defaults applied by the bot.
const (
	StatusNew      = "New"
	PriorityMedium = "Medium"
	StageNew       = "new"
	StageWon       = "won"
	SourceTelegram = "telegram"
	// DefaultCurrency applies to deals without a currency.
	DefaultCurrency = "UZS"
)

// TimestampLayout matches the ISO strings written by the web app.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var doneStatuses = map[string]struct{}{
	"Done":      {},
	"Выполнено": {},
	"Завершено": {},
}

// IsDone reports whether a task status counts as finished.
func IsDone(status string) bool {
	_, ok := doneStatuses[strings.TrimSpace(status)]
	return ok
}

// User is a backend account.
type User struct {
	ID             string
	Name           string
	Login          string
	Password       string
	Role           string
	Email          string
	Phone          string
	Archived       bool
	TelegramUserID string
}

// UserFrom decodes a users document.
func UserFrom(d store.Document) User {
	return User{
		ID:             d.ID(),
		Name:           d.String("name"),
		Login:          d.String("login"),
		Password:       d.String("password"),
		Role:           d.String("role"),
		Email:          d.String("email"),
		Phone:          d.String("phone"),
		Archived:       d.Bool("isArchived"),
		TelegramUserID: d.String("telegramUserId"),
	}
}

// DisplayName falls back to the login when the name is empty.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Login != "" {
		return u.Login
	}
	return u.ID
}

// ChatID returns the linked Telegram user id, or 0.
func (u User) ChatID() int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(u.TelegramUserID), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Task is a task record.
type Task struct {
	ID          string
	Title       string
	Status      string
	Priority    string
	AssigneeID  string
	AssigneeIDs []string
	CreatedBy   string
	StartDate   string
	EndDate     string
	Description string
	DealID      string
	Archived    bool
	CreatedAt   time.Time
	// HasCreatedAt is false when createdAt is missing or unparsable.
	HasCreatedAt bool
}

// TaskFrom decodes a tasks document.
func TaskFrom(d store.Document) Task {
	t := Task{
		ID:          d.ID(),
		Title:       d.String("title"),
		Status:      d.String("status"),
		Priority:    d.String("priority"),
		AssigneeID:  d.String("assigneeId"),
		AssigneeIDs: d.Strings("assigneeIds"),
		CreatedBy:   d.String("createdByUserId"),
		StartDate:   d.String("startDate"),
		EndDate:     d.String("endDate"),
		Description: d.String("description"),
		DealID:      d.String("dealId"),
		Archived:    d.Bool("isArchived"),
	}
	t.CreatedAt, t.HasCreatedAt = d.Time("createdAt")
	return t
}

// AssignedTo reports whether userID is the assignee or a co-assignee.
func (t Task) AssignedTo(userID string) bool {
	if userID == "" {
		return false
	}
	if t.AssigneeID == userID {
		return true
	}
	for _, id := range t.AssigneeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Done reports whether the task is finished.
func (t Task) Done() bool { return IsDone(t.Status) }

// Due returns the due day as YYYY-MM-DD, or "" when unset.
func (t Task) Due() string { return DayOf(t.EndDate) }

// Deal is a sales deal.
type Deal struct {
	ID          string
	Title       string
	ContactName string
	ClientID    string
	FunnelID    string
	Stage       string
	AssigneeID  string
	Description string
	Amount      float64
	Currency    string
	Source      string
	Archived    bool

	CreatedAt    time.Time
	HasCreatedAt bool
	// WonAt falls back to updatedAt when wonAt is absent.
	WonAt    time.Time
	HasWonAt bool
}

// DealFrom decodes a deals document.
func DealFrom(d store.Document) Deal {
	deal := Deal{
		ID:          d.ID(),
		Title:       d.String("title"),
		ContactName: d.String("contactName"),
		ClientID:    d.String("clientId"),
		FunnelID:    d.String("funnelId"),
		Stage:       d.String("stage"),
		AssigneeID:  d.String("assigneeId"),
		Description: d.String("description"),
		Amount:      d.Float("amount"),
		Currency:    d.String("currency"),
		Source:      d.String("source"),
		Archived:    d.Bool("isArchived"),
	}
	if deal.Description == "" {
		deal.Description = d.String("notes")
	}
	deal.CreatedAt, deal.HasCreatedAt = d.Time("createdAt")
	if deal.WonAt, deal.HasWonAt = d.Time("wonAt"); !deal.HasWonAt {
		deal.WonAt, deal.HasWonAt = d.Time("updatedAt")
	}
	return deal
}

// DisplayTitle falls back to the contact name.
func (d Deal) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.ContactName
}

// Won reports whether the deal is in the won stage.
func (d Deal) Won() bool { return d.Stage == StageWon }

// Client is a CRM client.
type Client struct {
	ID          string
	Name        string
	CompanyName string
}

// ClientFrom decodes a clients document.
func ClientFrom(d store.Document) Client {
	return Client{ID: d.ID(), Name: d.String("name"), CompanyName: d.String("companyName")}
}

// DisplayName falls back to the company name.
func (c Client) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.CompanyName
}

// Stage is one step of a sales funnel.
type Stage struct {
	ID   string
	Name string
}

// Funnel is a sales funnel with ordered stages.
type Funnel struct {
	ID     string
	Name   string
	Stages []Stage
}

// FunnelFrom decodes a salesFunnels document.
func FunnelFrom(d store.Document) Funnel {
	f := Funnel{ID: d.ID(), Name: d.String("name")}
	for _, s := range d.Docs("stages") {
		st := Stage{ID: s.ID(), Name: s.String("name")}
		if st.ID == "" {
			continue
		}
		if st.Name == "" {
			st.Name = st.ID
		}
		f.Stages = append(f.Stages, st)
	}
	return f
}

// StageName resolves a stage id to its label.
func (f Funnel) StageName(id string) string {
	for _, s := range f.Stages {
		if s.ID == id {
			return s.Name
		}
	}
	return id
}

// Meeting is a calendar meeting.
type Meeting struct {
	ID             string
	Title          string
	Date           string
	Time           string
	ParticipantIDs []string
	Summary        string
	Archived       bool
}

// MeetingFrom decodes a meetings document.
func MeetingFrom(d store.Document) Meeting {
	return Meeting{
		ID:             d.ID(),
		Title:          d.String("title"),
		Date:           d.String("date"),
		Time:           d.String("time"),
		ParticipantIDs: d.Strings("participantIds"),
		Summary:        d.String("summary"),
		Archived:       d.Bool("isArchived"),
	}
}

// Includes reports whether userID takes part; meetings without
// participants include everyone.
func (m Meeting) Includes(userID string) bool {
	if len(m.ParticipantIDs) == 0 {
		return true
	}
	for _, id := range m.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// StartsAt combines the meeting day and "HH:MM" time in loc. A missing
// time defaults to 10:00.
func (m Meeting) StartsAt(loc *time.Location) (time.Time, bool) {
	day := DayOf(m.Date)
	if day == "" {
		return time.Time{}, false
	}
	clock := strings.TrimSpace(m.Time)
	if clock == "" {
		clock = "10:00"
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", day+" "+clock, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Doc is a knowledge-base document.
type Doc struct {
	ID        string
	Title     string
	Type      string
	URL       string
	Content   string
	CreatedBy string
	CreatedAt time.Time
	Archived  bool
}

// DocFrom decodes a docs document.
func DocFrom(d store.Document) Doc {
	doc := Doc{
		ID:        d.ID(),
		Title:     d.String("title"),
		Type:      d.String("type"),
		URL:       d.String("url"),
		Content:   d.String("content"),
		CreatedBy: d.String("createdByUserId"),
		Archived:  d.Bool("isArchived"),
	}
	doc.CreatedAt, _ = d.Time("createdAt")
	return doc
}

// Status is a task status option.
type Status struct {
	ID   string
	Name string
}

// StatusFrom decodes a statuses document.
func StatusFrom(d store.Document) Status {
	s := Status{ID: d.ID(), Name: d.String("name")}
	if s.Name == "" {
		s.Name = s.ID
	}
	return s
}

// DayOf extracts YYYY-MM-DD from a date or timestamp string.
func DayOf(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 10 {
		return ""
	}
	if _, err := time.Parse("2006-01-02", s[:10]); err != nil {
		return ""
	}
	return s[:10]
}
