package crm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/m3rciful/crmbot/internal/store"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = store.ErrNotFound

// Repo exposes the backend queries used by the bot.
type Repo struct {
	st  store.Store
	cal Calendar
}

// NewRepo wraps st.
func NewRepo(st store.Store, cal Calendar) *Repo {
	return &Repo{st: st, cal: cal}
}

// Calendar returns the repository's business calendar.
func (r *Repo) Calendar() Calendar { return r.cal }

func decodeAll[T any](docs []store.Document, decode func(store.Document) T) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		out = append(out, decode(d))
	}
	return out
}

func (r *Repo) all(ctx context.Context, coll string) ([]store.Document, error) {
	docs, err := r.st.GetAll(ctx, coll)
	if err != nil {
		return nil, fmt.Errorf("crm: list %s: %w", coll, err)
	}
	return docs, nil
}

func (r *Repo) one(ctx context.Context, coll, id string) (store.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("crm: %s: empty id: %w", coll, ErrNotFound)
	}
	d, err := r.st.GetByID(ctx, coll, id)
	if err != nil {
		return nil, fmt.Errorf("crm: get %s: %w", coll, err)
	}
	return d, nil
}

// --- users ---

// Users returns every user, archived ones included.
func (r *Repo) Users(ctx context.Context) ([]User, error) {
	docs, err := r.all(ctx, CollUsers)
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, UserFrom), nil
}

// User returns one user.
func (r *Repo) User(ctx context.Context, id string) (User, error) {
	d, err := r.one(ctx, CollUsers, id)
	if err != nil {
		return User{}, err
	}
	return UserFrom(d), nil
}

// UserByLogin finds a user by login, ignoring case and surrounding spaces.
func (r *Repo) UserByLogin(ctx context.Context, login string) (User, bool, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	if login == "" {
		return User{}, false, nil
	}
	users, err := r.Users(ctx)
	if err != nil {
		return User{}, false, err
	}
	for _, u := range users {
		if strings.ToLower(strings.TrimSpace(u.Login)) == login {
			return u, true, nil
		}
	}
	return User{}, false, nil
}

// ActiveUsers returns non-archived users sorted by name, at most limit
// when limit > 0.
func (r *Repo) ActiveUsers(ctx context.Context, limit int) ([]User, error) {
	users, err := r.Users(ctx)
	if err != nil {
		return nil, err
	}
	out := users[:0]
	for _, u := range users {
		if !u.Archived {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayName() < out[j].DisplayName() })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LinkTelegram records the Telegram user id on the backend profile.
func (r *Repo) LinkTelegram(ctx context.Context, userID string, chatUserID int64) error {
	_, err := r.st.Save(ctx, CollUsers, store.Document{
		store.FieldID:    userID,
		"telegramUserId": strconv.FormatInt(chatUserID, 10),
	})
	if err != nil {
		return fmt.Errorf("crm: link telegram: %w", err)
	}
	return nil
}

// --- tasks ---

// Tasks returns every non-archived task.
func (r *Repo) Tasks(ctx context.Context) ([]Task, error) {
	docs, err := r.all(ctx, CollTasks)
	if err != nil {
		return nil, err
	}
	out := make([]Task, 0, len(docs))
	for _, d := range docs {
		if t := TaskFrom(d); !t.Archived {
			out = append(out, t)
		}
	}
	return out, nil
}

// Task returns one task.
func (r *Repo) Task(ctx context.Context, id string) (Task, error) {
	d, err := r.one(ctx, CollTasks, id)
	if err != nil {
		return Task{}, err
	}
	return TaskFrom(d), nil
}

// TaskFilter selects a task list.
type TaskFilter string

const (
	FilterAll     TaskFilter = "all"
	FilterToday   TaskFilter = "today"
	FilterOverdue TaskFilter = "overdue"
)

// Valid reports whether f is a known filter.
func (f TaskFilter) Valid() bool {
	return f == FilterAll || f == FilterToday || f == FilterOverdue
}

// Match reports whether t belongs to the list f on day today.
func (f TaskFilter) Match(t Task, today string) bool {
	switch f {
	case FilterToday:
		return !t.Done() && t.Due() == today
	case FilterOverdue:
		return IsOverdue(t, today)
	}
	return true
}

// IsOverdue reports an unfinished task due before today.
func IsOverdue(t Task, today string) bool {
	due := t.Due()
	return !t.Done() && due != "" && due < today
}

// UserTasks returns the user's tasks matching f, ordered by due date.
func (r *Repo) UserTasks(ctx context.Context, userID string, f TaskFilter) ([]Task, error) {
	tasks, err := r.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	return FilterTasks(tasks, userID, f, r.cal.Today()), nil
}

// FilterTasks returns the tasks assigned to userID that match f on today,
// ordered by due date.
func FilterTasks(tasks []Task, userID string, f TaskFilter, today string) []Task {
	out := make([]Task, 0)
	for _, t := range tasks {
		if t.AssignedTo(userID) && f.Match(t, today) {
			out = append(out, t)
		}
	}
	sortByDue(out)
	return out
}

// TeamTasks returns tasks of every user matching f.
func (r *Repo) TeamTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	tasks, err := r.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	today := r.cal.Today()
	out := make([]Task, 0)
	for _, t := range tasks {
		if f.Match(t, today) {
			out = append(out, t)
		}
	}
	sortByDue(out)
	return out, nil
}

func sortByDue(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		di, dj := tasks[i].Due(), tasks[j].Due()
		if di == "" || dj == "" {
			return di != "" && dj == ""
		}
		return di < dj
	})
}

// NewTask is the input of CreateTask.
type NewTask struct {
	Title       string
	Description string
	AssigneeID  string
	CreatedBy   string
	Status      string
	Priority    string
	StartDate   string
	EndDate     string
	Source      string
}

// CreateTask stores a new task and returns it.
func (r *Repo) CreateTask(ctx context.Context, in NewTask) (Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return Task{}, errors.New("crm: task title is required")
	}
	now := r.cal.Stamp(r.cal.Now())
	doc := store.Document{
		"entityType":      "task",
		"title":           strings.TrimSpace(in.Title),
		"status":          in.Status,
		"priority":        in.Priority,
		"assigneeId":      in.AssigneeID,
		"assigneeIds":     []any{in.AssigneeID},
		"createdByUserId": in.CreatedBy,
		"startDate":       in.StartDate,
		"endDate":         in.EndDate,
		"source":          in.Source,
		"createdAt":       now,
		"updatedAt":       now,
		"isArchived":      false,
	}
	if in.Description != "" {
		doc["description"] = in.Description
	}
	id, err := r.st.Save(ctx, CollTasks, doc)
	if err != nil {
		return Task{}, fmt.Errorf("crm: create task: %w", err)
	}
	doc[store.FieldID] = id
	return TaskFrom(doc), nil
}

// Statuses returns the task status options.
func (r *Repo) Statuses(ctx context.Context) ([]Status, error) {
	docs, err := r.all(ctx, CollStatuses)
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, StatusFrom), nil
}

// SetTaskStatus resolves statusRef by id or name and stores its name on the
// task.
func (r *Repo) SetTaskStatus(ctx context.Context, taskID, statusRef string) (Task, error) {
	task, err := r.Task(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	statuses, err := r.Statuses(ctx)
	if err != nil {
		return Task{}, err
	}
	name := ""
	for _, s := range statuses {
		if s.ID == statusRef || s.Name == statusRef {
			name = s.Name
			break
		}
	}
	if name == "" {
		return Task{}, fmt.Errorf("crm: status %q: %w", statusRef, ErrNotFound)
	}
	_, err = r.st.Save(ctx, CollTasks, store.Document{
		store.FieldID: task.ID,
		"status":      name,
		"updatedAt":   r.cal.Stamp(r.cal.Now()),
	})
	if err != nil {
		return Task{}, fmt.Errorf("crm: set task status: %w", err)
	}
	task.Status = name
	return task, nil
}

// --- deals ---

// Deals returns every non-archived deal, newest first.
func (r *Repo) Deals(ctx context.Context) ([]Deal, error) {
	docs, err := r.all(ctx, CollDeals)
	if err != nil {
		return nil, err
	}
	out := make([]Deal, 0, len(docs))
	for _, d := range docs {
		if deal := DealFrom(d); !deal.Archived {
			out = append(out, deal)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UserDeals returns the deals assigned to userID.
func (r *Repo) UserDeals(ctx context.Context, userID string) ([]Deal, error) {
	deals, err := r.Deals(ctx)
	if err != nil {
		return nil, err
	}
	out := deals[:0]
	for _, d := range deals {
		if d.AssigneeID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

// Deal returns one deal.
func (r *Repo) Deal(ctx context.Context, id string) (Deal, error) {
	d, err := r.one(ctx, CollDeals, id)
	if err != nil {
		return Deal{}, err
	}
	return DealFrom(d), nil
}

// NewDeal is the input of CreateDeal.
type NewDeal struct {
	Title       string
	Description string
	FunnelID    string
	Stage       string
	AssigneeID  string
}

// CreateDeal stores a new deal sourced from Telegram.
func (r *Repo) CreateDeal(ctx context.Context, in NewDeal) (Deal, error) {
	if strings.TrimSpace(in.Title) == "" {
		return Deal{}, errors.New("crm: deal title is required")
	}
	stage := in.Stage
	if stage == "" {
		stage = StageNew
	}
	now := r.cal.Stamp(r.cal.Now())
	doc := store.Document{
		"title":      strings.TrimSpace(in.Title),
		"stage":      stage,
		"assigneeId": in.AssigneeID,
		"source":     SourceTelegram,
		"amount":     float64(0),
		"currency":   DefaultCurrency,
		"createdAt":  now,
		"updatedAt":  now,
		"isArchived": false,
	}
	if in.FunnelID != "" {
		doc["funnelId"] = in.FunnelID
	}
	if in.Description != "" {
		doc["notes"] = in.Description
	}
	id, err := r.st.Save(ctx, CollDeals, doc)
	if err != nil {
		return Deal{}, fmt.Errorf("crm: create deal: %w", err)
	}
	doc[store.FieldID] = id
	return DealFrom(doc), nil
}

// SetDealStage moves a deal to stage. becameWon is true when the deal
// entered the won stage with this call.
func (r *Repo) SetDealStage(ctx context.Context, dealID, stage string) (deal Deal, becameWon bool, err error) {
	deal, err = r.Deal(ctx, dealID)
	if err != nil {
		return Deal{}, false, err
	}
	now := r.cal.Now()
	doc := store.Document{
		store.FieldID: deal.ID,
		"stage":       stage,
		"updatedAt":   r.cal.Stamp(now),
	}
	becameWon = stage == StageWon && !deal.Won()
	if becameWon {
		doc["wonAt"] = r.cal.Stamp(now)
		deal.WonAt, deal.HasWonAt = now, true
	}
	if _, err := r.st.Save(ctx, CollDeals, doc); err != nil {
		return Deal{}, false, fmt.Errorf("crm: set deal stage: %w", err)
	}
	deal.Stage = stage
	return deal, becameWon, nil
}

// WonToday returns deals in the won stage whose won time falls on today.
func (r *Repo) WonToday(ctx context.Context) ([]Deal, error) {
	deals, err := r.Deals(ctx)
	if err != nil {
		return nil, err
	}
	today := r.cal.Today()
	out := deals[:0]
	for _, d := range deals {
		if d.Won() && d.HasWonAt && r.cal.Day(d.WonAt) == today {
			out = append(out, d)
		}
	}
	return out, nil
}

// --- funnels, clients ---

// Funnels returns the sales funnels.
func (r *Repo) Funnels(ctx context.Context) ([]Funnel, error) {
	docs, err := r.all(ctx, CollFunnels)
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, FunnelFrom), nil
}

// Funnel returns one funnel.
func (r *Repo) Funnel(ctx context.Context, id string) (Funnel, error) {
	d, err := r.one(ctx, CollFunnels, id)
	if err != nil {
		return Funnel{}, err
	}
	return FunnelFrom(d), nil
}

// Client returns one client.
func (r *Repo) Client(ctx context.Context, id string) (Client, error) {
	d, err := r.one(ctx, CollClients, id)
	if err != nil {
		return Client{}, err
	}
	return ClientFrom(d), nil
}

// --- meetings, docs ---

// Meetings returns every non-archived meeting.
func (r *Repo) Meetings(ctx context.Context) ([]Meeting, error) {
	docs, err := r.all(ctx, CollMeetings)
	if err != nil {
		return nil, err
	}
	out := make([]Meeting, 0, len(docs))
	for _, d := range docs {
		if m := MeetingFrom(d); !m.Archived {
			out = append(out, m)
		}
	}
	return out, nil
}

// Docs returns every non-archived document.
func (r *Repo) Docs(ctx context.Context) ([]Doc, error) {
	docs, err := r.all(ctx, CollDocs)
	if err != nil {
		return nil, err
	}
	out := make([]Doc, 0, len(docs))
	for _, d := range docs {
		if doc := DocFrom(d); !doc.Archived {
			out = append(out, doc)
		}
	}
	return out, nil
}

// --- notification preferences ---

// Prefs reads the notification preferences; a missing document yields
// defaults.
func (r *Repo) Prefs(ctx context.Context) (Prefs, error) {
	d, err := r.st.GetByID(ctx, CollPrefs, PrefsDocID)
	if errors.Is(err, store.ErrNotFound) {
		return PrefsFrom(nil), nil
	}
	if err != nil {
		return Prefs{}, fmt.Errorf("crm: read prefs: %w", err)
	}
	return PrefsFrom(d), nil
}

// SetGroupChatID stores the group chat that receives group notifications.
func (r *Repo) SetGroupChatID(ctx context.Context, chatID int64) error {
	_, err := r.st.Save(ctx, CollPrefs, store.Document{
		store.FieldID:         PrefsDocID,
		"telegramGroupChatId": strconv.FormatInt(chatID, 10),
	})
	if err != nil {
		return fmt.Errorf("crm: set group chat: %w", err)
	}
	return nil
}

// TogglePref flips one toggle and returns the updated preferences.
func (r *Repo) TogglePref(ctx context.Context, c Category, ch Channel) (Prefs, error) {
	p, err := r.Prefs(ctx)
	if err != nil {
		return Prefs{}, err
	}
	cat := p.doc.Map(string(c)).Clone()
	cat[ch.field()] = !p.Enabled(c, ch)
	_, err = r.st.Save(ctx, CollPrefs, store.Document{
		store.FieldID: PrefsDocID,
		string(c):     map[string]any(cat),
	})
	if err != nil {
		return Prefs{}, fmt.Errorf("crm: toggle pref: %w", err)
	}
	doc := p.doc.Clone()
	doc[string(c)] = map[string]any(cat)
	return PrefsFrom(doc), nil
}
