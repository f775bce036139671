// Package digest holds the scheduled reports: personal daily reminders,
// the group digest, the weekly report, and ledger housekeeping.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/m3rciful/crmbot/core/logger"
	"github.com/m3rciful/crmbot/core/telegram/event"
	"github.com/m3rciful/crmbot/internal/auth"
	"github.com/m3rciful/crmbot/internal/crm"
	"github.com/m3rciful/crmbot/internal/notify"
	"github.com/m3rciful/crmbot/internal/render"
)

// Report thresholds and sizes.
const (
	TopRatio    = 0.8
	BottomRatio = 0.7
	TopSize     = 5
	BottomSize  = 3

	// LedgerRetention is how long ledger claims are kept.
	LedgerRetention = 30 * 24 * time.Hour
)

// Jobs are the scheduled job bodies.
type Jobs struct {
	auth   *auth.Service
	repo   *crm.Repo
	push   notify.Notifier
	ledger notify.Ledger
}

// NewJobs builds Jobs.
func NewJobs(svc *auth.Service, repo *crm.Repo, push notify.Notifier, ledger notify.Ledger) *Jobs {
	return &Jobs{auth: svc, repo: repo, push: push, ledger: ledger}
}

// DailyReminders sends each signed-in active user their tasks due today
// and overdue. Users with neither get nothing.
func (j *Jobs) DailyReminders(ctx context.Context) error {
	prefs, err := j.repo.Prefs(ctx)
	if err != nil {
		return fmt.Errorf("digest: prefs: %w", err)
	}
	if !prefs.Enabled(crm.CatDailyReminder, crm.ChannelPersonal) {
		return nil
	}
	tasks, err := j.repo.Tasks(ctx)
	if err != nil {
		return fmt.Errorf("digest: tasks: %w", err)
	}
	today := j.repo.Calendar().Today()
	sent := 0
	for _, s := range j.auth.Sessions().List() {
		active, err := j.auth.IsActive(ctx, s)
		if err != nil {
			logger.Warn(ctx, logger.CompDigest, "session.check_fail", slog.Int64("chat_user", s.ChatUserID), logger.Err(err))
			continue
		}
		if !active {
			continue
		}
		todays := crm.FilterTasks(tasks, s.BackendUserID, crm.FilterToday, today)
		overdue := crm.FilterTasks(tasks, s.BackendUserID, crm.FilterOverdue, today)
		if len(todays) == 0 && len(overdue) == 0 {
			continue
		}
		v := event.View{Text: render.DailyReminder(todays, overdue, today), HTML: true}
		if err := j.push.Push(ctx, s.ChatUserID, v); err != nil {
			logger.Warn(ctx, logger.CompDigest, "push.fail", slog.Int64("chat_id", s.ChatUserID), logger.Err(err))
			continue
		}
		sent++
	}
	logger.Info(ctx, logger.CompDigest, "daily_reminder.sent", slog.Int("count", sent))
	return nil
}

// GroupDigest posts yesterday's unfinished, earlier overdue, and today's
// tasks of the whole team to the group chat.
func (j *Jobs) GroupDigest(ctx context.Context) error {
	prefs, err := j.repo.Prefs(ctx)
	if err != nil {
		return fmt.Errorf("digest: prefs: %w", err)
	}
	if !prefs.GroupEnabled(crm.CatGroupDigest) {
		return nil
	}
	tasks, err := j.repo.TeamTasks(ctx, crm.FilterAll)
	if err != nil {
		return fmt.Errorf("digest: tasks: %w", err)
	}
	dir, err := j.directory(ctx)
	if err != nil {
		return err
	}

	cal := j.repo.Calendar()
	today, yesterday := cal.Today(), cal.Yesterday()
	var missed, overdue, todays []crm.Task
	for _, t := range tasks {
		if t.Done() {
			continue
		}
		switch due := t.Due(); {
		case due == "":
		case due == yesterday:
			missed = append(missed, t)
		case due < yesterday:
			overdue = append(overdue, t)
		case due == today:
			todays = append(todays, t)
		}
	}
	v := event.View{Text: render.GroupSummary(missed, overdue, todays, dir, today), HTML: true}
	return j.push.Push(ctx, prefs.GroupChatID, v)
}

// WeeklyReport posts completion ratios over tasks created in the previous
// seven days.
func (j *Jobs) WeeklyReport(ctx context.Context) error {
	prefs, err := j.repo.Prefs(ctx)
	if err != nil {
		return fmt.Errorf("digest: prefs: %w", err)
	}
	if !prefs.GroupEnabled(crm.CatWeeklyReport) {
		return nil
	}
	tasks, err := j.repo.Tasks(ctx)
	if err != nil {
		return fmt.Errorf("digest: tasks: %w", err)
	}
	users, err := j.repo.Users(ctx)
	if err != nil {
		return fmt.Errorf("digest: users: %w", err)
	}
	w := WeeklyStats(tasks, users, j.repo.Calendar())
	return j.push.Push(ctx, prefs.GroupChatID, event.View{Text: render.WeeklyReport(w), HTML: true})
}

// PruneLedger drops ledger claims older than LedgerRetention.
func (j *Jobs) PruneLedger(ctx context.Context) error {
	n, err := j.ledger.Prune(ctx, j.repo.Calendar().Now().Add(-LedgerRetention))
	if err != nil {
		return err
	}
	logger.Info(ctx, logger.CompDigest, "ledger.pruned", slog.Int64("count", n))
	return nil
}

func (j *Jobs) directory(ctx context.Context) (render.Directory, error) {
	users, err := j.repo.Users(ctx)
	if err != nil {
		return render.Directory{}, fmt.Errorf("digest: users: %w", err)
	}
	return render.NewDirectory(users, nil), nil
}

// WeeklyStats computes the weekly report over tasks created in the seven
// days before today.
func WeeklyStats(tasks []crm.Task, users []crm.User, cal crm.Calendar) render.Weekly {
	now := cal.Now()
	w := render.Weekly{
		WeekStart: cal.Day(now.AddDate(0, 0, -7)),
		WeekEnd:   cal.Day(now.AddDate(0, 0, -1)),
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName()
	}

	per := map[string]*render.Performer{}
	for _, t := range tasks {
		if !t.HasCreatedAt {
			continue
		}
		day := cal.Day(t.CreatedAt)
		if day < w.WeekStart || day > w.WeekEnd {
			continue
		}
		if t.Done() {
			w.Completed++
		} else {
			w.Open++
		}
		name, ok := names[t.AssigneeID]
		if !ok {
			continue
		}
		p := per[t.AssigneeID]
		if p == nil {
			p = &render.Performer{Name: name}
			per[t.AssigneeID] = p
		}
		p.Total++
		if t.Done() {
			p.Completed++
		}
	}

	for _, p := range per {
		switch r := p.Ratio(); {
		case r >= TopRatio:
			w.Top = append(w.Top, *p)
		case r < BottomRatio:
			w.Bottom = append(w.Bottom, *p)
		}
	}
	sort.Slice(w.Top, func(i, k int) bool { return better(w.Top[i], w.Top[k]) })
	sort.Slice(w.Bottom, func(i, k int) bool { return better(w.Bottom[k], w.Bottom[i]) })
	if len(w.Top) > TopSize {
		w.Top = w.Top[:TopSize]
	}
	if len(w.Bottom) > BottomSize {
		w.Bottom = w.Bottom[:BottomSize]
	}
	return w
}

// better orders by ratio, then completed count, then name for stability.
func better(a, b render.Performer) bool {
	if a.Ratio() != b.Ratio() {
		return a.Ratio() > b.Ratio()
	}
	if a.Completed != b.Completed {
		return a.Completed > b.Completed
	}
	return a.Name < b.Name
}
