package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/m3rciful/crmbot/core/logger"
	"github.com/m3rciful/crmbot/core/telegram/event"
	"github.com/m3rciful/crmbot/internal/auth"
	"github.com/m3rciful/crmbot/internal/crm"
	"github.com/m3rciful/crmbot/internal/menu"
	"github.com/m3rciful/crmbot/internal/render"
)

// Sweeper drops expired conversation state.
type Sweeper interface {
	Sweep() int
}

// Options tune the poller.
type Options struct {
	Interval    time.Duration
	FirstDelay  time.Duration
	MeetingLead time.Duration
	// DeactivatedNotice is sent once to a user whose account was archived.
	DeactivatedNotice string
}

func (o *Options) normalize() {
	if o.Interval <= 0 {
		o.Interval = 30 * time.Second
	}
	if o.FirstDelay <= 0 {
		o.FirstDelay = 10 * time.Second
	}
	if o.MeetingLead <= 0 {
		o.MeetingLead = 15 * time.Minute
	}
	if o.DeactivatedNotice == "" {
		o.DeactivatedNotice = auth.DefaultNotices().Deactivated
	}
}

// Poller periodically re-validates sessions and pushes new items to their
// users.
type Poller struct {
	auth     *auth.Service
	repo     *crm.Repo
	push     Notifier
	ledger   Ledger
	announce *Announcer
	convs    Sweeper
	opts     Options
}

// NewPoller builds a Poller. convs may be nil.
func NewPoller(svc *auth.Service, repo *crm.Repo, push Notifier, ledger Ledger, convs Sweeper, opts Options) *Poller {
	opts.normalize()
	return &Poller{
		auth:     svc,
		repo:     repo,
		push:     push,
		ledger:   ledger,
		announce: NewAnnouncer(repo, push, ledger),
		convs:    convs,
		opts:     opts,
	}
}

// Announcer returns the won-deal announcer shared with the handlers.
func (p *Poller) Announcer() *Announcer { return p.announce }

// Run ticks until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ctx = logger.WithJob(ctx, "poll")
	timer := time.NewTimer(p.opts.FirstDelay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := p.Tick(ctx); err != nil {
			logger.Error(ctx, logger.CompNotify, "poll.fail", logger.Err(err))
		}
		timer.Reset(p.opts.Interval)
	}
}

type snapshot struct {
	tasks    []crm.Task
	deals    []crm.Deal
	meetings []crm.Meeting
	dir      render.Directory
}

// Tick runs one polling pass. Delivery failures are logged, not returned.
// Sessions are validated even when the preferences read fails.
func (p *Poller) Tick(ctx context.Context) error {
	began := time.Now()
	start := p.repo.Calendar().Now()
	if p.convs != nil {
		if n := p.convs.Sweep(); n > 0 {
			logger.Debug(ctx, logger.CompFlow, "flow.expired", slog.Int("count", n))
		}
	}

	active := p.validate(ctx)
	prefs, err := p.repo.Prefs(ctx)
	if err != nil {
		return fmt.Errorf("notify: prefs: %w", err)
	}

	var errs []error
	if len(active) > 0 {
		snap, err := p.snapshot(ctx)
		if err != nil {
			errs = append(errs, err)
		} else {
			for _, s := range active {
				p.pollSession(ctx, s, snap, prefs, start)
			}
		}
	}
	if err := p.announceWon(ctx, prefs); err != nil {
		errs = append(errs, err)
	}

	logger.Debug(ctx, logger.CompNotify, "poll.tick",
		slog.Int("sessions", len(active)),
		slog.Duration("duration", logger.RoundMS(time.Since(began))),
	)
	return errors.Join(errs...)
}

// validate purges sessions of deactivated users, telling each one once, and
// returns the sessions still active.
func (p *Poller) validate(ctx context.Context) []auth.Session {
	var active []auth.Session
	for _, s := range p.auth.Sessions().List() {
		ok, err := p.auth.IsActive(ctx, s)
		if err != nil {
			logger.Warn(ctx, logger.CompNotify, "session.check_fail", slog.Int64("chat_user", s.ChatUserID), logger.Err(err))
			continue
		}
		if !ok {
			p.auth.Purge(s.ChatUserID)
			logger.Info(ctx, logger.CompNotify, "session.deactivated", slog.Int64("chat_user", s.ChatUserID))
			p.send(ctx, s.ChatUserID, event.View{Text: p.opts.DeactivatedNotice})
			continue
		}
		active = append(active, s)
	}
	return active
}

func (p *Poller) snapshot(ctx context.Context) (snapshot, error) {
	var (
		snap snapshot
		err  error
	)
	if snap.tasks, err = p.repo.Tasks(ctx); err != nil {
		return snap, fmt.Errorf("notify: tasks: %w", err)
	}
	if snap.deals, err = p.repo.Deals(ctx); err != nil {
		return snap, fmt.Errorf("notify: deals: %w", err)
	}
	if snap.meetings, err = p.repo.Meetings(ctx); err != nil {
		return snap, fmt.Errorf("notify: meetings: %w", err)
	}
	users, err := p.repo.Users(ctx)
	if err != nil {
		return snap, fmt.Errorf("notify: users: %w", err)
	}
	funnels, err := p.repo.Funnels(ctx)
	if err != nil {
		return snap, fmt.Errorf("notify: funnels: %w", err)
	}
	snap.dir = render.NewDirectory(users, funnels)
	return snap, nil
}

// pollSession sends what appeared in (LastPoll, now] and moves the
// watermark to now.
func (p *Poller) pollSession(ctx context.Context, s auth.Session, snap snapshot, prefs crm.Prefs, now time.Time) {
	uid := s.BackendUserID
	fresh := func(at time.Time, ok bool) bool {
		return ok && at.After(s.LastPoll) && !at.After(now)
	}

	if prefs.Enabled(crm.CatNewTask, crm.ChannelPersonal) {
		for _, t := range snap.tasks {
			if t.AssignedTo(uid) && fresh(t.CreatedAt, t.HasCreatedAt) {
				p.send(ctx, s.ChatUserID, event.View{Text: render.NewTask(t, snap.dir), Keyboard: menu.TaskActions(t.ID), HTML: true})
			}
		}
	}
	if prefs.Enabled(crm.CatDealCreated, crm.ChannelPersonal) {
		recipients, listed := prefs.Recipients(crm.CatDealCreated)
		for _, d := range snap.deals {
			if !fresh(d.CreatedAt, d.HasCreatedAt) {
				continue
			}
			if listed && slices.Contains(recipients, uid) || !listed && d.AssigneeID == uid {
				p.send(ctx, s.ChatUserID, event.View{Text: render.NewDeal(d, nil, snap.dir), Keyboard: menu.DealActions(d.ID), HTML: true})
			}
		}
	}
	if prefs.Enabled(crm.CatMeetingReminder, crm.ChannelPersonal) {
		loc := p.repo.Calendar().Location()
		for _, m := range snap.meetings {
			at, ok := m.StartsAt(loc)
			if !ok || !m.Includes(uid) || at.Before(now) || at.After(now.Add(p.opts.MeetingLead)) {
				continue
			}
			claimed, err := p.ledger.Claim(ctx, MeetingKey(m.ID, s.ChatUserID))
			if err != nil {
				logger.Warn(ctx, logger.CompNotify, "meeting.claim_fail", slog.String("meeting", m.ID), logger.Err(err))
				continue
			}
			if claimed {
				p.send(ctx, s.ChatUserID, event.View{Text: render.MeetingReminder(m, snap.dir), HTML: true})
			}
		}
	}
	p.auth.Sessions().Touch(s.ChatUserID, now)
}

func (p *Poller) announceWon(ctx context.Context, prefs crm.Prefs) error {
	if !prefs.GroupEnabled(crm.CatDealWon) {
		return nil
	}
	deals, err := p.repo.WonToday(ctx)
	if err != nil {
		return fmt.Errorf("notify: won deals: %w", err)
	}
	for _, d := range deals {
		sent, err := p.announce.AnnounceWon(ctx, d, prefs)
		if err != nil {
			logger.Warn(ctx, logger.CompNotify, "deal.announce_fail", slog.String("deal", d.ID), logger.Err(err))
			continue
		}
		if sent {
			logger.Info(ctx, logger.CompNotify, "deal.announced", slog.String("deal", d.ID))
		}
	}
	return nil
}

func (p *Poller) send(ctx context.Context, chatID int64, v event.View) {
	if err := p.push.Push(ctx, chatID, v); err != nil {
		logger.Warn(ctx, logger.CompNotify, "push.fail", slog.Int64("chat_id", chatID), logger.Err(err))
	}
}
