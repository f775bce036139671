package notify

import (
	"context"
	"fmt"

	"github.com/m3rciful/crmbot/core/telegram/event"
	"github.com/m3rciful/crmbot/internal/crm"
	"github.com/m3rciful/crmbot/internal/render"
)

// Notifier delivers a message to any chat.
type Notifier interface {
	Push(ctx context.Context, chatID int64, v event.View) error
}

// Announcer posts won deals to the group chat, at most once per deal.
type Announcer struct {
	repo   *crm.Repo
	push   Notifier
	ledger Ledger
}

// NewAnnouncer builds an Announcer.
func NewAnnouncer(repo *crm.Repo, push Notifier, ledger Ledger) *Announcer {
	return &Announcer{repo: repo, push: push, ledger: ledger}
}

// AnnounceWon claims the deal in the ledger and queues the announcement.
// It reports whether a message was queued; nothing is sent without a group
// chat or with the dealWon group toggle off.
func (a *Announcer) AnnounceWon(ctx context.Context, d crm.Deal, prefs crm.Prefs) (bool, error) {
	if !prefs.GroupEnabled(crm.CatDealWon) {
		return false, nil
	}
	claimed, err := a.ledger.Claim(ctx, WonDealKey(d.ID))
	if err != nil || !claimed {
		return false, err
	}

	var client *crm.Client
	if d.ClientID != "" {
		if c, err := a.repo.Client(ctx, d.ClientID); err == nil {
			client = &c
		}
	}
	var owner *crm.User
	if d.AssigneeID != "" {
		if u, err := a.repo.User(ctx, d.AssigneeID); err == nil {
			owner = &u
		}
	}
	v := event.View{Text: render.WonDeal(d, client, owner), HTML: true}
	if err := a.push.Push(ctx, prefs.GroupChatID, v); err != nil {
		return false, fmt.Errorf("notify: announce deal %s: %w", d.ID, err)
	}
	return true, nil
}
