// Package notify pushes proactive messages: new work for signed-in users,
// meeting reminders and won-deal announcements.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// Ledger records which one-off notifications were already sent.
type Ledger interface {
	// Claim marks key as sent and reports whether this call claimed it.
	Claim(ctx context.Context, key string) (bool, error)
	// Prune forgets keys claimed before cutoff.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// WonDealKey is the ledger key of a won-deal announcement.
func WonDealKey(dealID string) string { return "deal.won:" + dealID }

// MeetingKey is the ledger key of a meeting reminder for one chat user.
func MeetingKey(meetingID string, chatUserID int64) string {
	return fmt.Sprintf("meeting:%s:%d", meetingID, chatUserID)
}

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{keys: make(map[string]time.Time), now: time.Now}
}

func (l *MemoryLedger) Claim(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.keys[key]; ok {
		return false, nil
	}
	l.keys[key] = l.now()
	return true, nil
}

func (l *MemoryLedger) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for k, at := range l.keys {
		if at.Before(cutoff) {
			delete(l.keys, k)
			n++
		}
	}
	return n, nil
}

// SQLLedger keeps claims in the notification_ledger table.
type SQLLedger struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLLedger wraps a migrated database.
func NewSQLLedger(db *sqlx.DB) *SQLLedger {
	return &SQLLedger{db: db, now: time.Now}
}

func (l *SQLLedger) Claim(ctx context.Context, key string) (bool, error) {
	q := l.db.Rebind(`INSERT INTO notification_ledger (key, claimed_at) VALUES (?, ?) ON CONFLICT (key) DO NOTHING`)
	res, err := l.db.ExecContext(ctx, q, key, l.now().Unix())
	if err != nil {
		return false, fmt.Errorf("ledger: claim %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ledger: claim %s: %w", key, err)
	}
	return n == 1, nil
}

func (l *SQLLedger) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	q := l.db.Rebind(`DELETE FROM notification_ledger WHERE claimed_at < ?`)
	res, err := l.db.ExecContext(ctx, q, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("ledger: prune: %w", err)
	}
	return res.RowsAffected()
}
