package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/crmbot/core/logger"
	"github.com/m3rciful/crmbot/core/telegram/event"
)

// ProtectedFunc is a handler that runs on behalf of a backend user.
type ProtectedFunc func(ctx context.Context, ev *event.Event, resp event.Responder, userID string) error

// Notices are the replies sent when the guard rejects a call.
type Notices struct {
	NotSignedIn string
	Deactivated string
	Failure     string
}

// DefaultNotices returns the stock guard replies.
func DefaultNotices() Notices {
	return Notices{
		NotSignedIn: "❌ You are not signed in. Use /start to sign in.",
		Deactivated: "❌ Your account has been deactivated. Use /start to sign in again.",
		Failure:     "⚠️ Something went wrong. Please try again later.",
	}
}

// Guard wraps handlers that require an active session.
type Guard struct {
	svc     *Service
	notices Notices
}

// NewGuard builds a Guard.
func NewGuard(svc *Service, notices Notices) *Guard {
	return &Guard{svc: svc, notices: notices}
}

// Protect runs h only for chat users with an active session. Rejections are
// answered with a short notice and never returned as errors.
func (g *Guard) Protect(h ProtectedFunc) event.HandlerFunc {
	return func(ctx context.Context, ev *event.Event, resp event.Responder) error {
		sess, err := g.svc.Resolve(ctx, ev.ChatUserID)
		if err == nil {
			return h(ctx, ev, resp, sess.BackendUserID)
		}

		notice := g.notices.Failure
		switch {
		case errors.Is(err, ErrNoSession):
			notice = g.notices.NotSignedIn
		case errors.Is(err, ErrDeactivated):
			notice = g.notices.Deactivated
		default:
			logger.Error(ctx, logger.CompAuth, "guard.fail", logger.Err(err))
		}
		logger.Debug(ctx, logger.CompAuth, "guard.reject", slog.String("status", "rejected"), logger.Err(err))
		if rerr := resp.Reply(ctx, event.View{Text: notice}); rerr != nil {
			logger.Warn(ctx, logger.CompAuth, "guard.reply_fail", logger.Err(rerr))
		}
		return nil
	}
}
