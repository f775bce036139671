package middleware

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/crmbot/core/config"
	"github.com/m3rciful/crmbot/core/logger"
	tghelpers "github.com/m3rciful/crmbot/core/telegram/helpers"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	// Interval is the sustained gap between two updates of one user.
	Interval time.Duration
	// Burst is how many updates may arrive back to back.
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// IdleTTL drops per-user limiters not used for this long.
	IdleTTL time.Duration
}

type userLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware drops updates of a user exceeding the configured rate.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	var (
		mu        sync.Mutex
		limiters  = make(map[int64]*userLimiter)
		lastSweep time.Time
	)
	allow := func(userID int64, now time.Time) bool {
		mu.Lock()
		defer mu.Unlock()
		if now.Sub(lastSweep) > opts.IdleTTL {
			for id, ul := range limiters {
				if now.Sub(ul.lastSeen) > opts.IdleTTL {
					delete(limiters, id)
				}
			}
			lastSweep = now
		}
		ul, ok := limiters[userID]
		if !ok {
			ul = &userLimiter{lim: rate.NewLimiter(rate.Every(opts.Interval), opts.Burst)}
			limiters[userID] = ul
		}
		ul.lastSeen = now
		return ul.lim.AllowN(now, 1)
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := ""
			switch upd := c.Update(); {
			case upd.Callback != nil:
				kind = coreconfig.UpdateCallback
			case upd.Message != nil:
				kind = coreconfig.UpdateMessage
			}
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if allow(user.ID, time.Now()) {
				return next(c)
			}

			logger.Warn(tghelpers.BuildContext(c), logger.CompTG, "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
