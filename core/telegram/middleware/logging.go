package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/crmbot/core/logger"
	"github.com/m3rciful/crmbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/crmbot/core/telegram/helpers"
)

// LoggerMiddleware attaches the request context (rid, update, user and chat
// ids) and logs one sampled receipt line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if !logger.ShouldSampleDebug() {
			return next(c)
		}

		attrs := []slog.Attr{slog.String("status", "ok")}
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
		}
		if user := c.Sender(); user != nil && user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		upd := c.Update()
		switch {
		case upd.Callback != nil:
			attrs = append(attrs, slog.String("token", logger.SanitizeLimit(callbacks.Token(upd.Callback), 128)))
		case upd.Message != nil:
			if t := c.Text(); t != "" {
				attrs = append(attrs, slog.Int("text_len", len([]rune(t))))
			}
		}
		logger.Debug(ctx, logger.CompTG, "update.received", attrs...)
		return next(c)
	}
}
