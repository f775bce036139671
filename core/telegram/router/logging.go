package router

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/crmbot/core/logger"
	"github.com/m3rciful/crmbot/core/telegram/event"
	"github.com/m3rciful/crmbot/core/telegram/middleware"
)

func logHandlerSummary(ctx context.Context, c tele.Context, ev *event.Event, res event.Result, start time.Time) {
	msgs, kb := middleware.GetCounters(c)

	outcome := res.Outcome
	if outcome == "" {
		outcome = event.OutcomeOK
		if res.Err != nil {
			outcome = event.OutcomeFail
		}
	}
	status := "ok"
	switch outcome {
	case event.OutcomeFail:
		status = "fail"
	case event.OutcomeSkip:
		status = "skip"
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", res.Route),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", time.Since(start)),
	}
	if ev != nil {
		attrs = append(attrs, slog.String("kind", ev.Kind.String()))
		if ev.Command != "" {
			attrs = append(attrs, slog.String("cmd", ev.Command))
		}
		if ev.Token != "" {
			attrs = append(attrs, slog.String("token", logger.SanitizeLimit(ev.Token, 64)))
		}
	}
	if res.Err != nil {
		attrs = append(attrs,
			logger.Err(res.Err),
			slog.String("err_code", deriveErrorCode(res.Err)),
		)
	}
	level := slog.LevelInfo
	if status == "skip" {
		level = slog.LevelDebug
	}
	logger.LogEvent(ctx, logger.Component(logger.CompTG), level, "handler.handled", attrs...)
}

func deriveErrorCode(err error) string {
	type coder interface{ Code() string }
	if c, ok := err.(coder); ok {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
