package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/crmbot/core/logger"
	"github.com/m3rciful/crmbot/core/telegram/commands"
	"github.com/m3rciful/crmbot/core/telegram/event"
)

type prefixRoute struct {
	prefix  string
	handler event.HandlerFunc
}

// Registry holds bot commands and callback routes.
//
// Callback tokens are resolved in two tiers: exact tokens first, then prefix
// routes in registration order. A prefix that an earlier prefix would always
// capture is rejected at registration, so the order in which routes are
// added cannot silently hide a handler.
type Registry struct {
	commands map[string]commands.Command
	exact    map[string]event.HandlerFunc
	prefixes []prefixRoute
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]commands.Command),
		exact:    make(map[string]event.HandlerFunc),
	}
}

func commandKey(name string) string {
	return "/" + strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
}

// RegisterCommand adds a command. Names may be given with or without the slash.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	key := commandKey(name)
	if key == "/" || cmd.Handler == nil || cmd.Description == "" {
		logger.Component(logger.CompTGWire).LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("cmd", name),
			slog.String("err_code", "invalid"),
		)
		return fmt.Errorf("invalid command registration: %q", name)
	}
	if _, exists := r.commands[key]; exists {
		return fmt.Errorf("command already registered: %s", key)
	}
	r.commands[key] = cmd
	return nil
}

// LookupCommand finds a command by name or alias and returns its canonical key.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	key := commandKey(name)
	if cmd, ok := r.commands[key]; ok {
		return key, cmd, true
	}
	for canonical, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if commandKey(alias) == key {
				return canonical, cmd, true
			}
		}
	}
	return "", commands.Command{}, false
}

// ListCommands returns the commands sorted by name, optionally without hidden ones.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	list := make([]tele.Command, 0, len(r.commands))
	for key, meta := range r.commands {
		if visibleOnly && meta.Hidden {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(key, "/"), Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// HandleExact routes the callback token equal to token.
func (r *Registry) HandleExact(token string, h event.HandlerFunc) error {
	if token == "" || h == nil {
		return fmt.Errorf("invalid callback registration: %q", token)
	}
	if _, exists := r.exact[token]; exists {
		return fmt.Errorf("callback already registered: %s", token)
	}
	r.exact[token] = h
	return nil
}

// HandlePrefix routes every callback token starting with prefix that no exact
// route and no earlier prefix claims.
func (r *Registry) HandlePrefix(prefix string, h event.HandlerFunc) error {
	if prefix == "" || h == nil {
		return fmt.Errorf("invalid callback prefix registration: %q", prefix)
	}
	for _, existing := range r.prefixes {
		if strings.HasPrefix(prefix, existing.prefix) {
			return fmt.Errorf("callback prefix %q is shadowed by %q", prefix, existing.prefix)
		}
	}
	r.prefixes = append(r.prefixes, prefixRoute{prefix: prefix, handler: h})
	return nil
}

// MatchCallback resolves token to a handler and the route that matched.
func (r *Registry) MatchCallback(token string) (event.HandlerFunc, string, bool) {
	if h, ok := r.exact[token]; ok {
		return h, token, true
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(token, p.prefix) {
			return p.handler, p.prefix + "*", true
		}
	}
	return nil, "", false
}

// Stats reports how many commands and callback routes are registered.
func (r *Registry) Stats() (cmds, exact, prefixes int) {
	return len(r.commands), len(r.exact), len(r.prefixes)
}

// InitBotCommands publishes the visible commands in the Telegram command menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	list := reg.ListCommands(true)
	if err := bot.SetCommands(list); err != nil {
		logger.Component(logger.CompTGWire).LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			logger.Err(err),
		)
		return
	}
	logger.Component(logger.CompTGWire).LogAttrs(context.Background(), slog.LevelInfo, "register.commands.set",
		slog.Int("count", len(list)),
	)
}
