// Package menu holds the callback tokens and inline keyboards of the bot.
package menu

import (
	"strconv"

	"github.com/m3rciful/crmbot/core/telegram/callbacks"
	"github.com/m3rciful/crmbot/core/telegram/event"
	"github.com/m3rciful/crmbot/core/telegram/keyboard"
	"github.com/m3rciful/crmbot/internal/crm"
)

// Exact tokens.
const (
	Main         = "menu:main"
	Tasks        = "menu:tasks"
	Deals        = "menu:deals"
	Settings     = "menu:settings"
	Profile      = "menu:profile"
	Help         = "menu:help"
	TasksToday   = "tasks:today"
	TasksOverdue = "tasks:overdue"
	TaskCreate   = "task:create"
	DealCreate   = "deal:create"
	DealsAll     = "deals:all"
	DealsMine    = "deals:mine"
	GroupChat    = "settings:groupchat"
	Notification = "settings:notifications"
)

// Prefix tokens. Narrow prefixes come before the broader ones they share a
// stem with.
const (
	TaskListPrefix      = "tasks:list:"
	TaskStatusPrefix    = "task:status:"
	TaskSetStatusPrefix = "task:setstatus:"
	TaskPrefix          = "task:"
	DealStagePrefix     = "deal:stage:"
	DealSetStagePrefix  = "deal:setstage:"
	DealPrefix          = "deal:"
	TogglePrefix        = "settings:toggle:"
)

// PageSize is the number of tasks per list page.
const PageSize = 10

const (
	back     = "🔙 Back"
	titleLen = 40
)

// TaskList is the token of one page of a filtered task list.
func TaskList(f crm.TaskFilter, page int) string {
	return callbacks.Join(TaskListPrefix, string(f), strconv.Itoa(page))
}

// ParseTaskList reads a TaskList token.
func ParseTaskList(token string) (crm.TaskFilter, int, bool) {
	parts, ok := callbacks.Args(token, TaskListPrefix, 2)
	if !ok {
		return "", 0, false
	}
	f := crm.TaskFilter(parts[0])
	page, err := strconv.Atoi(parts[1])
	if !f.Valid() || err != nil || page < 0 {
		return "", 0, false
	}
	return f, page, true
}

// TaskDetail is the token of a task card.
func TaskDetail(id string) string { return TaskPrefix + id }

// DealDetail is the token of a deal card.
func DealDetail(id string) string { return DealPrefix + id }

// Toggle is the token flipping one notification toggle.
func Toggle(c crm.Category, ch crm.Channel) string {
	return callbacks.Join(TogglePrefix, string(c), string(ch))
}

// ParseToggle reads a Toggle token.
func ParseToggle(token string) (crm.Category, crm.Channel, bool) {
	parts, ok := callbacks.Args(token, TogglePrefix, 2)
	if !ok {
		return "", "", false
	}
	c, ch := crm.Category(parts[0]), crm.Channel(parts[1])
	if !c.Valid() || (ch != crm.ChannelPersonal && ch != crm.ChannelGroup) {
		return "", "", false
	}
	return c, ch, true
}

func backRow(token string) []event.Button {
	return event.Row(event.Callback(back, token))
}

// MainMenu is the root menu. webAppURL may be empty.
func MainMenu(webAppURL string) event.Keyboard {
	kb := keyboard.Column(
		event.Callback("📋 My tasks", Tasks),
		event.Callback("🎯 Deals", Deals),
		event.Callback("⚙️ Settings", Settings),
		event.Callback("👤 Profile", Profile),
	)
	if webAppURL != "" {
		kb = append(kb, event.Row(event.Link("🌐 Open web app", webAppURL)))
	}
	return append(kb, event.Row(event.Callback("❓ Help", Help)))
}

// TasksMenu is the task section.
func TasksMenu() event.Keyboard {
	return event.Keyboard{
		event.Row(event.Callback("📅 Today", TasksToday), event.Callback("⚠️ Overdue", TasksOverdue)),
		event.Row(event.Callback("📊 All tasks", TaskList(crm.FilterAll, 0))),
		event.Row(event.Callback("➕ New task", TaskCreate)),
		backRow(Main),
	}
}

// TaskListKeyboard shows filters, the tasks of one page, and paging.
func TaskListKeyboard(tasks []crm.Task, f crm.TaskFilter, page, total int) event.Keyboard {
	filters := []struct {
		f     crm.TaskFilter
		label string
	}{{crm.FilterAll, "All"}, {crm.FilterToday, "Today"}, {crm.FilterOverdue, "Overdue"}}
	var row []event.Button
	for _, it := range filters {
		label := it.label
		if it.f == f {
			label = "✅ " + label
		}
		row = append(row, event.Callback(label, TaskList(it.f, 0)))
	}
	kb := event.Keyboard{row}

	icon := "📋"
	switch f {
	case crm.FilterToday:
		icon = "📅"
	case crm.FilterOverdue:
		icon = "⚠️"
	}
	for _, t := range tasks {
		kb = append(kb, event.Row(event.Callback(icon+" "+cut(t.Title), TaskDetail(t.ID))))
	}

	var nav []event.Button
	if page > 0 {
		nav = append(nav, event.Callback("◀️ Prev", TaskList(f, page-1)))
	}
	if (page+1)*PageSize < total {
		nav = append(nav, event.Callback("Next ▶️", TaskList(f, page+1)))
	}
	if len(nav) > 0 {
		kb = append(kb, nav)
	}
	return append(kb, event.Row(event.Callback("➕ New task", TaskCreate)), backRow(Tasks))
}

// TaskActions is the keyboard under a task card.
func TaskActions(id string) event.Keyboard {
	return event.Keyboard{
		event.Row(event.Callback("📊 Change status", TaskStatusPrefix+id)),
		backRow(Tasks),
	}
}

// Statuses offers the status options of a task.
func Statuses(taskID string, statuses []crm.Status) event.Keyboard {
	buttons := make([]event.Button, 0, len(statuses))
	for _, s := range statuses {
		buttons = append(buttons, event.Callback(s.Name, callbacks.Join(TaskSetStatusPrefix, taskID, s.ID)))
	}
	return append(keyboard.Column(buttons...), backRow(TaskDetail(taskID)))
}

// DealsMenu is the deal section.
func DealsMenu() event.Keyboard {
	return append(keyboard.Column(
		event.Callback("🎯 All deals", DealsAll),
		event.Callback("👤 My deals", DealsMine),
		event.Callback("➕ New deal", DealCreate),
	), backRow(Main))
}

// DealList links every listed deal.
func DealList(deals []crm.Deal) event.Keyboard {
	buttons := make([]event.Button, 0, len(deals))
	for _, d := range deals {
		buttons = append(buttons, event.Callback("🎯 "+cut(d.DisplayTitle()), DealDetail(d.ID)))
	}
	return append(keyboard.Column(buttons...), backRow(Deals))
}

// DealActions is the keyboard under a deal card.
func DealActions(id string) event.Keyboard {
	return event.Keyboard{
		event.Row(event.Callback("📊 Change stage", DealStagePrefix+id)),
		backRow(Deals),
	}
}

// Stages offers the stages of the deal's funnel.
func Stages(dealID string, stages []crm.Stage) event.Keyboard {
	buttons := make([]event.Button, 0, len(stages))
	for _, s := range stages {
		buttons = append(buttons, event.Callback(s.Name, callbacks.Join(DealSetStagePrefix, dealID, s.ID)))
	}
	return append(keyboard.Column(buttons...), backRow(DealDetail(dealID)))
}

// SettingsMenu is the settings section.
func SettingsMenu() event.Keyboard {
	return append(keyboard.Column(
		event.Callback("🔔 Notifications", Notification),
		event.Callback("💬 Group chat", GroupChat),
	), backRow(Main))
}

// PrefsKeyboard shows both toggles of every category.
func PrefsKeyboard(p crm.Prefs, label func(crm.Category) string) event.Keyboard {
	kb := make(event.Keyboard, 0, len(crm.Categories)+1)
	for _, c := range crm.Categories {
		kb = append(kb, event.Row(
			event.Callback(mark(p.Enabled(c, crm.ChannelPersonal))+" 👤 "+label(c), Toggle(c, crm.ChannelPersonal)),
			event.Callback(mark(p.Enabled(c, crm.ChannelGroup))+" 👥", Toggle(c, crm.ChannelGroup)),
		))
	}
	return append(kb, backRow(Settings))
}

// Back is a keyboard with a single back button.
func Back(token string) event.Keyboard {
	return event.Keyboard{backRow(token)}
}

// Pick lists ambiguous lookup results, one button per item.
func Pick(labels, tokens []string) event.Keyboard {
	buttons := make([]event.Button, 0, len(labels))
	for i := range labels {
		buttons = append(buttons, event.Callback(cut(labels[i]), tokens[i]))
	}
	return keyboard.Column(buttons...)
}

func mark(on bool) string {
	if on {
		return "✅"
	}
	return "⬜️"
}

func cut(s string) string {
	r := []rune(s)
	if len(r) > titleLen {
		return string(r[:titleLen])
	}
	if s == "" {
		return "Untitled"
	}
	return s
}
