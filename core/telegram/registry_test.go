package telegram

import (
	"context"
	"testing"

	"github.com/m3rciful/crmbot/core/telegram/commands"
	"github.com/m3rciful/crmbot/core/telegram/event"
)

func named(name string, hits *[]string) event.HandlerFunc {
	return func(context.Context, *event.Event, event.Responder) error {
		*hits = append(*hits, name)
		return nil
	}
}

func TestRegistryExactBeforePrefix(t *testing.T) {
	var hits []string
	reg := NewRegistry()
	if err := reg.HandlePrefix("task:", named("task_detail", &hits)); err != nil {
		t.Fatal(err)
	}
	if err := reg.HandleExact("task:create", named("task_create", &hits)); err != nil {
		t.Fatal(err)
	}

	tests := map[string]string{
		"task:create": "task:create",
		"task:abc123": "task:*",
	}
	for token, route := range tests {
		h, got, ok := reg.MatchCallback(token)
		if !ok || got != route {
			t.Fatalf("MatchCallback(%q) = %q, %v; want %q", token, got, ok, route)
		}
		_ = h(context.Background(), &event.Event{}, &event.Recorder{})
	}
	if hits[0] != "task_create" || hits[1] != "task_detail" {
		t.Fatalf("hits = %v", hits)
	}
	if _, _, ok := reg.MatchCallback("deal:1"); ok {
		t.Fatal("unexpected match for unregistered token")
	}
}

func TestRegistryRejectsShadowedPrefix(t *testing.T) {
	var hits []string
	reg := NewRegistry()
	if err := reg.HandlePrefix("task:status:", named("status", &hits)); err != nil {
		t.Fatal(err)
	}
	if err := reg.HandlePrefix("task:", named("detail", &hits)); err != nil {
		t.Fatalf("broader prefix after narrower one must be accepted: %v", err)
	}
	if err := reg.HandlePrefix("task:setstatus:", named("set", &hits)); err == nil {
		t.Fatal("prefix shadowed by task: must be rejected")
	}
	if err := reg.HandleExact("menu:main", named("menu", &hits)); err != nil {
		t.Fatal(err)
	}
	if err := reg.HandleExact("menu:main", named("menu", &hits)); err == nil {
		t.Fatal("duplicate exact token must be rejected")
	}
	if _, route, _ := reg.MatchCallback("task:status:42"); route != "task:status:*" {
		t.Fatalf("route = %q", route)
	}
}

func TestRegistryCommands(t *testing.T) {
	var hits []string
	reg := NewRegistry()
	if err := reg.RegisterCommand("/task", commands.Command{Handler: named("task", &hits), Description: "Find a task", Aliases: []string{"t"}}); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterCommand("cancel", commands.Command{Handler: named("cancel", &hits), Description: "Cancel", Hidden: true}); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterCommand("task", commands.Command{Handler: named("task", &hits), Description: "dup"}); err == nil {
		t.Fatal("duplicate command must be rejected")
	}

	if key, _, ok := reg.LookupCommand("T"); !ok || key != "/task" {
		t.Fatalf("alias lookup = %q, %v", key, ok)
	}
	visible := reg.ListCommands(true)
	if len(visible) != 1 || visible[0].Text != "task" {
		t.Fatalf("visible = %+v", visible)
	}
	if all := reg.ListCommands(false); len(all) != 2 {
		t.Fatalf("all = %+v", all)
	}
}
