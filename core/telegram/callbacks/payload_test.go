package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestToken(t *testing.T) {
	if got := Token(&tele.Callback{Data: "menu:main"}); got != "menu:main" {
		t.Fatalf("Token = %q", got)
	}
	if got := Token(&tele.Callback{Data: "\fconfirm|42"}); got != "confirm|42" {
		t.Fatalf("Token = %q", got)
	}
	if got := Token(nil); got != "" {
		t.Fatalf("Token(nil) = %q", got)
	}
}

func TestArgs(t *testing.T) {
	tests := []struct {
		token  string
		prefix string
		n      int
		want   []string
		ok     bool
	}{
		{"task:setstatus:abc:In progress", "task:setstatus:", 2, []string{"abc", "In progress"}, true},
		{"tasks:list:today:2", "tasks:list:", 2, []string{"today", "2"}, true},
		{"task:setstatus:abc", "task:setstatus:", 2, nil, false},
		{"task:setstatus::x", "task:setstatus:", 2, nil, false},
		{"deal:1", "task:", 1, nil, false},
	}
	for _, tt := range tests {
		got, ok := Args(tt.token, tt.prefix, tt.n)
		if ok != tt.ok || len(got) != len(tt.want) {
			t.Fatalf("Args(%q) = %v, %v", tt.token, got, ok)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("Args(%q)[%d] = %q, want %q", tt.token, i, got[i], tt.want[i])
			}
		}
	}
	if Arg("task:abc", "task:") != "abc" || Arg("deal:abc", "task:") != "" {
		t.Fatal("Arg mismatch")
	}
	if Join("task:setstatus:", "a", "b") != "task:setstatus:a:b" {
		t.Fatal("Join mismatch")
	}
}
