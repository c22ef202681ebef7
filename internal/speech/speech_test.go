package speech

import (
	"context"
	"testing"
)

func TestNewCommandEmptyIsNoop(t *testing.T) {
	if _, ok := NewCommand("").(Noop); !ok {
		t.Fatalf("empty command line should yield Noop")
	}
	if _, ok := NewCommand("   ").(Noop); !ok {
		t.Fatalf("blank command line should yield Noop")
	}
}

func TestCommandSpeak(t *testing.T) {
	sp := NewCommand("echo -n")
	if err := sp.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
}

func TestCommandSkipsEmptyText(t *testing.T) {
	sp := NewCommand("definitely-not-a-real-binary")
	if err := sp.Speak(context.Background(), "   "); err != nil {
		t.Fatalf("empty text should not invoke the command: %v", err)
	}
}
