// Package speech is the voice-output seam. The engine never depends on it;
// the CLI pipes reply text through a Speaker when one is configured.
package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Speaker voices a reply. Implementations must be safe to call sequentially
// and should treat failures as non-fatal to the conversation.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Noop discards all output. Used when no speech command is configured.
type Noop struct{}

func (Noop) Speak(context.Context, string) error { return nil }

// Command shells out to an external synthesis program (say, espeak, piper)
// with the reply text appended as the final argument.
type Command struct {
	name string
	args []string
}

// NewCommand parses a command line like "espeak -s 140". An empty line
// yields a Noop speaker.
func NewCommand(line string) Speaker {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Noop{}
	}
	return &Command{name: fields[0], args: fields[1:]}
}

func (c *Command) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, c.name, append(append([]string(nil), c.args...), text)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("speech command %s: %w: %s", c.name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
