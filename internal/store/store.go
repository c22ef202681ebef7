package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

type randReader struct{}

func (randReader) Read(p []byte) (int, error) { return rand.Read(p) }

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
	timeNow     = func() time.Time { return time.Now().UTC() }
)

// Task statuses. Transitions go pending -> in-progress -> completed, or
// pending -> completed directly; nothing leaves completed.
const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

type TaskMeta struct {
	Schema      int        `yaml:"schema" json:"schema"`
	ID          string     `yaml:"id" json:"id"`
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Status      string     `yaml:"status" json:"status"`
	Priority    string     `yaml:"priority" json:"priority"`
	Tags        []string   `yaml:"tags,omitempty" json:"tags,omitempty"`
	Due         string     `yaml:"due,omitempty" json:"due,omitempty"`
	CreatedAt   *time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt   *time.Time `yaml:"updated_at" json:"updated_at"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`
}

type Task struct {
	TaskMeta `json:",inline"`
	Path     string `json:"path,omitempty"`
}

type AddTaskInput struct {
	Title       string
	Description string
	Priority    string
	Due         string
	Tags        []string
}

// UpdateFields carries partial updates; nil fields are left untouched.
type UpdateFields struct {
	Title       *string
	Description *string
	Priority    *string
	Due         *string
	Tags        []string
}

// Store is the task persistence contract consumed by the dialogue engine.
// Implementations return tasks most-recent-first.
type Store interface {
	GetAll() ([]Task, error)
	GetByID(id string) (*Task, error)
	Add(in AddTaskInput) (*Task, error)
	UpdateStatus(id, status string) (*Task, error)
	Update(id string, fields UpdateFields) (*Task, error)
	Delete(id string) error
	FilterByStatus(status string) ([]Task, error)
}

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// ValidTransition reports whether a status change is allowed.
// Reopening completed tasks is not modeled.
func ValidTransition(from, to string) bool {
	if !ValidStatus(from) || !ValidStatus(to) {
		return false
	}
	if from == to {
		return false
	}
	if from == StatusCompleted {
		return false
	}
	if from == StatusInProgress && to == StatusPending {
		return false
	}
	return true
}

func NormalizePriority(p string) string {
	p = strings.TrimSpace(strings.ToLower(p))
	switch p {
	case "urgent", "u", "p0":
		return PriorityUrgent
	case "high", "h":
		return PriorityHigh
	case "low", "l":
		return PriorityLow
	case "medium", "med", "m", "normal", "n", "":
		return PriorityMedium
	default:
		return PriorityMedium
	}
}

func (t *Task) IDShort(n int) string {
	s := t.ID
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (t *Task) StatusAbbrev() string {
	switch t.Status {
	case StatusPending:
		return "p"
	case StatusInProgress:
		return "d"
	case StatusCompleted:
		return "✓"
	default:
		return "?"
	}
}

func (t *Task) PriorityAbbrev() string {
	switch NormalizePriority(t.Priority) {
	case PriorityLow:
		return "L"
	case PriorityMedium:
		return "M"
	case PriorityHigh:
		return "H"
	case PriorityUrgent:
		return "U"
	default:
		return "?"
	}
}

// sortRecentFirst orders tasks newest-first. ULIDs are time-ordered, so the
// id tiebreak keeps same-instant tasks deterministic.
func sortRecentFirst(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ci, cj := tasks[i].CreatedAt, tasks[j].CreatedAt
		if ci != nil && cj != nil && !ci.Equal(*cj) {
			return ci.After(*cj)
		}
		return tasks[i].ID > tasks[j].ID
	})
}

func newULID() string {
	t := ulid.Timestamp(timeNow())
	entropy := ulid.Monotonic(randReader{}, 0)
	id, err := ulid.New(t, entropy)
	if err != nil {
		// fallback
		return fmt.Sprintf("%d", timeNow().UnixNano())
	}
	return strings.ToUpper(id.String())
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func slugify(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "x"
	}
	var b strings.Builder
	lastHyphen := false
	for _, r := range s {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			b.WriteRune(r)
			lastHyphen = false
		} else {
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "x"
	}
	return out
}
