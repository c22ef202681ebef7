package store

import (
	"fmt"
	"strings"
	"sync"
)

// Memory is an in-memory Store with the same recent-first ordering as the
// file workspace. Used by --memory runs and by the engine tests.
type Memory struct {
	mu    sync.Mutex
	tasks []Task
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Add(in AddTaskInput) (*Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	now := timeNow()
	t := Task{TaskMeta: TaskMeta{
		Schema:      1,
		ID:          "tsk_" + newULID(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Status:      StatusPending,
		Priority:    NormalizePriority(in.Priority),
		Tags:        dedupeStrings(in.Tags),
		Due:         strings.TrimSpace(in.Due),
		CreatedAt:   &now,
		UpdatedAt:   &now,
	}}
	m.mu.Lock()
	defer m.mu.Unlock()
	// newest first
	m.tasks = append([]Task{t}, m.tasks...)
	return cloneTask(t), nil
}

func (m *Memory) GetAll() ([]Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, *cloneTask(t))
	}
	return out, nil
}

func (m *Memory) GetByID(id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return cloneTask(m.tasks[i]), nil
}

func (m *Memory) UpdateStatus(id, status string) (*Task, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	t := &m.tasks[i]
	if !ValidTransition(t.Status, status) {
		return nil, fmt.Errorf("%w: cannot move %s task to %s", ErrInvalid, t.Status, status)
	}
	now := timeNow()
	t.Status = status
	t.UpdatedAt = &now
	if status == StatusCompleted {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
	return cloneTask(*t), nil
}

func (m *Memory) Update(id string, fields UpdateFields) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	t := &m.tasks[i]
	if fields.Title != nil {
		title := strings.TrimSpace(*fields.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title is required", ErrInvalid)
		}
		t.Title = title
	}
	if fields.Description != nil {
		t.Description = strings.TrimSpace(*fields.Description)
	}
	if fields.Priority != nil {
		t.Priority = NormalizePriority(*fields.Priority)
	}
	if fields.Due != nil {
		t.Due = strings.TrimSpace(*fields.Due)
	}
	if fields.Tags != nil {
		t.Tags = dedupeStrings(fields.Tags)
	}
	now := timeNow()
	t.UpdatedAt = &now
	return cloneTask(*t), nil
}

func (m *Memory) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
	return nil
}

func (m *Memory) FilterByStatus(status string) ([]Task, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Task
	for _, t := range m.tasks {
		if t.Status == status {
			out = append(out, *cloneTask(t))
		}
	}
	return out, nil
}

func (m *Memory) indexLocked(id string) int {
	id = strings.TrimSpace(id)
	for i, t := range m.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func cloneTask(t Task) *Task {
	out := t
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	if t.CreatedAt != nil {
		v := *t.CreatedAt
		out.CreatedAt = &v
	}
	if t.UpdatedAt != nil {
		v := *t.UpdatedAt
		out.UpdatedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		out.CompletedAt = &v
	}
	return &out
}
