package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// statusDir maps a task status to its directory under <root>/tasks.
// The directory is authoritative: status is reconciled from the path on read.
var statusDirs = []struct {
	Status string
	Dir    string
}{
	{StatusPending, "00-pending"},
	{StatusInProgress, "01-in-progress"},
	{StatusCompleted, "02-completed"},
}

// Workspace is a file-backed Store: one markdown file per task, YAML
// frontmatter for metadata, one directory per status.
type Workspace struct {
	Root string
	cfg  Config
}

// Open opens a workspace rooted at root. It does not create files until Init
// is called.
func Open(root string) (*Workspace, error) {
	ws := &Workspace{Root: expandHome(root)}
	// Missing config is fine until Init; defaults apply.
	_ = ws.loadOrDefaultConfig()
	return ws, nil
}

func (w *Workspace) Init() error {
	if err := os.MkdirAll(w.Root, 0o755); err != nil {
		return err
	}
	for _, sd := range statusDirs {
		if err := os.MkdirAll(filepath.Join(w.Root, "tasks", sd.Dir), 0o755); err != nil {
			return err
		}
	}
	return w.ensureConfig()
}

func (w *Workspace) Add(in AddTaskInput) (*Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	now := timeNow()
	id := "tsk_" + newULID()
	meta := TaskMeta{
		Schema:      1,
		ID:          id,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Status:      StatusPending,
		Priority:    NormalizePriority(in.Priority),
		Tags:        dedupeStrings(in.Tags),
		Due:         strings.TrimSpace(in.Due),
		CreatedAt:   &now,
		UpdatedAt:   &now,
	}
	dir := w.statusDir(StatusPending)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	filename := fmt.Sprintf("%s__%s.md", id, slugify(meta.Title))
	path := filepath.Join(dir, filename)

	task := &Task{TaskMeta: meta, Path: path}
	if err := writeTaskFile(task); err != nil {
		return nil, err
	}
	return task, nil
}

func (w *Workspace) GetAll() ([]Task, error) {
	var out []Task
	for _, sd := range statusDirs {
		tasks, err := w.readStatusDir(sd.Status, sd.Dir)
		if err != nil {
			return nil, err
		}
		out = append(out, tasks...)
	}
	sortRecentFirst(out)
	return out, nil
}

func (w *Workspace) GetByID(id string) (*Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalid
	}
	path, err := w.findTaskPath(id)
	if err != nil {
		return nil, err
	}
	t, err := readTaskFile(path)
	if err != nil {
		return nil, err
	}
	w.reconcileTaskFromPath(t)
	return t, nil
}

func (w *Workspace) UpdateStatus(id, status string) (*Task, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}
	task, err := w.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !ValidTransition(task.Status, status) {
		return nil, fmt.Errorf("%w: cannot move %s task to %s", ErrInvalid, task.Status, status)
	}

	oldPath := task.Path
	newDir := w.statusDir(status)
	if err := os.MkdirAll(newDir, 0o755); err != nil {
		return nil, err
	}
	newPath := filepath.Join(newDir, filepath.Base(oldPath))
	if err := os.Rename(oldPath, newPath); err != nil {
		return nil, err
	}

	now := timeNow()
	task.Path = newPath
	task.Status = status
	task.UpdatedAt = &now
	if status == StatusCompleted {
		task.CompletedAt = &now
	} else {
		task.CompletedAt = nil
	}
	if err := writeTaskFile(task); err != nil {
		return nil, err
	}
	return task, nil
}

func (w *Workspace) Update(id string, fields UpdateFields) (*Task, error) {
	task, err := w.GetByID(id)
	if err != nil {
		return nil, err
	}
	if fields.Title != nil {
		title := strings.TrimSpace(*fields.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title is required", ErrInvalid)
		}
		task.Title = title
	}
	if fields.Description != nil {
		task.Description = strings.TrimSpace(*fields.Description)
	}
	if fields.Priority != nil {
		task.Priority = NormalizePriority(*fields.Priority)
	}
	if fields.Due != nil {
		task.Due = strings.TrimSpace(*fields.Due)
	}
	if fields.Tags != nil {
		task.Tags = dedupeStrings(fields.Tags)
	}
	now := timeNow()
	task.UpdatedAt = &now
	if err := writeTaskFile(task); err != nil {
		return nil, err
	}
	return task, nil
}

func (w *Workspace) Delete(id string) error {
	path, err := w.findTaskPath(id)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func (w *Workspace) FilterByStatus(status string) ([]Task, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}
	for _, sd := range statusDirs {
		if sd.Status != status {
			continue
		}
		tasks, err := w.readStatusDir(sd.Status, sd.Dir)
		if err != nil {
			return nil, err
		}
		sortRecentFirst(tasks)
		return tasks, nil
	}
	return nil, nil
}

func (w *Workspace) readStatusDir(status, dir string) ([]Task, error) {
	var out []Task
	root := filepath.Join(w.Root, "tasks", dir)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d == nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		t, err := readTaskFile(path)
		if err != nil {
			// skip broken task files
			return nil
		}
		t.Status = status
		out = append(out, *t)
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return out, nil
}

func (w *Workspace) findTaskPath(id string) (string, error) {
	idNorm := strings.ToUpper(strings.TrimSpace(id))
	var hit string
	root := filepath.Join(w.Root, "tasks")
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d == nil || d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".md") {
			return nil
		}
		// Filenames start with the task id.
		if strings.HasPrefix(strings.ToUpper(name), idNorm+"__") {
			hit = path
			return fs.SkipAll
		}
		return nil
	})
	if hit == "" {
		return "", ErrNotFound
	}
	return hit, nil
}

func (w *Workspace) statusDir(status string) string {
	for _, sd := range statusDirs {
		if sd.Status == status {
			return filepath.Join(w.Root, "tasks", sd.Dir)
		}
	}
	return filepath.Join(w.Root, "tasks", statusDirs[0].Dir)
}

func (w *Workspace) reconcileTaskFromPath(t *Task) {
	if t == nil {
		return
	}
	dir := filepath.Base(filepath.Dir(t.Path))
	for _, sd := range statusDirs {
		if sd.Dir == dir {
			t.Status = sd.Status
			return
		}
	}
}

func writeTaskFile(t *Task) error {
	yamlBytes, err := yaml.Marshal(&t.TaskMeta)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(yamlBytes)
	buf.WriteString("---\n")
	return atomicWriteFile(t.Path, buf.Bytes(), 0o644)
}

func readTaskFile(path string) (*Task, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	meta, err := parseFrontmatter(b)
	if err != nil {
		return nil, err
	}
	return &Task{TaskMeta: *meta, Path: path}, nil
}

func parseFrontmatter(b []byte) (*TaskMeta, error) {
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	if !strings.HasPrefix(s, "---\n") {
		return nil, fmt.Errorf("%w: missing frontmatter", ErrInvalid)
	}
	parts := strings.SplitN(s, "\n---\n", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: invalid frontmatter delimiters", ErrInvalid)
	}
	yamlPart := strings.TrimPrefix(parts[0], "---\n")
	var meta TaskMeta
	if err := yaml.Unmarshal([]byte(yamlPart), &meta); err != nil {
		return nil, err
	}
	if meta.Schema == 0 {
		meta.Schema = 1
	}
	return &meta, nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) || path == "~" {
		home, _ := os.UserHomeDir()
		if home != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func atomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%d", timeNow().UnixNano()))
	if err := os.WriteFile(tmp, data, perm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	// Rename is atomic on same filesystem.
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
