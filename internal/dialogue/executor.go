package dialogue

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"voxtask/internal/intent"
	"voxtask/internal/store"
)

// execute performs one resolved action as a single store call. Store errors
// come back as failure results; nothing here panics or retries.
func (e *Engine) execute(action intent.Action, task *store.Task, newContent string) Result {
	switch action {
	case intent.ActionComplete:
		return e.executeComplete(task)
	case intent.ActionDelete:
		return e.executeDelete(task)
	case intent.ActionModify:
		return e.executeModify(task, newContent)
	default:
		return fail("I'm not sure what you want to do with that task.").withAction(action)
	}
}

func (e *Engine) executeAdd(parsed intent.Parsed) Result {
	title := strings.TrimSpace(parsed.Content)
	if title == "" {
		return fail("Please tell me what to add. For example: \"add buy milk\".").withAction(intent.ActionAdd)
	}
	task, err := e.store.Add(store.AddTaskInput{
		Title:    title,
		Priority: parsed.Meta.Priority,
		Due:      parsed.Meta.Due,
		Tags:     parsed.Meta.Tags,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalid) {
			return fail("That doesn't look like a valid task title.").withAction(intent.ActionAdd)
		}
		return e.storeFailure(intent.ActionAdd, err)
	}
	e.log.Info("task added", zap.String("task_id", task.ID), zap.String("title", task.Title))

	msg := fmt.Sprintf("Added %q.", task.Title)
	if task.Priority == store.PriorityUrgent || task.Priority == store.PriorityHigh {
		msg = fmt.Sprintf("Added %q with %s priority.", task.Title, task.Priority)
	}
	return Result{Success: true, Message: msg, Action: intent.ActionAdd, Task: task}
}

func (e *Engine) executeComplete(task *store.Task) Result {
	if task.Status == store.StatusCompleted {
		return fail(fmt.Sprintf("%q is already completed.", task.Title)).withAction(intent.ActionComplete)
	}
	updated, err := e.store.UpdateStatus(task.ID, store.StatusCompleted)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(fmt.Sprintf("I can't find %q anymore. Nothing was changed.", task.Title)).withAction(intent.ActionComplete)
		}
		return e.storeFailure(intent.ActionComplete, err)
	}
	e.log.Info("task completed", zap.String("task_id", updated.ID))
	return Result{
		Success: true,
		Message: fmt.Sprintf("Done! %q is completed.", updated.Title),
		Action:  intent.ActionComplete,
		Task:    updated,
	}
}

func (e *Engine) executeDelete(task *store.Task) Result {
	if err := e.store.Delete(task.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(fmt.Sprintf("I can't find %q anymore. Nothing was changed.", task.Title)).withAction(intent.ActionDelete)
		}
		return e.storeFailure(intent.ActionDelete, err)
	}
	e.log.Info("task deleted", zap.String("task_id", task.ID))
	return Result{
		Success: true,
		Message: fmt.Sprintf("Deleted %q.", task.Title),
		Action:  intent.ActionDelete,
		Task:    task,
	}
}

func (e *Engine) executeModify(task *store.Task, newTitle string) Result {
	newTitle = strings.TrimSpace(newTitle)
	if newTitle == "" {
		return fail(fmt.Sprintf("Please tell me what to rename %q to.", task.Title)).withAction(intent.ActionModify)
	}
	updated, err := e.store.Update(task.ID, store.UpdateFields{Title: &newTitle})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(fmt.Sprintf("I can't find %q anymore. Nothing was changed.", task.Title)).withAction(intent.ActionModify)
		}
		return e.storeFailure(intent.ActionModify, err)
	}
	e.log.Info("task renamed", zap.String("task_id", updated.ID), zap.String("title", updated.Title))
	return Result{
		Success: true,
		Message: fmt.Sprintf("Renamed %q to %q.", task.Title, updated.Title),
		Action:  intent.ActionModify,
		Task:    updated,
	}
}

func (e *Engine) executeList() Result {
	tasks, err := e.store.GetAll()
	if err != nil {
		return e.storeFailure(intent.ActionList, err)
	}
	if len(tasks) == 0 {
		return Result{
			Success: true,
			Message: "You don't have any tasks yet. Say \"add\" followed by a task to create one.",
			Action:  intent.ActionList,
		}
	}
	open := openTasks(tasks)
	if len(open) == 0 {
		return Result{
			Success: true,
			Message: "No open tasks. Everything is completed.",
			Action:  intent.ActionList,
		}
	}
	shown := open
	if len(shown) > e.policy.MaxList {
		shown = shown[:e.policy.MaxList]
	}
	var b strings.Builder
	if len(open) == 1 {
		b.WriteString("You have 1 open task:\n")
	} else {
		fmt.Fprintf(&b, "You have %d open tasks:\n", len(open))
	}
	b.WriteString(numberedTitles(shown))
	if len(open) > len(shown) {
		fmt.Fprintf(&b, "\n...and %d more.", len(open)-len(shown))
	}
	return Result{
		Success:    true,
		Message:    b.String(),
		Action:     intent.ActionList,
		Candidates: shown,
	}
}
