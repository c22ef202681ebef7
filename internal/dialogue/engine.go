package dialogue

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"voxtask/internal/intent"
	"voxtask/internal/match"
	"voxtask/internal/store"
)

// Result is what one processed utterance produced. When a confirmation or
// disambiguation is raised, Success is false and Message carries the prompt;
// the caller feeds the user's next utterance back through Process.
type Result struct {
	Success                bool          `json:"success"`
	Message                string        `json:"message"`
	Action                 intent.Action `json:"action,omitempty"`
	RequiresConfirmation   bool          `json:"requires_confirmation,omitempty"`
	RequiresDisambiguation bool          `json:"requires_disambiguation,omitempty"`
	Candidates             []store.Task  `json:"candidates,omitempty"`
	Task                   *store.Task   `json:"task,omitempty"`
	Confidence             float64       `json:"confidence,omitempty"`
}

// Engine routes utterances: pending interactions resolve first, everything
// else goes through the extractor and, when a target is needed, the matcher.
type Engine struct {
	store     store.Store
	extractor intent.Extractor
	local     *intent.Parser
	policy    store.EngineConfig
	log       *zap.Logger
}

func New(st store.Store, extractor intent.Extractor, policy store.EngineConfig, log *zap.Logger) *Engine {
	local := intent.NewParser()
	if extractor == nil {
		extractor = local
	}
	if log == nil {
		log = zap.NewNop()
	}
	if policy.MinScore <= 0 {
		policy.MinScore = match.MinScore
	}
	if policy.MaxList <= 0 {
		policy.MaxList = 5
	}
	return &Engine{store: st, extractor: extractor, local: local, policy: policy, log: log}
}

// Process handles one utterance to completion. It is safe to call from
// multiple goroutines against the same session; utterances are serialized.
func (e *Engine) Process(ctx context.Context, s *Session, utterance string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		if s.pending != nil {
			return e.reprompt(s.pending)
		}
		return fail("I didn't catch that. Try \"add buy milk\" or \"show my tasks\".")
	}

	if s.pending != nil {
		return e.resolvePending(ctx, s, utterance)
	}

	parsed, err := e.extractor.Extract(ctx, utterance)
	if err != nil {
		e.log.Warn("extractor failed, using local parser", zap.Error(err))
		parsed = e.local.Parse(utterance)
	}
	e.log.Debug("parsed utterance",
		zap.String("action", string(parsed.Action)),
		zap.String("content", parsed.Content),
		zap.Float64("confidence", parsed.Confidence))

	res := e.dispatch(s, parsed)
	res.Confidence = parsed.Confidence
	return res
}

func (e *Engine) dispatch(s *Session, parsed intent.Parsed) Result {
	switch parsed.Action {
	case intent.ActionAdd:
		return e.executeAdd(parsed)
	case intent.ActionList:
		return e.executeList()
	case intent.ActionComplete, intent.ActionDelete, intent.ActionModify:
		return e.resolveTarget(s, parsed)
	default:
		return Result{
			Action:  intent.ActionUnknown,
			Message: "I'm not sure what you want to do. You can add, complete, delete, or rename tasks, or ask for your list.",
		}
	}
}

// resolveTarget finds the one task a complete/delete/modify refers to, or
// raises a disambiguation when several qualify.
func (e *Engine) resolveTarget(s *Session, parsed intent.Parsed) Result {
	tasks, err := e.store.GetAll()
	if err != nil {
		return e.storeFailure(parsed.Action, err)
	}
	open := openTasks(tasks)

	// A number or ordinal means a position in the list as shown, and wins
	// over any text similarity.
	if n, ok := match.Reference(parsed.Content); ok {
		if len(open) == 0 {
			return fail("You don't have any tasks yet, so there is no task number to act on.").withAction(parsed.Action)
		}
		if n < 1 || n > len(open) {
			return fail(fmt.Sprintf("Task number %d not found. %s", n, orient(open))).withAction(parsed.Action)
		}
		return e.maybeConfirm(s, parsed.Action, open[n-1], parsed.NewContent)
	}

	if parsed.Content == "" {
		if e.policy.RequireTarget {
			return fail(fmt.Sprintf("Please tell me which task to %s.", verbFor(parsed.Action))).withAction(parsed.Action)
		}
		if len(open) == 0 {
			return fail("You don't have any open tasks.").withAction(parsed.Action)
		}
		return e.maybeConfirm(s, parsed.Action, open[0], parsed.NewContent)
	}

	// Match against every task, completed ones included, so completing an
	// already-done task reports "already completed" instead of "not found".
	cands := match.Match(parsed.Content, titlesOf(tasks))
	cands = filterScore(cands, e.policy.MinScore)

	switch len(cands) {
	case 0:
		if len(tasks) == 0 {
			return fail("You don't have any tasks yet.").withAction(parsed.Action)
		}
		return fail(fmt.Sprintf("I couldn't find a task matching %q. %s", parsed.Content, orient(tasks))).withAction(parsed.Action)
	case 1:
		return e.maybeConfirm(s, parsed.Action, tasks[cands[0].Index], parsed.NewContent)
	default:
		picked := make([]store.Task, 0, len(cands))
		for _, c := range cands {
			if len(picked) == e.policy.MaxList {
				break
			}
			picked = append(picked, tasks[c.Index])
		}
		return e.askDisambiguation(s, parsed.Action, picked, parsed.NewContent)
	}
}

// maybeConfirm executes the action, or parks it behind a yes/no first.
// Delete and modify always confirm; complete confirms only when the
// confirm_complete policy is on.
func (e *Engine) maybeConfirm(s *Session, action intent.Action, task store.Task, newContent string) Result {
	needsGate := action == intent.ActionDelete || action == intent.ActionModify ||
		(action == intent.ActionComplete && e.policy.ConfirmComplete)
	if !needsGate {
		return e.execute(action, &task, newContent)
	}

	var prompt string
	switch action {
	case intent.ActionDelete:
		prompt = fmt.Sprintf("Delete %q? (yes/no)", task.Title)
	case intent.ActionModify:
		prompt = fmt.Sprintf("Rename %q to %q? (yes/no)", task.Title, newContent)
	default:
		prompt = fmt.Sprintf("Mark %q as completed? (yes/no)", task.Title)
	}
	s.pending = &Pending{
		Kind:       PendingConfirmation,
		Action:     action,
		TaskID:     task.ID,
		TaskTitle:  task.Title,
		NewContent: newContent,
		Prompt:     prompt,
	}
	return Result{
		Message:              prompt,
		Action:               action,
		RequiresConfirmation: true,
		Task:                 &task,
	}
}

func (e *Engine) askDisambiguation(s *Session, action intent.Action, cands []store.Task, newContent string) Result {
	prompt := fmt.Sprintf("I found %d matching tasks. Which one do you want to %s?\n%s",
		len(cands), verbFor(action), numberedTitles(cands))
	s.pending = &Pending{
		Kind:       PendingDisambiguation,
		Action:     action,
		NewContent: newContent,
		Candidates: cands,
		Prompt:     prompt,
	}
	return Result{
		Message:                prompt,
		Action:                 action,
		RequiresDisambiguation: true,
		Candidates:             cands,
	}
}

// resolvePending consumes the pending slot with the user's reply. An
// unreadable reply keeps the slot and re-asks; only an explicit answer or
// cancellation clears it.
func (e *Engine) resolvePending(_ context.Context, s *Session, utterance string) Result {
	p := s.pending
	switch p.Kind {
	case PendingConfirmation:
		return e.resolveConfirmation(s, p, utterance)
	case PendingDisambiguation:
		return e.resolveDisambiguation(s, p, utterance)
	default:
		s.pending = nil
		return fail("Something went wrong with the conversation state. Please repeat your command.")
	}
}

func (e *Engine) resolveConfirmation(s *Session, p *Pending, utterance string) Result {
	switch ClassifyResponse(utterance) {
	case VerdictYes:
		s.pending = nil
		task, err := e.store.GetByID(p.TaskID)
		if err != nil {
			e.log.Warn("pending task vanished before execution",
				zap.String("task_id", p.TaskID), zap.Error(err))
			return fail(fmt.Sprintf("I can't find %q anymore. It may have been removed. Nothing was changed.", p.TaskTitle)).withAction(p.Action)
		}
		return e.execute(p.Action, task, p.NewContent)
	case VerdictNo:
		s.pending = nil
		return Result{
			Success: true,
			Action:  p.Action,
			Message: fmt.Sprintf("Okay, cancelled. %q was not changed.", p.TaskTitle),
		}
	default:
		return e.reprompt(p)
	}
}

func (e *Engine) resolveDisambiguation(s *Session, p *Pending, utterance string) Result {
	if ClassifyResponse(utterance) == VerdictNo {
		s.pending = nil
		return Result{
			Success: true,
			Action:  p.Action,
			Message: "Okay, cancelled. Nothing was changed.",
		}
	}

	if n, ok := match.Reference(utterance); ok {
		if n < 1 || n > len(p.Candidates) {
			return e.reprompt(p)
		}
		s.pending = nil
		return e.maybeConfirm(s, p.Action, p.Candidates[n-1], p.NewContent)
	}

	// Free text narrows against the shown candidates only.
	cands := match.Match(utterance, titlesOf(p.Candidates))
	if len(cands) == 1 || (len(cands) > 1 && cands[0].Score > cands[1].Score) {
		s.pending = nil
		return e.maybeConfirm(s, p.Action, p.Candidates[cands[0].Index], p.NewContent)
	}
	return e.reprompt(p)
}

func (e *Engine) reprompt(p *Pending) Result {
	res := Result{Action: p.Action}
	switch p.Kind {
	case PendingConfirmation:
		res.Message = "Please answer yes or no. " + p.Prompt
		res.RequiresConfirmation = true
	default:
		res.Message = "Please pick a number from the list, or say cancel.\n" + numberedTitles(p.Candidates)
		res.RequiresDisambiguation = true
		res.Candidates = append([]store.Task(nil), p.Candidates...)
	}
	return res
}

func (e *Engine) storeFailure(action intent.Action, err error) Result {
	e.log.Error("store operation failed", zap.String("action", string(action)), zap.Error(err))
	return fail("Something went wrong talking to the task store. Please try again.").withAction(action)
}

func fail(msg string) Result {
	return Result{Success: false, Message: msg}
}

func (r Result) withAction(a intent.Action) Result {
	r.Action = a
	return r
}

func verbFor(a intent.Action) string {
	switch a {
	case intent.ActionComplete:
		return "complete"
	case intent.ActionDelete:
		return "delete"
	case intent.ActionModify:
		return "rename"
	default:
		return string(a)
	}
}

func openTasks(tasks []store.Task) []store.Task {
	out := make([]store.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status != store.StatusCompleted {
			out = append(out, t)
		}
	}
	return out
}

func titlesOf(tasks []store.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func filterScore(cands []match.Candidate, min float64) []match.Candidate {
	out := cands[:0]
	for _, c := range cands {
		if c.Score >= min {
			out = append(out, c)
		}
	}
	return out
}

func numberedTitles(tasks []store.Task) string {
	var b strings.Builder
	for i, t := range tasks {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, t.Title)
	}
	return strings.TrimRight(b.String(), "\n")
}

// orient lists a few existing titles so the user knows what is there.
func orient(tasks []store.Task) string {
	n := len(tasks)
	if n == 0 {
		return "You don't have any tasks yet."
	}
	shown := tasks
	if n > 3 {
		shown = tasks[:3]
	}
	quoted := make([]string, len(shown))
	for i, t := range shown {
		quoted[i] = fmt.Sprintf("%q", t.Title)
	}
	if n > 3 {
		return fmt.Sprintf("Your tasks include %s.", strings.Join(quoted, ", "))
	}
	return fmt.Sprintf("You have %s.", strings.Join(quoted, ", "))
}
