package dialogue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxtask/internal/intent"
	"voxtask/internal/store"
)

func newTestEngine(t *testing.T, policy store.EngineConfig) (*Engine, *Session, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	eng := New(mem, nil, policy, nil)
	return eng, NewSession(), mem
}

func defaultPolicy() store.EngineConfig {
	return store.DefaultEngineConfig()
}

func mustAdd(t *testing.T, mem *store.Memory, title string) *store.Task {
	t.Helper()
	task, err := mem.Add(store.AddTaskInput{Title: title})
	require.NoError(t, err)
	return task
}

func TestProcessAddUsesContentVerbatim(t *testing.T) {
	eng, sess, mem := newTestEngine(t, defaultPolicy())
	ctx := context.Background()

	res := eng.Process(ctx, sess, "add buy milk")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, intent.ActionAdd, res.Action)
	require.NotNil(t, res.Task)
	assert.Equal(t, "buy milk", res.Task.Title)

	tasks, err := mem.GetAll()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "buy milk", tasks[0].Title)
	assert.Equal(t, store.StatusPending, tasks[0].Status)
}

func TestProcessAddWithoutContentFails(t *testing.T) {
	eng, sess, mem := newTestEngine(t, defaultPolicy())

	res := eng.Process(context.Background(), sess, "add")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "what to add")

	tasks, _ := mem.GetAll()
	assert.Empty(t, tasks)
}

func TestProcessCompleteRoundTrip(t *testing.T) {
	eng, sess, _ := newTestEngine(t, defaultPolicy())
	ctx := context.Background()

	res := eng.Process(ctx, sess, "add Buy milk")
	require.True(t, res.Success, res.Message)

	res = eng.Process(ctx, sess, "complete Buy milk")
	require.True(t, res.Success, res.Message)
	require.NotNil(t, res.Task)
	assert.Equal(t, store.StatusCompleted, res.Task.Status)

	// Completing again must fail and say so, not crash or no-op silently.
	res = eng.Process(ctx, sess, "complete Buy milk")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "already completed")
}

func TestProcessDeleteConfirmYes(t *testing.T) {
	eng, sess, mem := newTestEngine(t, defaultPolicy())
	ctx := context.Background()
	mustAdd(t, mem, "Buy groceries")

	res := eng.Process(ctx, sess, "delete Buy groceries")
	assert.False(t, res.Success)
	assert.True(t, res.RequiresConfirmation)
	assert.Equal(t, intent.ActionDelete, res.Action)
	require.NotNil(t, sess.Pending())
	assert.Equal(t, PendingConfirmation, sess.Pending().Kind)

	res = eng.Process(ctx, sess, "yes")
	assert.True(t, res.Success, res.Message)
	assert.Nil(t, sess.Pending())

	tasks, err := mem.GetAll()
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestProcessCancelNeverMutates(t *testing.T) {
	ctx := context.Background()

	for _, utterance := range []string{
		"delete Buy groceries",
		"rename Buy groceries to Buy fruit",
	} {
		eng, sess, mem := newTestEngine(t, defaultPolicy())
		mustAdd(t, mem, "Buy groceries")

		res := eng.Process(ctx, sess, utterance)
		require.True(t, res.RequiresConfirmation, "utterance %q: %s", utterance, res.Message)

		res = eng.Process(ctx, sess, "no")
		assert.True(t, res.Success, "cancellation is not a failure")
		assert.Contains(t, res.Message, "cancelled")
		assert.Nil(t, sess.Pending())

		tasks, err := mem.GetAll()
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, "Buy groceries", tasks[0].Title)
		assert.Equal(t, store.StatusPending, tasks[0].Status)
	}
}

func TestProcessDisambiguationByNumber(t *testing.T) {
	eng, sess, mem := newTestEngine(t, defaultPolicy())
	ctx := context.Background()
	// Memory returns most-recent-first, so add in reverse display order.
	mustAdd(t, mem, "Team meeting prep")
	mustAdd(t, mem, "Meeting with Arjun")

	res := eng.Process(ctx, sess, "delete the meeting task")
	assert.False(t, res.Success)
	assert.True(t, res.RequiresDisambiguation)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "Meeting with Arjun", res.Candidates[0].Title)
	assert.Equal(t, "Team meeting prep", res.Candidates[1].Title)

	// Picking 1 chains into a delete confirmation for that candidate only.
	res = eng.Process(ctx, sess, "1")
	assert.True(t, res.RequiresConfirmation)
	assert.Contains(t, res.Message, "Meeting with Arjun")

	res = eng.Process(ctx, sess, "yes")
	require.True(t, res.Success, res.Message)

	tasks, err := mem.GetAll()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Team meeting prep", tasks[0].Title)
}

func TestProcessDisambiguationByText(t *testing.T) {
	eng, sess, mem := newTestEngine(t, defaultPolicy())
	ctx := context.Background()
	mustAdd(t, mem, "Team meeting prep")
	mustAdd(t, mem, "Meeting with Arjun")

	res := eng.Process(ctx, sess, "complete the meeting task")
	require.True(t, res.RequiresDisambiguation, res.Message)

	res = eng.Process(ctx, sess, "prep")
	require.True(t, res.Success, res.Message)
	require.NotNil(t, res.Task)
	assert.Equal(t, "Team meeting prep", res.Task.Title)
	assert.Equal(t, store.StatusCompleted, res.Task.Status)
}

func TestProcessDisambiguationCancel(t *testing.T) {
	eng, sess, mem := newTestEngine(t, defaultPolicy())
	ctx := context.Background()
	mustAdd(t, mem, "Team meeting prep")
	mustAdd(t, mem, "Meeting with Arjun")

	res := eng.Process(ctx, sess, "delete the meeting task")
	require.True(t, res.RequiresDisambiguation)

	res = eng.Process(ctx, sess, "cancel")
	assert.True(t, res.Success)
	assert.Nil(t, sess.Pending())

	tasks, _ := mem.GetAll()
	assert.Len(t, tasks, 2)
}

func TestProcessRepromptPreservesPending(t *testing.T) {
	eng, sess, mem := newTestEngine(t, defaultPolicy())
	ctx := context.Background()
	mustAdd(t, mem, "Buy groceries")

	res := eng.Process(ctx, sess, "delete Buy groceries")
	require.True(t, res.RequiresConfirmation)

	// An unreadable reply re-asks without dropping the in-flight delete.
	res = eng.Process(ctx, sess, "banana")
	assert.False(t, res.Success)
	assert.True(t, res.RequiresConfirmation)
	assert.Contains(t, res.Message, "yes or no")
	require.NotNil(t, sess.Pending())

	res = eng.Process(ctx, sess, "yes")
	assert.True(t, res.Success, res.Message)
	tasks, _ := mem.GetAll()
	assert.Empty(t, tasks)
}

func TestProcessNumericReferenceEmptyStore(t *testing.T) {
	eng, sess, _ := newTestEngine(t, defaultPolicy())

	res := eng.Process(context.Background(), sess, "mark task number 1 as done")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "don't have any tasks")
}

func TestProcessNumericReferenceOutOfRange(t *testing.T) {
	eng, sess, mem := newTestEngine(t, defaultPolicy())
	mustAdd(t, mem, "Buy milk")

	res := eng.Process(context.Background(), sess, "complete task 5")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "number 5 not found")
	assert.Contains(t, res.Message, "Buy milk")
}

func TestProcessNumericReferenceSelectsByPosition(t *testing.T) {
	eng, sess, mem := newTestEngine(t, defaultPolicy())
	ctx := context.Background()
	mustAdd(t, mem, "Write report")
	mustAdd(t, mem, "Call dentist")

	// Most-recent-first: position 2 is the older "Write report".
	res := eng.Process(ctx, sess, "mark task number 2 as done")
	require.True(t, res.Success, res.Message)
	require.NotNil(t, res.Task)
	assert.Equal(t, "Write report", res.Task.Title)
}

func TestProcessNoMatchListsExistingTitles(t *testing.T) {
	eng, sess, mem := newTestEngine(t, defaultPolicy())
	mustAdd(t, mem, "Write report")
	mustAdd(t, mem, "Call dentist")

	res := eng.Process(context.Background(), sess, "delete quarterly budget")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "quarterly budget")
	assert.Contains(t, res.Message, "Call dentist")
	assert.Contains(t, res.Message, "Write report")
}

func TestProcessConfirmCompletePolicy(t *testing.T) {
	policy := defaultPolicy()
	policy.ConfirmComplete = true
	eng, sess, mem := newTestEngine(t, policy)
	ctx := context.Background()
	mustAdd(t, mem, "Buy milk")

	res := eng.Process(ctx, sess, "complete Buy milk")
	assert.False(t, res.Success)
	require.True(t, res.RequiresConfirmation)

	res = eng.Process(ctx, sess, "yes")
	require.True(t, res.Success, res.Message)
	tasks, _ := mem.GetAll()
	require.Len(t, tasks, 1)
	assert.Equal(t, store.StatusCompleted, tasks[0].Status)
}

func TestProcessRequireTargetPolicy(t *testing.T) {
	ctx := context.Background()

	strict, sess, mem := newTestEngine(t, defaultPolicy())
	mustAdd(t, mem, "Buy milk")
	res := strict.Process(ctx, sess, "delete")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "which task")

	lax := defaultPolicy()
	lax.RequireTarget = false
	eng, sess2, mem2 := newTestEngine(t, lax)
	mustAdd(t, mem2, "Write report")
	mustAdd(t, mem2, "Call dentist")

	// Without a target the most recent open task is assumed.
	res = eng.Process(ctx, sess2, "delete")
	require.True(t, res.RequiresConfirmation, res.Message)
	assert.Contains(t, res.Message, "Call dentist")
}

func TestProcessModifyRename(t *testing.T) {
	eng, sess, mem := newTestEngine(t, defaultPolicy())
	ctx := context.Background()
	mustAdd(t, mem, "Buy milk")

	res := eng.Process(ctx, sess, "rename Buy milk to Buy oat milk")
	require.True(t, res.RequiresConfirmation, res.Message)
	assert.Contains(t, res.Message, "Buy oat milk")

	res = eng.Process(ctx, sess, "yes")
	require.True(t, res.Success, res.Message)

	tasks, _ := mem.GetAll()
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy oat milk", tasks[0].Title)
}

func TestProcessListVariants(t *testing.T) {
	eng, sess, mem := newTestEngine(t, defaultPolicy())
	ctx := context.Background()

	res := eng.Process(ctx, sess, "list my tasks")
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "don't have any tasks")

	task := mustAdd(t, mem, "Buy milk")
	res = eng.Process(ctx, sess, "show my tasks")
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "Buy milk")
	require.Len(t, res.Candidates, 1)

	// All done is reported distinctly from an empty store.
	_, err := mem.UpdateStatus(task.ID, store.StatusCompleted)
	require.NoError(t, err)
	res = eng.Process(ctx, sess, "list my tasks")
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "No open tasks")
}

func TestProcessListCapsAtPolicyMax(t *testing.T) {
	policy := defaultPolicy()
	policy.MaxList = 2
	eng, sess, mem := newTestEngine(t, policy)
	for _, title := range []string{"one thing", "two thing", "three thing", "four thing"} {
		mustAdd(t, mem, title)
	}

	res := eng.Process(context.Background(), sess, "list my tasks")
	require.True(t, res.Success)
	assert.Len(t, res.Candidates, 2)
	assert.Contains(t, res.Message, "and 2 more")
}

func TestProcessEmptyUtterance(t *testing.T) {
	eng, sess, _ := newTestEngine(t, defaultPolicy())

	res := eng.Process(context.Background(), sess, "   ")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "didn't catch")
}

func TestProcessUnknownIntent(t *testing.T) {
	eng, sess, _ := newTestEngine(t, defaultPolicy())

	res := eng.Process(context.Background(), sess, "flibber the jabberwock")
	assert.False(t, res.Success)
	assert.Equal(t, intent.ActionUnknown, res.Action)
	assert.Zero(t, res.Confidence)
}

func TestProcessConfirmedTaskVanished(t *testing.T) {
	eng, sess, mem := newTestEngine(t, defaultPolicy())
	ctx := context.Background()
	task := mustAdd(t, mem, "Buy groceries")

	res := eng.Process(ctx, sess, "delete Buy groceries")
	require.True(t, res.RequiresConfirmation)

	// The task disappears between prompt and answer.
	require.NoError(t, mem.Delete(task.ID))

	res = eng.Process(ctx, sess, "yes")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "anymore")
	assert.Nil(t, sess.Pending(), "pending clears once the answer is given")
}

func TestSessionReset(t *testing.T) {
	eng, sess, mem := newTestEngine(t, defaultPolicy())
	mustAdd(t, mem, "Buy groceries")

	res := eng.Process(context.Background(), sess, "delete Buy groceries")
	require.True(t, res.RequiresConfirmation)
	assert.True(t, sess.Reset())
	assert.Nil(t, sess.Pending())
	assert.False(t, sess.Reset())
}
