package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchExactTitleIsUniqueTop(t *testing.T) {
	titles := []string{"Buy groceries", "buy milk", "Call mom"}
	got := Match("Buy Milk", titles)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, TypeExact, got[0].Type)
}

func TestMatchExactBeatsPartial(t *testing.T) {
	titles := []string{"Buy milk and eggs", "Buy milk"}
	got := Match("buy milk", titles)
	require.Len(t, got, 1)
	assert.Equal(t, "Buy milk", got[0].Title)
	assert.Equal(t, TypeExact, got[0].Type)
}

func TestMatchPartialBothDirections(t *testing.T) {
	titles := []string{"Meeting with Arjun", "Water the plants"}

	// query contained in title
	got := Match("meeting", titles)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, 0.8, got[0].Score)
	assert.Equal(t, TypePartial, got[0].Type)

	// title contained in query
	got = Match("the meeting with arjun tomorrow morning, water the plants", titles)
	require.NotEmpty(t, got)
	assert.Equal(t, TypePartial, got[0].Type)
}

func TestMatchFuzzyTokenOverlap(t *testing.T) {
	titles := []string{"Prepare quarterly report draft", "Call dentist"}
	got := Match("quarterly draft report", titles)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, TypeFuzzy, got[0].Type)
	// 3 shared tokens of {prepare,quarterly,report,draft} -> 3/4 * 0.6
	assert.InDelta(t, 0.45, got[0].Score, 0.0001)
}

func TestMatchBelowThresholdReturnsEmpty(t *testing.T) {
	titles := []string{"Water the plants", "Call dentist"}
	assert.Empty(t, Match("schedule flight booking", titles))
}

func TestMatchShortTokensCarryNoSignal(t *testing.T) {
	// "go" and "to" are under the token length floor.
	titles := []string{"Go to gym"}
	assert.Empty(t, Match("go to it", titles))
}

func TestMatchTiePreservesInputOrder(t *testing.T) {
	titles := []string{"Meeting with Arjun", "Team meeting prep"}
	got := Match("meeting", titles)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, 1, got[1].Index)
	assert.Equal(t, got[0].Score, got[1].Score)
}

func TestReference(t *testing.T) {
	tests := []struct {
		query string
		want  int
		ok    bool
	}{
		{"1", 1, true},
		{"mark task number 2 as done", 2, true},
		{"delete the third one", 3, true},
		{"the tenth task", 10, true},
		{"42", 42, true},
		{"complete buy milk", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := Reference(tt.query)
		assert.Equal(t, tt.ok, ok, "query %q", tt.query)
		if tt.ok {
			assert.Equal(t, tt.want, got, "query %q", tt.query)
		}
	}
}

func TestRankAllMergesTiers(t *testing.T) {
	titles := []string{"Buy milk", "Buy milk and eggs", "Milk the cows quickly"}
	got := RankAll("buy milk", titles)
	require.Len(t, got, 2)
	assert.Equal(t, TypeExact, got[0].Type)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, TypePartial, got[1].Type)
	assert.Equal(t, 1, got[1].Index)
}
