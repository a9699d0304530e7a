package textfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_ReplacesFlaggedWords(t *testing.T) {
	f := NewDialogueFilter()

	tests := []struct {
		in   string
		want string
	}{
		{"Damn your insolence", "Dang your insolence"},
		{"begone to hell, mortal", "begone to the abyss, mortal"},
		{"DAMN", "DANG"},
		{"no flagged words here", "no flagged words here"},
		{"", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, f.Filter(tc.in))
	}
}

func TestFilter_WordBoundaries(t *testing.T) {
	f := NewDialogueFilter()
	// "hello" contains "hell" but is not a word match.
	assert.Equal(t, "hello, shell-dweller", f.Filter("hello, shell-dweller"))
	// "assassin" contains "ass".
	assert.Equal(t, "the assassin waits", f.Filter("the assassin waits"))
}

func TestFlagged(t *testing.T) {
	f := NewDialogueFilter()
	assert.True(t, f.Flagged("what the hell"))
	assert.False(t, f.Flagged("what the heck"))
}

func TestAppliesTo(t *testing.T) {
	for _, rating := range []string{"G", "pg", "PG13", "pg-13"} {
		assert.True(t, AppliesTo(rating), rating)
	}
	for _, rating := range []string{"", "R", "mature", "unrated"} {
		assert.False(t, AppliesTo(rating), rating)
	}
}
