package vote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	cases := []struct {
		name  string
		votes []Vote
		want  Vote
	}{
		{
			name:  "unanimous numeric",
			votes: []Vote{Three, Three, Three},
			want:  Three,
		},
		{
			name:  "split votes take the max",
			votes: []Vote{Five, Eight},
			want:  Eight,
		},
		{
			name:  "unknown votes are excluded from the max",
			votes: []Vote{Unknown, Two, Unknown},
			want:  Two,
		},
		{
			name:  "only unknown votes",
			votes: []Vote{Unknown, Unknown},
			want:  Unknown,
		},
		{
			name:  "no votes at all",
			votes: nil,
			want:  Unknown,
		},
		{
			name:  "infinite tops everything",
			votes: []Vote{TwentyOne, Infinite, One},
			want:  Infinite,
		},
		{
			name:  "unanimous infinite",
			votes: []Vote{Infinite, Infinite},
			want:  Infinite,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Outcome(tc.votes))
		})
	}
}

func TestOutcomeIsOrderIndependent(t *testing.T) {
	a := Outcome([]Vote{One, Thirteen, Five})
	b := Outcome([]Vote{Thirteen, Five, One})
	assert.Equal(t, a, b)
	assert.Equal(t, Thirteen, a)
}

func TestValid(t *testing.T) {
	for _, v := range []Vote{Unknown, One, Two, Three, Five, Eight, Thirteen, TwentyOne, Infinite} {
		assert.True(t, Valid(v), "expected %q to be castable", v)
	}
	assert.False(t, Valid(Hidden), "Hidden is a projection marker, not a castable vote")
	assert.False(t, Valid(Vote("Four")))
	assert.False(t, Valid(Vote("")))
}
