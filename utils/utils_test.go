package utils

import (
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/spyserver/models"
)

func TestShuffle_KeepsElementsAndInput(t *testing.T) {
	in := []string{"a", "b", "c", "d", "e"}
	out := Shuffle(in, rand.New(rand.NewSource(7)))

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, in, "input must not be mutated")
	sorted := append([]string(nil), out...)
	sort.Strings(sorted)
	assert.Equal(t, in, sorted)
}

func TestGenerateRoomCode_SixDigits(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		code := GenerateRoomCode(rng)
		require.NoError(t, ValidateRoomCode(code), code)
		assert.NotEqual(t, byte('0'), code[0])
	}
}

func TestCountVotes(t *testing.T) {
	tests := []struct {
		name       string
		votes      map[string]string
		eliminated string
		outcome    string
	}{
		{"clear majority", map[string]string{"a": "c", "b": "c", "c": models.AbstainID}, "c", models.OutcomeEliminated},
		{"two way tie", map[string]string{"a": "c", "b": "c", "c": "a", "d": "a"}, "", models.OutcomeTie},
		{"all abstain", map[string]string{"a": models.AbstainID, "b": models.AbstainID, "c": models.AbstainID, "d": models.AbstainID}, "", models.OutcomeAbstain},
		{"abstain plurality", map[string]string{"a": models.AbstainID, "b": models.AbstainID, "c": "a"}, "", models.OutcomeAbstain},
		{"abstain tied with player", map[string]string{"a": models.AbstainID, "b": "a"}, "", models.OutcomeTie},
		{"no votes", map[string]string{}, "", models.OutcomeNoVotes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tally := CountVotes(tt.votes)
			assert.Equal(t, tt.eliminated, tally.EliminatedID)
			assert.Equal(t, tt.outcome, tally.Outcome)

			sum := 0
			for _, n := range tally.Counts {
				sum += n
			}
			assert.Equal(t, len(tt.votes), sum)
		})
	}
}

func TestValidateNickname(t *testing.T) {
	name, err := ValidateNickname("  Alice ")
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)

	_, err = ValidateNickname("小明 2")
	assert.NoError(t, err)

	_, err = ValidateNickname("   ")
	assert.Error(t, err)

	_, err = ValidateNickname(strings.Repeat("a", 21))
	assert.Error(t, err)

	_, err = ValidateNickname("bob!")
	assert.Error(t, err)
}

func TestValidateRoomCode(t *testing.T) {
	assert.NoError(t, ValidateRoomCode("123456"))
	assert.Error(t, ValidateRoomCode("12345"))
	assert.Error(t, ValidateRoomCode("12345a"))
}

func TestValidateDescription(t *testing.T) {
	text, err := ValidateDescription("  round and sweet ")
	require.NoError(t, err)
	assert.Equal(t, "round and sweet", text)

	_, err = ValidateDescription(" ")
	assert.ErrorIs(t, err, models.ErrEmptyDescription)

	_, err = ValidateDescription(strings.Repeat("x", 201))
	assert.ErrorIs(t, err, models.ErrDescriptionLength)

	_, err = ValidateDescription(strings.Repeat("字", 200))
	assert.NoError(t, err)
}

func TestNormalizeDraft(t *testing.T) {
	assert.Equal(t, "", NormalizeDraft("   "))
	assert.Equal(t, "abc", NormalizeDraft(" abc "))
	assert.Len(t, []rune(NormalizeDraft(strings.Repeat("字", 250))), MaxDescriptionLength)
}

func TestGenerateNickname_IsValid(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 30; i++ {
		n := GenerateNickname(rng)
		_, err := ValidateNickname(n)
		assert.NoError(t, err, n)
	}
}
