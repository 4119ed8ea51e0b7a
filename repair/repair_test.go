package repair_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsphweid/choirgen/compose"
	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/repair"
	"github.com/jsphweid/choirgen/validate"
)

func composedScore(t *testing.T) *model.CanonicalScore {
	t.Helper()
	score, _, err := compose.GenerateMelody(model.CompositionRequest{
		Sections: []model.LyricSection{
			{ID: "verse-1", Label: "Verse 1", Text: "Glory rises in the dawn\nHope is near", IsVerse: true},
		},
		Preferences: model.Preferences{Key: "C", TimeSignature: "4/4", TempoBPM: 90},
	})
	require.NoError(t, err)
	return score
}

func TestScoreFixesBrokenProgression(t *testing.T) {
	assert := assert.New(t)
	score := composedScore(t)

	score.ChordProgression = score.ChordProgression[:1]
	score.ChordProgression[0].Degree = 12
	require.NotEmpty(t, model.FatalDiagnostics(validate.Check(score)))

	fixed := repair.Score(score)
	assert.Empty(model.FatalDiagnostics(validate.Check(fixed)))
	assert.Len(fixed.ChordProgression, len(fixed.Measures))
	for _, ch := range fixed.ChordProgression {
		assert.GreaterOrEqual(ch.Degree, 1)
		assert.LessOrEqual(ch.Degree, 7)
	}
}

func TestScoreIsIdempotentOnCleanInput(t *testing.T) {
	score := composedScore(t)
	once := repair.Score(score)
	twice := repair.Score(once)
	assert.Equal(t, once, twice)
}

func TestScoreDoesNotMutateInput(t *testing.T) {
	score := composedScore(t)
	score.ChordProgression = score.ChordProgression[:1]

	fixed := repair.Score(score)
	assert.Len(t, score.ChordProgression, 1)
	assert.Greater(t, len(fixed.ChordProgression), 1)
}
