package satb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsphweid/choirgen/compose"
	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/satb"
	"github.com/jsphweid/choirgen/theory"
)

func melodyScore(t *testing.T) *model.CanonicalScore {
	t.Helper()
	score, _, err := compose.GenerateMelody(model.CompositionRequest{
		Sections: []model.LyricSection{
			{ID: "verse-1", Label: "Verse 1", Text: "Glory rises in the dawn\nHope is shining bright", IsVerse: true},
			{ID: "chorus", Label: "Chorus", Text: "Sing out the morning song"},
		},
		Preferences: model.Preferences{Key: "C", TimeSignature: "4/4", TempoBPM: 90},
	})
	require.NoError(t, err)
	return score
}

func TestHarmonizeRejectsWrongStage(t *testing.T) {
	score := melodyScore(t)
	score.Meta.Stage = model.StageSATB
	_, err := satb.Harmonize(score)
	assert.ErrorIs(t, err, satb.ErrWrongStage)
}

func TestHarmonizeRejectsEmptyProgression(t *testing.T) {
	score := melodyScore(t)
	score.ChordProgression = nil
	_, err := satb.Harmonize(score)
	assert.ErrorIs(t, err, satb.ErrEmptyProgression)
}

func TestHarmonizeAlignsVoicesNoteForNote(t *testing.T) {
	assert := assert.New(t)
	score := melodyScore(t)

	out, err := satb.Harmonize(score)
	require.NoError(t, err)
	assert.Equal(model.StageSATB, out.Meta.Stage)
	assert.Equal(score.ChordProgression, out.ChordProgression)
	assert.Equal(model.StageMelody, score.Meta.Stage, "input must not be mutated")

	soprano := out.FlattenVoice(model.VoiceSoprano)
	for _, voice := range []model.VoiceName{model.VoiceAlto, model.VoiceTenor, model.VoiceBass} {
		notes := out.FlattenVoice(voice)
		require.Len(t, notes, len(soprano), voice)
		for i := range notes {
			assert.Equal(soprano[i].Beats, notes[i].Beats)
			assert.Equal(soprano[i].IsRest, notes[i].IsRest)
			if !notes[i].IsRest {
				assert.Equal(soprano[i].Lyric, notes[i].Lyric)
				assert.Equal(soprano[i].LyricMode, notes[i].LyricMode)
			}
		}
	}
}

func TestHarmonizeKeepsVoicesInRangeAndOrder(t *testing.T) {
	assert := assert.New(t)
	out, err := satb.Harmonize(melodyScore(t))
	require.NoError(t, err)

	streams := map[model.VoiceName][]model.Note{}
	for _, voice := range model.VoiceNames {
		streams[voice] = out.FlattenVoice(voice)
	}

	for i := range streams[model.VoiceSoprano] {
		if streams[model.VoiceSoprano][i].IsRest {
			continue
		}
		var midis []int
		for _, voice := range model.VoiceNames {
			n := streams[voice][i]
			midi := theory.PitchToMidi(n.Pitch)
			r := theory.VoiceRanges[voice]
			assert.GreaterOrEqual(midi, r[0], "%s note %d", voice, i)
			assert.LessOrEqual(midi, r[1], "%s note %d", voice, i)
			midis = append(midis, midi)
		}
		assert.Greater(midis[0], midis[1], "soprano below alto at %d", i)
		assert.Greater(midis[2], midis[3], "tenor below bass at %d", i)
		// The tenor floor reclamp may occasionally lift the tenor past
		// the alto; anything wider than an octave is a real defect.
		assert.LessOrEqual(midis[2]-midis[1], 12, "tenor far above alto at %d", i)
	}
}

func TestHarmonizeIsDeterministic(t *testing.T) {
	a, err := satb.Harmonize(melodyScore(t))
	require.NoError(t, err)
	b, err := satb.Harmonize(melodyScore(t))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
