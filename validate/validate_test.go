package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsphweid/choirgen/compose"
	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/validate"
)

func composedScore(t *testing.T) *model.CanonicalScore {
	t.Helper()
	score, _, err := compose.GenerateMelody(model.CompositionRequest{
		Sections: []model.LyricSection{
			{ID: "verse-1", Label: "Verse 1", Text: "Glory rises in the dawn", IsVerse: true},
		},
		Preferences: model.Preferences{Key: "G", TimeSignature: "4/4", TempoBPM: 84},
	})
	require.NoError(t, err)
	return score
}

func hasCode(diags []model.Diagnostic, code string) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestCheckAcceptsComposedScore(t *testing.T) {
	score := composedScore(t)
	diags := validate.Check(score)
	assert.Empty(t, model.FatalDiagnostics(diags))
}

func TestCheckFlagsShortMeasure(t *testing.T) {
	score := composedScore(t)
	notes := score.Measures[0].Voices[model.VoiceSoprano]
	require.NotEmpty(t, notes)
	notes[0].Beats += 0.5

	diags := validate.Check(score)
	assert.True(t, hasCode(model.FatalDiagnostics(diags), model.DiagMeasureBeats))
}

func TestCheckFlagsMissingAndForeignChords(t *testing.T) {
	assert := assert.New(t)

	score := composedScore(t)
	score.ChordProgression = score.ChordProgression[1:]
	diags := validate.Check(score)
	assert.True(hasCode(model.FatalDiagnostics(diags), model.DiagMissingChord))

	score = composedScore(t)
	score.ChordProgression[0].PitchClasses = []int{1, 5, 8}
	diags = validate.Check(score)
	assert.True(hasCode(model.FatalDiagnostics(diags), model.DiagNonDiatonicChord))

	score = composedScore(t)
	score.ChordProgression = nil
	diags = validate.Check(score)
	assert.True(hasCode(model.FatalDiagnostics(diags), model.DiagEmptyProgression))
}

func TestCheckFlagsLyricViolations(t *testing.T) {
	assert := assert.New(t)

	score := composedScore(t)
	for mi := range score.Measures {
		notes := score.Measures[mi].Voices[model.VoiceSoprano]
		for ni := range notes {
			if model.IsContinuation(notes[ni].LyricMode) && notes[ni].LyricSyllableID != "" {
				notes[ni].Lyric = "oops"
				diags := validate.Check(score)
				assert.True(hasCode(model.FatalDiagnostics(diags), model.DiagContinuationLyric))
				return
			}
		}
	}

	// No continuation chunk in this rendering; corrupt a syllable id
	// instead so the mapping check still gets exercised.
	notes := score.Measures[0].Voices[model.VoiceSoprano]
	for ni := range notes {
		if notes[ni].LyricSyllableID != "" {
			notes[ni].LyricSyllableID = "verse-1-syl-9999"
			break
		}
	}
	diags := validate.Check(score)
	assert.True(hasCode(model.FatalDiagnostics(diags), model.DiagUnknownSyllable))
}

func TestCheckFlagsPhraseEndOffBarline(t *testing.T) {
	assert := assert.New(t)
	score := composedScore(t)
	assert.False(hasCode(validate.Check(score), model.DiagPhraseEndOffBarline))

	// Shrink the final sung note so its phrase ends mid-measure.
	for mi := len(score.Measures) - 1; mi >= 0; mi-- {
		notes := score.Measures[mi].Voices[model.VoiceSoprano]
		for ni := len(notes) - 1; ni >= 0; ni-- {
			if !notes[ni].IsRest {
				notes[ni].Beats -= 0.5
				assert.True(hasCode(validate.Check(score), model.DiagPhraseEndOffBarline))
				return
			}
		}
	}
	t.Fatal("score has no sung notes")
}

func TestCheckFlagsUnsungSyllables(t *testing.T) {
	score := composedScore(t)
	sec := score.SectionByID("verse-1")
	require.NotNil(t, sec)
	sec.Syllables = append(sec.Syllables, model.Syllable{
		ID:        "verse-1-syl-9000",
		Text:      "extra",
		SectionID: "verse-1",
	})

	diags := validate.Check(score)
	assert.True(t, hasCode(model.FatalDiagnostics(diags), model.DiagUnmappedSyllables))
}

func TestCheckSATBAlignment(t *testing.T) {
	score := composedScore(t)
	harmonized, _, err := compose.Harmonize(score)
	require.NoError(t, err)

	diags := validate.Check(harmonized)
	assert.Empty(t, model.FatalDiagnostics(diags))

	harmonized.Measures[0].Voices[model.VoiceBass] = nil
	diags = validate.Check(harmonized)
	assert.True(t, hasCode(model.FatalDiagnostics(diags), model.DiagVoiceMisalignment))
}
