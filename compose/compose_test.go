package compose_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsphweid/choirgen/compose"
	"github.com/jsphweid/choirgen/meter"
	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/rhythm"
	"github.com/jsphweid/choirgen/util"
	"github.com/jsphweid/choirgen/validate"
)

func simpleRequest() model.CompositionRequest {
	return model.CompositionRequest{
		Sections: []model.LyricSection{
			{ID: "verse-1", Label: "Verse 1", Text: "Glory rises in the dawn.", IsVerse: true},
		},
		Preferences: model.Preferences{Key: "C", TimeSignature: "4/4", TempoBPM: 90},
	}
}

func TestGenerateMelodyProducesValidScore(t *testing.T) {
	assert := assert.New(t)
	score, warnings, err := compose.GenerateMelody(simpleRequest())
	require.NoError(t, err)

	assert.Equal(model.StageMelody, score.Meta.Stage)
	assert.Equal("C", score.Meta.Key)
	assert.NotEmpty(score.Measures)
	assert.Len(score.ChordProgression, len(score.Measures))
	assert.Empty(model.FatalDiagnostics(validate.Check(score)))
	for _, w := range warnings {
		assert.Equal(model.SeverityWarning, w.Severity)
	}
}

func TestGenerateMelodyIsDeterministic(t *testing.T) {
	a, _, err := compose.GenerateMelody(simpleRequest())
	require.NoError(t, err)
	b, _, err := compose.GenerateMelody(simpleRequest())
	require.NoError(t, err)

	aj, err := json.Marshal(a)
	require.NoError(t, err)
	bj, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, string(aj), string(bj))
}

func TestGenerateMelodyRejectsUnknownArrangementSection(t *testing.T) {
	req := simpleRequest()
	req.Arrangement = []model.ArrangementItem{{SectionID: "bridge-9"}}

	_, _, err := compose.GenerateMelody(req)
	assert.True(t, compose.IsStructural(err), "want structural error, got %v", err)
}

func TestGenerateMelodyDefaultsPreferences(t *testing.T) {
	assert := assert.New(t)
	req := simpleRequest()
	req.Preferences = model.Preferences{Style: "folk", Mood: "wistful"}

	score, _, err := compose.GenerateMelody(req)
	require.NoError(t, err)
	assert.NotEmpty(score.Meta.Key)
	assert.NotEmpty(score.Meta.TimeSignature)
	assert.Positive(score.Meta.TempoBPM)

	again, _, err := compose.GenerateMelody(req)
	require.NoError(t, err)
	assert.Equal(score.Meta, again.Meta)
}

func TestPickupRendersAsLeadingRest(t *testing.T) {
	assert := assert.New(t)
	req := model.CompositionRequest{
		Sections: []model.LyricSection{
			{ID: "verse-1", Label: "Verse 1", Text: "A rising song of morning light\nCarries all our hearts away", IsVerse: true},
		},
		Arrangement: []model.ArrangementItem{
			{SectionID: "verse-1", AnacrusisMode: model.AnacrusisManual, AnacrusisBeats: 2},
		},
		Preferences: model.Preferences{Key: "C", TimeSignature: "3/4", TempoBPM: 96, BarsPerVerse: 16},
	}

	score, _, err := compose.GenerateMelody(req)
	require.NoError(t, err)
	assert.Len(score.Measures, 16)

	first := score.Measures[0].Voices[model.VoiceSoprano]
	require.NotEmpty(t, first)
	assert.True(first[0].IsRest)
	assert.InDelta(1.0, first[0].Beats, util.Eps, "3-beat measure minus a 2-beat pickup")

	require.Len(t, score.Meta.VerseForms, 0, "single verse needs no shared form")
}

func TestBarsPerVerseTooSmallIsInfeasible(t *testing.T) {
	req := simpleRequest()
	req.Sections[0].Text = "Glory rises in the dawn\nHope is near\nLight returns\nSongs ascend"
	req.Preferences.BarsPerVerse = 2

	_, _, err := compose.GenerateMelody(req)
	require.Error(t, err)
	assert.True(t, compose.IsInfeasible(err), "want infeasible error, got %v", err)
	var infeasible *rhythm.InfeasibleError
	require.ErrorAs(t, err, &infeasible)
	assert.NotEmpty(t, infeasible.Hint)
}

func TestSharedVerseFormAcrossVerses(t *testing.T) {
	assert := assert.New(t)
	req := model.CompositionRequest{
		Sections: []model.LyricSection{
			{ID: "verse-1", Label: "Verse 1", Text: "Glory rises in the dawn", IsVerse: true},
			{ID: "verse-2", Label: "Verse 2", Text: "Sorrow passes in the night", IsVerse: true},
		},
		Preferences: model.Preferences{Key: "C", TimeSignature: "4/4", TempoBPM: 90},
	}

	score, _, err := compose.GenerateMelody(req)
	require.NoError(t, err)

	require.Len(t, score.Meta.VerseForms, 1)
	form := score.Meta.VerseForms[0]
	assert.Equal("verse", form.MusicUnitID)

	require.Len(t, score.Meta.ArrangementUnits, 2)
	assert.Equal(1, score.Meta.ArrangementUnits[0].VerseIndex)
	assert.Equal(2, score.Meta.ArrangementUnits[1].VerseIndex)

	v1 := score.SectionByID("verse-1")
	v2 := score.SectionByID("verse-2")
	require.NotNil(t, v1)
	require.NotNil(t, v2)
	assert.Equal(1, v1.VerseNumber)
	assert.Equal(2, v2.VerseNumber)

	// Both verse instances carry the identical pitch sequence.
	beatCap := meter.BeatsPerMeasure(score.Meta.TimeSignature)
	p1 := sectionPitches(score, "verse-1", beatCap)
	p2 := sectionPitches(score, "verse-2", beatCap)
	assert.Equal(p1, p2)
	assert.Equal(form.BarCount*int(beatCap), int(math.Round(sectionBeats(score, "verse-2"))))
}

func sectionPitches(score *model.CanonicalScore, sectionID string, beatCap float64) []string {
	var out []string
	for _, n := range score.FlattenVoice(model.VoiceSoprano) {
		if !n.IsRest && n.SectionID == sectionID {
			out = append(out, n.Pitch)
		}
	}
	return out
}

func sectionBeats(score *model.CanonicalScore, sectionID string) float64 {
	total := 0.0
	for _, n := range score.FlattenVoice(model.VoiceSoprano) {
		if n.SectionID == sectionID {
			total += n.Beats
		}
	}
	return total
}

func TestRepeatedChorusGetsInstanceSections(t *testing.T) {
	assert := assert.New(t)
	req := model.CompositionRequest{
		Sections: []model.LyricSection{
			{ID: "verse-1", Label: "Verse 1", Text: "Glory rises in the dawn", IsVerse: true},
			{ID: "chorus", Label: "Chorus", Text: "Sing out the morning song"},
		},
		Arrangement: []model.ArrangementItem{
			{SectionID: "verse-1"},
			{SectionID: "chorus"},
			{SectionID: "chorus", PauseBeats: 2},
		},
		Preferences: model.Preferences{Key: "C", TimeSignature: "4/4", TempoBPM: 90},
	}

	score, _, err := compose.GenerateMelody(req)
	require.NoError(t, err)
	require.Len(t, score.Sections, 3)
	assert.Equal("chorus", score.Sections[1].ID)
	assert.Equal("chorus--2", score.Sections[2].ID)
	assert.Empty(model.FatalDiagnostics(validate.Check(score)))

	// Repeated chorus instances share one music unit and one melody.
	beatCap := meter.BeatsPerMeasure(score.Meta.TimeSignature)
	assert.Equal(
		sectionPitches(score, "chorus", beatCap),
		sectionPitches(score, "chorus--2", beatCap))
}

func TestRefineKeepsBarsPerVerse(t *testing.T) {
	assert := assert.New(t)
	req := model.CompositionRequest{
		Sections: []model.LyricSection{
			{ID: "verse-1", Label: "Verse 1", Text: "Glory rises in the dawn\nHope is shining bright", IsVerse: true},
			{ID: "chorus", Label: "Chorus", Text: "Sing out the morning song"},
		},
		Preferences: model.Preferences{Key: "C", TimeSignature: "3/4", TempoBPM: 96, BarsPerVerse: 16},
	}
	original, _, err := compose.GenerateMelody(req)
	require.NoError(t, err)
	require.Equal(t, 16, original.Meta.BarsPerVerse)

	refined, _, err := compose.Refine(model.RefineRequest{
		Score:        *original,
		Regenerate:   true,
		MusicUnitIDs: []string{"chorus"},
	})
	require.NoError(t, err)

	beatCap := meter.BeatsPerMeasure(refined.Meta.TimeSignature)
	assert.InDelta(16*beatCap, sectionBeats(refined, "verse-1"), util.Eps,
		"untargeted verse keeps the bar-count constraint")
	assert.Equal(
		sectionPitches(original, "verse-1", beatCap),
		sectionPitches(refined, "verse-1", beatCap))
}

func TestRefineRebuildsLineSections(t *testing.T) {
	assert := assert.New(t)
	req := model.CompositionRequest{
		Sections: []model.LyricSection{
			{ID: "verse-1", Label: "Verse 1", IsVerse: true, Lines: []model.LyricLine{
				{Text: "Glory rises in the dawn", MergeWithNext: true},
				{Text: "over fields of light"},
				{Text: "Hope is shining bright", BreathAfter: true},
			}},
		},
		Preferences: model.Preferences{Key: "C", TimeSignature: "4/4", TempoBPM: 90},
	}
	original, _, err := compose.GenerateMelody(req)
	require.NoError(t, err)

	sec := original.SectionByID("verse-1")
	require.NotNil(t, sec)
	assert.Len(sec.Lines, 3)

	refined, _, err := compose.Refine(model.RefineRequest{Score: *original, Regenerate: true})
	require.NoError(t, err)
	assert.Empty(model.FatalDiagnostics(validate.Check(refined)))

	phraseEnds := func(s *model.CanonicalScore) int {
		n := 0
		for _, syl := range s.SectionByID("verse-1").Syllables {
			if syl.PhraseEndAfter {
				n++
			}
		}
		return n
	}
	assert.Equal(phraseEnds(original), phraseEnds(refined),
		"merge and breath flags survive the round trip")
}

func TestGenerateScoreMatchesTwoStagePipeline(t *testing.T) {
	oneShot, _, err := compose.GenerateScore(simpleRequest())
	require.NoError(t, err)
	assert.Equal(t, model.StageSATB, oneShot.Meta.Stage)

	melody, _, err := compose.GenerateMelody(simpleRequest())
	require.NoError(t, err)
	twoStage, _, err := compose.Harmonize(melody)
	require.NoError(t, err)

	aj, err := json.Marshal(oneShot)
	require.NoError(t, err)
	bj, err := json.Marshal(twoStage)
	require.NoError(t, err)
	assert.Equal(t, string(aj), string(bj))
}

func TestRefineSATBRegeneratesTargetedUnit(t *testing.T) {
	assert := assert.New(t)
	req := model.CompositionRequest{
		Sections: []model.LyricSection{
			{ID: "verse-1", Label: "Verse 1", Text: "Glory rises in the dawn", IsVerse: true},
			{ID: "chorus", Label: "Chorus", Text: "Sing out the morning song"},
		},
		Preferences: model.Preferences{Key: "C", TimeSignature: "4/4", TempoBPM: 90},
	}
	original, _, err := compose.GenerateScore(req)
	require.NoError(t, err)

	refined, _, err := compose.RefineSATB(model.RefineRequest{
		Score:        *original,
		Regenerate:   true,
		MusicUnitIDs: []string{"chorus"},
	})
	require.NoError(t, err)
	assert.Equal(model.StageSATB, refined.Meta.Stage)
	assert.Empty(model.FatalDiagnostics(validate.Check(refined)))

	beatCap := meter.BeatsPerMeasure(original.Meta.TimeSignature)
	assert.Equal(
		sectionPitches(original, "verse-1", beatCap),
		sectionPitches(refined, "verse-1", beatCap),
		"untargeted unit keeps its melody")

	melody, _, err := compose.GenerateMelody(req)
	require.NoError(t, err)
	_, _, err = compose.RefineSATB(model.RefineRequest{Score: *melody, Regenerate: true})
	assert.True(compose.IsStructural(err))
}

func TestRefineRegeneratesTargetedUnit(t *testing.T) {
	assert := assert.New(t)
	req := model.CompositionRequest{
		Sections: []model.LyricSection{
			{ID: "verse-1", Label: "Verse 1", Text: "Glory rises in the dawn", IsVerse: true},
			{ID: "chorus", Label: "Chorus", Text: "Sing out the morning song"},
		},
		Preferences: model.Preferences{Key: "C", TimeSignature: "4/4", TempoBPM: 90},
	}
	original, _, err := compose.GenerateMelody(req)
	require.NoError(t, err)

	refined, _, err := compose.Refine(model.RefineRequest{
		Score:        *original,
		Regenerate:   true,
		MusicUnitIDs: []string{"chorus"},
	})
	require.NoError(t, err)
	assert.Empty(model.FatalDiagnostics(validate.Check(refined)))

	beatCap := meter.BeatsPerMeasure(original.Meta.TimeSignature)
	assert.Equal(
		sectionPitches(original, "verse-1", beatCap),
		sectionPitches(refined, "verse-1", beatCap),
		"untargeted unit must keep its melody")

	_, _, err = compose.Refine(model.RefineRequest{Score: *original, MusicUnitIDs: []string{"nope"}})
	assert.True(compose.IsStructural(err))

	harmonized, _, err := compose.Harmonize(original)
	require.NoError(t, err)
	_, _, err = compose.Refine(model.RefineRequest{Score: *harmonized, Regenerate: true})
	assert.True(compose.IsStructural(err))
}
