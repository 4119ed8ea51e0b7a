package compose

import (
	"strings"

	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/satb"
	"github.com/jsphweid/choirgen/validate"
)

// Harmonize wraps the SATB harmonizer and re-runs the diagnostic
// battery over the result. Stage and progression misuse surface as
// structural errors.
func Harmonize(score *model.CanonicalScore) (*model.CanonicalScore, []model.Diagnostic, error) {
	out, err := satb.Harmonize(score)
	if err != nil {
		return nil, nil, &StructuralError{Msg: err.Error()}
	}
	diags := validate.Check(out)
	if fatals := model.FatalDiagnostics(diags); len(fatals) > 0 {
		return nil, nil, &ExhaustedError{Attempts: 1, History: [][]model.Diagnostic{fatals}}
	}
	return out, model.WarningDiagnostics(diags), nil
}

// GenerateScore runs the whole pipeline in one call: compose the
// melody, then harmonize it into four voices.
func GenerateScore(req model.CompositionRequest) (*model.CanonicalScore, []model.Diagnostic, error) {
	melody, _, err := GenerateMelody(req)
	if err != nil {
		return nil, nil, err
	}
	return Harmonize(melody)
}

// RefineSATB refines a harmonized score. The soprano line is projected
// back to a melody-stage score, refined there, and re-harmonized; the
// lower voices are always re-derived from the refined melody, never
// patched in place.
func RefineSATB(req model.RefineRequest) (*model.CanonicalScore, []model.Diagnostic, error) {
	if req.Score.Meta.Stage != model.StageSATB {
		return nil, nil, structuralf("satb refinement requires a satb-stage score, got %q", req.Score.Meta.Stage)
	}
	req.Score = *melodyProjection(&req.Score)
	refined, _, err := Refine(req)
	if err != nil {
		return nil, nil, err
	}
	return Harmonize(refined)
}

// melodyProjection strips a satb score back to its soprano line.
func melodyProjection(score *model.CanonicalScore) *model.CanonicalScore {
	out := *score
	out.Meta.Stage = model.StageMelody
	out.Measures = make([]model.Measure, len(score.Measures))
	for i, m := range score.Measures {
		out.Measures[i] = model.Measure{
			Number: m.Number,
			Voices: map[model.VoiceName][]model.Note{
				model.VoiceSoprano: append([]model.Note(nil), m.Voices[model.VoiceSoprano]...),
			},
		}
	}
	return &out
}

// Refine regenerates the targeted music units of an existing
// melody-stage score with fresh seeds, leaving the other units'
// rhythm and melodic draws untouched. An empty target set regenerates
// everything.
func Refine(req model.RefineRequest) (*model.CanonicalScore, []model.Diagnostic, error) {
	score := req.Score
	if score.Meta.Stage != model.StageMelody {
		return nil, nil, structuralf("refinement requires a melody-stage score, got %q", score.Meta.Stage)
	}
	if !req.Regenerate && req.Instruction == "" && len(req.MusicUnitIDs) == 0 {
		return nil, nil, structuralf("refinement request names nothing to change")
	}

	var units map[string]bool
	if len(req.MusicUnitIDs) > 0 {
		units = make(map[string]bool, len(req.MusicUnitIDs))
		known := make(map[string]bool)
		for _, sec := range score.Sections {
			known[sec.MusicUnitID] = true
		}
		for _, id := range req.MusicUnitIDs {
			if !known[id] {
				return nil, nil, structuralf("score has no music unit %q", id)
			}
			units[id] = true
		}
	}

	salt := "refine"
	if req.Instruction != "" {
		salt = "refine:" + req.Instruction
	}
	return generate(rebuildRequest(&score), units, salt)
}

// rebuildRequest reverses composition: the score's sections and
// arrangement order become a request that regenerates the same piece.
// Instance copies of a repeated section fold back into one section.
func rebuildRequest(score *model.CanonicalScore) model.CompositionRequest {
	req := model.CompositionRequest{
		Preferences: model.Preferences{
			Key:               score.Meta.Key,
			PrimaryMode:       score.Meta.PrimaryMode,
			TimeSignature:     score.Meta.TimeSignature,
			TempoBPM:          score.Meta.TempoBPM,
			Style:             score.Meta.Style,
			LyricRhythmPreset: score.Meta.LyricRhythmPreset,
			BarsPerVerse:      score.Meta.BarsPerVerse,
		},
	}

	seen := make(map[string]bool)
	for _, sec := range score.Sections {
		baseID := baseSectionID(sec.ID)
		if !seen[baseID] {
			seen[baseID] = true
			req.Sections = append(req.Sections, model.LyricSection{
				ID:          baseID,
				Label:       sec.Label,
				Title:       sec.Title,
				Text:        sec.Lyrics,
				Lines:       sec.Lines,
				IsVerse:     sec.IsVerse,
				MusicUnitID: sec.MusicUnitID,
			})
		}
		item := model.ArrangementItem{
			SectionID:  baseID,
			PauseBeats: sec.PauseBeats,
		}
		if sec.PickupBeats > 0 {
			item.AnacrusisMode = model.AnacrusisManual
			item.AnacrusisBeats = sec.PickupBeats
		}
		req.Arrangement = append(req.Arrangement, item)
	}
	return req
}

func baseSectionID(id string) string {
	if i := strings.Index(id, "--"); i > 0 {
		return id[:i]
	}
	return id
}
