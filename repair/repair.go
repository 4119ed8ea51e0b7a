// Package repair applies the deterministic fixups that turn a score
// with fatal diagnostics back into a valid one. Every fix is
// idempotent: repairing a clean score returns an equivalent score.
package repair

import (
	"math"

	"github.com/jsphweid/choirgen/meter"
	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/normalize"
	"github.com/jsphweid/choirgen/progression"
	"github.com/jsphweid/choirgen/theory"
	"github.com/jsphweid/choirgen/util"
)

// Score rebuilds the score with its known fixes applied: missing or
// non-diatonic chords become tonic triads, strong-beat melody notes
// snap to chord tones, phrase endings stabilize onto the active chord
// and stretch to the next barline. The input is never mutated.
func Score(score *model.CanonicalScore) *model.CanonicalScore {
	scale := theory.ParseKey(score.Meta.Key, score.Meta.PrimaryMode)
	beatCap := meter.BeatsPerMeasure(score.Meta.TimeSignature)

	if score.Meta.Stage != model.StageMelody {
		out := *score
		out.ChordProgression = progression.Repair(score.ChordProgression, len(score.Measures), scale)
		return &out
	}

	notes := score.FlattenVoice(model.VoiceSoprano)
	notes = extendPhraseEnds(notes, score.Sections, beatCap)

	measureCount := int(math.Ceil(totalBeats(notes)/beatCap - util.Eps))
	if measureCount < 1 {
		measureCount = 1
	}
	chords := progression.Repair(score.ChordProgression, measureCount, scale)
	chordByMeasure := make(map[int]model.ChordEvent, len(chords))
	for _, ch := range chords {
		chordByMeasure[ch.MeasureNumber] = ch
	}

	notes = snapStrongBeats(notes, chordByMeasure, score.Meta.TimeSignature, beatCap)
	notes = stabilizePhraseEnds(notes, score.Sections, chordByMeasure, scale, beatCap)

	out := *score
	out.Measures = normalize.PackVoices(map[model.VoiceName][]model.Note{model.VoiceSoprano: notes}, score.Meta.TimeSignature)
	out.ChordProgression = progression.Repair(chords, len(out.Measures), scale)
	return &out
}

func totalBeats(notes []model.Note) float64 {
	sum := 0.0
	for _, n := range notes {
		sum += n.Beats
	}
	return sum
}

func phraseEndSyllables(sections []model.Section) map[string]bool {
	out := make(map[string]bool)
	for _, sec := range sections {
		for _, syl := range sec.Syllables {
			if syl.PhraseEndAfter {
				out[syl.ID] = true
			}
		}
	}
	return out
}

// extendPhraseEnds stretches the final chunk of each phrase-ending
// syllable to the next barline, shifting everything after it. Notes
// already ending on a barline are untouched.
func extendPhraseEnds(notes []model.Note, sections []model.Section, beatCap float64) []model.Note {
	ends := phraseEndSyllables(sections)
	out := make([]model.Note, len(notes))
	copy(out, notes)

	cursor := 0.0
	for i := range out {
		n := out[i]
		cursor += n.Beats
		if n.IsRest || n.LyricSyllableID == "" || !ends[n.LyricSyllableID] {
			continue
		}
		if i+1 < len(out) && out[i+1].LyricSyllableID == n.LyricSyllableID {
			continue
		}
		inMeasure := math.Mod(cursor, beatCap)
		if util.AlmostZero(inMeasure) || util.AlmostEqual(inMeasure, beatCap) {
			continue
		}
		gap := beatCap - inMeasure
		out[i].Beats += gap
		cursor += gap
	}
	return out
}

func snapStrongBeats(notes []model.Note, chords map[int]model.ChordEvent, timeSignature string, beatCap float64) []model.Note {
	out := make([]model.Note, len(notes))
	copy(out, notes)

	prev := -1
	cursor := 0.0
	for i := range out {
		n := out[i]
		start := cursor
		cursor += n.Beats
		if n.IsRest {
			continue
		}
		midi := theory.PitchToMidi(n.Pitch)
		if !model.IsContinuation(n.LyricMode) && meter.IsStrongBeat(math.Mod(start, beatCap), timeSignature) {
			measureNumber := int(start/beatCap) + 1
			if chord, ok := chords[measureNumber]; ok {
				anchor := midi
				if prev >= 0 {
					anchor = prev
				}
				midi = theory.NearestPitchClassWithLeap(midi, anchor, theory.PitchClassSetOf(chord.PitchClasses), model.VoiceSoprano)
				out[i].Pitch = theory.MidiToPitch(midi)
			}
		}
		prev = midi
	}
	return out
}

func stabilizePhraseEnds(notes []model.Note, sections []model.Section, chords map[int]model.ChordEvent, scale theory.Scale, beatCap float64) []model.Note {
	ends := phraseEndSyllables(sections)
	tonic := theory.PitchClassSetOf(theory.Triad(scale, 1))

	out := make([]model.Note, len(notes))
	copy(out, notes)

	prev := -1
	cursor := 0.0
	for i := range out {
		n := out[i]
		start := cursor
		cursor += n.Beats
		if n.IsRest {
			continue
		}
		midi := theory.PitchToMidi(n.Pitch)
		if n.LyricSyllableID != "" && ends[n.LyricSyllableID] && !model.IsContinuation(n.LyricMode) {
			pcs := tonic
			measureNumber := int(start/beatCap) + 1
			if chord, ok := chords[measureNumber]; ok && chord.Degree != 1 {
				pcs = theory.PitchClassSetOf(chord.PitchClasses)
			}
			anchor := midi
			if prev >= 0 {
				anchor = prev
			}
			midi = theory.NearestPitchClassWithLeap(midi, anchor, pcs, model.VoiceSoprano)
			out[i].Pitch = theory.MidiToPitch(midi)
		}
		prev = midi
	}
	return out
}
