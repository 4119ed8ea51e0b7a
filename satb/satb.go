// Package satb derives alto, tenor, and bass note-for-note from a
// validated melody-stage score and its chord progression.
package satb

import (
	"errors"
	"math"

	"github.com/jsphweid/choirgen/meter"
	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/normalize"
	"github.com/jsphweid/choirgen/theory"
	"github.com/jsphweid/choirgen/util"
)

var (
	ErrWrongStage       = errors.New("harmonization requires a melody-stage score")
	ErrEmptyProgression = errors.New("cannot harmonize without a chord progression")
)

// Spacing limits between adjacent voices, in semitones.
const (
	maxSopranoAltoGap = 12
	maxAltoTenorGap   = 12
	maxTenorBassGap   = 16
)

// Harmonize builds a satb-stage score from a melody-stage one. The
// input is never mutated; the output carries the identical chord
// progression and lyric metadata, with pitches added for the three
// lower voices.
func Harmonize(score *model.CanonicalScore) (*model.CanonicalScore, error) {
	if score.Meta.Stage != model.StageMelody {
		return nil, ErrWrongStage
	}
	if len(score.ChordProgression) == 0 {
		return nil, ErrEmptyProgression
	}

	scale := theory.ParseKey(score.Meta.Key, score.Meta.PrimaryMode)
	scaleSet := scale.PitchClassSet()
	chordByMeasure := make(map[int]model.ChordEvent, len(score.ChordProgression))
	for _, ch := range score.ChordProgression {
		chordByMeasure[ch.MeasureNumber] = ch
	}
	bpb := meter.BeatsPerMeasure(score.Meta.TimeSignature)

	soprano := score.FlattenVoice(model.VoiceSoprano)
	alto := make([]model.Note, 0, len(soprano))
	tenor := make([]model.Note, 0, len(soprano))
	bass := make([]model.Note, 0, len(soprano))

	prevS, prevA, prevT, prevB := 64, 62, 55, 48
	cursor := 0.0
	bassFloor := theory.VoiceTessitura[model.VoiceBass][0] - 1

	for _, s := range soprano {
		if s.IsRest {
			alto = append(alto, model.Rest(s.Beats, s.SectionID))
			tenor = append(tenor, model.Rest(s.Beats, s.SectionID))
			bass = append(bass, model.Rest(s.Beats, s.SectionID))
			cursor += s.Beats
			continue
		}

		measureNumber := int(cursor/bpb) + 1
		chordTones := scaleSet
		if chord, ok := chordByMeasure[measureNumber]; ok {
			chordTones = theory.PitchClassSetOf(chord.PitchClasses)
		}

		sm := theory.PitchToMidi(s.Pitch)

		am := chooseChordTone(model.VoiceAlto, prevA, util.Min(sm-3, prevA), chordTones, noBound, sm-1)
		tm := chooseChordTone(model.VoiceTenor, prevT, util.Min(sm-7, prevT), chordTones, noBound, am-1)
		bm := chooseChordTone(model.VoiceBass, prevB, prevB, chordTones, bassFloor, tm-1)

		am, tm, bm = compressSpacing(sm, am, tm, bm, prevA, prevT, prevB, chordTones, bassFloor)

		am = breakParallel(sm, prevS, prevA, am, model.VoiceAlto, scaleSet)
		am = chooseChordTone(model.VoiceAlto, prevA, am, chordTones, noBound, sm-1)
		tm = breakParallel(sm, prevS, prevT, tm, model.VoiceTenor, scaleSet)
		tm = chooseChordTone(model.VoiceTenor, prevT, tm, chordTones, noBound, am-1)
		bm = breakParallel(sm, prevS, prevB, bm, model.VoiceBass, scaleSet)
		bm = chooseChordTone(model.VoiceBass, prevB, bm, chordTones, bassFloor, tm-1)

		am, tm, bm = compressSpacing(sm, am, tm, bm, prevA, prevT, prevB, chordTones, bassFloor)

		tenorFloor := theory.VoiceTessitura[model.VoiceTenor][0] - 1
		if tm < tenorFloor {
			r := theory.VoiceRanges[model.VoiceTenor]
			tm = theory.NearestPitchClass(tm+12, chordTones, r[0], r[1])
		}

		alto = append(alto, lowerVoiceNote(s, am))
		tenor = append(tenor, lowerVoiceNote(s, tm))
		bass = append(bass, lowerVoiceNote(s, bm))

		prevS, prevA, prevT, prevB = sm, am, tm, bm
		cursor += s.Beats
	}

	meta := score.Meta
	meta.Stage = model.StageSATB
	meta.Rationale = "SATB voiced directly from the explicit section chord progression."

	out := model.CanonicalScore{
		Meta:     meta,
		Sections: append([]model.Section(nil), score.Sections...),
		Measures: normalize.PackVoices(map[model.VoiceName][]model.Note{
			model.VoiceSoprano: soprano,
			model.VoiceAlto:    alto,
			model.VoiceTenor:   tenor,
			model.VoiceBass:    bass,
		}, score.Meta.TimeSignature),
		ChordProgression: append([]model.ChordEvent(nil), score.ChordProgression...),
	}
	return &out, nil
}

func lowerVoiceNote(s model.Note, midi int) model.Note {
	return model.Note{
		Pitch:           theory.MidiToPitch(midi),
		Beats:           s.Beats,
		Lyric:           s.Lyric,
		LyricSyllableID: s.LyricSyllableID,
		LyricMode:       s.LyricMode,
		SectionID:       s.SectionID,
		LyricIndex:      s.LyricIndex,
	}
}

// compressSpacing re-targets a lower voice an octave down within
// chord tones wherever adjacent voices drift past their spacing
// limits.
func compressSpacing(sm, am, tm, bm, prevA, prevT, prevB int, chordTones map[int]bool, bassFloor int) (int, int, int) {
	if sm-am > maxSopranoAltoGap {
		am = chooseChordTone(model.VoiceAlto, prevA, sm-12, chordTones, sm-12, sm-1)
	}
	if am-tm > maxAltoTenorGap {
		tm = chooseChordTone(model.VoiceTenor, prevT, am-12, chordTones, am-12, am-1)
	}
	if tm-bm > maxTenorBassGap {
		bm = chooseChordTone(model.VoiceBass, prevB, tm-12, chordTones, util.Max(tm-maxTenorBassGap, bassFloor), tm-1)
	}
	return am, tm, bm
}

const noBound = math.MinInt32

// chooseChordTone picks the chord tone nearest the target that the
// voice can actually sing: in range, within bounds, preferring the
// tessitura and small motion from the previous note. Pools relax in
// that order when a stricter pool is empty.
func chooseChordTone(voice model.VoiceName, previous, target int, chordTones map[int]bool, lowerBound, upperBound int) int {
	r := theory.VoiceRanges[voice]
	t := theory.VoiceTessitura[voice]
	baseLo, baseHi := r[0], r[1]
	lo, hi := baseLo, baseHi
	if lowerBound != noBound {
		lo = util.Max(lo, lowerBound)
	}
	hi = util.Min(hi, upperBound)

	if lo > hi {
		lo = util.Max(baseLo, t[0]-1)
		hi = util.Min(baseHi, t[1]+1)
		if lo > hi {
			lo, hi = baseLo, baseHi
		}
	}

	var candidates []int
	for m := lo; m <= hi; m++ {
		if chordTones[((m%12)+12)%12] {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return theory.NearestInRange(target, lo, hi)
	}

	pick := func(pool []int) int {
		best := pool[0]
		for _, m := range pool[1:] {
			dt, bt := util.Abs(m-target), util.Abs(best-target)
			if dt < bt || (dt == bt && util.Abs(m-previous) < util.Abs(best-previous)) {
				best = m
			}
		}
		return best
	}

	inTessitura := func(m int) bool { return m >= t[0]-1 && m <= t[1]+1 }
	smallLeap := func(m int) bool { return util.Abs(m-previous) <= theory.MaxMelodicLeap }

	pools := [][]int{
		filter(candidates, func(m int) bool { return smallLeap(m) && inTessitura(m) }),
		filter(candidates, smallLeap),
		filter(candidates, inTessitura),
		candidates,
	}
	for _, pool := range pools {
		if len(pool) > 0 {
			return pick(pool)
		}
	}
	return pick(candidates)
}

func filter(pool []int, keep func(int) bool) []int {
	var out []int
	for _, m := range pool {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// createsParallel reports parallel perfect unisons, fifths, or
// octaves between the soprano and a lower voice.
func createsParallel(prevS, currS, prevV, currV int) bool {
	int0 := util.Abs(prevS-prevV) % 12
	int1 := util.Abs(currS-currV) % 12
	sameDir := (currS-prevS > 0 && currV-prevV > 0) || (currS-prevS < 0 && currV-prevV < 0)
	return sameDir && (int0 == 0 || int0 == 7) && int1 == int0
}

// breakParallel probes small offsets until the parallel motion
// disappears, keeping the result singable for the voice.
func breakParallel(currS, prevS, prevV, candidate int, voice model.VoiceName, scaleSet map[int]bool) int {
	if !createsParallel(prevS, currS, prevV, candidate) {
		return candidate
	}
	for _, delta := range []int{-2, -1, 1, 2, -3, 3} {
		cand := theory.ConstrainToVoice(candidate+delta, prevV, voice, scaleSet)
		if !createsParallel(prevS, currS, prevV, cand) {
			return cand
		}
	}
	return candidate
}
