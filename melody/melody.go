// Package melody composes the lead voice as a constrained random
// walk over an already-planned rhythm and chord skeleton.
package melody

import (
	"math"
	"math/rand"

	"github.com/jsphweid/choirgen/meter"
	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/rhythm"
	"github.com/jsphweid/choirgen/theory"
	"github.com/jsphweid/choirgen/util"
)

var stepChoices = []int{-2, -1, 0, 1, 2, 3}

// Generator walks one soprano line across arranged sections. It owns
// a local PRNG and the beat cursor; nothing global is touched.
type Generator struct {
	scale         theory.Scale
	scaleSet      map[int]bool
	timeSignature string
	beatCap       float64
	chords        map[int]model.ChordEvent
	rng           *rand.Rand

	prev      int
	repeatRun int
	center    int
	started   bool
	cursor    float64
	notes     []model.Note
}

func New(scale theory.Scale, timeSignature string, chords []model.ChordEvent, rng *rand.Rand) *Generator {
	byMeasure := make(map[int]model.ChordEvent, len(chords))
	for _, ch := range chords {
		byMeasure[ch.MeasureNumber] = ch
	}
	return &Generator{
		scale:         scale,
		scaleSet:      scale.PitchClassSet(),
		timeSignature: timeSignature,
		beatCap:       meter.BeatsPerMeasure(timeSignature),
		chords:        byMeasure,
		rng:           rng,
		center:        64,
	}
}

// Reseed swaps the walk's PRNG. The orchestrator reseeds per section
// instance so regenerating one music unit leaves the others' draws
// untouched.
func (g *Generator) Reseed(rng *rand.Rand) {
	g.rng = rng
}

// Cursor is the absolute beat position after everything added so far.
func (g *Generator) Cursor() float64 {
	return g.cursor
}

// Notes returns the accumulated soprano stream.
func (g *Generator) Notes() []model.Note {
	return g.notes
}

// AddRest appends silence, chunked to at most a measure per note.
func (g *Generator) AddRest(beats float64, sectionID string) {
	remaining := math.Max(0, beats)
	for remaining > util.Eps {
		dur := math.Min(remaining, g.beatCap)
		g.notes = append(g.notes, model.Rest(dur, sectionID))
		g.cursor += dur
		remaining -= dur
	}
}

// Append splices in pre-built notes (a projected verse instance) and
// re-anchors the walk on their last sung pitch.
func (g *Generator) Append(notes []model.Note) {
	for _, n := range notes {
		g.notes = append(g.notes, n)
		g.cursor += n.Beats
		if !n.IsRest {
			midi := theory.PitchToMidi(n.Pitch)
			if g.started && midi == g.prev {
				g.repeatRun++
			} else {
				g.repeatRun = 1
			}
			g.prev = midi
			g.started = true
		}
	}
}

// AddSection realizes a rhythm plan into sung notes. Verse and bridge
// sections sit around E4, everything else around G4.
func (g *Generator) AddSection(plan rhythm.Plan, label string) {
	archetype := rhythm.SectionArchetype(label)
	g.center = 67
	if archetype == "verse" || archetype == "bridge" {
		g.center = 64
	}
	if !g.started {
		g.prev = g.center
		g.started = true
	}

	if plan.LeadingRest > util.Eps {
		g.AddRest(plan.LeadingRest, model.SectionPadding)
	}

	phraseBounds := phraseSpans(plan.Slots)
	for si, slot := range plan.Slots {
		stepBase := stepChoices[g.rng.Intn(len(stepChoices))]
		stressedBonus := 0
		if slot.Stressed {
			stressedBonus = 1
		}
		contour := contourBias(si, phraseBounds)

		for ni, duration := range slot.Durations {
			mode := slot.Modes[ni]
			measureNumber := int(g.cursor/g.beatCap) + 1
			measureBeat := math.Mod(g.cursor, g.beatCap)
			chord, hasChord := g.chords[measureNumber]
			chordTones := g.scaleSet
			if hasChord {
				chordTones = theory.PitchClassSetOf(chord.PitchClasses)
			}

			step := stepBase + contour - stressedBonus
			if slot.Stressed && ni == 0 && stepBase < 2 && g.prev < theory.VoiceTessitura[model.VoiceSoprano][1]-2 {
				step++
			}
			if g.repeatRun >= 3 && step == 0 {
				if g.prev > g.center {
					step = -2
				} else {
					step = 2
				}
			}

			candidate := theory.ConstrainToVoice(g.prev+step, g.prev, model.VoiceSoprano, g.scaleSet)

			switch {
			case mode == model.LyricTieContinue:
				candidate = g.prev
			case mode == model.LyricMelismaContinue:
				drift := g.rng.Intn(3) - 1
				candidate = theory.ConstrainToVoice(g.prev+drift, g.prev, model.VoiceSoprano, g.scaleSet)
				if util.Abs(candidate-g.prev) > 1 {
					candidate = g.prev
				}
			case meter.IsStrongBeat(measureBeat, g.timeSignature):
				candidate = theory.NearestPitchClassWithLeap(candidate, g.prev, chordTones, model.VoiceSoprano)
				candidate = theory.ConstrainToVoice(candidate, g.prev, model.VoiceSoprano, g.scaleSet)
				candidate = theory.NearestPitchClassWithLeap(candidate, g.prev, chordTones, model.VoiceSoprano)
			}

			if slot.PhraseEnd && ni == 0 && !model.IsContinuation(mode) {
				candidate = stabilize(candidate, g.prev, chord, hasChord, g.scale)
			}

			g.notes = append(g.notes, model.Note{
				Pitch:           theory.MidiToPitch(candidate),
				Beats:           duration,
				Lyric:           lyricFor(slot, mode),
				LyricSyllableID: slot.SyllableID,
				LyricMode:       mode,
				SectionID:       slot.SectionID,
				LyricIndex:      slot.LyricIndex,
			})

			if candidate == g.prev {
				g.repeatRun++
			} else {
				g.repeatRun = 1
			}
			g.prev = candidate
			g.cursor += duration
		}
	}
}

// stabilize snaps a phrase-ending note toward the active chord's
// pitch classes, or toward the tonic triad for a tonic cadence.
func stabilize(candidate, previous int, chord model.ChordEvent, hasChord bool, scale theory.Scale) int {
	pcs := theory.PitchClassSetOf(theory.Triad(scale, 1))
	if hasChord && chord.Degree != 1 {
		pcs = theory.PitchClassSetOf(chord.PitchClasses)
	}
	return theory.NearestPitchClassWithLeap(candidate, previous, pcs, model.VoiceSoprano)
}

func lyricFor(slot rhythm.Slot, mode model.LyricMode) string {
	if model.IsContinuation(mode) {
		return ""
	}
	return slot.Text
}

type span struct{ start, end int }

func phraseSpans(slots []rhythm.Slot) []span {
	var spans []span
	start := 0
	for i, slot := range slots {
		if slot.PhraseEnd {
			spans = append(spans, span{start, i})
			start = i + 1
		}
	}
	if start < len(slots) {
		spans = append(spans, span{start, len(slots) - 1})
	}
	return spans
}

// contourBias lifts the first half of a phrase and settles the
// second half.
func contourBias(slotIdx int, spans []span) int {
	for _, sp := range spans {
		if slotIdx < sp.start || slotIdx > sp.end {
			continue
		}
		length := sp.end - sp.start + 1
		if length <= 1 {
			return 0
		}
		if slotIdx-sp.start < length/2 {
			return 1
		}
		return -1
	}
	return 0
}

// ProjectPlan rebuilds a later verse instance's notes from the first
// instance's note stream: pitches come from whichever template note
// is sounding at each chunk's offset, durations and lyric metadata
// come from the projected plan.
func ProjectPlan(template []model.Note, plan rhythm.Plan) []model.Note {
	type segment struct {
		start, end float64
		pitch      string
		isRest     bool
	}
	var segments []segment
	pos := 0.0
	for _, n := range template {
		segments = append(segments, segment{pos, pos + n.Beats, n.Pitch, n.IsRest})
		pos += n.Beats
	}
	pitchAt := func(offset float64) string {
		last := "C4"
		for _, seg := range segments {
			if seg.isRest {
				continue
			}
			if offset >= seg.start-util.Eps && offset < seg.end-util.Eps {
				return seg.pitch
			}
			last = seg.pitch
		}
		return last
	}

	var out []model.Note
	offset := 0.0
	if plan.LeadingRest > util.Eps {
		out = append(out, model.Rest(plan.LeadingRest, model.SectionPadding))
		offset += plan.LeadingRest
	}
	for _, slot := range plan.Slots {
		for ni, duration := range slot.Durations {
			mode := slot.Modes[ni]
			out = append(out, model.Note{
				Pitch:           pitchAt(offset),
				Beats:           duration,
				Lyric:           lyricFor(slot, mode),
				LyricSyllableID: slot.SyllableID,
				LyricMode:       mode,
				SectionID:       slot.SectionID,
				LyricIndex:      slot.LyricIndex,
			})
			offset += duration
		}
	}
	return out
}
