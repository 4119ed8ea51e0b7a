package rhythm

import (
	"fmt"
	"math"

	"github.com/jsphweid/choirgen/meter"
	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/util"
)

// Skeleton is the canonical rhythmic form of a shared music unit,
// computed once from its first arranged instance. Later instances
// are projected onto it rather than replanned, which is what makes
// every verse render with an identical bar count.
type Skeleton struct {
	MusicUnitID string
	PickupBeats float64
	LeadingRest float64
	BarCount    int
	Slots       []SkeletonSlot
}

// SkeletonSlot is a text-free slot: durations, modes, and the phrase
// placement, plus the slot's absolute start position.
type SkeletonSlot struct {
	Durations []float64
	Modes     []model.LyricMode
	PhraseEnd bool
	StartPos  float64
}

func (s SkeletonSlot) totalBeats() float64 {
	return util.SumFloats(s.Durations)
}

// SkeletonFromPlan freezes a plan into a reusable skeleton.
func SkeletonFromPlan(plan Plan, beatCap float64, musicUnitID string) Skeleton {
	sk := Skeleton{
		MusicUnitID: musicUnitID,
		PickupBeats: plan.PickupBeats,
		LeadingRest: plan.LeadingRest,
		BarCount:    plan.BarCount(beatCap),
	}
	pos := plan.LeadingRest
	for _, slot := range plan.Slots {
		sk.Slots = append(sk.Slots, SkeletonSlot{
			Durations: append([]float64(nil), slot.Durations...),
			Modes:     append([]model.LyricMode(nil), slot.Modes...),
			PhraseEnd: slot.PhraseEnd,
			StartPos:  pos,
		})
		pos += util.SumFloats(slot.Durations)
	}
	return sk
}

// VerseForm renders the skeleton as score metadata.
func (sk Skeleton) VerseForm() model.VerseForm {
	form := model.VerseForm{
		MusicUnitID: sk.MusicUnitID,
		PickupBeats: sk.PickupBeats,
		BarCount:    sk.BarCount,
	}
	for i, slot := range sk.Slots {
		form.SlotBeats = append(form.SlotBeats, append([]float64(nil), slot.Durations...))
		if slot.PhraseEnd {
			form.PhraseEndSlots = append(form.PhraseEndSlots, i)
		}
	}
	return form
}

// Project maps a later instance's syllables onto the skeleton,
// truncating (merging trailing slots into the final syllables) or
// expanding (splitting weak-beat non-cadence slots) as needed. The
// projected plan always has the skeleton's exact total duration and
// bar count. The returned syllables carry re-derived phrase
// boundaries. Overflow that expansion cannot absorb is an
// InfeasibleError.
func (sk Skeleton) Project(sectionID string, syllables []model.Syllable, timeSignature string) (Plan, []model.Syllable, error) {
	beatCap := meter.BeatsPerMeasure(timeSignature)
	slots := make([]SkeletonSlot, len(sk.Slots))
	for i, s := range sk.Slots {
		slots[i] = SkeletonSlot{
			Durations: append([]float64(nil), s.Durations...),
			Modes:     append([]model.LyricMode(nil), s.Modes...),
			PhraseEnd: s.PhraseEnd,
			StartPos:  s.StartPos,
		}
	}

	m := len(syllables)
	for len(slots) < m {
		idx := bestSplitIndex(slots, timeSignature, beatCap)
		if idx < 0 {
			return Plan{}, nil, &InfeasibleError{
				Reason: fmt.Sprintf("verse has %d syllables but the shared verse form can absorb at most %d", m, len(slots)),
				Hint:   "shorten this verse's text to match the first verse",
			}
		}
		slots = splitSlot(slots, idx)
	}
	for len(slots) > m {
		idx := lastMergeableIndex(slots)
		if idx < 0 {
			return Plan{}, nil, &InfeasibleError{
				Reason: fmt.Sprintf("verse has %d syllables but the shared verse form has %d phrases", m, len(slots)),
				Hint:   "add text to this verse or restructure the first verse",
			}
		}
		slots = mergeSlot(slots, idx)
	}

	projected := make([]model.Syllable, m)
	plan := Plan{
		SectionID:   sectionID,
		PickupBeats: sk.PickupBeats,
		LeadingRest: sk.LeadingRest,
	}
	cursor := sk.LeadingRest
	for i, slot := range slots {
		syl := syllables[i]
		syl.PhraseEndAfter = slot.PhraseEnd
		syl.BarlineAligned = slot.PhraseEnd
		projected[i] = syl
		plan.Slots = append(plan.Slots, Slot{
			SyllableID: syl.ID,
			Text:       syl.Text,
			SectionID:  sectionID,
			LyricIndex: i,
			Stressed:   syl.Stressed,
			PhraseEnd:  slot.PhraseEnd,
			Durations:  slot.Durations,
			Modes:      slot.Modes,
		})
		cursor += slot.totalBeats()
	}
	plan.TotalBeats = cursor
	return plan, projected, nil
}

// bestSplitIndex picks the slot to split when the new verse has more
// syllables than the skeleton: prefer weak-beat, non-cadence slots
// with the longest single chunk; ties go to the earliest slot.
func bestSplitIndex(slots []SkeletonSlot, timeSignature string, beatCap float64) int {
	best := -1
	bestWeak := false
	bestDur := 0.0
	for i, slot := range slots {
		if slot.PhraseEnd || len(slot.Durations) != 1 || slot.Durations[0] < 1.0-util.Eps {
			continue
		}
		weak := !meter.IsStrongBeat(math.Mod(slot.StartPos, beatCap), timeSignature)
		dur := slot.Durations[0]
		better := false
		switch {
		case best < 0:
			better = true
		case weak != bestWeak:
			better = weak
		case dur > bestDur+util.Eps:
			better = true
		}
		if better {
			best = i
			bestWeak = weak
			bestDur = dur
		}
	}
	return best
}

func splitSlot(slots []SkeletonSlot, idx int) []SkeletonSlot {
	src := slots[idx]
	half := src.Durations[0] / 2
	mode := model.LyricSingle
	if half < 1.0-util.Eps {
		mode = model.LyricSubdivision
	}
	first := SkeletonSlot{Durations: []float64{half}, Modes: []model.LyricMode{mode}, StartPos: src.StartPos}
	second := SkeletonSlot{Durations: []float64{half}, Modes: []model.LyricMode{mode}, PhraseEnd: src.PhraseEnd, StartPos: src.StartPos + half}

	out := make([]SkeletonSlot, 0, len(slots)+1)
	out = append(out, slots[:idx]...)
	out = append(out, first, second)
	out = append(out, slots[idx+1:]...)
	return out
}

// lastMergeableIndex finds the latest slot that can fold into its
// successor without erasing a phrase boundary.
func lastMergeableIndex(slots []SkeletonSlot) int {
	for i := len(slots) - 2; i >= 0; i-- {
		if !slots[i].PhraseEnd {
			return i
		}
	}
	return -1
}

// mergeSlot folds slot idx into idx+1. The merged slot keeps its
// first chunk's articulation as a melisma start and turns the rest
// into continuations, so the absorbed duration stays on one syllable.
func mergeSlot(slots []SkeletonSlot, idx int) []SkeletonSlot {
	left := slots[idx]
	right := slots[idx+1]

	durations := append(append([]float64(nil), left.Durations...), right.Durations...)
	modes := make([]model.LyricMode, len(durations))
	for i := range modes {
		switch {
		case i == 0:
			modes[i] = model.LyricMelismaStart
		case i < len(left.Modes) && left.Modes[i] == model.LyricTieContinue,
			i >= len(left.Modes) && right.Modes[i-len(left.Modes)] == model.LyricTieContinue:
			modes[i] = model.LyricTieContinue
		default:
			modes[i] = model.LyricMelismaContinue
		}
	}

	merged := SkeletonSlot{
		Durations: durations,
		Modes:     modes,
		PhraseEnd: right.PhraseEnd,
		StartPos:  left.StartPos,
	}
	out := make([]SkeletonSlot, 0, len(slots)-1)
	out = append(out, slots[:idx]...)
	out = append(out, merged)
	out = append(out, slots[idx+2:]...)
	return out
}
