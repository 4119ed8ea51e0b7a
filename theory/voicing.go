package theory

import (
	"github.com/jsphweid/choirgen/model"
)

// ConstrainToVoice clamps a candidate MIDI pitch into a voice's
// absolute range, walks it inside the leap limit from the previous
// pitch, nudges it toward the tessitura, and finally forces it onto
// the scale, preferring whichever diatonic neighbor stays closer to
// the previous pitch.
func ConstrainToVoice(candidate, previous int, voice model.VoiceName, scaleSet map[int]bool) int {
	r := VoiceRanges[voice]
	t := VoiceTessitura[voice]
	lo, hi := r[0], r[1]

	candidate = NearestInRange(candidate, lo, hi)
	for abs(candidate-previous) > MaxMelodicLeap {
		if candidate > previous {
			candidate--
		} else {
			candidate++
		}
	}

	if candidate < t[0] {
		candidate++
	} else if candidate > t[1] {
		candidate--
	}

	if !scaleSet[pc(candidate)] {
		up, down := candidate, candidate
		for !scaleSet[pc(up)] && up <= hi {
			up++
		}
		for !scaleSet[pc(down)] && down >= lo {
			down--
		}
		if down >= lo && down <= hi && abs(down-previous) <= abs(up-previous) {
			candidate = down
		} else if up >= lo && up <= hi {
			candidate = up
		}
	}

	return NearestInRange(candidate, lo, hi)
}

// NearestPitchClass picks the MIDI pitch in [lo, hi] whose pitch
// class is in the set, closest to target (lower pitch on ties).
func NearestPitchClass(target int, pitchClasses map[int]bool, lo, hi int) int {
	best := -1
	for m := lo; m <= hi; m++ {
		if !pitchClasses[pc(m)] {
			continue
		}
		if best < 0 || abs(m-target) < abs(best-target) {
			best = m
		}
	}
	if best < 0 {
		return NearestInRange(target, lo, hi)
	}
	return best
}

// NearestPitchClassWithLeap is NearestPitchClass restricted to
// pitches reachable from previous within the leap limit, falling back
// to the unrestricted pick when nothing qualifies. Ties prefer the
// smaller motion from previous, then the lower pitch.
func NearestPitchClassWithLeap(target, previous int, pitchClasses map[int]bool, voice model.VoiceName) int {
	r := VoiceRanges[voice]
	lo, hi := r[0], r[1]
	best := -1
	for m := lo; m <= hi; m++ {
		if !pitchClasses[pc(m)] || abs(m-previous) > MaxMelodicLeap {
			continue
		}
		if best < 0 {
			best = m
			continue
		}
		dt, bt := abs(m-target), abs(best-target)
		if dt < bt || (dt == bt && abs(m-previous) < abs(best-previous)) {
			best = m
		}
	}
	if best < 0 {
		return NearestPitchClass(target, pitchClasses, lo, hi)
	}
	return best
}

// PitchClassSetOf builds a set from a pitch-class slice.
func PitchClassSetOf(pitchClasses []int) map[int]bool {
	set := make(map[int]bool, len(pitchClasses))
	for _, p := range pitchClasses {
		set[p] = true
	}
	return set
}

func pc(midi int) int {
	return ((midi % 12) + 12) % 12
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
