// Package progression produces one diatonic chord per measure from
// cluster-cycle templates, then biases cadences and repairs gaps.
package progression

import (
	"sort"

	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/theory"
)

var cycleTemplates = map[string][]int{
	"verse":      {1, 4, 5, 6},
	"chorus":     {1, 5, 6, 4},
	"bridge":     {6, 4, 1, 5},
	"pre-chorus": {2, 4, 5, 1},
	"intro":      {1, 5, 6, 4},
	"outro":      {1, 4, 1, 5},
	"custom":     {1, 6, 4, 5},
}

// CycleFor returns the 4-degree cycle for a section archetype.
func CycleFor(archetype string) []int {
	if cycle, ok := cycleTemplates[archetype]; ok {
		return cycle
	}
	return cycleTemplates["custom"]
}

func chordEvent(scale theory.Scale, measureNumber int, sectionID string, degree int) model.ChordEvent {
	return model.ChordEvent{
		MeasureNumber: measureNumber,
		SectionID:     sectionID,
		Degree:        degree,
		Symbol:        theory.ChordSymbol(scale, degree),
		PitchClasses:  theory.Triad(scale, degree),
	}
}

// Build repeats the cycle across a section's measures.
func Build(scale theory.Scale, sectionID string, startMeasure, measureCount int, cycle []int) []model.ChordEvent {
	out := make([]model.ChordEvent, 0, measureCount)
	for i := 0; i < measureCount; i++ {
		out = append(out, chordEvent(scale, startMeasure+i, sectionID, cycle[i%len(cycle)]))
	}
	return out
}

// Repair rebuilds every chord whose degree is outside 1-7 as a tonic
// triad and fills any silently-missing measure the same way. The
// result is sorted by measure and covers 1..measureCount exactly.
func Repair(chords []model.ChordEvent, measureCount int, scale theory.Scale) []model.ChordEvent {
	repaired := make([]model.ChordEvent, 0, measureCount)
	seen := make(map[int]bool)

	sorted := append([]model.ChordEvent(nil), chords...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MeasureNumber < sorted[j].MeasureNumber })

	for _, ch := range sorted {
		if seen[ch.MeasureNumber] || ch.MeasureNumber < 1 || ch.MeasureNumber > measureCount {
			continue
		}
		degree := ch.Degree
		if degree < 1 || degree > 7 {
			degree = 1
		}
		repaired = append(repaired, chordEvent(scale, ch.MeasureNumber, ch.SectionID, degree))
		seen[ch.MeasureNumber] = true
	}

	fallbackSection := model.SectionPadding
	if len(repaired) > 0 {
		fallbackSection = repaired[0].SectionID
	}
	for n := 1; n <= measureCount; n++ {
		if !seen[n] {
			repaired = append(repaired, chordEvent(scale, n, fallbackSection, 1))
		}
	}

	sort.SliceStable(repaired, func(i, j int) bool { return repaired[i].MeasureNumber < repaired[j].MeasureNumber })
	return repaired
}

// PhraseSpan is the measure range one lyric phrase occupies.
type PhraseSpan struct {
	StartMeasure int
	EndMeasure   int
}

// ApplyCadences forces each phrase's ending measure to the tonic and,
// when the phrase has room, the penultimate measure to the dominant
// (the supertonic for phrases three measures or longer). Chords
// outside each phrase's immediate vicinity are untouched.
func ApplyCadences(chords []model.ChordEvent, spans []PhraseSpan, scale theory.Scale) []model.ChordEvent {
	byMeasure := make(map[int]int, len(chords))
	out := append([]model.ChordEvent(nil), chords...)
	for i, ch := range out {
		byMeasure[ch.MeasureNumber] = i
	}

	set := func(measure, degree int) {
		idx, ok := byMeasure[measure]
		if !ok {
			return
		}
		out[idx] = chordEvent(scale, measure, out[idx].SectionID, degree)
	}

	for _, span := range spans {
		if span.EndMeasure < span.StartMeasure {
			continue
		}
		set(span.EndMeasure, 1)
		length := span.EndMeasure - span.StartMeasure + 1
		if length >= 2 {
			degree := 5
			if length >= 3 {
				degree = 2
			}
			set(span.EndMeasure-1, degree)
		}
	}
	return out
}
