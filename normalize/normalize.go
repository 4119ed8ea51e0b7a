// Package normalize re-buckets flat per-voice note streams into the
// canonical measure layout.
package normalize

import (
	"math"
	"sort"

	"github.com/jsphweid/choirgen/meter"
	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/util"
)

// PackVoices slices each voice's flat note stream into measures whose
// beats sum exactly to the meter. Notes that cross a barline are split
// into tied chunks; only the first chunk keeps the lyric text. Voices
// shorter than the longest one are padded with rests so every measure
// carries all four voices.
func PackVoices(voices map[model.VoiceName][]model.Note, timeSignature string) []model.Measure {
	beatCap := meter.BeatsPerMeasure(timeSignature)

	total := 0.0
	for _, notes := range voices {
		total = math.Max(total, util.SumFloats(beats(notes)))
	}
	measureCount := int(math.Ceil(total/beatCap - util.Eps))
	if measureCount < 1 {
		measureCount = 1
	}
	target := float64(measureCount) * beatCap

	measures := make([]model.Measure, measureCount)
	for i := range measures {
		measures[i] = model.Measure{
			Number: i + 1,
			Voices: make(map[model.VoiceName][]model.Note, len(voices)),
		}
	}

	for _, voice := range model.VoiceNames {
		notes, ok := voices[voice]
		if !ok {
			continue
		}
		stream := padToTarget(notes, target)
		cursor := 0.0
		for _, n := range stream {
			for _, chunk := range splitAtBarlines(n, cursor, beatCap) {
				idx := int((cursor + util.Eps) / beatCap)
				if idx >= measureCount {
					idx = measureCount - 1
				}
				measures[idx].Voices[voice] = append(measures[idx].Voices[voice], chunk)
				cursor += chunk.Beats
			}
		}
	}
	return measures
}

func beats(notes []model.Note) []float64 {
	out := make([]float64, len(notes))
	for i, n := range notes {
		out[i] = n.Beats
	}
	return out
}

func padToTarget(notes []model.Note, target float64) []model.Note {
	sum := util.SumFloats(beats(notes))
	if target-sum <= util.Eps {
		return notes
	}
	out := append([]model.Note(nil), notes...)
	out = append(out, model.Rest(target-sum, model.SectionPadding))
	return out
}

// splitAtBarlines cuts one note into chunks that never cross a
// barline. Sung notes become a tie chain; rest chunks stay rests.
func splitAtBarlines(n model.Note, start, beatCap float64) []model.Note {
	var out []model.Note
	remaining := n.Beats
	pos := start
	first := true
	for remaining > util.Eps {
		inMeasure := math.Mod(pos, beatCap)
		if util.AlmostEqual(inMeasure, beatCap) || util.AlmostZero(inMeasure) {
			inMeasure = 0
		}
		room := beatCap - inMeasure
		dur := remaining
		if dur > room+util.Eps {
			dur = room
		}

		chunk := n
		chunk.Beats = dur
		if !n.IsRest && !first {
			chunk.Lyric = ""
			chunk.LyricMode = model.LyricTieContinue
		}
		if !n.IsRest && first && remaining-dur > util.Eps {
			switch n.LyricMode {
			case model.LyricSingle, model.LyricSubdivision:
				chunk.LyricMode = model.LyricTieStart
			}
		}
		out = append(out, chunk)

		pos += dur
		remaining -= dur
		first = false
	}
	return out
}

// SortChords orders a progression by measure, in place, and returns it.
func SortChords(chords []model.ChordEvent) []model.ChordEvent {
	sort.SliceStable(chords, func(i, j int) bool { return chords[i].MeasureNumber < chords[j].MeasureNumber })
	return chords
}
