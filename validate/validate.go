// Package validate runs the diagnostic battery over a canonical
// score. Fatal diagnostics mean the score breaks a hard guarantee;
// warnings flag musical roughness a reader may still accept.
package validate

import (
	"fmt"
	"math"

	"github.com/jsphweid/choirgen/meter"
	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/theory"
	"github.com/jsphweid/choirgen/util"
)

// Check returns every diagnostic for the score, fatal and warning
// alike, in a stable order.
func Check(score *model.CanonicalScore) []model.Diagnostic {
	c := &checker{
		score:   score,
		scale:   theory.ParseKey(score.Meta.Key, score.Meta.PrimaryMode),
		beatCap: meter.BeatsPerMeasure(score.Meta.TimeSignature),
	}
	c.scaleSet = c.scale.PitchClassSet()
	c.chordByMeasure = make(map[int]model.ChordEvent, len(score.ChordProgression))
	for _, ch := range score.ChordProgression {
		c.chordByMeasure[ch.MeasureNumber] = ch
	}

	c.checkMeasures()
	c.checkProgression()
	c.checkLyrics()
	c.checkMelodicMotion()
	if score.Meta.Stage == model.StageSATB {
		c.checkVoicing()
	}
	return c.diags
}

type checker struct {
	score          *model.CanonicalScore
	scale          theory.Scale
	scaleSet       map[int]bool
	beatCap        float64
	chordByMeasure map[int]model.ChordEvent
	diags          []model.Diagnostic
}

func (c *checker) add(severity, code, message string, measure int, voice model.VoiceName) {
	c.diags = append(c.diags, model.Diagnostic{
		Severity: severity,
		Code:     code,
		Message:  message,
		Measure:  measure,
		Voice:    voice,
	})
}

func (c *checker) expectedVoices() []model.VoiceName {
	if c.score.Meta.Stage == model.StageSATB {
		return model.VoiceNames
	}
	return []model.VoiceName{model.VoiceSoprano}
}

func (c *checker) checkMeasures() {
	for _, m := range c.score.Measures {
		for _, voice := range c.expectedVoices() {
			notes, ok := m.Voices[voice]
			if !ok {
				c.add(model.SeverityFatal, model.DiagVoiceMisalignment,
					fmt.Sprintf("measure %d has no %s part", m.Number, voice), m.Number, voice)
				continue
			}
			sum := 0.0
			for _, n := range notes {
				sum += n.Beats
			}
			if !util.AlmostEqual(sum, c.beatCap) {
				c.add(model.SeverityFatal, model.DiagMeasureBeats,
					fmt.Sprintf("measure %d %s sums to %.3f beats, expected %.3f", m.Number, voice, sum, c.beatCap),
					m.Number, voice)
			}
		}
	}
}

func (c *checker) checkProgression() {
	if len(c.score.ChordProgression) == 0 {
		c.add(model.SeverityFatal, model.DiagEmptyProgression, "score has no chord progression", 0, "")
		return
	}
	for n := 1; n <= len(c.score.Measures); n++ {
		if _, ok := c.chordByMeasure[n]; !ok {
			c.add(model.SeverityFatal, model.DiagMissingChord,
				fmt.Sprintf("measure %d has no chord", n), n, "")
		}
	}
	for _, ch := range c.score.ChordProgression {
		for _, pc := range ch.PitchClasses {
			if !c.scaleSet[pc] {
				c.add(model.SeverityFatal, model.DiagNonDiatonicChord,
					fmt.Sprintf("chord %s in measure %d leaves the key of %s", ch.Symbol, ch.MeasureNumber, c.score.Meta.Key),
					ch.MeasureNumber, "")
				break
			}
		}
	}
}

func (c *checker) checkLyrics() {
	sections := make(map[string]model.Section, len(c.score.Sections))
	syllables := make(map[string]model.Syllable)
	started := make(map[string]int)
	for _, sec := range c.score.Sections {
		sections[sec.ID] = sec
		for _, syl := range sec.Syllables {
			syllables[syl.ID] = syl
		}
	}

	endPos := make(map[string]float64)
	cursor := 0.0
	for _, n := range c.score.FlattenVoice(model.VoiceSoprano) {
		cursor += n.Beats
		if n.IsRest {
			continue
		}
		measureNumber := int((cursor - n.Beats + util.Eps) / c.beatCap) + 1
		if n.SectionID != model.SectionPadding && n.SectionID != model.SectionInterlude {
			if _, ok := sections[n.SectionID]; !ok {
				c.add(model.SeverityFatal, model.DiagOrphanNote,
					fmt.Sprintf("note in measure %d references unknown section %q", measureNumber, n.SectionID),
					measureNumber, model.VoiceSoprano)
				continue
			}
		}
		if n.LyricSyllableID == "" {
			continue
		}
		if _, ok := syllables[n.LyricSyllableID]; !ok {
			c.add(model.SeverityFatal, model.DiagUnknownSyllable,
				fmt.Sprintf("note in measure %d references unknown syllable %q", measureNumber, n.LyricSyllableID),
				measureNumber, model.VoiceSoprano)
			continue
		}
		if model.IsContinuation(n.LyricMode) {
			if n.Lyric != "" {
				c.add(model.SeverityFatal, model.DiagContinuationLyric,
					fmt.Sprintf("continuation note in measure %d carries lyric text %q", measureNumber, n.Lyric),
					measureNumber, model.VoiceSoprano)
			}
		} else {
			started[n.LyricSyllableID]++
		}
		endPos[n.LyricSyllableID] = cursor
	}

	for id, count := range started {
		if count > 1 {
			syl := syllables[id]
			c.add(model.SeverityFatal, model.DiagDuplicateSyllable,
				fmt.Sprintf("syllable %q (%s) starts %d times", syl.Text, id, count), 0, model.VoiceSoprano)
		}
	}

	for _, sec := range c.score.Sections {
		missing := 0
		for _, syl := range sec.Syllables {
			if started[syl.ID] == 0 {
				missing++
			}
			if syl.PhraseEndAfter && started[syl.ID] > 0 {
				end := endPos[syl.ID]
				inMeasure := math.Mod(end, c.beatCap)
				if !util.AlmostZero(inMeasure) && !util.AlmostEqual(inMeasure, c.beatCap) {
					c.add(model.SeverityWarning, model.DiagPhraseEndOffBarline,
						fmt.Sprintf("phrase ending on %q lands mid-measure at beat %.3f", syl.Text, end),
						int(end/c.beatCap)+1, model.VoiceSoprano)
				}
			}
		}
		if missing > 0 {
			c.add(model.SeverityFatal, model.DiagUnmappedSyllables,
				fmt.Sprintf("section %q leaves %d of %d syllables unsung", sec.ID, missing, len(sec.Syllables)), 0, model.VoiceSoprano)
		}
	}
}

func (c *checker) checkMelodicMotion() {
	for _, voice := range c.expectedVoices() {
		prev := -1
		cursor := 0.0
		for _, n := range c.score.FlattenVoice(voice) {
			start := cursor
			cursor += n.Beats
			if n.IsRest {
				prev = -1
				continue
			}
			midi := theory.PitchToMidi(n.Pitch)
			measureNumber := int(start/c.beatCap) + 1
			r := theory.VoiceRanges[voice]
			t := theory.VoiceTessitura[voice]
			if midi < r[0] || midi > r[1] {
				c.add(model.SeverityWarning, model.DiagRange,
					fmt.Sprintf("%s %s in measure %d is outside the voice range", voice, n.Pitch, measureNumber),
					measureNumber, voice)
			} else if midi < t[0] || midi > t[1] {
				c.add(model.SeverityWarning, model.DiagTessituraExtreme,
					fmt.Sprintf("%s %s in measure %d strains the tessitura", voice, n.Pitch, measureNumber),
					measureNumber, voice)
			}
			if prev >= 0 && util.Abs(midi-prev) > theory.MaxMelodicLeap {
				c.add(model.SeverityWarning, model.DiagLeap,
					fmt.Sprintf("%s leaps %d semitones into measure %d", voice, util.Abs(midi-prev), measureNumber),
					measureNumber, voice)
			}
			if voice == model.VoiceSoprano && !model.IsContinuation(n.LyricMode) {
				beat := math.Mod(start, c.beatCap)
				if chord, ok := c.chordByMeasure[measureNumber]; ok && meter.IsStrongBeat(beat, c.score.Meta.TimeSignature) {
					if !theory.PitchClassSetOf(chord.PitchClasses)[((midi%12)+12)%12] {
						c.add(model.SeverityWarning, model.DiagStrongBeatConflict,
							fmt.Sprintf("strong-beat %s in measure %d is not a tone of %s", n.Pitch, measureNumber, chord.Symbol),
							measureNumber, voice)
					}
				}
			}
			prev = midi
		}
	}
}

// sounding is one simultaneous SATB slice.
type sounding struct {
	measure int
	midis   map[model.VoiceName]int
}

func (c *checker) checkVoicing() {
	streams := make(map[model.VoiceName][]model.Note, 4)
	for _, voice := range model.VoiceNames {
		streams[voice] = c.score.FlattenVoice(voice)
	}
	count := len(streams[model.VoiceSoprano])
	for _, voice := range model.VoiceNames[1:] {
		if len(streams[voice]) != count {
			c.add(model.SeverityFatal, model.DiagVoiceMisalignment,
				fmt.Sprintf("%s has %d events, soprano has %d", voice, len(streams[voice]), count), 0, voice)
			return
		}
	}

	var slices []sounding
	cursor := 0.0
	for i := 0; i < count; i++ {
		s := streams[model.VoiceSoprano][i]
		measureNumber := int(cursor/c.beatCap) + 1
		cursor += s.Beats
		if s.IsRest {
			continue
		}
		slice := sounding{measure: measureNumber, midis: map[model.VoiceName]int{}}
		complete := true
		for _, voice := range model.VoiceNames {
			n := streams[voice][i]
			if n.IsRest {
				complete = false
				break
			}
			slice.midis[voice] = theory.PitchToMidi(n.Pitch)
		}
		if complete {
			slices = append(slices, slice)
		}
	}

	for i, sl := range slices {
		s, a := sl.midis[model.VoiceSoprano], sl.midis[model.VoiceAlto]
		t, b := sl.midis[model.VoiceTenor], sl.midis[model.VoiceBass]
		if s < a || a < t || t < b {
			c.add(model.SeverityWarning, model.DiagVoiceCrossing,
				fmt.Sprintf("voices cross in measure %d", sl.measure), sl.measure, "")
		}
		if s-a > 12 || a-t > 12 || t-b > 16 {
			c.add(model.SeverityWarning, model.DiagWideSpacing,
				fmt.Sprintf("voices spread too far apart in measure %d", sl.measure), sl.measure, "")
		}
		if i > 0 {
			c.checkParallels(slices[i-1], sl)
		}
	}

	c.checkChordCoverage(streams)
}

var voicePairs = [][2]model.VoiceName{
	{model.VoiceSoprano, model.VoiceAlto},
	{model.VoiceSoprano, model.VoiceTenor},
	{model.VoiceSoprano, model.VoiceBass},
	{model.VoiceAlto, model.VoiceTenor},
	{model.VoiceAlto, model.VoiceBass},
	{model.VoiceTenor, model.VoiceBass},
}

func (c *checker) checkParallels(prev, curr sounding) {
	for _, pair := range voicePairs {
		p0, p1 := prev.midis[pair[0]], prev.midis[pair[1]]
		c0, c1 := curr.midis[pair[0]], curr.midis[pair[1]]
		int0 := util.Abs(p0-p1) % 12
		int1 := util.Abs(c0-c1) % 12
		sameDir := (c0-p0 > 0 && c1-p1 > 0) || (c0-p0 < 0 && c1-p1 < 0)
		if sameDir && (int0 == 0 || int0 == 7) && int1 == int0 {
			c.add(model.SeverityWarning, model.DiagParallelMotion,
				fmt.Sprintf("%s and %s move in parallel perfect intervals into measure %d", pair[0], pair[1], curr.measure),
				curr.measure, pair[0])
		}
	}
}

// checkChordCoverage warns when a measure's downbeat voicing omits the
// chord root entirely.
func (c *checker) checkChordCoverage(streams map[model.VoiceName][]model.Note) {
	rootAt := make(map[int]int)
	for n, ch := range c.chordByMeasure {
		if len(ch.PitchClasses) > 0 {
			rootAt[n] = ch.PitchClasses[0]
		}
	}

	covered := make(map[int]bool)
	seen := make(map[int]bool)
	for _, voice := range model.VoiceNames {
		cursor := 0.0
		for _, n := range streams[voice] {
			start := cursor
			cursor += n.Beats
			if n.IsRest {
				continue
			}
			if !util.AlmostZero(math.Mod(start, c.beatCap)) {
				continue
			}
			measureNumber := int(start/c.beatCap) + 1
			seen[measureNumber] = true
			if root, ok := rootAt[measureNumber]; ok {
				midi := theory.PitchToMidi(n.Pitch)
				if ((midi%12)+12)%12 == root {
					covered[measureNumber] = true
				}
			}
		}
	}
	for n := 1; n <= len(c.score.Measures); n++ {
		if seen[n] && !covered[n] {
			if ch, ok := c.chordByMeasure[n]; ok {
				c.add(model.SeverityWarning, model.DiagChordToneConflict,
					fmt.Sprintf("measure %d opens without the root of %s in any voice", n, ch.Symbol), n, "")
			}
		}
	}
}
