// Package mxl renders a canonical score as MusicXML 3.1 (partwise).
// Each voice becomes its own part; verse lyrics carry the verse
// number so engravers stack them under the shared music-unit line.
package mxl

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/jsphweid/choirgen/meter"
	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/theory"
	"github.com/jsphweid/choirgen/util"
)

// Divisions per quarter note.
const divisions = 480

const header = xml.Header +
	`<!DOCTYPE score-partwise PUBLIC "-//Recordare//DTD MusicXML 3.1 Partwise//EN" "http://www.musicxml.org/dtds/partwise.dtd">` + "\n"

type scorePartwise struct {
	XMLName  xml.Name    `xml:"score-partwise"`
	Version  string      `xml:"version,attr"`
	Movement string      `xml:"movement-title,omitempty"`
	PartList []scorePart `xml:"part-list>score-part"`
	Parts    []part      `xml:"part"`
}

type scorePart struct {
	ID       string `xml:"id,attr"`
	PartName string `xml:"part-name"`
}

type part struct {
	ID       string    `xml:"id,attr"`
	Measures []measure `xml:"measure"`
}

type measure struct {
	Number     int         `xml:"number,attr"`
	Attributes *attributes `xml:"attributes,omitempty"`
	Harmonies  []harmony   `xml:"harmony,omitempty"`
	Notes      []note      `xml:"note"`
}

type attributes struct {
	Divisions int       `xml:"divisions"`
	Key       keyElem   `xml:"key"`
	Time      timeElem  `xml:"time"`
	Clef      *clefElem `xml:"clef,omitempty"`
}

type keyElem struct {
	Fifths int    `xml:"fifths"`
	Mode   string `xml:"mode"`
}

type timeElem struct {
	Beats    int `xml:"beats"`
	BeatType int `xml:"beat-type"`
}

type clefElem struct {
	Sign string `xml:"sign"`
	Line int    `xml:"line"`
}

type harmony struct {
	RootStep  string `xml:"root>root-step"`
	RootAlter int    `xml:"root>root-alter,omitempty"`
	Kind      string `xml:"kind"`
}

type note struct {
	Rest     *struct{}  `xml:"rest,omitempty"`
	Pitch    *pitchElem `xml:"pitch,omitempty"`
	Duration int        `xml:"duration"`
	Ties     []tieElem  `xml:"tie,omitempty"`
	Voice    int        `xml:"voice"`
	Type     string     `xml:"type,omitempty"`
	Dot      *struct{}  `xml:"dot,omitempty"`
	Lyrics   []lyric    `xml:"lyric,omitempty"`
}

type pitchElem struct {
	Step   string `xml:"step"`
	Alter  int    `xml:"alter,omitempty"`
	Octave int    `xml:"octave"`
}

type tieElem struct {
	Type string `xml:"type,attr"`
}

type lyric struct {
	Number   int       `xml:"number,attr"`
	Syllabic string    `xml:"syllabic,omitempty"`
	Text     string    `xml:"text"`
	Extend   *struct{} `xml:"extend,omitempty"`
}

// Encode writes the score as a MusicXML document.
func Encode(score *model.CanonicalScore, w io.Writer) error {
	doc := build(score)
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func build(score *model.CanonicalScore) scorePartwise {
	doc := scorePartwise{Version: "3.1", Movement: movementTitle(score)}

	scale := theory.ParseKey(score.Meta.Key, score.Meta.PrimaryMode)
	top, bottom, err := meter.Parse(score.Meta.TimeSignature)
	if err != nil {
		top, bottom = 4, 4
	}
	syllabics := syllabicByID(score.Sections)
	verseNumbers := verseNumberBySection(score.Sections)

	for pi, voice := range model.VoiceNames {
		partID := fmt.Sprintf("P%d", pi+1)
		doc.PartList = append(doc.PartList, scorePart{ID: partID, PartName: partName(voice)})

		p := part{ID: partID}
		chordByMeasure := make(map[int]model.ChordEvent, len(score.ChordProgression))
		for _, ch := range score.ChordProgression {
			chordByMeasure[ch.MeasureNumber] = ch
		}

		for mi, m := range score.Measures {
			out := measure{Number: m.Number}
			if mi == 0 {
				out.Attributes = &attributes{
					Divisions: divisions,
					Key:       keyElem{Fifths: fifths(scale), Mode: modeName(scale)},
					Time:      timeElem{Beats: top, BeatType: bottom},
					Clef:      clefFor(voice),
				}
			}
			if voice == model.VoiceSoprano {
				if ch, ok := chordByMeasure[m.Number]; ok {
					out.Harmonies = append(out.Harmonies, harmonyFor(ch))
				}
			}

			notes := m.Voices[voice]
			for ni, n := range notes {
				out.Notes = append(out.Notes, buildNote(n, nextMode(notes, score.Measures, mi, ni, voice), syllabics, verseNumbers))
			}
			p.Measures = append(p.Measures, out)
		}
		doc.Parts = append(doc.Parts, p)
	}
	return doc
}

func partName(voice model.VoiceName) string {
	return strings.ToUpper(voice[:1]) + voice[1:]
}

func movementTitle(score *model.CanonicalScore) string {
	for _, sec := range score.Sections {
		if sec.Title != "" {
			return sec.Title
		}
	}
	return ""
}

// nextMode peeks at the lyric mode of the following note in the same
// voice, crossing the barline, so tie starts can be marked.
func nextMode(notes []model.Note, measures []model.Measure, mi, ni int, voice model.VoiceName) model.LyricMode {
	if ni+1 < len(notes) {
		return notes[ni+1].LyricMode
	}
	for j := mi + 1; j < len(measures); j++ {
		if next := measures[j].Voices[voice]; len(next) > 0 {
			return next[0].LyricMode
		}
	}
	return model.LyricNone
}

func buildNote(n model.Note, next model.LyricMode, syllabics map[string]string, verses map[string]int) note {
	out := note{Duration: int(n.Beats*divisions + 0.5), Voice: 1}
	out.Type, out.Dot = noteType(n.Beats)

	if n.IsRest {
		out.Rest = &struct{}{}
		return out
	}

	midi := theory.PitchToMidi(n.Pitch)
	step, alter, octave := spell(midi)
	out.Pitch = &pitchElem{Step: step, Alter: alter, Octave: octave}

	if n.LyricMode == model.LyricTieContinue {
		out.Ties = append(out.Ties, tieElem{Type: "stop"})
	}
	if next == model.LyricTieContinue {
		out.Ties = append(out.Ties, tieElem{Type: "start"})
	}

	if n.Lyric != "" {
		l := lyric{
			Number:   verses[n.SectionID],
			Syllabic: syllabics[n.LyricSyllableID],
			Text:     n.Lyric,
		}
		if n.LyricMode == model.LyricMelismaStart {
			l.Extend = &struct{}{}
		}
		out.Lyrics = append(out.Lyrics, l)
	}
	return out
}

func spell(midi int) (step string, alter, octave int) {
	name := theory.MidiToPitch(midi)
	octave = int(name[len(name)-1] - '0')
	step = name[:1]
	if strings.Contains(name, "#") {
		alter = 1
	}
	return step, alter, octave
}

// noteType maps a quarter-note beat length onto a notated type plus
// dot, leaving both empty for lengths with no single-glyph spelling.
func noteType(beats float64) (string, *struct{}) {
	types := []struct {
		beats  float64
		name   string
		dotted bool
	}{
		{4, "whole", false},
		{3, "half", true},
		{2, "half", false},
		{1.5, "quarter", true},
		{1, "quarter", false},
		{0.75, "eighth", true},
		{0.5, "eighth", false},
		{0.25, "16th", false},
	}
	for _, t := range types {
		if util.AlmostEqual(beats, t.beats) {
			if t.dotted {
				return t.name, &struct{}{}
			}
			return t.name, nil
		}
	}
	return "", nil
}

// syllabicByID derives begin/middle/end/single per syllable from word
// grouping within each section.
func syllabicByID(sections []model.Section) map[string]string {
	out := make(map[string]string)
	for _, sec := range sections {
		counts := make(map[int]int)
		for _, syl := range sec.Syllables {
			counts[syl.WordIndex]++
		}
		for _, syl := range sec.Syllables {
			total := counts[syl.WordIndex]
			switch {
			case total <= 1:
				out[syl.ID] = "single"
			case syl.SyllableIndexInWord == 0:
				out[syl.ID] = "begin"
			case syl.SyllableIndexInWord == total-1:
				out[syl.ID] = "end"
			default:
				out[syl.ID] = "middle"
			}
		}
	}
	return out
}

func verseNumberBySection(sections []model.Section) map[string]int {
	out := make(map[string]int, len(sections)+2)
	for _, sec := range sections {
		n := sec.VerseNumber
		if n < 1 {
			n = 1
		}
		out[sec.ID] = n
	}
	out[model.SectionPadding] = 1
	out[model.SectionInterlude] = 1
	return out
}

func clefFor(voice model.VoiceName) *clefElem {
	switch voice {
	case model.VoiceTenor:
		return &clefElem{Sign: "G", Line: 2}
	case model.VoiceBass:
		return &clefElem{Sign: "F", Line: 4}
	}
	return &clefElem{Sign: "G", Line: 2}
}

func harmonyFor(ch model.ChordEvent) harmony {
	symbol := ch.Symbol
	kind := "major"
	switch {
	case strings.HasSuffix(symbol, "dim"):
		kind = "diminished"
		symbol = strings.TrimSuffix(symbol, "dim")
	case strings.HasSuffix(symbol, "m"):
		kind = "minor"
		symbol = strings.TrimSuffix(symbol, "m")
	}
	h := harmony{RootStep: symbol[:1], Kind: kind}
	if strings.Contains(symbol, "#") {
		h.RootAlter = 1
	}
	return h
}

// fifths maps the scale onto a key-signature accidental count in
// [-6, 6], using the relative major for minor keys.
func fifths(scale theory.Scale) int {
	pc := scale.Semitones()[0]
	if scale.IsMinor {
		pc = (pc + 3) % 12
	}
	for f := -6; f <= 6; f++ {
		if ((f*7)%12+12)%12 == pc {
			return f
		}
	}
	return 0
}

func modeName(scale theory.Scale) string {
	if scale.IsMinor {
		return "minor"
	}
	return "major"
}
