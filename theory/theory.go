// Package theory holds the diatonic pitch math everything else is
// built on: scales, triads, chord symbols, and MIDI/pitch-name
// conversion. Scales are derived on demand and never mutated.
package theory

import (
	"fmt"
	"strings"

	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/util"
)

var noteToSemitone = map[string]int{
	"C": 0, "C#": 1, "Db": 1,
	"D": 2, "D#": 3, "Eb": 3,
	"E": 4,
	"F": 5, "F#": 6, "Gb": 6,
	"G": 7, "G#": 8, "Ab": 8,
	"A": 9, "A#": 10, "Bb": 10,
	"B": 11,
}

// Sharps-only spelling for rendering.
var semitoneToNote = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var (
	majorPattern = [7]int{0, 2, 4, 5, 7, 9, 11}
	minorPattern = [7]int{0, 2, 3, 5, 7, 8, 10}

	majorTriadQualities = [7]string{"", "m", "m", "", "", "m", "dim"}
	minorTriadQualities = [7]string{"m", "dim", "", "m", "m", "", ""}
)

var defaultKeys = []string{"C", "G", "D", "F", "Bb", "A"}
var defaultTimeSignatures = []string{"4/4", "3/4", "6/8"}

// Default SATB ranges, MIDI note numbers, inclusive.
var VoiceRanges = map[model.VoiceName][2]int{
	model.VoiceSoprano: {60, 81}, // C4 - A5
	model.VoiceAlto:    {55, 74}, // G3 - D5
	model.VoiceTenor:   {48, 67}, // C3 - G4
	model.VoiceBass:    {40, 60}, // E2 - C4
}

// The comfortable sub-range within each absolute range.
var VoiceTessitura = map[model.VoiceName][2]int{
	model.VoiceSoprano: {62, 79},
	model.VoiceAlto:    {57, 72},
	model.VoiceTenor:   {50, 65},
	model.VoiceBass:    {43, 58},
}

// MaxMelodicLeap is the largest allowed interval between consecutive
// sung notes in any voice, in semitones.
const MaxMelodicLeap = 7

// Scale is a tonic plus a major/minor-family flag. It is a pure
// value; Semitones derives the pitch-class set each call.
type Scale struct {
	Tonic   string
	IsMinor bool
}

// Semitones returns the 7 diatonic pitch classes in scale order.
func (s Scale) Semitones() [7]int {
	base := noteToSemitone[s.Tonic]
	pattern := majorPattern
	if s.IsMinor {
		pattern = minorPattern
	}
	var out [7]int
	for i, p := range pattern {
		out[i] = (base + p) % 12
	}
	return out
}

// PitchClassSet returns the scale's pitch classes as a set.
func (s Scale) PitchClassSet() map[int]bool {
	set := make(map[int]bool, 7)
	for _, pc := range s.Semitones() {
		set[pc] = true
	}
	return set
}

// Triad stacks thirds within the scale from the given degree (1-7,
// wrapping) and returns the 3 pitch classes.
func Triad(s Scale, degree int) []int {
	idx := ((degree - 1) % 7 + 7) % 7
	semis := s.Semitones()
	return []int{semis[idx], semis[(idx+2)%7], semis[(idx+4)%7]}
}

// ChordSymbol renders the root letter plus "m" for minor triads and
// "dim" for diminished, nothing for major.
func ChordSymbol(s Scale, degree int) string {
	idx := ((degree - 1) % 7 + 7) % 7
	root := semitoneToNote[s.Semitones()[idx]]
	qualities := majorTriadQualities
	if s.IsMinor {
		qualities = minorTriadQualities
	}
	return root + qualities[idx]
}

var minorModes = map[string]bool{
	"dorian":   true,
	"phrygian": true,
	"aeolian":  true,
	"locrian":  true,
	"minor":    true,
}

// ParseKey builds a Scale from a key string like "C", "F#", or "Am"
// plus an optional mode name. There are no error paths: unknown
// tonics fall back to C and unknown modes are treated as no
// override, inheriting minor-ness only from an explicit "m" suffix.
func ParseKey(key, primaryMode string) Scale {
	cleaned := strings.TrimSpace(key)
	keyMarksMinor := strings.HasSuffix(strings.ToLower(cleaned), "m") && len(cleaned) > 1
	tonic := cleaned
	if keyMarksMinor {
		tonic = cleaned[:len(cleaned)-1]
	}
	tonic = capitalizeTonic(strings.TrimSpace(tonic))

	mode := strings.ToLower(strings.TrimSpace(primaryMode))
	isMinor := keyMarksMinor || minorModes[mode]

	if _, ok := noteToSemitone[tonic]; !ok {
		tonic = "C"
	}
	return Scale{Tonic: tonic, IsMinor: isMinor}
}

func capitalizeTonic(tonic string) string {
	if tonic == "" {
		return tonic
	}
	return strings.ToUpper(tonic[:1]) + tonic[1:]
}

// MidiToPitch renders a MIDI note number like "F#3". Octave numbering
// puts middle C (60) at C4.
func MidiToPitch(midi int) string {
	octave := midi/12 - 1
	return fmt.Sprintf("%s%d", semitoneToNote[((midi%12)+12)%12], octave)
}

// PitchToMidi parses a pitch like "C4" or "Bb2". Rest pitches must
// not be passed here.
func PitchToMidi(pitch string) int {
	name := pitch[:len(pitch)-1]
	octave := int(pitch[len(pitch)-1] - '0')
	return noteToSemitone[name] + (octave+1)*12
}

// NearestInRange octave-shifts candidate into [lo, hi], clamping if
// no shift lands inside.
func NearestInRange(candidate, lo, hi int) int {
	for candidate < lo {
		candidate += 12
	}
	for candidate > hi {
		candidate -= 12
	}
	if candidate < lo {
		return lo
	}
	return candidate
}

// ChooseDefaults picks key, time signature and tempo from the style
// and mood strings, deterministically.
func ChooseDefaults(style, mood string) (key, timeSignature string, tempoBPM int) {
	rng := util.NewRand(style + "-" + mood)
	key = defaultKeys[rng.Intn(len(defaultKeys))]
	timeSignature = defaultTimeSignatures[rng.Intn(len(defaultTimeSignatures))]
	tempoBPM = 68 + rng.Intn(49)
	return key, timeSignature, tempoBPM
}
