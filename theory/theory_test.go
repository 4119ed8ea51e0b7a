package theory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jsphweid/choirgen/model"
)

func TestParseKey(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Scale{Tonic: "C", IsMinor: false}, ParseKey("C", ""))
	assert.Equal(Scale{Tonic: "A", IsMinor: true}, ParseKey("Am", ""))
	assert.Equal(Scale{Tonic: "F#", IsMinor: false}, ParseKey("F#", "ionian"))
	assert.Equal(Scale{Tonic: "D", IsMinor: true}, ParseKey("D", "aeolian"))
	assert.Equal(Scale{Tonic: "C", IsMinor: false}, ParseKey("H", ""))
}

func TestScaleSemitones(t *testing.T) {
	assert := assert.New(t)
	assert.Equal([7]int{0, 2, 4, 5, 7, 9, 11}, Scale{Tonic: "C"}.Semitones())
	assert.Equal([7]int{9, 11, 0, 2, 4, 5, 7}, Scale{Tonic: "A", IsMinor: true}.Semitones())
}

func TestTriadAndSymbol(t *testing.T) {
	assert := assert.New(t)
	c := Scale{Tonic: "C"}

	assert.Equal([]int{0, 4, 7}, Triad(c, 1))
	assert.Equal([]int{9, 0, 4}, Triad(c, 6))
	assert.Equal("C", ChordSymbol(c, 1))
	assert.Equal("Dm", ChordSymbol(c, 2))
	assert.Equal("Bdim", ChordSymbol(c, 7))

	am := Scale{Tonic: "A", IsMinor: true}
	assert.Equal("Am", ChordSymbol(am, 1))
	assert.Equal("C", ChordSymbol(am, 3))
}

func TestPitchConversion(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("C4", MidiToPitch(60))
	assert.Equal("F#3", MidiToPitch(54))
	assert.Equal(60, PitchToMidi("C4"))
	assert.Equal(54, PitchToMidi("F#3"))
	for midi := 40; midi <= 81; midi++ {
		assert.Equal(midi, PitchToMidi(MidiToPitch(midi)))
	}
}

func TestNearestInRange(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(60, NearestInRange(48, 55, 70))
	assert.Equal(62, NearestInRange(74, 55, 70))
	assert.Equal(60, NearestInRange(60, 55, 70))
}

func TestConstrainToVoice(t *testing.T) {
	assert := assert.New(t)
	scaleSet := Scale{Tonic: "C"}.PitchClassSet()

	got := ConstrainToVoice(85, 72, model.VoiceSoprano, scaleSet)
	r := VoiceRanges[model.VoiceSoprano]
	assert.GreaterOrEqual(got, r[0])
	assert.LessOrEqual(got, r[1])
	assert.LessOrEqual(abs(got-72), MaxMelodicLeap)
	assert.True(scaleSet[pc(got)])

	// Non-diatonic candidates snap onto the scale.
	got = ConstrainToVoice(66, 65, model.VoiceSoprano, scaleSet)
	assert.True(scaleSet[pc(got)])
}

func TestNearestPitchClassWithLeap(t *testing.T) {
	assert := assert.New(t)
	chord := PitchClassSetOf([]int{0, 4, 7})

	got := NearestPitchClassWithLeap(65, 64, chord, model.VoiceSoprano)
	assert.True(chord[pc(got)])
	assert.LessOrEqual(abs(got-64), MaxMelodicLeap)
	assert.Equal(64, NearestPitchClassWithLeap(64, 64, chord, model.VoiceSoprano))
}

func TestChooseDefaultsIsDeterministic(t *testing.T) {
	assert := assert.New(t)
	k1, ts1, bpm1 := ChooseDefaults("traditional", "uplifting")
	k2, ts2, bpm2 := ChooseDefaults("traditional", "uplifting")
	assert.Equal(k1, k2)
	assert.Equal(ts1, ts2)
	assert.Equal(bpm1, bpm2)
	assert.GreaterOrEqual(bpm1, 68)
	assert.LessOrEqual(bpm1, 116)
}
