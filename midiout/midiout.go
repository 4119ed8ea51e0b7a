// Package midiout renders a canonical score as a standard MIDI file,
// one track per voice.
package midiout

import (
	"io"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/jsphweid/choirgen/meter"
	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/theory"
)

const ticksPerQuarter = 960

const velocity = 90

// Encode writes the score as SMF format 1: a conductor track with
// tempo and meter, then one note track per voice. Tied and melisma
// continuations sound as one held note.
func Encode(score *model.CanonicalScore, w io.Writer) error {
	clock := smf.MetricTicks(ticksPerQuarter)
	s := smf.New()
	s.TimeFormat = clock

	top, bottom, err := meter.Parse(score.Meta.TimeSignature)
	if err != nil {
		top, bottom = 4, 4
	}

	var conductor smf.Track
	conductor.Add(0, smf.MetaTrackSequenceName("conductor"))
	conductor.Add(0, smf.MetaMeter(uint8(top), uint8(bottom)))
	conductor.Add(0, smf.MetaTempo(float64(score.Meta.TempoBPM)))
	conductor.Close(0)
	if err := s.Add(conductor); err != nil {
		return err
	}

	for ci, voice := range model.VoiceNames {
		if err := s.Add(voiceTrack(score, voice, uint8(ci))); err != nil {
			return err
		}
	}
	_, err = s.WriteTo(w)
	return err
}

func voiceTrack(score *model.CanonicalScore, voice model.VoiceName, channel uint8) smf.Track {
	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(string(voice)))

	delta := uint32(0)
	notes := score.FlattenVoice(voice)
	for i := 0; i < len(notes); i++ {
		n := notes[i]
		ticks := toTicks(n.Beats)
		if n.IsRest {
			delta += ticks
			continue
		}

		// Continuations of the same pitch extend the sounding note.
		key := uint8(theory.PitchToMidi(n.Pitch))
		for i+1 < len(notes) && model.IsContinuation(notes[i+1].LyricMode) && !notes[i+1].IsRest &&
			theory.PitchToMidi(notes[i+1].Pitch) == int(key) {
			i++
			ticks += toTicks(notes[i].Beats)
		}

		tr.Add(delta, midi.NoteOn(channel, key, velocity))
		tr.Add(ticks, midi.NoteOff(channel, key))
		delta = 0
	}
	tr.Close(delta)
	return tr
}

func toTicks(beats float64) uint32 {
	return uint32(beats*ticksPerQuarter + 0.5)
}
