package model

type VoiceName = string

const (
	VoiceSoprano VoiceName = "soprano"
	VoiceAlto    VoiceName = "alto"
	VoiceTenor   VoiceName = "tenor"
	VoiceBass    VoiceName = "bass"
)

// VoiceNames is the fixed top-down voice order. Iteration over
// measure voices must go through this, never over the map directly,
// so output stays deterministic.
var VoiceNames = []VoiceName{VoiceSoprano, VoiceAlto, VoiceTenor, VoiceBass}

type LyricMode = string

const (
	LyricNone            LyricMode = "none"
	LyricSingle          LyricMode = "single"
	LyricSubdivision     LyricMode = "subdivision"
	LyricMelismaStart    LyricMode = "melisma_start"
	LyricMelismaContinue LyricMode = "melisma_continue"
	LyricTieStart        LyricMode = "tie_start"
	LyricTieContinue     LyricMode = "tie_continue"
)

// IsContinuation reports whether a mode carries no lyric text of its
// own (the text lives on the _start/single slot).
func IsContinuation(mode LyricMode) bool {
	return mode == LyricMelismaContinue || mode == LyricTieContinue
}

type Stage = string

const (
	StageMelody Stage = "melody"
	StageSATB   Stage = "satb"
)

// Section ids reserved for notes that belong to no lyric section.
const (
	SectionInterlude = "interlude"
	SectionPadding   = "padding"
)

type Syllable struct {
	ID                  string `json:"id"`
	Text                string `json:"text"`
	SectionID           string `json:"section_id"`
	WordIndex           int    `json:"word_index"`
	SyllableIndexInWord int    `json:"syllable_index_in_word"`
	WordText            string `json:"word_text"`
	Hyphenated          bool   `json:"hyphenated"`
	Stressed            bool   `json:"stressed"`
	PhraseEndAfter      bool   `json:"phrase_end_after"`
	BarlineAligned      bool   `json:"barline_aligned"`
	BreathAfter         bool   `json:"breath_after"`
}

type Section struct {
	ID          string      `json:"id"`
	Label       string      `json:"label"`
	Title       string      `json:"title"`
	Lyrics      string      `json:"lyrics"`
	Lines       []LyricLine `json:"lines,omitempty"`
	IsVerse     bool        `json:"is_verse"`
	VerseNumber int         `json:"verse_number"`
	MusicUnitID string      `json:"music_unit_id"`
	PauseBeats  float64     `json:"pause_beats"`
	PickupBeats float64     `json:"pickup_beats"`
	Syllables   []Syllable  `json:"syllables"`
}

// Note is one notated event in one voice. Pitch is like "C4" or
// "F#3"; rests carry Pitch "REST" and IsRest. A note may hold only a
// chunk of a syllable's logical duration once split across a barline:
// the continuation chunk drops Lyric and switches to tie_continue.
type Note struct {
	Pitch           string    `json:"pitch"`
	Beats           float64   `json:"beats"`
	IsRest          bool      `json:"is_rest"`
	Lyric           string    `json:"lyric,omitempty"`
	LyricSyllableID string    `json:"lyric_syllable_id,omitempty"`
	LyricMode       LyricMode `json:"lyric_mode"`
	SectionID       string    `json:"section_id"`
	LyricIndex      int       `json:"lyric_index"`
}

func Rest(beats float64, sectionID string) Note {
	return Note{Pitch: "REST", Beats: beats, IsRest: true, LyricMode: LyricNone, SectionID: sectionID}
}

type Measure struct {
	Number int                  `json:"number"`
	Voices map[VoiceName][]Note `json:"voices"`
}

// ChordEvent is the harmony for exactly one measure. A valid score
// has exactly one per measure number; repair enforces that.
type ChordEvent struct {
	MeasureNumber int    `json:"measure_number"`
	SectionID     string `json:"section_id"`
	Symbol        string `json:"symbol"`
	Degree        int    `json:"degree"`
	PitchClasses  []int  `json:"pitch_classes"`
}

// ArrangementUnit records which music unit an arrangement position
// belongs to, so renderers can stack verse lyrics.
type ArrangementUnit struct {
	ArrangementIndex int    `json:"arrangement_index"`
	MusicUnitID      string `json:"music_unit_id"`
	VerseIndex       int    `json:"verse_index"`
}

// VerseForm is the canonical rhythmic skeleton of a shared music
// unit, computed once from its first instance and projected onto
// every later instance.
type VerseForm struct {
	MusicUnitID    string      `json:"music_unit_id"`
	PickupBeats    float64     `json:"pickup_beats"`
	BarCount       int         `json:"bar_count"`
	PhraseEndSlots []int       `json:"phrase_end_slots"`
	SlotBeats      [][]float64 `json:"slot_beats"`
}

type Meta struct {
	Key               string            `json:"key"`
	PrimaryMode       string            `json:"primary_mode,omitempty"`
	TimeSignature     string            `json:"time_signature"`
	TempoBPM          int               `json:"tempo_bpm"`
	Style             string            `json:"style"`
	LyricRhythmPreset LyricRhythmPreset `json:"lyric_rhythm_preset,omitempty"`
	BarsPerVerse      int               `json:"bars_per_verse,omitempty"`
	Stage             Stage             `json:"stage"`
	Rationale         string            `json:"rationale"`
	ArrangementUnits  []ArrangementUnit `json:"arrangement_units,omitempty"`
	VerseForms        []VerseForm       `json:"verse_forms,omitempty"`
}

type CanonicalScore struct {
	Meta             Meta         `json:"meta"`
	Sections         []Section    `json:"sections"`
	Measures         []Measure    `json:"measures"`
	ChordProgression []ChordEvent `json:"chord_progression"`
}

// FlattenVoice returns one voice's notes across all measures in
// score order.
func (s *CanonicalScore) FlattenVoice(voice VoiceName) []Note {
	var out []Note
	for _, m := range s.Measures {
		out = append(out, m.Voices[voice]...)
	}
	return out
}

// SectionByID returns nil when the id is unknown.
func (s *CanonicalScore) SectionByID(id string) *Section {
	for i := range s.Sections {
		if s.Sections[i].ID == id {
			return &s.Sections[i]
		}
	}
	return nil
}
