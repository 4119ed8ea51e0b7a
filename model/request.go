package model

type LyricRhythmPreset = string

const (
	PresetSyllabic   LyricRhythmPreset = "syllabic"
	PresetMixed      LyricRhythmPreset = "mixed"
	PresetMelismatic LyricRhythmPreset = "melismatic"
)

type AnacrusisMode = string

const (
	AnacrusisNone   AnacrusisMode = "none"
	AnacrusisManual AnacrusisMode = "manual"
	AnacrusisAuto   AnacrusisMode = "auto"
)

// LyricLine is one phrase block of a section. MergeWithNext
// suppresses the phrase boundary the block end would otherwise
// create; BreathAfter forces one and marks a breath.
type LyricLine struct {
	Text          string `json:"text"`
	MergeWithNext bool   `json:"merge_with_next"`
	BreathAfter   bool   `json:"breath_after"`
}

type LyricSection struct {
	ID          string      `json:"id"`
	Label       string      `json:"label"`
	Title       string      `json:"title"`
	Text        string      `json:"text"`
	Lines       []LyricLine `json:"lines,omitempty"`
	IsVerse     bool        `json:"is_verse"`
	MusicUnitID string      `json:"music_unit_id,omitempty"`
	PauseBeats  float64     `json:"pause_beats"`
}

type ArrangementItem struct {
	SectionID      string        `json:"section_id"`
	PauseBeats     float64       `json:"pause_beats"`
	AnacrusisMode  AnacrusisMode `json:"anacrusis_mode,omitempty"`
	AnacrusisBeats float64       `json:"anacrusis_beats,omitempty"`
}

type Preferences struct {
	Key               string            `json:"key,omitempty"`
	PrimaryMode       string            `json:"primary_mode,omitempty"`
	TimeSignature     string            `json:"time_signature,omitempty"`
	TempoBPM          int               `json:"tempo_bpm,omitempty"`
	Style             string            `json:"style,omitempty"`
	Mood              string            `json:"mood,omitempty"`
	LyricRhythmPreset LyricRhythmPreset `json:"lyric_rhythm_preset,omitempty"`
	BarsPerVerse      int               `json:"bars_per_verse,omitempty"`
}

type CompositionRequest struct {
	Sections    []LyricSection    `json:"sections"`
	Arrangement []ArrangementItem `json:"arrangement,omitempty"`
	Preferences Preferences       `json:"preferences"`
}

type RefineRequest struct {
	Score        CanonicalScore `json:"score"`
	Instruction  string         `json:"instruction,omitempty"`
	Regenerate   bool           `json:"regenerate"`
	MusicUnitIDs []string       `json:"music_unit_ids,omitempty"`
}

type HarmonizeRequest struct {
	Score CanonicalScore `json:"score"`
}

type ExportRequest struct {
	Score CanonicalScore `json:"score"`
}
