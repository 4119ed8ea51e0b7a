package model

type Severity = string

const (
	SeverityFatal   Severity = "fatal"
	SeverityWarning Severity = "warning"
)

// Diagnostic codes.
const (
	DiagMeasureBeats        = "measure_beats"
	DiagEmptyProgression    = "empty_progression"
	DiagMissingChord        = "missing_chord"
	DiagNonDiatonicChord    = "non_diatonic_chord"
	DiagOrphanNote          = "orphan_note"
	DiagUnknownSection      = "unknown_section"
	DiagUnknownSyllable     = "unknown_syllable"
	DiagDuplicateSyllable   = "duplicate_syllable"
	DiagUnmappedSyllables   = "unmapped_syllables"
	DiagContinuationLyric   = "continuation_lyric"
	DiagVoiceMisalignment   = "voice_misalignment"
	DiagStrongBeatConflict  = "strong_beat_conflict"
	DiagChordToneConflict   = "chord_tone_conflict"
	DiagTessituraExtreme    = "tessitura_extreme"
	DiagRange               = "out_of_range"
	DiagLeap                = "leap"
	DiagVoiceCrossing       = "voice_crossing"
	DiagWideSpacing         = "wide_spacing"
	DiagParallelMotion      = "parallel_motion"
	DiagPhraseEndOffBarline = "phrase_end_off_barline"
)

type Diagnostic struct {
	Severity Severity  `json:"severity"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	Measure  int       `json:"measure,omitempty"`
	Voice    VoiceName `json:"voice,omitempty"`
}

// FatalDiagnostics filters to the diagnostics that block acceptance.
func FatalDiagnostics(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityFatal {
			out = append(out, d)
		}
	}
	return out
}

// WarningDiagnostics filters to the soft diagnostics.
func WarningDiagnostics(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}
