// Package rhythm assigns beat durations and articulation modes to
// syllables. Planning works per phrase, never per syllable in
// isolation, because phrase ends must land exactly on a barline.
package rhythm

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/jsphweid/choirgen/meter"
	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/util"
)

// candidateBudget caps the bounded enumeration per phrase. The
// scoring function is authoritative; among equal scores the earliest
// sampled candidate wins.
const candidateBudget = 48

// Config is the per-section rhythm policy derived from the request
// preset and the section archetype.
type Config struct {
	MelismaRate               float64
	SubdivisionRate           float64
	PhraseEndHoldBeats        float64
	PreferStrongBeatForStress bool
}

var presetConfigs = map[model.LyricRhythmPreset]Config{
	model.PresetSyllabic:   {0.08, 0.08, 1.5, true},
	model.PresetMixed:      {0.22, 0.18, 1.5, true},
	model.PresetMelismatic: {0.42, 0.22, 2.0, true},
}

// SectionArchetype normalizes a free-form section label onto one of
// the known archetypes, else "custom".
func SectionArchetype(label string) string {
	normalized := strings.ToLower(strings.TrimSpace(label))
	switch normalized {
	case "verse", "chorus", "bridge", "pre-chorus", "intro", "outro":
		return normalized
	}
	if strings.Contains(normalized, "pre") && strings.Contains(normalized, "chorus") {
		return "pre-chorus"
	}
	for _, archetype := range []string{"chorus", "verse", "bridge", "intro", "outro"} {
		if strings.Contains(normalized, archetype) {
			return archetype
		}
	}
	return "custom"
}

// ConfigForPreset resolves the preset table and applies archetype
// tweaks: chorus tolerates more extension, verse and bridge a bit
// less.
func ConfigForPreset(preset model.LyricRhythmPreset, sectionLabel string) Config {
	base, ok := presetConfigs[preset]
	if !ok {
		base = presetConfigs[model.PresetMixed]
	}
	switch SectionArchetype(sectionLabel) {
	case "chorus":
		return Config{
			MelismaRate:               math.Min(1.0, base.MelismaRate+0.08),
			SubdivisionRate:           base.SubdivisionRate,
			PhraseEndHoldBeats:        math.Min(2.0, base.PhraseEndHoldBeats+0.25),
			PreferStrongBeatForStress: base.PreferStrongBeatForStress,
		}
	case "verse", "bridge":
		return Config{
			MelismaRate:               math.Max(0.0, base.MelismaRate-0.05),
			SubdivisionRate:           base.SubdivisionRate,
			PhraseEndHoldBeats:        base.PhraseEndHoldBeats,
			PreferStrongBeatForStress: base.PreferStrongBeatForStress,
		}
	}
	return base
}

// Slot is the rhythmic realization of one syllable: one or more
// (duration, mode) chunks. Continuation chunks never carry lyric
// text.
type Slot struct {
	SyllableID  string
	Text        string
	SectionID   string
	LyricIndex  int
	Stressed    bool
	PhraseEnd   bool
	BreathAfter bool
	Durations   []float64
	Modes       []model.LyricMode
}

func (s Slot) TotalBeats() float64 {
	return util.SumFloats(s.Durations)
}

// Plan is the rhythm for one arranged section instance. LeadingRest
// is the silent padding before a pickup so that measure one still
// sums to the full beat capacity.
type Plan struct {
	SectionID   string
	PickupBeats float64
	LeadingRest float64
	Slots       []Slot
	TotalBeats  float64
}

// BarCount reports how many measures the plan occupies.
func (p Plan) BarCount(beatCap float64) int {
	if p.TotalBeats <= util.Eps {
		return 0
	}
	return int(math.Ceil((p.TotalBeats - util.Eps) / beatCap))
}

// PhraseEndSlots returns the slot indices that close a phrase.
func (p Plan) PhraseEndSlots() []int {
	var out []int
	for i, s := range p.Slots {
		if s.PhraseEnd {
			out = append(out, i)
		}
	}
	return out
}

// InfeasibleError marks a structural incompatibility that no reseed
// can fix; the hint is meant to be shown to the user.
type InfeasibleError struct {
	Reason string
	Hint   string
}

func (e *InfeasibleError) Error() string {
	return e.Reason + " (" + e.Hint + ")"
}

// PlanSection plans rhythm for a tokenized section. The seed string
// fully determines the result; pickupBeats (already resolved from
// the anacrusis mode) offsets the first phrase.
func PlanSection(sectionID string, syllables []model.Syllable, timeSignature string, cfg Config, seed string, pickupBeats float64) Plan {
	beatCap := meter.BeatsPerMeasure(timeSignature)
	rng := util.NewRand(seed)

	leadingRest := 0.0
	if pickupBeats > util.Eps && pickupBeats < beatCap-util.Eps {
		leadingRest = beatCap - pickupBeats
	} else {
		pickupBeats = 0
	}

	plan := Plan{SectionID: sectionID, PickupBeats: pickupBeats, LeadingRest: leadingRest}
	cursor := leadingRest

	for _, phrase := range splitPhrases(syllables) {
		slots := planPhrase(phrase, cursor, timeSignature, beatCap, cfg, rng)
		for _, s := range slots {
			cursor += s.TotalBeats()
		}
		plan.Slots = append(plan.Slots, slots...)
	}

	plan.TotalBeats = cursor
	return plan
}

// EnforceBars stretches or rejects a plan against an explicit
// bars-per-verse target. Too few bars extends the final hold; too
// many, or fewer bars than phrases, is a structural infeasibility.
func EnforceBars(plan Plan, beatCap float64, targetBars int) (Plan, error) {
	if targetBars <= 0 {
		return plan, nil
	}
	phraseCount := len(plan.PhraseEndSlots())
	if targetBars < phraseCount {
		return plan, &InfeasibleError{
			Reason: fmt.Sprintf("bars_per_verse %d is shorter than the verse's %d phrases", targetBars, phraseCount),
			Hint:   "raise bars_per_verse or merge phrases",
		}
	}
	bars := plan.BarCount(beatCap)
	if bars > targetBars {
		return plan, &InfeasibleError{
			Reason: fmt.Sprintf("verse needs %d measures but bars_per_verse is %d", bars, targetBars),
			Hint:   "shorten the verse text or raise bars_per_verse",
		}
	}
	if bars == targetBars || len(plan.Slots) == 0 {
		return plan, nil
	}

	extra := float64(targetBars-bars) * beatCap
	last := &plan.Slots[len(plan.Slots)-1]
	if len(last.Modes) == 1 && last.Modes[0] == model.LyricSingle {
		last.Modes[0] = model.LyricTieStart
	}
	last.Durations = append(last.Durations, extra)
	last.Modes = append(last.Modes, model.LyricTieContinue)
	plan.TotalBeats += extra
	return plan, nil
}

// splitPhrases groups syllables into maximal runs ending at a phrase
// boundary.
func splitPhrases(syllables []model.Syllable) [][]model.Syllable {
	var phrases [][]model.Syllable
	var current []model.Syllable
	for _, syl := range syllables {
		current = append(current, syl)
		if syl.PhraseEndAfter {
			phrases = append(phrases, current)
			current = nil
		}
	}
	if len(current) > 0 {
		phrases = append(phrases, current)
	}
	return phrases
}

// planPhrase runs the bounded search for one phrase starting at
// startPos beats from the section origin. The returned slots always
// sum to a value that lands the phrase end exactly on a barline.
func planPhrase(phrase []model.Syllable, startPos float64, timeSignature string, beatCap float64, cfg Config, rng *rand.Rand) []Slot {
	n := len(phrase)
	hold := math.Max(1.0, cfg.PhraseEndHoldBeats)
	nominal := float64(n-1) + hold
	minBeats := math.Max(nominal, 0.5*float64(n))
	target := math.Ceil((startPos+minBeats-util.Eps)/beatCap)*beatCap - startPos
	maxHold := hold + beatCap

	var best []Slot
	bestScore := math.Inf(-1)

	for i := 0; i < candidateBudget; i++ {
		candidate, ok := sampleCandidate(phrase, target, maxHold, cfg, rng)
		if !ok {
			continue
		}
		score := scoreCandidate(candidate, startPos, timeSignature, beatCap, cfg)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}

	if best == nil {
		best = fallbackCandidate(phrase, target)
	}
	return best
}

// sampleCandidate draws one per-syllable assignment. Non-final
// syllables choose between a plain beat, a subdivision, and a
// melisma pair; the final syllable absorbs whatever remains as a
// held (possibly tied) cadence note.
func sampleCandidate(phrase []model.Syllable, target, maxHold float64, cfg Config, rng *rand.Rand) ([]Slot, bool) {
	n := len(phrase)
	slots := make([]Slot, 0, n)
	used := 0.0

	for i, syl := range phrase[:n-1] {
		var durations []float64
		var modes []model.LyricMode
		if rng.Float64() < cfg.MelismaRate {
			durations = []float64{0.5, 0.5}
			modes = []model.LyricMode{model.LyricMelismaStart, model.LyricMelismaContinue}
		} else if rng.Float64() < cfg.SubdivisionRate {
			durations = []float64{0.5}
			modes = []model.LyricMode{model.LyricSubdivision}
		} else {
			durations = []float64{1.0}
			modes = []model.LyricMode{model.LyricSingle}
		}
		slots = append(slots, newSlot(syl, i, durations, modes))
		used += util.SumFloats(durations)
	}

	remainder := target - used
	if remainder < 1.0-util.Eps || remainder > maxHold+util.Eps {
		return nil, false
	}
	slots = append(slots, newSlot(phrase[n-1], n-1, holdDurations(remainder), holdModes(remainder)))
	return slots, true
}

func fallbackCandidate(phrase []model.Syllable, target float64) []Slot {
	n := len(phrase)
	slots := make([]Slot, 0, n)
	for i, syl := range phrase[:n-1] {
		slots = append(slots, newSlot(syl, i, []float64{1.0}, []model.LyricMode{model.LyricSingle}))
	}
	remainder := target - float64(n-1)
	slots = append(slots, newSlot(phrase[n-1], n-1, holdDurations(remainder), holdModes(remainder)))
	return slots
}

func holdDurations(hold float64) []float64 {
	if hold <= 1.0+util.Eps {
		return []float64{hold}
	}
	return []float64{1.0, hold - 1.0}
}

func holdModes(hold float64) []model.LyricMode {
	if hold <= 1.0+util.Eps {
		return []model.LyricMode{model.LyricSingle}
	}
	return []model.LyricMode{model.LyricTieStart, model.LyricTieContinue}
}

func newSlot(syl model.Syllable, lyricIndex int, durations []float64, modes []model.LyricMode) Slot {
	return Slot{
		SyllableID:  syl.ID,
		Text:        syl.Text,
		SectionID:   syl.SectionID,
		LyricIndex:  lyricIndex,
		Stressed:    syl.Stressed,
		PhraseEnd:   syl.PhraseEndAfter,
		BreathAfter: syl.BreathAfter,
		Durations:   durations,
		Modes:       modes,
	}
}

// Scoring weights. Stress placement and cadence weight dominate;
// melisma-rate distance keeps the plan near the preset's character.
const (
	stressOnStrongBeatReward = 2.0
	cadenceOnStrongBeat      = 3.0
	cadenceHoldReward        = 1.5
	shortNotePenalty         = 0.4
	roughnessPenalty         = 0.6
	melismaRateWeight        = 6.0
)

func scoreCandidate(slots []Slot, startPos float64, timeSignature string, beatCap float64, cfg Config) float64 {
	pos := startPos
	score := 0.0
	melismas := 0
	prevDur := -1.0

	for i, slot := range slots {
		measureBeat := math.Mod(pos, beatCap)
		strong := meter.IsStrongBeat(measureBeat, timeSignature)
		if cfg.PreferStrongBeatForStress && slot.Stressed && strong {
			score += stressOnStrongBeatReward
		}
		if i == len(slots)-1 {
			if strong {
				score += cadenceOnStrongBeat
			}
			score += slot.TotalBeats() * cadenceHoldReward
		}
		if slot.Modes[0] == model.LyricMelismaStart {
			melismas++
		}
		for _, d := range slot.Durations {
			if d < 0.75 {
				score -= shortNotePenalty
			}
			if prevDur > 0 && math.Abs(d-prevDur) > 0.5+util.Eps {
				score -= roughnessPenalty
			}
			prevDur = d
			pos += d
		}
	}

	rate := float64(melismas) / float64(len(slots))
	score -= melismaRateWeight * math.Abs(rate-cfg.MelismaRate)
	return score
}
