// Package compose runs the full lyric-to-score pipeline: tokenize,
// plan rhythm, build the progression, walk the melody, validate,
// repair, retry. Everything is a pure function of the request plus a
// deterministic seed.
package compose

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/jsphweid/choirgen/lyric"
	"github.com/jsphweid/choirgen/melody"
	"github.com/jsphweid/choirgen/meter"
	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/normalize"
	"github.com/jsphweid/choirgen/progression"
	"github.com/jsphweid/choirgen/repair"
	"github.com/jsphweid/choirgen/rhythm"
	"github.com/jsphweid/choirgen/theory"
	"github.com/jsphweid/choirgen/util"
	"github.com/jsphweid/choirgen/validate"
)

// MaxAttempts bounds the compose/validate/repair loop. Each attempt
// reseeds every PRNG from the base seed plus the attempt index.
const MaxAttempts = 5

// GenerateMelody produces a melody-stage score plus its warning
// diagnostics. Structural and infeasibility errors return immediately;
// quality failures are retried with repair before surfacing as an
// ExhaustedError.
func GenerateMelody(req model.CompositionRequest) (*model.CanonicalScore, []model.Diagnostic, error) {
	return generate(req, nil, "")
}

func generate(req model.CompositionRequest, regenUnits map[string]bool, salt string) (*model.CanonicalScore, []model.Diagnostic, error) {
	r, err := resolve(req)
	if err != nil {
		return nil, nil, err
	}
	r.regenUnits = regenUnits
	r.salt = salt

	var history [][]model.Diagnostic
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		score, err := composeOnce(r, attempt)
		if err != nil {
			return nil, nil, err
		}

		diags := validate.Check(score)
		if len(model.FatalDiagnostics(diags)) > 0 {
			score = repair.Score(score)
			diags = validate.Check(score)
		}
		fatals := model.FatalDiagnostics(diags)
		if len(fatals) == 0 {
			slog.Info("composition accepted",
				"attempt", attempt,
				"measures", len(score.Measures),
				"warnings", len(model.WarningDiagnostics(diags)))
			return score, model.WarningDiagnostics(diags), nil
		}

		history = append(history, fatals)
		slog.Warn("composition attempt rejected", "attempt", attempt, "fatal_diagnostics", len(fatals))
	}
	return nil, nil, &ExhaustedError{Attempts: MaxAttempts, History: history}
}

// resolved is the request after defaulting and arrangement checks.
type resolved struct {
	meta         model.Meta
	preset       model.LyricRhythmPreset
	barsPerVerse int
	sections     map[string]model.LyricSection
	order        []model.ArrangementItem
	regenUnits   map[string]bool
	salt         string
}

func resolve(req model.CompositionRequest) (resolved, error) {
	if len(req.Sections) == 0 {
		return resolved{}, structuralf("request has no lyric sections")
	}

	prefs := req.Preferences
	style := prefs.Style
	if style == "" {
		style = "traditional"
	}
	defKey, defTS, defTempo := theory.ChooseDefaults(style, prefs.Mood)
	key, ts, tempo := prefs.Key, prefs.TimeSignature, prefs.TempoBPM
	if key == "" {
		key = defKey
	}
	if ts == "" {
		ts = defTS
	}
	if _, _, err := meter.Parse(ts); err != nil {
		return resolved{}, structuralf("unsupported time signature %q", ts)
	}
	if tempo <= 0 {
		tempo = defTempo
	}
	preset := prefs.LyricRhythmPreset
	if preset == "" {
		preset = model.PresetMixed
	}

	sections := make(map[string]model.LyricSection, len(req.Sections))
	for _, sec := range req.Sections {
		if sec.ID == "" {
			return resolved{}, structuralf("a lyric section is missing its id")
		}
		sections[sec.ID] = sec
	}

	order := req.Arrangement
	if len(order) == 0 {
		for _, sec := range req.Sections {
			order = append(order, model.ArrangementItem{SectionID: sec.ID, PauseBeats: sec.PauseBeats})
		}
	}
	for _, item := range order {
		if _, ok := sections[item.SectionID]; !ok {
			return resolved{}, structuralf("arrangement references unknown section %q", item.SectionID)
		}
	}

	return resolved{
		meta: model.Meta{
			Key:               key,
			PrimaryMode:       prefs.PrimaryMode,
			TimeSignature:     ts,
			TempoBPM:          tempo,
			Style:             style,
			LyricRhythmPreset: preset,
			BarsPerVerse:      prefs.BarsPerVerse,
			Stage:             model.StageMelody,
		},
		preset:       preset,
		barsPerVerse: prefs.BarsPerVerse,
		sections:     sections,
		order:        order,
	}, nil
}

// instance is one arranged occurrence of a lyric section.
type instance struct {
	id          string
	label       string
	archetype   string
	musicUnitID string
	verseIndex  int
	isVerse     bool
	projected   bool
	seed        string
	section     model.Section
	plan        rhythm.Plan
	restBefore  float64
	spans       []progression.PhraseSpan
	startBeat   float64
}

func composeOnce(r resolved, attempt int) (*model.CanonicalScore, error) {
	scale := theory.ParseKey(r.meta.Key, r.meta.PrimaryMode)
	beatCap := meter.BeatsPerMeasure(r.meta.TimeSignature)
	baseSeed := strings.Join([]string{
		r.meta.Key, r.meta.TimeSignature, fmt.Sprint(r.meta.TempoBPM), r.meta.Style, r.preset,
	}, "|")

	skeletons := make(map[string]rhythm.Skeleton)
	unitCounts := make(map[string]int)
	occurrences := make(map[string]int)
	var insts []*instance

	for _, item := range r.order {
		sec := r.sections[item.SectionID]
		occurrences[sec.ID]++
		instID := sec.ID
		if occurrences[sec.ID] > 1 {
			instID = fmt.Sprintf("%s--%d", sec.ID, occurrences[sec.ID])
		}

		unitID := sec.MusicUnitID
		if unitID == "" {
			if sec.IsVerse {
				unitID = "verse"
			} else {
				unitID = sec.ID
			}
		}
		unitCounts[unitID]++

		lines := sec.Lines
		if len(lines) == 0 {
			lines = lyric.LinesFromText(sec.Text)
		}
		syllables := lyric.TokenizeSection(instID, lines)
		if len(syllables) == 0 {
			return nil, structuralf("section %q has no singable text", sec.ID)
		}

		archetype := rhythm.SectionArchetype(sec.Label)
		seed := strings.Join([]string{
			baseSeed, sec.Label, archetype, instID, fmt.Sprintf("attempt-%d", attempt),
		}, "|")
		if r.salt != "" && (r.regenUnits == nil || r.regenUnits[unitID]) {
			seed += "|" + r.salt
		}

		inst := &instance{
			id:          instID,
			label:       sec.Label,
			archetype:   archetype,
			musicUnitID: unitID,
			verseIndex:  unitCounts[unitID],
			isVerse:     sec.IsVerse,
			seed:        seed,
		}

		if sk, ok := skeletons[unitID]; ok {
			plan, projected, err := sk.Project(instID, syllables, r.meta.TimeSignature)
			if err != nil {
				return nil, err
			}
			inst.plan = plan
			inst.projected = true
			syllables = projected
		} else {
			pickup := resolvePickup(item, syllables, beatCap)
			cfg := rhythm.ConfigForPreset(r.preset, sec.Label)
			plan := rhythm.PlanSection(instID, syllables, r.meta.TimeSignature, cfg, seed, pickup)
			if sec.IsVerse {
				var err error
				plan, err = rhythm.EnforceBars(plan, beatCap, r.barsPerVerse)
				if err != nil {
					return nil, err
				}
			}
			inst.plan = plan
			skeletons[unitID] = rhythm.SkeletonFromPlan(plan, beatCap, unitID)
		}

		pause := item.PauseBeats
		if pause <= 0 {
			pause = sec.PauseBeats
		}
		inst.restBefore = math.Max(0, pause)

		inst.section = model.Section{
			ID:          instID,
			Label:       sec.Label,
			Title:       sec.Title,
			Lyrics:      sec.Text,
			Lines:       lines,
			IsVerse:     sec.IsVerse,
			MusicUnitID: unitID,
			PauseBeats:  inst.restBefore,
			PickupBeats: inst.plan.PickupBeats,
			Syllables:   syllables,
		}
		if sec.IsVerse {
			inst.section.VerseNumber = inst.verseIndex
		}
		insts = append(insts, inst)
	}

	chords, totalMeasures := layout(insts, scale, beatCap)

	var spans []progression.PhraseSpan
	for _, inst := range insts {
		spans = append(spans, inst.spans...)
	}
	chords = progression.ApplyCadences(chords, spans, scale)
	chords = progression.Repair(chords, totalMeasures, scale)

	gen := melody.New(scale, r.meta.TimeSignature, chords, util.NewRand(baseSeed))
	templates := make(map[string][]model.Note)
	for _, inst := range insts {
		if inst.restBefore > util.Eps {
			gen.AddRest(inst.restBefore, model.SectionInterlude)
		}
		padToBarline(gen, beatCap)

		if inst.projected {
			gen.Append(melody.ProjectPlan(templates[inst.musicUnitID], inst.plan))
			continue
		}
		gen.Reseed(util.NewRand(inst.seed + "|melody"))
		before := len(gen.Notes())
		gen.AddSection(inst.plan, inst.label)
		templates[inst.musicUnitID] = append([]model.Note(nil), gen.Notes()[before:]...)
	}

	meta := r.meta
	meta.Rationale = fmt.Sprintf("%s setting in %s, %s at %d bpm across %d sections.",
		meta.Style, meta.Key, meta.TimeSignature, meta.TempoBPM, len(insts))
	for i, inst := range insts {
		meta.ArrangementUnits = append(meta.ArrangementUnits, model.ArrangementUnit{
			ArrangementIndex: i,
			MusicUnitID:      inst.musicUnitID,
			VerseIndex:       inst.verseIndex,
		})
	}
	for _, unitID := range util.SortedKeys(skeletons) {
		if unitCounts[unitID] > 1 {
			meta.VerseForms = append(meta.VerseForms, skeletons[unitID].VerseForm())
		}
	}

	score := &model.CanonicalScore{
		Meta: meta,
		Measures: normalize.PackVoices(map[model.VoiceName][]model.Note{
			model.VoiceSoprano: gen.Notes(),
		}, r.meta.TimeSignature),
		ChordProgression: chords,
	}
	for _, inst := range insts {
		score.Sections = append(score.Sections, inst.section)
	}
	score.ChordProgression = progression.Repair(score.ChordProgression, len(score.Measures), scale)
	return score, nil
}

// layout walks the arranged instances to assign absolute positions,
// build each unit's chord cycle, and record phrase spans for the
// cadence pass. Sections always begin on a barline; pauses round up.
func layout(insts []*instance, scale theory.Scale, beatCap float64) ([]model.ChordEvent, int) {
	var chords []model.ChordEvent
	cursor := 0.0
	for _, inst := range insts {
		cursor += inst.restBefore
		cursor += barlinePad(cursor, beatCap)
		inst.startBeat = cursor

		startMeasure := int(cursor/beatCap+util.Eps) + 1
		bars := inst.plan.BarCount(beatCap)
		chords = append(chords, progression.Build(scale, inst.id, startMeasure, bars, progression.CycleFor(inst.archetype))...)

		pos := cursor + inst.plan.LeadingRest
		phraseStart := pos
		for _, slot := range inst.plan.Slots {
			pos += slot.TotalBeats()
			if slot.PhraseEnd {
				inst.spans = append(inst.spans, progression.PhraseSpan{
					StartMeasure: int(phraseStart/beatCap+util.Eps) + 1,
					EndMeasure:   int((pos-util.Eps)/beatCap) + 1,
				})
				phraseStart = pos
			}
		}
		cursor += inst.plan.TotalBeats
	}

	totalMeasures := int(math.Ceil(cursor/beatCap - util.Eps))
	if totalMeasures < 1 {
		totalMeasures = 1
	}
	return chords, totalMeasures
}

func barlinePad(cursor, beatCap float64) float64 {
	inMeasure := math.Mod(cursor, beatCap)
	if util.AlmostZero(inMeasure) || util.AlmostEqual(inMeasure, beatCap) {
		return 0
	}
	return beatCap - inMeasure
}

func padToBarline(gen *melody.Generator, beatCap float64) {
	if pad := barlinePad(gen.Cursor(), beatCap); pad > util.Eps {
		gen.AddRest(pad, model.SectionInterlude)
	}
}

// resolvePickup turns the anacrusis flags into concrete pickup beats.
// Auto mode grants a one-beat pickup when the section opens on an
// unstressed syllable.
func resolvePickup(item model.ArrangementItem, syllables []model.Syllable, beatCap float64) float64 {
	switch item.AnacrusisMode {
	case model.AnacrusisManual:
		if item.AnacrusisBeats > util.Eps && item.AnacrusisBeats < beatCap-util.Eps {
			return item.AnacrusisBeats
		}
		return 0
	case model.AnacrusisAuto:
		if len(syllables) > 0 && !syllables[0].Stressed {
			return 1.0
		}
		return 0
	}
	return 0
}
