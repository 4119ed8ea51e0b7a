package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/theory"
)

var cMajor = theory.Scale{Tonic: "C"}

func TestCycleFor(t *testing.T) {
	assert := assert.New(t)
	assert.Equal([]int{1, 4, 5, 6}, CycleFor("verse"))
	assert.Equal([]int{1, 5, 6, 4}, CycleFor("chorus"))
	assert.Equal([]int{1, 6, 4, 5}, CycleFor("tag"))
}

func TestBuildRepeatsCycle(t *testing.T) {
	assert := assert.New(t)
	chords := Build(cMajor, "verse-1", 3, 6, CycleFor("verse"))

	require.Len(t, chords, 6)
	degrees := make([]int, 0, 6)
	for i, ch := range chords {
		assert.Equal(3+i, ch.MeasureNumber)
		assert.Equal("verse-1", ch.SectionID)
		assert.Len(ch.PitchClasses, 3)
		degrees = append(degrees, ch.Degree)
	}
	assert.Equal([]int{1, 4, 5, 6, 1, 4}, degrees)
}

func TestRepairFillsAndClamps(t *testing.T) {
	assert := assert.New(t)
	chords := []model.ChordEvent{
		{MeasureNumber: 2, SectionID: "verse-1", Degree: 9},
		{MeasureNumber: 4, SectionID: "verse-1", Degree: 5, Symbol: "G", PitchClasses: theory.Triad(cMajor, 5)},
	}

	repaired := Repair(chords, 4, cMajor)
	require.Len(t, repaired, 4)
	for i, ch := range repaired {
		assert.Equal(i+1, ch.MeasureNumber)
		assert.GreaterOrEqual(ch.Degree, 1)
		assert.LessOrEqual(ch.Degree, 7)
	}
	assert.Equal(1, repaired[0].Degree)
	assert.Equal(1, repaired[1].Degree)
	assert.Equal(5, repaired[3].Degree)
}

func TestRepairDedupes(t *testing.T) {
	chords := []model.ChordEvent{
		{MeasureNumber: 1, SectionID: "s", Degree: 4},
		{MeasureNumber: 1, SectionID: "s", Degree: 6},
	}
	repaired := Repair(chords, 1, cMajor)
	require.Len(t, repaired, 1)
	assert.Equal(t, 4, repaired[0].Degree)
}

func TestApplyCadences(t *testing.T) {
	assert := assert.New(t)
	chords := Build(cMajor, "verse-1", 1, 8, CycleFor("verse"))

	out := ApplyCadences(chords, []PhraseSpan{
		{StartMeasure: 1, EndMeasure: 2},
		{StartMeasure: 3, EndMeasure: 6},
	}, cMajor)

	byMeasure := make(map[int]model.ChordEvent)
	for _, ch := range out {
		byMeasure[ch.MeasureNumber] = ch
	}
	assert.Equal(1, byMeasure[2].Degree)
	assert.Equal(5, byMeasure[1].Degree)
	assert.Equal(1, byMeasure[6].Degree)
	assert.Equal(2, byMeasure[5].Degree)
	// Chords outside the spans keep their cycle degrees.
	assert.Equal(CycleFor("verse")[2], byMeasure[7].Degree)
	assert.Equal(CycleFor("verse")[3], byMeasure[8].Degree)
}
