package rhythm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsphweid/choirgen/lyric"
	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/util"
)

func buildSkeleton(t *testing.T, text string) (Skeleton, Plan) {
	t.Helper()
	sylls := lyric.TokenizeSection("verse-1", lyric.LinesFromText(text))
	require.NotEmpty(t, sylls)
	cfg := ConfigForPreset(model.PresetMixed, "Verse 1")
	plan := PlanSection("verse-1", sylls, "4/4", cfg, "form-seed", 0)
	return SkeletonFromPlan(plan, 4, "unit-verse"), plan
}

func TestProjectSameSyllableCountKeepsForm(t *testing.T) {
	assert := assert.New(t)
	sk, first := buildSkeleton(t, "Glory rises in the dawn")

	sylls := lyric.TokenizeSection("verse-2", lyric.LinesFromText("Sorrow passes in the night"))
	require.Len(t, sylls, len(first.Slots))

	plan, projected, err := sk.Project("verse-2", sylls, "4/4")
	require.NoError(t, err)
	assert.Equal(first.TotalBeats, plan.TotalBeats)
	assert.Equal(first.BarCount(4), plan.BarCount(4))
	require.Len(t, plan.Slots, len(first.Slots))
	for i := range plan.Slots {
		assert.Equal(first.Slots[i].Durations, plan.Slots[i].Durations)
		assert.Equal(first.Slots[i].PhraseEnd, projected[i].PhraseEndAfter)
	}
}

func TestProjectMergesExtraSlots(t *testing.T) {
	assert := assert.New(t)
	sk, first := buildSkeleton(t, "Glory rises in the dawn of morning")

	shorter := lyric.TokenizeSection("verse-2", lyric.LinesFromText("Sorrow in the night"))
	require.Less(t, len(shorter), len(first.Slots))

	plan, projected, err := sk.Project("verse-2", shorter, "4/4")
	require.NoError(t, err)
	assert.Len(plan.Slots, len(shorter))
	assert.InDelta(first.TotalBeats, plan.TotalBeats, util.Eps)
	assert.True(projected[len(projected)-1].PhraseEndAfter)
}

func TestProjectSplitsForExtraSyllables(t *testing.T) {
	assert := assert.New(t)
	sk, first := buildSkeleton(t, "Glory rises in the dawn")

	longer := lyric.TokenizeSection("verse-2", lyric.LinesFromText("Sorrow passes away in the deepest night"))
	require.Greater(t, len(longer), len(first.Slots))

	plan, _, err := sk.Project("verse-2", longer, "4/4")
	if err != nil {
		var infeasible *InfeasibleError
		assert.ErrorAs(err, &infeasible)
		return
	}
	assert.Len(plan.Slots, len(longer))
	assert.InDelta(first.TotalBeats, plan.TotalBeats, util.Eps)
	assert.Equal(first.BarCount(4), plan.BarCount(4))
}

func TestVerseFormMetadata(t *testing.T) {
	assert := assert.New(t)
	sk, plan := buildSkeleton(t, "Glory rises in the dawn")

	form := sk.VerseForm()
	assert.Equal("unit-verse", form.MusicUnitID)
	assert.Equal(plan.BarCount(4), form.BarCount)
	assert.Len(form.SlotBeats, len(plan.Slots))
	assert.Equal(plan.PhraseEndSlots(), form.PhraseEndSlots)
}
