package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavern-guild/tavern/internal/models"
)

func TestRankFor(t *testing.T) {
	tests := []struct {
		xp   int64
		want models.Rank
	}{
		{-50, models.RankF},
		{0, models.RankF},
		{199, models.RankF},
		{200, models.RankE},
		{399, models.RankE},
		{400, models.RankD},
		{699, models.RankD},
		{700, models.RankC},
		{999, models.RankC},
		{1000, models.RankB},
		{1499, models.RankB},
		{1500, models.RankA},
		{1999, models.RankA},
		{2000, models.RankS},
		{2999, models.RankS},
		{3000, models.RankSS},
		{4999, models.RankSS},
		{5000, models.RankSSS},
		{1_000_000, models.RankSSS},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RankFor(tt.xp), "xp=%d", tt.xp)
	}
}

func TestRankFor_EveryBucketIsContiguous(t *testing.T) {
	for i := 1; i < len(ranks); i++ {
		lower := ranks[i-1]
		upper := ranks[i]
		assert.Less(t, lower.minXP, upper.minXP)
		assert.Equal(t, lower.rank, RankFor(upper.minXP-1))
		assert.Equal(t, upper.rank, RankFor(upper.minXP))
	}
}

func TestXPFor(t *testing.T) {
	assert.Equal(t, int64(100), XPFor(models.DifficultyEasy))
	assert.Equal(t, int64(200), XPFor(models.DifficultyMedium))
	assert.Equal(t, int64(400), XPFor(models.DifficultyHard))
	assert.Equal(t, int64(700), XPFor(models.DifficultyEpic))
	assert.Equal(t, int64(100), XPFor("LEGENDARY"))
}

func TestProgressFor(t *testing.T) {
	p := ProgressFor(150)
	assert.Equal(t, models.RankF, p.Rank)
	require.NotNil(t, p.NextRank)
	assert.Equal(t, models.RankE, *p.NextRank)
	require.NotNil(t, p.XPToNext)
	assert.Equal(t, int64(50), *p.XPToNext)

	top := ProgressFor(7000)
	assert.Equal(t, models.RankSSS, top.Rank)
	assert.Nil(t, top.NextRank)
	assert.Nil(t, top.XPToNext)
	assert.Equal(t, int64(5000), top.RankMinXP)
}

func TestAwardFor(t *testing.T) {
	award := AwardFor(150, XPFor(models.DifficultyHard))

	assert.Equal(t, int64(400), award.XPAwarded)
	assert.Equal(t, int64(550), award.XP)
	assert.Equal(t, models.RankD, award.Rank)
	assert.Equal(t, models.RankF, award.PreviousRank)
	assert.True(t, award.RankChanged)

	again := AwardFor(award.XP, XPFor(models.DifficultyEasy))
	assert.False(t, again.RankChanged)
	assert.Equal(t, models.RankD, again.Rank)
}

func TestAwardFor_ClampsAtZero(t *testing.T) {
	award := AwardFor(100, -500)

	assert.Equal(t, int64(0), award.XP)
	assert.Equal(t, models.RankF, award.Rank)
	assert.False(t, award.RankChanged)
}
