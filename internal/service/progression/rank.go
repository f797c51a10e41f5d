// Package progression derives adventurer ranks from XP and XP awards from quest difficulty.
package progression

import "github.com/tavern-guild/tavern/internal/models"

// threshold is the inclusive lower XP bound of a rank.
type threshold struct {
	rank  models.Rank
	minXP int64
}

// ranks is ordered ascending and non-overlapping. Each rank covers [minXP, next.minXP).
var ranks = []threshold{
	{models.RankF, 0},
	{models.RankE, 200},
	{models.RankD, 400},
	{models.RankC, 700},
	{models.RankB, 1000},
	{models.RankA, 1500},
	{models.RankS, 2000},
	{models.RankSS, 3000},
	{models.RankSSS, 5000},
}

// xpByDifficulty is the XP awarded for completing a quest.
var xpByDifficulty = map[models.Difficulty]int64{
	models.DifficultyEasy:   100,
	models.DifficultyMedium: 200,
	models.DifficultyHard:   400,
	models.DifficultyEpic:   700,
}

// RankFor returns the rank whose bucket contains xp. Negative XP counts as 0.
func RankFor(xp int64) models.Rank {
	rank := ranks[0].rank
	for _, t := range ranks {
		if xp < t.minXP {
			break
		}
		rank = t.rank
	}
	return rank
}

// XPFor returns the XP award for a difficulty. Unknown difficulties award the EASY amount.
func XPFor(difficulty models.Difficulty) int64 {
	if xp, ok := xpByDifficulty[difficulty]; ok {
		return xp
	}
	return xpByDifficulty[models.DifficultyEasy]
}

// Progress describes where an adventurer stands relative to the next rank.
type Progress struct {
	Rank      models.Rank  `json:"rank"`
	NextRank  *models.Rank `json:"nextRank"`
	XPToNext  *int64       `json:"xpToNext"`
	RankMinXP int64        `json:"rankMinXp"`
}

// ProgressFor computes the progress for xp. NextRank and XPToNext are nil at the top rank.
func ProgressFor(xp int64) Progress {
	if xp < 0 {
		xp = 0
	}

	for i := len(ranks) - 1; i >= 0; i-- {
		if xp < ranks[i].minXP {
			continue
		}
		p := Progress{Rank: ranks[i].rank, RankMinXP: ranks[i].minXP}
		if i+1 < len(ranks) {
			next := ranks[i+1].rank
			remaining := ranks[i+1].minXP - xp
			p.NextRank = &next
			p.XPToNext = &remaining
		}
		return p
	}
	return Progress{Rank: models.RankF}
}

// Award is the result of adding XP to a profile.
type Award struct {
	XPAwarded    int64       `json:"xpAwarded"`
	XP           int64       `json:"xp"`
	Rank         models.Rank `json:"rank"`
	PreviousRank models.Rank `json:"previousRank"`
	RankChanged  bool        `json:"rankChanged"`
}

// AwardFor describes gaining gained XP on top of a total of before. The
// previous rank is derived from before, never read from storage.
func AwardFor(before, gained int64) Award {
	after := before + gained
	if after < 0 {
		after = 0
	}
	previous := RankFor(before)
	rank := RankFor(after)

	return Award{
		XPAwarded:    gained,
		XP:           after,
		Rank:         rank,
		PreviousRank: previous,
		RankChanged:  previous != rank,
	}
}
