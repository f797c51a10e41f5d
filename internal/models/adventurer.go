package models

import "time"

// Rank is an adventurer rank letter, derived from XP.
type Rank string

// Rank constants, lowest first.
const (
	RankF   Rank = "F"
	RankE   Rank = "E"
	RankD   Rank = "D"
	RankC   Rank = "C"
	RankB   Rank = "B"
	RankA   Rank = "A"
	RankS   Rank = "S"
	RankSS  Rank = "SS"
	RankSSS Rank = "SSS"
)

// Attribute bounds.
const (
	MinAttribute     = 1
	MaxAttribute     = 20
	DefaultAttribute = 10
)

// Skill level bounds.
const (
	MinSkillLevel = 1
	MaxSkillLevel = 10
)

// Attributes are the six core stats of an adventurer, each in [1,20].
type Attributes struct {
	Strength     int `gorm:"column:strength;not null;default:10" bson:"strength" json:"strength"`
	Dexterity    int `gorm:"column:dexterity;not null;default:10" bson:"dexterity" json:"dexterity"`
	Constitution int `gorm:"column:constitution;not null;default:10" bson:"constitution" json:"constitution"`
	Intelligence int `gorm:"column:intelligence;not null;default:10" bson:"intelligence" json:"intelligence"`
	Wisdom       int `gorm:"column:wisdom;not null;default:10" bson:"wisdom" json:"wisdom"`
	Charisma     int `gorm:"column:charisma;not null;default:10" bson:"charisma" json:"charisma"`
}

// DefaultAttributes returns the starting stat block.
func DefaultAttributes() Attributes {
	return Attributes{
		Strength:     DefaultAttribute,
		Dexterity:    DefaultAttribute,
		Constitution: DefaultAttribute,
		Intelligence: DefaultAttribute,
		Wisdom:       DefaultAttribute,
		Charisma:     DefaultAttribute,
	}
}

// Named returns the stats keyed by their JSON names.
func (a Attributes) Named() map[string]int {
	return map[string]int{
		"strength":     a.Strength,
		"dexterity":    a.Dexterity,
		"constitution": a.Constitution,
		"intelligence": a.Intelligence,
		"wisdom":       a.Wisdom,
		"charisma":     a.Charisma,
	}
}

// AdventurerProfile is owned 1:1 by an ADVENTURER user.
// Rank must always equal the rank derived from XP.
type AdventurerProfile struct {
	ID              string     `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	UserID          string     `gorm:"uniqueIndex;not null;size:36" bson:"userId" json:"userId"`
	Title           string     `gorm:"size:100" bson:"title" json:"title"`
	Bio             string     `gorm:"type:text" bson:"bio" json:"bio"`
	ClassName       string     `gorm:"size:50" bson:"className" json:"className"`
	XP              int64      `gorm:"not null;default:0;index" bson:"xp" json:"xp"`
	Rank            Rank       `gorm:"size:3;not null;default:F" bson:"rank" json:"rank"`
	QuestsCompleted int        `gorm:"not null;default:0" bson:"questsCompleted" json:"questsCompleted"`
	Attributes      Attributes `gorm:"embedded;embeddedPrefix:attr_" bson:"attributes" json:"attributes"`
	CreatedAt       time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// TableName specifies the table name for AdventurerProfile model.
func (AdventurerProfile) TableName() string {
	return "adventurer_profiles"
}

// AdventurerSkill is a leveled skill of an adventurer. Names are unique per adventurer.
type AdventurerSkill struct {
	ID           string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	AdventurerID string    `gorm:"uniqueIndex:idx_skill_owner_name;not null;size:36" bson:"adventurerId" json:"adventurerId"`
	Name         string    `gorm:"uniqueIndex:idx_skill_owner_name;not null;size:100" bson:"name" json:"name"`
	Level        int       `gorm:"not null;default:1" bson:"level" json:"level"`
	Description  string    `gorm:"type:text" bson:"description" json:"description"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// TableName specifies the table name for AdventurerSkill model.
func (AdventurerSkill) TableName() string {
	return "adventurer_skills"
}
