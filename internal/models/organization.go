package models

import "time"

// TrustTier is the bucketed reputation of an NPC organization.
type TrustTier string

// TrustTier constants.
const (
	TrustLow    TrustTier = "LOW"
	TrustMedium TrustTier = "MEDIUM"
	TrustHigh   TrustTier = "HIGH"
)

// NpcOrganization is the quest-giving organization of an NPC user.
// TrustTier always corresponds to TrustScore; use SetTrust to change them.
type NpcOrganization struct {
	ID           string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	UserID       string    `gorm:"uniqueIndex;not null;size:36" bson:"userId" json:"userId"`
	Name         string    `gorm:"not null;size:120" bson:"name" json:"name"`
	Slug         string    `gorm:"uniqueIndex;not null;size:140" bson:"slug" json:"slug"`
	Description  string    `gorm:"type:text" bson:"description" json:"description"`
	Website      string    `gorm:"size:255" bson:"website" json:"website"`
	Location     string    `gorm:"size:120" bson:"location" json:"location"`
	ContactEmail string    `gorm:"size:255" bson:"contactEmail" json:"contactEmail"`
	TrustScore   int       `gorm:"not null" bson:"trustScore" json:"trustScore"`
	TrustTier    TrustTier `gorm:"size:10;not null;default:MEDIUM" bson:"trustTier" json:"trustTier"`
	Verified     bool      `gorm:"not null;default:false;index" bson:"verified" json:"verified"`
	IsFlagged    bool      `gorm:"not null;default:false;index" bson:"isFlagged" json:"isFlagged"`
	FlagReason   string    `gorm:"type:text" bson:"flagReason" json:"flagReason,omitempty"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// TableName specifies the table name for NpcOrganization model.
func (NpcOrganization) TableName() string {
	return "npc_organizations"
}

// TierFor buckets a trust score.
func TierFor(score int) TrustTier {
	switch {
	case score >= 75:
		return TrustHigh
	case score >= 40:
		return TrustMedium
	default:
		return TrustLow
	}
}

// SetTrust writes the score and its tier together.
func (o *NpcOrganization) SetTrust(score int) {
	o.TrustScore = score
	o.TrustTier = TierFor(score)
}
