// Package models defines domain models for the tavern quest marketplace.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role tags a user and gates authorization.
type Role string

// Role constants.
const (
	RoleAdventurer  Role = "ADVENTURER"
	RoleNPC         Role = "NPC"
	RoleGuildMaster Role = "GUILD_MASTER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdventurer, RoleNPC, RoleGuildMaster:
		return true
	}
	return false
}

// NewID returns a fresh identifier for any document.
func NewID() string {
	return uuid.NewString()
}

// User is an identity record. Role is set at registration and never changes.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null;size:255" bson:"email" json:"email"`
	Username     string    `gorm:"uniqueIndex;not null;size:50" bson:"username" json:"username"`
	DisplayName  string    `gorm:"size:100" bson:"displayName" json:"displayName"`
	Role         Role      `gorm:"size:20;not null;index" bson:"role" json:"role"`
	PasswordHash string    `gorm:"not null" bson:"passwordHash" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}
