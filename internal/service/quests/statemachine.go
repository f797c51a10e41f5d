package quests

import (
	"github.com/tavern-guild/tavern/internal/apperr"
	"github.com/tavern-guild/tavern/internal/models"
)

// transitions lists the allowed targets of every non-terminal status.
var transitions = map[models.QuestStatus][]models.QuestStatus{
	models.QuestDraft:      {models.QuestPosted, models.QuestCancelled},
	models.QuestPosted:     {models.QuestCancelled},
	models.QuestInProgress: {models.QuestCompleted, models.QuestCancelled},
}

// CanTransition reports whether a quest may move from one status to another.
// Staying in the same status is always allowed.
func CanTransition(from, to models.QuestStatus) bool {
	if from == to {
		return true
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CheckStatusChange validates a transition requested through the status endpoint.
// IN_PROGRESS and COMPLETED can never be set there; completion has its own path.
func CheckStatusChange(from, to models.QuestStatus) error {
	if to == models.QuestInProgress || to == models.QuestCompleted {
		return apperr.Policy("status %s cannot be set directly", to)
	}
	if !CanTransition(from, to) {
		return apperr.Policy("cannot change quest status from %s to %s", from, to)
	}
	return nil
}

// Editable reports whether quest fields may be changed in status s.
func Editable(s models.QuestStatus) bool {
	return s == models.QuestDraft || s == models.QuestPosted
}

// Deletable reports whether a quest in status s may be deleted.
func Deletable(s models.QuestStatus) bool {
	return s == models.QuestDraft
}
