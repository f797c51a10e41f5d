package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tavern-guild/tavern/internal/apperr"
	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/service/quests"
)

type statusRequest struct {
	Status models.QuestStatus `json:"status" binding:"required,oneof=DRAFT POSTED IN_PROGRESS COMPLETED CANCELLED"`
}

// CreateQuest creates a quest owned by the caller.
// POST /quests/me.
func (h *Handler) CreateQuest(c *gin.Context) {
	var in quests.CreateInput
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}

	quest, err := h.quests.Create(c.Request.Context(), currentUser(c).ID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, quest)
}

// ListQuests lists the caller's quests, optionally by status.
// GET /quests/me?status=POSTED.
func (h *Handler) ListQuests(c *gin.Context) {
	status := models.QuestStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		h.fail(c, apperr.Validation("invalid query", apperr.Issue{Field: "status", Message: "is not a quest status"}))
		return
	}

	list, err := h.quests.ListMine(c.Request.Context(), currentUser(c).ID, status)
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []models.Quest{}
	}
	respond(c, http.StatusOK, list)
}

// GetQuest returns one of the caller's quests.
// GET /quests/me/:id.
func (h *Handler) GetQuest(c *gin.Context) {
	quest, err := h.quests.GetMine(c.Request.Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, quest)
}

// UpdateQuest edits a DRAFT or POSTED quest.
// PATCH /quests/me/:id.
func (h *Handler) UpdateQuest(c *gin.Context) {
	var in quests.UpdateInput
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}

	quest, err := h.quests.Update(c.Request.Context(), currentUser(c).ID, c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, quest)
}

// DeleteQuest deletes a DRAFT quest.
// DELETE /quests/me/:id.
func (h *Handler) DeleteQuest(c *gin.Context) {
	id := c.Param("id")
	if err := h.quests.Delete(c.Request.Context(), currentUser(c).ID, id); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id})
}

// ChangeQuestStatus moves a quest through its lifecycle.
// PATCH /quests/me/:id/status.
func (h *Handler) ChangeQuestStatus(c *gin.Context) {
	var req statusRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	quest, err := h.quests.ChangeStatus(c.Request.Context(), currentUser(c).ID, c.Param("id"), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, quest)
}

// CompleteQuest completes a quest and rewards its adventurer.
// POST /quest/:questId/complete.
func (h *Handler) CompleteQuest(c *gin.Context) {
	result, err := h.quests.Complete(c.Request.Context(), currentUser(c).ID, c.Param("questId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}
