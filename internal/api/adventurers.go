package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tavern-guild/tavern/internal/models"
	"github.com/tavern-guild/tavern/internal/service/adventurers"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// GetAdventurerProfile returns the caller's profile with rank progress.
// GET /adventurers/me.
func (h *Handler) GetAdventurerProfile(c *gin.Context) {
	profile, err := h.adventurers.GetProfile(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, profile)
}

// UpdateAdventurerProfile updates title, bio, class and attributes.
// PATCH /adventurers/me.
func (h *Handler) UpdateAdventurerProfile(c *gin.Context) {
	var in adventurers.UpdateProfileInput
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}

	profile, err := h.adventurers.UpdateProfile(c.Request.Context(), currentUser(c).ID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, profile)
}

// ListSkills returns the caller's skills.
// GET /adventurers/me/skills.
func (h *Handler) ListSkills(c *gin.Context) {
	skills, err := h.adventurers.ListSkills(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if skills == nil {
		skills = []models.AdventurerSkill{}
	}
	respond(c, http.StatusOK, skills)
}

// AddSkill adds a skill to the caller's profile.
// POST /adventurers/me/skills.
func (h *Handler) AddSkill(c *gin.Context) {
	var in adventurers.SkillInput
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}

	skill, err := h.adventurers.AddSkill(c.Request.Context(), currentUser(c).ID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, skill)
}

// UpdateSkill updates one of the caller's skills.
// PATCH /adventurers/me/skills/:skillId.
func (h *Handler) UpdateSkill(c *gin.Context) {
	var in adventurers.SkillUpdateInput
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}

	skill, err := h.adventurers.UpdateSkill(c.Request.Context(), currentUser(c).ID, c.Param("skillId"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, skill)
}

// DeleteSkill removes one of the caller's skills.
// DELETE /adventurers/me/skills/:skillId.
func (h *Handler) DeleteSkill(c *gin.Context) {
	skillID := c.Param("skillId")
	if err := h.adventurers.DeleteSkill(c.Request.Context(), currentUser(c).ID, skillID); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": skillID})
}

// ListCertificates returns the caller's completion scrolls.
// GET /adventurers/me/certificates.
func (h *Handler) ListCertificates(c *gin.Context) {
	certs, err := h.adventurers.Certificates(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if certs == nil {
		certs = []models.Certificate{}
	}
	respond(c, http.StatusOK, certs)
}

// GetLeaderboard returns the top adventurers by XP.
// GET /adventurers/leaderboard?limit=10.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	limit, err := parseIntQuery(c, "limit", defaultLeaderboardLimit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	entries, err := h.leaderboard.GetLeaderboard(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.log.Debug().
		Int("limit", limit).
		Int("entries", len(entries)).
		Msg("Retrieved leaderboard")

	respond(c, http.StatusOK, gin.H{
		"leaderboard":   entries,
		"total_entries": len(entries),
	})
}
