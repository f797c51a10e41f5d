package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tavern-guild/tavern/internal/service/organizations"
)

// CreateOrganization creates the caller's organization.
// POST /npc-organizations/me.
func (h *Handler) CreateOrganization(c *gin.Context) {
	var in organizations.CreateInput
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}

	org, err := h.organizations.Create(c.Request.Context(), currentUser(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, org)
}

// GetMyOrganization returns the caller's organization.
// GET /npc-organizations/me.
func (h *Handler) GetMyOrganization(c *gin.Context) {
	org, err := h.organizations.GetMine(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, org)
}

// UpdateMyOrganization updates the caller's organization profile.
// PATCH /npc-organizations/me.
func (h *Handler) UpdateMyOrganization(c *gin.Context) {
	var in organizations.UpdateInput
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}

	org, err := h.organizations.UpdateMine(c.Request.Context(), currentUser(c).ID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, org)
}

// GetMyTrust returns the trust report of the caller's organization.
// GET /npc-organizations/me/trust.
func (h *Handler) GetMyTrust(c *gin.Context) {
	report, err := h.organizations.Trust(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, report)
}

// ListOrganizations lists organizations for guild masters.
// GET /npc-organizations?verified=true&flagged=false&limit=20&offset=0.
func (h *Handler) ListOrganizations(c *gin.Context) {
	verified, err := parseBoolQuery(c, "verified")
	if err != nil {
		h.fail(c, err)
		return
	}
	flagged, err := parseBoolQuery(c, "flagged")
	if err != nil {
		h.fail(c, err)
		return
	}
	limit, offset, err := parsePaging(c, defaultPageLimit, maxPageLimit)
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.organizations.List(c.Request.Context(), organizations.ListOptions{
		Verified: verified,
		Flagged:  flagged,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// GetOrganization returns any organization by id.
// GET /npc-organizations/:id.
func (h *Handler) GetOrganization(c *gin.Context) {
	org, err := h.organizations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, org)
}

// ModerateOrganization sets the verified and flagged state.
// PATCH /npc-organizations/:id.
func (h *Handler) ModerateOrganization(c *gin.Context) {
	var in organizations.ModerateInput
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}

	org, err := h.organizations.Moderate(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, org)
}
