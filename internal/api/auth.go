package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tavern-guild/tavern/internal/service/auth"
)

// Register creates an account.
// POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var in auth.RegisterInput
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, user)
}

// Login exchanges credentials for a token.
// POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var in auth.LoginInput
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}

	session, err := h.auth.Login(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, session)
}

// Me returns the authenticated user.
// GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	respond(c, http.StatusOK, currentUser(c))
}
