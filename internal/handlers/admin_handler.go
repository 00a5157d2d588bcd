package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/feniix/family-gallery-sub002/internal/users"
	"github.com/feniix/family-gallery-sub002/internal/utils"
)

// requireAdmin authenticates and gates on the admin role. When ok is
// false the error response has already been written.
func (h *Handler) requireAdmin(c *fiber.Ctx) (users.User, bool) {
	user, err := h.authenticate(c)
	if err != nil {
		_ = h.unauthorized(c, err)
		return users.User{}, false
	}
	if !user.Role.AtLeast(users.RoleAdmin) {
		_ = utils.JSONError(c, fiber.StatusForbidden, "admin only")
		return users.User{}, false
	}
	return user, true
}

// GET /api/admin/users
func (h *Handler) ListUsers(c *fiber.Ctx) error {
	if _, ok := h.requireAdmin(c); !ok {
		return nil
	}
	all, err := h.users.List(c.Context())
	if err != nil {
		h.log.Errorw("list users failed", "error", err)
		return utils.JSONError(c, fiber.StatusInternalServerError, "list failed")
	}
	return utils.JSONSuccess(c, fiber.StatusOK, all)
}

// POST /api/admin/users/:id/approve
func (h *Handler) ApproveUser(c *fiber.Ctx) error {
	admin, ok := h.requireAdmin(c)
	if !ok {
		return nil
	}
	u, err := h.users.Approve(c.Context(), c.Params("id"), admin.ID)
	if err != nil {
		return h.userError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, u)
}

// POST /api/admin/users/:id/suspend
func (h *Handler) SuspendUser(c *fiber.Ctx) error {
	if _, ok := h.requireAdmin(c); !ok {
		return nil
	}
	u, err := h.users.Suspend(c.Context(), c.Params("id"))
	if err != nil {
		return h.userError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, u)
}

// POST /api/admin/users/:id/role {"role": "family"}
func (h *Handler) SetUserRole(c *fiber.Ctx) error {
	if _, ok := h.requireAdmin(c); !ok {
		return nil
	}
	var body struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "malformed payload")
	}
	role := users.Role(body.Role)
	if !role.Valid() {
		return utils.JSONError(c, fiber.StatusBadRequest, "unknown role")
	}
	u, err := h.users.SetRole(c.Context(), c.Params("id"), role)
	if err != nil {
		return h.userError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, u)
}

// POST /api/admin/users/cleanup
func (h *Handler) CleanupUsers(c *fiber.Ctx) error {
	if _, ok := h.requireAdmin(c); !ok {
		return nil
	}
	removed, err := h.users.CleanupDuplicateEmails(c.Context())
	if err != nil {
		h.log.Errorw("user cleanup failed", "error", err)
		return utils.JSONError(c, fiber.StatusInternalServerError, "cleanup failed")
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"removed": removed})
}

func (h *Handler) userError(c *fiber.Ctx, err error) error {
	if errors.Is(err, users.ErrUserNotFound) {
		return utils.JSONError(c, fiber.StatusNotFound, "user not found")
	}
	h.log.Errorw("user mutation failed", "error", err)
	return utils.JSONError(c, fiber.StatusInternalServerError, "system unavailable")
}
