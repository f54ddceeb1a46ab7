package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/service"
	"github.com/noah-isme/gema-classroom-api/internal/utils"
)

// GroupHandler exposes the group directory.
type GroupHandler struct {
	groups service.GroupService
	logger zerolog.Logger
}

// NewGroupHandler constructs a group handler.
func NewGroupHandler(groups service.GroupService, logger zerolog.Logger) *GroupHandler {
	return &GroupHandler{
		groups: groups,
		logger: logger.With().Str("component", "group_handler").Logger(),
	}
}

// Register binds the group routes.
func (h *GroupHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Post("/:id/members", h.addMembers)
	router.Delete("/:id/members/:studentId", h.removeMember)
}

func (h *GroupHandler) list(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	groups, err := h.groups.List(requestContext(c), actor)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "groups retrieved", groups)
}

func (h *GroupHandler) create(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var req dto.GroupCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	group, err := h.groups.Create(requestContext(c), actor, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "group created", group)
}

func (h *GroupHandler) addMembers(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req dto.GroupMembersRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	group, err := h.groups.AddMembers(requestContext(c), actor, id, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "group members added", group)
}

func (h *GroupHandler) removeMember(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	group, err := h.groups.RemoveMember(requestContext(c), actor, id, studentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "group member removed", group)
}
