package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/service"
	"github.com/noah-isme/gema-classroom-api/internal/utils"
)

// CommentHandler serves comment edits and the author feed.
type CommentHandler struct {
	comments service.CommentService
	logger   zerolog.Logger
}

// NewCommentHandler constructs a comment handler.
func NewCommentHandler(comments service.CommentService, logger zerolog.Logger) *CommentHandler {
	return &CommentHandler{
		comments: comments,
		logger:   logger.With().Str("component", "comment_handler").Logger(),
	}
}

// Register binds the comment routes.
func (h *CommentHandler) Register(router fiber.Router) {
	router.Get("/mine", h.mine)
	router.Get("/stats", h.stats)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *CommentHandler) mine(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return badRequest(c, err.Error())
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.comments.ListMine(requestContext(c), actor, page, pageSize)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "comments retrieved", result)
}

func (h *CommentHandler) stats(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var req dto.CommentStatsRequest
	if req.TaskID, err = parseQueryUint(c, "task_id"); err != nil {
		return badRequest(c, err.Error())
	}
	if req.SubmissionID, err = parseQueryUint(c, "submission_id"); err != nil {
		return badRequest(c, err.Error())
	}

	stats, err := h.comments.Stats(requestContext(c), actor, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "comment statistics", stats)
}

func (h *CommentHandler) update(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req dto.CommentUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	comment, err := h.comments.Update(requestContext(c), actor, id, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "comment updated", comment)
}

func (h *CommentHandler) delete(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.comments.Delete(requestContext(c), actor, id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "comment deleted", fiber.Map{"id": id})
}
