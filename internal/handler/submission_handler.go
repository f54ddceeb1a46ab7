package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/service"
	"github.com/noah-isme/gema-classroom-api/internal/utils"
)

// SubmissionHandler manages submission endpoints and their comment threads.
type SubmissionHandler struct {
	submissions service.SubmissionService
	comments    service.CommentService
	uploader    service.AttachmentUploader
	logger      zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(submissions service.SubmissionService, comments service.CommentService, uploader service.AttachmentUploader, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		comments:    comments,
		uploader:    uploader,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/stats", h.stats)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Post("/:id/grade", h.grade)
	router.Get("/:id/comments", h.listComments)
	router.Post("/:id/comments", h.createComment)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	filter := dto.SubmissionFilter{}
	if filter.TaskID, err = parseQueryUint(c, "task_id"); err != nil {
		return badRequest(c, err.Error())
	}
	if filter.StudentID, err = parseQueryUint(c, "student_id"); err != nil {
		return badRequest(c, err.Error())
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		filter.Status = &status
	}
	if filter.Page, err = parseQueryInt(c, "page"); err != nil {
		return badRequest(c, err.Error())
	}
	if filter.PageSize, err = parseQueryInt(c, "page_size"); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.submissions.List(requestContext(c), actor, filter)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submissions retrieved", result)
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var req dto.SubmissionCreateRequest
	if err := bindPayload(c, &req, func() error { return fillSubmissionCreateForm(c, &req) }); err != nil {
		return badRequest(c, "invalid request body")
	}

	files, err := uploadFormFiles(c, h.uploader)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	submission, err := h.submissions.Create(requestContext(c), actor, req, files)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", submission)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	submission, err := h.submissions.Get(requestContext(c), actor, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) update(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req dto.SubmissionUpdateRequest
	if err := bindPayload(c, &req, func() error { return fillSubmissionUpdateForm(c, &req) }); err != nil {
		return badRequest(c, "invalid request body")
	}

	files, err := uploadFormFiles(c, h.uploader)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	submission, err := h.submissions.Update(requestContext(c), actor, id, req, files)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission updated", submission)
}

func (h *SubmissionHandler) delete(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.submissions.Delete(requestContext(c), actor, id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission deleted", fiber.Map{"id": id})
}

func (h *SubmissionHandler) grade(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req dto.SubmissionGradeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	submission, err := h.submissions.Grade(requestContext(c), actor, id, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission graded", submission)
}

func (h *SubmissionHandler) stats(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var req dto.SubmissionStatsRequest
	if req.TaskID, err = parseQueryUint(c, "task_id"); err != nil {
		return badRequest(c, err.Error())
	}

	stats, err := h.submissions.Stats(requestContext(c), actor, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission statistics", stats)
}

func (h *SubmissionHandler) listComments(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	comments, err := h.comments.List(requestContext(c), actor, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "comments retrieved", comments)
}

func (h *SubmissionHandler) createComment(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req dto.CommentCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	comment, err := h.comments.Create(requestContext(c), actor, id, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "comment created", comment)
}

func fillSubmissionCreateForm(c *fiber.Ctx, req *dto.SubmissionCreateRequest) error {
	if raw := strings.TrimSpace(c.FormValue("task_id")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		req.TaskID = uint(parsed)
	}
	req.Link = strings.TrimSpace(c.FormValue("link"))
	for _, text := range formValues(c, "text") {
		req.Attachments = append(req.Attachments, dto.AttachmentInput{Type: "text", Content: text})
	}
	return nil
}

func fillSubmissionUpdateForm(c *fiber.Ctx, req *dto.SubmissionUpdateRequest) error {
	if link := strings.TrimSpace(c.FormValue("link")); link != "" {
		req.Link = &link
	}
	if texts := formValues(c, "text"); len(texts) > 0 {
		decls := make([]dto.AttachmentInput, 0, len(texts))
		for _, text := range texts {
			decls = append(decls, dto.AttachmentInput{Type: "text", Content: text})
		}
		req.Attachments = &decls
	}
	return nil
}
