package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-classroom-api/internal/authz"
	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/middleware"
	"github.com/noah-isme/gema-classroom-api/internal/service"
	"github.com/noah-isme/gema-classroom-api/internal/utils"
)

// TaskHandler exposes the task registry endpoints.
type TaskHandler struct {
	tasks     service.TaskService
	groups    service.GroupService
	deadlines service.DeadlineService
	uploader  service.AttachmentUploader
	logger    zerolog.Logger
}

// NewTaskHandler constructs a task handler.
func NewTaskHandler(tasks service.TaskService, groups service.GroupService, deadlines service.DeadlineService, uploader service.AttachmentUploader, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:     tasks,
		groups:    groups,
		deadlines: deadlines,
		uploader:  uploader,
		logger:    logger.With().Str("component", "task_handler").Logger(),
	}
}

// Register binds the task routes.
func (h *TaskHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Delete("", middleware.RequireRole(authz.RoleAdmin), h.deleteAll)
	router.Get("/student", h.listForStudent)
	router.Get("/:id/pending-students", h.pendingStudents)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *TaskHandler) list(c *fiber.Ctx) error {
	var req dto.TaskListRequest
	if err := c.QueryParser(&req); err != nil {
		return badRequest(c, "invalid query parameters")
	}

	result, err := h.tasks.List(requestContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "tasks retrieved", result)
}

func (h *TaskHandler) create(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var req dto.TaskCreateRequest
	if err := bindPayload(c, &req, func() error { return fillTaskCreateForm(c, &req) }); err != nil {
		return badRequest(c, "invalid request body")
	}

	files, err := uploadFormFiles(c, h.uploader)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	task, err := h.tasks.Create(requestContext(c), actor, req, files)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "task created", task)
}

func (h *TaskHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	task, err := h.tasks.Get(requestContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "task retrieved", task)
}

func (h *TaskHandler) update(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req dto.TaskUpdateRequest
	if err := bindPayload(c, &req, nil); err != nil {
		return badRequest(c, "invalid request body")
	}

	files, err := uploadFormFiles(c, h.uploader)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	task, err := h.tasks.Update(requestContext(c), actor, id, req, files)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "task updated", task)
}

func (h *TaskHandler) delete(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.tasks.Delete(requestContext(c), actor, id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "task deleted", fiber.Map{"id": id})
}

func (h *TaskHandler) deleteAll(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	deleted, err := h.tasks.DeleteAll(requestContext(c), actor)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "tasks deleted", fiber.Map{"deleted": deleted})
}

func (h *TaskHandler) listForStudent(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	groupIDs, err := parseUintList(c.Query("group_ids"), c.Query("group_id"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx := requestContext(c)
	if len(groupIDs) == 0 && actor.IsStudent() {
		if groupIDs, err = h.groups.StudentGroupIDs(ctx, actor.ID); err != nil {
			return respondError(c, h.logger, err)
		}
	}

	tasks, err := h.tasks.ListForStudent(ctx, actor, dto.StudentTaskListRequest{
		GroupIDs: groupIDs,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "student tasks retrieved", tasks)
}

func (h *TaskHandler) pendingStudents(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	pending, err := h.deadlines.PendingStudents(requestContext(c), actor, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "pending students retrieved", pending)
}

func fillTaskCreateForm(c *fiber.Ctx, req *dto.TaskCreateRequest) error {
	req.Title = c.FormValue("title")
	req.Description = c.FormValue("description")
	req.Deadline = c.FormValue("deadline")

	groups, err := parseUintList(formValues(c, "assigned_groups")...)
	if err != nil {
		return err
	}
	req.AssignedGroups = groups

	if req.AllowLateSubmission, err = parseFormBool(c.FormValue("allow_late_submission")); err != nil {
		return err
	}
	if raw := strings.TrimSpace(c.FormValue("max_points")); raw != "" {
		if req.MaxPoints, err = strconv.Atoi(raw); err != nil {
			return err
		}
	}
	for _, text := range formValues(c, "text") {
		req.Attachments = append(req.Attachments, dto.AttachmentInput{Type: "text", Content: text})
	}
	for _, link := range formValues(c, "link") {
		req.Attachments = append(req.Attachments, dto.AttachmentInput{Type: "link", Content: link})
	}
	return nil
}
