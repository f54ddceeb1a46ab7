package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-classroom-api/internal/authz"
	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
)

// TaskService exposes the task registry use cases.
type TaskService interface {
	Create(ctx context.Context, actor authz.Actor, req dto.TaskCreateRequest, files []UploadedFile) (dto.TaskResponse, error)
	Update(ctx context.Context, actor authz.Actor, id uint, req dto.TaskUpdateRequest, files []UploadedFile) (dto.TaskResponse, error)
	List(ctx context.Context, req dto.TaskListRequest) (dto.TaskListResponse, error)
	Get(ctx context.Context, id uint) (dto.TaskResponse, error)
	Delete(ctx context.Context, actor authz.Actor, id uint) error
	DeleteAll(ctx context.Context, actor authz.Actor) (int64, error)
	ListForStudent(ctx context.Context, actor authz.Actor, req dto.StudentTaskListRequest) ([]dto.StudentTaskResponse, error)
}

type taskService struct {
	repo        repository.TaskRepository
	groups      repository.GroupRepository
	submissions repository.SubmissionRepository
	events      EventSink
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewTaskService builds the task registry.
func NewTaskService(
	repo repository.TaskRepository,
	groups repository.GroupRepository,
	submissions repository.SubmissionRepository,
	events EventSink,
	validate *validator.Validate,
	logger zerolog.Logger,
) TaskService {
	return &taskService{
		repo:        repo,
		groups:      groups,
		submissions: submissions,
		events:      sinkOrDiscard(events),
		validator:   validate,
		logger:      logger.With().Str("component", "task_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-classroom-api/internal/service/task"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *taskService) Create(ctx context.Context, actor authz.Actor, req dto.TaskCreateRequest, files []UploadedFile) (dto.TaskResponse, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.create", trace.WithAttributes(
		attribute.Int64("actor.id", int64(actor.ID)),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer span.End()

	if !authz.CanAct(actor, authz.ActionTaskCreate, authz.Owners{}) {
		span.SetStatus(codes.Error, "forbidden")
		return dto.TaskResponse{}, forbidden("create tasks")
	}
	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.TaskResponse{}, err
	}

	title, err := requiredText(req.Title, "title")
	if err != nil {
		return dto.TaskResponse{}, err
	}
	description, err := requiredText(req.Description, "description")
	if err != nil {
		return dto.TaskResponse{}, err
	}
	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	groupIDs, err := s.resolveGroups(ctx, req.AssignedGroups)
	if err != nil {
		return dto.TaskResponse{}, err
	}

	task := models.Task{
		Title:               title,
		Description:         description,
		TeacherID:           actor.ID,
		Deadline:            deadline,
		AllowLateSubmission: req.AllowLateSubmission,
		MaxPoints:           req.MaxPoints,
		Attachments:         NormalizeAttachments(files, req.Attachments),
		Groups:              taskGroups(groupIDs),
	}

	if err := s.repo.Create(ctx, &task); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.TaskResponse{}, storeError(err, nil)
	}

	span.SetAttributes(attribute.Int64("task.id", int64(task.ID)))
	s.logger.Info().Uint("task_id", task.ID).Uint("teacher_id", actor.ID).Ints("groups", toInts(groupIDs)).Msg("task created")
	s.events.Emit(ctx, Event{Kind: EventTaskCreated, Task: task})

	return s.enrich(ctx, task)
}

func (s *taskService) Update(ctx context.Context, actor authz.Actor, id uint, req dto.TaskUpdateRequest, files []UploadedFile) (dto.TaskResponse, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.update", trace.WithAttributes(attribute.Int64("task.id", int64(id))))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.TaskResponse{}, err
	}

	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.TaskResponse{}, storeError(err, ErrTaskNotFound)
	}
	if !authz.CanAct(actor, authz.ActionTaskUpdate, authz.Owners{Subject: task.TeacherID}) {
		span.SetStatus(codes.Error, "forbidden")
		return dto.TaskResponse{}, forbidden("update this task")
	}

	if req.Title != nil {
		if task.Title, err = requiredText(*req.Title, "title"); err != nil {
			return dto.TaskResponse{}, err
		}
	}
	if req.Description != nil {
		if task.Description, err = requiredText(*req.Description, "description"); err != nil {
			return dto.TaskResponse{}, err
		}
	}
	if req.Deadline != nil {
		if task.Deadline, err = parseDeadline(*req.Deadline); err != nil {
			return dto.TaskResponse{}, err
		}
	}
	if req.AllowLateSubmission != nil {
		task.AllowLateSubmission = *req.AllowLateSubmission
	}
	if req.MaxPoints != nil {
		task.MaxPoints = *req.MaxPoints
	}
	if req.Attachments != nil || len(files) > 0 {
		var decls []dto.AttachmentInput
		if req.Attachments != nil {
			decls = *req.Attachments
		}
		task.Attachments = NormalizeAttachments(files, decls)
	}

	replaceGroups := req.AssignedGroups != nil
	if replaceGroups {
		groupIDs, err := s.resolveGroups(ctx, *req.AssignedGroups)
		if err != nil {
			return dto.TaskResponse{}, err
		}
		task.Groups = taskGroups(groupIDs)
	}

	if err := s.repo.Update(ctx, &task, replaceGroups); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.TaskResponse{}, storeError(err, ErrTaskNotFound)
	}

	s.logger.Info().Uint("task_id", task.ID).Uint("actor_id", actor.ID).Msg("task updated")
	return s.enrich(ctx, task)
}

func (s *taskService) List(ctx context.Context, req dto.TaskListRequest) (dto.TaskListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.TaskListResponse{}, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	filter := repository.TaskFilter{
		TeacherID: req.TeacherID,
		State:     req.State,
		Now:       s.now(),
		Search:    req.Search,
		Sort:      req.Sort,
		Page:      page,
		PageSize:  pageSize,
	}
	if req.GroupID != nil {
		filter.GroupIDs = []uint{*req.GroupID}
	}

	tasks, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.TaskListResponse{}, storeError(err, nil)
	}

	items, err := s.enrichAll(ctx, tasks)
	if err != nil {
		return dto.TaskListResponse{}, err
	}

	return dto.TaskListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *taskService) Get(ctx context.Context, id uint) (dto.TaskResponse, error) {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.TaskResponse{}, storeError(err, ErrTaskNotFound)
	}
	return s.enrich(ctx, task)
}

func (s *taskService) Delete(ctx context.Context, actor authz.Actor, id uint) error {
	ctx, span := s.tracer.Start(ctx, "tasks.delete", trace.WithAttributes(attribute.Int64("task.id", int64(id))))
	defer span.End()

	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return storeError(err, ErrTaskNotFound)
	}
	if !authz.CanAct(actor, authz.ActionTaskDelete, authz.Owners{Subject: task.TeacherID}) {
		span.SetStatus(codes.Error, "forbidden")
		return forbidden("delete this task")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return storeError(err, ErrTaskNotFound)
	}

	s.logger.Info().Uint("task_id", id).Uint("actor_id", actor.ID).Msg("task deleted")
	return nil
}

func (s *taskService) DeleteAll(ctx context.Context, actor authz.Actor) (int64, error) {
	if !authz.CanAct(actor, authz.ActionTaskDeleteAll, authz.Owners{}) {
		return 0, forbidden("delete all tasks")
	}

	deleted, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, storeError(err, nil)
	}

	s.logger.Warn().Int64("deleted", deleted).Uint("actor_id", actor.ID).Msg("all tasks deleted")
	return deleted, nil
}

func (s *taskService) ListForStudent(ctx context.Context, actor authz.Actor, req dto.StudentTaskListRequest) ([]dto.StudentTaskResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	groupIDs := uniqueIDs(req.GroupIDs)
	if actor.IsStudent() && len(groupIDs) > 0 {
		memberships, err := s.groups.GroupIDsForStudent(ctx, actor.ID)
		if err != nil {
			return nil, storeError(err, nil)
		}
		groupIDs = intersectIDs(groupIDs, memberships)
	}
	if len(groupIDs) == 0 {
		return []dto.StudentTaskResponse{}, nil
	}

	now := s.now()
	tasks, _, err := s.repo.List(ctx, repository.TaskFilter{GroupIDs: groupIDs, Now: now, Sort: "deadline"})
	if err != nil {
		return nil, storeError(err, nil)
	}

	taskIDs := make([]uint, 0, len(tasks))
	for _, task := range tasks {
		taskIDs = append(taskIDs, task.ID)
	}
	submitted, err := s.submissions.ListByStudentForTasks(ctx, actor.ID, taskIDs)
	if err != nil {
		return nil, storeError(err, nil)
	}

	enriched, err := s.enrichAll(ctx, tasks)
	if err != nil {
		return nil, err
	}

	out := make([]dto.StudentTaskResponse, 0, len(tasks))
	for i, task := range tasks {
		item := dto.StudentTaskResponse{
			TaskResponse: enriched[i],
			IsExpired:    task.IsExpired(now),
			CanSubmit:    task.AcceptsSubmissionAt(now),
		}
		if submission, ok := submitted[task.ID]; ok {
			id := submission.ID
			status := string(submission.Status)
			item.HasSubmitted = true
			item.SubmissionID = &id
			item.SubmissionStatus = &status
		}
		if !matchesStudentStatus(item, req.Status) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func matchesStudentStatus(item dto.StudentTaskResponse, status string) bool {
	switch status {
	case "":
		return true
	case "pending":
		return !item.HasSubmitted
	default:
		return item.SubmissionStatus != nil && *item.SubmissionStatus == status
	}
}

func (s *taskService) resolveGroups(ctx context.Context, requested []uint) ([]uint, error) {
	groupIDs := uniqueIDs(requested)
	if len(groupIDs) == 0 {
		return nil, ErrAssignedGroupsMissing
	}
	existing, err := s.groups.ExistingIDs(ctx, groupIDs)
	if err != nil {
		return nil, storeError(err, nil)
	}
	if len(existing) != len(groupIDs) {
		return nil, ErrUnknownGroups
	}
	return groupIDs, nil
}

func (s *taskService) enrich(ctx context.Context, task models.Task) (dto.TaskResponse, error) {
	items, err := s.enrichAll(ctx, []models.Task{task})
	if err != nil {
		return dto.TaskResponse{}, err
	}
	return items[0], nil
}

// enrichAll attaches submission and student counts computed on every call.
func (s *taskService) enrichAll(ctx context.Context, tasks []models.Task) ([]dto.TaskResponse, error) {
	ids := make([]uint, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	counts, err := s.repo.CountSubmissions(ctx, ids)
	if err != nil {
		return nil, storeError(err, nil)
	}

	out := make([]dto.TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		response := dto.NewTaskResponse(task)
		response.SubmissionCount = counts[task.ID]
		total, err := s.groups.CountStudents(ctx, task.GroupIDs())
		if err != nil {
			return nil, storeError(err, nil)
		}
		response.TotalStudents = total
		out = append(out, response)
	}
	return out, nil
}

func parseDeadline(value string) (time.Time, error) {
	deadline, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, ErrInvalidDeadline
	}
	return deadline.UTC(), nil
}

func taskGroups(ids []uint) []models.TaskGroup {
	groups := make([]models.TaskGroup, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, models.TaskGroup{GroupID: id})
	}
	return groups
}

func intersectIDs(a, b []uint) []uint {
	allowed := make(map[uint]struct{}, len(b))
	for _, id := range b {
		allowed[id] = struct{}{}
	}
	out := make([]uint, 0, len(a))
	for _, id := range a {
		if _, ok := allowed[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func toInts(ids []uint) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		out = append(out, int(id))
	}
	return out
}
