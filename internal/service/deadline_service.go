package service

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-classroom-api/internal/authz"
	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
)

// DeadlineService finds students who still owe work and drives reminder sweeps.
type DeadlineService interface {
	PendingStudents(ctx context.Context, actor authz.Actor, taskID uint) (dto.PendingStudentsResponse, error)
	// Sweep emits reminders for tasks due on the calendar day after now.
	Sweep(ctx context.Context, now time.Time) (dto.DeadlineSweepResponse, error)
	TriggerSweep(ctx context.Context, actor authz.Actor) (dto.DeadlineSweepResponse, error)
}

type deadlineService struct {
	tasks       repository.TaskRepository
	groups      repository.GroupRepository
	submissions repository.SubmissionRepository
	events      EventSink
	location    *time.Location
	logger      zerolog.Logger
	now         func() time.Time
}

// NewDeadlineService builds the sweep. A nil location means UTC.
func NewDeadlineService(
	tasks repository.TaskRepository,
	groups repository.GroupRepository,
	submissions repository.SubmissionRepository,
	events EventSink,
	location *time.Location,
	logger zerolog.Logger,
) DeadlineService {
	if location == nil {
		location = time.UTC
	}
	return &deadlineService{
		tasks:       tasks,
		groups:      groups,
		submissions: submissions,
		events:      sinkOrDiscard(events),
		location:    location,
		logger:      logger.With().Str("component", "deadline_service").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *deadlineService) PendingStudents(ctx context.Context, actor authz.Actor, taskID uint) (dto.PendingStudentsResponse, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return dto.PendingStudentsResponse{}, storeError(err, ErrTaskNotFound)
	}
	if !authz.CanAct(actor, authz.ActionTaskViewPending, authz.Owners{Subject: task.TeacherID}) {
		return dto.PendingStudentsResponse{}, forbidden("view pending students for this task")
	}

	pending, err := s.pending(ctx, task)
	if err != nil {
		return dto.PendingStudentsResponse{}, err
	}
	return dto.PendingStudentsResponse{TaskID: task.ID, StudentIDs: pending}, nil
}

func (s *deadlineService) TriggerSweep(ctx context.Context, actor authz.Actor) (dto.DeadlineSweepResponse, error) {
	if !authz.CanAct(actor, authz.ActionNotificationSweep, authz.Owners{}) {
		return dto.DeadlineSweepResponse{}, forbidden("run the deadline sweep")
	}
	return s.Sweep(ctx, s.now())
}

func (s *deadlineService) Sweep(ctx context.Context, now time.Time) (dto.DeadlineSweepResponse, error) {
	start, end := TomorrowWindow(now, s.location)
	response := dto.DeadlineSweepResponse{WindowStart: start, WindowEnd: end}

	tasks, err := s.tasks.ListDueBetween(ctx, start, end)
	if err != nil {
		return response, storeError(err, nil)
	}

	for _, task := range tasks {
		response.TasksScanned++
		pending, err := s.pending(ctx, task)
		if err != nil {
			s.logger.Error().Err(err).Uint("task_id", task.ID).Msg("failed to resolve pending students")
			continue
		}
		if len(pending) == 0 {
			continue
		}
		s.events.Emit(ctx, Event{Kind: EventDeadlineApproaching, Task: task, Students: pending})
		response.RemindersQueued += len(pending)
	}

	s.logger.Info().
		Time("window_start", start).
		Time("window_end", end).
		Int("tasks", response.TasksScanned).
		Int("reminders", response.RemindersQueued).
		Msg("deadline sweep finished")
	return response, nil
}

// pending returns the sorted ids of assigned students with no submission.
func (s *deadlineService) pending(ctx context.Context, task models.Task) ([]uint, error) {
	students, err := s.groups.StudentIDsInGroups(ctx, task.GroupIDs())
	if err != nil {
		return nil, storeError(err, nil)
	}
	submitted, err := s.submissions.StudentIDsForTask(ctx, task.ID)
	if err != nil {
		return nil, storeError(err, nil)
	}

	done := make(map[uint]struct{}, len(submitted))
	for _, id := range submitted {
		done[id] = struct{}{}
	}
	pending := make([]uint, 0, len(students))
	for _, id := range uniqueIDs(students) {
		if _, ok := done[id]; !ok {
			pending = append(pending, id)
		}
	}
	slices.Sort(pending)
	return pending, nil
}

// TomorrowWindow returns [start of tomorrow, start of the day after) in loc, as UTC instants.
func TomorrowWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start.UTC(), end.UTC()
}
