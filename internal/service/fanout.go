package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/observability"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
	"github.com/noah-isme/gema-classroom-api/pkg/jobs"
)

// EventKind names a lifecycle transition that produces notifications.
type EventKind string

const (
	EventTaskCreated         EventKind = "task_created"
	EventSubmissionCreated   EventKind = "submission_created"
	EventSubmissionGraded    EventKind = "submission_graded"
	EventDeadlineApproaching EventKind = "deadline_approaching"
)

// Event is emitted after a successful mutation.
type Event struct {
	Kind       EventKind
	Task       models.Task
	Submission models.Submission
	// Students lists recipient students. Resolved from the task groups for
	// EventTaskCreated when empty; supplied by the sweep for EventDeadlineApproaching.
	Students []uint
}

// EventSink receives lifecycle events. Emit never fails the caller.
type EventSink interface {
	Emit(ctx context.Context, event Event)
}

type discardSink struct{}

func (discardSink) Emit(context.Context, Event) {}

func sinkOrDiscard(events EventSink) EventSink {
	if events == nil {
		return discardSink{}
	}
	return events
}

// DeriveNotifications maps one event onto its notification records.
// Each recipient appears at most once.
func DeriveNotifications(event Event) []models.Notification {
	task := event.Task
	switch event.Kind {
	case EventTaskCreated:
		return perStudent(event.Students, models.Notification{
			Type:      models.NotificationTaskAssigned,
			Title:     "New task assigned",
			Message:   fmt.Sprintf("%s is due %s", task.Title, formatDeadline(task)),
			RelatedID: task.ID,
		})
	case EventDeadlineApproaching:
		return perStudent(event.Students, models.Notification{
			Type:      models.NotificationDeadlineReminder,
			Title:     "Deadline approaching",
			Message:   fmt.Sprintf("%s is due %s and you have not submitted yet", task.Title, formatDeadline(task)),
			RelatedID: task.ID,
		})
	case EventSubmissionCreated:
		if task.TeacherID == 0 {
			return nil
		}
		return []models.Notification{{
			RecipientID:   task.TeacherID,
			RecipientRole: "teacher",
			Type:          models.NotificationSubmissionReceived,
			Title:         "New submission",
			Message:       fmt.Sprintf("A student submitted work for %s", task.Title),
			RelatedID:     event.Submission.ID,
		}}
	case EventSubmissionGraded:
		submission := event.Submission
		if submission.StudentID == 0 {
			return nil
		}
		message := fmt.Sprintf("Your submission for %s was graded", task.Title)
		if submission.Points != nil {
			message = fmt.Sprintf("Your submission for %s was graded: %g/%d", task.Title, *submission.Points, task.MaxPoints)
		}
		return []models.Notification{{
			RecipientID:   submission.StudentID,
			RecipientRole: "student",
			Type:          models.NotificationTaskGraded,
			Title:         "Submission graded",
			Message:       message,
			RelatedID:     submission.ID,
		}}
	default:
		return nil
	}
}

func perStudent(students []uint, template models.Notification) []models.Notification {
	seen := make(map[uint]struct{}, len(students))
	notifications := make([]models.Notification, 0, len(students))
	for _, id := range students {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		n := template
		n.RecipientID = id
		n.RecipientRole = "student"
		notifications = append(notifications, n)
	}
	return notifications
}

func formatDeadline(task models.Task) string {
	return task.Deadline.UTC().Format("2006-01-02 15:04 MST")
}

// FanoutConfig tunes the dispatcher worker pool.
type FanoutConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	// Inline delivers on the caller goroutine. Used by one-shot commands.
	Inline bool
}

// FanoutDispatcher resolves recipients and hands derived notifications to the
// notification service on a background queue.
type FanoutDispatcher struct {
	groups        repository.GroupRepository
	notifications NotificationService
	queue         *jobs.Queue
	inline        bool
	logger        zerolog.Logger
}

// NewFanoutDispatcher wires the dispatcher and its queue.
func NewFanoutDispatcher(groups repository.GroupRepository, notifications NotificationService, cfg FanoutConfig, logger zerolog.Logger) *FanoutDispatcher {
	d := &FanoutDispatcher{
		groups:        groups,
		notifications: notifications,
		inline:        cfg.Inline,
		logger:        logger.With().Str("component", "notification_fanout").Logger(),
	}
	if !cfg.Inline {
		d.queue = jobs.NewQueue("notifications", d.handle, jobs.QueueConfig{
			Workers:    cfg.Workers,
			BufferSize: cfg.BufferSize,
			MaxRetries: cfg.MaxRetries,
			Logger:     logger,
		})
	}
	return d
}

// Start launches the workers.
func (d *FanoutDispatcher) Start(ctx context.Context) {
	if d.queue != nil {
		d.queue.Start(ctx)
	}
}

// Stop delivers buffered events before returning. Events left after the drain timeout are counted as dropped.
func (d *FanoutDispatcher) Stop() {
	if d.queue == nil {
		return
	}
	if dropped := d.queue.Stop(); dropped > 0 {
		observability.NotificationsDroppedTotal().WithLabelValues("shutdown").Add(float64(dropped))
		d.logger.Warn().Int("dropped", dropped).Msg("notification events dropped on shutdown")
	}
}

// Emit queues the event for delivery. A full buffer drops the event.
func (d *FanoutDispatcher) Emit(ctx context.Context, event Event) {
	if d.inline {
		if err := d.Deliver(context.WithoutCancel(ctx), event); err != nil {
			observability.NotificationsDroppedTotal().WithLabelValues("delivery").Inc()
			d.logger.Error().Err(err).Str("event", string(event.Kind)).Uint("task_id", event.Task.ID).Msg("notification fan-out failed")
		}
		return
	}

	job := jobs.Job{ID: uuid.NewString(), Type: string(event.Kind), Payload: event}
	if err := d.queue.Enqueue(job); err != nil {
		observability.NotificationsDroppedTotal().WithLabelValues("enqueue").Inc()
		d.logger.Warn().Err(err).Str("event", string(event.Kind)).Uint("task_id", event.Task.ID).Msg("notification event dropped")
	}
}

func (d *FanoutDispatcher) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(Event)
	if !ok {
		d.logger.Warn().Str("job_id", job.ID).Msg("unexpected fan-out payload")
		return nil
	}
	return d.Deliver(ctx, event)
}

// Deliver resolves recipients, derives notifications and publishes them.
func (d *FanoutDispatcher) Deliver(ctx context.Context, event Event) error {
	if event.Kind == EventTaskCreated && len(event.Students) == 0 {
		students, err := d.groups.StudentIDsInGroups(ctx, event.Task.GroupIDs())
		if err != nil {
			return fmt.Errorf("resolve recipients: %w", err)
		}
		event.Students = students
	}

	notifications := DeriveNotifications(event)
	if len(notifications) == 0 {
		return nil
	}

	if _, err := d.notifications.PublishBatch(ctx, notifications); err != nil {
		return fmt.Errorf("publish notifications: %w", err)
	}

	d.logger.Debug().Str("event", string(event.Kind)).Int("recipients", len(notifications)).Msg("notifications delivered")
	return nil
}
