// Package authz decides whether an actor may perform an action on a resource.
package authz

import "strings"

// Role is the resolved role of the caller.
type Role string

const (
	RoleStudent    Role = "student"
	RoleTeacher    Role = "teacher"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// ParseRole normalises a role claim. Unknown values yield an empty role.
func ParseRole(value string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleStudent:
		return RoleStudent
	case RoleTeacher:
		return RoleTeacher
	case RoleInstructor:
		return RoleInstructor
	case RoleAdmin:
		return RoleAdmin
	default:
		return ""
	}
}

// Actor is the authenticated caller.
type Actor struct {
	ID   uint
	Role Role
}

// IsAdmin reports superuser status.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// IsStudent reports whether the actor acts as a student.
func (a Actor) IsStudent() bool { return a.Role == RoleStudent }

// IsGrader reports whether the actor carries grading authority in general.
// Teachers and instructors are equivalent; admins inherit everything.
func (a Actor) IsGrader() bool {
	return a.Role == RoleTeacher || a.Role == RoleInstructor || a.Role == RoleAdmin
}

// Action names an operation guarded by the rule engine.
type Action string

const (
	ActionTaskCreate              Action = "task.create"
	ActionTaskUpdate              Action = "task.update"
	ActionTaskDelete              Action = "task.delete"
	ActionTaskDeleteAll           Action = "task.delete_all"
	ActionTaskViewPending         Action = "task.view_pending"
	ActionSubmissionCreate        Action = "submission.create"
	ActionSubmissionUpdateContent Action = "submission.update_content"
	ActionSubmissionGrade         Action = "submission.grade"
	ActionSubmissionDelete        Action = "submission.delete"
	ActionSubmissionView          Action = "submission.view"
	ActionSubmissionStats         Action = "submission.stats"
	ActionCommentCreate           Action = "comment.create"
	ActionCommentView             Action = "comment.view"
	ActionCommentUpdate           Action = "comment.update"
	ActionCommentDelete           Action = "comment.delete"
	ActionCommentStats            Action = "comment.stats"
	ActionGroupCreate             Action = "group.create"
	ActionGroupManage             Action = "group.manage"
	ActionNotificationSweep       Action = "notification.sweep"
)

// Owners describes who owns the target of an action. Subject is the direct owner
// (student of a submission, author of a comment, teacher of a task, owner of a group)
// and Grader is the teacher owning the parent task when grading authority applies.
type Owners struct {
	Subject uint
	Grader  uint
}

// CanAct is the single decision function used by every mutating operation.
func CanAct(actor Actor, action Action, owners Owners) bool {
	if actor.ID == 0 || actor.Role == "" {
		return false
	}

	isSubject := owners.Subject != 0 && owners.Subject == actor.ID

	// Submitting work is a student act; admin superuser rights do not extend to it.
	switch action {
	case ActionSubmissionCreate:
		return actor.IsStudent()
	case ActionSubmissionUpdateContent:
		return actor.IsStudent() && isSubject
	}

	if actor.IsAdmin() {
		return true
	}

	isGrader := actor.IsGrader() && owners.Grader != 0 && owners.Grader == actor.ID

	switch action {
	case ActionTaskCreate, ActionGroupCreate:
		return actor.IsGrader()
	case ActionTaskUpdate, ActionTaskDelete, ActionTaskViewPending, ActionGroupManage:
		return actor.IsGrader() && isSubject
	case ActionTaskDeleteAll, ActionNotificationSweep:
		return false
	case ActionSubmissionGrade, ActionSubmissionStats, ActionCommentStats:
		if owners.Grader == 0 {
			return actor.IsGrader()
		}
		return isGrader
	case ActionSubmissionDelete, ActionSubmissionView, ActionCommentCreate, ActionCommentView:
		return isSubject || isGrader
	case ActionCommentUpdate:
		return isSubject
	case ActionCommentDelete:
		return isSubject || isGrader
	default:
		return false
	}
}
