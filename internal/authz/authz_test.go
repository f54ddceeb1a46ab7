package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	require.Equal(t, RoleTeacher, ParseRole(" Teacher "))
	require.Equal(t, RoleInstructor, ParseRole("INSTRUCTOR"))
	require.Equal(t, Role(""), ParseRole("janitor"))
}

func TestCanActTaskRules(t *testing.T) {
	teacher := Actor{ID: 1, Role: RoleTeacher}
	instructor := Actor{ID: 2, Role: RoleInstructor}
	student := Actor{ID: 3, Role: RoleStudent}
	admin := Actor{ID: 4, Role: RoleAdmin}

	require.True(t, CanAct(teacher, ActionTaskCreate, Owners{}))
	require.True(t, CanAct(instructor, ActionTaskCreate, Owners{}))
	require.False(t, CanAct(student, ActionTaskCreate, Owners{}))

	require.True(t, CanAct(teacher, ActionTaskUpdate, Owners{Subject: 1}))
	require.False(t, CanAct(instructor, ActionTaskUpdate, Owners{Subject: 1}))
	require.True(t, CanAct(admin, ActionTaskUpdate, Owners{Subject: 1}))

	require.False(t, CanAct(teacher, ActionTaskDeleteAll, Owners{}))
	require.True(t, CanAct(admin, ActionTaskDeleteAll, Owners{}))
}

func TestCanActSubmissionRules(t *testing.T) {
	owner := Actor{ID: 10, Role: RoleStudent}
	other := Actor{ID: 11, Role: RoleStudent}
	taskTeacher := Actor{ID: 20, Role: RoleTeacher}
	otherTeacher := Actor{ID: 21, Role: RoleTeacher}
	owners := Owners{Subject: 10, Grader: 20}

	require.True(t, CanAct(owner, ActionSubmissionCreate, Owners{}))
	require.False(t, CanAct(taskTeacher, ActionSubmissionCreate, Owners{}))
	require.False(t, CanAct(Actor{ID: 99, Role: RoleAdmin}, ActionSubmissionCreate, Owners{}))
	require.False(t, CanAct(Actor{ID: 99, Role: RoleAdmin}, ActionSubmissionUpdateContent, owners))
	require.True(t, CanAct(Actor{ID: 99, Role: RoleAdmin}, ActionSubmissionGrade, owners))

	require.True(t, CanAct(owner, ActionSubmissionUpdateContent, owners))
	require.False(t, CanAct(other, ActionSubmissionUpdateContent, owners))

	require.True(t, CanAct(taskTeacher, ActionSubmissionGrade, owners))
	require.False(t, CanAct(otherTeacher, ActionSubmissionGrade, owners))
	require.False(t, CanAct(owner, ActionSubmissionGrade, owners))

	require.True(t, CanAct(owner, ActionSubmissionView, owners))
	require.True(t, CanAct(taskTeacher, ActionSubmissionView, owners))
	require.False(t, CanAct(other, ActionSubmissionView, owners))

	require.True(t, CanAct(otherTeacher, ActionSubmissionStats, Owners{}))
	require.False(t, CanAct(owner, ActionSubmissionStats, Owners{}))
}

func TestCanActCommentRules(t *testing.T) {
	author := Actor{ID: 10, Role: RoleStudent}
	grader := Actor{ID: 20, Role: RoleInstructor}
	stranger := Actor{ID: 30, Role: RoleTeacher}

	require.True(t, CanAct(author, ActionCommentUpdate, Owners{Subject: 10, Grader: 20}))
	require.False(t, CanAct(grader, ActionCommentUpdate, Owners{Subject: 10, Grader: 20}))

	require.True(t, CanAct(grader, ActionCommentDelete, Owners{Subject: 10, Grader: 20}))
	require.False(t, CanAct(stranger, ActionCommentDelete, Owners{Subject: 10, Grader: 20}))
}

func TestCanActRejectsAnonymous(t *testing.T) {
	require.False(t, CanAct(Actor{}, ActionTaskCreate, Owners{}))
	require.False(t, CanAct(Actor{ID: 1}, ActionSubmissionCreate, Owners{}))
}
