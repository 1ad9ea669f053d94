package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleLearner takes exams and enrolls in courses.
	UserRoleLearner UserRole = "learner"
	// UserRoleTeacher authors courses, questions and exams, and grades submissions.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin reviews courses and exams and manages users.
	UserRoleAdmin UserRole = "admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleLearner, UserRoleTeacher, UserRoleAdmin:
		return true
	}
	return false
}

// User represents a system user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession represents an authentication session backing a bearer token.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type authSessionCtxKey struct{}

// ContextWithAuthSession stores the current auth session id in context.
func ContextWithAuthSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, authSessionCtxKey{}, id)
}

// AuthSessionFromContext returns the auth session id, or "".
func AuthSessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(authSessionCtxKey{}).(string)
	return id
}

// Level is a CEFR proficiency level.
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

// Valid reports whether l is a CEFR level.
func (l Level) Valid() bool {
	switch l {
	case LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2:
		return true
	}
	return false
}

// Notification is an inbox entry for a single user.
type Notification struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Kind      string     `json:"kind"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// Notification kinds.
const (
	NotifySubmissionGraded = "submission_graded"
	NotifyCourseReviewed   = "course_reviewed"
	NotifyExamReviewed     = "exam_reviewed"
)

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	PassPercentage float64       // minimum percentage for a passing result
	TokenTTL       time.Duration // lifetime of bearer tokens
	Lang           string        // default UI language for labels
	EssayTimeout   time.Duration // per-answer budget for essay suggestions
}
