package model

import "time"

// ApprovalStatus is the admin review state of a course or exam.
type ApprovalStatus string

const (
	ApprovalDraft         ApprovalStatus = "draft"
	ApprovalPendingReview ApprovalStatus = "pending_review"
	ApprovalApproved      ApprovalStatus = "approved"
	ApprovalRejected      ApprovalStatus = "rejected"
)

var approvalTransitions = map[ApprovalStatus][]ApprovalStatus{
	ApprovalDraft:         {ApprovalPendingReview},
	ApprovalPendingReview: {ApprovalApproved, ApprovalRejected},
	ApprovalRejected:      {ApprovalPendingReview, ApprovalApproved},
}

// Valid reports whether s is a known approval status.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalDraft, ApprovalPendingReview, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether the review workflow allows moving from s to next.
// Approved is terminal: there is no path back to draft.
func (s ApprovalStatus) CanTransitionTo(next ApprovalStatus) bool {
	for _, allowed := range approvalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CourseType classifies a course by price.
type CourseType string

const (
	CourseFree CourseType = "free"
	CoursePaid CourseType = "paid"
)

// Course is a catalog entry owned by a teacher.
type Course struct {
	ID             int64          `json:"id"`
	TeacherID      int64          `json:"teacher_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Price          int64          `json:"price"`
	Level          Level          `json:"level"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	ReviewNote     string         `json:"review_note,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsPublished is derived from the approval status and never stored.
func (c Course) IsPublished() bool {
	return c.ApprovalStatus == ApprovalApproved
}

// Type returns free for zero-priced courses and paid otherwise.
func (c Course) Type() CourseType {
	if c.Price == 0 {
		return CourseFree
	}
	return CoursePaid
}

// CourseFilter narrows course listings. Zero values mean no filtering.
type CourseFilter struct {
	Type           CourseType
	Level          Level
	ApprovalStatus ApprovalStatus
	TeacherID      int64
	// VisibleTo, when non-zero, restricts results to approved courses plus
	// the courses owned by this user.
	VisibleTo int64
}

// Lesson is one ordered unit of a course.
type Lesson struct {
	ID              int64  `json:"id"`
	CourseID        int64  `json:"course_id"`
	Position        int    `json:"position"`
	Title           string `json:"title"`
	Content         string `json:"content"`
	VideoURL        string `json:"video_url,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Enrollment links a learner to a course.
type Enrollment struct {
	CourseID   int64     `json:"course_id"`
	LearnerID  int64     `json:"learner_id"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// CourseDeleteResult reports the outcome of a course deletion request.
type CourseDeleteResult struct {
	Deleted             bool `json:"deleted"`
	RequireConfirmation bool `json:"require_confirmation"`
	EnrollmentCount     int  `json:"enrollment_count"`
}
