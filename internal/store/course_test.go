package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pavelanni/coursehub/internal/model"
)

func insertTestCourse(t *testing.T, s *Store, teacher int64, title string, price int64) int64 {
	t.Helper()
	id, err := s.CreateCourse(model.Course{TeacherID: teacher, Title: title, Price: price, Level: model.LevelA2})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	return id
}

func TestCourseApprovalWorkflow(t *testing.T) {
	s := newTestStore(t)
	teacher := insertTestUser(t, s, "teacher", model.UserRoleTeacher)
	id := insertTestCourse(t, s, teacher, "Everyday English", 0)

	c, err := s.GetCourse(id)
	if err != nil {
		t.Fatalf("GetCourse: %v", err)
	}
	if c.ApprovalStatus != model.ApprovalDraft || c.IsPublished() {
		t.Fatalf("new course should be an unpublished draft, got %s", c.ApprovalStatus)
	}

	steps := []struct {
		from, to model.ApprovalStatus
		wantErr  error
	}{
		{model.ApprovalDraft, model.ApprovalApproved, model.ErrConflict},
		{model.ApprovalDraft, model.ApprovalPendingReview, nil},
		{model.ApprovalPendingReview, model.ApprovalRejected, nil},
		{model.ApprovalPendingReview, model.ApprovalApproved, model.ErrConflict}, // stale from
		{model.ApprovalRejected, model.ApprovalApproved, nil},
		{model.ApprovalApproved, model.ApprovalDraft, model.ErrConflict},
	}
	for _, st := range steps {
		err := s.TransitionCourseApproval(id, st.from, st.to, "")
		if st.wantErr == nil && err != nil {
			t.Errorf("%s -> %s: %v", st.from, st.to, err)
		}
		if st.wantErr != nil && !errors.Is(err, st.wantErr) {
			t.Errorf("%s -> %s: got %v, want %v", st.from, st.to, err, st.wantErr)
		}
	}

	c, _ = s.GetCourse(id)
	if c.ApprovalStatus != model.ApprovalApproved || !c.IsPublished() {
		t.Errorf("expected approved and published, got %s", c.ApprovalStatus)
	}
}

func TestListCoursesFilters(t *testing.T) {
	s := newTestStore(t)
	t1 := insertTestUser(t, s, "t1", model.UserRoleTeacher)
	t2 := insertTestUser(t, s, "t2", model.UserRoleTeacher)

	free := insertTestCourse(t, s, t1, "Free course", 0)
	insertTestCourse(t, s, t1, "Paid course", 199000)
	approvedPaid := insertTestCourse(t, s, t2, "Approved paid", 99000)
	_ = s.TransitionCourseApproval(approvedPaid, model.ApprovalDraft, model.ApprovalPendingReview, "")
	_ = s.TransitionCourseApproval(approvedPaid, model.ApprovalPendingReview, model.ApprovalApproved, "")

	tests := []struct {
		name   string
		filter model.CourseFilter
		want   int
	}{
		{"all", model.CourseFilter{}, 3},
		{"free", model.CourseFilter{Type: model.CourseFree}, 1},
		{"paid", model.CourseFilter{Type: model.CoursePaid}, 2},
		{"teacher", model.CourseFilter{TeacherID: t2}, 1},
		{"approved", model.CourseFilter{ApprovalStatus: model.ApprovalApproved}, 1},
		{"visible to t1", model.CourseFilter{VisibleTo: t1}, 3},
		{"visible to t2", model.CourseFilter{VisibleTo: t2}, 1},
		{"level", model.CourseFilter{Level: model.LevelC2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := s.ListCourses(tt.filter)
			if err != nil {
				t.Fatalf("ListCourses: %v", err)
			}
			if len(cs) != tt.want {
				t.Errorf("got %d courses, want %d", len(cs), tt.want)
			}
		})
	}

	c, _ := s.GetCourse(free)
	if c.Type() != model.CourseFree {
		t.Errorf("price 0 should be free, got %s", c.Type())
	}
}

func TestDeleteCourseRequiresConfirmation(t *testing.T) {
	s := newTestStore(t)
	teacher := insertTestUser(t, s, "teacher", model.UserRoleTeacher)
	learner := insertTestUser(t, s, "learner", model.UserRoleLearner)
	id := insertTestCourse(t, s, teacher, "Business English", 0)
	if _, err := s.AddLesson(model.Lesson{CourseID: id, Title: "Intro"}); err != nil {
		t.Fatalf("AddLesson: %v", err)
	}
	if err := s.Enroll(id, learner); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	// Enrolling twice does not double count.
	_ = s.Enroll(id, learner)

	res, err := s.DeleteCourse(id, false)
	if err != nil {
		t.Fatalf("DeleteCourse: %v", err)
	}
	if !res.RequireConfirmation || res.Deleted || res.EnrollmentCount != 1 {
		t.Fatalf("unforced delete = %+v", res)
	}
	if _, err := s.GetCourse(id); err != nil {
		t.Fatalf("course should still exist: %v", err)
	}

	res, err = s.DeleteCourse(id, true)
	if err != nil {
		t.Fatalf("forced DeleteCourse: %v", err)
	}
	if !res.Deleted {
		t.Fatalf("forced delete = %+v", res)
	}
	if _, err := s.GetCourse(id); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("after delete: got %v, want ErrNotFound", err)
	}
	lessons, _ := s.ListLessons(id)
	if len(lessons) != 0 {
		t.Errorf("lessons not removed with course: %d", len(lessons))
	}
	n, _ := s.CountEnrollments(id)
	if n != 0 {
		t.Errorf("enrollments not removed with course: %d", n)
	}

	if _, err := s.DeleteCourse(id, true); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("delete missing course: got %v, want ErrNotFound", err)
	}
}

func TestDeleteCourseWithoutEnrollments(t *testing.T) {
	s := newTestStore(t)
	teacher := insertTestUser(t, s, "teacher", model.UserRoleTeacher)
	id := insertTestCourse(t, s, teacher, "Empty", 0)

	res, err := s.DeleteCourse(id, false)
	if err != nil {
		t.Fatalf("DeleteCourse: %v", err)
	}
	if !res.Deleted || res.RequireConfirmation {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestLessonOrdering(t *testing.T) {
	s := newTestStore(t)
	teacher := insertTestUser(t, s, "teacher", model.UserRoleTeacher)
	id := insertTestCourse(t, s, teacher, "IELTS", 500000)

	var ids []int64
	for _, title := range []string{"one", "two", "three"} {
		l, err := s.AddLesson(model.Lesson{CourseID: id, Title: title})
		if err != nil {
			t.Fatalf("AddLesson: %v", err)
		}
		ids = append(ids, l.ID)
	}

	if err := s.DeleteLesson(id, ids[0]); err != nil {
		t.Fatalf("DeleteLesson: %v", err)
	}
	lessons, err := s.ListLessons(id)
	if err != nil {
		t.Fatalf("ListLessons: %v", err)
	}
	if len(lessons) != 2 {
		t.Fatalf("expected 2 lessons, got %d", len(lessons))
	}
	for i, l := range lessons {
		if l.Position != i+1 {
			t.Errorf("lesson %q at position %d, want %d", l.Title, l.Position, i+1)
		}
	}
	if lessons[0].Title != "two" {
		t.Errorf("first lesson = %q, want two", lessons[0].Title)
	}

	if err := s.DeleteLesson(id, 9999); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("delete missing lesson: got %v, want ErrNotFound", err)
	}
}

func TestConcurrentLessonWrites(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "coursehub.db"))
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	teacher := insertTestUser(t, s, "teacher", model.UserRoleTeacher)
	id := insertTestCourse(t, s, teacher, "Busy course", 0)

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AddLesson(model.Lesson{CourseID: id, Title: fmt.Sprintf("lesson %d", i)}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("AddLesson: %v", err)
	}

	lessons, err := s.ListLessons(id)
	if err != nil {
		t.Fatalf("ListLessons: %v", err)
	}
	if len(lessons) != writers {
		t.Fatalf("got %d lessons, want %d", len(lessons), writers)
	}
	for i, l := range lessons {
		if l.Position != i+1 {
			t.Errorf("lesson %q at position %d, want %d", l.Title, l.Position, i+1)
		}
	}
}

func TestUpdateApprovedCourseNeedsReview(t *testing.T) {
	s := newTestStore(t)
	teacher := insertTestUser(t, s, "teacher", model.UserRoleTeacher)
	id := insertTestCourse(t, s, teacher, "Travel English", 0)
	_ = s.TransitionCourseApproval(id, model.ApprovalDraft, model.ApprovalPendingReview, "")
	_ = s.TransitionCourseApproval(id, model.ApprovalPendingReview, model.ApprovalApproved, "")

	c, _ := s.GetCourse(id)
	c.Price = 150000
	if err := s.UpdateCourse(c); err != nil {
		t.Fatalf("UpdateCourse: %v", err)
	}
	c, _ = s.GetCourse(id)
	if c.ApprovalStatus != model.ApprovalPendingReview || c.IsPublished() || c.Price != 150000 {
		t.Errorf("edited approved course = %s published=%v price=%d", c.ApprovalStatus, c.IsPublished(), c.Price)
	}

	// Drafts keep their status.
	draft := insertTestCourse(t, s, teacher, "Draft", 0)
	c, _ = s.GetCourse(draft)
	c.Title = "Still a draft"
	if err := s.UpdateCourse(c); err != nil {
		t.Fatalf("UpdateCourse: %v", err)
	}
	if c, _ = s.GetCourse(draft); c.ApprovalStatus != model.ApprovalDraft {
		t.Errorf("draft became %s", c.ApprovalStatus)
	}
}
