package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pavelanni/coursehub/internal/model"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "AppTitle"); got != "CourseHub" {
		t.Errorf("T(AppTitle) = %q, want 'CourseHub'", got)
	}
	if got := ApprovalLabel(ctx, model.ApprovalPendingReview); got != "Pending review" {
		t.Errorf("ApprovalLabel(pending_review) = %q", got)
	}
}

func TestApprovedLabelVietnamese(t *testing.T) {
	ctx := initLang(t, "vi")

	if got := ApprovalLabel(ctx, model.ApprovalApproved); got != "Đã duyệt" {
		t.Errorf("ApprovalLabel(approved) = %q, want 'Đã duyệt'", got)
	}
	if got := CourseTypeLabel(ctx, model.CourseFree); got != "Miễn phí" {
		t.Errorf("CourseTypeLabel(free) = %q, want 'Miễn phí'", got)
	}
	if got := SubmissionStatusLabel(ctx, model.StatusGrading); got != "Đang chấm" {
		t.Errorf("SubmissionStatusLabel(grading) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "DeleteCourseConfirm", 1)
	if got1 != "This course has 1 enrolled learner. Delete it anyway?" {
		t.Errorf("Tp(DeleteCourseConfirm, 1) = %q", got1)
	}
	got5 := Tp(ctx, "DeleteCourseConfirm", 5)
	if got5 != "This course has 5 enrolled learners. Delete it anyway?" {
		t.Errorf("Tp(DeleteCourseConfirm, 5) = %q", got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "NotifyCourseApproved", map[string]any{"Title": "IELTS 7.0"})
	if got != `Your course "IELTS 7.0" was approved.` {
		t.Errorf("Td(NotifyCourseApproved) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestMiddlewareHonorsAcceptLanguage(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ApprovalLabel(r.Context(), model.ApprovalApproved)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "vi-VN,vi;q=0.9,en;q=0.8")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Đã duyệt" {
		t.Errorf("with Accept-Language vi: got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Approved" {
		t.Errorf("without Accept-Language: got %q", got)
	}
}
