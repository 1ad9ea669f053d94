package grading

import (
	"testing"

	"github.com/pavelanni/coursehub/internal/model"
)

func mcq(id int64, key string) model.Question {
	return model.Question{
		ID:            id,
		Type:          model.QuestionMultipleChoice,
		Options:       []string{"one", "two", "three", "four"},
		CorrectAnswer: key,
		Points:        1,
	}
}

func essay(id int64, points int) model.Question {
	return model.Question{ID: id, Type: model.QuestionEssay, Points: points}
}

func gradeAll(method model.GradingMethod, qs []model.Question, answers []string) []model.SubmissionAnswer {
	var out []model.SubmissionAnswer
	for i, q := range qs {
		out = append(out, Grade(method, q, answers[i]))
	}
	return out
}

func TestGrade(t *testing.T) {
	tests := []struct {
		name        string
		method      model.GradingMethod
		q           model.Question
		answer      string
		wantScore   float64
		wantCorrect bool
		wantGraded  bool
	}{
		{"mcq correct", model.GradingAuto, mcq(1, "B"), "B", 1, true, true},
		{"mcq wrong", model.GradingAuto, mcq(1, "B"), "C", 0, false, true},
		{"mcq case sensitive", model.GradingAuto, mcq(1, "B"), "b", 0, false, true},
		{"fill in blank exact", model.GradingHybrid, model.Question{ID: 2, Type: model.QuestionFillInBlank, CorrectAnswer: "went", Points: 2}, "went", 2, true, true},
		{"fill in blank padded", model.GradingHybrid, model.Question{ID: 2, Type: model.QuestionFillInBlank, CorrectAnswer: "went", Points: 2}, "went ", 0, false, true},
		{"essay auto", model.GradingAuto, essay(3, 5), "long text", 0, false, true},
		{"essay hybrid", model.GradingHybrid, essay(3, 5), "long text", 0, false, false},
		{"essay manual", model.GradingManual, essay(3, 5), "long text", 0, false, false},
		{"matching hybrid", model.GradingHybrid, model.Question{ID: 4, Type: model.QuestionMatching, CorrectAnswer: "1-a", Points: 1}, "1-a", 0, false, false},
		{"empty essay", model.GradingManual, essay(3, 5), "", 0, false, true},
		{"empty mcq", model.GradingAuto, mcq(1, "A"), "", 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Grade(tt.method, tt.q, tt.answer)
			if got.Score != tt.wantScore {
				t.Errorf("score = %v, want %v", got.Score, tt.wantScore)
			}
			if got.IsCorrect != tt.wantCorrect {
				t.Errorf("is_correct = %v, want %v", got.IsCorrect, tt.wantCorrect)
			}
			if got.Graded != tt.wantGraded {
				t.Errorf("graded = %v, want %v", got.Graded, tt.wantGraded)
			}
			if got.QuestionID != tt.q.ID {
				t.Errorf("question_id = %d, want %d", got.QuestionID, tt.q.ID)
			}
		})
	}
}

func TestStatusAfterSubmit(t *testing.T) {
	qs := []model.Question{mcq(1, "A"), essay(2, 5)}

	if got := StatusAfterSubmit(model.GradingAuto, gradeAll(model.GradingAuto, qs, []string{"A", "text"})); got != model.StatusCompleted {
		t.Errorf("auto: got %q, want completed", got)
	}
	if got := StatusAfterSubmit(model.GradingHybrid, gradeAll(model.GradingHybrid, qs, []string{"A", "text"})); got != model.StatusGrading {
		t.Errorf("hybrid with essay: got %q, want grading", got)
	}
	if got := StatusAfterSubmit(model.GradingManual, gradeAll(model.GradingManual, qs, []string{"A", ""})); got != model.StatusCompleted {
		t.Errorf("manual with blank essay: got %q, want completed", got)
	}
}

func TestAllCorrectAutoIsFullMarks(t *testing.T) {
	qs := []model.Question{
		mcq(1, "A"),
		mcq(2, "D"),
		{ID: 3, Type: model.QuestionFillInBlank, CorrectAnswer: "has been", Points: 3},
	}
	answers := gradeAll(model.GradingAuto, qs, []string{"A", "D", "has been"})
	sub := model.ExamSubmission{ID: 1, Status: StatusAfterSubmit(model.GradingAuto, answers)}

	res := Summarize(sub, qs, answers, DefaultPassPercentage)
	if res.Percentage != 100 {
		t.Errorf("percentage = %v, want 100", res.Percentage)
	}
	if !res.Passed {
		t.Error("expected passed")
	}
	if res.MaxScore != 5 || res.Score != 5 {
		t.Errorf("score %v/%d, want 5/5", res.Score, res.MaxScore)
	}
}

func TestHalfCorrectFails(t *testing.T) {
	qs := []model.Question{mcq(1, "A"), mcq(2, "B")}
	answers := gradeAll(model.GradingAuto, qs, []string{"A", "C"})
	sub := model.ExamSubmission{ID: 7, Status: model.StatusCompleted}

	res := Summarize(sub, qs, answers, DefaultPassPercentage)
	if res.Score != 1 {
		t.Errorf("score = %v, want 1", res.Score)
	}
	if res.Percentage != 50 {
		t.Errorf("percentage = %v, want 50", res.Percentage)
	}
	if res.Passed {
		t.Error("expected not passed below 60%")
	}
	if res.CorrectAnswers != 1 || res.WrongAnswers != 1 {
		t.Errorf("correct/wrong = %d/%d, want 1/1", res.CorrectAnswers, res.WrongAnswers)
	}
	if res.Answers[1].CorrectAnswer != "B" {
		t.Errorf("completed result should reveal key, got %q", res.Answers[1].CorrectAnswer)
	}
}

func TestCorrectPlusWrongIsTotal(t *testing.T) {
	qs := []model.Question{mcq(1, "A"), mcq(2, "B"), essay(3, 4), essay(4, 4)}

	cases := []struct {
		name    string
		status  model.SubmissionStatus
		answers []model.SubmissionAnswer
	}{
		{"nothing answered", model.StatusInProgress, nil},
		{"partially answered", model.StatusInProgress, []model.SubmissionAnswer{{QuestionID: 1, Answer: "A"}}},
		{"grading", model.StatusGrading, gradeAll(model.GradingHybrid, qs, []string{"A", "A", "essay", ""})},
		{"completed", model.StatusCompleted, gradeAll(model.GradingAuto, qs, []string{"A", "B", "essay", "essay"})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Summarize(model.ExamSubmission{Status: tc.status}, qs, tc.answers, DefaultPassPercentage)
			if res.CorrectAnswers+res.WrongAnswers != res.TotalQuestions {
				t.Errorf("correct %d + wrong %d != total %d", res.CorrectAnswers, res.WrongAnswers, res.TotalQuestions)
			}
		})
	}
}

func TestSummarizeHidesKeyUntilCompleted(t *testing.T) {
	qs := []model.Question{essay(1, 4), mcq(2, "C")}
	qs[1].Explanation = "because"
	answers := gradeAll(model.GradingHybrid, qs, []string{"my essay", "C"})

	res := Summarize(model.ExamSubmission{Status: model.StatusGrading}, qs, answers, DefaultPassPercentage)
	if res.PendingAnswers != 1 {
		t.Errorf("pending = %d, want 1", res.PendingAnswers)
	}
	if res.Final {
		t.Error("grading result should not be final")
	}
	for _, a := range res.Answers {
		if a.CorrectAnswer != "" || a.Explanation != "" {
			t.Errorf("key revealed before completion for question %d", a.QuestionID)
		}
	}
}

func TestApplyManual(t *testing.T) {
	q := essay(1, 5)
	a := Grade(model.GradingManual, q, "text")

	if _, err := ApplyManual(a, q, 6, ""); err == nil {
		t.Error("expected error for score above points")
	}
	if _, err := ApplyManual(a, q, -1, ""); err == nil {
		t.Error("expected error for negative score")
	}

	got, err := ApplyManual(a, q, 5, "excellent")
	if err != nil {
		t.Fatalf("ApplyManual: %v", err)
	}
	if !got.Graded || !got.IsCorrect || got.Score != 5 || got.TeacherFeedback != "excellent" {
		t.Errorf("unexpected answer after full marks: %+v", got)
	}

	got, _ = ApplyManual(a, q, 2.5, "")
	if got.IsCorrect {
		t.Error("partial credit should not be marked correct")
	}
}

func TestPercentageZeroMax(t *testing.T) {
	if got := Percentage(0, 0); got != 0 {
		t.Errorf("Percentage(0, 0) = %v, want 0", got)
	}
}

func TestGradeSubmission(t *testing.T) {
	qs := []model.Question{mcq(1, "A"), mcq(2, "B"), essay(3, 10)}
	recorded := []model.SubmissionAnswer{
		{QuestionID: 2, Answer: "B"},
		{QuestionID: 3, Answer: "My weekend was busy."},
		{QuestionID: 99, Answer: "stray"},
	}

	tests := []struct {
		method     model.GradingMethod
		wantStatus model.SubmissionStatus
		wantTotal  float64
		wantLeft   int
	}{
		{model.GradingAuto, model.StatusCompleted, 1, 0},
		{model.GradingHybrid, model.StatusGrading, 1, 1},
		{model.GradingManual, model.StatusGrading, 1, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			graded, status := GradeSubmission(tt.method, qs, recorded)
			if len(graded) != len(qs) {
				t.Fatalf("got %d answers, want one per question", len(graded))
			}
			if graded[0].Answer != "" || !graded[0].Graded {
				t.Errorf("unanswered question should be graded empty: %+v", graded[0])
			}
			if status != tt.wantStatus {
				t.Errorf("status = %s, want %s", status, tt.wantStatus)
			}
			if got := Total(graded); got != tt.wantTotal {
				t.Errorf("total = %v, want %v", got, tt.wantTotal)
			}
			if got := Pending(graded); got != tt.wantLeft {
				t.Errorf("pending = %d, want %d", got, tt.wantLeft)
			}
		})
	}
}
