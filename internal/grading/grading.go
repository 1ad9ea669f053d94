// Package grading scores submission answers and builds results.
// It has no storage or transport dependencies.
package grading

import (
	"fmt"

	"github.com/pavelanni/coursehub/internal/model"
)

// DefaultPassPercentage is used when no threshold is configured.
const DefaultPassPercentage = 60.0

// Grade scores a single answer at submit time.
//
// Empty answers are graded immediately with zero points. Multiple choice and
// fill-in-the-blank answers score the question's points on an exact match with
// the stored correct answer. Essay and matching answers are left ungraded for
// a teacher, unless the exam is auto-graded, in which case they score zero.
func Grade(method model.GradingMethod, q model.Question, answer string) model.SubmissionAnswer {
	a := model.SubmissionAnswer{QuestionID: q.ID, Answer: answer}
	switch {
	case answer == "":
		a.Graded = true
	case q.Type.AutoGradable():
		a.Graded = true
		if answer == q.CorrectAnswer {
			a.IsCorrect = true
			a.Score = float64(q.Points)
		}
	case method == model.GradingAuto:
		a.Graded = true
	}
	return a
}

// StatusAfterSubmit returns the status a submission moves to once its answers
// have been graded by Grade.
func StatusAfterSubmit(method model.GradingMethod, answers []model.SubmissionAnswer) model.SubmissionStatus {
	if method == model.GradingAuto {
		return model.StatusCompleted
	}
	if Pending(answers) > 0 {
		return model.StatusGrading
	}
	return model.StatusCompleted
}

// GradeSubmission grades the recorded answers of a submission at submit time.
// Every question gets exactly one answer; questions the learner never
// answered are graded as empty. Answers to questions outside the exam are
// dropped.
func GradeSubmission(method model.GradingMethod, questions []model.Question, recorded []model.SubmissionAnswer) ([]model.SubmissionAnswer, model.SubmissionStatus) {
	byQuestion := make(map[int64]string, len(recorded))
	for _, a := range recorded {
		byQuestion[a.QuestionID] = a.Answer
	}
	graded := make([]model.SubmissionAnswer, 0, len(questions))
	for _, q := range questions {
		graded = append(graded, Grade(method, q, byQuestion[q.ID]))
	}
	return graded, StatusAfterSubmit(method, graded)
}

// Pending counts answers still waiting for a teacher.
func Pending(answers []model.SubmissionAnswer) int {
	n := 0
	for _, a := range answers {
		if !a.Graded {
			n++
		}
	}
	return n
}

// Total sums the awarded scores.
func Total(answers []model.SubmissionAnswer) float64 {
	var sum float64
	for _, a := range answers {
		sum += a.Score
	}
	return sum
}

// ApplyManual records a teacher's score on an answer.
func ApplyManual(a model.SubmissionAnswer, q model.Question, score float64, feedback string) (model.SubmissionAnswer, error) {
	if score < 0 || score > float64(q.Points) {
		return a, fmt.Errorf("score %.2f outside 0..%d: %w", score, q.Points, model.ErrInvalid)
	}
	a.Score = score
	a.Graded = true
	a.IsCorrect = score == float64(q.Points)
	a.TeacherFeedback = feedback
	return a, nil
}

// Percentage returns score as a percentage of maxScore, or 0 when maxScore is 0.
func Percentage(score float64, maxScore int) float64 {
	if maxScore <= 0 {
		return 0
	}
	return score / float64(maxScore) * 100
}

// MaxScore sums the points of the given questions.
func MaxScore(questions []model.Question) int {
	n := 0
	for _, q := range questions {
		n += q.Points
	}
	return n
}

// Summarize builds the result of a submission. questions are in exam order;
// answers may be missing for questions the learner has not answered yet.
// Answer keys are only revealed once the submission is completed.
func Summarize(sub model.ExamSubmission, questions []model.Question, answers []model.SubmissionAnswer, passPercentage float64) model.SubmissionResult {
	byQuestion := make(map[int64]model.SubmissionAnswer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	final := sub.Status == model.StatusCompleted
	res := model.SubmissionResult{
		SubmissionID:    sub.ID,
		ExamID:          sub.ExamID,
		Status:          sub.Status,
		MaxScore:        MaxScore(questions),
		PassPercentage:  passPercentage,
		Final:           final,
		TotalQuestions:  len(questions),
		GeneralFeedback: sub.TeacherGeneralFeedback,
		Answers:         make([]model.AnswerResult, 0, len(questions)),
	}

	for _, q := range questions {
		a, answered := byQuestion[q.ID]
		row := model.AnswerResult{
			QuestionID:  q.ID,
			Type:        q.Type,
			ContentText: q.ContentText,
			Answer:      a.Answer,
			IsCorrect:   a.IsCorrect,
			Graded:      a.Graded,
			Score:       a.Score,
			MaxScore:    q.Points,
			Feedback:    a.TeacherFeedback,
		}
		if final {
			row.CorrectAnswer = q.CorrectAnswer
			row.Explanation = q.Explanation
		}
		res.Score += a.Score
		switch {
		case a.IsCorrect:
			res.CorrectAnswers++
		case answered && !a.Graded && sub.Status != model.StatusInProgress:
			res.PendingAnswers++
		}
		res.Answers = append(res.Answers, row)
	}
	// Pending answers are not correct yet, so they count on the wrong side.
	res.WrongAnswers = res.TotalQuestions - res.CorrectAnswers

	res.Percentage = Percentage(res.Score, res.MaxScore)
	res.Passed = res.Percentage >= passPercentage
	return res
}
