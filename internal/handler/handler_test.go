package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/coursehub/internal/auth"
	appI18n "github.com/pavelanni/coursehub/internal/i18n"
	"github.com/pavelanni/coursehub/internal/model"
	"github.com/pavelanni/coursehub/internal/store"
)

const testPassword = "password123"

type testServer struct {
	h      *Handler
	router http.Handler
}

func newTestServer(t *testing.T, essay EssayGrader) *testServer {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n init: %v", err)
	}
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	tokens, err := auth.NewIssuer("test-secret-0123456789")
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	h := New(s, tokens, essay, model.ServerConfig{
		PassPercentage: 60,
		TokenTTL:       time.Hour,
		Lang:           "en",
	})
	t.Cleanup(func() {
		h.Wait()
		s.Close()
	})

	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	r.Route("/api", h.Routes)
	return &testServer{h: h, router: r}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

// expect fails the test unless rec has the wanted status.
func expect(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

// userToken creates a user with the given role and logs them in.
func (ts *testServer) userToken(t *testing.T, username string, role model.UserRole) string {
	t.Helper()
	if _, err := ts.h.createUser(username, "", testPassword, role); err != nil {
		t.Fatalf("createUser %s: %v", username, err)
	}
	rec := ts.do(t, "POST", "/api/auth/login", "", loginRequest{Username: username, Password: testPassword})
	expect(t, rec, http.StatusOK)
	return decodeBody[loginResponse](t, rec).Token
}

func (ts *testServer) createQuestion(t *testing.T, token string, req questionRequest) int64 {
	t.Helper()
	rec := ts.do(t, "POST", "/api/questions", token, req)
	expect(t, rec, http.StatusCreated)
	return decodeBody[model.Question](t, rec).ID
}

func mcRequest(key string) questionRequest {
	return questionRequest{
		Skill:         model.SkillGrammar,
		Type:          model.QuestionMultipleChoice,
		Level:         model.LevelA2,
		ContentText:   "Pick the right form.",
		Options:       []string{"go", "goes", "going", "gone"},
		CorrectAnswer: key,
		Points:        1,
	}
}

// publishExam creates an exam as teacher and takes it through review to
// published.
func (ts *testServer) publishExam(t *testing.T, teacher, admin string, req examRequest) int64 {
	t.Helper()
	rec := ts.do(t, "POST", "/api/exams", teacher, req)
	expect(t, rec, http.StatusCreated)
	id := decodeBody[examResponse](t, rec).ID
	base := fmt.Sprintf("/api/exams/%d", id)

	expect(t, ts.do(t, "POST", base+"/review", teacher, nil), http.StatusOK)
	expect(t, ts.do(t, "POST", base+"/approve", admin, nil), http.StatusOK)
	expect(t, ts.do(t, "PUT", base+"/status", teacher, examStatusRequest{Status: model.ExamPublished}), http.StatusOK)
	return id
}

func TestRequireAuth(t *testing.T) {
	ts := newTestServer(t, nil)
	learner := ts.userToken(t, "learner", model.UserRoleLearner)
	admin := ts.userToken(t, "admin", model.UserRoleAdmin)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"valid", learner, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, "GET", "/api/auth/me", tt.token, nil)
			expect(t, rec, tt.want)
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate header")
			}
		})
	}

	me := decodeBody[model.User](t, ts.do(t, "GET", "/api/auth/me", learner, nil))
	if me.Username != "learner" || me.Role != model.UserRoleLearner {
		t.Errorf("me = %+v", me)
	}

	// Deactivated users are locked out immediately.
	expect(t, ts.do(t, "PUT", fmt.Sprintf("/api/admin/users/%d/active", me.ID), admin, nil), http.StatusOK)
	expect(t, ts.do(t, "GET", "/api/auth/me", learner, nil), http.StatusUnauthorized)

	// Logout revokes the token even though its signature is still valid.
	expect(t, ts.do(t, "POST", "/api/auth/logout", admin, nil), http.StatusNoContent)
	expect(t, ts.do(t, "GET", "/api/auth/me", admin, nil), http.StatusUnauthorized)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.userToken(t, "alice", model.UserRoleTeacher)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"wrong password", loginRequest{Username: "alice", Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", loginRequest{Username: "bob", Password: testPassword}, http.StatusUnauthorized},
		{"missing password", map[string]string{"username": "alice"}, http.StatusBadRequest},
		{"ok", loginRequest{Username: "alice", Password: testPassword}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expect(t, ts.do(t, "POST", "/api/auth/login", "", tt.body), tt.want)
		})
	}
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, "POST", "/api/auth/register", "", registerRequest{Username: "minh", Password: "longenough"})
	expect(t, rec, http.StatusCreated)
	u := decodeBody[model.User](t, rec)
	if u.Role != model.UserRoleLearner || u.DisplayName != "minh" {
		t.Errorf("registered user = %+v", u)
	}

	expect(t, ts.do(t, "POST", "/api/auth/register", "", registerRequest{Username: "minh", Password: "longenough"}), http.StatusConflict)
	expect(t, ts.do(t, "POST", "/api/auth/register", "", registerRequest{Username: "lan", Password: "short"}), http.StatusBadRequest)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	ts := newTestServer(t, nil)
	teacher := ts.userToken(t, "teacher", model.UserRoleTeacher)
	admin := ts.userToken(t, "admin", model.UserRoleAdmin)

	expect(t, ts.do(t, "GET", "/api/admin/users", teacher, nil), http.StatusForbidden)

	rec := ts.do(t, "POST", "/api/admin/users", admin, createUserRequest{
		Username: "newteacher", Password: testPassword, Role: model.UserRoleTeacher,
	})
	expect(t, rec, http.StatusCreated)

	users := decodeBody[[]model.User](t, ts.do(t, "GET", "/api/admin/users", admin, nil))
	if len(users) != 3 {
		t.Errorf("got %d users, want 3", len(users))
	}
	expect(t, ts.do(t, "POST", "/api/admin/users", admin, createUserRequest{
		Username: "root", Password: testPassword, Role: "superuser",
	}), http.StatusBadRequest)
}
