package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linguaprep/assessment-engine/internal/rbac"
)

func TestJWTMiddleware_AttachesSubjectAndRole(t *testing.T) {
	svc := NewAuthService("test-secret")
	tok, err := svc.IssueJWT("user-7", "student")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	var gotSub, gotRole string
	h := JWTMiddleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = SubjectFromContext(r.Context())
		gotRole = rbac.RoleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if gotSub != "user-7" {
		t.Errorf("subject = %q, want user-7", gotSub)
	}
	if gotRole != "student" {
		t.Errorf("role = %q, want student", gotRole)
	}
}

func TestJWTMiddleware_RejectsMissingBearer(t *testing.T) {
	h := JWTMiddleware(NewAuthService("test-secret"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without a token")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestSubjectFromContext_EmptyWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := SubjectFromContext(req.Context()); got != "" {
		t.Errorf("subject = %q, want empty", got)
	}
}
