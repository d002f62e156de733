package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-survey/internal/rbac"
	"github.com/mind-engage/mindengage-survey/internal/service"
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

type users map[int64]survey.User

func (u users) GetUser(_ context.Context, id int64) (survey.User, error) {
	if x, ok := u[id]; ok {
		return x, nil
	}
	return survey.User{}, survey.NotFoundf("user %d", id)
}

func (u users) Authenticate(_ context.Context, username, password string, allowStudents bool) (survey.User, error) {
	for _, x := range u {
		if x.Username == username && password == "pw-"+username {
			if x.Role == survey.RoleStudent && !allowStudents {
				break
			}
			return x, nil
		}
	}
	return survey.User{}, service.ErrInvalidCredentials
}

var directory = users{
	1:  {ID: 1, Username: "root", Role: survey.RoleAdmin, Active: true},
	2:  {ID: 2, Username: "mia", Role: survey.RoleMentor, Active: true},
	3:  {ID: 3, Username: "gone", Role: survey.RoleMentor, Active: false},
	42: {ID: 42, Username: "sam", Role: survey.RoleStudent, Active: true},
}

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	tok, exp, err := a.IssueJWT(directory[2])
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiry %v is in the past", exp)
	}
	c, err := a.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Subject != "2" || c.Role != "mentor" || c.ID == "" {
		t.Fatalf("claims = %+v", c)
	}

	if _, err := NewAuthService("other", time.Hour).Parse(tok); err == nil {
		t.Fatalf("token verified with the wrong key")
	}
	expired := NewAuthService("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, _ := expired.IssueJWT(directory[2])
	if _, err := a.Parse(old); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func protected(a *AuthService, fallback bool) http.Handler {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": actor.ID, "role": actor.Role})
	})
	return JWTMiddleware(a)(AttachRoleFromDB(directory, fallback, zap.NewNop())(h))
}

func call(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareChain(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	h := protected(a, false)

	if rec := call(h, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d", rec.Code)
	}
	if rec := call(h, "garbage"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d", rec.Code)
	}

	// the stored role wins over the claim
	forged, _, _ := a.IssueJWT(survey.User{ID: 42, Role: survey.RoleAdmin})
	rec := call(h, forged)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"role":"student"`) {
		t.Fatalf("forged claim = %d %s", rec.Code, rec.Body)
	}

	inactive, _, _ := a.IssueJWT(directory[3])
	if rec := call(h, inactive); rec.Code != http.StatusForbidden {
		t.Fatalf("inactive = %d", rec.Code)
	}

	unknown, _, _ := a.IssueJWT(survey.User{ID: 999, Role: survey.RoleMentor})
	if rec := call(h, unknown); rec.Code != http.StatusForbidden {
		t.Fatalf("unknown without fallback = %d", rec.Code)
	}
	if rec := call(protected(a, true), unknown); rec.Code != http.StatusOK {
		t.Fatalf("unknown with fallback = %d", rec.Code)
	}
}

func login(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginHandler(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	h := LoginHandler(a, directory, false, zap.NewNop())

	rec := login(h, `{"username":"mia","password":"pw-mia"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d %s", rec.Code, rec.Body)
	}
	var out struct {
		AccessToken string      `json:"access_token"`
		User        survey.User `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	c, err := a.Parse(out.AccessToken)
	if err != nil || c.Subject != "2" || out.User.Role != survey.RoleMentor {
		t.Fatalf("token claims = %+v, %v", c, err)
	}

	if rec := login(h, `{"username":"mia","password":"nope"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password = %d", rec.Code)
	}
	if rec := login(h, `{"username":"sam","password":"pw-sam"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("student without flag = %d", rec.Code)
	}
	if rec := login(LoginHandler(a, directory, true, zap.NewNop()), `{"username":"sam","password":"pw-sam"}`); rec.Code != http.StatusOK {
		t.Fatalf("student with flag = %d", rec.Code)
	}
	if rec := login(h, `{`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json = %d", rec.Code)
	}
}

func TestActorFromContextNeedsRole(t *testing.T) {
	ctx := WithSubject(context.Background(), 7)
	if _, ok := ActorFromContext(ctx); ok {
		t.Fatalf("actor without role")
	}
	a, ok := ActorFromContext(rbac.WithRole(ctx, "mentor"))
	if !ok || a.ID != 7 || a.Role != survey.RoleMentor {
		t.Fatalf("actor = %+v, %v", a, ok)
	}
}
