package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/campustrack/authcore"
	"github.com/campustrack/authcore/directory"
)

type testServer struct {
	app *fiber.App
	dir *directory.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	dir := directory.NewMemory()

	cfg := authcore.Config{}
	cfg.Token.Secret = []byte("httpapi-test-secret")
	cfg.Challenge.EchoCode = true
	cfg.Audit.Enabled = false

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithDirectory(dir).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testServer{
		app: NewApp(NewModule(engine, dir)),
		dir: dir,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, decoded
}

// requestCode walks the first half of a flow and returns the echoed OTP.
func (s *testServer) requestCode(t *testing.T, path, contact string) string {
	t.Helper()

	status, body := s.do(t, http.MethodPost, path, fiber.Map{"contact": contact}, nil)
	if status != http.StatusOK {
		t.Fatalf("challenge request: status %d body %v", status, body)
	}
	code, _ := body["code"].(string)
	if len(code) != 6 {
		t.Fatalf("expected 6-digit echoed code, got %q", code)
	}
	return code
}

func TestLoginUnknownContact(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/auth/login", fiber.Map{"contact": "ghost@campus.edu"}, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if body["code"] != "NO_ACCOUNT" {
		t.Fatalf("expected NO_ACCOUNT, got %v", body["code"])
	}
}

func TestSignupRouteLoginActionUnknownContact(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/auth/signup", fiber.Map{
		"contact": "ghost@campus.edu",
		"action":  "login",
	}, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if body["code"] != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", body["code"])
	}
}

func TestSignupIssuesChallenge(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/auth/signup", fiber.Map{"contact": "asha@campus.edu"}, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d body %v", status, body)
	}
	if body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}
	if body["message"] != "OTP sent for signup" {
		t.Fatalf("unexpected message %v", body["message"])
	}
	code, _ := body["code"].(string)
	if len(code) != 6 {
		t.Fatalf("expected 6-digit echoed code, got %q", code)
	}
}

func TestSignupExistingAccountConflicts(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.dir.Create(context.Background(), "asha@campus.edu"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	status, body := s.do(t, http.MethodPost, "/api/auth/signup", fiber.Map{"contact": "asha@campus.edu"}, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	if body["code"] != "ACCOUNT_EXISTS" {
		t.Fatalf("expected ACCOUNT_EXISTS, got %v", body["code"])
	}
}

func TestSignupThrottled(t *testing.T) {
	s := newTestServer(t)
	s.requestCode(t, "/api/auth/signup", "asha@campus.edu")

	status, body := s.do(t, http.MethodPost, "/api/auth/signup", fiber.Map{"contact": "asha@campus.edu"}, nil)
	if status != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d body %v", status, body)
	}
	if body["code"] != "TOO_MANY_REQUESTS" {
		t.Fatalf("expected TOO_MANY_REQUESTS, got %v", body["code"])
	}
}

func TestSignupWrongOTP(t *testing.T) {
	s := newTestServer(t)
	code := s.requestCode(t, "/api/auth/signup", "asha@campus.edu")

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	status, body := s.do(t, http.MethodPost, "/api/auth/signup", fiber.Map{
		"contact": "asha@campus.edu",
		"otp":     wrong,
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if body["code"] != "INVALID_OTP" {
		t.Fatalf("expected INVALID_OTP, got %v", body["code"])
	}
}

func TestFullSignupAndProfileFlow(t *testing.T) {
	s := newTestServer(t)
	s.dir.PutProfile(authcore.Profile{
		ID:           "stu-1",
		FirstName:    "Asha",
		Email:        "asha@campus.edu",
		Branch:       "CSE",
		Semester:     5,
		EnrollmentNo: "EN-1001",
	})

	code := s.requestCode(t, "/api/auth/signup", "asha@campus.edu")

	status, body := s.do(t, http.MethodPost, "/api/auth/signup", fiber.Map{
		"contact": "asha@campus.edu",
		"otp":     code,
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d body %v", status, body)
	}
	if body["message"] != "User registered" {
		t.Fatalf("unexpected message %v", body["message"])
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("expected a session token")
	}
	user, _ := body["user"].(map[string]any)
	if user["email"] != "asha@campus.edu" {
		t.Fatalf("unexpected user payload %v", user)
	}

	status, body = s.do(t, http.MethodGet, "/api/profile", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if status != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d body %v", status, body)
	}
	profile, _ := body["user"].(map[string]any)
	if profile["enrollmentNo"] != "EN-1001" {
		t.Fatalf("expected hydrated student profile, got %v", profile)
	}
}

func TestLoginAfterSignup(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.dir.Create(context.Background(), "asha@campus.edu"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	code := s.requestCode(t, "/api/auth/login", "asha@campus.edu")

	status, body := s.do(t, http.MethodPost, "/api/auth/login", fiber.Map{
		"contact": "asha@campus.edu",
		"otp":     code,
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d body %v", status, body)
	}
	if body["message"] != "Login successful" {
		t.Fatalf("unexpected message %v", body["message"])
	}
	if token, _ := body["token"].(string); token == "" {
		t.Fatal("expected a session token")
	}
}

func TestChallengeSingleUse(t *testing.T) {
	s := newTestServer(t)
	code := s.requestCode(t, "/api/auth/signup", "asha@campus.edu")

	login := fiber.Map{"contact": "asha@campus.edu", "otp": code, "action": "login"}
	if status, body := s.do(t, http.MethodPost, "/api/auth/signup", fiber.Map{
		"contact": "asha@campus.edu",
		"otp":     code,
	}, nil); status != http.StatusOK {
		t.Fatalf("first verification: status %d body %v", status, body)
	}

	status, body := s.do(t, http.MethodPost, "/api/auth/signup", login, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 on replay, got %d body %v", status, body)
	}
	if body["code"] != "INVALID_OTP" {
		t.Fatalf("expected INVALID_OTP on replay, got %v", body["code"])
	}
}

func TestProfileWithoutToken(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/api/profile", nil, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body %v", status, body)
	}
}

func TestProfileWithGarbageToken(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodGet, "/api/profile", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestProfileFallsBackToPrincipalShape(t *testing.T) {
	s := newTestServer(t)

	code := s.requestCode(t, "/api/auth/signup", "fresh@campus.edu")
	status, body := s.do(t, http.MethodPost, "/api/auth/signup", fiber.Map{
		"contact": "fresh@campus.edu",
		"otp":     code,
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("signup: status %d body %v", status, body)
	}
	token, _ := body["token"].(string)

	// No teacher or student record exists yet for this principal.
	status, body = s.do(t, http.MethodGet, "/api/profile", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d body %v", status, body)
	}
	user, _ := body["user"].(map[string]any)
	if user["email"] != "fresh@campus.edu" {
		t.Fatalf("expected principal-shaped profile, got %v", user)
	}
}

func TestLookupRoutes(t *testing.T) {
	s := newTestServer(t)
	s.dir.PutProfile(authcore.Profile{
		ID:        "tch-1",
		FirstName: "Ravi",
		Email:     "ravi@campus.edu",
		TeacherID: "T-77",
	})

	status, body := s.do(t, http.MethodPost, "/api/users/lookup", fiber.Map{"email": "ravi@campus.edu"}, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d body %v", status, body)
	}
	if body["userType"] != "teacher" {
		t.Fatalf("expected teacher, got %v", body["userType"])
	}

	status, body = s.do(t, http.MethodPost, "/api/users/lookup", fiber.Map{"email": "ghost@campus.edu"}, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body %v", status, body)
	}

	status, _ = s.do(t, http.MethodPost, "/api/users/lookup", fiber.Map{}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty lookup, got %d", status)
	}
}

func TestMissingContactRejected(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/auth/signup", "/api/auth/login"} {
		status, body := s.do(t, http.MethodPost, path, fiber.Map{}, nil)
		if status != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d body %v", path, status, body)
		}
		if body["error"] != "Contact is required" {
			t.Fatalf("%s: unexpected error %v", path, body["error"])
		}
	}
}
