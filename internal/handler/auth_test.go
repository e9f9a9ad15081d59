package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avetisov/examcore/internal/grading"
	appI18n "github.com/avetisov/examcore/internal/i18n"
	"github.com/avetisov/examcore/internal/store"
	"github.com/avetisov/examcore/internal/upload"
)

func TestMain(m *testing.M) {
	if err := appI18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type nopEncoder struct{}

func (nopEncoder) Encode(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	uploadsDir := t.TempDir()
	uploads, err := upload.NewStorage(uploadsDir)
	if err != nil {
		t.Fatalf("upload.NewStorage: %v", err)
	}

	h := New(s, grading.New(s, nopEncoder{}), uploads, Config{
		JWTSecret: []byte("test-secret"),
		TokenTTL:  time.Hour,
	})
	r := chi.NewRouter()
	h.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, uploadsDir
}

func postJSON(t *testing.T, url string, body any, token string) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getWithToken(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func signup(t *testing.T, srv *httptest.Server, username, password, role string) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/auth/signup", map[string]string{
		"username": username,
		"password": password,
		"role":     role,
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signup status = %d, want 200", resp.StatusCode)
	}
	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if tok.AccessToken == "" {
		t.Fatal("signup returned empty token")
	}
	return tok.AccessToken
}

func TestSignupAndLogin(t *testing.T) {
	srv, _ := newTestServer(t)

	signup(t, srv, "student1", "password123", "")

	t.Run("duplicate username rejected", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/auth/signup", map[string]string{
			"username": "student1", "password": "password123",
		}, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("short password rejected", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/auth/signup", map[string]string{
			"username": "student2", "password": "short",
		}, "")
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", resp.StatusCode)
		}
	})

	t.Run("login with correct password", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/auth/login", map[string]string{
			"username": "student1", "password": "password123",
		}, "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("login with wrong password", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/auth/login", map[string]string{
			"username": "student1", "password": "wrong-password",
		}, "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("login with unknown user", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/auth/login", map[string]string{
			"username": "nobody", "password": "password123",
		}, "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})
}

func TestTokenGatesRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	studentToken := signup(t, srv, "student1", "password123", "")
	adminToken := signup(t, srv, "admin1", "password123", "admin")

	t.Run("no token", func(t *testing.T) {
		resp := getWithToken(t, srv.URL+"/questions", "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := getWithToken(t, srv.URL+"/questions", "not-a-jwt")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("student token reaches student routes", func(t *testing.T) {
		resp := getWithToken(t, srv.URL+"/questions", studentToken)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("student token blocked from admin routes", func(t *testing.T) {
		resp := getWithToken(t, srv.URL+"/admin/results", studentToken)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("admin token reaches admin routes", func(t *testing.T) {
		resp := getWithToken(t, srv.URL+"/admin/results", adminToken)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})
}

func TestSubmitEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signup(t, srv, "student1", "password123", "")

	t.Run("empty batch rejected", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/submit", map[string]any{"answers": []any{}}, token)
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", resp.StatusCode)
		}
	})

	t.Run("unknown question returns 404", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/submit", map[string]any{
			"answers": []map[string]any{{"question_id": 9999, "response": "x"}},
		}, token)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestSubmitMCQNegativeIndexIsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	adminToken := signup(t, srv, "admin1", "password123", "admin")
	studentToken := signup(t, srv, "student1", "password123", "")

	resp := postJSON(t, srv.URL+"/admin/mcq/questions", map[string]any{
		"title": "q", "prompt": "p", "options": []string{"a", "b"},
		"correct_index": 0, "marks": 1.0,
	}, adminToken)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create mcq status = %d, want 201", resp.StatusCode)
	}
	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created question: %v", err)
	}

	resp = postJSON(t, srv.URL+"/submit/mcq", map[string]any{
		"answers": []map[string]any{{"question_id": created.ID, "selected_index": -1}},
	}, studentToken)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative index status = %d, want 400", resp.StatusCode)
	}
}

func postArtifact(t *testing.T, url, token string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("artifact", "report.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("artifact body")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSubmitLabArtifacts(t *testing.T) {
	srv, uploadsDir := newTestServer(t)
	adminToken := signup(t, srv, "admin1", "password123", "admin")
	studentToken := signup(t, srv, "student1", "password123", "")

	resp := postJSON(t, srv.URL+"/admin/labs", map[string]any{
		"title": "format a document", "instructions": "do the thing", "marks": 5.0,
	}, adminToken)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create lab status = %d, want 201", resp.StatusCode)
	}
	var task struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		t.Fatalf("decode created task: %v", err)
	}

	t.Run("unknown task leaves no artifact behind", func(t *testing.T) {
		resp := postArtifact(t, srv.URL+"/labs/9999/submit", studentToken)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
		entries, err := os.ReadDir(uploadsDir)
		if err != nil {
			t.Fatalf("read uploads dir: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("uploads dir has %d files, want 0", len(entries))
		}
	})

	t.Run("valid task stores the artifact", func(t *testing.T) {
		resp := postArtifact(t, fmt.Sprintf("%s/labs/%d/submit", srv.URL, task.ID), studentToken)
		if resp.StatusCode != http.StatusCreated {
			t.Errorf("status = %d, want 201", resp.StatusCode)
		}
		entries, err := os.ReadDir(uploadsDir)
		if err != nil {
			t.Fatalf("read uploads dir: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("uploads dir has %d files, want 1", len(entries))
		}
	})
}
