package panel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

type fakePanel struct {
	mu         sync.Mutex
	tokens     []string
	authCalls  int32
	users      map[string]map[string]interface{}
	handlers   map[string]http.HandlerFunc
	validToken string
}

func newFakePanel() *fakePanel {
	return &fakePanel{
		users:    make(map[string]map[string]interface{}),
		handlers: make(map[string]http.HandlerFunc),
	}
}

func (f *fakePanel) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/admin/token", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&f.authCalls, 1)
		f.mu.Lock()
		f.validToken = "token-" + string(rune('0'+n))
		f.tokens = append(f.tokens, f.validToken)
		token := f.validToken
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"access_token": token})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if h, ok := f.handlers[r.Method+" "+r.URL.Path]; ok {
			h(w, r)
			return
		}
		http.NotFound(w, r)
	})
	return httptest.NewServer(mux)
}

func (f *fakePanel) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return r.Header.Get("Authorization") == "Bearer "+f.validToken
}

func TestAuthenticateCachesToken(t *testing.T) {
	fake := newFakePanel()
	srv := fake.server(t)
	defer srv.Close()

	fake.handlers["GET /api/user/alice"] = func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"username": "alice", "status": "active"})
	}

	c := NewMarzbanClient(srv.URL, "admin", "secret", false, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.GetUser(ctx, "alice"); err != nil {
			t.Fatalf("GetUser #%d: %v", i, err)
		}
	}

	if n := atomic.LoadInt32(&fake.authCalls); n != 1 {
		t.Errorf("authenticated %d times, want 1", n)
	}
}

func TestUnauthorizedTriggersSingleRefresh(t *testing.T) {
	fake := newFakePanel()
	srv := fake.server(t)
	defer srv.Close()

	var calls int32
	fake.handlers["GET /api/user/bob"] = func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// First call sees a token the panel no longer accepts.
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"username": "bob", "status": "active"})
	}

	c := NewMarzbanClient(srv.URL, "admin", "secret", false, nil)
	user, err := c.GetUser(context.Background(), "bob")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.Username != "bob" {
		t.Errorf("username = %q, want bob", user.Username)
	}
	if n := atomic.LoadInt32(&fake.authCalls); n != 2 {
		t.Errorf("authenticated %d times, want 2 (initial + refresh)", n)
	}
}

func TestSecondUnauthorizedIsAuthError(t *testing.T) {
	fake := newFakePanel()
	srv := fake.server(t)
	defer srv.Close()

	fake.handlers["GET /api/user/carol"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}

	c := NewMarzbanClient(srv.URL, "admin", "secret", false, nil)
	_, err := c.GetUser(context.Background(), "carol")

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want *AuthError", err)
	}
}

func TestTransientStatusRetriedThenSucceeds(t *testing.T) {
	fake := newFakePanel()
	srv := fake.server(t)
	defer srv.Close()

	var calls int32
	fake.handlers["GET /api/user/dave"] = func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"username": "dave", "status": "active"})
	}

	c := NewMarzbanClient(srv.URL, "admin", "secret", false, nil)
	user, err := c.GetUser(context.Background(), "dave")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.Username != "dave" {
		t.Errorf("username = %q, want dave", user.Username)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("panel saw %d calls, want 3", n)
	}
}

func TestTransientExhaustionSurfacesTransientError(t *testing.T) {
	fake := newFakePanel()
	srv := fake.server(t)
	defer srv.Close()

	fake.handlers["GET /api/user/erin"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}

	c := NewMarzbanClient(srv.URL, "admin", "secret", false, nil)
	_, err := c.GetUser(context.Background(), "erin")

	var transient *TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("err = %v, want *TransientError", err)
	}
	if transient.Attempts != maxAttempts {
		t.Errorf("attempts = %d, want %d", transient.Attempts, maxAttempts)
	}
}

func TestUnexpectedStatusIsPanelError(t *testing.T) {
	fake := newFakePanel()
	srv := fake.server(t)
	defer srv.Close()

	fake.handlers["PUT /api/user/frank"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"validation error"}`))
	}

	c := NewMarzbanClient(srv.URL, "admin", "secret", false, nil)
	limit := int64(1 << 30)
	_, err := c.ModifyUser(context.Background(), "frank", ModifyUserRequest{DataLimit: &limit})

	var panelErr *PanelError
	if !errors.As(err, &panelErr) {
		t.Fatalf("err = %v, want *PanelError", err)
	}
	if panelErr.Status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", panelErr.Status)
	}
	// 4xx other than 401 must fail without retries
	if n := atomic.LoadInt32(&fake.authCalls); n != 1 {
		t.Errorf("authenticated %d times, want 1", n)
	}
}

func TestGetUserNotFound(t *testing.T) {
	fake := newFakePanel()
	srv := fake.server(t)
	defer srv.Close()

	c := NewMarzbanClient(srv.URL, "admin", "secret", false, nil)
	_, err := c.GetUser(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateUserConflict(t *testing.T) {
	fake := newFakePanel()
	srv := fake.server(t)
	defer srv.Close()

	fake.handlers["POST /api/user"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"detail":"User already exists"}`))
	}

	c := NewMarzbanClient(srv.URL, "admin", "secret", false, nil)
	_, err := c.CreateUser(context.Background(), CreateUserRequest{Username: "dup"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestReplayAfterRefreshCarriesFreshToken(t *testing.T) {
	fake := newFakePanel()
	srv := fake.server(t)
	defer srv.Close()

	var calls int32
	fake.handlers["GET /api/user/henry"] = func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		// The replay must present the rotated token, not the stale one.
		if !fake.authorized(r) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"username": "henry", "status": "active"})
	}

	c := NewMarzbanClient(srv.URL, "admin", "secret", false, nil)
	user, err := c.GetUser(context.Background(), "henry")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.Username != "henry" {
		t.Errorf("username = %q, want henry", user.Username)
	}
	if n := atomic.LoadInt32(&fake.authCalls); n != 2 {
		t.Errorf("authenticated %d times, want 2", n)
	}
}

func TestGetSystemStats(t *testing.T) {
	fake := newFakePanel()
	srv := fake.server(t)
	defer srv.Close()

	fake.handlers["GET /api/system"] = func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"version":      "0.8.4",
			"total_user":   42,
			"users_active": 17,
			"mem_total":    8 << 30,
			"mem_used":     2 << 30,
		})
	}

	c := NewMarzbanClient(srv.URL, "admin", "secret", false, nil)
	stats, err := c.GetSystemStats(context.Background())
	if err != nil {
		t.Fatalf("GetSystemStats: %v", err)
	}
	if stats.Version != "0.8.4" {
		t.Errorf("version = %q, want 0.8.4", stats.Version)
	}
	if stats.TotalUsers != 42 || stats.ActiveUsers != 17 {
		t.Errorf("users = %d/%d, want 42/17", stats.TotalUsers, stats.ActiveUsers)
	}
}

func TestConcurrentCallersShareOneLogin(t *testing.T) {
	fake := newFakePanel()
	srv := fake.server(t)
	defer srv.Close()

	fake.handlers["GET /api/user/grace"] = func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"username": "grace", "status": "active"})
	}

	c := NewMarzbanClient(srv.URL, "admin", "secret", false, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetUser(context.Background(), "grace"); err != nil {
				t.Errorf("GetUser: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&fake.authCalls); n != 1 {
		t.Errorf("authenticated %d times under concurrency, want 1", n)
	}
}
