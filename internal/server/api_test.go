package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vesaa/lansite/internal/models"
)

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := doJSON(t, h, "", http.MethodPost, "/api/login", map[string]string{"username": "admin", "password": "s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login response %q: %v", rec.Body.String(), err)
	}
	return resp.Token
}

func doJSON(t *testing.T, h http.Handler, token, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLogin(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"valid", map[string]string{"username": "admin", "password": "s3cret"}, http.StatusOK},
		{"wrong password", map[string]string{"username": "admin", "password": "nope"}, http.StatusUnauthorized},
		{"wrong user", map[string]string{"username": "root", "password": "s3cret"}, http.StatusUnauthorized},
		{"missing fields", map[string]string{"username": "admin"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, "", http.MethodPost, "/api/login", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestBcryptHashedPassword(t *testing.T) {
	plain, err := NewAuth("k", "admin", "pw")
	if err != nil {
		t.Fatal(err)
	}
	hashed, err := NewAuth("k", "admin", string(plain.passHash))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := hashed.Login("admin", "pw"); err != nil {
		t.Errorf("login with pre-hashed password: %v", err)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	for _, target := range []string{"/api/sites", "/api/history"} {
		if rec := doJSON(t, h, "", http.MethodGet, target, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without token = %d", target, rec.Code)
		}
		if rec := doJSON(t, h, "garbage", http.MethodGet, target, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s with bad token = %d", target, rec.Code)
		}
	}

	other, _ := NewAuth("another-secret", "admin", "s3cret")
	forged, _ := other.GenerateJWT("admin")
	if rec := doJSON(t, h, forged, http.MethodGet, "/api/sites", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("token signed with another key = %d", rec.Code)
	}

	expired := *srv.auth
	expired.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	old, _ := expired.GenerateJWT("admin")
	if rec := doJSON(t, h, old, http.MethodGet, "/api/sites", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("expired token = %d", rec.Code)
	}

	if rec := doJSON(t, h, "", http.MethodGet, "/api/health", nil); rec.Code != http.StatusOK {
		t.Errorf("health = %d", rec.Code)
	}
}

func TestSiteLifecycleAPI(t *testing.T) {
	srv, reg, _ := newTestServer(t)
	h := srv.Handler()
	token := login(t, h)

	create := map[string]any{"name": "Home", "link": "home", "content": "<h1>Hi</h1>"}
	rec := doJSON(t, h, token, http.MethodPost, "/api/sites", create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "/sites/home.html") {
		t.Errorf("create response lacks url: %s", rec.Body.String())
	}

	dup := map[string]any{"name": "Other", "link": "home", "content": "x"}
	if rec := doJSON(t, h, token, http.MethodPost, "/api/sites", dup); rec.Code != http.StatusConflict {
		t.Errorf("duplicate link = %d", rec.Code)
	}
	bad := map[string]any{"name": "Bad", "link": "has space", "content": "x"}
	if rec := doJSON(t, h, token, http.MethodPost, "/api/sites", bad); rec.Code != http.StatusBadRequest {
		t.Errorf("bad link = %d", rec.Code)
	}
	if reg.Len() != 1 {
		t.Errorf("registry Len = %d, want 1", reg.Len())
	}

	rec = doJSON(t, h, token, http.MethodGet, "/api/sites/Home", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d", rec.Code)
	}
	var got struct {
		Data siteView `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Data.Content != "<h1>Hi</h1>" || got.Data.Link != "home" {
		t.Errorf("get = %+v", got.Data)
	}

	rec = doJSON(t, h, token, http.MethodGet, "/api/sites", nil)
	var list struct {
		Data []siteView `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Data) != 1 || list.Data[0].Name != "Home" {
		t.Errorf("list = %+v", list.Data)
	}

	rec = doJSON(t, h, token, http.MethodGet, "/api/sites/Home/qr?size=128", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("qr = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec := doJSON(t, h, token, http.MethodGet, "/api/sites/Home/qr?size=5", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("qr bad size = %d", rec.Code)
	}

	if rec := doJSON(t, h, token, http.MethodDelete, "/api/sites/Home", nil); rec.Code != http.StatusOK {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := doJSON(t, h, token, http.MethodDelete, "/api/sites/Home", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", rec.Code)
	}
	if rec := doJSON(t, h, token, http.MethodGet, "/api/sites/Home", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}
	if rec := get(t, h, http.MethodGet, "/sites/home.html"); rec.Code != http.StatusNotFound {
		t.Errorf("static after delete = %d", rec.Code)
	}
}

func TestCreateMarkdownAPI(t *testing.T) {
	srv, reg, _ := newTestServer(t)
	h := srv.Handler()
	token := login(t, h)

	body := map[string]any{"name": "Notes", "link": "notes", "content": "# Title", "markdown": true}
	if rec := doJSON(t, h, token, http.MethodPost, "/api/sites", body); rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	site, err := reg.Get("Notes")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(site.Content, `<h1 id="title">Title</h1>`) {
		t.Errorf("stored content = %q", site.Content)
	}
	rec := get(t, h, http.MethodGet, "/sites/notes.html")
	if rec.Body.String() != site.Content {
		t.Error("served file differs from stored content")
	}
}

func TestPreviewAPI(t *testing.T) {
	srv, reg, _ := newTestServer(t)
	h := srv.Handler()
	token := login(t, h)

	rec := doJSON(t, h, token, http.MethodPost, "/api/preview", map[string]any{"content": "<p>draft</p>"})
	if rec.Code != http.StatusOK {
		t.Fatalf("preview = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "/temp_preview.html") {
		t.Errorf("preview url missing: %s", rec.Body.String())
	}
	if got := get(t, h, http.MethodGet, "/temp_preview.html"); got.Body.String() != "<p>draft</p>" {
		t.Errorf("preview file = %q", got.Body.String())
	}
	if reg.Len() != 0 {
		t.Error("preview registered a site")
	}

	if rec := doJSON(t, h, token, http.MethodPost, "/api/preview", map[string]any{"content": "   "}); rec.Code != http.StatusBadRequest {
		t.Errorf("blank preview = %d", rec.Code)
	}
}

func TestHistoryWithoutStore(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()
	token := login(t, h)
	rec := doJSON(t, h, token, http.MethodGet, "/api/history", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"data":[]}` {
		t.Errorf("history = %d %s", rec.Code, rec.Body.String())
	}
}

func TestEventsWebsocket(t *testing.T) {
	srv, reg, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.hub.Close()

	token, err := srv.auth.GenerateJWT("admin")
	if err != nil {
		t.Fatal(err)
	}
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := reg.Create("Home", "home", "x"); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var change models.Change
	if err := json.Unmarshal(msg, &change); err != nil {
		t.Fatal(err)
	}
	if change.Kind != models.ChangeCreated || change.Link != "home" {
		t.Errorf("change = %+v", change)
	}

	if _, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/events", nil); err == nil {
		t.Error("expected unauthenticated dial to fail")
	}
}
