package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nzoschke/beatmarket/internal/app"
	"github.com/nzoschke/beatmarket/internal/config"
	"github.com/nzoschke/beatmarket/internal/middleware"
	"github.com/nzoschke/beatmarket/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingNotifier struct {
	mu    sync.Mutex
	links []string
	err   error
}

func (n *capturingNotifier) SendVerificationEmail(_ context.Context, _, verifyURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.links = append(n.links, verifyURL)
	return nil
}

func (n *capturingNotifier) lastToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.links)
	u, err := url.Parse(n.links[len(n.links)-1])
	require.NoError(t, err)
	return u.Query().Get("token")
}

type rejectingCaptcha struct{ err error }

func (c rejectingCaptcha) Verify(context.Context, string, string) error { return c.err }

type testServer struct {
	handler  http.Handler
	notifier *capturingNotifier
	app      *app.App
}

func newTestServer(t *testing.T, opts ...app.Option) *testServer {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		AppName:                "Beatmarket",
		AppEnv:                 "development",
		AppURL:                 "http://localhost:3000",
		DBDriver:               "sqlite",
		DBConnection:           filepath.Join(dir, "test.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		JWTSecret:              "test-secret",
		JWTExpiry:              time.Hour,
		TokenEmailVerifyExpiry: 24 * time.Hour,
		BcryptCost:             4,
		NotifyTimeout:          time.Second,
		CaptchaMode:            config.CaptchaModeDisabled,
		StorageDriver:          config.StorageDriverDisk,
		UploadDir:              filepath.Join(dir, "uploads"),
		MaxUploadSize:          1 << 20,
	}

	notifier := &capturingNotifier{}
	opts = append([]app.Option{app.WithNotifier(notifier)}, opts...)

	a, err := app.New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return &testServer{handler: SetupRoutes(a), notifier: notifier, app: a}
}

func (s *testServer) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

var alice = map[string]string{
	"email":           "alice@example.com",
	"password":        "Secret123",
	"confirmPassword": "Secret123",
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/register", alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.NotEmpty(t, body["message"])
	assert.NotEmpty(t, body["userId"])
	assert.Equal(t, true, body["emailSent"])

	// Login before verification is gated
	rec = s.do(t, http.MethodPost, "/api/login", map[string]string{"email": "alice@example.com", "password": "Secret123"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "email not verified", decode(t, rec)["error"])

	token := s.notifier.lastToken(t)
	rec = s.do(t, http.MethodGet, "/api/verify-email?token="+url.QueryEscape(token), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, rec.Body.String(), "Email verified")

	// Replay
	rec = s.do(t, http.MethodGet, "/api/verify-email?token="+url.QueryEscape(token), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/login", map[string]string{"email": "alice@example.com", "password": "Secret123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode(t, rec)
	session, _ := login["token"].(string)
	require.NotEmpty(t, session)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, session, cookie.Value)
	assert.Equal(t, 3600, cookie.MaxAge)

	// Protected routes with cookie and with bearer
	rec = s.do(t, http.MethodGet, "/api/secret", nil, func(r *http.Request) { r.AddCookie(cookie) })
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome, alice@example.com!", decode(t, rec)["message"])

	rec = s.do(t, http.MethodGet, "/api/me", nil, bearer(session))
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode(t, rec)
	assert.Equal(t, "alice@example.com", me["email"])
	assert.Equal(t, true, me["verified"])
	assert.Nil(t, me["passwordHash"])

	rec = s.do(t, http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out.", decode(t, rec)["message"])
}

func TestLoginFailuresShareOneResponse(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/register", alice)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/verify-email?token="+s.notifier.lastToken(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	wrong := s.do(t, http.MethodPost, "/api/login", map[string]string{"email": "alice@example.com", "password": "WrongPass"})
	unknown := s.do(t, http.MethodPost, "/api/login", map[string]string{"email": "nobody@example.com", "password": "Secret123"})

	assert.Equal(t, http.StatusBadRequest, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
}

func TestRegisterErrors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/register", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/register", map[string]string{"email": "alice@example.com", "password": "a", "confirmPassword": "b"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "passwords do not match", decode(t, rec)["error"])

	rec = s.do(t, http.MethodPost, "/api/register", map[string]string{"email": "", "password": "a", "confirmPassword": "a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email is required", decode(t, rec)["error"])

	rec = s.do(t, http.MethodPost, "/api/register", alice)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/register", alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email already exists", decode(t, rec)["error"])
}

func TestRegisterDegradedWhenEmailFails(t *testing.T) {
	s := newTestServer(t)
	s.notifier.err = errors.New("provider down")

	rec := s.do(t, http.MethodPost, "/api/register", alice)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, false, decode(t, rec)["emailSent"])
}

func TestRegisterCaptcha(t *testing.T) {
	s := newTestServer(t, app.WithCaptcha(rejectingCaptcha{err: service.ErrCaptchaFailed}))
	rec := s.do(t, http.MethodPost, "/api/register", alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s = newTestServer(t, app.WithCaptcha(rejectingCaptcha{err: service.ErrCaptchaUnavailable}))
	rec = s.do(t, http.MethodPost, "/api/register", alice)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVerifyEmailErrors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/verify-email", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/verify-email?token=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid verification token")
}

func TestResendVerification(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/register", alice)
	require.Equal(t, http.StatusCreated, rec.Code)

	known := s.do(t, http.MethodPost, "/api/resend-verification", map[string]string{"email": "alice@example.com"})
	unknown := s.do(t, http.MethodPost, "/api/resend-verification", map[string]string{"email": "nobody@example.com"})

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
	assert.Len(t, s.notifier.links, 2)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/secret", "/api/me", "/api/me/beats"} {
		rec := s.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := s.do(t, http.MethodGet, "/api/secret", nil, bearer("forged"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t)

	var last int
	for range 11 {
		rec := s.do(t, http.MethodPost, "/api/login", map[string]string{"email": "x@example.com", "password": "x"})
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)

	// Other clients are unaffected
	rec := s.do(t, http.MethodPost, "/api/login", map[string]string{"email": "x@example.com", "password": "x"},
		func(r *http.Request) { r.RemoteAddr = "198.51.100.77:1234" })
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func loggedInSession(t *testing.T, s *testServer) string {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/register", alice)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/verify-email?token="+s.notifier.lastToken(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/login", map[string]string{"email": "alice@example.com", "password": "Secret123"})
	require.Equal(t, http.StatusOK, rec.Code)

	token, _ := decode(t, rec)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func uploadRequest(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestBeatsUploadListServe(t *testing.T) {
	s := newTestServer(t)
	session := loggedInSession(t, s)

	mp3 := append([]byte("ID3\x03\x00\x00\x00"), bytes.Repeat([]byte{0xFF}, 256)...)
	body, contentType := uploadRequest(t, map[string]string{"title": "Night Drive", "price": "19.99"}, "night.mp3", mp3)

	req := httptest.NewRequest(http.MethodPost, "/api/beats", body)
	req.Header.Set("Content-Type", contentType)
	bearer(session)(req)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode(t, rec)
	assert.Equal(t, "Night Drive", created["title"])
	assert.Equal(t, "19.99", created["price"])
	assert.Equal(t, "audio/mpeg", created["mimeType"])
	fileURL, _ := created["url"].(string)
	require.True(t, strings.HasPrefix(fileURL, "http://localhost:3000/uploads/beats/"), fileURL)

	rec = s.do(t, http.MethodGet, "/api/beats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, created["id"], list[0]["id"])

	rec = s.do(t, http.MethodGet, "/api/beats/"+created["id"].(string), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/beats/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/me/beats", nil, bearer(session))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = s.do(t, http.MethodGet, strings.TrimPrefix(fileURL, "http://localhost:3000"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mp3, rec.Body.Bytes())
}

func TestBeatsUploadRejects(t *testing.T) {
	s := newTestServer(t)
	session := loggedInSession(t, s)

	post := func(fields map[string]string, filename string, content []byte, auth bool) *httptest.ResponseRecorder {
		body, contentType := uploadRequest(t, fields, filename, content)
		req := httptest.NewRequest(http.MethodPost, "/api/beats", body)
		req.Header.Set("Content-Type", contentType)
		if auth {
			bearer(session)(req)
		}
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec
	}

	mp3 := append([]byte("ID3\x03\x00"), make([]byte, 64)...)

	rec := post(map[string]string{"title": "A", "price": "1"}, "a.mp3", mp3, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(map[string]string{"title": "A", "price": "1"}, "a.txt", []byte("hello"), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(map[string]string{"title": "A", "price": "abc"}, "a.mp3", mp3, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(map[string]string{"title": "A", "price": "1"}, "", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(map[string]string{"title": "A", "price": "1"}, "big.mp3", append(mp3, make([]byte, 3<<20)...), true)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHealthMetricsNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "beatmarket_http_requests_total")

	rec = s.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decode(t, rec)["error"])
}
