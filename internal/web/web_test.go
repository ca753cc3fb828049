package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"cafelist/internal/auth"
	"cafelist/internal/config"
	"cafelist/internal/credential"
	"cafelist/internal/metrics"
	"cafelist/internal/service"
	"cafelist/internal/store"
	"cafelist/internal/throttle"
)

const loginAttempts = 3

type testApp struct {
	server  *httptest.Server
	store   *store.Store
	metrics *metrics.Metrics
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithKey(t, securecookie.GenerateRandomKey(32))
}

// newTestAppWithKey starts an app with its own empty database whose session
// cookies are signed with key.
func newTestAppWithKey(t *testing.T, key []byte) *testApp {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	st, err := store.Open(config.DatabaseConfig{Path: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.InitMetrics(reg)
	cookies := sessions.NewCookieStore(key)
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
	}

	api := NewAPI(Options{
		Service:  service.New(st, credential.NewHasher(bcrypt.MinCost), auth.AdminOnly{AdminID: 1}, logger),
		Sessions: auth.NewManager(cookies, "cafelist_session", st, logger),
		Limiter:  throttle.NewLocalLimiter(loginAttempts, time.Minute),
		Metrics:  m,
		DB:       st,
		Logger:   logger,
	})

	srv := httptest.NewServer(api.Router(reg))
	t.Cleanup(srv.Close)
	return &testApp{server: srv, store: st, metrics: m}
}

func createSession(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (a *testApp) url(path string) string {
	return a.server.URL + path
}

func (a *testApp) register(t *testing.T, client *http.Client, email, password, name string) *http.Response {
	t.Helper()
	data := url.Values{}
	data.Set("email", email)
	data.Set("password", password)
	data.Set("name", name)

	resp, err := client.PostForm(a.url("/register"), data)
	require.NoError(t, err)
	return resp
}

func (a *testApp) login(t *testing.T, client *http.Client, email, password string) *http.Response {
	t.Helper()
	data := url.Values{}
	data.Set("email", email)
	data.Set("password", password)

	resp, err := client.PostForm(a.url("/login"), data)
	require.NoError(t, err)
	return resp
}

func (a *testApp) logout(t *testing.T, client *http.Client) *http.Response {
	t.Helper()
	resp, err := client.Get(a.url("/logout"))
	require.NoError(t, err)
	return resp
}

func cafeForm(name string) url.Values {
	return url.Values{
		"name":           {name},
		"map_url":        {"https://maps.example.com/" + url.PathEscape(name)},
		"img_url":        {"https://img.example.com/cafe.jpg"},
		"location":       {"Copenhagen"},
		"has_sockets":    {"Pretty Yes"},
		"has_toilet":     {"No"},
		"has_wifi":       {"Medium"},
		"can_take_calls": {"No"},
		"seats":          {"24"},
		"coffee_price":   {"38"},
	}
}

func (a *testApp) addCafe(t *testing.T, client *http.Client, name string) *http.Response {
	t.Helper()
	resp, err := client.PostForm(a.url("/cafes"), cafeForm(name))
	require.NoError(t, err)
	return resp
}

func (a *testApp) addComment(t *testing.T, client *http.Client, cafeID, text string) *http.Response {
	t.Helper()
	data := url.Values{}
	data.Set("comment_text", text)

	resp, err := client.PostForm(a.url("/cafes/"+cafeID+"/comments"), data)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func assertContains(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	defer resp.Body.Close()
	bodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(bodyBytes), expected)
}

func assertNotContains(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	defer resp.Body.Close()
	bodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(bodyBytes), expected)
}

// --- TESTS ---
func TestRegister(t *testing.T) {
	app := newTestApp(t)
	client := createSession(t)

	resp := app.register(t, client, "ann@example.com", "default", "Ann")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assertNotContains(t, resp, "default")

	// registering logs the user in
	resp, err := client.Get(app.url("/"))
	require.NoError(t, err)
	assertContains(t, resp, `"authenticated":true`)

	resp = app.register(t, createSession(t), "ann@example.com", "other", "Ann again")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assertContains(t, resp, "You've already signed up with that email, log in instead!")

	resp = app.register(t, createSession(t), "broken", "pw", "Meh")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assertContains(t, resp, "email must be a valid email address")

	resp = app.register(t, createSession(t), "meh@example.com", "", "Meh")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assertContains(t, resp, "password is required")
}

func TestLoginLogout(t *testing.T) {
	app := newTestApp(t)
	app.register(t, createSession(t), "ann@example.com", "default", "Ann").Body.Close()
	client := createSession(t)

	resp := app.login(t, client, "ann@example.com", "default")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assertContains(t, resp, `"email":"ann@example.com"`)

	resp, err := client.Get(app.url("/"))
	require.NoError(t, err)
	assertContains(t, resp, `"user_id":1`)

	resp = app.logout(t, client)
	assertContains(t, resp, "You were logged out")

	resp, err = client.Get(app.url("/"))
	require.NoError(t, err)
	assertContains(t, resp, `"authenticated":false`)

	resp = app.login(t, client, "ann@example.com", "wrongpassword")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assertContains(t, resp, "Password incorrect, please try again.")

	resp = app.login(t, client, "bob@example.com", "wrongpassword")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assertContains(t, resp, "That email does not exist, please try again.")
}

func TestLogout_StaleSession(t *testing.T) {
	key := securecookie.GenerateRandomKey(32)
	issuer := newTestAppWithKey(t, key)
	app := newTestAppWithKey(t, key)
	client := createSession(t)

	resp := issuer.register(t, client, "ann@example.com", "default", "Ann")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// the jar scopes cookies by host, so app receives a session for a user
	// its database has never seen
	resp = app.logout(t, client)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assertContains(t, resp, "You were logged out")

	resp, err := client.Get(app.url("/"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assertContains(t, resp, `"authenticated":false`)

	// any other page rejects the stale session
	resp = issuer.login(t, client, "ann@example.com", "default")
	resp.Body.Close()
	resp, err = client.Get(app.url("/"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assertContains(t, resp, "Your session has expired, please log in again.")
}

func TestLoginThrottled(t *testing.T) {
	app := newTestApp(t)
	app.register(t, createSession(t), "ann@example.com", "default", "Ann").Body.Close()
	client := createSession(t)

	for i := 0; i < loginAttempts; i++ {
		resp := app.login(t, client, "ann@example.com", "guess")
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := app.login(t, client, "ann@example.com", "default")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assertContains(t, resp, "Too many login attempts")
}

func TestCafeLifecycle(t *testing.T) {
	app := newTestApp(t)
	ann := createSession(t)
	app.register(t, ann, "ann@example.com", "default", "Ann").Body.Close()

	resp := app.addCafe(t, ann, "Paludan")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/cafes/1", resp.Header.Get("Location"))
	var created struct {
		ID     uint `json:"id"`
		Author struct {
			Email string `json:"email"`
		} `json:"author"`
	}
	decode(t, resp, &created)
	assert.Equal(t, uint(1), created.ID)
	assert.Equal(t, "ann@example.com", created.Author.Email)

	resp = app.addCafe(t, ann, "Paludan")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assertContains(t, resp, "A cafe with that name already exists.")

	bad := cafeForm("Broken")
	bad.Set("has_wifi", "Superb")
	resp, err := ann.PostForm(app.url("/cafes"), bad)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assertContains(t, resp, "has_wifi must be one of")

	resp, err = http.Get(app.url("/cafes"))
	require.NoError(t, err)
	var list struct {
		Cafes []struct {
			Name string `json:"name"`
		} `json:"cafes"`
	}
	decode(t, resp, &list)
	require.Len(t, list.Cafes, 1)
	assert.Equal(t, "Paludan", list.Cafes[0].Name)

	// a different user edits and takes over authorship
	bob := createSession(t)
	app.register(t, bob, "bob@example.com", "default", "Bob").Body.Close()
	edit := cafeForm("Paludan Bogcafe")
	edit.Set("has_wifi", "Excelent")
	resp, err = bob.PostForm(app.url("/cafes/1/edit"), edit)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assertContains(t, resp, `"author_id":2`)

	resp, err = http.Get(app.url("/cafes/1"))
	require.NoError(t, err)
	assertContains(t, resp, `"has_wifi":"Excelent"`)

	resp, err = http.Get(app.url("/cafes/42"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assertContains(t, resp, "That cafe does not exist.")
}

func TestAnonymousActionsRedirectToLogin(t *testing.T) {
	app := newTestApp(t)
	ann := createSession(t)
	app.register(t, ann, "ann@example.com", "default", "Ann").Body.Close()
	app.addCafe(t, ann, "Paludan").Body.Close()

	anon := createSession(t)
	resp := app.addComment(t, anon, "1", "sneaky")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assertContains(t, resp, "You need to login or register to comment.")

	n, err := app.store.CountComments(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, n)

	resp = app.addComment(t, createSession(t), "99", "lost")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assertContains(t, resp, "That cafe does not exist.")

	// the flash is shown only once
	resp, err = anon.Get(app.url("/login"))
	require.NoError(t, err)
	assertContains(t, resp, `"flashes":[]`)

	resp = app.addCafe(t, anon, "Sneaky")
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assertContains(t, resp, "You need to login or register to Add Your Best Coffe!.")

	resp, err = anon.PostForm(app.url("/cafes/1/edit"), cafeForm("Hijacked"))
	require.NoError(t, err)
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assertContains(t, resp, "You need to login or register to edit a cafe.")

	resp = app.addComment(t, ann, "1", "Great flat white")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assertContains(t, resp, "Great flat white")
}

func TestDeleteIsAdminOnly(t *testing.T) {
	app := newTestApp(t)
	admin := createSession(t)
	app.register(t, admin, "admin@example.com", "default", "Admin").Body.Close()
	bob := createSession(t)
	app.register(t, bob, "bob@example.com", "default", "Bob").Body.Close()

	app.addCafe(t, bob, "Doomed").Body.Close()
	for _, text := range []string{"one", "two", "three"} {
		resp := app.addComment(t, bob, "1", text)
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, err := bob.Post(app.url("/cafes/1/delete"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(app.url("/cafes/1"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodDelete, app.url("/cafes/1"), nil)
	require.NoError(t, err)
	resp, err = admin.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assertContains(t, resp, `"removed_comments":3`)

	resp, err = http.Get(app.url("/cafes/1"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	n, err := app.store.CountComments(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHealthMetricsAndRequestID(t *testing.T) {
	app := newTestApp(t)

	resp, err := http.Get(app.url("/health"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
	assertContains(t, resp, "OK")

	req, err := http.NewRequest(http.MethodGet, app.url("/cafes"), nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "abc-123")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get(requestIDHeader))
	resp.Body.Close()

	resp, err = http.Get(app.url("/cafes/9"))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(app.url("/metrics"))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `successful_request{path="list_cafes"} 1`), string(body))
	assert.True(t, strings.Contains(string(body), `unsuccessful_request{path="cafe_detail"} 1`), string(body))
}
