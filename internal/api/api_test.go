package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varelagames/aldea/internal/engine"
	"github.com/varelagames/aldea/internal/ledger"
	"github.com/varelagames/aldea/internal/payments"
	"github.com/varelagames/aldea/internal/profile"
	"github.com/varelagames/aldea/internal/store"
	"github.com/varelagames/aldea/internal/world"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "aldea.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	led, err := ledger.New(st)
	require.NoError(t, err)
	profiles, err := profile.New(st, led)
	require.NoError(t, err)
	registry, err := world.NewRegistry(st)
	require.NoError(t, err)

	cfg := engine.DefaultConfig()
	cfg.AgentCount = 0
	srv := &Server{
		Profiles:  profiles,
		Registry:  registry,
		Sim:       engine.New(cfg, profiles, registry),
		Payments:  payments.New(profiles, "whsec", []byte("hmac-key")),
		JWTSecret: []byte("test-secret"),
	}
	return srv, srv.Routes()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func register(t *testing.T, h http.Handler, username, password string) []*http.Cookie {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/register",
		map[string]string{"username": username, "password": password, "gender": "F"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func TestRegisterLoginFlow(t *testing.T) {
	_, h := newTestServer(t)
	register(t, h, "ana", "secret1")

	// Duplicate username.
	rec := doJSON(t, h, http.MethodPost, "/api/register",
		map[string]string{"username": "ANA", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/login",
		map[string]string{"username": "ana", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	prog := body["progress"].(map[string]any)
	assert.Equal(t, float64(profile.DefaultMoney), prog["money"])

	rec = doJSON(t, h, http.MethodPost, "/api/login",
		map[string]string{"username": "ana", "password": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionRequired(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/api/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookies := register(t, h, "ana", "secret1")
	rec = doJSON(t, h, http.MethodGet, "/api/me", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	user := body["user"].(map[string]any)
	assert.Equal(t, "ana", user["username"])
	assert.NotContains(t, user, "passHash")
}

func TestWebsocketTokenQueryParam(t *testing.T) {
	srv, _ := newTestServer(t)
	user, err := srv.Profiles.Register("ana", "secret1", profile.Demographics{})
	require.NoError(t, err)
	token, err := srv.mintSession(user.ID, user.Username)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	uid, name, err := srv.sessionFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, user.ID, uid)
	assert.Equal(t, "ana", name)

	req = httptest.NewRequest(http.MethodGet, "/ws?token=garbage", nil)
	_, _, err = srv.sessionFromRequest(req)
	assert.Error(t, err)
}

func TestProgressPatch(t *testing.T) {
	_, h := newTestServer(t)
	cookies := register(t, h, "ana", "secret1")

	rec := doJSON(t, h, http.MethodPost, "/api/progress",
		map[string]any{"vehicle": "moto", "likes": []string{"music"}}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	prog := decodeBody(t, rec)["progress"].(map[string]any)
	assert.Equal(t, "moto", prog["vehicle"])
}

func TestLogoutFlushesBalance(t *testing.T) {
	srv, h := newTestServer(t)
	cookies := register(t, h, "ana", "secret1")

	rec := doJSON(t, h, http.MethodPost, "/api/logout",
		map[string]any{"money": 512, "bank": 64}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	var uid string
	if u, err := srv.Profiles.VerifyLogin("ana", "secret1"); err == nil {
		uid = u.ID
	}
	prog := srv.Profiles.EnsureProgress(uid)
	assert.Equal(t, 512, prog.Money)
	assert.Equal(t, 64, prog.Bank)
}

func TestGovEndpoints(t *testing.T) {
	_, h := newTestServer(t)
	cookies := register(t, h, "ana", "secret1")

	rec := doJSON(t, h, http.MethodPost, "/api/gov/funds/add", map[string]int{"amount": 120}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(120), decodeBody(t, rec)["funds"])

	rec = doJSON(t, h, http.MethodGet, "/api/gov", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	gov := decodeBody(t, rec)["government"].(map[string]any)
	assert.Equal(t, float64(120), gov["funds"])
}

func TestStructuresRoundTrip(t *testing.T) {
	_, h := newTestServer(t)
	cookies := register(t, h, "ana", "secret1")

	rec := doJSON(t, h, http.MethodPost, "/api/world/structures", map[string]any{
		"factories": []map[string]any{{"id": "F1", "kind": "factory", "x": 1, "y": 2, "w": 160, "h": 120}},
		"banks":     []map[string]any{{"id": "K1", "kind": "bank", "x": 9, "y": 9, "w": 120, "h": 100}},
	}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	// Unauthenticated write is refused.
	rec = doJSON(t, h, http.MethodPost, "/api/world/structures", map[string]any{}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/world/structures", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["factories"], 1)
	assert.Len(t, body["banks"], 1)
}

func TestPaymentFlowOverHTTP(t *testing.T) {
	srv, h := newTestServer(t)
	cookies := register(t, h, "ana", "secret1")

	rec := doJSON(t, h, http.MethodPost, "/api/pay/create-intent", map[string]any{"amountUsd": 10}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	intent := decodeBody(t, rec)["intent"].(map[string]any)
	ref := intent["id"].(string)

	// Below the minimum.
	rec = doJSON(t, h, http.MethodPost, "/api/pay/create-intent", map[string]any{"amountUsd": 2}, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Provider webhook settles the intent.
	payload := map[string]any{"ref": ref, "txId": "TX1", "amountUsd": 10, "currency": "USD", "status": "succeeded"}
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(payload))
	req := httptest.NewRequest(http.MethodPost, "/api/pay/webhook", &buf)
	req.Header.Set("X-Webhook-Secret", "whsec")
	wrec := httptest.NewRecorder()
	h.ServeHTTP(wrec, req)
	require.Equal(t, http.StatusOK, wrec.Code, wrec.Body.String())
	assert.Equal(t, "completed", decodeBody(t, wrec)["status"])

	u, err := srv.Profiles.VerifyLogin("ana", "secret1")
	require.NoError(t, err)
	assert.Equal(t, profile.DefaultMoney+payments.CreditAmount, srv.Profiles.EnsureProgress(u.ID).Money)

	rec = doJSON(t, h, http.MethodGet, "/api/pay/status?id="+ref, nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decodeBody(t, rec)["intent"].(map[string]any)["status"])
}

func TestAuthRateLimit(t *testing.T) {
	_, h := newTestServer(t)
	got429 := false
	for i := 0; i < 30; i++ {
		rec := doJSON(t, h, http.MethodPost, "/api/login",
			map[string]string{"username": "x", "password": "y"}, nil)
		if rec.Code == http.StatusTooManyRequests {
			got429 = true
			break
		}
	}
	assert.True(t, got429, "expected the limiter to kick in")
}

func TestWebsocketKeepalivePings(t *testing.T) {
	old := pingPeriod
	pingPeriod = 30 * time.Millisecond
	defer func() { pingPeriod = old }()

	_, h := newTestServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	// A spectator socket that never writes must still see server pings.
	conn, _, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("no keepalive ping from server")
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4455"
	assert.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(req))
}
