package bridge

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/opencode-chat-bridge/internal/opencode"
	"github.com/Vovarama1992/opencode-chat-bridge/internal/opencode/opencodetest"
)

func newWebhook(t *testing.T, limiter *KeyLimiter, outbound *Outbound, secret string) (*httptest.Server, *opencodetest.Server) {
	t.Helper()

	oc := opencodetest.NewServer()
	t.Cleanup(oc.Close)
	client := opencode.NewClient(opencode.Config{BaseURL: oc.URL, Timeout: 5 * time.Second})
	t.Cleanup(func() { _ = client.Close() })

	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(NewRouter(client, NewStore(), nil, Options{}), limiter, outbound, secret))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, oc
}

func postEvent(t *testing.T, url, body string, header map[string]string) (*http.Response, []string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, url+"/webhook", strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp, nil
	}
	var out struct {
		Replies []string `json:"replies"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out.Replies
}

func TestWebhookChat(t *testing.T) {
	t.Parallel()
	srv, oc := newWebhook(t, nil, nil, "")

	resp, replies := postEvent(t, srv.URL, `{"platform":"discord","conversation_id":"c1","sender_name":"bob","text":"/oc chat hi"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, replies, 2)
	assert.Equal(t, msgThinking, replies[0])
	assert.Contains(t, replies[1], "echo: hi")
	assert.Equal(t, "Chat Session - bob", oc.Sessions()[0].Title)

	resp, replies = postEvent(t, srv.URL, `{"platform":"discord","conversation_id":"c1","text":"hello"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, replies)
	assert.Empty(t, replies)
}

func TestWebhookRejectsBadInput(t *testing.T) {
	t.Parallel()
	srv, _ := newWebhook(t, nil, nil, "")

	resp, _ := postEvent(t, srv.URL, `{`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postEvent(t, srv.URL, `{"platform":"discord","text":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhookSecret(t *testing.T) {
	t.Parallel()
	srv, _ := newWebhook(t, nil, nil, "s3cret")
	body := `{"platform":"p","conversation_id":"c","text":"/oc health"}`

	resp, _ := postEvent(t, srv.URL, body, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = postEvent(t, srv.URL, body, map[string]string{"X-Webhook-Secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, replies := postEvent(t, srv.URL, body, map[string]string{"X-Webhook-Secret": "s3cret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "Healthy: true")
}

func TestWebhookRateLimitPerKey(t *testing.T) {
	t.Parallel()
	srv, _ := newWebhook(t, NewKeyLimiter(2), nil, "")

	for i := 0; i < 2; i++ {
		resp, _ := postEvent(t, srv.URL, `{"platform":"p","conversation_id":"c","text":"/oc"}`, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := postEvent(t, srv.URL, `{"platform":"p","conversation_id":"c","text":"/oc"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, _ = postEvent(t, srv.URL, `{"platform":"p","conversation_id":"other","text":"/oc"}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookPushesRepliesOutbound(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		pushed []map[string]string
		auth   []string
	)
	platform := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		pushed = append(pushed, body)
		auth = append(auth, r.Header.Get("Authorization"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer platform.Close()

	srv, _ := newWebhook(t, nil, NewOutbound(platform.URL, "tok"), "")
	resp, replies := postEvent(t, srv.URL, `{"platform":"p","conversation_id":"c","text":"/oc health"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, replies, 1)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, pushed, 1)
	assert.Equal(t, map[string]string{"platform": "p", "conversation_id": "c", "text": replies[0]}, pushed[0])
	assert.Equal(t, "Bearer tok", auth[0])
}

func TestWebhookOutboundFailure(t *testing.T) {
	t.Parallel()

	platform := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer platform.Close()

	srv, _ := newWebhook(t, nil, NewOutbound(platform.URL, ""), "")
	resp, _ := postEvent(t, srv.URL, `{"platform":"p","conversation_id":"c","text":"/oc"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestKeyLimiterDisabledAndBounded(t *testing.T) {
	t.Parallel()

	off := NewKeyLimiter(0)
	for i := 0; i < 100; i++ {
		require.True(t, off.Allow("k"))
	}

	l := NewKeyLimiter(1)
	for i := 0; i < maxTrackedKeys+10; i++ {
		l.Allow(fmt.Sprintf("k%d", i))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.LessOrEqual(t, len(l.limiters), maxTrackedKeys)
}
