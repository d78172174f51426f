package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/app"
	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/world/block"
)

type received struct {
	eventType string
	envelope  eventbus.Envelope
}

func TestWebhookForwarderDeliversSigned(t *testing.T) {
	got := make(chan received, 4)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev eventbus.Envelope
		if err := json.Unmarshal(body, &ev); err != nil {
			t.Errorf("Некорректное тело webhook'а: %v", err)
		}
		if r.Header.Get(SignatureHeader) != Sign(body, "topsecret") {
			t.Errorf("Неверная подпись: %s", r.Header.Get(SignatureHeader))
		}
		got <- received{eventType: r.Header.Get("X-Event-Type"), envelope: ev}
	}))
	defer target.Close()

	bus := eventbus.NewMemoryBus(16)
	wf := NewWebhookForwarder(16)
	require.NoError(t, wf.Start(context.Background(), bus))
	defer wf.Stop()

	svc := newTestService(t, false, app.Options{Bus: bus})
	h := newTestServer(t, svc, Config{Webhooks: wf})

	w := do(t, h, http.MethodPost, "/api/webhooks", OutboundWebhook{
		Name:   "renderer",
		URL:    target.URL,
		Secret: "topsecret",
		Events: []string{eventbus.TypeVoxelChanged},
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created OutboundWebhook
	decode(t, w, &created)
	assert.Equal(t, uint64(1), created.ID)
	assert.Empty(t, created.Secret)

	// Кадр не входит в подписку
	w = do(t, h, http.MethodPut, "/api/frame", map[string]interface{}{"shadows": true}, "")
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodPut, "/api/octree/voxel", SetVoxelRequest{X: 2, Block: "grass"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case r := <-got:
		assert.Equal(t, eventbus.TypeVoxelChanged, r.eventType)
		var payload app.VoxelChangedEvent
		require.NoError(t, r.envelope.Decode(&payload))
		assert.Equal(t, uint32(block.Grass), payload.Value)
	case <-time.After(3 * time.Second):
		t.Fatal("webhook не получил событие")
	}

	select {
	case r := <-got:
		t.Errorf("лишняя доставка %s", r.eventType)
	case <-time.After(100 * time.Millisecond):
	}

	var hooks []OutboundWebhook
	decode(t, do(t, h, http.MethodGet, "/api/webhooks", nil, ""), &hooks)
	require.Len(t, hooks, 1)
	assert.Equal(t, "***", hooks[0].Secret)

	w = do(t, h, http.MethodDelete, "/api/webhooks/1", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodDelete, "/api/webhooks/1", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, h, http.MethodDelete, "/api/webhooks/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookForwarderRetries(t *testing.T) {
	var calls int32
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer target.Close()

	wf := NewWebhookForwarder(4)
	wf.retryDelay = time.Millisecond
	hook, err := wf.AddWebhook(OutboundWebhook{Name: "flaky", URL: target.URL, Events: []string{"*"}, RetryCount: 2})
	require.NoError(t, err)

	ev, err := eventbus.NewEnvelope("test", eventbus.TypeSnapshotSaved, 7, map[string]string{"id": "x"})
	require.NoError(t, err)
	wf.processEvent(ev)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	hooks := wf.GetWebhooks()
	require.Len(t, hooks, 1)
	assert.Equal(t, hook.ID, hooks[0].ID)
	assert.Equal(t, 0, hooks[0].FailureCount)
	assert.NotNil(t, hooks[0].LastUsed)

	// Повторы исчерпаны
	atomic.StoreInt32(&calls, -10)
	wf.processEvent(ev)
	assert.Equal(t, 1, wf.GetWebhooks()[0].FailureCount)
}

func TestAddWebhookValidation(t *testing.T) {
	wf := NewWebhookForwarder(1)

	_, err := wf.AddWebhook(OutboundWebhook{Name: "a", URL: "ftp://x", Events: []string{"*"}})
	assert.Error(t, err)
	_, err = wf.AddWebhook(OutboundWebhook{Name: "a", URL: "http://x"})
	assert.Error(t, err)

	hook, err := wf.AddWebhook(OutboundWebhook{Name: "a", URL: "http://x", Events: []string{"*"}})
	require.NoError(t, err)
	assert.Equal(t, 30, hook.Timeout)

	// Переполненная очередь не блокирует
	ev, _ := eventbus.NewEnvelope("test", eventbus.TypeVoxelChanged, 1, nil)
	wf.Enqueue(ev)
	wf.Enqueue(ev)
	assert.Len(t, wf.queue, 1)
}

func TestFormatUptime(t *testing.T) {
	cases := map[time.Duration]string{
		5 * time.Second:               "5с",
		2*time.Minute + 3*time.Second: "2м 3с",
		3*time.Hour + 4*time.Second:   "3ч 0м 4с",
		26*time.Hour + 61*time.Second: "1д 2ч 1м 1с",
	}
	for d, want := range cases {
		if got := FormatUptime(d); got != want {
			t.Errorf("FormatUptime(%v) = %q, ожидалось %q", d, got, want)
		}
	}
}
