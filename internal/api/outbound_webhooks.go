package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/annel0/voxel-engine/internal/eventbus"
	"github.com/annel0/voxel-engine/internal/logging"
)

var webhookLog = logging.For("webhooks")

// ErrWebhookNotFound - webhook с таким ID не зарегистрирован
var ErrWebhookNotFound = errors.New("webhook not found")

// SignatureHeader содержит "sha256=<hex HMAC тела>", если у webhook'а задан секрет
const SignatureHeader = "X-Webhook-Signature"

// OutboundWebhook описывает получателя событий мира
type OutboundWebhook struct {
	ID           uint64     `json:"id"`
	Name         string     `json:"name" binding:"required"`
	URL          string     `json:"url" binding:"required"`
	Secret       string     `json:"secret,omitempty"`
	Events       []string   `json:"events" binding:"required"` // типы событий шины или "*"
	Timeout      int        `json:"timeout"`                   // секунды
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	FailureCount int        `json:"failure_count"`
}

// subscribed проверяет, подписан ли webhook на тип события
func (w *OutboundWebhook) subscribed(eventType string) bool {
	for _, e := range w.Events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}

// WebhookForwarder пересылает события шины подписанным HTTP-получателям.
// Доставка асинхронная, с повторами; переполненная очередь отбрасывает события.
type WebhookForwarder struct {
	mu         sync.RWMutex
	webhooks   map[uint64]*OutboundWebhook
	nextID     uint64
	queue      chan *eventbus.Envelope
	httpClient *http.Client
	retryDelay time.Duration

	sub  eventbus.Subscription
	wg   sync.WaitGroup
	quit chan struct{}
	once sync.Once
}

// NewWebhookForwarder создаёт пересыльщик с очередью заданной ёмкости
func NewWebhookForwarder(queueSize int) *WebhookForwarder {
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &WebhookForwarder{
		webhooks:   make(map[uint64]*OutboundWebhook),
		nextID:     1,
		queue:      make(chan *eventbus.Envelope, queueSize),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retryDelay: time.Second,
		quit:       make(chan struct{}),
	}
}

// Start подписывается на все события шины и запускает воркер доставки
func (wf *WebhookForwarder) Start(ctx context.Context, bus eventbus.EventBus) error {
	sub, err := bus.Subscribe(ctx, eventbus.Filter{}, func(ctx context.Context, ev *eventbus.Envelope) {
		wf.Enqueue(ev)
	})
	if err != nil {
		return fmt.Errorf("webhook forwarder subscribe: %w", err)
	}
	wf.sub = sub

	wf.wg.Add(1)
	go wf.eventWorker()
	return nil
}

// Stop отписывается от шины и дожидается текущих доставок
func (wf *WebhookForwarder) Stop() {
	wf.once.Do(func() {
		if wf.sub != nil {
			wf.sub.Unsubscribe()
		}
		close(wf.quit)
		wf.wg.Wait()
	})
}

// Enqueue ставит событие в очередь доставки
func (wf *WebhookForwarder) Enqueue(ev *eventbus.Envelope) {
	select {
	case wf.queue <- ev:
	default:
		webhookLog.Warn("⚠️ Очередь webhook'ов переполнена, событие %s пропущено", ev.EventType)
	}
}

// AddWebhook регистрирует получателя; незаданные таймаут и повторы получают значения по умолчанию
func (wf *WebhookForwarder) AddWebhook(webhook OutboundWebhook) (*OutboundWebhook, error) {
	u, err := url.Parse(webhook.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("webhook url %q: must be absolute http(s)", webhook.URL)
	}
	if len(webhook.Events) == 0 {
		return nil, errors.New("webhook events are empty")
	}
	if webhook.Timeout <= 0 {
		webhook.Timeout = 30
	}
	if webhook.RetryCount < 0 {
		webhook.RetryCount = 0
	}

	wf.mu.Lock()
	defer wf.mu.Unlock()

	webhook.ID = wf.nextID
	wf.nextID++
	webhook.CreatedAt = time.Now().UTC()
	webhook.LastUsed = nil
	webhook.FailureCount = 0

	wf.webhooks[webhook.ID] = &webhook
	copied := webhook
	return &copied, nil
}

// GetWebhooks возвращает копии всех webhook'ов, упорядоченные по ID
func (wf *WebhookForwarder) GetWebhooks() []OutboundWebhook {
	wf.mu.RLock()
	defer wf.mu.RUnlock()

	out := make([]OutboundWebhook, 0, len(wf.webhooks))
	for _, w := range wf.webhooks {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeleteWebhook удаляет webhook
func (wf *WebhookForwarder) DeleteWebhook(id uint64) error {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	if _, ok := wf.webhooks[id]; !ok {
		return fmt.Errorf("%w: %d", ErrWebhookNotFound, id)
	}
	delete(wf.webhooks, id)
	return nil
}

func (wf *WebhookForwarder) eventWorker() {
	defer wf.wg.Done()
	for {
		select {
		case ev := <-wf.queue:
			wf.processEvent(ev)
		case <-wf.quit:
			return
		}
	}
}

func (wf *WebhookForwarder) processEvent(ev *eventbus.Envelope) {
	wf.mu.RLock()
	targets := make([]OutboundWebhook, 0)
	for _, w := range wf.webhooks {
		if w.subscribed(ev.EventType) {
			targets = append(targets, *w)
		}
	}
	wf.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		webhookLog.Error("❌ Ошибка маршалинга события %s: %v", ev.ID, err)
		return
	}

	var wg sync.WaitGroup
	for _, w := range targets {
		wg.Add(1)
		go func(w OutboundWebhook) {
			defer wg.Done()
			ok := wf.deliver(w, ev.EventType, body)
			wf.recordDelivery(w.ID, ok)
		}(w)
	}
	wg.Wait()
}

// deliver отправляет тело с повторами; каждая попытка - новый запрос
func (wf *WebhookForwarder) deliver(w OutboundWebhook, eventType string, body []byte) bool {
	for attempt := 0; attempt <= w.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * wf.retryDelay):
			case <-wf.quit:
				return false
			}
		}

		status, err := wf.post(w, eventType, body)
		if err == nil && status >= 200 && status < 300 {
			webhookLog.Debug("✅ Событие %s доставлено в webhook %s", eventType, w.Name)
			return true
		}
		webhookLog.Warn("⚠️ Попытка %d/%d для webhook %s: status=%d err=%v", attempt+1, w.RetryCount+1, w.Name, status, err)
	}
	return false
}

func (wf *WebhookForwarder) post(w OutboundWebhook, eventType string, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(w.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Voxel-Engine/1.0")
	req.Header.Set("X-Event-Type", eventType)
	if w.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(body, w.Secret))
	}

	resp, err := wf.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (wf *WebhookForwarder) recordDelivery(id uint64, ok bool) {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	w, exists := wf.webhooks[id]
	if !exists {
		return
	}
	now := time.Now().UTC()
	w.LastUsed = &now
	if !ok {
		w.FailureCount++
	}
}

// Sign возвращает HMAC-SHA256 подпись тела
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// === Обработчики ===

func (rs *RestServer) handleListWebhooks(c *gin.Context) {
	hooks := rs.webhooks.GetWebhooks()
	for i := range hooks {
		if hooks[i].Secret != "" {
			hooks[i].Secret = "***"
		}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Webhook'и", Data: hooks})
}

func (rs *RestServer) handleCreateWebhook(c *gin.Context) {
	var req OutboundWebhook
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	created, err := rs.webhooks.AddWebhook(req)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	created.Secret = ""
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Webhook создан", Data: created})
}

func (rs *RestServer) handleDeleteWebhook(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Неверный ID webhook'а")
		return
	}
	if err := rs.webhooks.DeleteWebhook(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Webhook удалён"})
}
