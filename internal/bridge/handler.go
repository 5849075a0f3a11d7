package bridge

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"sync"
)

type Handler struct {
	router   *Router
	limiter  *KeyLimiter
	outbound *Outbound
	secret   string
}

// NewHandler wires the webhook. limiter and outbound may be nil.
func NewHandler(router *Router, limiter *KeyLimiter, outbound *Outbound, secret string) *Handler {
	if limiter == nil {
		limiter = NewKeyLimiter(0)
	}
	return &Handler{router: router, limiter: limiter, outbound: outbound, secret: secret}
}

// collector buffers the replies of one webhook call.
type collector struct {
	mu      sync.Mutex
	replies []string
}

func (c *collector) Reply(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, text)
	return nil
}

// HandleWebhook accepts one chat event and answers with the replies it produced.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var payload struct {
		Platform       string `json:"platform"`
		ConversationID string `json:"conversation_id"`
		SenderName     string `json:"sender_name"`
		Text           string `json:"text"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if payload.Platform == "" || payload.ConversationID == "" {
		http.Error(w, "missing platform or conversation_id", http.StatusBadRequest)
		return
	}

	ev := Event{
		Platform:     payload.Platform,
		Conversation: payload.ConversationID,
		Sender:       payload.SenderName,
		Text:         payload.Text,
	}

	if !h.limiter.Allow(ev.Key()) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}

	out := &collector{}
	var replier Replier = out
	if h.outbound != nil {
		replier = fanout{out, h.outbound.For(ev)}
	}
	if err := h.router.HandleEvent(r.Context(), ev, replier); err != nil {
		log.Printf("[webhook] key=%s reply error: %v", ev.Key(), err)
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}

	replies := out.replies
	if replies == nil {
		replies = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"replies": replies})
}
