package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// Outbound pushes replies to a chat platform's send endpoint, for platforms
// that only ACK the webhook and never read its response body.
type Outbound struct {
	url    string
	token  string
	client *http.Client
}

func NewOutbound(url, token string) *Outbound {
	return &Outbound{
		url:    strings.TrimSpace(url),
		token:  strings.TrimSpace(token),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// For returns a Replier addressing the conversation of ev.
func (o *Outbound) For(ev Event) Replier {
	return &pushReplier{o: o, ev: ev}
}

type pushReplier struct {
	o  *Outbound
	ev Event
}

func (p *pushReplier) Reply(ctx context.Context, text string) error {
	return p.o.send(ctx, map[string]any{
		"platform":        p.ev.Platform,
		"conversation_id": p.ev.Conversation,
		"text":            text,
	})
}

func (o *Outbound) send(ctx context.Context, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		o.url,
		bytes.NewReader(b),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.New(
			"outbound api error: " +
				resp.Status +
				" body=" + string(respBody),
		)
	}

	return nil
}

// fanout delivers each reply to every replier in order.
type fanout []Replier

func (f fanout) Reply(ctx context.Context, text string) error {
	var errs []error
	for _, r := range f {
		if err := r.Reply(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
