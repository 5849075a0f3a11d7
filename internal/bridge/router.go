package bridge

import (
	"context"
	"errors"
	"log"
	"strings"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/Vovarama1992/opencode-chat-bridge/internal/opencode"
)

const DefaultPrefix = "/oc"

type Options struct {
	// Prefix introduces a bridge command, e.g. "/oc chat hi".
	Prefix string
	// Model is passed with every forwarded message; nil lets the server decide.
	Model *opencode.Model
}

// Router maps chat events onto remote OpenCode sessions. HandleEvent may be
// called concurrently.
type Router struct {
	remote  Remote
	store   *Store
	journal Journal
	prefix  string
	model   *opencode.Model

	commands map[string]handlerFunc
	creating singleflight.Group
}

// NewRouter builds a router. A nil remote is allowed: every command then
// answers with a configuration error instead of calling out.
func NewRouter(remote Remote, store *Store, journal Journal, opts Options) *Router {
	if store == nil {
		store = NewStore()
	}
	if journal == nil {
		journal = NopJournal{}
	}
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}

	r := &Router{
		remote:  remote,
		store:   store,
		journal: journal,
		prefix:  prefix,
		model:   opts.Model,
	}
	r.commands = r.handlers()
	return r
}

func (r *Router) Store() *Store { return r.store }

// Close drops all routing state.
func (r *Router) Close() {
	r.store.Reset()
}

// emitter forwards replies and keeps the first delivery error so a failed
// reply never aborts the rest of the handler.
type emitter struct {
	ctx context.Context
	out Replier
	err error
}

func (e *emitter) say(text string) {
	if err := e.out.Reply(e.ctx, text); err != nil && e.err == nil {
		e.err = err
	}
}

// HandleEvent routes one inbound message. Only reply delivery errors are returned.
func (r *Router) HandleEvent(ctx context.Context, ev Event, out Replier) error {
	e := &emitter{ctx: ctx, out: out}
	text := strings.TrimSpace(ev.Text)

	if body, ok := r.commandBody(text); ok {
		r.dispatch(ctx, ev, body, e)
	} else {
		r.intercept(ctx, ev, text, e)
	}
	return e.err
}

func (r *Router) commandBody(text string) (string, bool) {
	if !strings.HasPrefix(text, r.prefix) {
		return "", false
	}
	rest := text[len(r.prefix):]
	if rest != "" && !unicode.IsSpace([]rune(rest)[0]) {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// intercept forwards raw text of an attached conversation.
func (r *Router) intercept(ctx context.Context, ev Event, text string, e *emitter) {
	key := ev.Key()
	id, ok := r.store.Attached(key)
	if !ok || text == "" {
		return
	}
	if r.remote == nil {
		e.say(msgNotConfigured)
		return
	}

	reply, err := r.send(ctx, key, id, text)
	metricForwarded.WithLabelValues(result(err == nil)).Inc()
	if err != nil {
		e.say(failure("forward", err, ""))
		return
	}
	e.say(sessionReply(id, reply.Text()))
}

func (r *Router) send(ctx context.Context, key, id, text string) (opencode.Reply, error) {
	r.record(ctx, Entry{Key: key, SessionID: id, Direction: DirectionIn, Text: text})

	reply, err := r.remote.SendMessage(ctx, id, text, r.model)
	if err != nil {
		return reply, err
	}

	r.record(ctx, Entry{Key: key, SessionID: id, Direction: DirectionOut, Text: reply.Text()})
	return reply, nil
}

func (r *Router) record(ctx context.Context, entry Entry) {
	if err := r.journal.Record(ctx, entry); err != nil {
		log.Printf("[bridge] journal error key=%s: %v", entry.Key, err)
	}
}

// sessionFor returns the bound session of key, creating one when absent.
// Concurrent callers for the same key share a single CreateSession call.
func (r *Router) sessionFor(ctx context.Context, key, sender string) (string, error) {
	if id, ok := r.store.Binding(key); ok {
		return id, nil
	}

	v, err, _ := r.creating.Do(key, func() (any, error) {
		if id, ok := r.store.Binding(key); ok {
			return id, nil
		}
		sess, err := r.remote.CreateSession(ctx, "Chat Session - "+sender)
		if err != nil {
			return "", err
		}
		if sess.ID == "" {
			return "", errors.New("server returned a session without id")
		}
		metricSessionsCreated.Inc()
		r.store.Bind(key, sess.ID)
		log.Printf("[bridge] created session %s for %s", sess.ID, key)
		return sess.ID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func sessionReply(id, text string) string {
	if text == "" {
		text = msgNoResponse
	}
	return "[" + id + "] " + text
}
