package bridge

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

const (
	maxListedSessions = 10
	maxListedCommands = 20
)

// lookupError wraps a failed session lookup so the reply names the missing id.
type lookupError struct {
	id  string
	err error
}

func (e *lookupError) Error() string { return "lookup " + e.id + ": " + e.err.Error() }
func (e *lookupError) Unwrap() error { return e.err }

type handlerFunc func(ctx context.Context, ev Event, args string, e *emitter) (string, error)

func (r *Router) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		"chat":     r.handleChat,
		"session":  r.handleSession,
		"sessions": r.handleSessions,
		"new":      r.handleNew,
		"clear":    r.handleClear,
		"attach":   r.handleAttach,
		"deattach": r.handleDeattach,
		"commands": r.handleCommands,
		"cmd":      r.handleCmd,
		"health":   r.handleHealth,
	}
}

func splitCommand(body string) (string, string) {
	i := strings.IndexFunc(body, unicode.IsSpace)
	if i < 0 {
		return body, ""
	}
	return body[:i], strings.TrimSpace(body[i:])
}

func (r *Router) dispatch(ctx context.Context, ev Event, body string, e *emitter) {
	if body == "" {
		e.say(usage(r.prefix))
		return
	}

	cmd, args := splitCommand(body)
	cmd = strings.ToLower(cmd)
	h, ok := r.commands[cmd]
	if !ok {
		metricCommands.WithLabelValues("unknown", "error").Inc()
		e.say(fmt.Sprintf("Unknown command: %s\nSend %s for help.", cmd, r.prefix))
		return
	}
	if r.remote == nil {
		metricCommands.WithLabelValues(cmd, "error").Inc()
		e.say(msgNotConfigured)
		return
	}

	text, err := h(ctx, ev, args, e)
	metricCommands.WithLabelValues(cmd, result(err == nil)).Inc()
	if err != nil {
		lookupID := ""
		if le, ok := err.(*lookupError); ok {
			lookupID = le.id
		}
		text = failure(cmd, err, lookupID)
	}
	if text != "" {
		e.say(text)
	}
}

func (r *Router) handleChat(ctx context.Context, ev Event, args string, e *emitter) (string, error) {
	if args == "" {
		return "Usage: " + r.prefix + " chat <message>", nil
	}

	key := ev.Key()
	id, err := r.sessionFor(ctx, key, ev.Sender)
	if err != nil {
		return "", err
	}

	e.say(msgThinking)
	reply, err := r.send(ctx, key, id, args)
	if err != nil {
		return "", err
	}
	return sessionReply(id, reply.Text()), nil
}

func (r *Router) handleSession(ctx context.Context, ev Event, args string, _ *emitter) (string, error) {
	key := ev.Key()

	if args == "" {
		id, ok := r.store.Binding(key)
		if !ok {
			return "No active session, use " + r.prefix + " chat to start one.", nil
		}
		sess, err := r.remote.GetSession(ctx, id)
		if err != nil {
			return "", &lookupError{id: id, err: err}
		}
		return fmt.Sprintf("Current session:\n  ID: %s\n  Title: %s\n  Created: %s",
			orNA(sess.ID), orNA(sess.Title), sess.Created()), nil
	}

	id := strings.Fields(args)[0]
	sess, err := r.remote.GetSession(ctx, id)
	if err != nil {
		return "", &lookupError{id: id, err: err}
	}
	r.store.Bind(key, id)
	return fmt.Sprintf("Switched to session:\n  ID: %s\n  Title: %s", id, orNA(sess.Title)), nil
}

func (r *Router) handleSessions(ctx context.Context, _ Event, _ string, _ *emitter) (string, error) {
	sessions, err := r.remote.ListSessions(ctx)
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		return "No sessions yet.", nil
	}
	if len(sessions) > maxListedSessions {
		sessions = sessions[:maxListedSessions]
	}

	lines := []string{"Sessions:"}
	for i, s := range sessions {
		lines = append(lines, fmt.Sprintf("  %d. [%s] %s", i+1, shortID(orNA(s.ID)), orNA(s.Title)))
	}
	return strings.Join(lines, "\n"), nil
}

func (r *Router) handleNew(ctx context.Context, ev Event, args string, _ *emitter) (string, error) {
	title := args
	if title == "" {
		title = "New Session - " + ev.Sender
	}

	sess, err := r.remote.CreateSession(ctx, title)
	if err != nil {
		return "", err
	}
	metricSessionsCreated.Inc()
	r.store.Bind(ev.Key(), sess.ID)
	return "Created new session: " + sess.ID, nil
}

func (r *Router) handleClear(_ context.Context, ev Event, _ string, _ *emitter) (string, error) {
	if !r.store.Clear(ev.Key()) {
		return msgNoSession, nil
	}
	return "Cleared the current session.", nil
}

func (r *Router) handleAttach(ctx context.Context, ev Event, args string, _ *emitter) (string, error) {
	if args == "" {
		return "Usage: " + r.prefix + " attach <session-id>", nil
	}

	id := strings.Fields(args)[0]
	if _, err := r.remote.GetSession(ctx, id); err != nil {
		return "", &lookupError{id: id, err: err}
	}
	r.store.Attach(ev.Key(), id)
	return fmt.Sprintf("Attached to session %s. Every message here is now forwarded; use %s deattach to stop.", id, r.prefix), nil
}

func (r *Router) handleDeattach(_ context.Context, ev Event, _ string, _ *emitter) (string, error) {
	id, ok := r.store.Detach(ev.Key())
	if !ok {
		return "Not attached to any session.", nil
	}
	return "Detached from session " + id + ".", nil
}

func (r *Router) handleCommands(ctx context.Context, _ Event, _ string, _ *emitter) (string, error) {
	cmds, err := r.remote.ListCommands(ctx)
	if err != nil {
		return "", err
	}
	if len(cmds) == 0 {
		return "No commands available.", nil
	}
	if len(cmds) > maxListedCommands {
		cmds = cmds[:maxListedCommands]
	}

	lines := []string{"Available commands:"}
	for _, c := range cmds {
		lines = append(lines, fmt.Sprintf("  /%s - %s", orNA(c.Name), truncate(c.Description, 30)))
	}
	return strings.Join(lines, "\n"), nil
}

func (r *Router) handleCmd(ctx context.Context, ev Event, args string, e *emitter) (string, error) {
	if args == "" {
		return "Usage: " + r.prefix + " cmd <command> [json-args]", nil
	}

	name, rest := splitCommand(args)
	name = strings.TrimPrefix(name, "/")
	payload, err := parseArgs(rest)
	if err != nil {
		return "", err
	}

	id, err := r.sessionFor(ctx, ev.Key(), ev.Sender)
	if err != nil {
		return "", err
	}

	e.say(msgRunning)
	reply, err := r.remote.ExecuteCommand(ctx, id, name, payload)
	if err != nil {
		return "", err
	}
	if text := reply.Text(); text != "" {
		return text, nil
	}
	return msgCommandDone, nil
}

func (r *Router) handleHealth(ctx context.Context, _ Event, _ string, _ *emitter) (string, error) {
	h, err := r.remote.Health(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("OpenCode server status:\n  Healthy: %t\n  Version: %s", h.Healthy, orNA(h.Version)), nil
}
