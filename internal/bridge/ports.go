package bridge

import (
	"context"

	"github.com/Vovarama1992/opencode-chat-bridge/internal/opencode"
)

// Event is one inbound chat message.
type Event struct {
	Platform     string
	Conversation string
	Sender       string
	Text         string
}

// Key identifies the routing slot of an event.
func (e Event) Key() string {
	return Key(e.Platform, e.Conversation)
}

func Key(platform, conversation string) string {
	return platform + "_" + conversation
}

// Replier delivers outbound text back to the chat surface the event came from.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

// Remote is the part of the OpenCode client the router drives.
type Remote interface {
	Health(ctx context.Context) (opencode.Health, error)
	ListSessions(ctx context.Context) ([]opencode.Session, error)
	CreateSession(ctx context.Context, title string) (opencode.Session, error)
	GetSession(ctx context.Context, id string) (opencode.Session, error)
	SendMessage(ctx context.Context, sessionID, text string, model *opencode.Model) (opencode.Reply, error)
	ExecuteCommand(ctx context.Context, sessionID, command string, args any) (opencode.Reply, error)
	ListCommands(ctx context.Context) ([]opencode.Command, error)
}

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Entry is one journaled exchange line.
type Entry struct {
	Key       string
	SessionID string
	Direction Direction
	Text      string
}

// Journal records forwarded traffic. It is write-only: routing state is never
// rebuilt from it.
type Journal interface {
	Record(ctx context.Context, e Entry) error
}
