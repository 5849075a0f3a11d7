package bridge

import (
	"errors"
	"fmt"
	"log"

	"github.com/Vovarama1992/opencode-chat-bridge/internal/opencode"
)

const (
	msgNotConfigured = "OpenCode client is not configured, check the server settings."
	msgNetwork       = "Network error, please retry."
	msgParseArgs     = "Could not parse command arguments as JSON."
	msgThinking      = "Thinking..."
	msgRunning       = "Running command..."
	msgNoResponse    = "(no response)"
	msgCommandDone   = "Command finished."
	msgNoSession     = "No active session."
)

func usage(prefix string) string {
	return "Usage: " + prefix + " <command> [args]\n" +
		"Commands:\n" +
		"  " + prefix + " chat <message>     - talk to the AI\n" +
		"  " + prefix + " session [id]       - show or switch the current session\n" +
		"  " + prefix + " sessions           - list sessions\n" +
		"  " + prefix + " new [title]        - start a new session\n" +
		"  " + prefix + " clear              - forget the current session\n" +
		"  " + prefix + " attach <id>        - forward every message to session <id>\n" +
		"  " + prefix + " deattach           - stop forwarding messages\n" +
		"  " + prefix + " commands           - list server commands\n" +
		"  " + prefix + " cmd <name> [json]  - run a server command\n" +
		"  " + prefix + " health             - check server status"
}

// errArgs marks a cmd payload that is not a single JSON value.
var errArgs = errors.New("invalid command arguments")

// failure turns an error into the single reply the user sees. lookupID is set
// when the failed call was a session lookup, where any status means "missing".
func failure(op string, err error, lookupID string) string {
	var (
		statusErr    *opencode.StatusError
		transportErr *opencode.TransportError
	)

	switch {
	case errors.Is(err, errArgs):
		log.Printf("[bridge] %s: %v", op, err)
		return msgParseArgs
	case errors.As(err, &statusErr) && lookupID != "":
		log.Printf("[bridge] %s: session %s lookup failed: %v", op, lookupID, err)
		return fmt.Sprintf("Session %s does not exist.", lookupID)
	case errors.As(err, &statusErr):
		log.Printf("[bridge] %s: http error: %v", op, err)
		return fmt.Sprintf("Request failed: %d", statusErr.Code)
	case errors.As(err, &transportErr):
		log.Printf("[bridge] %s: network error: %v", op, err)
		return msgNetwork
	default:
		log.Printf("[bridge] %s: error: %v", op, err)
		return fmt.Sprintf("Error: %v", err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
