package opencode

import "encoding/json"

// Session is a conversation context owned by the OpenCode server.
type Session struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	CreatedAt json.RawMessage `json:"created_at,omitempty"`
}

// Created renders the server's creation timestamp as-is.
func (s Session) Created() string {
	if len(s.CreatedAt) == 0 || string(s.CreatedAt) == "null" {
		return "N/A"
	}
	var str string
	if err := json.Unmarshal(s.CreatedAt, &str); err == nil {
		return str
	}
	return string(s.CreatedAt)
}

type Health struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version"`
}

type Command struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Model selects the provider/model pair for a message; nil lets the server choose.
type Model struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}
