package opencode

import (
	"encoding/json"
	"strings"
)

// Part is one typed fragment of a reply: TextPart or OtherPart.
type Part interface {
	PartType() string
}

type TextPart struct {
	Text string
}

func (TextPart) PartType() string { return "text" }

// OtherPart keeps a non-text fragment verbatim; it is never rendered.
type OtherPart struct {
	Type string
	Raw  json.RawMessage
}

func (p OtherPart) PartType() string { return p.Type }

// Reply is the response of the message and command endpoints.
type Reply struct {
	Parts []Part
}

func (r *Reply) UnmarshalJSON(data []byte) error {
	var wire struct {
		Parts []json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	r.Parts = make([]Part, 0, len(wire.Parts))
	for _, raw := range wire.Parts {
		var head struct {
			Type string  `json:"type"`
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return err
		}
		if head.Type == "text" {
			text := ""
			if head.Text != nil {
				text = *head.Text
			}
			r.Parts = append(r.Parts, TextPart{Text: text})
			continue
		}
		r.Parts = append(r.Parts, OtherPart{Type: head.Type, Raw: raw})
	}
	return nil
}

// Text joins the text parts in order, one per line.
func (r Reply) Text() string {
	return ExtractText(r.Parts)
}

func ExtractText(parts []Part) string {
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if t, ok := p.(TextPart); ok {
			texts = append(texts, t.Text)
		}
	}
	return strings.Join(texts, "\n")
}
