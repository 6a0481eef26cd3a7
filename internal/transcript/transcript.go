// Package transcript converts chat messages to and from the markdown form in
// which conversations are stored.
//
// A conversation is a sequence of blocks separated by blank lines. Each block
// starts with the delimiter line, a role line and a "---" line, followed by
// the message parts:
//
//	--- message ---
//	role: assistant
//	---
//	<think>
//	reasoning text
//	</think>
//	answer text
//	***tool***
//	```json
//	{"type": "tool-search", ...}
//	```
package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Delimiter is the line that opens every message block.
const Delimiter = "--- message ---"

const (
	toolMarker  = "***tool***"
	thinkOpen   = "<think>"
	thinkClose  = "</think>"
	headerClose = "---"
)

// Roles used by the chat client.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Part kinds with a dedicated rendering. Tool parts have a type of
// "dynamic-tool" or one starting with "tool-".
const (
	PartText      = "text"
	PartReasoning = "reasoning"
)

var roleRe = regexp.MustCompile(`^role:\s*(.+)$`)

// Part is one piece of a message. Text and reasoning parts carry Text; tool
// parts carry their whole JSON object in Fields, type included.
type Part struct {
	Type   string
	Text   string
	Fields map[string]any
}

// IsTool reports whether p is a tool invocation part.
func (p Part) IsTool() bool {
	return p.Type == "dynamic-tool" || strings.HasPrefix(p.Type, "tool-")
}

func (p Part) MarshalJSON() ([]byte, error) {
	if p.Fields != nil {
		return json.Marshal(p.Fields)
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{p.Type, p.Text})
}

func (p *Part) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("transcript: decode part: %w", err)
	}
	typ, _ := fields["type"].(string)
	*p = Part{Type: typ}
	if p.IsTool() {
		p.Fields = fields
		return nil
	}
	p.Text, _ = fields["text"].(string)
	return nil
}

// Message is one turn of a conversation.
type Message struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Text joins the text parts of m.
func (m Message) Text() string {
	var texts []string
	for _, p := range m.Parts {
		if p.Type == PartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Encode renders messages as markdown. Parts of unknown kinds without text
// are skipped.
func Encode(messages []Message) (string, error) {
	blocks := make([]string, 0, len(messages))
	for _, m := range messages {
		b, err := encodeMessage(m)
		if err != nil {
			return "", err
		}
		blocks = append(blocks, b)
	}
	return strings.Join(blocks, "\n\n"), nil
}

func encodeMessage(m Message) (string, error) {
	var lines []string
	for _, p := range m.Parts {
		switch {
		case p.IsTool():
			fields := p.Fields
			if fields == nil {
				fields = map[string]any{"type": p.Type}
			}
			var buf bytes.Buffer
			enc := json.NewEncoder(&buf)
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			if err := enc.Encode(fields); err != nil {
				return "", fmt.Errorf("transcript: encode tool part: %w", err)
			}
			lines = append(lines, toolMarker, "```json", strings.TrimSuffix(buf.String(), "\n"), "```")
		case p.Type == PartReasoning:
			lines = append(lines, thinkOpen, p.Text, thinkClose)
		case p.Type == PartText || p.Text != "":
			lines = append(lines, p.Text)
		}
	}
	return strings.Join([]string{Delimiter, "role: " + m.Role, headerClose, strings.Join(lines, "\n")}, "\n"), nil
}

// Decode parses markdown into messages. Every message gets a fresh id.
// Blank blocks are dropped and a block without a role line is a user message.
func Decode(content string) []Message {
	var out []Message
	for _, block := range strings.Split(content, Delimiter) {
		if strings.TrimSpace(block) == "" {
			continue
		}
		m := decodeMessage(block)
		m.ID = uuid.NewString()
		out = append(out, m)
	}
	return out
}

// decoder accumulates the parts of one message block.
type decoder struct {
	parts     []Part
	text      []string
	reasoning []string
	toolJSON  []string
}

func (d *decoder) flushText() {
	if len(d.text) > 0 {
		d.parts = append(d.parts, Part{Type: PartText, Text: strings.Join(d.text, "\n")})
		d.text = nil
	}
}

func (d *decoder) flushReasoning() {
	if len(d.reasoning) > 0 {
		d.parts = append(d.parts, Part{Type: PartReasoning, Text: strings.Join(d.reasoning, "\n")})
		d.reasoning = nil
	}
}

// flushTool emits the collected JSON as a tool part, or as text when it
// does not decode.
func (d *decoder) flushTool() {
	if len(d.toolJSON) == 0 {
		return
	}
	raw := strings.Join(d.toolJSON, "\n")
	d.toolJSON = nil
	var p Part
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		d.parts = append(d.parts, Part{Type: PartText, Text: raw})
		return
	}
	d.parts = append(d.parts, p)
}

func decodeMessage(block string) Message {
	var (
		d          decoder
		role       string
		inThink    bool
		inTool     bool
		collecting bool
	)
	for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
		if role == "" {
			if m := roleRe.FindStringSubmatch(line); m != nil {
				role = m[1]
				continue
			}
		}
		if line == headerClose {
			continue
		}
		trimmed := strings.TrimSpace(line)

		if trimmed == toolMarker {
			d.flushText()
			d.flushReasoning()
			inTool = true
			continue
		}
		if inTool && strings.HasPrefix(trimmed, "```") {
			collecting = !collecting
			if !collecting {
				d.flushTool()
				inTool = false
			}
			continue
		}
		if collecting {
			d.toolJSON = append(d.toolJSON, line)
			continue
		}

		if strings.Contains(line, thinkOpen) {
			d.flushText()
			inThink = true
			if after := strings.TrimSpace(strings.Replace(line, thinkOpen, "", 1)); after != "" {
				d.reasoning = append(d.reasoning, after)
			}
			continue
		}
		if strings.Contains(line, thinkClose) {
			before := strings.TrimSpace(strings.Replace(line, thinkClose, "", 1))
			if !inThink && len(d.reasoning) == 0 {
				// Reasoning without an opening tag: everything so far was thinking.
				d.text = append(d.text, before)
				d.flushText()
				d.parts[len(d.parts)-1].Type = PartReasoning
				continue
			}
			if before != "" {
				d.reasoning = append(d.reasoning, before)
			}
			d.flushReasoning()
			inThink = false
			continue
		}

		if inThink {
			d.reasoning = append(d.reasoning, line)
		} else {
			d.text = append(d.text, line)
		}
	}
	d.flushText()
	d.flushReasoning()
	d.flushTool()

	if role == "" {
		role = RoleUser
	}
	if d.parts == nil {
		d.parts = []Part{}
	}
	return Message{Role: role, Parts: d.parts}
}
