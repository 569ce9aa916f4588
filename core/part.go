package core

import (
	"encoding/json"
	"fmt"
)

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text     string         // Plain UTF-8 text
	Metadata map[string]any // Optional producer-provided metadata
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// DataPart is a structured data segment (e.g., JSON object map).
type DataPart struct {
	Data     map[string]any // Structured key/value payload
	Metadata map[string]any
}

// isPart implements the Part interface for DataPart.
func (DataPart) isPart() {}

// FilePart references a file attachment by path, e.g. a benchmark
// question attachment handed to the agent alongside the prompt.
type FilePart struct {
	Path     string  // Location on the backing store
	MimeType *string // Optional MIME type hint
	Metadata map[string]any
}

// isPart implements the Part interface for FilePart.
func (FilePart) isPart() {}

// FunctionCall describes a tool/function invocation request.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Optional stable id (can be supplied later)
	Name      string `json:"name"`                // Tool / function name
	Arguments string `json:"arguments,omitempty"` // Serialized argument payload (e.g. JSON)
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
	Metadata     map[string]any
}

// isPart implements the Part interface for FunctionCallPart.
func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call.
type FunctionResponse struct {
	ID       string      `json:"id,omitempty"`       // Matches originating FunctionCall ID
	Name     string      `json:"name"`               // Function name
	Response interface{} `json:"response,omitempty"` // Successful result (any shape)
	Error    string      `json:"error,omitempty"`    // Populated on failure
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
	Metadata         map[string]any
}

// isPart implements the Part interface for FunctionResponsePart.
func (FunctionResponsePart) isPart() {}

// Content holds role + ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"` // Conversation role (user, assistant, tool, system,...)
	Parts []Part `json:"parts"`          // Ordered heterogeneous parts
}

// Text concatenates all TextPart segments of the content, preserving order.
// Returns the empty string when the content carries no text.
func (c *Content) Text() string {
	if c == nil {
		return ""
	}
	var out string
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// Part kind tags used on the wire and in persisted sessions.
const (
	partTypeText             = "text"
	partTypeData             = "data"
	partTypeFile             = "file"
	partTypeFunctionCall     = "function_call"
	partTypeFunctionResponse = "function_response"
)

// partEnvelope is the serialized form of a Part. The Type tag selects which
// of the remaining fields are meaningful, letting the heterogeneous Parts
// slice survive a JSON round trip.
type partEnvelope struct {
	Type             string            `json:"type"`
	Text             string            `json:"text,omitempty"`
	Data             map[string]any    `json:"data,omitempty"`
	Path             string            `json:"path,omitempty"`
	MimeType         *string           `json:"mime_type,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

func encodePart(p Part) (partEnvelope, error) {
	switch v := p.(type) {
	case TextPart:
		return partEnvelope{Type: partTypeText, Text: v.Text, Metadata: v.Metadata}, nil
	case DataPart:
		return partEnvelope{Type: partTypeData, Data: v.Data, Metadata: v.Metadata}, nil
	case FilePart:
		return partEnvelope{Type: partTypeFile, Path: v.Path, MimeType: v.MimeType, Metadata: v.Metadata}, nil
	case FunctionCallPart:
		fc := v.FunctionCall
		return partEnvelope{Type: partTypeFunctionCall, FunctionCall: &fc, Metadata: v.Metadata}, nil
	case FunctionResponsePart:
		fr := v.FunctionResponse
		return partEnvelope{Type: partTypeFunctionResponse, FunctionResponse: &fr, Metadata: v.Metadata}, nil
	default:
		return partEnvelope{}, fmt.Errorf("unsupported part type %T", p)
	}
}

func decodePart(env partEnvelope) (Part, error) {
	switch env.Type {
	case partTypeText:
		return TextPart{Text: env.Text, Metadata: env.Metadata}, nil
	case partTypeData:
		return DataPart{Data: env.Data, Metadata: env.Metadata}, nil
	case partTypeFile:
		return FilePart{Path: env.Path, MimeType: env.MimeType, Metadata: env.Metadata}, nil
	case partTypeFunctionCall:
		var fc FunctionCall
		if env.FunctionCall != nil {
			fc = *env.FunctionCall
		}
		return FunctionCallPart{FunctionCall: fc, Metadata: env.Metadata}, nil
	case partTypeFunctionResponse:
		var fr FunctionResponse
		if env.FunctionResponse != nil {
			fr = *env.FunctionResponse
		}
		return FunctionResponsePart{FunctionResponse: fr, Metadata: env.Metadata}, nil
	default:
		return nil, fmt.Errorf("unknown part type %q", env.Type)
	}
}

// MarshalJSON implements json.Marshaler, tagging each part with its kind.
func (c Content) MarshalJSON() ([]byte, error) {
	var envs []partEnvelope
	if c.Parts != nil {
		envs = make([]partEnvelope, 0, len(c.Parts))
		for _, p := range c.Parts {
			env, err := encodePart(p)
			if err != nil {
				return nil, err
			}
			envs = append(envs, env)
		}
	}
	return json.Marshal(struct {
		Role  string         `json:"role,omitempty"`
		Parts []partEnvelope `json:"parts"`
	}{Role: c.Role, Parts: envs})
}

// UnmarshalJSON implements json.Unmarshaler, rebuilding the concrete part
// types from their kind tags.
func (c *Content) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role  string         `json:"role"`
		Parts []partEnvelope `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Role = raw.Role
	c.Parts = nil
	if raw.Parts != nil {
		c.Parts = make([]Part, 0, len(raw.Parts))
		for _, env := range raw.Parts {
			p, err := decodePart(env)
			if err != nil {
				return err
			}
			c.Parts = append(c.Parts, p)
		}
	}
	return nil
}
