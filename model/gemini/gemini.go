// Package gemini provides a model wrapper for Google's Gemini API. The
// adapter speaks the generateContent / streamGenerateContent REST protocol
// directly so no vendor SDK is required.
package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/model"
)

const (
	// Endpoint format: /models/{model}:generateContent
	generateContentPath = "/models/%s:generateContent"
	streamContentPath   = "/models/%s:streamGenerateContent"
	streamPrefix        = "data: "

	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// Options configures the Gemini model adapter.
type Options struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
	APIKey          string
	BaseURL         string
	HTTPClient      *http.Client
}

// Compile-time interface check.
var _ model.Model = (*Model)(nil)

// Model wraps the Gemini generateContent API behind the generic model.Model interface.
type Model struct {
	opts   Options
	client *http.Client
}

// NewModel creates a new Gemini model. The API key falls back to the
// GEMINI_API_KEY and GOOGLE_API_KEY environment variables when not set
// explicitly.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:           "gemini-2.5-pro",
		Temperature:     0.7,
		MaxOutputTokens: 8192,
		BaseURL:         defaultBaseURL,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.APIKey == "" {
		opts.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv("GOOGLE_API_KEY")
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}

	return &Model{opts: opts, client: client}
}

// Generate implements unified streaming / non-streaming generation against
// the Gemini REST API.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		body, err := m.buildRequestBody(req)
		if err != nil {
			errCh <- fmt.Errorf("gemini request build error: %w", err)
			return
		}

		if req.Stream {
			m.handleStreaming(ctx, body, out, errCh)
			return
		}
		m.handleNonStreaming(ctx, body, out, errCh)
	}()

	return out, errCh
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		SupportsTools: true,
	}
}

// buildRequestBody converts the normalized request into the Gemini wire format.
func (m *Model) buildRequestBody(req model.Request) ([]byte, error) {
	sysInstr, contents := convertContents(req.Contents)

	geminiReq := generateContentRequest{
		Contents:          contents,
		SystemInstruction: sysInstr,
		GenerationConfig: &generationConfig{
			Temperature:     &m.opts.Temperature,
			MaxOutputTokens: &m.opts.MaxOutputTokens,
		},
	}

	if len(req.Tools) > 0 {
		funcDecls := make([]functionDeclaration, len(req.Tools))
		for i, t := range req.Tools {
			funcDecls[i] = functionDeclaration{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			}
		}
		geminiReq.Tools = []geminiTool{{FunctionDeclarations: funcDecls}}
	}

	return json.Marshal(geminiReq)
}

// convertContents splits normalized contents into an optional system
// instruction and the turn history. Gemini uses role "model" instead of
// "assistant" and embeds tool results as functionResponse parts on user turns.
func convertContents(contents []core.Content) (*systemInstruction, []content) {
	var sysInstr *systemInstruction
	converted := make([]content, 0, len(contents))

	for _, c := range contents {
		switch c.Role {
		case "system":
			if text := c.Text(); text != "" {
				if sysInstr == nil {
					sysInstr = &systemInstruction{}
				}
				sysInstr.Parts = append(sysInstr.Parts, part{Text: text})
			}

		case "assistant":
			parts := make([]part, 0, len(c.Parts))
			if text := c.Text(); text != "" {
				parts = append(parts, part{Text: text})
			}
			for _, p := range c.Parts {
				fc, ok := p.(core.FunctionCallPart)
				if !ok {
					continue
				}
				var args map[string]any
				if fc.FunctionCall.Arguments != "" {
					if err := json.Unmarshal([]byte(fc.FunctionCall.Arguments), &args); err != nil {
						args = map[string]any{}
					}
				}
				parts = append(parts, part{FunctionCall: &functionCallPart{
					Name: fc.FunctionCall.Name,
					Args: args,
				}})
			}
			if len(parts) > 0 {
				converted = append(converted, content{Role: "model", Parts: parts})
			}

		case "tool":
			for _, p := range c.Parts {
				fr, ok := p.(core.FunctionResponsePart)
				if !ok {
					continue
				}
				converted = append(converted, content{
					Role: "user",
					Parts: []part{{FunctionResponse: &functionResponsePart{
						Name:     fr.FunctionResponse.Name,
						Response: wrapFunctionResponse(fr.FunctionResponse),
					}}},
				})
			}

		default: // user and anything unrecognized
			if text := c.Text(); text != "" {
				converted = append(converted, content{
					Role:  "user",
					Parts: []part{{Text: text}},
				})
			}
		}
	}

	return sysInstr, converted
}

// wrapFunctionResponse shapes a tool result as the JSON object Gemini expects.
func wrapFunctionResponse(fr core.FunctionResponse) any {
	if fr.Error != "" {
		return map[string]any{"error": fr.Error}
	}
	if s, ok := fr.Response.(string); ok {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			return parsed
		}
		return map[string]any{"result": s}
	}
	return map[string]any{"result": fmt.Sprintf("%v", fr.Response)}
}

func (m *Model) handleNonStreaming(ctx context.Context, body []byte, out chan<- model.Response, errCh chan<- error) {
	endpoint := fmt.Sprintf(m.opts.BaseURL+generateContentPath, m.opts.Model)
	respBody, err := m.doRequest(ctx, endpoint, body)
	if err != nil {
		errCh <- err
		return
	}
	defer func() { _ = respBody.Close() }()

	var resp generateContentResponse
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
		errCh <- fmt.Errorf("gemini decode error: %w", err)
		return
	}

	out <- toResponse(resp, nil)
}

func (m *Model) handleStreaming(ctx context.Context, body []byte, out chan<- model.Response, errCh chan<- error) {
	endpoint := fmt.Sprintf(m.opts.BaseURL+streamContentPath, m.opts.Model) + "?alt=sse"
	respBody, err := m.doRequest(ctx, endpoint, body)
	if err != nil {
		errCh <- err
		return
	}
	defer func() { _ = respBody.Close() }()

	scanner := bufio.NewScanner(respBody)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var textBuilder strings.Builder
	var calls []core.FunctionCall
	var usage *model.TokenUsage

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, streamPrefix) {
			continue
		}

		var chunk generateContentResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, streamPrefix)), &chunk); err != nil {
			continue
		}

		if chunk.UsageMetadata != nil {
			usage = &model.TokenUsage{
				PromptTokens:     chunk.UsageMetadata.PromptTokenCount,
				CompletionTokens: chunk.UsageMetadata.CandidatesTokenCount,
				TotalTokens:      chunk.UsageMetadata.TotalTokenCount,
			}
		}

		if len(chunk.Candidates) == 0 {
			continue
		}
		candidate := chunk.Candidates[0]

		for _, p := range candidate.Content.Parts {
			if p.Text != "" {
				textBuilder.WriteString(p.Text)
				out <- model.Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.TextPart{Text: p.Text}},
					},
				}
			}
			if p.FunctionCall != nil {
				calls = append(calls, streamedCall(p.FunctionCall))
			}
		}

		if candidate.FinishReason != "" && candidate.FinishReason != "UNSPECIFIED" {
			out <- finalResponse(textBuilder.String(), calls, candidate.FinishReason, usage)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		errCh <- fmt.Errorf("gemini streaming error: %w", err)
		return
	}

	out <- finalResponse(textBuilder.String(), calls, "stop", usage)
}

// doRequest performs a JSON POST and returns the response body for streaming.
func (m *Model) doRequest(ctx context.Context, url string, body []byte) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini request error: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", m.opts.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini api error: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("gemini api error: status %d: %s", resp.StatusCode, string(errBody))
	}
	return resp.Body, nil
}

// toResponse converts a full generateContent payload into a final response.
func toResponse(resp generateContentResponse, usage *model.TokenUsage) model.Response {
	var text string
	var calls []core.FunctionCall
	finishReason := "stop"

	if len(resp.Candidates) > 0 {
		candidate := resp.Candidates[0]
		if candidate.FinishReason != "" {
			finishReason = strings.ToLower(candidate.FinishReason)
		}
		for _, p := range candidate.Content.Parts {
			if p.Text != "" {
				text += p.Text
			}
			if p.FunctionCall != nil {
				calls = append(calls, streamedCall(p.FunctionCall))
			}
		}
	}

	if usage == nil && resp.UsageMetadata != nil {
		usage = &model.TokenUsage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}

	return finalResponse(text, calls, finishReason, usage)
}

// streamedCall converts a wire function call. Gemini does not assign call IDs
// so one is generated to keep call/response matching uniform downstream.
func streamedCall(fc *functionCallPart) core.FunctionCall {
	args, err := json.Marshal(fc.Args)
	if err != nil {
		args = []byte("{}")
	}
	return core.FunctionCall{
		ID:        "call_" + core.NewID(),
		Name:      fc.Name,
		Arguments: string(args),
	}
}

func finalResponse(text string, calls []core.FunctionCall, finishReason string, usage *model.TokenUsage) model.Response {
	parts := make([]core.Part, 0, len(calls)+1)
	if text != "" {
		parts = append(parts, core.TextPart{Text: text})
	}
	for _, fc := range calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
	}
	return model.Response{
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: strings.ToLower(finishReason),
		Usage:        usage,
	}
}

// API request/response types

type part struct {
	Text             string                `json:"text,omitempty"`
	FunctionCall     *functionCallPart     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponsePart `json:"functionResponse,omitempty"`
}

type functionCallPart struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type functionResponsePart struct {
	Name     string `json:"name"`
	Response any    `json:"response"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type systemInstruction struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type generateContentRequest struct {
	Contents          []content          `json:"contents"`
	SystemInstruction *systemInstruction `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig  `json:"generationConfig,omitempty"`
	Tools             []geminiTool       `json:"tools,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
			Role  string `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}
