// Package llm builds preconfigured model instances for the deployments this
// agent is operated against: a Qwen model served over an OpenAI-compatible
// gateway and Google Gemini. It is convenience glue; construct the adapters
// in model/openai and model/gemini directly for anything custom.
package llm

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"

	"github.com/lihan0705/lead-agent/model"
	"github.com/lihan0705/lead-agent/model/gemini"
	"github.com/lihan0705/lead-agent/model/openai"
)

// Defaults for the Qwen deployment behind the Ollama gateway.
const (
	QwenBaseURL   = "https://ollama-api.tech.emea.porsche.biz/v1"
	QwenModelName = "qwen3-vl:235b"
	QwenMaxTokens = 65536

	GeminiModelName = "gemini-3-pro-preview"
	GeminiMaxTokens = 128000

	// CACertEnv names the environment variable holding the path to a PEM
	// bundle for gateways with a private certificate chain.
	CACertEnv = "SUPERAGENT_CA_CERT"
)

// QwenOptions configure BuildQwen.
type QwenOptions struct {
	BaseURL     string
	ModelName   string
	APIKey      string
	Temperature float64
	MaxTokens   int64

	// CACertFile points at a PEM bundle to trust for the gateway TLS
	// handshake. Empty falls back to CACertEnv; a missing file is skipped so
	// the same binary runs with and without the corporate chain installed.
	CACertFile string

	// RequestsPerMinute throttles generation when > 0.
	RequestsPerMinute int
}

// BuildQwen constructs the Qwen model behind the OpenAI-compatible gateway,
// mirroring the deployment defaults (temperature 0, dummy key, private CA).
func BuildQwen(optFns ...func(o *QwenOptions)) (model.Model, error) {
	opts := QwenOptions{
		BaseURL:     QwenBaseURL,
		ModelName:   QwenModelName,
		APIKey:      "dummy-key",
		Temperature: 0,
		MaxTokens:   QwenMaxTokens,
		CACertFile:  os.Getenv(CACertEnv),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	httpClient, err := httpClientWithCA(opts.CACertFile)
	if err != nil {
		return nil, err
	}

	clientOpts := []openaiopt.RequestOption{
		openaiopt.WithBaseURL(opts.BaseURL),
		openaiopt.WithAPIKey(opts.APIKey),
	}
	if httpClient != nil {
		clientOpts = append(clientOpts, openaiopt.WithHTTPClient(httpClient))
	}
	client := openaisdk.NewClient(clientOpts...)

	qwen := openai.NewModelFromClient(&client, func(o *openai.Options) {
		o.Model = opts.ModelName
		o.Temperature = opts.Temperature
		o.MaxCompletionTokens = opts.MaxTokens
		o.Provider = "qwen"
	})

	return withRateLimit(qwen, opts.RequestsPerMinute), nil
}

// GeminiOptions configure BuildGemini.
type GeminiOptions struct {
	ModelName   string
	APIKey      string
	Temperature float64
	MaxTokens   int

	RequestsPerMinute int
}

// BuildGemini constructs the Gemini model with the deployment defaults. The
// API key resolution (GEMINI_API_KEY, GOOGLE_API_KEY) happens inside the
// adapter.
func BuildGemini(optFns ...func(o *GeminiOptions)) (model.Model, error) {
	opts := GeminiOptions{
		ModelName:   GeminiModelName,
		Temperature: 0,
		MaxTokens:   GeminiMaxTokens,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	gem := gemini.NewModel(func(o *gemini.Options) {
		o.Model = opts.ModelName
		o.Temperature = opts.Temperature
		o.MaxOutputTokens = opts.MaxTokens
		if opts.APIKey != "" {
			o.APIKey = opts.APIKey
		}
	})

	return withRateLimit(gem, opts.RequestsPerMinute), nil
}

// Build returns a model for the named kind: "gemini" (any case) selects
// Gemini, everything else selects Qwen.
func Build(kind string) (model.Model, error) {
	if strings.EqualFold(kind, "gemini") {
		return BuildGemini()
	}
	return BuildQwen()
}

// httpClientWithCA returns an HTTP client trusting the given PEM bundle in
// addition to the system roots. A missing or empty path returns nil so the
// caller keeps the default transport.
func httpClientWithCA(certFile string) (*http.Client, error) {
	if certFile == "" {
		return nil, nil
	}

	pem, err := os.ReadFile(certFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ca cert %q: %w", certFile, err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ca cert %q: no certificates found", certFile)
	}

	return &http.Client{
		Timeout: 10 * time.Minute,
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
		},
	}, nil
}

func withRateLimit(m model.Model, requestsPerMinute int) model.Model {
	if requestsPerMinute <= 0 {
		return m
	}
	return model.NewRateLimited(m, requestsPerMinute, 1)
}
