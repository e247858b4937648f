package domain

import (
	"encoding/json"
	"time"
)

// =============================================================================
// Core Configuration
// =============================================================================

type Config struct {
	Billing BillingConfig `json:"billing" yaml:"billing"`
	Gateway GatewayConfig `json:"gateway" yaml:"gateway"`
	Retry   RetryConfig   `json:"retry" yaml:"retry"`
	Infra   InfraConfig   `json:"infra" yaml:"infra"`
	Tools   ToolsConfig   `json:"tools" yaml:"tools"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Jobs    []JobConfig   `json:"jobs,omitempty" yaml:"jobs,omitempty"`
}

// BillingConfig selects and tunes the upstream billing API connection.
type BillingConfig struct {
	Environment       string  `json:"environment" yaml:"environment"`                         // "production" | "sandbox"
	BaseURL           string  `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`             // overrides Environment when set
	APIKey            string  `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`               // prefer BILLTOOL_API_KEY or the secrets store
	RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requestsPerSecond"`             // client-side rate limit (0 = unlimited)
	Burst             int     `json:"burst" yaml:"burst"`                                     // token bucket size
	TimeoutMillis     int     `json:"timeoutMillis,omitempty" yaml:"timeoutMillis,omitempty"` // per-request HTTP timeout
}

// RetryConfig controls retry behaviour for billing API calls.
type RetryConfig struct {
	MaxRetries     int `json:"maxRetries" yaml:"maxRetries"`         // Maximum retry attempts (0 = no retries)
	InitialBackoff int `json:"initialBackoff" yaml:"initialBackoff"` // Initial backoff in milliseconds
	MaxBackoff     int `json:"maxBackoff" yaml:"maxBackoff"`         // Maximum backoff in milliseconds
	Multiplier     int `json:"multiplier" yaml:"multiplier"`         // Backoff multiplier (e.g. 2 for exponential doubling)
}

type GatewayConfig struct {
	Port      int    `json:"port" yaml:"port"`
	AuthToken string `json:"authToken,omitempty" yaml:"authToken,omitempty"` // When set, gateway requires Authorization: Bearer <authToken>
}

type InfraConfig struct {
	LogFormat string `json:"logFormat" yaml:"logFormat"` // "json" | "text"
	LogLevel  string `json:"logLevel" yaml:"logLevel"`
}

// ToolsConfig narrows and guards the served tool set.
type ToolsConfig struct {
	Disabled          []string `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	MaxResponseTokens int      `json:"maxResponseTokens,omitempty" yaml:"maxResponseTokens,omitempty"` // 0 = no budget
	Encoding          string   `json:"encoding,omitempty" yaml:"encoding,omitempty"`                   // tiktoken encoding for the budget
	ScanResponses     bool     `json:"scanResponses" yaml:"scanResponses"`
	FileRoot          string   `json:"fileRoot,omitempty" yaml:"fileRoot,omitempty"` // directory create_file may read; empty = none
}

type JournalConfig struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty"` // e.g. "file:billtool.db"; empty disables the journal
}

// JobConfig is a cron-scheduled tool call.
type JobConfig struct {
	ID        string          `json:"id" yaml:"id"`
	Name      string          `json:"name,omitempty" yaml:"name,omitempty"`
	Cron      string          `json:"cron" yaml:"cron"`
	Tool      string          `json:"tool" yaml:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty" yaml:"-"`
	// ArgumentsYAML carries arguments when the config file is YAML.
	ArgumentsYAML map[string]any `json:"-" yaml:"arguments,omitempty"`
}

// =============================================================================
// Tool Protocol
// =============================================================================

// ContentType is the block type inside a Response. Only text is produced.
type ContentType string

const ContentText ContentType = "text"

// ContentBlock is one element of a Response.
type ContentBlock struct {
	Type ContentType `json:"type"`
	Text string      `json:"text"`
}

// Response is the fixed envelope every successful tool call returns:
// {"content":[{"type":"text","text":"..."}]}.
type Response struct {
	Content []ContentBlock `json:"content"`
}

// TextResponse builds a single-block text Response.
func TextResponse(text string) Response {
	return Response{Content: []ContentBlock{{Type: ContentText, Text: text}}}
}

// Text joins the text of every block. Used by transports that need a flat string.
func (r Response) Text() string {
	if len(r.Content) == 1 {
		return r.Content[0].Text
	}
	var s string
	for _, b := range r.Content {
		s += b.Text
	}
	return s
}

type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// =============================================================================
// Journal
// =============================================================================

// Outcome classifies a finished tool call.
type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeInvalidArgs   Outcome = "invalid_arguments"
	OutcomeUpstreamError Outcome = "upstream_error"
	OutcomeError         Outcome = "error"
)

// CallRecord is one journal entry.
type CallRecord struct {
	ID         string    `json:"id"`
	Tool       string    `json:"tool"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMS int64     `json:"durationMs"`
	Outcome    Outcome   `json:"outcome"`
	Error      string    `json:"error,omitempty"`
}
