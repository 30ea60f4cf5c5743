package types

// ChatCompletionRequest is the payload of POST /v1/chat/completions.
type ChatCompletionRequest struct {
	// Optional model identifier. The server serves a single model; this is
	// echoed back in responses for client compatibility.
	// example: qwen3-vl-instruct
	Model string `json:"model,omitempty" example:"qwen3-vl-instruct"`
	// Role-tagged conversation messages. At least one is required.
	Messages []ChatMessage `json:"messages"`
	// If true, stream results as SSE chat.completion.chunk records.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
	// Maximum number of new tokens to generate.
	// example: 2048
	MaxTokens int `json:"max_tokens,omitempty" example:"2048"`
	// Sampling temperature. Accepted for compatibility; the engine decodes greedily.
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
}

// ChatMessage is one role-tagged message whose content is either a plain
// string or a sequence of typed parts.
type ChatMessage struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// Usage contains token accounting. Counts are whitespace-word counts, not
// tokenizer counts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens" example:"12"`
	CompletionTokens int `json:"completion_tokens" example:"64"`
	TotalTokens      int `json:"total_tokens" example:"76"`
}

// AssistantMessage is the message inside a non-streaming choice.
type AssistantMessage struct {
	Role    string `json:"role" example:"assistant"`
	Content string `json:"content"`
}

// ChatChoice is one completion choice of a non-streaming response.
type ChatChoice struct {
	Index        int              `json:"index" example:"0"`
	Message      AssistantMessage `json:"message"`
	FinishReason string           `json:"finish_reason" example:"stop"`
}

// ChatCompletionResponse is the non-streaming response body.
type ChatCompletionResponse struct {
	ID      string       `json:"id" example:"chatcmpl-1700000000"`
	Object  string       `json:"object" example:"chat.completion"`
	Created int64        `json:"created" example:"1700000000"`
	Model   string       `json:"model" example:"qwen3-vl-instruct"`
	Choices []ChatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
}

// DeltaContent carries the incremental text of one streamed chunk. The
// terminal chunk has an empty delta.
type DeltaContent struct {
	Content string `json:"content,omitempty"`
}

// ChunkChoice is one choice of a streamed chunk. FinishReason is null for
// data-bearing chunks and "stop" on the terminal chunk.
type ChunkChoice struct {
	Index        int          `json:"index" example:"0"`
	Delta        DeltaContent `json:"delta"`
	FinishReason *string      `json:"finish_reason"`
}

// ChatCompletionChunk is one SSE record of a streaming response.
type ChatCompletionChunk struct {
	ID      string        `json:"id" example:"chatcmpl-1700000000"`
	Object  string        `json:"object" example:"chat.completion.chunk"`
	Created int64         `json:"created" example:"1700000000"`
	Model   string        `json:"model" example:"qwen3-vl-instruct"`
	Choices []ChunkChoice `json:"choices"`
}

// StreamError is the inline error record emitted when a failure occurs after
// streaming has begun. It is followed by the end-of-stream sentinel.
type StreamError struct {
	Error StreamErrorDetail `json:"error"`
}

// StreamErrorDetail describes an in-stream failure.
type StreamErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type" example:"stream_error"`
}

// DescribeMetadata accompanies a non-streaming media description.
type DescribeMetadata struct {
	Filename              string  `json:"filename" example:"cat.jpg"`
	MediaType             string  `json:"media_type" example:"image"`
	Prompt                string  `json:"prompt"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds" example:"3.14"`
	Model                 string  `json:"model" example:"qwen3-vl-instruct"`
}

// DescribeResponse is the non-streaming body of POST /v1/media/describe.
type DescribeResponse struct {
	Status      string           `json:"status" example:"success"`
	Description string           `json:"description"`
	Metadata    DescribeMetadata `json:"metadata"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
