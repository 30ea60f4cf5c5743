package types

// ModelCard describes the served model for GET /v1/models.
type ModelCard struct {
	// Stable identifier for the model.
	// example: qwen3-vl-instruct
	ID string `json:"id" example:"qwen3-vl-instruct"`
	// Object tag, always "model".
	Object string `json:"object" example:"model"`
	// Unix creation/listing time.
	Created int64 `json:"created" example:"1700000000"`
	// Owner label.
	// example: vlmd
	OwnedBy string `json:"owned_by" example:"vlmd"`
	// Root model id.
	Root string `json:"root,omitempty" example:"qwen3-vl-instruct"`
	// Human-readable description (model directory, device).
	Description string `json:"description,omitempty"`
}

// ModelList wraps the model cards returned by GET /v1/models.
type ModelList struct {
	Object string      `json:"object" example:"list"`
	Data   []ModelCard `json:"data"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// Overall status: healthy or unhealthy.
	// example: healthy
	Status string `json:"status" example:"healthy"`
	// Detail message (load error when unhealthy).
	Details string `json:"details,omitempty"`
	// Served model id.
	Model string `json:"model" example:"qwen3-vl-instruct"`
	// Number of worker slots (bounds resident sessions).
	Workers int `json:"workers" example:"10"`
	// Unix timestamp of the check.
	Timestamp int64 `json:"timestamp" example:"1700000000"`
}

// ServiceInfo is returned by GET /.
type ServiceInfo struct {
	Message        string            `json:"message"`
	Model          string            `json:"model" example:"qwen3-vl-instruct"`
	Workers        int               `json:"max_concurrent" example:"10"`
	APIKeyEnabled  bool              `json:"api_key_enabled"`
	APIKeyHeader   string            `json:"api_key_header,omitempty" example:"Authorization"`
	SupportedMedia map[string]string `json:"supported_media"`
	Endpoints      map[string]string `json:"endpoints"`
	Timestamp      int64             `json:"timestamp"`
}
