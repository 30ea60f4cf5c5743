package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vlmd/internal/manager"
	"vlmd/internal/media"
	"vlmd/pkg/types"
)

// Service defines the generation methods required by the HTTP API layer.
type Service interface {
	Generate(ctx context.Context, req manager.Request) (string, error)
	GenerateStream(ctx context.Context, req manager.Request) (<-chan manager.Chunk, error)
	Warmup(ctx context.Context) error
	Ready() bool
	Workers() int
}

// Options carries static serving metadata and the auth contract.
type Options struct {
	Model        string
	ModelDir     string
	APIKey       string
	APIKeyHeader string
	APIKeyPrefix string
}

// serverBaseCtx is a process-level context that can be canceled on shutdown.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts returns a context canceled when either a or b is done. The
// cancel func must be called to release the goroutine when the handler ends.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
			cancel()
		case <-b.Done():
			cancel()
		}
	}()
	return ctx, cancel
}

// NewMux builds the HTTP handler: the OpenAI-compatible surface under /v1
// (auth-protected), plus info, health and metrics endpoints.
func NewMux(svc Service, res *media.Resolver, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.ServiceInfo{
			Message:       "vlmd multimodal inference service running",
			Model:         opts.Model,
			Workers:       svc.Workers(),
			APIKeyEnabled: opts.APIKey != "",
			APIKeyHeader:  opts.APIKeyHeader,
			SupportedMedia: map[string]string{
				"local_file": "file:// URL, absolute or relative path",
				"image":      "jpg/jpeg/png/bmp/gif/webp",
				"video":      "mp4/avi/mov/mkv/flv/wmv",
			},
			Endpoints: map[string]string{
				"chat":    "/v1/chat/completions",
				"media":   "/v1/media/describe",
				"models":  "/v1/models",
				"health":  "/health",
				"metrics": "/metrics",
			},
			Timestamp: time.Now().Unix(),
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp := types.HealthResponse{
			Status:    "healthy",
			Model:     opts.Model,
			Workers:   svc.Workers(),
			Timestamp: time.Now().Unix(),
		}
		if !svc.Ready() {
			if err := svc.Warmup(r.Context()); err != nil {
				resp.Status = "unhealthy"
				resp.Details = "engine load failed: " + err.Error()
			}
		}
		writeJSON(w, resp)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(APIKeyAuth(opts.APIKeyHeader, opts.APIKeyPrefix, opts.APIKey))

		v1.Get("/models", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, types.ModelList{Object: "list", Data: []types.ModelCard{modelCard(opts)}})
		})

		v1.Get("/models/{id}", func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "id") != opts.Model {
				writeJSONError(w, http.StatusNotFound, "model not found")
				return
			}
			writeJSON(w, modelCard(opts))
		})

		v1.Post("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
			handleChat(w, r, svc, res, opts)
		})

		v1.Post("/media/describe", func(w http.ResponseWriter, r *http.Request) {
			handleDescribe(w, r, svc, res, opts)
		})
	})

	MountSwagger(r)
	return r
}

func modelCard(opts Options) types.ModelCard {
	return types.ModelCard{
		ID:          opts.Model,
		Object:      "model",
		Created:     time.Now().Unix(),
		OwnedBy:     "vlmd",
		Root:        opts.Model,
		Description: fmt.Sprintf("multimodal instruct model served from %s", opts.ModelDir),
	}
}

func handleChat(w http.ResponseWriter, r *http.Request, svc Service, res *media.Resolver, opts Options) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Messages) == 0 {
		writeJSONError(w, http.StatusBadRequest, "at least one message is required")
		return
	}
	model := req.Model
	if model == "" {
		model = opts.Model
	}

	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	prompt, ref, err := res.FromMessages(ctx, req.Messages)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}

	start := time.Now()
	rid := middleware.GetReqID(r.Context())
	zlog.Info().Str("request_id", rid).Str("path", r.URL.Path).
		Bool("stream", req.Stream).Str("media", mediaKind(ref)).Msg("chat start")

	mreq := manager.Request{Prompt: prompt, Media: ref, Stream: req.Stream}
	if req.Stream {
		ch, err := svc.GenerateStream(ctx, mreq)
		if err != nil {
			endLog(rid, start, err)
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		relayStream(w, ch, completionID(), model)
		endLog(rid, start, nil)
		return
	}

	text, err := svc.Generate(ctx, mreq)
	if err != nil {
		endLog(rid, start, err)
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	endLog(rid, start, nil)
	writeJSON(w, types.ChatCompletionResponse{
		ID:      completionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []types.ChatChoice{{
			Message:      types.AssistantMessage{Role: "assistant", Content: text},
			FinishReason: "stop",
		}},
		Usage: wordUsage(prompt, text),
	})
}

func handleDescribe(w http.ResponseWriter, r *http.Request, svc Service, res *media.Resolver, opts Options) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	prompt := r.FormValue("prompt")
	if strings.TrimSpace(prompt) == "" {
		prompt = media.DefaultDescribePrompt
	}
	stream, _ := strconv.ParseBool(r.FormValue("stream"))

	ref, err := res.FromUpload(header.Header.Get("Content-Type"), header.Filename, file)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}

	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	start := time.Now()
	rid := middleware.GetReqID(r.Context())
	zlog.Info().Str("request_id", rid).Str("path", r.URL.Path).
		Str("filename", header.Filename).Str("media", string(ref.Kind)).Msg("describe start")

	mreq := manager.Request{Prompt: prompt, Media: ref, Stream: stream}
	if stream {
		ch, err := svc.GenerateStream(ctx, mreq)
		if err != nil {
			endLog(rid, start, err)
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		relayStream(w, ch, completionID(), opts.Model)
		endLog(rid, start, nil)
		return
	}

	kind := ref.Kind
	text, err := svc.Generate(ctx, mreq)
	if err != nil {
		endLog(rid, start, err)
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	endLog(rid, start, nil)
	writeJSON(w, types.DescribeResponse{
		Status:      "success",
		Description: text,
		Metadata: types.DescribeMetadata{
			Filename:              header.Filename,
			MediaType:             string(kind),
			Prompt:                prompt,
			ProcessingTimeSeconds: time.Since(start).Seconds(),
			Model:                 opts.Model,
		},
	})
}

func completionID() string {
	return fmt.Sprintf("chatcmpl-%d", time.Now().UnixNano())
}

// wordUsage counts whitespace-separated words, not tokenizer tokens.
func wordUsage(prompt, completion string) types.Usage {
	p := len(strings.Fields(prompt))
	c := len(strings.Fields(completion))
	return types.Usage{PromptTokens: p, CompletionTokens: c, TotalTokens: p + c}
}

func mediaKind(ref *media.Reference) string {
	if ref == nil {
		return string(media.KindText)
	}
	return string(ref.Kind)
}

func endLog(rid string, start time.Time, err error) {
	ev := zlog.Info().Str("request_id", rid).Dur("dur", time.Since(start))
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("request end")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
