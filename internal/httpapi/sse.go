package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"vlmd/internal/manager"
	"vlmd/pkg/types"
)

const sseDone = "data: [DONE]\n\n"

// relayStream forwards a chunk sequence to the client as SSE records: one
// chat.completion.chunk per delta, a terminal record with finish_reason
// "stop" or an inline error record, then the end-of-stream sentinel. The
// response status is already committed when this runs; failures inside the
// sequence arrive as Error chunks, never as panics or status changes.
func relayStream(w http.ResponseWriter, ch <-chan manager.Chunk, id, model string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	created := time.Now().Unix()

	for c := range ch {
		var err error
		switch {
		case c.ErrMessage != "":
			err = writeSSE(w, types.StreamError{
				Error: types.StreamErrorDetail{Message: c.ErrMessage, Type: "stream_error"},
			})
			if err == nil {
				_, err = io.WriteString(w, sseDone)
			}
		case c.FinishReason != "":
			reason := c.FinishReason
			err = writeSSE(w, types.ChatCompletionChunk{
				ID:      id,
				Object:  "chat.completion.chunk",
				Created: time.Now().Unix(),
				Model:   model,
				Choices: []types.ChunkChoice{{FinishReason: &reason}},
			})
			if err == nil {
				_, err = io.WriteString(w, sseDone)
			}
		default:
			err = writeSSE(w, types.ChatCompletionChunk{
				ID:      id,
				Object:  "chat.completion.chunk",
				Created: created,
				Model:   model,
				Choices: []types.ChunkChoice{{Delta: types.DeltaContent{Content: c.Delta}}},
			})
		}
		if err != nil {
			// Client gone; the producer stops via the request context.
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		if c.Terminal() {
			return
		}
		// Yield between chunks so one hot stream cannot monopolize the
		// scheduler.
		runtime.Gosched()
	}
}

func writeSSE(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}
