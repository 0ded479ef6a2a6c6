package handlers

import (
	"bufio"
	"net/http"
	"strings"

	"github.com/ollagate/ollagate/internal/core/domain"
	"github.com/ollagate/ollagate/pkg/pool"
)

const (
	sseDataPrefix = "data: "
	sseDone       = "data: [DONE]\n\n"

	scanBufferSize  = 64 * 1024
	maxScanLineSize = 4 * 1024 * 1024
)

// scanBuffers recycles the per-stream line buffers across relays.
var scanBuffers = func() *pool.Pool[[]byte] {
	p, err := pool.NewLitePool(func() []byte { return make([]byte, scanBufferSize) })
	if err != nil {
		panic(err)
	}
	return p
}()

// relayOutcome summarises one finished stream for the bookkeeping step.
type relayOutcome struct {
	completed bool
	aborted   bool
	failed    bool
	errStr    string
}

// relayStream pumps upstream NDJSON lines through a per-line translator and
// writes each produced event as an SSE frame. The translator returns the
// frame payload (nil skips the line) and whether the line was the terminal
// one.
func (h *Handler) relayStream(w http.ResponseWriter, r *http.Request, up *upstreamResult, requestID string, translate func(line []byte) (any, bool)) relayOutcome {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, r, domain.NewServerError("streaming unsupported"))
		return relayOutcome{failed: true, errStr: "response writer is not a flusher"}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	clientGone := r.Context().Done()

	buf := scanBuffers.Get()
	defer scanBuffers.Put(buf)
	scanner := bufio.NewScanner(up.resp.Body)
	scanner.Buffer(buf, maxScanLineSize)

	outcome := relayOutcome{}
	for scanner.Scan() {
		select {
		case <-clientGone:
			up.resp.Body.Close()
			outcome.aborted = true
			h.logger.Debug("Client disconnected mid-stream", "request_id", requestID)
			return outcome
		default:
		}

		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		event, terminal := translate(line)
		if event == nil {
			h.logger.Debug("Skipped malformed stream line", "request_id", requestID)
			continue
		}

		if !h.writeEvent(w, flusher, event) {
			outcome.aborted = true
			up.resp.Body.Close()
			return outcome
		}
		if terminal {
			outcome.completed = true
		}
	}

	if err := scanner.Err(); err != nil && !outcome.completed {
		outcome.failed = true
		outcome.errStr = err.Error()
		h.logger.Warn("Upstream stream error", "request_id", requestID, "error", err)
		h.writeEvent(w, flusher, map[string]any{
			"error": map[string]any{
				"message": "stream interrupted",
				"type":    domain.ErrTypeStream,
			},
		})
	}

	_, _ = w.Write([]byte(sseDone))
	flusher.Flush()
	return outcome
}

func (h *Handler) writeEvent(w http.ResponseWriter, flusher http.Flusher, event any) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Debug("Failed to encode stream event", "error", err)
		return true
	}
	if _, err := w.Write([]byte(sseDataPrefix)); err != nil {
		return false
	}
	if _, err := w.Write(payload); err != nil {
		return false
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
