package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ollagate/ollagate/internal/core/domain"
	"github.com/ollagate/ollagate/internal/core/ports"
	"github.com/ollagate/ollagate/internal/util"
)

const errorBodyLimit = 200

// upstreamResult hands a live 2xx upstream response to the caller. The caller
// owns Body, must call done() exactly once when finished with it, and owns
// success/failure recording from that point on.
type upstreamResult struct {
	resp      *http.Response
	selection *ports.Selection
	done      func()
}

// proxy runs the retry loop: pick a backend, re-marshal the payload with the
// remapped model, forward, and classify the outcome. Upstream 401/403 moves
// to the next backend; other HTTP failures surface immediately; transport
// errors retry until attempts run out.
func (h *Handler) proxy(ctx context.Context, requestID, apiPath, model string, isStream bool, marshal func(upstreamModel string) ([]byte, error)) (*upstreamResult, error) {
	timeout := h.cfg.ResponseTimeout
	if isStream {
		timeout = h.cfg.ConnectTimeout
	}

	var lastErr error
	for attempt := 0; attempt <= h.cfg.MaxRetries; attempt++ {
		sel, err := h.selector.Select(ctx, model)
		if err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		payload, err := marshal(sel.Model)
		if err != nil {
			sel.Release()
			return nil, domain.NewServerError("failed to encode upstream request")
		}

		// Streaming gets a connect deadline only; once headers arrive the
		// body must be allowed to run for as long as the client stays.
		attemptCtx, cancel := context.WithCancel(ctx)
		deadline := time.AfterFunc(timeout, cancel)

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, util.BuildAPIURL(sel.BaseURL, apiPath), bytes.NewReader(payload))
		if err != nil {
			deadline.Stop()
			cancel()
			sel.Release()
			return nil, domain.NewServerError("failed to build upstream request")
		}
		req.Header.Set("Content-Type", "application/json")
		if sel.Key != "" {
			req.Header.Set("Authorization", "Bearer "+sel.Key)
		}

		resp, err := h.client.Do(req)
		if err != nil {
			deadline.Stop()
			cancel()
			errStr := err.Error()
			h.recordFailure(sel, errStr)
			sel.Release()
			h.logger.Warn("Upstream request failed",
				"request_id", requestID,
				"base_url", sel.BaseURL,
				"attempt", attempt+1,
				"error", errStr)
			lastErr = domain.NewGatewayError(http.StatusGatewayTimeout, domain.ErrTypeUpstream, "upstream unreachable")
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			detail := readErrorBody(resp.Body)
			resp.Body.Close()
			deadline.Stop()
			cancel()

			errStr := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, detail)
			h.recordFailure(sel, errStr)
			sel.Release()
			h.logger.Warn("Upstream returned error",
				"request_id", requestID,
				"base_url", sel.BaseURL,
				"status", resp.StatusCode,
				"attempt", attempt+1)

			lastErr = domain.NewUpstreamError(resp.StatusCode, errStr)
			if (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) && attempt < h.cfg.MaxRetries {
				continue
			}
			return nil, lastErr
		}

		if isStream {
			deadline.Stop()
		}

		return &upstreamResult{
			resp:      resp,
			selection: sel,
			done: func() {
				resp.Body.Close()
				deadline.Stop()
				cancel()
				sel.Release()
			},
		}, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, domain.NewGatewayError(http.StatusGatewayTimeout, domain.ErrTypeUpstream, "all upstream attempts failed")
}

// proxyJSON is the non-streaming path: run the loop, drain the body and
// decode into the target. Success recording stays with the caller so token
// accounting happens after translation.
func (h *Handler) proxyJSON(ctx context.Context, requestID, apiPath, model string, marshal func(string) ([]byte, error), into any) (*ports.Selection, error) {
	result, err := h.proxy(ctx, requestID, apiPath, model, false, marshal)
	if err != nil {
		return nil, err
	}
	defer result.done()

	body, err := io.ReadAll(result.resp.Body)
	if err != nil {
		h.recordFailure(result.selection, err.Error())
		return nil, domain.NewUpstreamError(http.StatusBadGateway, "failed to read upstream response")
	}
	if err := json.Unmarshal(body, into); err != nil {
		h.recordFailure(result.selection, err.Error())
		return nil, domain.NewUpstreamError(http.StatusBadGateway, "invalid upstream response")
	}
	return result.selection, nil
}

func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, errorBodyLimit))
	if err != nil {
		return ""
	}
	return string(data)
}
