package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"vllm-relay/internal/upstream"
)

// Generation prompts for long-context workloads run to megabytes.
const maxBodyBytes = 32 << 20

// generateResponse is the relay's output schema for both modes.
type generateResponse struct {
	Text []string `json:"text"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleGenerate(c echo.Context) error {
	if !s.client.Configured() {
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "vLLM server URL not configured; use --vllm-server-url",
		}
	}

	body, err := decodeRequestBody(c)
	if err != nil {
		return err
	}

	body["model"] = s.cfg.Upstream.Model

	if logged, err := json.Marshal(body); err == nil {
		slog.Info("received generate request", "body", string(logged))
	}

	if streaming, _ := body["stream"].(bool); streaming {
		return s.generateStream(c, body)
	}
	return s.generateBlocking(c, body)
}

func (s *Server) generateBlocking(c echo.Context, body map[string]any) error {
	start := time.Now()

	texts, err := s.client.Complete(c.Request().Context(), body)
	if err != nil {
		observeRequest(modeBlocking, false, start)
		return toRelayError(err)
	}

	observeRequest(modeBlocking, true, start)
	return c.JSON(http.StatusOK, generateResponse{Text: texts})
}

func (s *Server) generateStream(c echo.Context, body map[string]any) error {
	start := time.Now()

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		slog.Error("http writer does not support flushing")
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "server does not support streaming responses",
		}
	}

	upstreamBody, err := s.client.OpenStream(c.Request().Context(), body)
	if err != nil {
		observeRequest(modeStream, false, start)

		var statusErr *upstream.StatusError
		if errors.As(err, &statusErr) {
			// The upstream answered but refused the request; report it
			// in-band as the stream's only chunk.
			beginStream(c)
			_ = writeStreamChunk(c.Response(), flusher, errorResponse{Error: statusErr.Error()})
			return nil
		}
		return toRelayError(err)
	}
	defer upstreamBody.Close()

	beginStream(c)

	stats, err := upstream.DecodeStream(upstreamBody, func(chunk upstream.Chunk) error {
		return writeStreamChunk(c.Response(), flusher, generateResponse{Text: chunk.Texts})
	})
	recordStream(stats)

	if err != nil {
		// Client gone or upstream read failure; the response is already
		// committed, so there is nothing left to report downstream.
		slog.Warn("stream ended early", "error", err)
	}
	observeRequest(modeStream, err == nil, start)
	return nil
}

func beginStream(c echo.Context) {
	header := c.Response().Header()
	header.Set(echo.HeaderContentType, "application/octet-stream")
	header.Set("Cache-Control", "no-cache")
	c.Response().WriteHeader(http.StatusOK)
}

// writeStreamChunk emits one JSON object followed by the null-byte delimiter
// and flushes so the client sees the chunk immediately.
func writeStreamChunk(res *echo.Response, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal stream chunk: %w", err)
	}
	data = append(data, 0x00)

	if _, err := res.Write(data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// toRelayError maps upstream client errors to the wire status/body pairs.
func toRelayError(err error) error {
	var statusErr *upstream.StatusError
	switch {
	case errors.As(err, &statusErr):
		return requestError{Status: statusErr.StatusCode, Message: statusErr.Error()}
	case errors.Is(err, upstream.ErrUnreachable):
		return requestError{Status: http.StatusServiceUnavailable, Message: err.Error()}
	case errors.Is(err, upstream.ErrInvalidResponse):
		return requestError{Status: http.StatusInternalServerError, Message: err.Error()}
	default:
		return requestError{Status: http.StatusInternalServerError, Message: "unexpected error: " + err.Error()}
	}
}

func decodeRequestBody(c echo.Context) (map[string]any, error) {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	var body map[string]any
	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, requestError{Status: http.StatusBadRequest, Message: "request body is required"}
		}
		return nil, requestError{Status: http.StatusBadRequest, Message: fmt.Sprintf("invalid JSON payload: %v", err)}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, requestError{Status: http.StatusBadRequest, Message: "request body must contain a single JSON object"}
	}

	// A JSON null decodes into a nil map without error; treat it like any
	// other non-object body.
	if body == nil {
		return nil, requestError{Status: http.StatusBadRequest, Message: "request body must contain a single JSON object"}
	}
	return body, nil
}
