package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"haven/internal/logging"
)

// Config holds connection settings for an OpenAI-compatible backend.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// OpenAI API compatible streaming client.
type openaiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

// NewOpenAIClient constructs a Client speaking the OpenAI-compatible chat
// completions API with streaming enabled.
func NewOpenAIClient(config Config) Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	timeout := 120 * time.Second
	if config.Timeout > 0 {
		timeout = config.Timeout
	}
	return &openaiClient{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger("OpenAIClient"),
	}
}

// memoryTools declares the two function tools the assistant may call.
func memoryTools() []map[string]any {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":   map[string]any{"type": "string", "description": "Short unique title for the fact"},
			"content": map[string]any{"type": "string", "description": "The fact to remember"},
		},
		"required": []string{"title", "content"},
	}
	return []map[string]any{
		{
			"type": "function",
			"function": map[string]any{
				"name":        toolSaveMemory,
				"description": "Save a durable fact about the user immediately",
				"parameters":  schema,
			},
		},
		{
			"type": "function",
			"function": map[string]any{
				"name":        toolSuggestMemory,
				"description": "Propose a fact to remember; the user decides whether to keep it",
				"parameters":  schema,
			},
		},
	}
}

func (c *openaiClient) Stream(ctx context.Context, req Request, emit EmitFunc) error {
	messages := make([]map[string]string, 0, len(req.Messages)+1)
	if req.Context != "" {
		messages = append(messages, map[string]string{
			"role":    "system",
			"content": "Relevant journal entries:\n\n" + req.Context,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, map[string]string{"role": m.Role, "content": m.Content})
	}

	oaiReq := map[string]any{
		"model":       req.Model,
		"messages":    messages,
		"stream":      true,
		"tools":       memoryTools(),
		"tool_choice": "auto",
	}
	body, err := json.Marshal(oaiReq)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	c.logger.Debug("POST %s model=%s history=%d context_bytes=%d", endpoint, req.Model, len(req.Messages), len(req.Context))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug("request failed: %v", err)
		return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		c.logger.Debug("backend status %d: %s", resp.StatusCode, string(respBody))
		return fmt.Errorf("%w: status %d", ErrBackendUnreachable, resp.StatusCode)
	}

	return c.drainStream(resp.Body, emit)
}

type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string          `json:"content"`
			ToolCalls []toolCallDelta `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

type toolAccumulator struct {
	name      string
	arguments strings.Builder
}

// drainStream parses SSE "data:" frames line by line. The scanner only hands
// over complete lines, so a half-received frame is never interpreted. Chunks
// that fail to decode are skipped; the stream carries on.
func (c *openaiClient) drainStream(body io.Reader, emit EmitFunc) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	accumulators := make(map[int]*toolAccumulator)

	// flushTools emits accumulated tool calls in index order and resets.
	// Tool argument deltas stream in pieces; a call is only complete once the
	// model moves on (content resumes, a new call starts, or the stream ends).
	flushTools := func() error {
		if len(accumulators) == 0 {
			return nil
		}
		indexes := make([]int, 0, len(accumulators))
		for idx := range accumulators {
			indexes = append(indexes, idx)
		}
		sort.Ints(indexes)
		for _, idx := range indexes {
			acc := accumulators[idx]
			frame, ok := c.toolFrame(acc)
			if !ok {
				continue
			}
			if err := emit(frame); err != nil {
				return err
			}
		}
		accumulators = make(map[int]*toolAccumulator)
		return nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			c.logger.Debug("skipping malformed stream chunk: %v", err)
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if text := choice.Delta.Content; text != "" {
			if err := flushTools(); err != nil {
				return err
			}
			if err := emit(Frame{Type: FrameToken, Text: text}); err != nil {
				return err
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			acc, ok := accumulators[tc.Index]
			if !ok {
				// A fresh index means any earlier call is complete.
				if err := flushTools(); err != nil {
					return err
				}
				acc = &toolAccumulator{}
				accumulators[tc.Index] = acc
			}
			if tc.Function.Name != "" {
				acc.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				acc.arguments.WriteString(tc.Function.Arguments)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read response stream: %w", err)
	}

	// EOF without [DONE] still ends the exchange cleanly.
	if err := flushTools(); err != nil {
		return err
	}
	return emit(Frame{Type: FrameEnd})
}

// toolFrame converts an accumulated call into a frame. Arguments that fail to
// parse get one repair attempt; a call that still will not parse, or names an
// unknown tool, is dropped like any other malformed frame.
func (c *openaiClient) toolFrame(acc *toolAccumulator) (Frame, bool) {
	var frameType FrameType
	switch acc.name {
	case toolSaveMemory:
		frameType = FrameToolSave
	case toolSuggestMemory:
		frameType = FrameToolSuggest
	default:
		c.logger.Debug("ignoring unknown tool call %q", acc.name)
		return Frame{}, false
	}

	raw := acc.arguments.String()
	var args struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			c.logger.Debug("dropping unparseable tool arguments: %v", err)
			return Frame{}, false
		}
		if err := json.Unmarshal([]byte(repaired), &args); err != nil {
			c.logger.Debug("dropping tool arguments after repair: %v", err)
			return Frame{}, false
		}
	}
	if strings.TrimSpace(args.Title) == "" {
		c.logger.Debug("dropping %s call with empty title", acc.name)
		return Frame{}, false
	}
	return Frame{Type: frameType, Title: args.Title, Content: args.Content}, true
}
