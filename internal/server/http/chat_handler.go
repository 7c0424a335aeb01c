package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"haven/internal/chat"
	"haven/internal/llm"
)

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []llm.Message `json:"messages"`
	ContextEntries []string      `json:"context_entries"`
}

func (s *Server) exchangeRequest(c *gin.Context, req chatRequest) chat.ExchangeRequest {
	model := req.Model
	if model == "" {
		model = s.defaultModel
	}
	return chat.ExchangeRequest{
		Model:          model,
		History:        req.Messages,
		ContextEntries: req.ContextEntries,
		Passphrase:     passphrase(c),
	}
}

// trackEvent registers suggestions with the reconciler and counts the event.
// Registration happens before the event leaves the server, so a client acting
// on a suggestion immediately will find it pending.
func (s *Server) trackEvent(ev chat.Event) {
	if ev.Type == chat.EventMemorySuggested {
		s.suggestions.Propose(chat.Suggestion{ID: ev.SuggestionID, Title: ev.Title, Content: ev.Content})
	}
	s.metrics.RecordStreamEvent(string(ev.Type))
}

// handleChatSSE streams one exchange as server-sent events, one data frame
// per chat event, closing after the terminal event.
func (s *Server) handleChatSSE(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := s.gate.Verify(c.Request.Context(), passphrase(c)); err != nil {
		respondVaultError(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		respondError(c, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events := s.session.Stream(c.Request.Context(), s.exchangeRequest(c, req))

	// An exchange that dies before producing anything is a plain HTTP failure,
	// not a one-event stream.
	first, ok := <-events
	if !ok {
		c.Status(http.StatusOK)
		return
	}
	if first.Type == chat.EventError && first.ErrorCode == chat.ErrCodeBackendUnreachable {
		respondError(c, http.StatusBadGateway, "assistant backend unreachable")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	writeEvent := func(ev chat.Event) bool {
		s.trackEvent(ev)
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("marshal event: %v", err)
			return true
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			s.logger.Debug("client dropped SSE connection: %v", err)
			return false
		}
		flusher.Flush()
		return true
	}

	if !writeEvent(first) {
		return
	}
	for ev := range events {
		if !writeEvent(ev) {
			return
		}
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Single-user local server; CORS governs the browser surface.
		return true
	},
}

// handleChatWS runs exchanges over a websocket. Each client text message is a
// chat request; events stream back as JSON messages until the terminal event,
// then the next request may follow on the same connection.
func (s *Server) handleChatWS(c *gin.Context) {
	if _, err := s.gate.Verify(c.Request.Context(), passphrase(c)); err != nil {
		respondVaultError(c, err)
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read: %v", err)
			}
			return
		}

		events := s.session.Stream(c.Request.Context(), s.exchangeRequest(c, req))
		for ev := range events {
			s.trackEvent(ev)
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("websocket write: %v", err)
				return
			}
		}
	}
}
