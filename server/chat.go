package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/stream"
)

// DefaultSessionID is used when a request carries no session id.
const DefaultSessionID = "default"

// ChatRequest is the body of the chat endpoints and of websocket frames.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (r *ChatRequest) normalize() error {
	r.Message = strings.TrimSpace(r.Message)
	if r.Message == "" {
		return fmt.Errorf("message is required")
	}
	if r.SessionID == "" {
		r.SessionID = DefaultSessionID
	}
	return nil
}

// ChatResponse is the body of a sync chat reply.
type ChatResponse struct {
	Content  string `json:"content"`
	Type     string `json:"type"`
	Finished bool   `json:"finished"`
}

// negotiate picks the stream encoding from the Accept header.
func negotiate(c echo.Context, fallback string) string {
	accept := c.Request().Header.Get(echo.HeaderAccept)
	switch {
	case strings.Contains(accept, stream.ContentTypeSSE):
		return stream.ContentTypeSSE
	case strings.Contains(accept, stream.ContentTypeNDJSON):
		return stream.ContentTypeNDJSON
	default:
		return fallback
	}
}

// writeStream encodes events onto the response until the channel closes.
// After a failed write the remaining events are discarded.
func (s *Server) writeStream(c echo.Context, contentType string, events <-chan core.Event) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, contentType+"; charset=utf-8")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	write := stream.Writer(contentType)
	var writeErr error
	for ev := range events {
		if writeErr != nil {
			continue
		}
		if err := write(res, ev); err != nil {
			writeErr = err
			s.logger.Debug("http.stream.write_failed", "error", err)
		}
	}
	return nil
}

// ChatStream streams a reply as NDJSON, or as SSE when requested.
// POST /chat/stream
func (s *Server) ChatStream(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.normalize(); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	events := s.relay.Send(c.Request().Context(), req.SessionID, req.Message)
	return s.writeStream(c, negotiate(c, stream.ContentTypeNDJSON), events)
}

// Chat replies with the full text at once.
// POST /chat
func (s *Server) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.normalize(); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	reply := s.relay.SendSync(c.Request().Context(), req.SessionID, req.Message)
	return c.JSON(http.StatusOK, ChatResponse{Content: reply, Type: "text", Finished: true})
}

// ClearSession forgets a session and its uploaded documents.
// DELETE /chat/session/:session_id
func (s *Server) ClearSession(c echo.Context) error {
	sessionID := c.Param("session_id")
	existed := s.relay.Clear(sessionID)
	removed := s.documents.Clear(sessionID)

	return c.JSON(http.StatusOK, map[string]any{
		"message":           fmt.Sprintf("Session %s cleared", sessionID),
		"existed":           existed,
		"documents_removed": removed,
	})
}

// Sessions reports the live sessions.
// GET /chat/sessions
func (s *Server) Sessions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"count":    s.relay.Count(),
		"sessions": s.relay.Sessions(),
	})
}

// ChatWebSocket serves chat over a websocket: every text frame from the
// client is a ChatRequest, every canonical event of the reply is sent back
// as one JSON text frame. Requests on one connection are handled in order.
// A disconnect or a failed write cancels the reply in flight.
// GET /chat/ws
func (s *Server) ChatWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("ws.upgrade.failed", "error", err)
		return nil
	}
	defer ws.Close()

	ws.SetReadLimit(1 << 20)

	// the request context of a hijacked connection outlives the peer
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	requests := make(chan ChatRequest)
	go func() {
		defer close(requests)
		defer cancel()
		for {
			var req ChatRequest
			if err := ws.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("ws.read.failed", "error", err)
				}
				return
			}
			select {
			case requests <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	for req := range requests {
		if err := req.normalize(); err != nil {
			if err := s.writeFrame(ws, core.NewErrorEvent("", err)); err != nil {
				return nil
			}
			continue
		}

		if err := s.relayFrames(ctx, ws, req); err != nil {
			s.logger.Debug("ws.write.failed", "error", err)
			return nil
		}
	}
	return nil
}

// relayFrames writes the reply to req as frames. The first failed write
// cancels the reply; the stream is still drained to its terminal event.
func (s *Server) relayFrames(ctx context.Context, ws *websocket.Conn, req ChatRequest) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var writeErr error
	for ev := range s.relay.Send(ctx, req.SessionID, req.Message) {
		if writeErr != nil {
			continue
		}
		if writeErr = s.writeFrame(ws, ev); writeErr != nil {
			cancel()
		}
	}
	return writeErr
}

func (s *Server) writeFrame(ws *websocket.Conn, ev core.Event) error {
	if s.writeTimeout > 0 {
		_ = ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return ws.WriteJSON(ev)
}
