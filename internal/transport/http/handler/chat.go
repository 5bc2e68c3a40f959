package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/JanhviHarwani/access-ed-backend/internal/app"
	"github.com/JanhviHarwani/access-ed-backend/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type ChatRequest struct {
	SessionID string `json:"session_id" binding:"max=64"`
	Message   string `json:"message" binding:"required,max=4096"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.chatService.HandleMessage(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
			return
		}
		response.OK(c, gin.H{
			"session_id": req.SessionID,
			"answer":     app.TurnFailedAnswer,
		})
		return
	}

	response.OK(c, result)
}

// ChatStream answers one turn over SSE: answer deltas as data events, then a
// done event carrying the full turn result.
func (h *ChatHandler) ChatStream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	result, err := h.chatService.HandleMessageStream(c.Request.Context(), req.SessionID, req.Message, func(chunk string) error {
		if _, writeErr := c.Writer.Write([]byte("data: " + sanitizeSSE(chunk) + "\n\n")); writeErr != nil {
			return writeErr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if _, writeErr := c.Writer.Write([]byte("event: error\ndata: " + sanitizeSSE(app.TurnFailedAnswer) + "\n\n")); writeErr == nil {
			flusher.Flush()
		}
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if _, writeErr := c.Writer.Write([]byte("event: done\ndata: " + sanitizeSSE(string(payload)) + "\n\n")); writeErr == nil {
		flusher.Flush()
	}
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	return strings.ReplaceAll(replaced, "\n", "\\n")
}

func (h *ChatHandler) ResetSession(c *gin.Context) {
	sessionID := c.Param("id")
	if err := h.chatService.ResetSession(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "reset session failed")
		return
	}
	response.OK(c, gin.H{"reset_session_id": sessionID})
}
