package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/keyfindings/backend/internal/keyfindings"
	"github.com/keyfindings/backend/internal/storage/models"
	"github.com/keyfindings/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine *keyfindings.Engine
}

func NewWebSocketHandler(engine *keyfindings.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
	}
}

// jsonConn is the part of *websocket.Conn the session loop uses.
type jsonConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
}

type wsRequest struct {
	Type string `json:"type"`
	ReportRequest
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	h.serve(c)
}

// serve handles messages until a read or write fails.
func (h *WebSocketHandler) serve(c jsonConn) {
	for {
		var msg wsRequest
		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "generate" {
			if err := h.sendError(c, "unsupported message type", ""); err != nil {
				logger.Error("Failed to write WebSocket message", zap.Error(err))
				break
			}
			continue
		}

		logger.Info("Processing WebSocket report request",
			zap.String("tool", msg.Tool),
			zap.Strings("sources", msg.Sources),
		)

		if err := h.generate(c, msg.ReportRequest); err != nil {
			logger.Error("Failed to write WebSocket message", zap.Error(err))
			break
		}
	}
}

func (h *WebSocketHandler) generate(c jsonConn, req ReportRequest) error {
	ctx, cancel := context.WithTimeout(context.Background(), generationTimeout)
	defer cancel()

	status := "Checking cache..."
	if req.ForceRefresh {
		status = "Generating report..."
	}
	if err := h.sendStatus(c, status); err != nil {
		return err
	}

	report, hit, err := h.engine.GetOrGenerate(ctx, req.toEngine())
	if err != nil {
		return h.sendError(c, "generation failed", reasonOf(err))
	}

	for _, s := range sections(report) {
		if err := c.WriteJSON(map[string]interface{}{
			"type":    "section",
			"name":    s[0],
			"content": s[1],
		}); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":      "complete",
		"report":    report,
		"cache_hit": hit,
	})
}

func sections(r *models.CachedReport) [][2]string {
	return [][2]string{
		{"executive_summary", r.ExecutiveSummary},
		{"principal_findings", r.PrincipalFindings},
		{"pca_analysis", r.PCAAnalysis},
	}
}

func (h *WebSocketHandler) sendStatus(c jsonConn, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    "status",
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c jsonConn, errorMsg, reason string) error {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}
	if reason != "" {
		msg["reason"] = reason
	}

	return c.WriteJSON(msg)
}
