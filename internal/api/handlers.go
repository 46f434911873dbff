package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"kiosk/internal/analyzer"
	"kiosk/internal/backend"
	"kiosk/internal/database"
	"kiosk/internal/models"
	"kiosk/internal/tts"
)

// Texts returned to the kiosk
const (
	msgEmptyText       = "請輸入訂單內容"
	msgAnalyzeFailed   = "分析訂單時發生錯誤，請稍後再試"
	msgOrderFailed     = "訂單處理失敗"
	msgOrderInProgress = "訂單處理中，請稍候"
	msgOrderCreated    = "成功建立 %d/%d 筆訂單"
	msgNoSpeechText    = "未提供文字"
	msgNoTopDrinks     = "尚無資料"
)

func errorReply(message string) gin.H {
	return gin.H{"status": models.StatusError, "message": message}
}

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{"status": "ok", "push_clients": s.hub.Clients()}
	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleMenu(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": s.deps.Menu.Items()})
}

func (s *Server) handleAnalyzeText(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, errorReply(msgEmptyText))
		return
	}

	lines, err := s.deps.Orders.Analyze(c.Request.Context(), req.Text)
	switch {
	case errors.Is(err, analyzer.ErrUnrecognized):
		c.JSON(http.StatusOK, errorReply(err.Error()))
		return
	case err != nil:
		s.logger.WithError(err).Error("order analysis failed")
		c.JSON(http.StatusInternalServerError, errorReply(msgAnalyzeFailed))
		return
	}

	c.JSON(http.StatusOK, models.AnalyzeResponse{
		Status:       models.StatusSuccess,
		OrderDetails: models.NormalizeDraft(lines, s.deps.Defaults),
	})
}

func (s *Server) handleAnalyzeChat(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, errorReply(msgEmptyText))
		return
	}
	c.JSON(http.StatusOK, s.deps.Chat.Chat(c.Request.Context(), req.Text))
}

// handleConfirmOrder stores one row per cup and announces the order as
// pending. A request repeating an Idempotency-Key gets the first answer.
func (s *Server) handleConfirmOrder(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorReply(msgOrderFailed))
		return
	}
	draft := models.NormalizeDraft(req.OrderDetails, s.deps.Defaults)
	if len(draft) == 0 {
		c.JSON(http.StatusBadRequest, errorReply(msgOrderFailed))
		return
	}

	// a client that timed out will come back with the same key, so the
	// outcome is recorded even after the request context ends
	record := context.WithoutCancel(ctx)

	key := c.GetHeader(backend.IdempotencyHeader)
	if key != "" {
		claimed, err := s.deps.Guard.Claim(ctx, key)
		if err != nil {
			s.logger.WithError(err).Warn("idempotency guard unavailable, processing without it")
			key = ""
		} else if !claimed {
			s.replay(c, key)
			return
		}
	}

	orders, err := s.deps.Store.CreateOrders(draft)
	if err != nil {
		s.logger.WithError(err).Error("failed to store order")
		if key != "" {
			if err := s.deps.Guard.Release(record, key); err != nil {
				s.logger.WithError(err).Warn("failed to release idempotency key")
			}
		}
		s.deps.Metrics.Confirm("failed", 0)
		c.JSON(http.StatusInternalServerError, errorReply(msgOrderFailed))
		return
	}

	full := orders[0].OrderNumber
	resp := models.ConfirmResponse{
		Status:          models.StatusSuccess,
		Message:         fmt.Sprintf(msgOrderCreated, len(orders), len(orders)),
		OrderNumber:     database.DisplayNumber(full),
		FullOrderNumber: full,
	}

	if key != "" {
		if data, err := json.Marshal(resp); err == nil {
			if err := s.deps.Guard.Save(record, key, data); err != nil {
				s.logger.WithError(err).Warn("failed to save idempotent response")
			}
		}
	}

	s.deps.Metrics.Confirm("created", len(orders))
	s.monitor.RecordOrder(full, len(orders))
	s.logger.WithFields(logrus.Fields{
		"order_number": full,
		"cups":         len(orders),
	}).Info("order created")

	s.publish(record, models.StatusEvent{OrderNumber: full, Status: models.OrderStatusPending})
	c.JSON(http.StatusOK, resp)
}

func (s *Server) replay(c *gin.Context, key string) {
	data, done, err := s.deps.Guard.Load(c.Request.Context(), key)
	if err != nil || !done {
		c.JSON(http.StatusConflict, errorReply(msgOrderInProgress))
		return
	}
	s.deps.Metrics.Confirm("replayed", 0)
	s.logger.WithField("idempotency_key", key).Info("replaying confirmed order")
	c.Header("Idempotent-Replayed", "true")
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (s *Server) publish(ctx context.Context, ev models.StatusEvent) {
	if err := s.deps.Bus.Publish(ctx, ev); err != nil {
		s.logger.WithError(err).WithField("order_number", ev.OrderNumber).Error("failed to publish status event")
		return
	}
	s.deps.Metrics.StatusEvent(string(ev.Status))
	s.monitor.RecordStatus(ev.OrderNumber, string(ev.Status))
}

func (s *Server) handleTopDrinks(c *gin.Context) {
	fallback := []database.DrinkCount{{Name: msgNoTopDrinks, Count: 0}}

	top, err := s.deps.Store.TopDrinks(database.MonthStart(s.now()), 3)
	if err != nil {
		s.logger.WithError(err).Warn("failed to read top drinks")
		top = fallback
	}
	if len(top) == 0 {
		top = fallback
	}
	c.JSON(http.StatusOK, gin.H{"status": models.StatusSuccess, "data": top})
}

func (s *Server) handleGetSpeech(c *gin.Context) {
	var req models.SpeechRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, models.SpeechResponse{Error: msgNoSpeechText})
		return
	}
	if req.Style == "" {
		req.Style = "default"
	}

	name, err := s.deps.Speech.Synthesize(c.Request.Context(), req.Text, req.Style, req.Rate)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, tts.ErrDisabled) {
			code = http.StatusServiceUnavailable
		} else {
			s.logger.WithError(err).Error("speech synthesis failed")
		}
		c.JSON(code, models.SpeechResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.SpeechResponse{Success: true, AudioURL: "/temp_audio/" + name})
}
