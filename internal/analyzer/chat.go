package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"kiosk/internal/logging"
	"kiosk/internal/models"
)

const chatPrompt = `你是一個智慧點餐助手，位於飲料店內。你的主要目標是幫助客戶點餐。

當用戶出現下列情況時，請判斷為點餐意圖：
1. 明確提到特定飲料名稱，例如：珍珠奶茶、紅茶、綠茶等
2. 使用點餐相關詞彙，例如：我要、我想喝、來一杯、點、訂購等
3. 談論甜度或冰量，例如：半糖、少冰、無糖等
4. 詢問菜單或推薦飲料時
5. 表明想要購買或訂購的意願

請以 JSON 格式回應，包含以下字段：
{
    "reply": "對用戶的友善回覆",
    "intent": "chat 或 order",
    "confidence": 0.0到1.0之間的數值
}

不要在回覆中提到你是AI或機器人。保持回覆簡短自然，像真人店員一樣。`

const (
	historyLimit = 20

	replyUnclear  = "我不太明白您的意思，能請您再說一次嗎？"
	replyError    = "抱歉，我現在遇到了一些問題，請稍後再試或直接告訴我您想點什麼飲料。"
	replyGreeting = "您好！請問今天想喝點什麼呢？"
)

// Intents reported by the chat analyzer
const (
	IntentChat  = "chat"
	IntentOrder = "order"
	IntentError = "error"
)

// ChatAnalyzer answers small talk and spots order intent. Without a model it
// answers with a greeting and relies on keyword matching.
type ChatAnalyzer struct {
	model  llms.Model
	orders OrderAnalyzer
	logger logrus.FieldLogger

	mu      sync.Mutex
	history []llms.MessageContent
}

// NewChatAnalyzer creates a chat analyzer. model may be nil.
func NewChatAnalyzer(model llms.Model, orders OrderAnalyzer, logger logrus.FieldLogger) *ChatAnalyzer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ChatAnalyzer{model: model, orders: orders, logger: logger}
}

type chatReply struct {
	Reply      string  `json:"reply"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Chat replies to text. Model failures become an apologetic reply with
// status error rather than a Go error.
func (c *ChatAnalyzer) Chat(ctx context.Context, text string) models.ChatResponse {
	var out models.ChatResponse
	if c.model == nil {
		out = models.ChatResponse{Status: models.StatusSuccess, Reply: replyGreeting, Intent: IntentChat, Confidence: 0.5}
	} else {
		reply, err := c.ask(ctx, text)
		if err != nil {
			c.logger.WithError(err).Error("chat analysis failed")
			return models.ChatResponse{
				Status:  models.StatusError,
				Message: fmt.Sprintf("分析對話時發生錯誤: %v", err),
				Reply:   replyError,
				Intent:  IntentError,
			}
		}
		out = models.ChatResponse{
			Status:     models.StatusSuccess,
			Reply:      reply.Reply,
			Intent:     reply.Intent,
			Confidence: reply.Confidence,
		}
	}

	if out.Reply == "" {
		out.Reply = replyUnclear
	}
	if out.Intent == "" {
		out.Intent = IntentChat
	}

	if c.orders != nil {
		if lines, err := c.orders.Analyze(ctx, text); err == nil && len(lines) > 0 {
			out.Intent = IntentOrder
			out.OrderDetails = lines
		}
	}
	out.IsOrder = out.Intent == IntentOrder
	return out
}

// Reset forgets the conversation history
func (c *ChatAnalyzer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}

func (c *ChatAnalyzer) ask(ctx context.Context, text string) (chatReply, error) {
	c.mu.Lock()
	messages := make([]llms.MessageContent, 0, len(c.history)+2)
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, chatPrompt))
	messages = append(messages, c.history...)
	c.mu.Unlock()
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, text))

	resp, err := c.model.GenerateContent(ctx, messages,
		llms.WithTemperature(0.7),
		llms.WithMaxTokens(600),
		llms.WithJSONMode(),
	)
	if err != nil {
		return chatReply{}, fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return chatReply{}, fmt.Errorf("empty response from model")
	}

	var reply chatReply
	if err := json.Unmarshal([]byte(stripFences(resp.Choices[0].Content)), &reply); err != nil {
		return chatReply{}, fmt.Errorf("failed to parse model reply: %w", err)
	}

	c.mu.Lock()
	c.history = append(c.history,
		llms.TextParts(schema.ChatMessageTypeHuman, text),
		llms.TextParts(schema.ChatMessageTypeAI, reply.Reply),
	)
	if len(c.history) > historyLimit {
		c.history = append([]llms.MessageContent(nil), c.history[len(c.history)-historyLimit:]...)
	}
	c.mu.Unlock()
	return reply, nil
}

// HistoryLen returns the number of remembered messages
func (c *ChatAnalyzer) HistoryLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}
