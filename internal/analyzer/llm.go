package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/llms/openai"

	"kiosk/internal/config"
	"kiosk/internal/logging"
	"kiosk/internal/models"
)

const orderPrompt = `你是一位飲料店的點餐人員，請分析客人的點餐需求並回傳 JSON 格式的訂單內容。
規則：
1. 請分析出飲料名稱、大小、甜度、冰量和數量
2. sugar只能是(全糖, 七分糖, 半糖, 三分糖, 微糖, 無糖)，客人沒說就留空
3. ice只能是(正常冰, 少冰, 微冰, 去冰, 熱飲, 溫)，客人沒說就留空
4. size只能是(大杯, 中杯, 小杯)，客人沒說就留空
5. quantity是數量，預設是1
6. drink_name 必須是菜單上的飲料：%s
7. 直接回傳JSON陣列，不要加入markdown標記

回傳格式範例：
[
    {
        "drink_name": "珍珠奶茶",
        "size": "大杯",
        "sugar": "半糖",
        "ice": "少冰",
        "quantity": 1
    }
]`

// GitHubModelsURL is the OpenAI-compatible endpoint of GitHub Models
const GitHubModelsURL = "https://models.inference.ai.azure.com"

const defaultAzureAPIVersion = "2024-02-01"

// NewOpenAI creates the chat model used by both analyzers. The github and
// azure providers speak the same API behind a different endpoint.
func NewOpenAI(cfg config.LLMConfig) (*openai.LLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is required")
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}

	switch cfg.Provider {
	case "github":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = GitHubModelsURL
		}
		opts = append(opts, openai.WithBaseURL(baseURL))
	case "azure":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("azure openai endpoint is required")
		}
		version := cfg.APIVersion
		if version == "" {
			version = defaultAzureAPIVersion
		}
		opts = append(opts,
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithAPIVersion(version),
		)
	default:
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	return llm, nil
}

// LLMAnalyzer asks a language model for order lines and falls back to keyword
// matching when the model fails or answers with something unusable.
type LLMAnalyzer struct {
	model    llms.Model
	keywords *KeywordAnalyzer
	menu     *models.Menu
	defaults models.Defaults
	logger   logrus.FieldLogger
}

// NewLLMAnalyzer creates an analyzer backed by model
func NewLLMAnalyzer(model llms.Model, menu *models.Menu, defaults models.Defaults, logger logrus.FieldLogger) *LLMAnalyzer {
	if menu == nil {
		menu = models.DefaultMenu()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &LLMAnalyzer{
		model:    model,
		keywords: NewKeywordAnalyzer(menu, defaults),
		menu:     menu,
		defaults: defaults,
		logger:   logger,
	}
}

func (a *LLMAnalyzer) Analyze(ctx context.Context, text string) ([]models.OrderLine, error) {
	// a bare drink name needs no model
	if a.keywords.IsSimpleOrder(text) {
		return a.keywords.Analyze(ctx, text)
	}

	lines, err := a.ask(ctx, text)
	if err != nil {
		a.logger.WithError(err).Warn("llm order analysis failed, using keyword analysis")
		return a.keywords.Analyze(ctx, text)
	}
	return lines, nil
}

func (a *LLMAnalyzer) ask(ctx context.Context, text string) ([]models.OrderLine, error) {
	prompt := fmt.Sprintf(orderPrompt, strings.Join(a.menu.Names(), "、"))
	resp, err := a.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, prompt),
		llms.TextParts(schema.ChatMessageTypeHuman, text),
	}, llms.WithTemperature(0.3))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	raw := stripFences(resp.Choices[0].Content)
	var lines []models.OrderLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		var single models.OrderLine
		if err2 := json.Unmarshal([]byte(raw), &single); err2 != nil {
			return nil, fmt.Errorf("failed to parse model reply %q: %w", raw, err)
		}
		lines = []models.OrderLine{single}
	}

	draft := models.NormalizeDraft(lines, a.defaults)
	if len(draft) == 0 {
		return nil, fmt.Errorf("model reply %q has no valid lines", raw)
	}
	return draft, nil
}

// stripFences removes a ``` or ```json wrapper around a model reply
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
