package llm

import (
	"context"
	"fmt"

	"Memora/backend/go/internal/config"
	"Memora/backend/go/internal/models"
)

// LLM 定义了所有大型语言模型客户端必须实现的通用接口。
//
// GenerateContentStream 返回的通道在流结束后关闭；流异常终止时，
// 最后一条消息的 Err 字段非空。调用方取消 ctx 后通道同样会被关闭。
type LLM interface {
	GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error)
}

// NewClient 是一个工厂函数，根据提供的配置创建并返回一个实现了 LLM 接口的客户端。
func NewClient(cfg config.LLMConfig) (LLM, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.OpenAI.Model, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	case "ollama":
		return NewOllama(cfg.Ollama.Model, cfg.Ollama.BaseURL, config.Duration(cfg.Timeout, 0))
	case "gemini":
		return NewGemini(context.Background(), cfg.Gemini.Model, cfg.Gemini.APIKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// send 将 resp 写入通道，ctx 取消时放弃写入并返回 false。
func send(ctx context.Context, ch chan<- *models.GenerateContentResponse, resp *models.GenerateContentResponse) bool {
	select {
	case ch <- resp:
		return true
	case <-ctx.Done():
		return false
	}
}

func textResponse(text, id, model string) *models.GenerateContentResponse {
	return &models.GenerateContentResponse{
		Content: []models.Content{{
			Parts: []*models.Part{{Text: text}},
			Role:  models.SpeakerModel,
		}},
		ResponseID:   id,
		ModelVersion: model,
	}
}
