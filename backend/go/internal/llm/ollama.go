package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"Memora/backend/go/internal/models"

	olla "github.com/ollama/ollama/api"
)

// Ollama 是一个与本地 Ollama 服务交互的 LLM 客户端，使用 chat 接口以保留系统提示词。
type Ollama struct {
	client *olla.Client // Ollama 客户端实例。
	model  string       // 要使用的模型名称。
}

// NewOllama 创建一个新的 Ollama 客户端。
//
// 参数:
//
//	model: 要使用的模型名称。
//	baseURL: Ollama 服务地址，为空时默认为 "http://localhost:11434"。
//	timeout: HTTP 客户端超时时间，为 0 时使用 120 秒。
func NewOllama(model, baseURL string, timeout time.Duration) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	hc := &http.Client{Timeout: timeout}
	return &Ollama{client: olla.NewClient(parsedURL, hc), model: model}, nil
}

// GenerateContent 以非流式方式生成内容。
func (o *Ollama) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	stream := false
	var result *olla.ChatResponse
	err := o.client.Chat(ctx, &olla.ChatRequest{
		Model:    o.model,
		Messages: toOllamaMessages(req),
		Stream:   &stream,
	}, func(resp olla.ChatResponse) error {
		result = &resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with ollama: %w", err)
	}
	if result == nil {
		return textResponse("", "", o.model), nil
	}
	return textResponse(result.Message.Content, "", result.Model), nil
}

// GenerateContentStream 以流式方式生成内容。
func (o *Ollama) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	stream := true
	respChan := make(chan *models.GenerateContentResponse)

	go func() {
		defer close(respChan)
		err := o.client.Chat(ctx, &olla.ChatRequest{
			Model:    o.model,
			Messages: toOllamaMessages(req),
			Stream:   &stream,
		}, func(resp olla.ChatResponse) error {
			if !send(ctx, respChan, textResponse(resp.Message.Content, "", resp.Model)) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			send(ctx, respChan, &models.GenerateContentResponse{Err: fmt.Errorf("ollama stream failed: %w", err)})
		}
	}()

	return respChan, nil
}

func toOllamaMessages(req *models.GenerateContentRequest) []olla.Message {
	messages := make([]olla.Message, 0, len(req.Content))
	for _, content := range req.Content {
		for _, part := range content.Parts {
			messages = append(messages, olla.Message{
				Role:    openAIRole(content.Role),
				Content: part.Text,
			})
		}
	}
	return messages
}
