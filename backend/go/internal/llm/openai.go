package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"Memora/backend/go/internal/models"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAI 是一个用于 OpenAI (或兼容接口) 的 LLM 客户端。
type OpenAI struct {
	client *openai.Client // OpenAI 客户端实例。
	model  string         // 要使用的模型名称。
}

// NewOpenAI 创建一个新的 OpenAI 客户端。baseURL 为空时使用官方地址。
func NewOpenAI(model, apiKey, baseURL string) (*OpenAI, error) {
	if model == "" {
		return nil, errors.New("openai model name is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// GenerateContent 使用 OpenAI API 生成内容。
func (o *OpenAI) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	resp, err := o.client.CreateChatCompletion(ctx, o.toOpenAIRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return textResponse("", resp.ID, resp.Model), nil
	}
	return textResponse(resp.Choices[0].Message.Content, resp.ID, resp.Model), nil
}

// GenerateContentStream 使用 OpenAI API 以流式方式生成内容。
func (o *OpenAI) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	openaiReq := o.toOpenAIRequest(req)
	openaiReq.Stream = true

	stream, err := o.client.CreateChatCompletionStream(ctx, openaiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion stream: %w", err)
	}

	respChan := make(chan *models.GenerateContentResponse)
	go func() {
		defer close(respChan)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				send(ctx, respChan, &models.GenerateContentResponse{Err: fmt.Errorf("chat completion stream failed: %w", err)})
				return
			}
			var delta string
			if len(resp.Choices) > 0 {
				delta = resp.Choices[0].Delta.Content
			}
			if !send(ctx, respChan, textResponse(delta, resp.ID, resp.Model)) {
				return
			}
		}
	}()

	return respChan, nil
}

// toOpenAIRequest 将内部请求格式转换为 OpenAI 格式。
func (o *OpenAI) toOpenAIRequest(req *models.GenerateContentRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Content))
	for _, content := range req.Content {
		for _, part := range content.Parts {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openAIRole(content.Role),
				Content: part.Text,
			})
		}
	}
	return openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	}
}

func openAIRole(role models.SpeakerRole) string {
	switch role {
	case models.SpeakerSystem:
		return openai.ChatMessageRoleSystem
	case models.SpeakerAssistant, models.SpeakerModel:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
