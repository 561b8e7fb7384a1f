package models

import (
	"strings"
	"time"
)

// SpeakerRole 定义了消息发送者的角色。
type SpeakerRole string

const (
	SpeakerSystem    SpeakerRole = "system"    // 系统提示词。
	SpeakerUser      SpeakerRole = "user"      // 用户角色。
	SpeakerAssistant SpeakerRole = "assistant" // 助手角色。
	SpeakerModel     SpeakerRole = "model"     // 模型角色。
)

// Part 是消息中的一个片段。流水线只使用纯文本。
type Part struct {
	Text string `json:"text,omitempty"`
}

// Content 包含了构成单个消息的多个部分。
type Content struct {
	Parts []*Part     `json:"parts,omitempty"`
	Role  SpeakerRole `json:"role,omitempty"`
}

// GenerateContentRequest 定义了生成内容的请求结构。
type GenerateContentRequest struct {
	Content []Content `json:"content,omitempty"` // 按顺序排列的消息列表。
}

// NewPromptRequest 使用一条系统提示词和一条用户消息构造请求。
func NewPromptRequest(system, user string) *GenerateContentRequest {
	req := &GenerateContentRequest{}
	if system != "" {
		req.Content = append(req.Content, Content{Role: SpeakerSystem, Parts: []*Part{{Text: system}}})
	}
	req.Content = append(req.Content, Content{Role: SpeakerUser, Parts: []*Part{{Text: user}}})
	return req
}

// GenerateContentResponse 定义了生成内容的响应结构。
// 在流式响应中，Err 只会出现在最后一条消息上，表示流异常终止。
type GenerateContentResponse struct {
	Content      []Content `json:"content,omitempty"`      // 响应的内容列表。
	CreateTime   time.Time `json:"createTime,omitempty"`   // 响应创建时间。
	ResponseID   string    `json:"responseId,omitempty"`   // 响应ID。
	ModelVersion string    `json:"modelVersion,omitempty"` // 模型版本。
	Err          error     `json:"-"`
}

// Text 拼接响应中所有文本片段。
func (r *GenerateContentResponse) Text() string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	for _, c := range r.Content {
		for _, p := range c.Parts {
			if p != nil {
				sb.WriteString(p.Text)
			}
		}
	}
	return sb.String()
}
