package models

// RequestInfo 记录触发日志的 HTTP 请求上下文。
type RequestInfo struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	RemoteAddr string `json:"remote_addr"`
	UserAgent  string `json:"user_agent"`
	Status     int    `json:"status,omitempty"`
	LatencyMs  int64  `json:"latency_ms,omitempty"`
}

// ErrorInfo 记录结构化的错误信息。
// Type 对流水线错误取值为失败类别，例如 "fetch_failure"、"persistence_failure"。
type ErrorInfo struct {
	Message    string `json:"message"`
	Type       string `json:"type,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

// NewErrorInfo 从 error 构造 ErrorInfo。
func NewErrorInfo(kind string, err error) ErrorInfo {
	info := ErrorInfo{Type: kind}
	if err != nil {
		info.Message = err.Error()
	}
	return info
}
