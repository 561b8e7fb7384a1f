package models

// EventType 定义了采集流水线推送给调用方的事件类型。
type EventType string

const (
	EventCollectionExists  EventType = "collection_exists"
	EventCollectionCreated EventType = "collection_created"
	EventContentFetched    EventType = "content_fetched"
	EventCategoryAnalyzed  EventType = "category_analyzed"
	EventSummaryChunk      EventType = "summary_chunk"
	EventIndexCompleted    EventType = "index_completed"
	EventIngestionFailed   EventType = "ingestion_failed"
)

// ProgressEvent 是通过 SSE 推送的单个事件，序列化为 {"type": ..., "data": {...}}。
type ProgressEvent struct {
	Type EventType              `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// Terminal 判断该事件之后流是否应当结束。
func (e *ProgressEvent) Terminal() bool {
	switch e.Type {
	case EventCollectionExists, EventIndexCompleted, EventIngestionFailed:
		return true
	}
	return false
}

// DomainEvent 是发布到消息队列的业务事件。
type DomainEvent struct {
	Type      string                 `json:"type"`
	UserID    int64                  `json:"user_id"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp int64                  `json:"timestamp"`
}
