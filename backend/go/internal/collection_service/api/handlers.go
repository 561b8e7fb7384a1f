package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"Memora/backend/go/internal/collection_service/service"
	"Memora/backend/go/internal/models"
	"Memora/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Handler 封装了采集服务所有 API endpoint 的处理函数。
type Handler struct {
	ingestor       *service.Ingestor
	collections    *service.CollectionService
	knowledgeBases *service.KnowledgeBaseService
	search         *service.SearchService
	checks         map[string]HealthCheck
	log            *logger.Logger
}

// NewHandler 创建一个新的 Handler 实例。checks 为 /healthz 探测的依赖，可以为空。
func NewHandler(in *service.Ingestor, cs *service.CollectionService, kbs *service.KnowledgeBaseService, ss *service.SearchService, checks map[string]HealthCheck, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{ingestor: in, collections: cs, knowledgeBases: kbs, search: ss, checks: checks, log: log}
}

// IngestURLRequest 是 POST /collections/url 的请求体。
type IngestURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// IngestURL 采集一个网页，并以 text/event-stream 推送每个阶段的进度事件。
// 参数错误与重复提交在开始推流前以普通 JSON 错误返回。
func (h *Handler) IngestURL(c *gin.Context) {
	var req IngestURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	job, err := h.ingestor.Acquire(ctx, userID(c), req.URL)
	if err != nil {
		h.abort(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	events := make(chan *models.ProgressEvent, 4)
	go func() {
		// 失败已经以 ingestion_failed 事件推送给调用方，并由流水线记录日志。
		_ = job.Run(ctx, events)
	}()

	writable := true
	for ev := range events {
		if !writable {
			continue
		}
		if err := writeEvent(c.Writer, ev); err != nil {
			writable = false
			continue
		}
		c.Writer.Flush()
	}
}

func writeEvent(w gin.ResponseWriter, ev *models.ProgressEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}

// GetCollection 返回一条收藏及其解码后的详情。
func (h *Handler) GetCollection(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	view, err := h.collections.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SearchCollections 让模型从用户的收藏中挑出与 query 参数最匹配的一条。
// 没有匹配时返回 200，collection 与 category 为 null。
func (h *Handler) SearchCollections(c *gin.Context) {
	res, err := h.search.Search(c.Request.Context(), userID(c), c.Query("query"))
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CreateKnowledgeBase 为分类启动知识库构建，立即返回 202 与知识库名称。
func (h *Handler) CreateKnowledgeBase(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	name, err := h.knowledgeBases.Create(c.Request.Context(), userID(c), id)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"knowledge_base_id": name})
}

// QueryKnowledgeBase 基于分类的知识库回答 query 参数中的问题。
func (h *Handler) QueryKnowledgeBase(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	answer, err := h.knowledgeBases.Query(c.Request.Context(), userID(c), id, c.Query("query"))
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

// Health 逐个探测依赖，任意一个失败时返回 503。
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	result := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			result[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": result})
}

func (h *Handler) abort(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WithTrace(logger.TraceIDFromContext(c.Request.Context()), formatID(userID(c))).
			WithError(models.NewErrorInfo("request_failure", err)).
			Error(fmt.Sprintf("%s %s failed", c.Request.Method, c.FullPath()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidURL),
		errors.Is(err, service.ErrEmptyQuestion),
		errors.Is(err, service.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrCollectionNotFound),
		errors.Is(err, service.ErrCategoryNotFound),
		errors.Is(err, service.ErrKnowledgeBaseMissing),
		errors.Is(err, service.ErrNoCollections):
		return http.StatusNotFound
	case errors.Is(err, service.ErrIngestionInProgress), errors.Is(err, service.ErrKnowledgeBaseExists):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func userID(c *gin.Context) int64 {
	return c.GetInt64(ctxUserID)
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
