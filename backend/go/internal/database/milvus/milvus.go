package milvus

import (
	"context"
	"fmt"
	"log"
	"sync"

	"Memora/backend/go/internal/config"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// 知识库集合的字段名称。
const (
	FieldID        = "id"
	FieldText      = "text"
	FieldEmbedding = "embedding"

	idMaxLength   = 64
	textMaxLength = 65535
)

var (
	instance *MilvusClient
	once     sync.Once
	initErr  error
)

// MilvusClient 包含了 Milvus 客户端实例和相关配置。
type MilvusClient struct {
	Client client.Client        // Milvus 客户端实例。
	Config *config.MilvusConfig // Milvus 配置。
}

// GetClient 使用单例模式创建并返回一个 Milvus 客户端实例。
func GetClient(ctx context.Context, cfg *config.MilvusConfig) (*MilvusClient, error) {
	once.Do(func() {
		c, err := client.NewClient(ctx, client.Config{
			Address:  cfg.Address,
			Username: cfg.Username,
			Password: cfg.Password,
		})
		if err != nil {
			initErr = fmt.Errorf("无法连接到 Milvus: %w", err)
			return
		}
		log.Println("✅ 成功连接到 Milvus!")
		instance = &MilvusClient{Client: c, Config: cfg}
	})
	return instance, initErr
}

// Close 安全地关闭与 Milvus 的连接。
func (c *MilvusClient) Close() {
	if c != nil && c.Client != nil {
		c.Client.Close()
		log.Println("ℹ️ 已安全关闭 Milvus 连接。")
	}
}

// HealthCheck 检查 Milvus 连接的健康状况。
func (c *MilvusClient) HealthCheck(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return fmt.Errorf("milvus client is nil")
	}
	if _, err := c.Client.ListCollections(ctx); err != nil {
		return fmt.Errorf("milvus health check failed: %w", err)
	}
	return nil
}

// CreateKnowledgeBaseCollection 创建一个知识库集合 (id, text, embedding)，建立索引并加载到内存。
//
// 参数:
//
//	ctx: 上下文。
//	name: 集合名称，只能包含字母、数字和下划线。
//	dim: 向量维度。
func (c *MilvusClient) CreateKnowledgeBaseCollection(ctx context.Context, name string, dim int) error {
	schema := entity.NewSchema().
		WithName(name).
		WithDescription("knowledge base chunks").
		WithField(entity.NewField().WithName(FieldID).WithDataType(entity.FieldTypeVarChar).
			WithIsPrimaryKey(true).WithMaxLength(idMaxLength)).
		WithField(entity.NewField().WithName(FieldText).WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(textMaxLength)).
		WithField(entity.NewField().WithName(FieldEmbedding).WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dim)))

	if err := c.Client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("创建集合 '%s' 失败: %w", name, err)
	}

	idx, err := BuildIndex(c.Config.Index)
	if err != nil {
		return err
	}
	if err := c.Client.CreateIndex(ctx, name, FieldEmbedding, idx, false); err != nil {
		return fmt.Errorf("为集合 '%s' 创建索引失败: %w", name, err)
	}
	if err := c.Client.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("加载 Milvus 集合 '%s' 失败: %w", name, err)
	}
	return nil
}

// BuildIndex 从配置构建索引实体。
func BuildIndex(indexCfg config.IndexConfig) (entity.Index, error) {
	metricType := MetricType(indexCfg)

	switch indexCfg.IndexType {
	case "IVF_FLAT":
		return entity.NewIndexIvfFlat(metricType, intParam(indexCfg.Params, "nlist", 128))
	case "IVF_SQ8":
		return entity.NewIndexIvfSQ8(metricType, intParam(indexCfg.Params, "nlist", 128))
	case "HNSW":
		return entity.NewIndexHNSW(metricType,
			intParam(indexCfg.Params, "M", 16),
			intParam(indexCfg.Params, "efConstruction", 200))
	case "AUTOINDEX", "":
		return entity.NewIndexAUTOINDEX(metricType)
	default:
		return nil, fmt.Errorf("不支持的索引类型: %s", indexCfg.IndexType)
	}
}

// SearchParam 返回与索引类型匹配的搜索参数。
func SearchParam(indexCfg config.IndexConfig) (entity.SearchParam, error) {
	switch indexCfg.IndexType {
	case "IVF_FLAT", "IVF_SQ8":
		return entity.NewIndexIvfFlatSearchParam(intParam(indexCfg.Params, "nprobe", 16))
	case "HNSW":
		return entity.NewIndexHNSWSearchParam(intParam(indexCfg.Params, "ef", 64))
	default:
		return entity.NewIndexAUTOINDEXSearchParam(1)
	}
}

// MetricType 返回配置中的度量类型，默认 COSINE。
func MetricType(indexCfg config.IndexConfig) entity.MetricType {
	if indexCfg.MetricType == "" {
		return entity.COSINE
	}
	return entity.MetricType(indexCfg.MetricType)
}

// intParam 读取整型参数；YAML 解析出的数字可能是 int 或 float64。
func intParam(params map[string]interface{}, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}
