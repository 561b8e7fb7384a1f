package store

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"Memora/backend/go/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CollectionContent is the stored content of one collection.
type CollectionContent struct {
	CollectionID int64
	Content      string
}

// CreateCollection 为用户创建一条空的采集记录。
func (s *Store) CreateCollection(ctx context.Context, userID int64) (*models.Collection, error) {
	c := &models.Collection{UserID: userID}
	if err := s.DB.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("创建采集记录失败: %w", err)
	}
	return c, nil
}

// FindCollectionByURL 返回用户最早一条 url 详情等于 rawURL 的采集记录，不存在时返回 ErrNotFound。
func (s *Store) FindCollectionByURL(ctx context.Context, userID int64, rawURL string) (*models.Collection, error) {
	var c models.Collection
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND url_hash = ?", userID, URLHash(rawURL)).
		Order("id ASC").
		First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// URLHash 返回 url 的 SHA-1 十六进制摘要，用作 collections.url_hash 的索引值。
func URLHash(rawURL string) string {
	sum := sha1.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// UpsertDetail 写入一条采集详情，同一 key 已存在时覆盖其值。
func (s *Store) UpsertDetail(ctx context.Context, collectionID int64, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("序列化详情 '%s' 失败: %w", key, err)
	}
	detail := &models.CollectionDetail{
		CollectionID: collectionID,
		Key:          key,
		Value:        datatypes.JSON(raw),
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection_id"}, {Name: "key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"value": detail.Value, "updated_at": time.Now()}),
		}).Create(detail).Error
		if err != nil {
			return err
		}
		// url 详情同步写入可索引的 url_hash，供去重查询使用。
		if u, ok := value.(string); ok && key == models.DetailURL {
			return tx.Model(&models.Collection{}).Where("id = ?", collectionID).Update("url_hash", URLHash(u)).Error
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("写入详情 '%s' 失败: %w", key, err)
	}
	return nil
}

// UpdateCollectionCategory 记录分类结果：分类 ID（或未分类标记）以及逗号拼接的标签。
func (s *Store) UpdateCollectionCategory(ctx context.Context, collectionID, categoryID int64, tags []string) error {
	res := s.DB.WithContext(ctx).Model(&models.Collection{}).
		Where("id = ?", collectionID).
		Updates(map[string]interface{}{
			"category_id": categoryID,
			"tags":        strings.Join(tags, ","),
		})
	if res.Error != nil {
		return fmt.Errorf("更新采集分类失败: %w", res.Error)
	}
	return nil
}

// GetCollection 返回用户拥有的采集记录及其全部详情。
func (s *Store) GetCollection(ctx context.Context, userID, id int64) (*models.Collection, error) {
	var c models.Collection
	err := s.DB.WithContext(ctx).
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListCollections 返回用户的采集记录（按 ID 倒序，最多 limit 条），只预加载 keys 指定的详情。
func (s *Store) ListCollections(ctx context.Context, userID int64, limit int, keys ...string) ([]models.Collection, error) {
	var out []models.Collection
	err := s.DB.WithContext(ctx).
		Preload("Details", func(db *gorm.DB) *gorm.DB {
			return db.Where("`key` IN ?", keys).Order("id ASC")
		}).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询采集记录列表失败: %w", err)
	}
	return out, nil
}

// ContentForCategory 返回用户在某分类下所有采集记录的 content 详情，按采集 ID 升序。
func (s *Store) ContentForCategory(ctx context.Context, userID, categoryID int64) ([]CollectionContent, error) {
	var rows []struct {
		CollectionID int64
		Value        datatypes.JSON
	}
	err := s.DB.WithContext(ctx).
		Table("collection_details AS d").
		Select("d.collection_id, d.value").
		Joins("JOIN collections AS c ON c.id = d.collection_id").
		Where("c.user_id = ? AND c.category_id = ? AND d.`key` = ?", userID, categoryID, models.DetailContent).
		Order("d.collection_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询分类内容失败: %w", err)
	}

	out := make([]CollectionContent, 0, len(rows))
	for _, r := range rows {
		var content string
		if err := json.Unmarshal(r.Value, &content); err != nil || strings.TrimSpace(content) == "" {
			continue
		}
		out = append(out, CollectionContent{CollectionID: r.CollectionID, Content: content})
	}
	return out, nil
}
