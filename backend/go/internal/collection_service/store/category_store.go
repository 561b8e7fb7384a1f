package store

import (
	"context"
	"fmt"

	"Memora/backend/go/internal/models"
)

// ListCategories 返回用户的全部分类，按 ID 升序。
func (s *Store) ListCategories(ctx context.Context, userID int64) ([]models.Category, error) {
	var categories []models.Category
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("查询分类失败: %w", err)
	}
	return categories, nil
}

// FindCategoryByName 按名称查找用户的分类，不存在时返回 ErrNotFound。
func (s *Store) FindCategoryByName(ctx context.Context, userID int64, name string) (*models.Category, error) {
	var c models.Category
	if err := s.DB.WithContext(ctx).Where("user_id = ? AND name = ?", userID, name).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// CreateCategory 创建分类。(user_id, name) 冲突时返回 ErrDuplicate。
func (s *Store) CreateCategory(ctx context.Context, userID int64, name, emoji string) (*models.Category, error) {
	c := &models.Category{UserID: userID, Name: name, Emoji: emoji}
	if err := s.DB.WithContext(ctx).Create(c).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("创建分类失败: %w", err)
	}
	return c, nil
}

// GetCategory 返回用户拥有的分类。
func (s *Store) GetCategory(ctx context.Context, userID, id int64) (*models.Category, error) {
	var c models.Category
	if err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// SetKnowledgeBase 仅在分类尚未绑定知识库时写入 name，否则返回 ErrKnowledgeBaseExists。
func (s *Store) SetKnowledgeBase(ctx context.Context, categoryID int64, name string) error {
	res := s.DB.WithContext(ctx).Model(&models.Category{}).
		Where("id = ? AND knowledge_base_id IS NULL", categoryID).
		Update("knowledge_base_id", name)
	if res.Error != nil {
		return fmt.Errorf("绑定知识库失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.DB.WithContext(ctx).Model(&models.Category{}).Where("id = ?", categoryID).Count(&count).Error; err != nil {
			return fmt.Errorf("查询分类失败: %w", err)
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrKnowledgeBaseExists
	}
	return nil
}
