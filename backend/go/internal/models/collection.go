package models

import (
	"time"

	"gorm.io/datatypes"
)

// UncategorizedID marks a collection whose content matched no category.
const UncategorizedID int64 = -1

// Column widths, in characters, of the LLM-derived fields.
const (
	MaxTagsLength         = 255
	MaxCategoryNameLength = 50
	MaxEmojiLength        = 10
)

// Detail keys written by the ingestion pipeline.
const (
	DetailURL     = "url"
	DetailTitle   = "title"
	DetailContent = "content"
	DetailSummary = "summary"
)

// Collection is one ingested, user-owned item.
// CategoryID stays nil until classification finishes, after which it holds a
// category id or UncategorizedID.
type Collection struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"index;not null" json:"user_id"`
	CategoryID *int64    `gorm:"index" json:"category_id"`
	Tags       string    `gorm:"size:255" json:"tags"`
	URLHash    string    `gorm:"size:40;index" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Details []CollectionDetail `gorm:"foreignKey:CollectionID" json:"-"`
}

// CollectionDetail is a single named attribute of a Collection.
type CollectionDetail struct {
	ID           int64          `gorm:"primaryKey;autoIncrement" json:"-"`
	CollectionID int64          `gorm:"uniqueIndex:idx_collection_key;not null" json:"collection_id"`
	Key          string         `gorm:"uniqueIndex:idx_collection_key;size:64;not null" json:"key"`
	Value        datatypes.JSON `json:"value"`
	CreatedAt    time.Time      `json:"-"`
	UpdatedAt    time.Time      `json:"-"`
}

// Category is a user-scoped named bucket with an optional knowledge base.
// The (UserID, Name) pair is unique.
type Category struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          int64     `gorm:"uniqueIndex:idx_user_category;not null" json:"user_id"`
	Name            string    `gorm:"uniqueIndex:idx_user_category;size:50;not null" json:"name"`
	Emoji           string    `gorm:"size:10" json:"emoji"`
	KnowledgeBaseID *string   `gorm:"size:64" json:"knowledge_base_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasKnowledgeBase reports whether a knowledge base has been stamped on the category.
func (c *Category) HasKnowledgeBase() bool {
	return c.KnowledgeBaseID != nil && *c.KnowledgeBaseID != ""
}

// CollectionView is a Collection with its details decoded, as returned to API callers.
type CollectionView struct {
	Collection
	Details map[string]interface{} `json:"details"`
}

// SearchResult is the collection a search settled on. Collection and Category
// are nil when nothing matched.
type SearchResult struct {
	Collection *CollectionView `json:"collection"`
	Category   *Category       `json:"category"`
	Query      string          `json:"query"`
	Confidence string          `json:"confidence"`
	Reason     string          `json:"reason"`
}

// KnowledgeBaseAnswer is the result of a question answered from a category's knowledge base.
type KnowledgeBaseAnswer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}
