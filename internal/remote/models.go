package remote

import (
	"time"

	"gorm.io/datatypes"
)

// ContentItem is one record of a whitelisted collection. The full record
// lives in Data; Status and the timestamps are denormalized for filtering
// and ordering.
type ContentItem struct {
	CollectionName string         `gorm:"primaryKey;size:64"`
	ItemID         string         `gorm:"primaryKey;size:128"`
	Data           datatypes.JSON `gorm:"not null"`
	Status         string         `gorm:"size:16;index"`
	SizeBytes      int64          `gorm:"not null;default:0"`
	CreatedAt      time.Time      `gorm:"autoCreateTime:false;index"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime:false"`
}

func (ContentItem) TableName() string { return "content_items" }

// CollectionMetadata is the per-collection bookkeeping row.
type CollectionMetadata struct {
	CollectionName string    `gorm:"primaryKey;size:64"`
	Count          int64     `gorm:"not null;default:0"`
	LastModified   time.Time `gorm:"autoUpdateTime:false"`
	SizeBytes      int64     `gorm:"not null;default:0"`
}

func (CollectionMetadata) TableName() string { return "collection_metadata" }

// ConfigEntry is one system configuration value.
type ConfigEntry struct {
	Key   string         `gorm:"primaryKey;size:128"`
	Value datatypes.JSON `gorm:"not null"`
}

func (ConfigEntry) TableName() string { return "system_config" }
