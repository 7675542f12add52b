package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EntityType namespaces the source id of an embedding.
type EntityType string

const (
	EntityCandidateProfile EntityType = "candidateProfile"
	EntityJobPost          EntityType = "jobPost"
	EntityApplication      EntityType = "application"
)

// ParseEntityType accepts the stored names.
func ParseEntityType(s string) (EntityType, bool) {
	t := EntityType(s)
	return t, t.Valid()
}

func (t EntityType) Valid() bool {
	switch t {
	case EntityCandidateProfile, EntityJobPost, EntityApplication:
		return true
	}
	return false
}

// Label names the entity in prompts.
func (t EntityType) Label() string {
	switch t {
	case EntityCandidateProfile:
		return "Candidate Profile"
	case EntityJobPost:
		return "Job Post"
	default:
		return "Application"
	}
}

// Vector is stored as JSON text.
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]float32(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *Vector) Scan(src interface{}) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*v = nil
		return nil
	case string:
		raw = []byte(s)
	case []byte:
		raw = s
	default:
		return fmt.Errorf("cannot scan %T into Vector", src)
	}
	var out []float32
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode vector: %w", err)
	}
	*v = out
	return nil
}

// Embedding is the single vector and text kept per (entity type, source id).
type Embedding struct {
	EmbeddingID uint       `gorm:"primaryKey;column:embedding_id" json:"-"`
	EntityType  EntityType `gorm:"column:entity_type;size:32;not null;uniqueIndex:idx_embeddings_entity,priority:1" json:"entity_type"`
	SourceID    string     `gorm:"column:source_id;size:64;not null;uniqueIndex:idx_embeddings_entity,priority:2" json:"source_id"`
	Vector      Vector     `gorm:"column:embedding;type:text;not null" json:"embedding"`
	Text        string     `gorm:"type:text;not null" json:"text"`
	CreateTime  time.Time  `gorm:"column:create_time;autoCreateTime" json:"create_time"`
	UpdateTime  time.Time  `gorm:"column:update_time;autoUpdateTime" json:"update_time"`
}

func (Embedding) TableName() string {
	return "embeddings"
}
