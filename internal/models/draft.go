package models

import (
	"fmt"
	"time"
)

// DraftStatus tracks a Draft through publication and export.
type DraftStatus string

const (
	DraftDraft     DraftStatus = "DRAFT"
	DraftPublished DraftStatus = "PUBLISHED"
	DraftExported  DraftStatus = "EXPORTED"
)

// Valid reports whether s is a known draft status.
func (s DraftStatus) Valid() bool {
	switch s {
	case DraftDraft, DraftPublished, DraftExported:
		return true
	}
	return false
}

// Provider recorded on drafts produced without the generation service.
const OfflineProvider = "offline-template"

// Draft is a generated post derived from one Article.
type Draft struct {
	ID                  uint        `json:"id" gorm:"primaryKey"`
	ArticleID           uint        `json:"article_id" gorm:"index;not null"`
	Headline            string      `json:"headline" gorm:"size:500;not null"`
	MetaDescription     string      `json:"meta_description" gorm:"size:320"`
	Body                string      `json:"body" gorm:"type:text"`
	Tags                []string    `json:"tags" gorm:"serializer:json"`
	FeaturedImagePrompt string      `json:"featured_image_prompt" gorm:"type:text"`
	PromptUsed          string      `json:"prompt_used" gorm:"type:text"`
	Provider            string      `json:"provider" gorm:"size:100"`
	Simulated           bool        `json:"simulated"`
	FallbackReason      string      `json:"fallback_reason,omitempty" gorm:"type:text"`
	Status              DraftStatus `json:"status" gorm:"size:32;index;not null;default:'DRAFT'"`
	RemoteID            string      `json:"remote_id,omitempty" gorm:"size:100"`
	RemoteURL           string      `json:"remote_url,omitempty" gorm:"size:1000"`
	PublishSimulated    bool        `json:"publish_simulated"`
	ExportPath          string      `json:"export_path,omitempty" gorm:"size:1000"`
	GeneratedAt         time.Time   `json:"generated_at"`
	PublishedAt         *time.Time  `json:"published_at,omitempty"`
	ExportedAt          *time.Time  `json:"exported_at,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// IsPublished reports whether the draft has a recorded remote write.
func (d *Draft) IsPublished() bool {
	return d.Status == DraftPublished
}

// DraftPatch is the payload that travels with a status transition.
type DraftPatch struct {
	RemoteID         string
	RemoteURL        string
	PublishSimulated bool
	ExportPath       string
	// Force allows replacing an existing publication.
	Force bool
	At    time.Time
}

// ApplyTransition moves d to status to, applying patch. A PUBLISHED draft
// always carries a remote id and is only re-published with Force. Exporting
// a published draft records the file but keeps it PUBLISHED.
func (d *Draft) ApplyTransition(to DraftStatus, patch DraftPatch) error {
	at := patch.At
	if at.IsZero() {
		at = time.Now()
	}

	switch to {
	case DraftPublished:
		if patch.RemoteID == "" {
			return fmt.Errorf("%w: published draft needs a remote id", ErrInvalidTransition)
		}
		if d.Status == DraftPublished && !patch.Force {
			return fmt.Errorf("draft %d already published: %w", d.ID, ErrConflict)
		}
		d.Status = DraftPublished
		d.RemoteID = patch.RemoteID
		d.RemoteURL = patch.RemoteURL
		d.PublishSimulated = patch.PublishSimulated
		d.PublishedAt = &at
	case DraftExported:
		if patch.ExportPath == "" {
			return fmt.Errorf("%w: export needs a file path", ErrInvalidTransition)
		}
		if d.Status != DraftPublished {
			d.Status = DraftExported
		}
		d.ExportPath = patch.ExportPath
		d.ExportedAt = &at
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, to)
	}
	return nil
}
