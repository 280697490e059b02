package models

import "time"

// ArticleStatus tracks an Article through ingestion and generation.
type ArticleStatus string

const (
	ArticleNew                ArticleStatus = "NEW"
	ArticleFilteredOut        ArticleStatus = "FILTERED_OUT"
	ArticleReadyForGeneration ArticleStatus = "READY_FOR_GENERATION"
	ArticleGenerated          ArticleStatus = "GENERATED"
)

// Valid reports whether s is a known article status.
func (s ArticleStatus) Valid() bool {
	switch s {
	case ArticleNew, ArticleFilteredOut, ArticleReadyForGeneration, ArticleGenerated:
		return true
	}
	return false
}

// Article is a discovered feed entry. SourceURL is the deduplication key.
type Article struct {
	ID             uint          `json:"id" gorm:"primaryKey"`
	SourceURL      string        `json:"source_url" gorm:"size:1000;uniqueIndex;not null"`
	SourceName     string        `json:"source_name" gorm:"size:255"`
	Title          string        `json:"title" gorm:"size:500;not null"`
	Summary        string        `json:"summary" gorm:"type:text"`
	Content        string        `json:"content" gorm:"type:text"`
	PublishedAt    *time.Time    `json:"published_at,omitempty"`
	RelevanceScore int           `json:"relevance_score"`
	IsRelevant     bool          `json:"is_relevant"`
	MatchedTerms   []string      `json:"matched_terms,omitempty" gorm:"serializer:json"`
	Status         ArticleStatus `json:"status" gorm:"size:32;index;not null;default:'NEW'"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// FeedSource is one configured feed.
type FeedSource struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Stats aggregates Item Store counts.
type Stats struct {
	TotalArticles int64 `json:"total_articles"`
	Unprocessed   int64 `json:"unprocessed"`
	FilteredOut   int64 `json:"filtered_out"`
	TotalBlogs    int64 `json:"total_blogs"`
	Drafts        int64 `json:"drafts"`
	Published     int64 `json:"published"`
	Exported      int64 `json:"exported"`
}
