package models

import (
	"fmt"

	"github.com/google/uuid"
)

const SourceNewsAPI = "newsapi"

type NewsArticle struct {
	ArticleID        string  `gorm:"primaryKey;type:varchar(36);comment:uuid derived from ticker and url" json:"article_id"`
	Ticker           string  `gorm:"type:varchar(16);index;not null;comment:ticker symbol" json:"ticker"`
	Title            *string `gorm:"type:text;comment:headline" json:"title"`
	Description      *string `gorm:"type:text;comment:summary" json:"description"`
	Content          *string `gorm:"type:text;comment:truncated body" json:"content"`
	Author           *string `gorm:"type:text;comment:byline" json:"author"`
	SourceName       *string `gorm:"type:text;comment:publisher" json:"source_name"`
	URL              *string `gorm:"column:url;type:text;comment:canonical url" json:"url"`
	PublishedAt      *string `gorm:"type:varchar(19);index;comment:publish time UTC" json:"published_at"`
	Source           string  `gorm:"type:varchar(32);not null;comment:provenance tag" json:"source"`
	IngestedAt       string  `gorm:"type:varchar(19);not null;comment:capture time UTC" json:"ingested_at"`
	DataQualityScore float64 `gorm:"not null;default:0;comment:batch quality score 0-100" json:"data_quality_score"`
}

func (NewsArticle) TableName() string {
	return "raw_news"
}

// ArticleIDFor derives a stable id from the ticker and article url. The same
// article fetched twice for one ticker maps to one row; an article shared by
// two tickers gets a row per ticker.
func ArticleIDFor(ticker, url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(ticker+"\x1f"+url)).String()
}

func (a *NewsArticle) MergeKey() []any {
	return []any{a.ArticleID}
}

func (a *NewsArticle) Stamp(entityKey, ingestedAt string) {
	a.Ticker = entityKey
	a.IngestedAt = ingestedAt
	if a.Source == "" {
		a.Source = SourceNewsAPI
	}
	if a.URL != nil && *a.URL != "" {
		a.ArticleID = ArticleIDFor(a.Ticker, *a.URL)
	}
}

func (a *NewsArticle) Normalize() error {
	if a.PublishedAt == nil || *a.PublishedAt == "" {
		return nil
	}
	ts, err := NormalizeTimestamp(*a.PublishedAt)
	if err != nil {
		return fmt.Errorf("published_at: %w", err)
	}
	a.PublishedAt = strPtr(ts)
	return nil
}

func (a *NewsArticle) SetQualityScore(score float64) {
	a.DataQualityScore = score
}
