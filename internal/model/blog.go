package model

import "time"

// BlogPost はブログ記事を表す。
// Contentはサニタイズ済みのHTML。
type BlogPost struct {
	ID          string
	Title       string
	Category    string
	ImageURL    string
	Link        string
	Excerpt     string
	Content     string
	IsFeatured  bool
	PublishedAt time.Time
	UpdatedAt   time.Time
}
