package model

import "time"

// Course は販売されるコースを表す。
// PriceはNGN単位（Paystackへはkobo単位に変換して渡す）。
type Course struct {
	ID          string
	Title       string
	Description string
	ImageURL    string
	Category    string
	Level       string
	Duration    string
	Modules     int
	Price       int64
	CreatedAt   time.Time
}

// Lesson はコースに属するレッスンを表す。
// Orderの昇順で再生される。
type Lesson struct {
	ID       string
	CourseID string
	Title    string
	VideoURL string
	Content  string
	Order    int
}
