package models

import "time"

// DefaultTagTips is stored for tags created without a description.
const DefaultTagTips = "user added tag"

// Tag labels studies.
type Tag struct {
	ID       string    `db:"id" json:"id"`
	Name     string    `db:"name" json:"name"`
	Tips     string    `db:"tips" json:"tips"`
	CreateAt time.Time `db:"create_at" json:"create_at"`
}

// StudyTag is a study/tag link row.
type StudyTag struct {
	StudyID string `db:"study_id"`
	Tag
}

// Vote is one user's opinion of a study.
type Vote struct {
	ID       string    `db:"id"`
	UserID   string    `db:"user_id"`
	StudyID  string    `db:"study_id"`
	Helpful  bool      `db:"helpful"`
	CreateAt time.Time `db:"create_at"`
}

// VoteCounts aggregates the votes of a study.
type VoteCounts struct {
	Helpful   int `db:"helpful" json:"helpful"`
	Unhelpful int `db:"unhelpful" json:"unhelpful"`
}

// Score is helpful minus unhelpful.
func (v VoteCounts) Score() int {
	return v.Helpful - v.Unhelpful
}

// News is an announcement shown on the home page.
type News struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	RawMarkdown string    `db:"raw_markdown"`
	Content     string    `db:"content"`
	AuthorID    *string   `db:"author_id"`
	CreateAt    time.Time `db:"create_at"`
}
