package dto

import (
	"time"

	"github.com/noah-isme/research-archive-api/internal/models"
)

// FileDetail is the single file page.
type FileDetail struct {
	FileView
	StudyName        string    `json:"studyName"`
	PreviewURL       string    `json:"previewUrl"`
	PreviewExpiresAt time.Time `json:"previewExpiresAt"`
}

// FileUploadRequest carries the form fields sent with an upload.
type FileUploadRequest struct {
	Summary string `form:"summary" validate:"max=2000"`
	Type    int    `form:"type" validate:"omitempty,min=1,max=4"`
	PubYear *int   `form:"pubyear" validate:"omitempty,min=1900,max=2999"`
}

// FileEditRequest edits file metadata.
type FileEditRequest struct {
	Summary string `json:"summary" validate:"max=2000"`
	Type    int    `json:"type" validate:"omitempty,min=1,max=4"`
	PubYear *int   `json:"pubYear" validate:"omitempty,min=1900,max=2999"`
}

// ModerationRequest unpublishes or deletes a record.
type ModerationRequest struct {
	Type   string `json:"type" validate:"required,oneof=STUDY FILE NEWS TAG"`
	ID     string `json:"id" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
	Delete bool   `json:"delete"`
}

// ModerationResult reports the state after a moderation action.
type ModerationResult struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Reason  string `json:"reason,omitempty"`
	Deleted bool   `json:"deleted"`
}

// TagDetail lists the visible studies carrying a tag.
type TagDetail struct {
	Tag     models.Tag     `json:"tag"`
	Studies []StudySummary `json:"studies"`
}

// TagUpdateRequest edits a tag.
type TagUpdateRequest struct {
	Name string `json:"name" validate:"required,max=50"`
	Tips string `json:"tips" validate:"max=2000"`
}

// NewsView is an announcement with rendered body.
type NewsView struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	HTML     string    `json:"html,omitempty"`
	CreateAt time.Time `json:"createAt"`
}

// NewsRequest creates an announcement.
type NewsRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Markdown string `json:"markdown" validate:"required"`
}

// ConvertRequest renders markdown without storing it.
type ConvertRequest struct {
	Markdown string `json:"markdown"`
}

// RankedStudyView is one row of a ranking widget.
type RankedStudyView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Field int    `json:"field"`
	Score int64  `json:"score"`
	Votes int64  `json:"votes,omitempty"`
}

// HomeView aggregates the home page widgets.
type HomeView struct {
	Title       string            `json:"title"`
	AccessRank  []RankedStudyView `json:"accessRank"`
	PreviewRank []RankedStudyView `json:"previewRank"`
	HelpfulRank []RankedStudyView `json:"helpfulRank"`
	RecentNews  []NewsView        `json:"recentNews"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// MyPage summarises a user's own activity.
type MyPage struct {
	User           models.UserInfo `json:"user"`
	Studies        []StudySummary  `json:"studies"`
	VisitedFiles   []FileView      `json:"visitedFiles"`
	HelpfulStudies []StudySummary  `json:"helpfulStudies"`
}
