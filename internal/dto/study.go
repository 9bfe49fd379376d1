package dto

import (
	"time"

	"github.com/noah-isme/research-archive-api/internal/models"
)

// GraveView exposes moderation state to administrators only.
type GraveView struct {
	Reason  string `json:"reason"`
	Deleted bool   `json:"deleted"`
}

func graveView(state models.GraveState, admin bool) *GraveView {
	if !admin {
		return nil
	}
	grave := state.Grave()
	if grave == nil {
		return nil
	}
	return &GraveView{Reason: grave.Reason, Deleted: grave.Deleted}
}

// StudySummary is a study as shown in listings.
type StudySummary struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Summary           string     `json:"summary"`
	Field             int        `json:"field"`
	CreateAt          time.Time  `json:"createAt"`
	UpdateAt          time.Time  `json:"updateAt"`
	TotalAccessCount  int64      `json:"totalAccessCount"`
	TotalPreviewCount int64      `json:"totalPreviewCount"`
	Grave             *GraveView `json:"grave,omitempty"`
	Files             []FileView `json:"files,omitempty"`
}

// NewStudySummary converts a study row. The grave is only shown to admins.
func NewStudySummary(record models.StudyRecord, admin bool) StudySummary {
	return StudySummary{
		ID:                record.ID,
		Name:              record.Name,
		Summary:           record.Summary,
		Field:             record.Field,
		CreateAt:          record.CreateAt,
		UpdateAt:          record.UpdateAt,
		TotalAccessCount:  record.TotalAccessCount,
		TotalPreviewCount: record.TotalPreviewCount,
		Grave:             graveView(record.GraveState, admin),
	}
}

// FileView is a file as shown in listings.
type FileView struct {
	ID           string     `json:"id"`
	StudyID      string     `json:"studyId"`
	Name         string     `json:"name"`
	Summary      string     `json:"summary"`
	Type         int        `json:"type"`
	TypeLabel    string     `json:"typeLabel"`
	PubYear      *int       `json:"pubYear,omitempty"`
	AccessCount  int64      `json:"accessCount"`
	PreviewCount int64      `json:"previewCount"`
	CreateAt     time.Time  `json:"createAt"`
	Grave        *GraveView `json:"grave,omitempty"`
}

// NewFileView converts a file row.
func NewFileView(file models.File, admin bool) FileView {
	return FileView{
		ID:           file.ID,
		StudyID:      file.StudyID,
		Name:         file.Name,
		Summary:      file.Summary,
		Type:         file.Type,
		TypeLabel:    models.FileTypeLabel(file.Type),
		PubYear:      file.PubYear,
		AccessCount:  file.AccessCount,
		PreviewCount: file.PreviewCount,
		CreateAt:     file.CreateAt,
		Grave:        graveView(file.GraveState, admin),
	}
}

// NewFileViews converts a slice of files.
func NewFileViews(files []models.File, admin bool) []FileView {
	views := make([]FileView, 0, len(files))
	for _, f := range files {
		views = append(views, NewFileView(f, admin))
	}
	return views
}

// AuthorView is a credited user.
type AuthorView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// StudyDetail is the single study page.
type StudyDetail struct {
	StudySummary
	HTML      string       `json:"html"`
	Markdown  string       `json:"markdown,omitempty"`
	Tags      []models.Tag `json:"tags"`
	Authors   []AuthorView `json:"authors"`
	Helpful   int          `json:"helpful"`
	Unhelpful int          `json:"unhelpful"`
	UserVote  *bool        `json:"userVote,omitempty"`
	Editable  bool         `json:"editable"`
}

// StudyRequest creates or edits a study.
type StudyRequest struct {
	Name     string   `json:"name" validate:"required,max=200"`
	Summary  string   `json:"summary" validate:"max=2000"`
	Markdown string   `json:"markdown"`
	Field    int      `json:"field" validate:"required,min=1,max=3"`
	Tags     []string `json:"tags" validate:"max=20,dive,required,max=50"`
}

// AuthorRequest credits an additional user on a study.
type AuthorRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// VoteRequest casts a helpful or unhelpful vote.
type VoteRequest struct {
	Helpful *bool `json:"helpful" validate:"required"`
}

// VoteResult is the refreshed vote state after casting.
type VoteResult struct {
	UserVote  bool `json:"userVote"`
	Helpful   int  `json:"helpful"`
	Unhelpful int  `json:"unhelpful"`
}

// SearchResponse is one page of search hits.
type SearchResponse struct {
	Title   string         `json:"title"`
	Studies []StudySummary `json:"studies"`
}

// NewSearchResponse converts a search result page, keeping each hit's matching files.
func NewSearchResponse(result *models.SearchResult, admin bool) SearchResponse {
	resp := SearchResponse{Title: result.Title, Studies: make([]StudySummary, 0, len(result.Studies))}
	for _, hit := range result.Studies {
		summary := NewStudySummary(hit.StudyRecord, admin)
		summary.Files = NewFileViews(hit.Files, admin)
		resp.Studies = append(resp.Studies, summary)
	}
	return resp
}
