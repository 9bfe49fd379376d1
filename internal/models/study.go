package models

import (
	"strings"
	"time"
)

// Study fields (research areas) accepted on create and update.
const (
	FieldMin = 1
	FieldMax = 3
)

// Study is a research-group record aggregating files, tags and authors.
type Study struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Summary     string    `db:"summary"`
	RawMarkdown string    `db:"raw_markdown"`
	Field       int       `db:"field"`
	CreateAt    time.Time `db:"create_at"`
	UpdateAt    time.Time `db:"update_at"`
	GraveState
}

// HiddenFromPublic reports whether non-admins must not see the study.
func (s Study) HiddenFromPublic() bool {
	return s.IsGraved()
}

// StudyRecord is a study row annotated with aggregate counters over all of its files.
type StudyRecord struct {
	Study
	TotalAccessCount  int64 `db:"total_access_count"`
	TotalPreviewCount int64 `db:"total_preview_count"`
}

// RankedStudy is one entry in a home page ranking widget.
type RankedStudy struct {
	Study
	Score int64 `db:"score"`
	Votes int64 `db:"votes"`
}

// StudyAuthor links a user to a study.
type StudyAuthor struct {
	StudyID string `db:"study_id"`
	UserID  string `db:"user_id"`
}

// TotalAccessCount sums access_count over exactly the given files.
func TotalAccessCount(files []File) int64 {
	var total int64
	for _, f := range files {
		total += f.AccessCount
	}
	return total
}

// TotalPreviewCount sums preview_count over exactly the given files.
func TotalPreviewCount(files []File) int64 {
	var total int64
	for _, f := range files {
		total += f.PreviewCount
	}
	return total
}

// SortColumn selects the primary ordering of search results.
type SortColumn string

const (
	SortUpdateAt          SortColumn = "update_at"
	SortTotalAccessCount  SortColumn = "get_total_access_count"
	SortTotalPreviewCount SortColumn = "get_total_preview_count"
	SortCreateAt          SortColumn = "create_at"
)

// DateRange is an inclusive timestamp window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// SearchParams are the inputs of a study search.
type SearchParams struct {
	Query         string
	UpdateAtRange *DateRange
	CreateAtRange *DateRange
	Field         int
	SortColumn    SortColumn
	Ascending     bool
	Admin         bool
	Page          int
	PerPage       int
}

// Terms splits the query on whitespace.
func (p SearchParams) Terms() []string {
	return strings.Fields(p.Query)
}

// StudyWithFiles is a search hit together with the files to show for it.
type StudyWithFiles struct {
	StudyRecord
	Files []File
}

// SearchResult is an ordered page of hits plus its display title.
type SearchResult struct {
	Studies    []StudyWithFiles
	Title      string
	Pagination *Pagination
}
