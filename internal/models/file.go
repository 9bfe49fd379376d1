package models

import "time"

// File types. Video and image are assigned from the extension; the others are chosen by the uploader.
const (
	FileTypePoster       = 1
	FileTypePresentation = 2
	FileTypeReport       = 3
	FileTypeAbstract     = 4
	FileTypeVideo        = 5
	FileTypeImage        = 6
)

var fileTypeLabels = map[int]string{
	FileTypePoster:       "poster",
	FileTypePresentation: "presentation",
	FileTypeReport:       "report",
	FileTypeAbstract:     "abstract",
	FileTypeVideo:        "video",
	FileTypeImage:        "image",
}

// FileTypeLabel returns a readable name for a type code.
func FileTypeLabel(t int) string {
	if label, ok := fileTypeLabels[t]; ok {
		return label
	}
	return "other"
}

// File is an uploaded document belonging to exactly one study.
type File struct {
	ID           string    `db:"id"`
	StudyID      string    `db:"study_id"`
	Name         string    `db:"name"`
	Summary      string    `db:"summary"`
	Content      string    `db:"content"`
	Type         int       `db:"type"`
	Filename     string    `db:"filename"`
	PubYear      *int      `db:"pubyear"`
	Hashsum      string    `db:"hashsum"`
	AccessCount  int64     `db:"access_count"`
	PreviewCount int64     `db:"preview_count"`
	CreateAt     time.Time `db:"create_at"`
	GraveState
	ParentGraved bool `db:"parent_graved"`
}

// HiddenFromPublic reports whether non-admins must not see the file: its own grave
// or its parent study's grave hides it.
func (f File) HiddenFromPublic() bool {
	return f.IsGraved() || f.ParentGraved
}

// FileAccess records a user opening a file page or preview.
type FileAccess struct {
	UserID string    `db:"user_id"`
	FileID string    `db:"file_id"`
	At     time.Time `db:"at"`
}
