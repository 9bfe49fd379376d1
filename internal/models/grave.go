package models

import (
	"errors"
	"time"
)

// GraveTarget names the kind of record a grave is attached to.
type GraveTarget string

const (
	GraveTargetStudy GraveTarget = "STUDY"
	GraveTargetFile  GraveTarget = "FILE"
)

var (
	// ErrGraveDeleted means the record was already physically deleted; the state is terminal.
	ErrGraveDeleted = errors.New("already deleted")
	// ErrGraveUnpublished means an unpublish was requested for a record that is already unpublished.
	ErrGraveUnpublished = errors.New("already unpublished")
)

// Grave is the moderation marker attached to a study or file.
type Grave struct {
	Reason   string    `db:"reason" json:"reason"`
	Deleted  bool      `db:"deleted" json:"deleted"`
	CreateAt time.Time `db:"create_at" json:"create_at"`
}

// NextGrave applies a moderation request to the current grave (nil when none exists).
//
//	none            + any     -> new grave with deleted=requestDelete
//	unpublished     + unpub   -> ErrGraveUnpublished
//	unpublished     + delete  -> deleted
//	deleted         + any     -> ErrGraveDeleted
func NextGrave(current *Grave, reason string, requestDelete bool, now time.Time) (Grave, error) {
	if current == nil {
		return Grave{Reason: reason, Deleted: requestDelete, CreateAt: now}, nil
	}
	if current.Deleted {
		return *current, ErrGraveDeleted
	}
	if !requestDelete {
		return *current, ErrGraveUnpublished
	}
	return Grave{Reason: reason, Deleted: true, CreateAt: current.CreateAt}, nil
}

// GraveState carries the optional grave columns joined onto a study or file row.
type GraveState struct {
	GraveReason  *string `db:"grave_reason" json:"-"`
	GraveDeleted *bool   `db:"grave_deleted" json:"-"`
}

// IsGraved reports whether a grave exists, in either state.
func (g GraveState) IsGraved() bool {
	return g.GraveDeleted != nil
}

// Grave returns the grave as a value object or nil when absent.
func (g GraveState) Grave() *Grave {
	if g.GraveDeleted == nil {
		return nil
	}
	grave := &Grave{Deleted: *g.GraveDeleted}
	if g.GraveReason != nil {
		grave.Reason = *g.GraveReason
	}
	return grave
}
