// Package subject describes the read-only projection of an OJT placement used to render form headers.
package subject

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

var ErrNotFound = errors.New("subject not found")

// Context holds the display fields of an OJT placement.
type Context struct {
	SubjectID      string    `json:"subject_id"`
	StudentName    string    `json:"student_name"`
	CompanyName    string    `json:"company_name"`
	SupervisorName string    `json:"supervisor_name"`
	StartDate      null.Time `json:"start_date"`
	EndDate        null.Time `json:"end_date"`
}

// Projector is supplied by the portal that owns placements.
type Projector interface {
	// GetSubject fails with ErrNotFound for an unknown subjectID.
	GetSubject(ctx context.Context, subjectID string) (Context, error)
}

// Store is a Projector that can also be seeded locally (admin CLI, tests).
type Store interface {
	Projector
	PutSubject(ctx context.Context, subj Context) error
}
