package inmemdb

import (
	"context"

	"github.com/ervnjmsdnts/ojt/core/subject"
)

type subjectProjector struct {
	db *DB
}

var _ subject.Store = (*subjectProjector)(nil) // interface compliance check

func NewSubjectStore(db *DB) subject.Store {
	return &subjectProjector{db: db}
}

func (p *subjectProjector) GetSubject(ctx context.Context, subjectID string) (subject.Context, error) {
	var subj subject.Context
	err := p.db.run(ctx, func(t *tables) error {
		var ok bool
		if subj, ok = t.subjects[subjectID]; !ok {
			return subject.ErrNotFound
		}
		return nil
	})
	return subj, err
}

// PutSubject creates or replaces a subject projection.
func (p *subjectProjector) PutSubject(ctx context.Context, subj subject.Context) error {
	return p.db.run(ctx, func(t *tables) error {
		t.subjects[subj.SubjectID] = subj
		return nil
	})
}
