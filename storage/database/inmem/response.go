package inmemdb

import (
	"context"

	"github.com/ervnjmsdnts/ojt/core/response"
)

type responseRepository struct {
	db *DB
}

var _ response.Repository = (*responseRepository)(nil) // interface compliance check

func NewResponseRepository(db *DB) response.Repository {
	return &responseRepository{db: db}
}

func (repo *responseRepository) CreateResponse(ctx context.Context, r response.Response) error {
	return repo.db.run(ctx, func(t *tables) error {
		for _, other := range t.responses {
			if other.GrantCode == r.GrantCode {
				return response.ErrAlreadySubmitted
			}
		}
		answers := make([]response.Answer, len(r.Answers))
		copy(answers, r.Answers)
		r.Answers = answers
		t.responses[r.ID] = r
		return nil
	})
}

func (repo *responseRepository) GetLatestResponse(ctx context.Context, subjectID, templateID string) (response.Response, error) {
	var latest response.Response
	err := repo.db.run(ctx, func(t *tables) error {
		var found bool
		for _, r := range t.responses {
			if r.SubjectID != subjectID || r.TemplateID != templateID {
				continue
			}
			if !found || r.SubmittedAt.After(latest.SubmittedAt) ||
				(r.SubmittedAt.Equal(latest.SubmittedAt) && r.ID > latest.ID) {
				latest = r
				found = true
			}
		}
		if !found {
			return response.ErrNotFound
		}
		return nil
	})
	return latest, err
}
