package inmemdb

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ervnjmsdnts/ojt/core/grant"
)

type grantRepository struct {
	db *DB
}

var _ grant.Repository = (*grantRepository)(nil) // interface compliance check

func NewGrantRepository(db *DB) grant.Repository {
	return &grantRepository{db: db}
}

func (repo *grantRepository) InsertGrant(ctx context.Context, g grant.Grant) error {
	return repo.db.run(ctx, func(t *tables) error {
		if _, exists := t.grants[g.Code]; exists {
			return errors.Errorf("grant %s already exists", g.Code)
		}
		if _, ok := t.snapshots[snapshotKey{g.TemplateID, g.BoundVersion}]; !ok {
			return errors.Errorf("template %s has no version %d", g.TemplateID, g.BoundVersion)
		}
		if g.Status == grant.StatusPending {
			for _, other := range t.grants {
				if other.Status == grant.StatusPending && other.SubjectID == g.SubjectID && other.TemplateID == g.TemplateID {
					return grant.ErrPendingExists
				}
			}
		}
		t.grants[g.Code] = g
		return nil
	})
}

func (repo *grantRepository) GetGrant(ctx context.Context, code string) (grant.Grant, error) {
	var g grant.Grant
	err := repo.db.run(ctx, func(t *tables) error {
		var ok bool
		if g, ok = t.grants[code]; !ok {
			return grant.ErrInvalidCode
		}
		return nil
	})
	return g, err
}

func (repo *grantRepository) ExpirePending(ctx context.Context, subjectID, templateID string, at time.Time) (int64, error) {
	return repo.expireWhere(ctx, at, func(g grant.Grant) bool {
		return g.SubjectID == subjectID && g.TemplateID == templateID
	})
}

func (repo *grantRepository) TransitionPending(ctx context.Context, code string, to grant.Status, at time.Time) error {
	return repo.db.run(ctx, func(t *tables) error {
		g, ok := t.grants[code]
		if !ok || g.Status != grant.StatusPending {
			return grant.ErrNotPending
		}
		g.SetStatus(to, at)
		t.grants[code] = g
		return nil
	})
}

func (repo *grantRepository) ExpireIssuedBefore(ctx context.Context, cutoff, at time.Time) (int64, error) {
	return repo.expireWhere(ctx, at, func(g grant.Grant) bool {
		return g.IssuedAt.Before(cutoff)
	})
}

func (repo *grantRepository) expireWhere(ctx context.Context, at time.Time, match func(g grant.Grant) bool) (int64, error) {
	var n int64
	err := repo.db.run(ctx, func(t *tables) error {
		for code, g := range t.grants {
			if g.Status == grant.StatusPending && match(g) {
				g.SetStatus(grant.StatusExpired, at)
				t.grants[code] = g
				n++
			}
		}
		return nil
	})
	return n, err
}
