package inmemdb

import (
	"context"

	"github.com/ervnjmsdnts/ojt/core/template"
)

type templateRepository struct {
	db *DB
}

var _ template.Repository = (*templateRepository)(nil) // interface compliance check

func NewTemplateRepository(db *DB) template.Repository {
	return &templateRepository{db: db}
}

func (repo *templateRepository) CreateTemplate(ctx context.Context, tmpl template.Template, snap template.Snapshot) error {
	return repo.db.run(ctx, func(t *tables) error {
		for _, other := range t.templates {
			if other.Kind == tmpl.Kind {
				return template.ErrKindExists
			}
		}
		t.templates[tmpl.ID] = tmpl
		t.snapshots[snapshotKey{tmpl.ID, snap.Version}] = snap.Clone()
		return nil
	})
}

func (repo *templateRepository) GetTemplate(ctx context.Context, id string) (template.Template, error) {
	var tmpl template.Template
	err := repo.db.run(ctx, func(t *tables) error {
		var ok bool
		if tmpl, ok = t.templates[id]; !ok {
			return template.ErrNotFound
		}
		return nil
	})
	return tmpl, err
}

func (repo *templateRepository) GetTemplateByKind(ctx context.Context, kind template.Kind) (template.Template, error) {
	var tmpl template.Template
	err := repo.db.run(ctx, func(t *tables) error {
		for _, other := range t.templates {
			if other.Kind == kind {
				tmpl = other
				return nil
			}
		}
		return template.ErrNotFound
	})
	return tmpl, err
}

func (repo *templateRepository) GetSnapshot(ctx context.Context, templateID string, version int) (template.Snapshot, error) {
	var snap template.Snapshot
	err := repo.db.run(ctx, func(t *tables) error {
		s, ok := t.snapshots[snapshotKey{templateID, version}]
		if !ok {
			return template.ErrNotFound
		}
		snap = s.Clone()
		return nil
	})
	return snap, err
}

func (repo *templateRepository) SaveVersion(ctx context.Context, snap template.Snapshot) error {
	return repo.db.run(ctx, func(t *tables) error {
		tmpl, ok := t.templates[snap.TemplateID]
		if !ok {
			return template.ErrNotFound
		}
		key := snapshotKey{snap.TemplateID, snap.Version}
		if _, exists := t.snapshots[key]; exists || tmpl.Version != snap.Version-1 {
			return template.ErrVersionConflict
		}

		t.snapshots[key] = snap.Clone()
		tmpl.Version = snap.Version
		tmpl.UpdatedAt = snap.CreatedAt
		t.templates[tmpl.ID] = tmpl
		return nil
	})
}
