package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/ervnjmsdnts/ojt/core/template"
)

type (
	templateRepository struct {
		db *DB
	}

	templateRow struct {
		ID        string    `db:"id"`
		Kind      string    `db:"kind"`
		Version   int       `db:"version"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	snapshotRow struct {
		TemplateID string    `db:"template_id"`
		Version    int       `db:"version"`
		Snapshot   string    `db:"snapshot"` // jsonb
		CreatedBy  string    `db:"created_by"`
		CreatedAt  time.Time `db:"created_at"`
	}
)

var _ template.Repository = (*templateRepository)(nil) // interface compliance check

func NewTemplateRepository(db *DB) template.Repository {
	return &templateRepository{db: db}
}

func (row templateRow) unpack() template.Template {
	kind := template.Kind(row.Kind)
	return template.Template{
		ID:        row.ID,
		Kind:      kind,
		Style:     kind.Style(),
		Version:   row.Version,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

// trapNoRowsErr maps psql "no rows" err to template.ErrNotFound
func (repo templateRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return template.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo templateRepository) insertSnapshot(ctx context.Context, snap template.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}
	row := snapshotRow{
		TemplateID: snap.TemplateID,
		Version:    snap.Version,
		Snapshot:   string(data),
		CreatedBy:  snap.CreatedBy,
		CreatedAt:  snap.CreatedAt.UTC(),
	}
	q := `INSERT INTO template_versions (template_id, version, snapshot, created_by, created_at)
		VALUES (:template_id, :version, :snapshot, :created_by, :created_at)`
	if _, err = sqlx.NamedExecContext(ctx, repo.db.getExec(ctx), q, row); err != nil {
		if isUniqueViolation(err) {
			return template.ErrVersionConflict
		}
		return errors.Wrap(err, "inserting template version")
	}
	return nil
}

func (repo templateRepository) CreateTemplate(ctx context.Context, tmpl template.Template, snap template.Snapshot) error {
	return repo.db.WithinTx(ctx, func(ctx context.Context) error {
		row := templateRow{
			ID:        tmpl.ID,
			Kind:      string(tmpl.Kind),
			Version:   tmpl.Version,
			CreatedAt: tmpl.CreatedAt.UTC(),
			UpdatedAt: tmpl.UpdatedAt.UTC(),
		}
		q := `INSERT INTO templates (id, kind, version, created_at, updated_at)
			VALUES (:id, :kind, :version, :created_at, :updated_at)`
		if _, err := sqlx.NamedExecContext(ctx, repo.db.getExec(ctx), q, row); err != nil {
			if isUniqueViolation(err, "templates_kind_key") {
				return template.ErrKindExists
			}
			return errors.Wrap(err, "inserting template")
		}
		return repo.insertSnapshot(ctx, snap)
	})
}

func (repo templateRepository) GetTemplate(ctx context.Context, id string) (template.Template, error) {
	if !isUUID(id) {
		return template.Template{}, template.ErrNotFound
	}
	var row templateRow
	q := `SELECT id, kind, version, created_at, updated_at FROM templates WHERE id = $1`
	if err := sqlx.GetContext(ctx, repo.db.getExec(ctx), &row, q, id); err != nil {
		return template.Template{}, repo.trapNoRowsErr(err, "getting template")
	}
	return row.unpack(), nil
}

func (repo templateRepository) GetTemplateByKind(ctx context.Context, kind template.Kind) (template.Template, error) {
	var row templateRow
	q := `SELECT id, kind, version, created_at, updated_at FROM templates WHERE kind = $1`
	if err := sqlx.GetContext(ctx, repo.db.getExec(ctx), &row, q, string(kind)); err != nil {
		return template.Template{}, repo.trapNoRowsErr(err, "getting template by kind")
	}
	return row.unpack(), nil
}

func (repo templateRepository) GetSnapshot(ctx context.Context, templateID string, version int) (template.Snapshot, error) {
	if !isUUID(templateID) {
		return template.Snapshot{}, template.ErrNotFound
	}
	var row snapshotRow
	q := `SELECT template_id, version, snapshot, created_by, created_at
		FROM template_versions WHERE template_id = $1 AND version = $2`
	if err := sqlx.GetContext(ctx, repo.db.getExec(ctx), &row, q, templateID, version); err != nil {
		return template.Snapshot{}, repo.trapNoRowsErr(err, "getting template version")
	}

	var snap template.Snapshot
	if err := json.Unmarshal([]byte(row.Snapshot), &snap); err != nil {
		return template.Snapshot{}, errors.Wrap(err, "decoding snapshot")
	}
	snap.TemplateID = row.TemplateID
	snap.Version = row.Version
	snap.CreatedAt = snap.CreatedAt.UTC()
	return snap, nil
}

func (repo templateRepository) SaveVersion(ctx context.Context, snap template.Snapshot) error {
	return repo.db.WithinTx(ctx, func(ctx context.Context) error {
		q := `UPDATE templates SET version = $1, updated_at = $2 WHERE id = $3 AND version = $4`
		res, err := repo.db.getExec(ctx).ExecContext(ctx, q, snap.Version, snap.CreatedAt.UTC(), snap.TemplateID, snap.Version-1)
		if err != nil {
			return errors.Wrap(err, "bumping template version")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "bumping template version")
		}
		if n == 0 {
			return template.ErrVersionConflict
		}
		return repo.insertSnapshot(ctx, snap)
	})
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
