package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ervnjmsdnts/ojt/core/grant"
	"github.com/ervnjmsdnts/ojt/core/template"
)

const grantColumns = `code, subject_id, template_id, kind, bound_version, respondent_role, recipient_email,
	status, issued_at, consumed_at, expired_at`

type (
	grantRepository struct {
		db *DB
	}

	grantRow struct {
		Code           string      `db:"code"`
		SubjectID      string      `db:"subject_id"`
		TemplateID     string      `db:"template_id"`
		Kind           string      `db:"kind"`
		BoundVersion   int         `db:"bound_version"`
		RespondentRole string      `db:"respondent_role"`
		RecipientEmail null.String `db:"recipient_email"`
		Status         string      `db:"status"`
		IssuedAt       time.Time   `db:"issued_at"`
		ConsumedAt     null.Time   `db:"consumed_at"`
		ExpiredAt      null.Time   `db:"expired_at"`
	}
)

var _ grant.Repository = (*grantRepository)(nil) // interface compliance check

func NewGrantRepository(db *DB) grant.Repository {
	return &grantRepository{db: db}
}

func packGrant(g grant.Grant) grantRow {
	return grantRow{
		Code:           g.Code,
		SubjectID:      g.SubjectID,
		TemplateID:     g.TemplateID,
		Kind:           string(g.Kind),
		BoundVersion:   g.BoundVersion,
		RespondentRole: string(g.RespondentRole),
		RecipientEmail: null.NewString(g.RecipientEmail, g.RecipientEmail != ""),
		Status:         string(g.Status),
		IssuedAt:       g.IssuedAt.UTC(),
		ConsumedAt:     g.ConsumedAt,
		ExpiredAt:      g.ExpiredAt,
	}
}

func (row grantRow) unpack() grant.Grant {
	g := grant.Grant{
		Code:           row.Code,
		SubjectID:      row.SubjectID,
		TemplateID:     row.TemplateID,
		Kind:           template.Kind(row.Kind),
		BoundVersion:   row.BoundVersion,
		RespondentRole: grant.Role(row.RespondentRole),
		RecipientEmail: row.RecipientEmail.String,
		Status:         grant.Status(row.Status),
		IssuedAt:       row.IssuedAt.UTC(),
		ConsumedAt:     row.ConsumedAt,
		ExpiredAt:      row.ExpiredAt,
	}
	if g.ConsumedAt.Valid {
		g.ConsumedAt.Time = g.ConsumedAt.Time.UTC()
	}
	if g.ExpiredAt.Valid {
		g.ExpiredAt.Time = g.ExpiredAt.Time.UTC()
	}
	return g
}

func (repo grantRepository) InsertGrant(ctx context.Context, g grant.Grant) error {
	q := `INSERT INTO grants (` + grantColumns + `)
		VALUES (:code, :subject_id, :template_id, :kind, :bound_version, :respondent_role, :recipient_email,
			:status, :issued_at, :consumed_at, :expired_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db.getExec(ctx), q, packGrant(g)); err != nil {
		if isUniqueViolation(err, "grants_one_pending_idx") {
			return grant.ErrPendingExists
		}
		return errors.Wrap(err, "inserting grant")
	}
	return nil
}

func (repo grantRepository) GetGrant(ctx context.Context, code string) (grant.Grant, error) {
	var row grantRow
	q := `SELECT ` + grantColumns + ` FROM grants WHERE code = $1`
	if err := sqlx.GetContext(ctx, repo.db.getExec(ctx), &row, q, code); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return grant.Grant{}, grant.ErrInvalidCode
		}
		return grant.Grant{}, errors.Wrap(err, "getting grant")
	}
	return row.unpack(), nil
}

func (repo grantRepository) ExpirePending(ctx context.Context, subjectID, templateID string, at time.Time) (int64, error) {
	q := `UPDATE grants SET status = 'expired', expired_at = $1
		WHERE subject_id = $2 AND template_id = $3 AND status = 'pending'`
	return repo.exec(ctx, "expiring pending grants", q, at.UTC(), subjectID, templateID)
}

func (repo grantRepository) TransitionPending(ctx context.Context, code string, to grant.Status, at time.Time) error {
	var column string
	switch to {
	case grant.StatusConsumed:
		column = "consumed_at"
	case grant.StatusExpired:
		column = "expired_at"
	default:
		return errors.Errorf("cannot transition grant to %q", to)
	}

	// the status guard serialises concurrent transitions on the row
	q := fmt.Sprintf(`UPDATE grants SET status = $1, %s = $2 WHERE code = $3 AND status = 'pending'`, column)
	n, err := repo.exec(ctx, "transitioning grant", q, string(to), at.UTC(), code)
	if err != nil {
		return err
	}
	if n == 0 {
		return grant.ErrNotPending
	}
	return nil
}

func (repo grantRepository) ExpireIssuedBefore(ctx context.Context, cutoff, at time.Time) (int64, error) {
	q := `UPDATE grants SET status = 'expired', expired_at = $1 WHERE status = 'pending' AND issued_at < $2`
	return repo.exec(ctx, "expiring stale grants", q, at.UTC(), cutoff.UTC())
}

func (repo grantRepository) exec(ctx context.Context, msg, q string, args ...interface{}) (int64, error) {
	res, err := repo.db.getExec(ctx).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, msg)
	}
	return n, nil
}
