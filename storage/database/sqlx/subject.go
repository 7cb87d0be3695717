package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ervnjmsdnts/ojt/core/subject"
)

type (
	subjectStore struct {
		db *DB
	}

	subjectRow struct {
		SubjectID      string    `db:"subject_id"`
		StudentName    string    `db:"student_name"`
		CompanyName    string    `db:"company_name"`
		SupervisorName string    `db:"supervisor_name"`
		StartDate      null.Time `db:"start_date"`
		EndDate        null.Time `db:"end_date"`
	}
)

var _ subject.Store = (*subjectStore)(nil) // interface compliance check

// NewSubjectStore reads subject contexts from the subject_contexts projection table.
func NewSubjectStore(db *DB) subject.Store {
	return &subjectStore{db: db}
}

func (s subjectStore) GetSubject(ctx context.Context, subjectID string) (subject.Context, error) {
	var row subjectRow
	q := `SELECT subject_id, student_name, company_name, supervisor_name, start_date, end_date
		FROM subject_contexts WHERE subject_id = $1`
	if err := sqlx.GetContext(ctx, s.db.getExec(ctx), &row, q, subjectID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return subject.Context{}, subject.ErrNotFound
		}
		return subject.Context{}, errors.Wrap(err, "getting subject context")
	}
	return subject.Context(row), nil
}

func (s subjectStore) PutSubject(ctx context.Context, subj subject.Context) error {
	q := `INSERT INTO subject_contexts (subject_id, student_name, company_name, supervisor_name, start_date, end_date)
		VALUES (:subject_id, :student_name, :company_name, :supervisor_name, :start_date, :end_date)
		ON CONFLICT (subject_id) DO UPDATE SET
			student_name = EXCLUDED.student_name,
			company_name = EXCLUDED.company_name,
			supervisor_name = EXCLUDED.supervisor_name,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date`
	if _, err := sqlx.NamedExecContext(ctx, s.db.getExec(ctx), q, subjectRow(subj)); err != nil {
		return errors.Wrap(err, "saving subject context")
	}
	return nil
}
