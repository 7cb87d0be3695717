package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ervnjmsdnts/ojt/core/response"
	"github.com/ervnjmsdnts/ojt/core/template"
)

const responseColumns = `id, grant_code, subject_id, template_id, kind, bound_version, answers,
	comments, other_comments_and_suggestions, signature_ref, submitted_at`

type (
	responseRepository struct {
		db *DB
	}

	responseRow struct {
		ID                          string      `db:"id"`
		GrantCode                   string      `db:"grant_code"`
		SubjectID                   string      `db:"subject_id"`
		TemplateID                  string      `db:"template_id"`
		Kind                        string      `db:"kind"`
		BoundVersion                int         `db:"bound_version"`
		Answers                     string      `db:"answers"` // jsonb
		Comments                    null.String `db:"comments"`
		OtherCommentsAndSuggestions null.String `db:"other_comments_and_suggestions"`
		SignatureRef                string      `db:"signature_ref"`
		SubmittedAt                 time.Time   `db:"submitted_at"`
	}
)

var _ response.Repository = (*responseRepository)(nil) // interface compliance check

func NewResponseRepository(db *DB) response.Repository {
	return &responseRepository{db: db}
}

func (row responseRow) unpack() (response.Response, error) {
	r := response.Response{
		ID:                          row.ID,
		GrantCode:                   row.GrantCode,
		SubjectID:                   row.SubjectID,
		TemplateID:                  row.TemplateID,
		Kind:                        template.Kind(row.Kind),
		BoundVersion:                row.BoundVersion,
		Comments:                    row.Comments,
		OtherCommentsAndSuggestions: row.OtherCommentsAndSuggestions,
		SignatureRef:                row.SignatureRef,
		SubmittedAt:                 row.SubmittedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(row.Answers), &r.Answers); err != nil {
		return response.Response{}, errors.Wrap(err, "decoding answers")
	}
	return r, nil
}

func (repo responseRepository) CreateResponse(ctx context.Context, r response.Response) error {
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return errors.Wrap(err, "encoding answers")
	}
	row := responseRow{
		ID:                          r.ID,
		GrantCode:                   r.GrantCode,
		SubjectID:                   r.SubjectID,
		TemplateID:                  r.TemplateID,
		Kind:                        string(r.Kind),
		BoundVersion:                r.BoundVersion,
		Answers:                     string(answers),
		Comments:                    r.Comments,
		OtherCommentsAndSuggestions: r.OtherCommentsAndSuggestions,
		SignatureRef:                r.SignatureRef,
		SubmittedAt:                 r.SubmittedAt.UTC(),
	}

	q := `INSERT INTO responses (` + responseColumns + `)
		VALUES (:id, :grant_code, :subject_id, :template_id, :kind, :bound_version, :answers,
			:comments, :other_comments_and_suggestions, :signature_ref, :submitted_at)`
	if _, err = sqlx.NamedExecContext(ctx, repo.db.getExec(ctx), q, row); err != nil {
		if isUniqueViolation(err, "responses_grant_code_key") {
			return response.ErrAlreadySubmitted
		}
		return errors.Wrap(err, "inserting response")
	}
	return nil
}

func (repo responseRepository) GetLatestResponse(ctx context.Context, subjectID, templateID string) (response.Response, error) {
	if !isUUID(templateID) {
		return response.Response{}, response.ErrNotFound
	}

	var row responseRow
	q := `SELECT ` + responseColumns + ` FROM responses
		WHERE subject_id = $1 AND template_id = $2
		ORDER BY submitted_at DESC, id DESC
		LIMIT 1`
	if err := sqlx.GetContext(ctx, repo.db.getExec(ctx), &row, q, subjectID, templateID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return response.Response{}, response.ErrNotFound
		}
		return response.Response{}, errors.Wrap(err, "getting latest response")
	}
	return row.unpack()
}
