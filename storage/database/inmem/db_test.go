package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ervnjmsdnts/ojt/core/grant"
	"github.com/ervnjmsdnts/ojt/core/response"
	"github.com/ervnjmsdnts/ojt/core/template"
)

var now = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

func seedTemplate(t *testing.T, db *DB) template.Snapshot {
	snap := template.Snapshot{
		TemplateID: "tmpl-1",
		Kind:       template.KindAppraisal,
		Style:      template.StyleRating,
		Version:    1,
		Categories: []template.Category{
			{ID: "cat-1", Name: "Work Habits", DisplayOrder: 1, Questions: []template.Question{{ID: "q-1", Text: "Punctuality"}}},
		},
		CreatedAt: now,
	}
	tmpl := template.Template{
		ID: snap.TemplateID, Kind: snap.Kind, Style: snap.Style, Version: 1, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, NewTemplateRepository(db).CreateTemplate(context.Background(), tmpl, snap))
	return snap
}

func TestDB_WithinTx_rollback(t *testing.T) {
	ctx := context.Background()
	db := Open()
	snap := seedTemplate(t, db)
	grants := NewGrantRepository(db)
	boom := errors.New("boom")

	err := db.WithinTx(ctx, func(ctx context.Context) error {
		g := grant.Grant{Code: "ABC", SubjectID: "42", TemplateID: snap.TemplateID, BoundVersion: 1, Status: grant.StatusPending}
		if err := grants.InsertGrant(ctx, g); err != nil {
			return err
		}
		// nested calls join the transaction instead of deadlocking
		if _, err := grants.GetGrant(ctx, "ABC"); err != nil {
			return err
		}
		return boom
	})
	assert.Equal(t, boom, err)

	_, err = grants.GetGrant(ctx, "ABC")
	assert.Equal(t, grant.ErrInvalidCode, errors.Cause(err))
}

func TestTemplateRepository(t *testing.T) {
	ctx := context.Background()
	db := Open()
	repo := NewTemplateRepository(db)
	snap := seedTemplate(t, db)

	t.Run("kind exists", func(t *testing.T) {
		err := repo.CreateTemplate(ctx, template.Template{ID: "other", Kind: template.KindAppraisal}, snap)
		assert.Equal(t, template.ErrKindExists, err)
	})

	t.Run("snapshots are copies", func(t *testing.T) {
		got, err := repo.GetSnapshot(ctx, snap.TemplateID, 1)
		require.NoError(t, err)
		got.Categories[0].Questions[0].Text = "changed"

		again, err := repo.GetSnapshot(ctx, snap.TemplateID, 1)
		require.NoError(t, err)
		assert.Equal(t, "Punctuality", again.Categories[0].Questions[0].Text)
	})

	t.Run("save version", func(t *testing.T) {
		next := snap.Clone()
		next.Version = 2
		next.CreatedAt = now.Add(time.Minute)
		require.NoError(t, repo.SaveVersion(ctx, next))
		assert.Equal(t, template.ErrVersionConflict, repo.SaveVersion(ctx, next))

		skipped := snap.Clone()
		skipped.Version = 4
		assert.Equal(t, template.ErrVersionConflict, repo.SaveVersion(ctx, skipped))

		tmpl, err := repo.GetTemplateByKind(ctx, template.KindAppraisal)
		require.NoError(t, err)
		assert.Equal(t, 2, tmpl.Version)
		assert.Equal(t, next.CreatedAt, tmpl.UpdatedAt)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetTemplate(ctx, "nope")
		assert.Equal(t, template.ErrNotFound, err)
		_, err = repo.GetTemplateByKind(ctx, template.KindStudentFeedback)
		assert.Equal(t, template.ErrNotFound, err)
		_, err = repo.GetSnapshot(ctx, snap.TemplateID, 9)
		assert.Equal(t, template.ErrNotFound, err)
	})
}

func TestGrantRepository(t *testing.T) {
	ctx := context.Background()
	db := Open()
	snap := seedTemplate(t, db)
	repo := NewGrantRepository(db)

	newGrant := func(code, subjectID string, issuedAt time.Time) grant.Grant {
		return grant.Grant{
			Code: code, SubjectID: subjectID, TemplateID: snap.TemplateID, Kind: snap.Kind,
			BoundVersion: 1, Status: grant.StatusPending, IssuedAt: issuedAt,
		}
	}

	require.NoError(t, repo.InsertGrant(ctx, newGrant("A1", "42", now)))
	assert.Equal(t, grant.ErrPendingExists, repo.InsertGrant(ctx, newGrant("A2", "42", now)), "second pending grant")
	assert.Error(t, repo.InsertGrant(ctx, newGrant("A1", "43", now)), "duplicate code")
	missing := newGrant("A3", "43", now)
	missing.BoundVersion = 7
	assert.Error(t, repo.InsertGrant(ctx, missing), "unknown version")

	require.NoError(t, repo.InsertGrant(ctx, newGrant("B1", "43", now.Add(-48*time.Hour))))
	require.NoError(t, repo.InsertGrant(ctx, newGrant("C1", "44", now)))

	require.NoError(t, repo.TransitionPending(ctx, "C1", grant.StatusConsumed, now))
	assert.Equal(t, grant.ErrNotPending, repo.TransitionPending(ctx, "C1", grant.StatusExpired, now))
	assert.Equal(t, grant.ErrNotPending, repo.TransitionPending(ctx, "nope", grant.StatusExpired, now))

	n, err := repo.ExpireIssuedBefore(ctx, now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.ExpirePending(ctx, "42", snap.TemplateID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	for code, want := range map[string]grant.Status{"A1": grant.StatusExpired, "B1": grant.StatusExpired, "C1": grant.StatusConsumed} {
		g, err := repo.GetGrant(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, want, g.Status, code)
	}
	c1, _ := repo.GetGrant(ctx, "C1")
	assert.Equal(t, now, c1.ConsumedAt.Time)
	assert.False(t, c1.ExpiredAt.Valid)
}

func TestResponseRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewResponseRepository(Open())

	newResponse := func(id, code string, at time.Time) response.Response {
		return response.Response{
			ID: id, GrantCode: code, SubjectID: "42", TemplateID: "tmpl-1", Kind: template.KindAppraisal,
			BoundVersion: 1, Answers: []response.Answer{{QuestionID: "q-1", Rating: 4}}, SubmittedAt: at,
		}
	}

	_, err := repo.GetLatestResponse(ctx, "42", "tmpl-1")
	assert.Equal(t, response.ErrNotFound, err)

	r1 := newResponse("r-1", "A1", now)
	require.NoError(t, repo.CreateResponse(ctx, r1))
	assert.Equal(t, response.ErrAlreadySubmitted, repo.CreateResponse(ctx, newResponse("r-9", "A1", now)))

	r1.Answers[0].Rating = 1 // stored rows are not aliased
	got, err := repo.GetLatestResponse(ctx, "42", "tmpl-1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Answers[0].Rating)

	require.NoError(t, repo.CreateResponse(ctx, newResponse("r-3", "B1", now.Add(time.Hour))))
	require.NoError(t, repo.CreateResponse(ctx, newResponse("r-2", "C1", now.Add(time.Hour))))
	got, err = repo.GetLatestResponse(ctx, "42", "tmpl-1")
	require.NoError(t, err)
	assert.Equal(t, "r-3", got.ID, "ties break on id")

	_, err = repo.GetLatestResponse(ctx, "43", "tmpl-1")
	assert.Equal(t, response.ErrNotFound, err)
}
