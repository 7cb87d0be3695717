package sqlxrepos_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ervnjmsdnts/ojt/core/grant"
	"github.com/ervnjmsdnts/ojt/core/response"
	"github.com/ervnjmsdnts/ojt/core/template"
	blobsvc "github.com/ervnjmsdnts/ojt/services/blob"
	emailsvc "github.com/ervnjmsdnts/ojt/services/email"
	sqlxrepos "github.com/ervnjmsdnts/ojt/storage/database/sqlx"
	"github.com/ervnjmsdnts/ojt/tests"
)

// setup wires the services on PostgreSQL. It is skipped when TEST_DATABASE_URL is not set.
func setup(t *testing.T, codes ...string) (*sqlxrepos.DB, template.Service, grant.Service, response.Service) {
	conf := testutil.NewConfig(t)
	logger := testutil.NewLogger()
	db := sqlxrepos.NewDB(testutil.OpenDB(t))

	blobs, err := blobsvc.NewFileStore(conf)
	require.NoError(t, err)

	tmplSvc := template.NewService(db, sqlxrepos.NewTemplateRepository(db), logger)
	grantSvc := grant.NewServiceMock(
		db, sqlxrepos.NewGrantRepository(db), tmplSvc, sqlxrepos.NewSubjectStore(db),
		emailsvc.NewConsoleServiceMock(conf), logger, conf, nil, codes...,
	)
	respSvc := response.NewService(db, sqlxrepos.NewResponseRepository(db), grantSvc, tmplSvc, blobs, logger)
	return db, tmplSvc, grantSvc, respSvc
}

func TestTemplateRepository(t *testing.T) {
	ctx := context.Background()
	db, tmplSvc, _, _ := setup(t)
	repo := sqlxrepos.NewTemplateRepository(db)

	v1 := testutil.CreateTemplate(t, tmplSvc, testutil.AppraisalSeed())
	_, err := tmplSvc.Create(ctx, testutil.AppraisalSeed(), testutil.Coordinator)
	assert.Equal(t, template.ErrKindExists, errors.Cause(err))

	v2, err := tmplSvc.AddCategory(ctx, v1.TemplateID, template.NewCategory{
		Name: "Communication", DisplayOrder: 3, Questions: []string{"Clarity"},
	}, testutil.Coordinator)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	// saving the same version twice conflicts
	assert.Equal(t, template.ErrVersionConflict, errors.Cause(repo.SaveVersion(ctx, v2)))

	got, err := tmplSvc.GetVersion(ctx, v1.TemplateID, 1)
	require.NoError(t, err)
	assert.Equal(t, v1.QuestionIDs(), got.QuestionIDs())
	assert.Len(t, got.Categories, 2)

	tmpl, err := tmplSvc.GetByKind(ctx, template.KindAppraisal)
	require.NoError(t, err)
	assert.Equal(t, 2, tmpl.Version)

	_, err = tmplSvc.GetLatest(ctx, "not-a-uuid")
	assert.Equal(t, template.ErrNotFound, errors.Cause(err))
	_, err = tmplSvc.GetByKind(ctx, template.KindStudentFeedback)
	assert.Equal(t, template.ErrNotFound, errors.Cause(err))
}

func TestSubjectStore(t *testing.T) {
	ctx := context.Background()
	db, _, _, _ := setup(t)
	store := sqlxrepos.NewSubjectStore(db)

	want := testutil.CreateSubject(t, store, "42", "Juan Dela Cruz", "Acme Corp")
	got, err := store.GetSubject(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, want.StudentName, got.StudentName)
	assert.True(t, want.StartDate.Time.Equal(got.StartDate.Time))

	want.CompanyName = "Globex"
	require.NoError(t, store.PutSubject(ctx, want))
	got, err = store.GetSubject(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Globex", got.CompanyName)
}

func TestLedger(t *testing.T) {
	ctx := context.Background()
	db, tmplSvc, grantSvc, respSvc := setup(t, "ABC123", "DEF456")
	testutil.CreateSubject(t, sqlxrepos.NewSubjectStore(db), "42", "Juan Dela Cruz", "Acme Corp")
	snap := testutil.CreateTemplate(t, tmplSvc, testutil.AppraisalSeed())

	first := testutil.IssueGrant(t, grantSvc, "42", snap.TemplateID, grant.RoleSupervisor)
	second := testutil.IssueGrant(t, grantSvc, "42", snap.TemplateID, grant.RoleSupervisor)

	g, err := grantSvc.Get(ctx, first.Code)
	require.NoError(t, err)
	assert.Equal(t, grant.StatusExpired, g.Status, "reissue expires the pending grant")

	dup := second
	dup.Code = "ZZZ999"
	assert.Equal(t, grant.ErrPendingExists, sqlxrepos.NewGrantRepository(db).InsertGrant(ctx, dup), "one pending grant per subject")

	ref, err := respSvc.StoreSignature(ctx, second.Code, testutil.SignaturePNG(t))
	require.NoError(t, err)
	answers := make(map[string]response.AnswerValue)
	for _, id := range snap.QuestionIDs() {
		answers[id] = response.RatingValue(3)
	}
	sub := response.Submission{Answers: answers, Comments: "Good", SignatureRef: ref}

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := respSvc.Submit(ctx, second.Code, sub)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, response.ErrAlreadySubmitted, errors.Cause(err))
	}
	assert.Equal(t, 1, succeeded)

	view, err := respSvc.GetLatestView(ctx, "42", template.KindAppraisal)
	require.NoError(t, err)
	assert.Equal(t, second.Code, view.Response.GrantCode)
	assert.Equal(t, "Good", view.Response.Comments.String)
	assert.Equal(t, 15, view.Aggregate.Total)
	assert.WithinDuration(t, time.Now(), view.Response.SubmittedAt, time.Minute)

	g, err = grantSvc.Get(ctx, second.Code)
	require.NoError(t, err)
	assert.Equal(t, grant.StatusConsumed, g.Status)

	n2, err := grantSvc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n2)
}
