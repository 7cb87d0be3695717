package template_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ervnjmsdnts/ojt/core"
	"github.com/ervnjmsdnts/ojt/core/template"
	"github.com/ervnjmsdnts/ojt/tests"
)

func setup(t *testing.T) template.Service {
	return testutil.NewEnv(t).TemplateSvc
}

func mustJSON(t *testing.T, v interface{}) []byte {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func Test_service_Create(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	snap, err := svc.Create(ctx, testutil.AppraisalSeed(), testutil.Coordinator)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, template.StyleRating, snap.Style)
	assert.Equal(t, testutil.Coordinator.ID, snap.CreatedBy)
	require.Len(t, snap.Categories, 2)
	assert.Equal(t, "Work Habits", snap.Categories[0].Name)
	assert.Equal(t, 5, snap.QuestionCount())
	assert.Nil(t, snap.Questions)

	tests := []struct {
		name    string
		nt      template.NewTemplate
		wantErr error
	}{
		{name: "kind exists", nt: testutil.AppraisalSeed(), wantErr: template.ErrKindExists},
		{name: "flat questions on rating template", nt: template.NewTemplate{Kind: template.KindAppraisal, Questions: []string{"q"}}, wantErr: template.ErrWrongStyle},
		{
			name:    "categories on choice template",
			nt:      template.NewTemplate{Kind: template.KindStudentFeedback, Categories: []template.NewCategory{{Name: "c", DisplayOrder: 1}}},
			wantErr: template.ErrWrongStyle,
		},
		{name: "blank question", nt: testutil.FeedbackSeed(template.KindSupervisorFeedback, "ok", "  "), wantErr: template.ErrInvalidQuestion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.nt, testutil.Coordinator)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}

	t.Run("invalid kind", func(t *testing.T) {
		_, err := svc.Create(ctx, template.NewTemplate{Kind: "lol"}, testutil.Coordinator)
		_, ok := errors.Cause(err).(*core.ValidationError)
		assert.True(t, ok, "want *core.ValidationError, got %v", err)
	})

	t.Run("empty template", func(t *testing.T) {
		snap, err := svc.Create(ctx, template.NewTemplate{Kind: template.KindStudentFeedback}, testutil.Coordinator)
		require.NoError(t, err)
		assert.Equal(t, 0, snap.QuestionCount())
	})
}

func Test_service_AddCategory(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)
	v1 := testutil.CreateTemplate(t, svc, testutil.AppraisalSeed())

	v2, err := svc.AddCategory(ctx, v1.TemplateID, template.NewCategory{
		Name: "Communication", DisplayOrder: 3, Questions: []string{"Clarity", "Responsiveness"},
	}, testutil.Coordinator)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	require.Len(t, v2.Categories, 3)
	assert.Equal(t, "Communication", v2.Categories[2].Name)
	assert.Len(t, v2.Categories[2].Questions, 2)

	_, err = svc.AddCategory(ctx, v1.TemplateID, template.NewCategory{Name: "Outro", DisplayOrder: 5}, testutil.Coordinator)
	require.NoError(t, err)
	v4, err := svc.AddCategory(ctx, v1.TemplateID, template.NewCategory{Name: "Extra", DisplayOrder: 4}, testutil.Coordinator)
	require.NoError(t, err)
	require.Len(t, v4.Categories, 5)
	assert.Equal(t, "Extra", v4.Categories[3].Name)
	assert.Equal(t, "Outro", v4.Categories[4].Name)

	_, err = svc.AddCategory(ctx, v1.TemplateID, template.NewCategory{Name: "Dup", DisplayOrder: 1}, testutil.Coordinator)
	assert.Equal(t, template.ErrDuplicateOrder, errors.Cause(err))

	_, err = svc.AddCategory(ctx, "nope", template.NewCategory{Name: "x", DisplayOrder: 9}, testutil.Coordinator)
	assert.Equal(t, template.ErrNotFound, errors.Cause(err))

	latest, err := svc.GetLatest(ctx, v1.TemplateID)
	require.NoError(t, err)
	assert.Equal(t, 4, latest.Version, "failed edits must not create versions")
}

func Test_service_RenameCategory(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)
	v1 := testutil.CreateTemplate(t, svc, testutil.AppraisalSeed())
	old := v1.Categories[0]

	v2, err := svc.RenameCategory(ctx, v1.TemplateID, old.ID, template.RenameCategory{Name: "Habits"}, testutil.Coordinator)
	require.NoError(t, err)
	renamed := v2.Categories[0]
	assert.Equal(t, "Habits", renamed.Name)
	assert.NotEqual(t, old.ID, renamed.ID)
	assert.Equal(t, old.DisplayOrder, renamed.DisplayOrder)
	assert.Equal(t, old.Questions, renamed.Questions)

	_, err = svc.RenameCategory(ctx, v1.TemplateID, old.ID, template.RenameCategory{Name: "Again"}, testutil.Coordinator)
	assert.Equal(t, template.ErrCategoryNotFound, errors.Cause(err))
}

func Test_service_ReorderCategories(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)
	v1 := testutil.CreateTemplate(t, svc, testutil.AppraisalSeed())
	a, b := v1.Categories[0].ID, v1.Categories[1].ID

	tests := []struct {
		name    string
		ids     []string
		wantErr error
	}{
		{name: "missing id", ids: []string{a}, wantErr: template.ErrInvalidOrder},
		{name: "unknown id", ids: []string{a, "lol"}, wantErr: template.ErrInvalidOrder},
		{name: "duplicate id", ids: []string{a, a}, wantErr: template.ErrInvalidOrder},
		{name: "extra id", ids: []string{a, b, "lol"}, wantErr: template.ErrInvalidOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ReorderCategories(ctx, v1.TemplateID, template.ReorderCategories{CategoryIDs: tt.ids}, testutil.Coordinator)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}

	v2, err := svc.ReorderCategories(ctx, v1.TemplateID, template.ReorderCategories{CategoryIDs: []string{b, a}}, testutil.Coordinator)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, b, v2.Categories[0].ID)
	assert.Equal(t, 1, v2.Categories[0].DisplayOrder)
	assert.Equal(t, a, v2.Categories[1].ID)
	assert.Equal(t, 2, v2.Categories[1].DisplayOrder)
}

func Test_service_SetQuestions(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)
	appraisal := testutil.CreateTemplate(t, svc, testutil.AppraisalSeed())
	feedback := testutil.CreateTemplate(t, svc, testutil.FeedbackSeed(template.KindSupervisorFeedback, "Prepared", "Clear"))

	t.Run("flat", func(t *testing.T) {
		v2, err := svc.SetQuestions(ctx, feedback.TemplateID, "", template.SetQuestions{Questions: []string{"Clear", "Punctual"}}, testutil.Coordinator)
		require.NoError(t, err)
		require.Len(t, v2.Questions, 2)
		assert.Equal(t, feedback.Questions[1].ID, v2.Questions[0].ID, "unchanged text keeps its id")
		assert.NotEqual(t, feedback.Questions[0].ID, v2.Questions[1].ID)
	})

	t.Run("category", func(t *testing.T) {
		cat := appraisal.Categories[1]
		v2, err := svc.SetQuestions(ctx, appraisal.TemplateID, cat.ID, template.SetQuestions{Questions: []string{"Initiative"}}, testutil.Coordinator)
		require.NoError(t, err)
		got, _, ok := v2.Category(cat.ID)
		require.True(t, ok)
		require.Len(t, got.Questions, 1)
		assert.Equal(t, cat.Questions[1].ID, got.Questions[0].ID)
	})

	tests := []struct {
		name       string
		templateID string
		categoryID string
		questions  []string
		wantErr    error
	}{
		{name: "blank question", templateID: feedback.TemplateID, questions: []string{"ok", ""}, wantErr: template.ErrInvalidQuestion},
		{name: "flat on rating template", templateID: appraisal.TemplateID, questions: []string{"ok"}, wantErr: template.ErrWrongStyle},
		{name: "category on choice template", templateID: feedback.TemplateID, categoryID: "x", questions: []string{"ok"}, wantErr: template.ErrWrongStyle},
		{name: "unknown category", templateID: appraisal.TemplateID, categoryID: "x", questions: []string{"ok"}, wantErr: template.ErrCategoryNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SetQuestions(ctx, tt.templateID, tt.categoryID, template.SetQuestions{Questions: tt.questions}, testutil.Coordinator)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}
}

// Every edit produces the next version and leaves the previous snapshots as they were.
func Test_service_editsNeverMutatePriorVersions(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)
	v1 := testutil.CreateTemplate(t, svc, testutil.AppraisalSeed())
	before := mustJSON(t, v1)

	cat := v1.Categories[0]
	edits := []func() (template.Snapshot, error){
		func() (template.Snapshot, error) {
			return svc.AddCategory(ctx, v1.TemplateID, template.NewCategory{Name: "More", DisplayOrder: 3, Questions: []string{"x"}}, testutil.Coordinator)
		},
		func() (template.Snapshot, error) {
			return svc.SetQuestions(ctx, v1.TemplateID, cat.ID, template.SetQuestions{Questions: []string{"Punctuality", "Grooming"}}, testutil.Coordinator)
		},
		func() (template.Snapshot, error) {
			return svc.RenameCategory(ctx, v1.TemplateID, cat.ID, template.RenameCategory{Name: "Habits"}, testutil.Coordinator)
		},
	}
	for i, edit := range edits {
		snap, err := edit()
		require.NoError(t, err)
		assert.Equal(t, i+2, snap.Version)

		got, err := svc.GetVersion(ctx, v1.TemplateID, 1)
		require.NoError(t, err)
		assert.JSONEq(t, string(before), string(mustJSON(t, got)))
	}

	_, err := svc.GetVersion(ctx, v1.TemplateID, 99)
	assert.Equal(t, template.ErrNotFound, errors.Cause(err))
}

func Test_service_concurrentEdits(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)
	v1 := testutil.CreateTemplate(t, svc, testutil.FeedbackSeed(template.KindStudentFeedback))

	const n = 10
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := svc.SetQuestions(ctx, v1.TemplateID, "", template.SetQuestions{Questions: []string{"q", string(rune('a' + i))}}, testutil.Coordinator)
			errs <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		assert.NoError(t, <-errs)
	}

	latest, err := svc.GetLatest(ctx, v1.TemplateID)
	require.NoError(t, err)
	assert.Equal(t, n+1, latest.Version)
	for v := 1; v <= n+1; v++ {
		_, err := svc.GetVersion(ctx, v1.TemplateID, v)
		assert.NoError(t, err, "version %d", v)
	}
}
