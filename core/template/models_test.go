package template_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ervnjmsdnts/ojt/core/template"
	"github.com/ervnjmsdnts/ojt/tests"
)

func TestNewTemplate_Validate(t *testing.T) {
	validate, translator := testutil.NewValidator()

	tests := []struct {
		name    string
		nt      template.NewTemplate
		wantTag string
		wantMsg string
	}{
		{
			name:    "missing kind",
			nt:      template.NewTemplate{},
			wantTag: "required",
			wantMsg: "this field is required",
		},
		{
			name:    "unknown kind",
			nt:      template.NewTemplate{Kind: "exit-interview"},
			wantTag: "templatekind",
			wantMsg: "must be one of appraisal, supervisor-feedback or student-feedback",
		},
		{
			name: "blank category name",
			nt: template.NewTemplate{
				Kind:       template.KindAppraisal,
				Categories: []template.NewCategory{{Name: "   ", DisplayOrder: 1}},
			},
			wantTag: "required",
			wantMsg: "this field is required",
		},
		{
			name: "missing display order",
			nt: template.NewTemplate{
				Kind:       template.KindAppraisal,
				Categories: []template.NewCategory{{Name: "Attitude"}},
			},
			wantTag: "required",
			wantMsg: "this field is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nt.Validate(validate)
			require.Error(t, err)
			verrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "want validator.ValidationErrors, got %T", err)
			assert.Equal(t, tt.wantTag, verrs[0].Tag())
			assert.Equal(t, tt.wantMsg, verrs[0].Translate(translator))
		})
	}

	t.Run("cleans input", func(t *testing.T) {
		nt := template.NewTemplate{
			Kind:       template.KindAppraisal,
			Categories: []template.NewCategory{{Name: " Attitude ", DisplayOrder: 2, Questions: []string{" Initiative "}}},
		}
		require.NoError(t, nt.Validate(validate))
		assert.Equal(t, "Attitude", nt.Categories[0].Name)
		assert.Equal(t, []string{"Initiative"}, nt.Categories[0].Questions)
	})
}

func TestReorderCategories_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	var rc template.ReorderCategories
	err := rc.Validate(validate)
	require.Error(t, err)
	assert.Equal(t, "category_ids", err.(validator.ValidationErrors)[0].Field())

	rc = template.ReorderCategories{CategoryIDs: []string{" a ", "b"}}
	require.NoError(t, rc.Validate(validate))
	assert.Equal(t, []string{"a", "b"}, rc.CategoryIDs)
}

func TestKind(t *testing.T) {
	tests := []struct {
		kind      template.Kind
		wantValid bool
		wantStyle template.Style
		wantTitle string
	}{
		{template.KindAppraisal, true, template.StyleRating, "Student Appraisal"},
		{template.KindSupervisorFeedback, true, template.StyleChoice, "Supervisor Feedback"},
		{template.KindStudentFeedback, true, template.StyleChoice, "Student Feedback"},
		{"exit-interview", false, template.StyleChoice, "exit-interview"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.wantValid, tt.kind.Valid())
			assert.Equal(t, tt.wantStyle, tt.kind.Style())
			assert.Equal(t, tt.wantTitle, tt.kind.Title())
		})
	}
}

func TestSnapshot_questions(t *testing.T) {
	rating := template.Snapshot{
		Style: template.StyleRating,
		Categories: []template.Category{
			{ID: "c1", Questions: []template.Question{{ID: "q1"}, {ID: "q2"}}},
			{ID: "c2", Questions: []template.Question{{ID: "q3"}}},
		},
	}
	assert.Equal(t, []string{"q1", "q2", "q3"}, rating.QuestionIDs())
	assert.Equal(t, 3, rating.QuestionCount())

	var cats []string
	rating.EachQuestion(func(cat *template.Category, q template.Question) {
		cats = append(cats, cat.ID)
	})
	assert.Equal(t, []string{"c1", "c1", "c2"}, cats)

	choice := template.Snapshot{Style: template.StyleChoice, Questions: []template.Question{{ID: "q9"}}}
	choice.EachQuestion(func(cat *template.Category, q template.Question) {
		assert.Nil(t, cat)
	})
	assert.Equal(t, []string{"q9"}, choice.QuestionIDs())

	clone := rating.Clone()
	clone.Categories[0].Questions[0].Text = "changed"
	assert.Empty(t, rating.Categories[0].Questions[0].Text)
}
