package template

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ervnjmsdnts/ojt/core"
)

// Kind identifies which evaluation form a template defines.
type Kind string

// Kinds
const (
	KindAppraisal          Kind = "appraisal"
	KindSupervisorFeedback Kind = "supervisor-feedback"
	KindStudentFeedback    Kind = "student-feedback"
)

var Kinds = []Kind{KindAppraisal, KindSupervisorFeedback, KindStudentFeedback}

func (k Kind) Valid() bool {
	for _, kind := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Style tells how a template lays out its questions and how they are answered.
type Style string

const (
	// StyleRating templates group questions in categories, answered with a 1-5 rating.
	StyleRating Style = "rating"
	// StyleChoice templates hold a flat question list, answered with SA|A|N|D|SD.
	StyleChoice Style = "choice"
)

// Title is the human readable name of the form.
func (k Kind) Title() string {
	switch k {
	case KindAppraisal:
		return "Student Appraisal"
	case KindSupervisorFeedback:
		return "Supervisor Feedback"
	case KindStudentFeedback:
		return "Student Feedback"
	}
	return string(k)
}

func (k Kind) Style() Style {
	if k == KindAppraisal {
		return StyleRating
	}
	return StyleChoice
}

type Template struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Style     Style     `json:"style"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Category struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	DisplayOrder int        `json:"display_order"`
	Questions    []Question `json:"questions"`
}

// Snapshot is the materialized content of one template version.
// Snapshots are never modified once saved; edits produce the next version.
type Snapshot struct {
	TemplateID string     `json:"template_id"`
	Kind       Kind       `json:"kind"`
	Style      Style      `json:"style"`
	Version    int        `json:"version"`
	Categories []Category `json:"categories,omitempty"`
	Questions  []Question `json:"questions,omitempty"`
	CreatedBy  string     `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"` // UTC
}

// QuestionIDs lists every question of the snapshot in render order.
func (s Snapshot) QuestionIDs() []string {
	ids := make([]string, 0, s.QuestionCount())
	s.EachQuestion(func(_ *Category, q Question) {
		ids = append(ids, q.ID)
	})
	return ids
}

func (s Snapshot) QuestionCount() int {
	n := len(s.Questions)
	for _, c := range s.Categories {
		n += len(c.Questions)
	}
	return n
}

// EachQuestion calls fn for every question in render order. cat is nil for flat templates.
func (s Snapshot) EachQuestion(fn func(cat *Category, q Question)) {
	if s.Style == StyleRating {
		for i := range s.Categories {
			cat := &s.Categories[i]
			for _, q := range cat.Questions {
				fn(cat, q)
			}
		}
		return
	}
	for _, q := range s.Questions {
		fn(nil, q)
	}
}

// Category returns the category with the given id and its index.
func (s Snapshot) Category(id string) (Category, int, bool) {
	for i, c := range s.Categories {
		if c.ID == id {
			return c, i, true
		}
	}
	return Category{}, -1, false
}

// Clone returns a deep copy so that edits never reach a saved snapshot.
func (s Snapshot) Clone() Snapshot {
	clone := s
	if s.Categories != nil {
		clone.Categories = make([]Category, len(s.Categories))
		for i, c := range s.Categories {
			clone.Categories[i] = c
			clone.Categories[i].Questions = cloneQuestions(c.Questions)
		}
	}
	clone.Questions = cloneQuestions(s.Questions)
	return clone
}

func (s *Snapshot) sortCategories() {
	sort.SliceStable(s.Categories, func(i, j int) bool {
		return s.Categories[i].DisplayOrder < s.Categories[j].DisplayOrder
	})
}

func cloneQuestions(qs []Question) []Question {
	if qs == nil {
		return nil
	}
	clone := make([]Question, len(qs))
	copy(clone, qs)
	return clone
}

// NewCategory contains information needed to add a Category.
type NewCategory struct {
	Name         string   `json:"name" validate:"required,nonblank,max=255"`
	DisplayOrder int      `json:"display_order" validate:"required,min=1"`
	Questions    []string `json:"questions"`
}

func (nc *NewCategory) Validate(validate *validator.Validate) error {
	nc.clean()
	return validate.Struct(nc)
}

func (nc *NewCategory) clean() {
	nc.Name = core.CleanString(nc.Name)
	nc.Questions = core.CleanStrings(nc.Questions)
}

// NewTemplate seeds the first version of a template. Both lists may be empty.
type NewTemplate struct {
	Kind       Kind          `json:"kind" validate:"required,templatekind"`
	Categories []NewCategory `json:"categories" validate:"omitempty,dive"`
	Questions  []string      `json:"questions"`
}

func (nt *NewTemplate) Validate(validate *validator.Validate) error {
	for i := range nt.Categories {
		nt.Categories[i].clean()
	}
	nt.Questions = core.CleanStrings(nt.Questions)
	return validate.Struct(nt)
}

type RenameCategory struct {
	Name string `json:"name" validate:"required,nonblank,max=255"`
}

func (rc *RenameCategory) Validate(validate *validator.Validate) error {
	rc.Name = core.CleanString(rc.Name)
	return validate.Struct(rc)
}

type ReorderCategories struct {
	CategoryIDs []string `json:"category_ids" validate:"required"`
}

func (rc *ReorderCategories) Validate(validate *validator.Validate) error {
	rc.CategoryIDs = core.CleanStrings(rc.CategoryIDs)
	return validate.Struct(rc)
}

// SetQuestions replaces a question list wholesale. Blank texts are rejected with ErrInvalidQuestion.
type SetQuestions struct {
	Questions []string `json:"questions"`
}

func (sq *SetQuestions) Validate(validate *validator.Validate) error {
	sq.Questions = core.CleanStrings(sq.Questions)
	return validate.Struct(sq)
}
