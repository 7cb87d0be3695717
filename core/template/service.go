package template

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ervnjmsdnts/ojt/core"
)

var (
	// errors
	ErrNotFound         = errors.New("template not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrKindExists       = errors.New("a template of this kind already exists")
	ErrInvalidOrder     = errors.New("category ids must match the existing categories exactly")
	ErrDuplicateOrder   = errors.New("another category already has this display order")
	ErrInvalidQuestion  = errors.New("question text cannot be blank")
	ErrWrongStyle       = errors.New("operation does not apply to this template style")
	ErrVersionConflict  = errors.New("template was modified concurrently")
)

type (
	Repository interface {
		// CreateTemplate saves tmpl together with its first snapshot.
		// It fails with ErrKindExists if a template of the same kind exists.
		CreateTemplate(ctx context.Context, tmpl Template, snap Snapshot) error
		GetTemplate(ctx context.Context, id string) (Template, error)
		GetTemplateByKind(ctx context.Context, kind Kind) (Template, error)
		GetSnapshot(ctx context.Context, templateID string, version int) (Snapshot, error)
		// SaveVersion appends snap and moves the template's current version to snap.Version,
		// only if the current version is still snap.Version-1 (ErrVersionConflict otherwise).
		SaveVersion(ctx context.Context, snap Snapshot) error
	}

	// Service is the template store and editor. Every edit produces a new version; saved versions never change.
	Service interface {
		Create(ctx context.Context, nt NewTemplate, actor core.Actor) (Snapshot, error)
		GetVersion(ctx context.Context, templateID string, version int) (Snapshot, error)
		GetLatest(ctx context.Context, templateID string) (Snapshot, error)
		GetByKind(ctx context.Context, kind Kind) (Template, error)
		GetLatestByKind(ctx context.Context, kind Kind) (Snapshot, error)

		AddCategory(ctx context.Context, templateID string, nc NewCategory, actor core.Actor) (Snapshot, error)
		RenameCategory(ctx context.Context, templateID, categoryID string, rc RenameCategory, actor core.Actor) (Snapshot, error)
		ReorderCategories(ctx context.Context, templateID string, rc ReorderCategories, actor core.Actor) (Snapshot, error)
		// SetQuestions replaces the questions of a category, or of the whole template when categoryID is empty.
		SetQuestions(ctx context.Context, templateID, categoryID string, sq SetQuestions, actor core.Actor) (Snapshot, error)
	}

	service struct {
		tx     core.Transactor
		repo   Repository
		logger core.Logger
		now    func() time.Time
		newID  func() string
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(tx core.Transactor, repo Repository, logger core.Logger) Service {
	return &service{
		tx:     tx,
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

func (svc *service) Create(ctx context.Context, nt NewTemplate, actor core.Actor) (Snapshot, error) {
	if !nt.Kind.Valid() {
		return Snapshot{}, core.NewValidationError(nil, core.FieldError{Field: "kind", Error: templateKindText})
	}

	now := svc.now()
	tmpl := Template{
		ID:        svc.newID(),
		Kind:      nt.Kind,
		Style:     nt.Kind.Style(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	snap := Snapshot{
		TemplateID: tmpl.ID,
		Kind:       tmpl.Kind,
		Style:      tmpl.Style,
		Version:    1,
		CreatedBy:  actor.ID,
		CreatedAt:  now,
	}

	switch tmpl.Style {
	case StyleRating:
		if len(nt.Questions) > 0 {
			return Snapshot{}, ErrWrongStyle
		}
		snap.Categories = make([]Category, 0, len(nt.Categories))
		for _, nc := range nt.Categories {
			var err error
			if snap, err = svc.addCategory(snap, nc); err != nil {
				return Snapshot{}, err
			}
		}
	case StyleChoice:
		if len(nt.Categories) > 0 {
			return Snapshot{}, ErrWrongStyle
		}
		qs, err := svc.buildQuestions(nil, nt.Questions)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Questions = qs
	}

	if err := svc.repo.CreateTemplate(ctx, tmpl, snap); err != nil {
		return Snapshot{}, errors.Wrap(err, "creating template")
	}
	svc.logger.Info("template created", map[string]interface{}{"template_id": tmpl.ID, "kind": tmpl.Kind}, actor)
	return snap, nil
}

func (svc *service) GetVersion(ctx context.Context, templateID string, version int) (Snapshot, error) {
	if templateID == "" || version < 1 {
		return Snapshot{}, ErrNotFound
	}
	return svc.repo.GetSnapshot(ctx, templateID, version)
}

func (svc *service) GetLatest(ctx context.Context, templateID string) (Snapshot, error) {
	if templateID == "" {
		return Snapshot{}, ErrNotFound
	}
	tmpl, err := svc.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return Snapshot{}, err
	}
	return svc.repo.GetSnapshot(ctx, tmpl.ID, tmpl.Version)
}

func (svc *service) GetByKind(ctx context.Context, kind Kind) (Template, error) {
	if !kind.Valid() {
		return Template{}, ErrNotFound
	}
	return svc.repo.GetTemplateByKind(ctx, kind)
}

func (svc *service) GetLatestByKind(ctx context.Context, kind Kind) (Snapshot, error) {
	tmpl, err := svc.GetByKind(ctx, kind)
	if err != nil {
		return Snapshot{}, err
	}
	return svc.repo.GetSnapshot(ctx, tmpl.ID, tmpl.Version)
}

func (svc *service) AddCategory(ctx context.Context, templateID string, nc NewCategory, actor core.Actor) (Snapshot, error) {
	return svc.mutate(ctx, templateID, actor, func(snap Snapshot) (Snapshot, error) {
		if snap.Style != StyleRating {
			return Snapshot{}, ErrWrongStyle
		}
		return svc.addCategory(snap, nc)
	})
}

func (svc *service) RenameCategory(ctx context.Context, templateID, categoryID string, rc RenameCategory, actor core.Actor) (Snapshot, error) {
	name := core.CleanString(rc.Name)
	if name == "" {
		return Snapshot{}, core.NewValidationError(nil, core.FieldError{Field: "name", Error: "this field is required"})
	}
	return svc.mutate(ctx, templateID, actor, func(snap Snapshot) (Snapshot, error) {
		if snap.Style != StyleRating {
			return Snapshot{}, ErrWrongStyle
		}
		cat, i, ok := snap.Category(categoryID)
		if !ok {
			return Snapshot{}, ErrCategoryNotFound
		}
		// a renamed category is a new entity; its questions are untouched
		cat.ID = svc.newID()
		cat.Name = name
		snap.Categories[i] = cat
		return snap, nil
	})
}

func (svc *service) ReorderCategories(ctx context.Context, templateID string, rc ReorderCategories, actor core.Actor) (Snapshot, error) {
	return svc.mutate(ctx, templateID, actor, func(snap Snapshot) (Snapshot, error) {
		if snap.Style != StyleRating {
			return Snapshot{}, ErrWrongStyle
		}
		if len(rc.CategoryIDs) != len(snap.Categories) {
			return Snapshot{}, ErrInvalidOrder
		}

		seen := make(map[string]bool, len(rc.CategoryIDs))
		reordered := make([]Category, 0, len(rc.CategoryIDs))
		for i, id := range rc.CategoryIDs {
			cat, _, ok := snap.Category(id)
			if !ok || seen[id] {
				return Snapshot{}, ErrInvalidOrder
			}
			seen[id] = true
			cat.DisplayOrder = i + 1
			reordered = append(reordered, cat)
		}
		snap.Categories = reordered
		return snap, nil
	})
}

func (svc *service) SetQuestions(ctx context.Context, templateID, categoryID string, sq SetQuestions, actor core.Actor) (Snapshot, error) {
	return svc.mutate(ctx, templateID, actor, func(snap Snapshot) (Snapshot, error) {
		if categoryID == "" {
			if snap.Style != StyleChoice {
				return Snapshot{}, ErrWrongStyle
			}
			qs, err := svc.buildQuestions(snap.Questions, sq.Questions)
			if err != nil {
				return Snapshot{}, err
			}
			snap.Questions = qs
			return snap, nil
		}

		if snap.Style != StyleRating {
			return Snapshot{}, ErrWrongStyle
		}
		cat, i, ok := snap.Category(categoryID)
		if !ok {
			return Snapshot{}, ErrCategoryNotFound
		}
		qs, err := svc.buildQuestions(cat.Questions, sq.Questions)
		if err != nil {
			return Snapshot{}, err
		}
		cat.Questions = qs
		snap.Categories[i] = cat
		return snap, nil
	})
}

// mutate applies edit to a copy of the latest snapshot and saves the result as the next version.
func (svc *service) mutate(
	ctx context.Context,
	templateID string,
	actor core.Actor,
	edit func(snap Snapshot) (Snapshot, error),
) (Snapshot, error) {
	var next Snapshot
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		latest, err := svc.GetLatest(ctx, templateID)
		if err != nil {
			return err
		}

		next, err = edit(latest.Clone())
		if err != nil {
			return err
		}
		next.sortCategories()
		next.Version = latest.Version + 1
		next.CreatedBy = actor.ID
		next.CreatedAt = svc.now()

		return svc.repo.SaveVersion(ctx, next)
	})
	if err != nil {
		return Snapshot{}, err
	}

	svc.logger.Info(
		"template version saved",
		map[string]interface{}{"template_id": next.TemplateID, "version": next.Version},
		actor,
	)
	return next, nil
}

func (svc *service) addCategory(snap Snapshot, nc NewCategory) (Snapshot, error) {
	name := core.CleanString(nc.Name)
	if name == "" {
		return Snapshot{}, core.NewValidationError(nil, core.FieldError{Field: "name", Error: "this field is required"})
	}
	if nc.DisplayOrder < 1 {
		return Snapshot{}, core.NewValidationError(nil, core.FieldError{Field: "display_order", Error: "display_order must be 1 or greater"})
	}
	for _, c := range snap.Categories {
		if c.DisplayOrder == nc.DisplayOrder {
			return Snapshot{}, ErrDuplicateOrder
		}
	}

	qs, err := svc.buildQuestions(nil, nc.Questions)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Categories = append(snap.Categories, Category{
		ID:           svc.newID(),
		Name:         name,
		DisplayOrder: nc.DisplayOrder,
		Questions:    qs,
	})
	snap.sortCategories()
	return snap, nil
}

// buildQuestions turns texts into questions. A text equal to a question of prev keeps that question's id.
func (svc *service) buildQuestions(prev []Question, texts []string) ([]Question, error) {
	used := make([]bool, len(prev))
	qs := make([]Question, 0, len(texts))
	for _, text := range texts {
		text = core.CleanString(text)
		if text == "" {
			return nil, ErrInvalidQuestion
		}

		q := Question{Text: text}
		for i, p := range prev {
			if !used[i] && p.Text == text {
				used[i] = true
				q.ID = p.ID
				break
			}
		}
		if q.ID == "" {
			q.ID = svc.newID()
		}
		qs = append(qs, q)
	}
	return qs, nil
}
