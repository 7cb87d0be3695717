package grant

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ervnjmsdnts/ojt/core"
	"github.com/ervnjmsdnts/ojt/core/subject"
	"github.com/ervnjmsdnts/ojt/core/template"
)

var (
	// errors
	ErrInvalidCode     = errors.New("invalid access code")
	ErrExpired         = errors.New("access code has expired")
	ErrAlreadyConsumed = errors.New("access code has already been used")
	ErrEmptyTemplate   = errors.New("template has no questions")
	// ErrPendingExists is returned by repositories when the subject already holds a pending grant for the template.
	ErrPendingExists = errors.New("another access code is pending for this subject")
	// ErrNotPending is returned by repositories when a conditional transition finds the grant in a terminal state.
	ErrNotPending = errors.New("grant is not pending")
)

type (
	Repository interface {
		// InsertGrant fails with ErrPendingExists when g is pending and another pending grant
		// of the same subject and template exists.
		InsertGrant(ctx context.Context, g Grant) error
		// GetGrant fails with ErrInvalidCode for an unknown code.
		GetGrant(ctx context.Context, code string) (Grant, error)
		// ExpirePending expires every pending grant of (subjectID, templateID).
		ExpirePending(ctx context.Context, subjectID, templateID string, at time.Time) (int64, error)
		// TransitionPending moves the grant to `to` only if it is still pending.
		// It fails with ErrNotPending when no pending grant has this code.
		TransitionPending(ctx context.Context, code string, to Status, at time.Time) error
		// ExpireIssuedBefore expires pending grants issued before cutoff.
		ExpireIssuedBefore(ctx context.Context, cutoff, at time.Time) (int64, error)
	}

	Service interface {
		// Issue binds the latest version of the template to a new pending grant for the subject,
		// expiring any other pending grant of the same subject and template.
		Issue(ctx context.Context, subjectID, templateID string, ir IssueRequest, actor core.Actor) (Grant, error)
		Get(ctx context.Context, code string) (Grant, error)
		// Resolve fails with ErrInvalidCode, ErrAlreadyConsumed or ErrExpired unless the grant is pending.
		Resolve(ctx context.Context, code string) (View, error)
		// Consume marks a pending grant consumed. It must run in the transaction that persists the response.
		Consume(ctx context.Context, code string) (Grant, error)
		Expire(ctx context.Context, code string, actor core.Actor) error
		// ExpireStale expires pending grants older than the configured TTL.
		ExpireStale(ctx context.Context) (int64, error)
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		tmplSvc  template.Service
		subjects subject.Projector
		mailSvc  core.EmailService
		logger   core.Logger
		ttl      time.Duration
		codeLen  int
		now      func() time.Time
		newCode  func(n int) (string, error)
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	tx core.Transactor,
	repo Repository,
	tmplSvc template.Service,
	subjects subject.Projector,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) Service {
	return newService(tx, repo, tmplSvc, subjects, mailSvc, logger, conf)
}

func newService(
	tx core.Transactor,
	repo Repository,
	tmplSvc template.Service,
	subjects subject.Projector,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *service {
	return &service{
		tx:       tx,
		repo:     repo,
		tmplSvc:  tmplSvc,
		subjects: subjects,
		mailSvc:  mailSvc,
		logger:   logger,
		ttl:      conf.Grant.TTL,
		codeLen:  conf.Grant.CodeLength,
		now:      func() time.Time { return time.Now().UTC() },
		newCode:  GenerateCode,
	}
}

// NormalizeCode makes codes typed by respondents comparable to issued ones.
func NormalizeCode(code string) string {
	return strings.ToUpper(core.CleanString(code))
}

// statusErr maps a terminal status to the error a respondent sees.
func statusErr(status Status) error {
	switch status {
	case StatusConsumed:
		return ErrAlreadyConsumed
	case StatusExpired:
		return ErrExpired
	}
	return nil
}

func (svc *service) Issue(ctx context.Context, subjectID, templateID string, ir IssueRequest, actor core.Actor) (Grant, error) {
	subjectID = core.CleanString(subjectID)
	if !ir.RespondentRole.Valid() {
		return Grant{}, core.NewValidationError(nil, core.FieldError{Field: "respondent_role", Error: respondentRoleText})
	}

	subj, err := svc.subjects.GetSubject(ctx, subjectID)
	if err != nil {
		return Grant{}, err
	}
	snap, err := svc.tmplSvc.GetLatest(ctx, templateID)
	if err != nil {
		return Grant{}, err
	}
	if snap.QuestionCount() == 0 {
		return Grant{}, core.NewValidationError(ErrEmptyTemplate, core.FieldError{Field: "template", Error: ErrEmptyTemplate.Error()})
	}
	code, err := svc.newCode(svc.codeLen)
	if err != nil {
		return Grant{}, errors.Wrap(err, "generating code")
	}

	now := svc.now()
	g := Grant{
		Code:           code,
		SubjectID:      subj.SubjectID,
		TemplateID:     snap.TemplateID,
		Kind:           snap.Kind,
		BoundVersion:   snap.Version,
		RespondentRole: ir.RespondentRole,
		RecipientEmail: ir.RecipientEmail,
		Status:         StatusPending,
		IssuedAt:       now,
	}

	// a concurrent issue may insert its pending grant between our expire and insert: retry once
	for attempt := 0; attempt < 2; attempt++ {
		if err = svc.replacePending(ctx, g, now); errors.Cause(err) != ErrPendingExists {
			break
		}
	}
	if err != nil {
		return Grant{}, err
	}

	svc.logger.Info(
		"grant issued",
		map[string]interface{}{"subject_id": g.SubjectID, "template_id": g.TemplateID, "version": g.BoundVersion},
		actor,
	)
	if g.RecipientEmail != "" {
		svc.sendCode(g, subj)
	}
	return g, nil
}

// replacePending expires the pending grants of g's subject and template then inserts g, in one transaction.
func (svc *service) replacePending(ctx context.Context, g Grant, now time.Time) error {
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := svc.repo.ExpirePending(ctx, g.SubjectID, g.TemplateID, now); err != nil {
			return errors.Wrap(err, "expiring pending grants")
		}
		return errors.Wrap(svc.repo.InsertGrant(ctx, g), "inserting grant")
	})
}

func (svc *service) sendCode(g Grant, subj subject.Context) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: g.RecipientEmail}},
		Subject:      fmt.Sprintf("%s for %s", g.Kind.Title(), subj.StudentName),
		TemplateName: "grant_issued",
		TemplateData: mailData{
			FormTitle:   g.Kind.Title(),
			StudentName: subj.StudentName,
			CompanyName: subj.CompanyName,
			Code:        g.Code,
		},
	})
}

func (svc *service) Get(ctx context.Context, code string) (Grant, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Grant{}, ErrInvalidCode
	}
	return svc.repo.GetGrant(ctx, code)
}

func (svc *service) Resolve(ctx context.Context, code string) (View, error) {
	g, err := svc.Get(ctx, code)
	if err != nil {
		return View{}, err
	}
	if err = statusErr(g.Status); err != nil {
		return View{}, err
	}
	if svc.isStale(g) {
		if err = svc.repo.TransitionPending(ctx, g.Code, StatusExpired, svc.now()); err != nil && errors.Cause(err) != ErrNotPending {
			return View{}, errors.Wrap(err, "expiring stale grant")
		}
		return View{}, ErrExpired
	}

	snap, err := svc.tmplSvc.GetVersion(ctx, g.TemplateID, g.BoundVersion)
	if err != nil {
		return View{}, errors.Wrap(err, "getting bound template version")
	}
	subj, err := svc.subjects.GetSubject(ctx, g.SubjectID)
	if err != nil {
		return View{}, errors.Wrap(err, "getting subject context")
	}

	return View{
		Code:           g.Code,
		RespondentRole: g.RespondentRole,
		Template:       snap,
		Subject:        subj,
	}, nil
}

func (svc *service) isStale(g Grant) bool {
	return svc.ttl > 0 && g.Status == StatusPending && !g.IssuedAt.Add(svc.ttl).After(svc.now())
}

func (svc *service) Consume(ctx context.Context, code string) (Grant, error) {
	code = NormalizeCode(code)
	now := svc.now()
	if err := svc.transition(ctx, code, StatusConsumed, now); err != nil {
		return Grant{}, err
	}
	g, err := svc.repo.GetGrant(ctx, code)
	if err != nil {
		return Grant{}, errors.Wrap(err, "getting consumed grant")
	}
	return g, nil
}

func (svc *service) Expire(ctx context.Context, code string, actor core.Actor) error {
	code = NormalizeCode(code)
	if err := svc.transition(ctx, code, StatusExpired, svc.now()); err != nil {
		return err
	}
	svc.logger.Info("grant expired", map[string]interface{}{"code": code}, actor)
	return nil
}

// transition moves a pending grant to `to`, reporting why when the grant had already left pending.
func (svc *service) transition(ctx context.Context, code string, to Status, at time.Time) error {
	err := svc.repo.TransitionPending(ctx, code, to, at)
	if errors.Cause(err) != ErrNotPending {
		return err
	}
	g, gErr := svc.repo.GetGrant(ctx, code)
	if gErr != nil {
		return gErr
	}
	if sErr := statusErr(g.Status); sErr != nil {
		return sErr
	}
	return err
}

func (svc *service) ExpireStale(ctx context.Context) (int64, error) {
	if svc.ttl <= 0 {
		return 0, nil
	}
	now := svc.now()
	n, err := svc.repo.ExpireIssuedBefore(ctx, now.Add(-svc.ttl), now)
	if err != nil {
		return 0, errors.Wrap(err, "expiring stale grants")
	}
	if n > 0 {
		svc.logger.Info(fmt.Sprintf("%d stale grant(s) expired", n))
	}
	return n, nil
}
