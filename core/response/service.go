package response

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ervnjmsdnts/ojt/core"
	"github.com/ervnjmsdnts/ojt/core/grant"
	"github.com/ervnjmsdnts/ojt/core/template"
)

var (
	// errors
	ErrNotFound         = errors.New("response not found")
	ErrAlreadySubmitted = errors.New("a response has already been submitted for this access code")
	ErrEmptySignature   = errors.New("signature image is empty")
)

type (
	Repository interface {
		// CreateResponse fails with ErrAlreadySubmitted when a response exists for r.GrantCode.
		CreateResponse(ctx context.Context, r Response) error
		// GetLatestResponse returns the most recently submitted response, ErrNotFound if there is none.
		GetLatestResponse(ctx context.Context, subjectID, templateID string) (Response, error)
	}

	// Service is the submission ledger. Responses are append-only.
	Service interface {
		// Submit validates sub against the grant's bound version, then stores the response and consumes
		// the grant as one unit. A consumed grant yields ErrAlreadySubmitted.
		Submit(ctx context.Context, code string, sub Submission) (Response, error)
		GetLatest(ctx context.Context, subjectID, templateID string) (Response, error)
		GetLatestView(ctx context.Context, subjectID string, kind template.Kind) (View, error)
		// StoreSignature keeps a signature image for a pending grant and returns its reference.
		StoreSignature(ctx context.Context, code string, data []byte) (string, error)
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		grantSvc grant.Service
		tmplSvc  template.Service
		blobs    core.BlobStore
		logger   core.Logger
		now      func() time.Time
		newID    func() string
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	tx core.Transactor,
	repo Repository,
	grantSvc grant.Service,
	tmplSvc template.Service,
	blobs core.BlobStore,
	logger core.Logger,
) Service {
	return &service{
		tx:       tx,
		repo:     repo,
		grantSvc: grantSvc,
		tmplSvc:  tmplSvc,
		blobs:    blobs,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

func (svc *service) Submit(ctx context.Context, code string, sub Submission) (Response, error) {
	view, err := svc.grantSvc.Resolve(ctx, code)
	if err != nil {
		if errors.Cause(err) == grant.ErrAlreadyConsumed {
			return Response{}, ErrAlreadySubmitted
		}
		return Response{}, err
	}

	sub.clean()
	contract := NewContract(view.Template)
	if err = contract.Check(sub); err != nil {
		return Response{}, err
	}
	if _, err = svc.blobs.Resolve(sub.SignatureRef); err != nil {
		if errors.Cause(err) == core.ErrUnknownBlob {
			return Response{}, ErrInvalidSignature
		}
		return Response{}, errors.Wrap(err, "resolving signature")
	}

	resp := Response{
		ID:                          svc.newID(),
		GrantCode:                   view.Code,
		Answers:                     contract.answers(sub),
		Comments:                    null.NewString(sub.Comments, sub.Comments != ""),
		OtherCommentsAndSuggestions: null.NewString(sub.OtherCommentsAndSuggestions, sub.OtherCommentsAndSuggestions != ""),
		SignatureRef:                sub.SignatureRef,
	}

	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		g, err := svc.grantSvc.Consume(ctx, view.Code)
		if err != nil {
			if errors.Cause(err) == grant.ErrAlreadyConsumed {
				return ErrAlreadySubmitted
			}
			return err
		}

		// the bound version comes from the grant, never from the current template
		resp.SubjectID = g.SubjectID
		resp.TemplateID = g.TemplateID
		resp.Kind = g.Kind
		resp.BoundVersion = g.BoundVersion
		resp.SubmittedAt = g.ConsumedAt.Time
		if resp.SubmittedAt.IsZero() {
			resp.SubmittedAt = svc.now()
		}
		return svc.repo.CreateResponse(ctx, resp)
	})
	if err != nil {
		return Response{}, err
	}

	svc.logger.Info("response submitted", map[string]interface{}{
		"response_id": resp.ID, "subject_id": resp.SubjectID, "template_id": resp.TemplateID, "version": resp.BoundVersion,
	})
	return resp, nil
}

func (svc *service) GetLatest(ctx context.Context, subjectID, templateID string) (Response, error) {
	subjectID = core.CleanString(subjectID)
	if subjectID == "" || templateID == "" {
		return Response{}, ErrNotFound
	}
	return svc.repo.GetLatestResponse(ctx, subjectID, templateID)
}

func (svc *service) GetLatestView(ctx context.Context, subjectID string, kind template.Kind) (View, error) {
	tmpl, err := svc.tmplSvc.GetByKind(ctx, kind)
	if err != nil {
		return View{}, err
	}
	resp, err := svc.GetLatest(ctx, subjectID, tmpl.ID)
	if err != nil {
		return View{}, err
	}
	snap, err := svc.tmplSvc.GetVersion(ctx, resp.TemplateID, resp.BoundVersion)
	if err != nil {
		return View{}, errors.Wrap(err, "getting bound template version")
	}

	v := View{
		Response:  resp,
		Template:  snap,
		Aggregate: newAggregate(resp, snap),
	}
	if url, err := svc.blobs.Resolve(resp.SignatureRef); err != nil {
		svc.logger.Warn(fmt.Sprintf("resolving signature %q: %v", resp.SignatureRef, err), err)
	} else {
		v.SignatureURL = url
	}
	return v, nil
}

func (svc *service) StoreSignature(ctx context.Context, code string, data []byte) (string, error) {
	if _, err := svc.grantSvc.Resolve(ctx, code); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", core.NewValidationError(nil, core.FieldError{Field: "signature", Error: ErrEmptySignature.Error()})
	}
	ref, err := svc.blobs.Store(ctx, data)
	if err != nil {
		return "", errors.Wrap(err, "storing signature")
	}
	return ref, nil
}
