package grant

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/ervnjmsdnts/ojt/core"
	"github.com/ervnjmsdnts/ojt/core/subject"
	"github.com/ervnjmsdnts/ojt/core/template"
)

// Status is the position of a grant in its lifecycle: pending -> consumed | expired.
// consumed and expired are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusConsumed Status = "consumed"
	StatusExpired  Status = "expired"
)

// Role of the respondent a grant is issued to.
type Role string

const (
	RoleSupervisor Role = "supervisor"
	RoleStudent    Role = "student"
)

var Roles = []Role{RoleSupervisor, RoleStudent}

func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Grant is a single-use access code binding a respondent to a subject and a frozen template version.
type Grant struct {
	Code           string        `json:"code"`
	SubjectID      string        `json:"subject_id"`
	TemplateID     string        `json:"template_id"`
	Kind           template.Kind `json:"kind"`
	BoundVersion   int           `json:"bound_version"`
	RespondentRole Role          `json:"respondent_role"`
	RecipientEmail string        `json:"recipient_email,omitempty"`
	Status         Status        `json:"status"`
	IssuedAt       time.Time     `json:"issued_at"` // UTC
	ConsumedAt     null.Time     `json:"consumed_at"`
	ExpiredAt      null.Time     `json:"expired_at"`
}

// SetStatus records a transition out of pending at the given time.
func (g *Grant) SetStatus(to Status, at time.Time) {
	g.Status = to
	switch to {
	case StatusConsumed:
		g.ConsumedAt = null.TimeFrom(at)
	case StatusExpired:
		g.ExpiredAt = null.TimeFrom(at)
	}
}

// View is what a respondent gets when presenting a code: the bound form and the subject header.
type View struct {
	Code           string            `json:"code"`
	RespondentRole Role              `json:"respondent_role"`
	Template       template.Snapshot `json:"template"`
	Subject        subject.Context   `json:"subject"`
}

// IssueRequest contains information needed to issue a Grant.
type IssueRequest struct {
	RespondentRole Role   `json:"respondent_role" validate:"required,respondentrole"`
	RecipientEmail string `json:"recipient_email" validate:"omitempty,email"`
}

func (ir *IssueRequest) Validate(validate *validator.Validate) error {
	ir.RespondentRole = Role(core.CleanString(string(ir.RespondentRole), true /* lower */))
	ir.RecipientEmail = core.CleanString(ir.RecipientEmail, true /* lower */)
	return validate.Struct(ir)
}

type mailData struct {
	FormTitle   string
	StudentName string
	CompanyName string
	Code        string
}
