package response

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/ervnjmsdnts/ojt/core/template"
)

var (
	ErrMissingSignature = errors.New("a signature is required")
	ErrInvalidSignature = errors.New("signature reference is unknown")
)

// MissingAnswersError lists the questions of the bound version left unanswered, in render order.
type MissingAnswersError struct {
	QuestionIDs []string
}

func (e *MissingAnswersError) Error() string {
	return fmt.Sprintf("missing answers for question(s): %s", strings.Join(e.QuestionIDs, ", "))
}

// InvalidAnswerValueError reports an answer out of range (ratings) or out of domain (choices),
// or an answer to a question the bound version does not have.
type InvalidAnswerValueError struct {
	QuestionID string
}

func (e *InvalidAnswerValueError) Error() string {
	return fmt.Sprintf("invalid answer value for question %s", e.QuestionID)
}

// Contract is the set of rules a submission must satisfy, derived from one template version.
type Contract struct {
	Style    template.Style
	Required []string // question ids in render order

	categories map[string]string // {questionID: categoryID}
}

func NewContract(snap template.Snapshot) Contract {
	c := Contract{
		Style:      snap.Style,
		Required:   make([]string, 0, snap.QuestionCount()),
		categories: make(map[string]string, snap.QuestionCount()),
	}
	snap.EachQuestion(func(cat *template.Category, q template.Question) {
		c.Required = append(c.Required, q.ID)
		if cat != nil {
			c.categories[q.ID] = cat.ID
		} else {
			c.categories[q.ID] = ""
		}
	})
	return c
}

// Check reports, in this order, missing answers, the first invalid value and a missing signature.
func (c Contract) Check(sub Submission) error {
	var missing []string
	for _, id := range c.Required {
		if _, ok := sub.Answers[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return &MissingAnswersError{QuestionIDs: missing}
	}

	for _, id := range c.Required {
		if !c.validValue(sub.Answers[id]) {
			return &InvalidAnswerValueError{QuestionID: id}
		}
	}
	if len(sub.Answers) > len(c.Required) {
		unknown := make([]string, 0, len(sub.Answers)-len(c.Required))
		for id := range sub.Answers {
			if _, ok := c.categories[id]; !ok {
				unknown = append(unknown, id)
			}
		}
		sort.Strings(unknown)
		return &InvalidAnswerValueError{QuestionID: unknown[0]}
	}

	if strings.TrimSpace(sub.SignatureRef) == "" {
		return ErrMissingSignature
	}
	return nil
}

func (c Contract) validValue(v AnswerValue) bool {
	if c.Style == template.StyleRating {
		return v.validRating()
	}
	return v.validChoice()
}

// answers turns a checked submission into the ordered answers to store.
func (c Contract) answers(sub Submission) []Answer {
	answers := make([]Answer, 0, len(c.Required))
	for _, id := range c.Required {
		v := sub.Answers[id]
		a := Answer{QuestionID: id, CategoryID: c.categories[id]}
		if c.Style == template.StyleRating {
			a.Rating = v.Rating
		} else {
			a.Choice = v.Choice
		}
		answers = append(answers, a)
	}
	return answers
}

// Validate checks sub against the contract of snap. It has no side effects.
func Validate(snap template.Snapshot, sub Submission) error {
	return NewContract(snap).Check(sub)
}
