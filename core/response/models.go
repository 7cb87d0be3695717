package response

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/ervnjmsdnts/ojt/core"
	"github.com/ervnjmsdnts/ojt/core/template"
)

// Choice is a fixed-choice answer.
type Choice string

const (
	ChoiceStronglyAgree    Choice = "SA"
	ChoiceAgree            Choice = "A"
	ChoiceNeutral          Choice = "N"
	ChoiceDisagree         Choice = "D"
	ChoiceStronglyDisagree Choice = "SD"
)

var Choices = []Choice{ChoiceStronglyAgree, ChoiceAgree, ChoiceNeutral, ChoiceDisagree, ChoiceStronglyDisagree}

func (c Choice) Valid() bool {
	for _, choice := range Choices {
		if c == choice {
			return true
		}
	}
	return false
}

// Rating bounds
const (
	MinRating = 1
	MaxRating = 5
)

// AnswerValue is a submitted answer: a JSON number is read as a rating, a JSON string as a choice.
// Anything else (including non-integer numbers) is kept as an invalid value.
type AnswerValue struct {
	Rating   int
	Choice   Choice
	isRating bool
	isChoice bool
}

func RatingValue(r int) AnswerValue     { return AnswerValue{Rating: r, isRating: true} }
func ChoiceValue(c Choice) AnswerValue  { return AnswerValue{Choice: c, isChoice: true} }
func (v AnswerValue) IsRating() bool    { return v.isRating }
func (v AnswerValue) IsChoice() bool    { return v.isChoice }
func (v AnswerValue) validRating() bool { return v.isRating && v.Rating >= MinRating && v.Rating <= MaxRating }
func (v AnswerValue) validChoice() bool { return v.isChoice && v.Choice.Valid() }

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	*v = AnswerValue{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v.Choice = Choice(core.CleanString(s))
		v.isChoice = true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if r, err := strconv.Atoi(string(data)); err == nil {
			v.Rating = r
			v.isRating = true
		}
	}
	return nil
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.isRating:
		return json.Marshal(v.Rating)
	case v.isChoice:
		return json.Marshal(v.Choice)
	}
	return []byte("null"), nil
}

// Submission is what a respondent posts against a grant.
type Submission struct {
	Answers                     map[string]AnswerValue `json:"answers"`
	Comments                    string                 `json:"comments"`
	OtherCommentsAndSuggestions string                 `json:"other_comments_and_suggestions"`
	SignatureRef                string                 `json:"signature_ref"`
}

func (s *Submission) clean() {
	s.Comments = core.CleanString(s.Comments)
	s.OtherCommentsAndSuggestions = core.CleanString(s.OtherCommentsAndSuggestions)
	s.SignatureRef = core.CleanString(s.SignatureRef)
}

// Answer is a validated answer, stored in render order.
type Answer struct {
	QuestionID string `json:"question_id"`
	CategoryID string `json:"category_id,omitempty"`
	Rating     int    `json:"rating,omitempty"`
	Choice     Choice `json:"choice,omitempty"`
}

// Response is the immutable record of a submission.
type Response struct {
	ID                          string        `json:"id"`
	GrantCode                   string        `json:"grant_code"`
	SubjectID                   string        `json:"subject_id"`
	TemplateID                  string        `json:"template_id"`
	Kind                        template.Kind `json:"kind"`
	BoundVersion                int           `json:"bound_version"`
	Answers                     []Answer      `json:"answers"`
	Comments                    null.String   `json:"comments"`
	OtherCommentsAndSuggestions null.String   `json:"other_comments_and_suggestions"`
	SignatureRef                string        `json:"signature_ref"`
	SubmittedAt                 time.Time     `json:"submitted_at"` // UTC
}

type CategoryTotal struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name,omitempty"`
	Total      int    `json:"total"`
}

type Aggregate struct {
	Total      int             `json:"total"`
	Categories []CategoryTotal `json:"categories,omitempty"`
}

// View is a response ready for review or printing: the bound form, the answers and the derived numbers.
type View struct {
	Response     Response          `json:"response"`
	Template     template.Snapshot `json:"template"`
	Aggregate    *Aggregate        `json:"aggregate,omitempty"`
	SignatureURL string            `json:"signature_url"`
}
