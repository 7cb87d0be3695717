package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ervnjmsdnts/ojt/core"
	"github.com/ervnjmsdnts/ojt/core/subject"
)

const dateLayout = "2006-01-02"

// addSubject updates or creates the subject context shown on forms.
func (cli *commandLine) addSubject(id, student, company, supervisor, start, end string) error {
	subj := subject.Context{
		SubjectID:      core.CleanString(id),
		StudentName:    core.CleanString(student),
		CompanyName:    core.CleanString(company),
		SupervisorName: core.CleanString(supervisor),
	}

	var err error
	if subj.StartDate, err = parseDate(start); err != nil {
		return errors.Wrap(err, "parsing start date")
	}
	if subj.EndDate, err = parseDate(end); err != nil {
		return errors.Wrap(err, "parsing end date")
	}

	if err = cli.subjects.PutSubject(context.Background(), subj); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "saved subject %s\n", subj.SubjectID)
	return nil
}

func parseDate(s string) (null.Time, error) {
	s = core.CleanString(s)
	if s == "" {
		return null.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return null.Time{}, err
	}
	return null.TimeFrom(t), nil
}
