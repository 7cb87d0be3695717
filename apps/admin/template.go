package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/ervnjmsdnts/ojt/core/template"
)

// createTemplate creates the template of the given kind. seedPath points to a JSON template.NewTemplate.
func (cli *commandLine) createTemplate(kind, seedPath string) error {
	var nt template.NewTemplate
	if seedPath != "" {
		data, err := os.ReadFile(seedPath)
		if err != nil {
			return errors.Wrap(err, "reading seed file")
		}
		if err = json.Unmarshal(data, &nt); err != nil {
			return errors.Wrap(err, "decoding seed file")
		}
	}
	nt.Kind = template.Kind(kind)
	if err := nt.Validate(cli.validate); err != nil {
		return err
	}

	snap, err := cli.tmplSvc.Create(context.Background(), nt, cliActor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created %s template %s (version %d, %d question(s))\n",
		snap.Kind, snap.TemplateID, snap.Version, snap.QuestionCount())
	return nil
}
