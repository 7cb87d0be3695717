package main

import (
	"context"
	"fmt"

	"github.com/ervnjmsdnts/ojt/core/grant"
	"github.com/ervnjmsdnts/ojt/core/template"
)

func (cli *commandLine) issueGrant(subjectID, kind, role, email string) error {
	ctx := context.Background()

	ir := grant.IssueRequest{RespondentRole: grant.Role(role), RecipientEmail: email}
	if err := ir.Validate(cli.validate); err != nil {
		return err
	}
	tmpl, err := cli.tmplSvc.GetByKind(ctx, template.Kind(kind))
	if err != nil {
		return err
	}
	g, err := cli.grantSvc.Issue(ctx, subjectID, tmpl.ID, ir, cliActor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s\n", g.Code)
	return nil
}

func (cli *commandLine) expireGrant(code string) error {
	if err := cli.grantSvc.Expire(context.Background(), code, cliActor); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "expired %s\n", grant.NormalizeCode(code))
	return nil
}

func (cli *commandLine) expireStaleGrants() error {
	n, err := cli.grantSvc.ExpireStale(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "expired %d grant(s)\n", n)
	return nil
}
