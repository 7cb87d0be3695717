package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ervnjmsdnts/ojt/core"
	"github.com/ervnjmsdnts/ojt/core/grant"
	"github.com/ervnjmsdnts/ojt/core/subject"
	"github.com/ervnjmsdnts/ojt/core/template"
)

var (
	errHelp = errors.New("help provided")

	// cliActor is recorded as the author of changes made from the command line.
	cliActor = core.Actor{ID: "admin-cli", Name: "Admin CLI", Role: core.RoleAdmin}
)

type commandLine struct {
	db       *sql.DB
	conf     *core.Config
	tmplSvc  template.Service
	grantSvc grant.Service
	subjects subject.Store
	validate *validator.Validate
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run goose migration commands (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  createtemplate -kind KIND [-seed FILE] - create a template, optionally seeded from a JSON file")
	fmt.Fprintln(cli.out, "  addsubject -id ID -student NAME -company NAME [-supervisor NAME] [-start DATE] [-end DATE] - add or update a subject")
	fmt.Fprintln(cli.out, "  issuegrant -subject ID -kind KIND -role ROLE [-email EMAIL] - issue an access code")
	fmt.Fprintln(cli.out, "  expiregrant -code CODE - expire a pending access code")
	fmt.Fprintln(cli.out, "  expiregrants - expire pending access codes older than the configured TTL")
	fmt.Fprintln(cli.out, "  token -id ID [-name NAME] [-role ROLE] - print an admin API token")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createTemplateCmd := flag.NewFlagSet("createtemplate", flag.ContinueOnError)
	createTemplateKind := createTemplateCmd.String("kind", "", "The template kind: "+kindsUsage())
	createTemplateSeed := createTemplateCmd.String("seed", "", "Optional JSON file with the first version's categories or questions.")

	addSubjectCmd := flag.NewFlagSet("addsubject", flag.ContinueOnError)
	addSubjectID := addSubjectCmd.String("id", "", "The subject (OJT record) id.")
	addSubjectStudent := addSubjectCmd.String("student", "", "The student's name.")
	addSubjectCompany := addSubjectCmd.String("company", "", "The host company's name.")
	addSubjectSupervisor := addSubjectCmd.String("supervisor", "", "The supervisor's name.")
	addSubjectStart := addSubjectCmd.String("start", "", "The OJT start date (YYYY-MM-DD).")
	addSubjectEnd := addSubjectCmd.String("end", "", "The OJT end date (YYYY-MM-DD).")

	issueGrantCmd := flag.NewFlagSet("issuegrant", flag.ContinueOnError)
	issueGrantSubject := issueGrantCmd.String("subject", "", "The subject (OJT record) id.")
	issueGrantKind := issueGrantCmd.String("kind", "", "The template kind: "+kindsUsage())
	issueGrantRole := issueGrantCmd.String("role", "", "The respondent role: supervisor or student.")
	issueGrantEmail := issueGrantCmd.String("email", "", "Optional address the code is emailed to.")

	expireGrantCmd := flag.NewFlagSet("expiregrant", flag.ContinueOnError)
	expireGrantCode := expireGrantCmd.String("code", "", "The access code.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenID := tokenCmd.String("id", "", "The portal user id.")
	tokenName := tokenCmd.String("name", "", "The portal user name.")
	tokenRole := tokenCmd.String("role", core.RoleCoordinator, "The portal role (must start with \""+core.RoleAdmin+"\").")

	for _, fs := range []*flag.FlagSet{createTemplateCmd, addSubjectCmd, issueGrantCmd, expireGrantCmd, tokenCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "createtemplate":
		if err := createTemplateCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createTemplateKind == "" {
			createTemplateCmd.Usage()
			return errHelp
		}
		return cli.createTemplate(*createTemplateKind, *createTemplateSeed)

	case "addsubject":
		if err := addSubjectCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addSubjectID == "" || *addSubjectStudent == "" || *addSubjectCompany == "" {
			addSubjectCmd.Usage()
			return errHelp
		}
		return cli.addSubject(*addSubjectID, *addSubjectStudent, *addSubjectCompany, *addSubjectSupervisor, *addSubjectStart, *addSubjectEnd)

	case "issuegrant":
		if err := issueGrantCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *issueGrantSubject == "" || *issueGrantKind == "" || *issueGrantRole == "" {
			issueGrantCmd.Usage()
			return errHelp
		}
		return cli.issueGrant(*issueGrantSubject, *issueGrantKind, *issueGrantRole, *issueGrantEmail)

	case "expiregrant":
		if err := expireGrantCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *expireGrantCode == "" {
			expireGrantCmd.Usage()
			return errHelp
		}
		return cli.expireGrant(*expireGrantCode)

	case "expiregrants":
		return cli.expireStaleGrants()

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenID == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenID, *tokenName, *tokenRole)

	default:
		cli.printUsage()
		return errHelp
	}
}

func kindsUsage() string {
	kinds := make([]string, len(template.Kinds))
	for i, k := range template.Kinds {
		kinds[i] = string(k)
	}
	return strings.Join(kinds, ", ")
}
