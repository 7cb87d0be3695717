package main

import (
	"fmt"

	echoapi "github.com/ervnjmsdnts/ojt/apps/api/echo"
	"github.com/ervnjmsdnts/ojt/core"
)

var errNotAdminRole = fmt.Errorf("role must start with %q", core.RoleAdmin)

// token prints a signed API token for a portal administrator.
func (cli *commandLine) token(id, name, role string) error {
	actor := core.Actor{ID: core.CleanString(id), Name: core.CleanString(name), Role: core.CleanString(role)}
	if !actor.IsAdmin() {
		return errNotAdminRole
	}
	token, err := echoapi.GenerateToken(cli.conf, echoapi.GetActorClaims(cli.conf, actor))
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
