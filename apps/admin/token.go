package main

import (
	"fmt"

	echoapi "github.com/trezcool/proctor/apps/api/echo"
	"github.com/trezcool/proctor/core"
)

// token prints a signed API token for an instructor.
func (cli *commandLine) token(instructorID, name, email string) error {
	claims := echoapi.NewInstructorClaims(
		cli.conf,
		core.CleanString(instructorID),
		core.CleanString(name),
		core.CleanString(email, true /* lower */),
	)
	token, err := echoapi.GenerateToken(cli.conf, claims)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
