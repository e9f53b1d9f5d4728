package main

import (
	"context"
	"fmt"

	"github.com/trezcool/masomofees/core/user"
)

func (cli *commandLine) addUser(nu user.NewUser) error {
	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Printf("user %q created (id: %s)\n", usr.Name, usr.ID)
	return nil
}
