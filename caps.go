package main

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/snapcore/confine/libconfine/privs"
)

var capsCommand = cli.Command{
	Name:  "caps",
	Usage: "print the capability state of this process",
	Description: `The caps command prints the permitted and effective capability sets and,
with --debug, dumps all five sets through the logger. Useful when diagnosing
why a launch was refused by a capability assertion.`,
	Action: func(context *cli.Context) error {
		fmt.Println(privs.Current())
		privs.DumpState()
		return nil
	},
}
