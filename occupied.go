package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli"

	"github.com/snapcore/confine/libconfine/cgroups"
)

var occupiedCommand = cli.Command{
	Name:      "occupied",
	Usage:     "report whether any process of the application is still tracked",
	ArgsUsage: `<app>`,
	Description: `The occupied command queries the tracking cgroups of an application.
The answer is best effort: a tracked process may exit concurrently and an
emptied group may not have been reaped yet. Callers that need the answer to
hold take the application's scoped lock around the query.`,
	Action: func(context *cli.Context) error {
		app := context.Args().First()
		if app == "" {
			return errors.New("usage: confine occupied <app>")
		}
		hier := cgroups.Probe(context.GlobalString("cgroup-root"))
		var occupied bool
		if hier.IsUnified() {
			// Check the private tracking hierarchy first; instances
			// tracked by the service manager show up in the v2 tree.
			tracking := cgroups.TrackingHierarchy(context.GlobalString("run-dir"))
			occupied = tracking.Occupied(app) || hier.Occupied(app)
		} else {
			legacy := cgroups.LegacyHierarchy(filepath.Join(context.GlobalString("cgroup-root"), "pids"))
			occupied = legacy.Occupied(app)
		}
		fmt.Println(occupied)
		return nil
	},
}
