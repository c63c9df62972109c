package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/moby/sys/capability"
	"github.com/moby/sys/userns"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/snapcore/confine/internal/linux"
	"github.com/snapcore/confine/libconfine/cgroups"
	"github.com/snapcore/confine/libconfine/confinement"
	"github.com/snapcore/confine/libconfine/lockfile"
	"github.com/snapcore/confine/libconfine/privs"
)

var runCommand = cli.Command{
	Name:      "run",
	Usage:     "establish the sandbox for an application and execute a command inside it",
	ArgsUsage: `<app> <command> [args...]`,
	Description: `The run command performs the full launch sequence: it takes the global
lock, then the per-application lock, places this process into the
application's tracking cgroup, permanently drops elevated privileges and
executes the command. The locks are released when the launcher exits or
dies; the kernel's file-table cleanup covers the latter.`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "confinement",
			Value: "enforce",
			Usage: "confinement mode fact as reported by the profile detector",
		},
		cli.StringSliceFlag{
			Name:  "ambient",
			Usage: "capability to preserve across the exec boundary (may be repeated)",
		},
	},
	Action: func(context *cli.Context) error {
		args := context.Args()
		if len(args) < 2 {
			return errors.New("usage: confine run <app> <command> [args...]")
		}
		app, argv := args.First(), args.Tail()

		mode := confinement.ParseMode(context.String("confinement"))
		if mode == confinement.Invalid {
			return fmt.Errorf("invalid confinement mode %q", context.String("confinement"))
		}
		state := confinement.State{Mode: mode, Confined: mode != confinement.NotApplicable}
		logrus.Debugf("confinement fact: mode=%s confined=%v", state.Mode, state.Confined)

		// Establishing confinement needs the real host view. A root-mapped
		// user namespace looks privileged but is not.
		if os.Geteuid() == 0 && userns.RunningInUserNS() {
			return errors.New("cannot establish confinement from a user namespace")
		}

		// Global before scoped, always.
		locks := lockfile.NewManager(context.GlobalString("lock-dir"))
		global := locks.Acquire("")
		defer global.Release()
		scoped := locks.Acquire(app)
		defer scoped.Release()

		hier := cgroups.Probe(context.GlobalString("cgroup-root"))
		var tracking *cgroups.Hierarchy
		if hier.IsUnified() {
			// The single v2 instance is owned by the service manager;
			// tracking falls back to the private v1 hierarchy.
			tracking = cgroups.TrackingHierarchy(context.GlobalString("run-dir"))
			tracking.EnsureMounted()
		} else {
			tracking = cgroups.LegacyHierarchy(filepath.Join(context.GlobalString("cgroup-root"), "pids"))
		}
		tracking.CreateAndJoin(tracking.Root, cgroups.SecurityTag(app), os.Getpid())

		if names := context.StringSlice("ambient"); len(names) > 0 {
			caps := make([]capability.Cap, 0, len(names))
			for _, name := range names {
				c, ok := privs.CapByName(name)
				if !ok {
					return fmt.Errorf("unknown capability %q", name)
				}
				caps = append(caps, c)
			}
			privs.AssertCapabilities(privs.Current(), caps...)
			privs.SetAmbient(caps...)
		} else {
			privs.ResetAmbient()
		}

		// Point of no return: everything irrevocable is done, nothing
		// after this line runs with elevated rights.
		privs.DropPermanently()

		path, err := exec.LookPath(argv[0])
		if err != nil {
			return err
		}
		logrus.Debugf("executing %s for application %s", path, app)
		return linux.Exec(path, argv, os.Environ())
	},
}
