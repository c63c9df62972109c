package main

import (
	"errors"
	"os"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/snapcore/confine/libconfine/cgroups"
)

// version must be set by go build's -X main.version= option.
var version = "unknown"

// gitCommit will be the hash that the binary was built from and will be
// populated by the Makefile.
var gitCommit = ""

const usage = `confinement primitive launcher

confine is a setuid-root launcher that establishes a per-application sandbox
on a multi-tenant host before handing control to untrusted application code.
It serializes sandbox mutation with cross-process locks, places the target
process into a per-application tracking cgroup and permanently drops its
elevated privileges.

To launch an application inside its sandbox:

    # confine run <app> <command> [args...]

Any unexpected condition terminates the launcher: continuing after a
security-relevant failure could leave a half-confined process behind.`

func main() {
	app := cli.NewApp()
	app.Name = "confine"
	app.Usage = usage

	v := []string{version}
	if gitCommit != "" {
		v = append(v, "commit: "+gitCommit)
	}
	v = append(v, "go: "+runtime.Version())
	app.Version = strings.Join(v, "\n")

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "set the log file to write confine logs to (default is '/dev/stderr')",
		},
		cli.StringFlag{
			Name:  "log-format",
			Value: "text",
			Usage: "set the log format ('text' (default), or 'json')",
		},
		cli.StringFlag{
			Name:  "lock-dir",
			Value: "/run/confine/lock",
			Usage: "directory holding the global and per-scope lock files",
		},
		cli.StringFlag{
			Name:  "run-dir",
			Value: "/run/confine",
			Usage: "runtime directory for the private tracking cgroup hierarchy",
		},
		cli.StringFlag{
			Name:  "cgroup-root",
			Value: cgroups.DefaultRoot,
			Usage: "canonical cgroup mount point probed for the unified hierarchy",
		},
	}
	app.Commands = []cli.Command{
		runCommand,
		occupiedCommand,
		capsCommand,
	}
	app.Before = func(context *cli.Context) error {
		return configLogrus(context)
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func configLogrus(context *cli.Context) error {
	if context.GlobalBool("debug") {
		logrus.SetLevel(logrus.DebugLevel)
	}

	switch f := context.GlobalString("log-format"); f {
	case "", "text":
		// do nothing
	case "json":
		logrus.SetFormatter(new(logrus.JSONFormatter))
	default:
		return errors.New("invalid log-format: " + f)
	}

	if file := context.GlobalString("log"); file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0o644)
		if err != nil {
			return err
		}
		logrus.SetOutput(f)
	}

	return nil
}
