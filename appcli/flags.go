package appcli

import (
	"time"

	"github.com/urfave/cli/v2"
)

var CommonOpts struct {
	Console       bool
	Env           string
	Port          int
	Retention     time.Duration
	SweepInterval time.Duration
}

var ConsoleFlag = cli.BoolFlag{
	Name:        "console",
	Usage:       "whether to run in console mode or lambda mode",
	Value:       false,
	EnvVars:     []string{"CONSOLE"},
	Destination: &CommonOpts.Console,
}
var EnvFlag = cli.StringFlag{
	Name:        "env",
	Usage:       "environment",
	Value:       "local",
	EnvVars:     []string{"ENV"},
	Destination: &CommonOpts.Env,
}
var RetentionFlag = cli.DurationFlag{
	Name:        "connection-retention",
	Usage:       "how long an unused registered connection is kept",
	Value:       time.Hour,
	EnvVars:     []string{"CONNECTION_RETENTION"},
	Destination: &CommonOpts.Retention,
}
var SweepIntervalFlag = cli.DurationFlag{
	Name:        "sweep-interval",
	Usage:       "how often stale registered connections are swept",
	Value:       30 * time.Minute,
	EnvVars:     []string{"SWEEP_INTERVAL"},
	Destination: &CommonOpts.SweepInterval,
}
var PortFlag = func(p int) *cli.IntFlag {
	return &cli.IntFlag{
		Name:        "port",
		Usage:       "Port to listen to, if running locally",
		Value:       p,
		EnvVars:     []string{"PORT"},
		Destination: &CommonOpts.Port,
	}
}

var CommonFlags = []cli.Flag{
	&ConsoleFlag,
	&EnvFlag,
	&RetentionFlag,
	&SweepIntervalFlag,
}
