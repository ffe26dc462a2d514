package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tabledock/tabledock/appcli"
	"github.com/tabledock/tabledock/clear"
	"github.com/tabledock/tabledock/registry"
	"github.com/tabledock/tabledock/rest"
)

var service = appcli.NewService("tabledock")

func main() {
	app := appcli.App(
		service,
		action,
		append(
			appcli.CommonFlags,
			appcli.PortFlag(5080),
		)...,
	)
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func action(ctx *cli.Context) error {
	logger := appcli.Logger(service)

	reg := registry.New(logger, appcli.CommonOpts.Retention, appcli.CommonOpts.SweepInterval)
	defer reg.Stop()

	engine := clear.New(reg, nil)
	server := rest.New(logger, reg, engine)

	return rest.Webserver(service, logger, server.Router())
}
