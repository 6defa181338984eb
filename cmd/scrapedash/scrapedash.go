package main

import (
	"os"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/send"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/operations"
	"github.com/urfave/cli"
	_ "go.uber.org/automaxprocs"
)

func main() {
	// the command line interface is managed by the cli package; this, plus
	// the global flags in buildApp, is all that's necessary to bootstrap
	// the process.
	app := buildApp()
	grip.EmergencyFatal(app.Run(os.Args))
}

func buildApp() *cli.App {
	app := cli.NewApp()
	app.Name = scrapedash.ServiceName
	app.Usage = "scheduled web scraping with LLM extraction"
	app.Version = scrapedash.BuildRevision

	app.Commands = []cli.Command{
		operations.Service(),
		operations.Admin(),
		operations.Login(),
	}

	// These are global options. Use this to configure logging or
	// other options independent from specific sub commands.
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "level",
			Value: "info",
			Usage: "Specify lowest visible log level as string: 'emergency|alert|critical|error|warning|notice|info|debug|trace'",
		},
		cli.StringFlag{
			Name:  "conf, config, c",
			Usage: "specify the path for the scrapedash CLI config",
		},
	}

	app.Before = func(c *cli.Context) error {
		return loggingSetup(app.Name, c.String("level"))
	}

	return app
}

func loggingSetup(name, l string) error {
	if err := grip.SetSender(send.MakeErrorLogger()); err != nil {
		return err
	}
	grip.SetName(name)

	sender := grip.GetSender()
	info := sender.Level()
	info.Threshold = level.FromString(l)

	return sender.SetLevel(info)
}
