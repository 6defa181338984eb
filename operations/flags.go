package operations

import (
	"strings"

	"github.com/scrapedash/scrapedash"
	"github.com/urfave/cli"
)

const (
	confFlagName     = "conf"
	pageFlagName     = "page"
	pageSizeFlagName = "page-size"
	searchFlagName   = "search"
	allFlagName      = "all"
	sortFlagName     = "sort"
	userFlagName     = "user"
	taskFlagName     = "task"
	roleFlagName     = "role"
)

func joinFlagNames(ids ...string) string { return strings.Join(ids, ", ") }

func serviceConfigFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  joinFlagNames(confFlagName, "c", "config"),
		Usage: "path to the service configuration file",
		Value: scrapedash.DefaultServiceConfigurationFileName,
	})
}

func addUserFlag(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  joinFlagNames(userFlagName, "u"),
		Usage: "the id of the user, e.g. 'auth0|123'",
	})
}

func addTaskFlag(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  joinFlagNames(taskFlagName, "t"),
		Usage: "the id of the task",
	})
}

func addRoleFlag(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  joinFlagNames(roleFlagName, "r"),
		Usage: "the role, one of 'user', 'member' or 'admin'",
	})
}

func addPageFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		cli.IntFlag{
			Name:  pageFlagName,
			Usage: "the page to list, starting at 1",
			Value: 1,
		},
		cli.IntFlag{
			Name:  pageSizeFlagName,
			Usage: "the number of entries per page",
			Value: scrapedash.DefaultPageSize,
		})
}
