package operations

import (
	"context"
	"fmt"
	"io"

	"github.com/evergreen-ci/utility"
	"github.com/scrapedash/scrapedash/rest/client"
	"github.com/scrapedash/scrapedash/rest/model"
	"github.com/urfave/cli"
)

func adminTasks() cli.Command {
	return cli.Command{
		Name:  "tasks",
		Usage: "list tasks and trigger runs",
		Subcommands: []cli.Command{
			{
				Name:  "list",
				Usage: "list a user's tasks, or every task when no user is given",
				Flags: addUserFlag(),
				Action: func(c *cli.Context) error {
					userID := c.String(userFlagName)
					return withClient(c, func(ctx context.Context, rc client.Client) error {
						return listTasks(ctx, stdout, rc, userID)
					})
				},
			},
			{
				Name:   "run",
				Usage:  "start a single run of a task",
				Flags:  addUserFlag(addTaskFlag()...),
				Before: mergeBeforeFuncs(requireStringFlag(userFlagName), requireStringFlag(taskFlagName)),
				Action: func(c *cli.Context) error {
					userID := c.String(userFlagName)
					taskID := c.String(taskFlagName)
					return withClient(c, func(ctx context.Context, rc client.Client) error {
						return runTask(ctx, stdout, rc, userID, taskID)
					})
				},
			},
		},
	}
}

func listTasks(ctx context.Context, w io.Writer, rc client.Client, userID string) error {
	var (
		tasks []model.APITask
		err   error
	)
	if userID == "" {
		tasks, err = rc.ListAllTasks(ctx)
	} else {
		tasks, err = rc.ListTasks(ctx, userID)
	}
	if err != nil {
		return err
	}

	t := newTable(w)
	t.AddHeader("ID", "Name", "Owner", "Status", "Created", "Next Run")
	for _, task := range tasks {
		nextRun := "-"
		if task.NextRunAt != nil {
			nextRun = humanTime(task.NextRunAt)
		}
		t.AddLine(
			utility.FromStringPtr(task.Id),
			utility.FromStringPtr(task.TaskName),
			utility.FromStringPtr(task.Owner),
			task.Status.String(),
			humanTime(task.CreatedAt),
			nextRun,
		)
	}
	fmt.Fprintf(w, "%d tasks:\n", len(tasks))
	t.Print()
	return nil
}

func runTask(ctx context.Context, w io.Writer, rc client.Client, userID, taskID string) error {
	run, err := rc.CreateRun(ctx, userID, taskID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "scheduled run '%s' of task '%s' (%s)\n", utility.FromStringPtr(run.Id), taskID, run.Type.String())
	return nil
}
