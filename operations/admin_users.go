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

func adminUsers() cli.Command {
	return cli.Command{
		Name:  "users",
		Usage: "list users and manage their roles",
		Subcommands: []cli.Command{
			{
				Name:  "list",
				Usage: "list a page of users",
				Flags: addPageFlags(
					cli.BoolFlag{
						Name:  allFlagName,
						Usage: "list every user instead of one page",
					},
					cli.StringFlag{
						Name:  searchFlagName,
						Usage: "only show users whose email, name or nickname contains this",
					},
					cli.StringFlag{
						Name:  sortFlagName,
						Usage: "sort by 'email', 'name' or 'last_login', prefix with '-' to reverse",
					}),
				Action: func(c *cli.Context) error {
					opts := client.UserListOptions{
						Page:     c.Int(pageFlagName),
						PageSize: c.Int(pageSizeFlagName),
						All:      c.Bool(allFlagName),
						Search:   c.String(searchFlagName),
						Sort:     c.String(sortFlagName),
					}
					return withClient(c, func(ctx context.Context, rc client.Client) error {
						return listUsers(ctx, stdout, rc, opts)
					})
				},
			},
			{
				Name:   "roles",
				Usage:  "show a user's roles",
				Flags:  addUserFlag(),
				Before: requireStringFlag(userFlagName),
				Action: func(c *cli.Context) error {
					userID := c.String(userFlagName)
					return withClient(c, func(ctx context.Context, rc client.Client) error {
						roles, err := rc.GetUserRoles(ctx, userID)
						if err != nil {
							return err
						}
						printRoles(stdout, roles)
						return nil
					})
				},
			},
			modifyRoleCommand("assign", "give a user a role", false),
			modifyRoleCommand("remove", "take a role away from a user", true),
		},
	}
}

func modifyRoleCommand(name, usage string, remove bool) cli.Command {
	return cli.Command{
		Name:   name,
		Usage:  usage,
		Flags:  addUserFlag(addRoleFlag()...),
		Before: mergeBeforeFuncs(requireStringFlag(userFlagName), requireStringFlag(roleFlagName)),
		Action: func(c *cli.Context) error {
			userID := c.String(userFlagName)
			role, err := parseRole(c.String(roleFlagName))
			if err != nil {
				return err
			}
			return withClient(c, func(ctx context.Context, rc client.Client) error {
				var roles *model.APIUserRoles
				if remove {
					roles, err = rc.RemoveUserRole(ctx, userID, role)
				} else {
					roles, err = rc.AssignUserRole(ctx, userID, role)
				}
				if err != nil {
					return err
				}
				printRoles(stdout, roles)
				return nil
			})
		},
	}
}

func listUsers(ctx context.Context, w io.Writer, rc client.Client, opts client.UserListOptions) error {
	page, err := rc.ListUsers(ctx, opts)
	if err != nil {
		return err
	}

	t := newTable(w)
	t.AddHeader("ID", "Email", "Name", "Roles", "Last Login")
	for _, u := range page.Data {
		t.AddLine(utility.FromStringPtr(u.Id), utility.FromStringPtr(u.Email), utility.FromStringPtr(u.Name), roleNames(u.Roles), humanTime(u.LastLogin))
	}
	fmt.Fprintf(w, "%d of %d users:\n", len(page.Data), page.Total)
	t.Print()
	return nil
}

func printRoles(w io.Writer, roles *model.APIUserRoles) {
	if len(roles.Roles) == 0 {
		fmt.Fprintf(w, "user '%s' has no roles\n", utility.FromStringPtr(roles.UserId))
		return
	}
	fmt.Fprintf(w, "user '%s' has roles: %s\n", utility.FromStringPtr(roles.UserId), roleNames(roles.Roles))
}
