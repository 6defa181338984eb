package operations

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cheynewallace/tabby"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/rest/client"
	"github.com/urfave/cli"
)

func Admin() cli.Command {
	return cli.Command{
		Name:  "admin",
		Usage: "manage users and tasks through the API",
		Subcommands: []cli.Command{
			adminUsers(),
			adminTasks(),
		},
	}
}

// withClient loads the client settings named by the global --conf flag and
// runs op with a client for the configured API.
func withClient(c *cli.Context, op func(context.Context, client.Client) error) error {
	conf, err := NewClientSettings(c.GlobalString(confFlagName))
	if err != nil {
		return errors.Wrap(err, "loading client configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rc := conf.setupRestClient()
	defer rc.Close()

	return op(ctx, rc)
}

func newTable(w io.Writer) *tabby.Tabby {
	return tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
}

var stdout io.Writer = os.Stdout

func humanTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return humanize.Time(*t)
}

// parseRole accepts a role by name or by number.
func parseRole(in string) (scrapedash.UserRole, error) {
	in = strings.TrimSpace(in)
	if n, err := strconv.Atoi(in); err == nil {
		role := scrapedash.UserRole(n)
		return role, role.Validate()
	}
	for _, role := range scrapedash.ValidUserRoles {
		if strings.EqualFold(role.String(), in) {
			return role, nil
		}
	}
	return scrapedash.UserRoleUnknown, errors.Errorf("unknown role '%s'", in)
}

func roleNames(roles []scrapedash.UserRole) string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.String())
	}
	return strings.Join(names, ", ")
}
