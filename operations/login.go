package operations

import (
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

const (
	apiURLFlagName = "api-url"
	tokenFlagName  = "token"
)

// Login writes the API location and bearer token to the client settings
// file.
func Login() cli.Command {
	return cli.Command{
		Name:  "login",
		Usage: "save the API URL and token used by the admin commands",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  apiURLFlagName,
				Usage: "the base URL of the API, e.g. 'https://scrapedash.example.com'",
			},
			cli.StringFlag{
				Name:   tokenFlagName,
				Usage:  "a bearer token for the API",
				EnvVar: "SCRAPEDASH_TOKEN",
			},
		},
		Before: mergeBeforeFuncs(requireStringFlag(apiURLFlagName), requireStringFlag(tokenFlagName)),
		Action: func(c *cli.Context) error {
			path := c.GlobalString(confFlagName)
			if path == "" {
				path = defaultClientConfigPath()
			}
			conf := &ClientSettings{
				APIURL: c.String(apiURLFlagName),
				Token:  c.String(tokenFlagName),
			}
			if err := conf.Validate(); err != nil {
				return errors.Wrap(err, "invalid client settings")
			}
			if err := conf.Write(path); err != nil {
				return err
			}
			grip.Infof("saved client settings to '%s'", path)
			return nil
		},
	}
}
