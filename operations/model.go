package operations

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/rest/client"
	"github.com/scrapedash/scrapedash/util"
)

// ClientSettings is the data stored in the user's config file, by default
// located at ~/.scrapedash.yml.
type ClientSettings struct {
	APIURL string `json:"api_url" yaml:"api_url"`
	Token  string `json:"token" yaml:"token"`

	LoadedFrom string `json:"-" yaml:"-"`
}

func defaultClientConfigPath() string {
	userHome, err := homedir.Dir()
	grip.Debug(errors.Wrap(err, "finding home directory"))
	return filepath.Join(userHome, scrapedash.ClientConfigFile)
}

func findConfigFilePath(fn string) (string, error) {
	if fn != "" {
		expanded, err := homedir.Expand(fn)
		if err != nil {
			return "", errors.Wrapf(err, "expanding path '%s'", fn)
		}
		if isValidPath(expanded) {
			return expanded, nil
		}
		if abs, _ := filepath.Abs(expanded); isValidPath(abs) {
			return abs, nil
		}
	}

	if path := defaultClientConfigPath(); isValidPath(path) {
		grip.WarningWhen(fn != "", "Couldn't find configuration file, falling back on default.")
		return path, nil
	}

	return "", errors.New("could not find client configuration file on the local system")
}

func isValidPath(path string) bool {
	stat, err := os.Stat(path)
	if os.IsNotExist(err) || err != nil || stat.IsDir() {
		return false
	}
	return true
}

// NewClientSettings reads the client settings from fn, or from the default
// location if fn does not exist.
func NewClientSettings(fn string) (*ClientSettings, error) {
	path, err := findConfigFilePath(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "finding config file '%s'", fn)
	}

	conf := &ClientSettings{}
	if err = util.ReadFromYAMLFile(path, conf); err != nil {
		return nil, errors.Wrapf(err, "reading configuration from file '%s'", path)
	}
	conf.LoadedFrom = path

	return conf, conf.Validate()
}

func (s *ClientSettings) Validate() error {
	catcher := grip.NewBasicCatcher()
	catcher.NewWhen(s.APIURL == "", "api_url must be set")
	catcher.NewWhen(s.Token == "", "token must be set")
	if s.APIURL != "" {
		catcher.Wrap(util.ValidateHTTPURL(s.APIURL), "invalid api_url")
	}
	return catcher.Resolve()
}

func (s *ClientSettings) Write(fn string) error {
	if fn == "" {
		fn = s.LoadedFrom
	}
	if fn == "" {
		return errors.New("no output location specified")
	}

	return errors.Wrapf(util.WriteYAMLFile(fn, s), "writing client settings")
}

// setupRestClient returns a REST client for the configured API. Callers must
// close it when finished.
func (s *ClientSettings) setupRestClient() client.Client {
	return client.NewClient(s.APIURL, s.Token)
}
