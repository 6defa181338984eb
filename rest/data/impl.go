package data

import (
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/cache"
	"github.com/scrapedash/scrapedash/scrape"
	"github.com/scrapedash/scrapedash/thirdparty/identity"
)

// DBConnector implements the Connector with the models, the user directory
// and the process caches. Runs are scheduled on the environment's local
// queue.
type DBConnector struct {
	Env      scrapedash.Environment
	Identity identity.Manager
	Caches   *cache.Caches
	Scraper  *scrape.Scraper

	// RoleFetchLimit bounds the concurrent role lookups when listing users.
	RoleFetchLimit int
}

const defaultRoleFetchLimit = 8

// NewDBConnector builds a connector from the environment's settings.
func NewDBConnector(env scrapedash.Environment, manager identity.Manager, caches *cache.Caches, scraper *scrape.Scraper) *DBConnector {
	if caches == nil {
		caches = cache.New()
	}
	if scraper == nil {
		scraper = scrape.New(env.Settings())
	}
	return &DBConnector{
		Env:            env,
		Identity:       manager,
		Caches:         caches,
		Scraper:        scraper,
		RoleFetchLimit: defaultRoleFetchLimit,
	}
}

var _ Connector = &DBConnector{}
