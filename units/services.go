package units

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/cache"
	"github.com/scrapedash/scrapedash/notify"
	"github.com/scrapedash/scrapedash/scrape"
	"github.com/scrapedash/scrapedash/storage"
)

// Services are the process-wide collaborators of the background jobs. Jobs
// are rebuilt from the registry, so they look these up instead of carrying
// them.
type Services struct {
	Scraper *scrape.Scraper
	Store   storage.ArtifactStore
	Sender  notify.Sender
	// Caches is optional. When set, jobs drop cached tasks they modify.
	Caches *cache.Caches
}

var (
	services     *Services
	servicesLock = &sync.RWMutex{}
)

// SetServices installs the services used by jobs in this process.
func SetServices(s *Services) {
	servicesLock.Lock()
	defer servicesLock.Unlock()

	services = s
}

// NewServices builds the job services from the environment's settings.
func NewServices(ctx context.Context, env scrapedash.Environment) (*Services, error) {
	settings := env.Settings()
	store, err := storage.New(ctx, env, settings.Storage)
	if err != nil {
		return nil, errors.Wrap(err, "creating artifact store")
	}

	return &Services{
		Scraper: scrape.New(settings),
		Store:   store,
		Sender:  notify.New(settings.Notify),
	}, nil
}

func getServices(ctx context.Context, env scrapedash.Environment) (*Services, error) {
	servicesLock.RLock()
	s := services
	servicesLock.RUnlock()
	if s != nil {
		return s, nil
	}

	servicesLock.Lock()
	defer servicesLock.Unlock()
	if services != nil {
		return services, nil
	}
	if env == nil {
		return nil, errors.New("no environment configured for background jobs")
	}
	s, err := NewServices(ctx, env)
	if err != nil {
		return nil, err
	}
	services = s
	return s, nil
}

func (s *Services) invalidateTask(id string) {
	if s.Caches != nil {
		s.Caches.InvalidateTask(id)
	}
}
