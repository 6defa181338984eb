package mock

import (
	"context"
	"sync"

	"github.com/mongodb/amboy"
	"github.com/mongodb/amboy/queue"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/testutil"
	"go.mongodb.org/mongo-driver/mongo"
)

// this is just a hack to ensure that compile breaks clearly if the
// mock implementation diverges from the interface
var _ scrapedash.Environment = &Environment{}

// Environment is an in-memory Environment with no database connection.
type Environment struct {
	Local              amboy.Queue
	ScrapedashSettings *scrapedash.Settings
	MongoClient        *mongo.Client

	ctx     context.Context
	mu      sync.RWMutex
	closers map[string]func(context.Context) error
	// Closed records the names of the closers that ran, in no particular
	// order.
	Closed []string
}

// Configure loads the test settings and starts a local queue.
func (e *Environment) Configure(ctx context.Context) error {
	e.ctx = ctx
	e.ScrapedashSettings = testutil.TestConfig()
	e.closers = map[string]func(context.Context) error{}

	var err error
	e.Local, err = queue.NewLocalLimitedSize(&queue.FixedSizeQueueOptions{
		Workers:  2,
		Capacity: 16,
	})
	if err != nil {
		return errors.Wrap(err, "creating local queue")
	}
	if err = e.Local.Start(ctx); err != nil {
		return errors.Wrap(err, "starting local queue")
	}
	return nil
}

func (e *Environment) Settings() *scrapedash.Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.ScrapedashSettings
}

func (e *Environment) Context() (context.Context, context.CancelFunc) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return context.WithCancel(e.ctx)
}

func (e *Environment) Client() *mongo.Client {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.MongoClient
}

func (e *Environment) DB() *mongo.Database {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.MongoClient == nil {
		return nil
	}
	return e.MongoClient.Database(e.ScrapedashSettings.Database.DB)
}

func (e *Environment) LocalQueue() amboy.Queue {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.Local
}

func (e *Environment) RegisterCloser(name string, closer func(context.Context) error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closers[name] = closer
}

func (e *Environment) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	catcher := grip.NewBasicCatcher()
	for name, closer := range e.closers {
		catcher.Wrapf(closer(ctx), "running closer '%s'", name)
		e.Closed = append(e.Closed, name)
	}
	if e.Local != nil {
		e.Local.Close(ctx)
	}
	return catcher.Resolve()
}
