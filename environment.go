package scrapedash

import (
	"context"
	"sync"
	"time"

	"github.com/evergreen-ci/utility"
	"github.com/mongodb/amboy"
	"github.com/mongodb/amboy/queue"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	globalEnv     Environment
	globalEnvLock = &sync.RWMutex{}
)

// GetEnvironment returns the global application level
// environment. This implementation is thread safe, but must be
// configured before use.
//
// In general you should call this operation once per process
// execution and pass the Environment interface through your
// application like a context, although the models and the amboy
// jobs access the global environment directly.
func GetEnvironment() Environment {
	globalEnvLock.RLock()
	defer globalEnvLock.RUnlock()

	return globalEnv
}

func SetEnvironment(env Environment) {
	globalEnvLock.Lock()
	defer globalEnvLock.Unlock()

	globalEnv = env
}

// Environment provides application-level services (e.g. databases,
// configuration, queues).
type Environment interface {
	// Returns the settings object. The settings object is not
	// necessarily safe for concurrent access.
	Settings() *Settings
	// Context returns a context derived from the environment's root
	// context, which is canceled when the environment closes.
	Context() (context.Context, context.CancelFunc)

	Client() *mongo.Client
	DB() *mongo.Database

	// LocalQueue is a process-local, memory-backed queue that runs task
	// run jobs and crons. It is not durable: pending jobs are lost on
	// restart and recreated by the crons.
	LocalQueue() amboy.Queue

	// RegisterCloser adds a function object to an internal
	// tracker to be called by the Close method before process
	// termination. The ID is used in reporting, but must be
	// unique or a new closer could overwrite an existing closer
	// in some implementations.
	RegisterCloser(string, func(context.Context) error)
	// Close calls all registered closers in the environment.
	Close(context.Context) error
}

// NewEnvironment constructs an Environment instance from the settings file at
// confPath, establishing a new connection to the database and starting the
// local queue.
func NewEnvironment(ctx context.Context, confPath string) (Environment, error) {
	settings, err := NewSettings(confPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return NewEnvironmentFromSettings(ctx, settings)
}

// NewEnvironmentFromSettings constructs an Environment from settings that have
// already been loaded.
func NewEnvironmentFromSettings(ctx context.Context, settings *Settings) (Environment, error) {
	if settings == nil {
		return nil, errors.New("settings must not be nil")
	}
	if err := settings.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating settings")
	}

	e := &envState{
		ctx:      ctx,
		settings: settings,
		closers:  map[string]func(context.Context) error{},
	}

	catcher := grip.NewBasicCatcher()
	catcher.Add(e.initDB(ctx))
	catcher.Add(e.initTracer(ctx))
	catcher.Add(e.createQueues(ctx))

	if catcher.HasErrors() {
		return nil, errors.WithStack(catcher.Resolve())
	}
	return e, nil
}

type envState struct {
	ctx        context.Context
	localQueue amboy.Queue
	settings   *Settings
	client     *mongo.Client
	mu         sync.RWMutex
	closers    map[string]func(context.Context) error
}

func (e *envState) initDB(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, e.settings.Database.ConnectTimeout())
	defer cancel()

	opts := options.Client().
		ApplyURI(e.settings.Database.Url).
		SetConnectTimeout(e.settings.Database.ConnectTimeout()).
		SetAppName(ServiceName)

	var err error
	e.client, err = mongo.Connect(connectCtx, opts)
	if err != nil {
		return errors.Wrap(err, "connecting to the database")
	}

	e.closers["database-client"] = func(ctx context.Context) error {
		return errors.Wrap(e.client.Disconnect(ctx), "disconnecting from the database")
	}

	return nil
}

func (e *envState) createQueues(ctx context.Context) error {
	var err error
	e.localQueue, err = queue.NewLocalLimitedSize(&queue.FixedSizeQueueOptions{
		Workers:  e.settings.Amboy.PoolSizeLocal,
		Capacity: 10 * e.settings.Amboy.PoolSizeLocal,
	})
	if err != nil {
		return errors.Wrap(err, "creating local queue")
	}

	if err = e.localQueue.Start(ctx); err != nil {
		return errors.Wrap(err, "starting local queue")
	}

	// duration of time in between calls to queue.Stats() within
	// the amboy.Wait* function.
	const queueWaitInterval = 10 * time.Millisecond
	const queueWaitTimeout = 10 * time.Second

	e.closers["background-local-queue"] = func(ctx context.Context) error {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, queueWaitTimeout)
		defer cancel()
		if !amboy.WaitInterval(ctx, e.localQueue, queueWaitInterval) {
			grip.Critical(message.Fields{
				"message": "pending jobs failed to finish",
				"queue":   "local",
				"status":  e.localQueue.Stats(ctx),
			})
			return errors.New("failed to stop with running jobs")
		}
		e.localQueue.Close(ctx)
		return nil
	}

	return nil
}

func (e *envState) initTracer(ctx context.Context) error {
	conf := e.settings.Tracer
	if !conf.Enabled {
		return nil
	}

	creds := credentials.NewTLS(nil)
	if conf.Insecure {
		creds = insecure.NewCredentials()
	}
	conn, err := grpc.NewClient(conf.CollectorEndpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return errors.Wrapf(err, "opening gRPC connection to '%s'", conf.CollectorEndpoint)
	}

	client := otlptracegrpc.NewClient(otlptracegrpc.WithGRPCConn(conn))
	traceExporter, err := otlptrace.New(ctx, client)
	if err != nil {
		return errors.Wrap(err, "initializing otel exporter")
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(BuildRevision),
		semconv.CloudRegion(e.settings.Region),
	))
	if err != nil {
		return errors.Wrap(err, "merging otel resources")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	tp.RegisterSpanProcessor(utility.NewAttributeSpanProcessor())
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		grip.Error(errors.Wrap(err, "otel error"))
	}))

	e.closers["tracer-provider"] = func(ctx context.Context) error {
		catcher := grip.NewBasicCatcher()
		catcher.Wrap(tp.Shutdown(ctx), "trace provider shutdown")
		catcher.Wrap(traceExporter.Shutdown(ctx), "trace exporter shutdown")
		catcher.Wrap(conn.Close(), "closing gRPC connection")

		return catcher.Resolve()
	}

	return nil
}

func (e *envState) Settings() *Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.settings
}

func (e *envState) Context() (context.Context, context.CancelFunc) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return context.WithCancel(e.ctx)
}

func (e *envState) Client() *mongo.Client {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.client
}

func (e *envState) DB() *mongo.Database {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.client.Database(e.settings.Database.DB)
}

func (e *envState) LocalQueue() amboy.Queue {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.localQueue
}

func (e *envState) RegisterCloser(name string, closer func(context.Context) error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.closers[name]; ok {
		grip.Critical(message.Fields{
			"closer":  name,
			"message": "duplicate closer registered",
			"cause":   "programmer error",
		})
	}
	e.closers[name] = closer
}

func (e *envState) Close(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	deadline, _ := ctx.Deadline()
	catcher := grip.NewBasicCatcher()
	wg := &sync.WaitGroup{}
	for n, closer := range e.closers {
		if closer == nil {
			continue
		}

		wg.Add(1)
		go func(name string, close func(context.Context) error) {
			defer wg.Done()
			grip.Info(message.Fields{
				"message":      "calling closer",
				"closer":       name,
				"timeout_secs": time.Until(deadline),
				"deadline":     deadline,
			})
			catcher.Add(close(ctx))
		}(n, closer)
	}

	wg.Wait()
	return catcher.Resolve()
}
