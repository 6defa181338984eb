package operations

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/recovery"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/auth"
	"github.com/scrapedash/scrapedash/cache"
	"github.com/scrapedash/scrapedash/model/task"
	"github.com/scrapedash/scrapedash/model/user"
	"github.com/scrapedash/scrapedash/rest/data"
	"github.com/scrapedash/scrapedash/rest/route"
	"github.com/scrapedash/scrapedash/thirdparty/identity"
	"github.com/scrapedash/scrapedash/units"
	"github.com/scrapedash/scrapedash/util"
	"github.com/urfave/cli"
)

const jwksRequestTimeout = 10 * time.Second

func startWebService() cli.Command {
	return cli.Command{
		Name:   "web",
		Usage:  "start the API server, the job queue and the crons",
		Flags:  serviceConfigFlags(),
		Before: mergeBeforeFuncs(setupService(), requireFileExists(confFlagName)),
		Action: func(c *cli.Context) error {
			confPath := c.String(confFlagName)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			env, err := scrapedash.NewEnvironment(ctx, confPath)
			grip.EmergencyFatal(errors.Wrap(err, "configuring application environment"))
			scrapedash.SetEnvironment(env)
			settings := env.Settings()
			grip.Warning(errors.Wrap(setLogLevel(settings.LogLevel), "setting log level from settings"))

			defer recovery.LogStackTraceAndExit("scrapedash web service")

			catcher := grip.NewBasicCatcher()
			catcher.Wrap(task.EnsureIndexes(ctx), "ensuring task indexes")
			catcher.Wrap(user.EnsureIndexes(ctx), "ensuring user indexes")
			if catcher.HasErrors() {
				return catcher.Resolve()
			}

			caches := cache.New()
			services, err := units.NewServices(ctx, env)
			if err != nil {
				return errors.Wrap(err, "creating background job services")
			}
			services.Caches = caches
			units.SetServices(services)
			units.StartCrons(ctx, env)

			manager, err := identity.NewManager(ctx, settings.Identity)
			if err != nil {
				return errors.Wrap(err, "creating identity manager")
			}
			sc := data.NewDBConnector(env, manager, caches, services.Scraper)

			jwksClient := util.GetDefaultHTTPRetryableClient()
			jwksClient.Timeout = jwksRequestTimeout
			defer util.PutHTTPClient(jwksClient)
			validator := auth.NewValidator(settings.Auth, jwksClient)
			handler, err := route.NewHandler(settings.Api, sc, validator)
			if err != nil {
				return errors.Wrap(err, "building REST handler")
			}

			grip.Notice(message.Fields{
				"message": "starting service",
				"build":   scrapedash.BuildRevision,
				"process": grip.Name(),
				"addr":    settings.Api.ListenAddr,
			})

			go listenForSIGTERM(cancel)
			return errors.WithStack(serve(ctx, getServer(settings.Api.ListenAddr, handler), env, settings.Api.ShutdownTimeout()))
		},
	}
}

func setupService() cli.BeforeFunc {
	return func(c *cli.Context) error {
		grip.SetName("scrapedash.web")
		return nil
	}
}

func getServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       time.Minute,
		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}
}

// serve runs the server until ctx is canceled or the server fails, then
// shuts down the server and closes the environment.
func serve(ctx context.Context, srv *http.Server, env scrapedash.Environment, shutdownTimeout time.Duration) error {
	serveErr := make(chan error, 1)
	go func() {
		defer recovery.LogStackTraceAndContinue("API server")
		serveErr <- srv.ListenAndServe()
	}()

	catcher := grip.NewBasicCatcher()
	select {
	case <-ctx.Done():
		grip.Info("shutting down API server")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			catcher.Wrap(err, "running API server")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	catcher.Wrap(srv.Shutdown(shutdownCtx), "shutting down API server")
	catcher.Wrap(env.Close(shutdownCtx), "closing environment")

	return catcher.Resolve()
}

func listenForSIGTERM(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGTERM, os.Interrupt)
	sig := <-sigChan
	grip.Info(message.Fields{
		"message": "received signal, terminating",
		"signal":  sig.String(),
	})
	cancel()
}

func setLogLevel(l string) error {
	sender := grip.GetSender()
	info := sender.Level()
	info.Threshold = level.FromString(l)
	return sender.SetLevel(info)
}
