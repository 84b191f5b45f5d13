package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/CAFxX/httpcompression"
	"github.com/dgraph-io/badger/v4"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/nodeprof/nodeprof/internal/events"
	"github.com/nodeprof/nodeprof/internal/httputil"
	"github.com/nodeprof/nodeprof/internal/logutil"
	"github.com/nodeprof/nodeprof/internal/sourcemap"
	"github.com/nodeprof/nodeprof/internal/storageprovider"
	"github.com/nodeprof/nodeprof/internal/storageutil"
)

type environment struct {
	config ServiceConfig

	snapshots storageutil.ObjectHandler
	resolver  sourcemap.Resolver
	events    *events.Writer

	storage *storage.Client
	db      *badger.DB
}

var release string

func newEnvironment() (*environment, error) {
	var e environment
	if err := cleanenv.ReadEnv(&e.config); err != nil {
		return nil, err
	}

	ctx := context.Background()
	var err error
	if e.config.SnapshotsBucket != "" {
		e.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		e.snapshots = &storageprovider.GCS{
			BucketHandle: e.storage.Bucket(e.config.SnapshotsBucket),
		}
	} else {
		e.db, err = badger.Open(badger.DefaultOptions(e.config.BadgerPath))
		if err != nil {
			return nil, err
		}
		e.snapshots = &storageprovider.Badger{DB: e.db}
	}

	if len(e.config.SourceMapRoots) > 0 {
		e.resolver, err = sourcemap.NewStore(e.config.SourceMapRoots)
		if err != nil {
			return nil, err
		}
	}

	e.events = events.NewWriter(e.config.KafkaBrokers, e.config.EventsTopic)

	return &e, nil
}

func (e *environment) shutdown() {
	if e.storage != nil {
		if err := e.storage.Close(); err != nil {
			sentry.CaptureException(err)
		}
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			sentry.CaptureException(err)
		}
	}
	if err := e.events.Close(); err != nil {
		sentry.CaptureException(err)
	}
	sentry.Flush(5 * time.Second)
}

func (e *environment) newRouter() (*httprouter.Router, error) {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodGet, "/health", e.getHealth},
		{http.MethodGet, "/profiles/:profile_id", e.getProfile},
		{http.MethodPost, "/profiles/cpu", e.postTimeProfile},
		{http.MethodPost, "/profiles/heap", e.postHeapProfile},
	}

	router := httprouter.New()

	for _, route := range routes {
		handler := compress(httputil.DecompressPayload(route.handler))
		router.Handler(route.method, route.path, handler)
	}

	return router, nil
}

func main() {
	logutil.ConfigureLogger()

	env, err := newEnvironment()
	if err != nil {
		log.Fatal().Err(err).Msg("error setting up environment")
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:         env.config.SentryDSN,
		Environment: env.config.Environment,
		Release:     release,
		BeforeSend:  httputil.SetHTTPStatusCodeTag,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("can't initialize sentry")
	}

	router, err := env.newRouter()
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("error setting up the router")
	}

	server := http.Server{
		Addr:    ":" + env.config.Port,
		Handler: sentryhttp.New(sentryhttp.Options{}).Handle(router),
	}

	waitForShutdown := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(cctx); err != nil {
			sentry.CaptureException(err)
			log.Err(err).Msg("error shutting down server")
		}

		close(waitForShutdown)
	}()

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		sentry.CaptureException(err)
		log.Err(err).Msg("server failed")
	}

	<-waitForShutdown

	// Shutdown the rest of the environment after the HTTP connections are closed
	env.shutdown()
}

func (e *environment) getHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
