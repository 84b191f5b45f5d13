package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/getsentry/sentry-go"
	"github.com/pierrec/lz4/v4"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/nodeprof/nodeprof/internal/logutil"
)

var snapshotPrefix = []byte("snapshots/")

// archivedSnapshot is the slice of the envelope the cleanup needs.
type archivedSnapshot struct {
	Received int64 `json:"received"`
}

func cleanup(db *badger.DB, timeLimit time.Time) error {
	var expired [][]byte

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = snapshotPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(value []byte) error {
				var s archivedSnapshot
				err := json.NewDecoder(lz4.NewReader(bytes.NewReader(value))).Decode(&s)
				if err != nil {
					// An entry we can't read anymore is not worth keeping.
					expired = append(expired, item.KeyCopy(nil))
					return nil
				}
				if timeLimit.After(time.Unix(s.Received, 0)) {
					expired = append(expired, item.KeyCopy(nil))
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, key := range expired {
		err := db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			return err
		}
	}

	if err := db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return err
	}

	log.Info().Int("deleted", len(expired)).Msg("snapshot cleanup done")
	return nil
}

func main() {
	badgerPath, ok := os.LookupEnv("NODEPROF_BADGER_PATH")
	if !ok {
		badgerPath = "/var/lib/nodeprof/snapshots"
	}

	retention, ok := os.LookupEnv("NODEPROF_SNAPSHOT_RETENTION_DAYS")
	if !ok {
		retention = "30"
	}

	logutil.ConfigureLogger()

	err := sentry.Init(sentry.ClientOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("can't initialize sentry")
	}

	retentionDays, err := strconv.ParseInt(retention, 10, 64)
	if err != nil {
		log.Fatal().Err(err).Msg("can't parse retention days")
	}

	db, err := badger.Open(badger.DefaultOptions(badgerPath))
	if err != nil {
		log.Fatal().Err(err).Msg("can't open the snapshot archive")
	}
	defer db.Close()

	c := cron.New()
	_, err = c.AddFunc("@daily", func() {
		timeLimit := time.Now().Add(time.Hour * 24 * -1 * time.Duration(retentionDays))
		err := cleanup(db, timeLimit)
		if err != nil {
			sentry.CaptureException(err)
			log.Error().Err(err).Msg("error cleaning up snapshots")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("can't set up cron function")
	}

	exitSignal := make(chan os.Signal, 1)
	signal.Notify(exitSignal, os.Interrupt)

	go func() {
		<-exitSignal

		c.Stop()
	}()

	c.Run()
}
