package main

type (
	ServiceConfig struct {
		Environment string `env:"NODEPROF_ENVIRONMENT" env-default:"development"`
		Port        string `env:"PORT" env-default:"8080"`

		SentryDSN string `env:"SENTRY_DSN"`

		// SnapshotsBucket enables the GCS snapshot archive. When empty,
		// snapshots are archived in a local Badger store instead.
		SnapshotsBucket string `env:"NODEPROF_SNAPSHOTS_BUCKET"`
		BadgerPath      string `env:"NODEPROF_BADGER_PATH" env-default:"/var/lib/nodeprof/snapshots"`

		// SourceMapRoots are directories scanned for .map files. Empty
		// means positions are kept as generated.
		SourceMapRoots []string `env:"NODEPROF_SOURCE_MAP_ROOTS" env-separator:":"`

		KafkaBrokers []string `env:"NODEPROF_KAFKA_BROKERS" env-separator:","`
		EventsTopic  string   `env:"NODEPROF_EVENTS_TOPIC"`

		// DefaultPeriodMicros is used when a CPU profile upload does not
		// carry a period query parameter.
		DefaultPeriodMicros int64 `env:"NODEPROF_DEFAULT_PERIOD_US" env-default:"1000"`
	}
)
