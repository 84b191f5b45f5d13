package sourcemap

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-sourcemap/sourcemap"
	"github.com/rs/zerolog/log"
)

type (
	// Position is an original-source position recovered from a source map.
	Position struct {
		Path   string
		Line   int64
		Column int64
		Name   string
	}

	// Resolver translates a generated-code position into an original-source
	// position. Implementations must fail soft: when no translation is
	// possible they return ok=false and the caller keeps the generated
	// position.
	Resolver interface {
		Resolve(scriptPath string, line, column int64) (Position, bool)
	}

	// Identity is the resolver used when no source maps are configured.
	Identity struct{}

	// Store resolves positions through source maps found on disk. Maps are
	// parsed lazily, at most once per script; scripts whose map fails to
	// load or parse are remembered so the load is not retried.
	Store struct {
		mapPaths map[string]string

		mu        sync.RWMutex
		consumers map[string]*sourcemap.Consumer
	}
)

func (Identity) Resolve(_ string, _, _ int64) (Position, bool) {
	return Position{}, false
}

// NewStore walks the given roots and indexes every ".map" file it finds,
// keyed by the path of the generated script the map describes. No map is
// parsed until a position inside its script is resolved.
func NewStore(roots []string) (*Store, error) {
	s := &Store{
		mapPaths:  make(map[string]string),
		consumers: make(map[string]*sourcemap.Consumer),
	}
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".map") {
				return nil
			}
			s.mapPaths[strings.TrimSuffix(path, ".map")] = path
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Resolve translates the given generated position. Lines and columns are
// 1-based, matching what the profiler reports.
func (s *Store) Resolve(scriptPath string, line, column int64) (Position, bool) {
	consumer, ok := s.consumer(scriptPath)
	if !ok {
		return Position{}, false
	}
	col := int(column) - 1
	if col < 0 {
		col = 0
	}
	source, name, origLine, origColumn, ok := consumer.Source(int(line), col)
	if !ok || source == "" {
		return Position{}, false
	}
	return Position{
		Path:   source,
		Line:   int64(origLine),
		Column: int64(origColumn),
		Name:   name,
	}, true
}

func (s *Store) consumer(scriptPath string) (*sourcemap.Consumer, bool) {
	s.mu.RLock()
	consumer, exists := s.consumers[scriptPath]
	s.mu.RUnlock()
	if exists {
		return consumer, consumer != nil
	}

	// Concurrent first lookups of the same script may both load the map;
	// they produce identical consumers so the duplicate work is harmless.
	consumer = s.load(scriptPath)
	s.mu.Lock()
	s.consumers[scriptPath] = consumer
	s.mu.Unlock()
	return consumer, consumer != nil
}

// load returns nil when no usable map exists for the script. The nil is
// cached so the failure is not retried on every lookup.
func (s *Store) load(scriptPath string) *sourcemap.Consumer {
	mapPath, exists := s.mapPaths[scriptPath]
	if !exists {
		return nil
	}
	data, err := os.ReadFile(mapPath)
	if err != nil {
		log.Warn().Err(err).Str("script", scriptPath).Msg("cannot read source map")
		return nil
	}
	consumer, err := sourcemap.Parse(mapPath, data)
	if err != nil {
		log.Warn().Err(err).Str("script", scriptPath).Msg("cannot parse source map")
		return nil
	}
	return consumer
}
