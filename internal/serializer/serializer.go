package serializer

import (
	"time"

	"github.com/nodeprof/nodeprof/internal/document"
	"github.com/nodeprof/nodeprof/internal/sourcemap"
	"github.com/nodeprof/nodeprof/internal/v8"
)

type (
	// TimeOptions configures the serialization of a CPU profile.
	TimeOptions struct {
		// PeriodMicros is the configured sampling interval. Hit counts are
		// converted to wall time by multiplying by this value.
		PeriodMicros int64
		// LineLevel expands per-line hit counts inside a function into
		// synthetic child locations.
		LineLevel bool
		// Resolver maps generated positions back to original sources.
		// Nil leaves every position untouched.
		Resolver sourcemap.Resolver
	}

	// HeapOptions configures the serialization of an allocation profile.
	HeapOptions struct {
		// StartTime stamps the profile. The zero value means now.
		StartTime time.Time
		Resolver  sourcemap.Resolver
	}

	// walker owns the interning tables and the path stack for exactly one
	// serialization call.
	walker struct {
		builder  *document.Builder
		resolver sourcemap.Resolver
		mapped   bool

		// stack holds the location ids from the root down to the node
		// currently being visited.
		stack []uint64
	}
)

// TimeProfile converts a CPU profiler snapshot into a canonical document.
// The walk visits every node exactly once; a node with zero hits produces
// no sample but its descendants still might.
func TimeProfile(p *v8.TimeProfile, opts TimeOptions) (*document.Document, error) {
	if err := p.Valid(); err != nil {
		return nil, err
	}
	w := newWalker(
		[]document.ValueType{
			{Type: "sample", Unit: "count"},
			{Type: "wall", Unit: "microseconds"},
		},
		opts.Resolver,
	)
	w.walkTime(p.TopDownRoot, opts, true)

	doc := w.builder.Document()
	doc.TimeNanos = p.StartTime * int64(time.Microsecond)
	doc.DurationNanos = p.DurationMicros() * int64(time.Microsecond)
	doc.PeriodType = document.ValueType{Type: "wall", Unit: "microseconds"}
	doc.Period = opts.PeriodMicros
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// HeapProfile converts a sampling heap profiler snapshot into a canonical
// document. Each allocation bucket contributes one sample valued
// (count, count*sizeBytes).
func HeapProfile(p *v8.AllocationProfile, opts HeapOptions) (*document.Document, error) {
	if p.RootNode == nil {
		return nil, v8.ErrMissingRoot
	}
	w := newWalker(
		[]document.ValueType{
			{Type: "objects", Unit: "count"},
			{Type: "space", Unit: "bytes"},
		},
		opts.Resolver,
	)
	w.walkHeap(p.RootNode, true)

	start := opts.StartTime
	if start.IsZero() {
		start = time.Now()
	}
	doc := w.builder.Document()
	doc.TimeNanos = start.UnixNano()
	doc.PeriodType = document.ValueType{Type: "space", Unit: "bytes"}
	doc.Period = p.SampleIntervalBytes
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func newWalker(sampleTypes []document.ValueType, resolver sourcemap.Resolver) *walker {
	mapped := resolver != nil
	if resolver == nil {
		resolver = sourcemap.Identity{}
	}
	return &walker{
		builder:  document.NewBuilder(sampleTypes),
		resolver: resolver,
		mapped:   mapped,
	}
}

// walkTime visits node and its subtree depth-first. The artificial root
// handed back by the profiler is interned like any other node but kept out
// of its descendants' call paths.
func (w *walker) walkTime(node *v8.TimeNode, opts TimeOptions, isRoot bool) {
	id := w.location(node.Name, node.ScriptName, node.ScriptID, node.LineNumber, node.ColumnNumber)
	if !isRoot {
		w.stack = append(w.stack, id)
	}

	if node.HitCount > 0 {
		w.builder.AddSample(w.ownPath(id, isRoot), []int64{
			node.HitCount,
			node.HitCount * opts.PeriodMicros,
		})
	}

	for _, child := range node.Children {
		w.walkTime(child, opts, false)
	}

	// Synthetic per-line children come after the real ones, in the order
	// the profiler reported the ticks. They share the node's function but
	// carry their own line and no column.
	if opts.LineLevel {
		for _, tick := range node.LineTicks {
			tickID := w.location(node.Name, node.ScriptName, node.ScriptID, tick.Line, 0)
			path := append([]uint64{tickID}, w.leafToRoot()...)
			w.builder.AddSample(path, []int64{
				tick.HitCount,
				tick.HitCount * opts.PeriodMicros,
			})
		}
	}

	if !isRoot {
		w.stack = w.stack[:len(w.stack)-1]
	}
}

func (w *walker) walkHeap(node *v8.AllocationNode, isRoot bool) {
	id := w.location(node.Name, node.ScriptName, node.ScriptID, node.LineNumber, node.ColumnNumber)
	if !isRoot {
		w.stack = append(w.stack, id)
	}

	for _, alloc := range node.Allocations {
		w.builder.AddSample(w.ownPath(id, isRoot), []int64{
			alloc.Count,
			alloc.Count * alloc.SizeBytes,
		})
	}

	for _, child := range node.Children {
		w.walkHeap(child, false)
	}

	if !isRoot {
		w.stack = w.stack[:len(w.stack)-1]
	}
}

// ownPath is the leaf-to-root path for a sample attributed to the node
// itself. The root's own samples, should it ever have any, reference only
// its own location.
func (w *walker) ownPath(id uint64, isRoot bool) []uint64 {
	if isRoot {
		return []uint64{id}
	}
	return w.leafToRoot()
}

// location interns the function and the call site, translating the position
// through the resolver first. A resolved location carries a mapping record
// for the original file so consumers can tell it apart from the generated
// script; an unresolved one carries none.
func (w *walker) location(name, scriptName string, scriptID, line, column int64) uint64 {
	functionID := w.builder.Function(name, scriptName, scriptID)
	var mappingID uint64
	if w.mapped {
		if pos, ok := w.resolver.Resolve(scriptName, line, column); ok {
			mappingID = w.builder.Mapping(pos.Path)
			line = pos.Line
			column = pos.Column
		}
	}
	return w.builder.Location(functionID, line, column, mappingID)
}

// leafToRoot returns the current path stack reversed, per the wire format's
// leaf-first convention.
func (w *walker) leafToRoot() []uint64 {
	path := make([]uint64, len(w.stack))
	for i, id := range w.stack {
		path[len(w.stack)-1-i] = id
	}
	return path
}
