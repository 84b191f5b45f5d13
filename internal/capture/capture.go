package capture

import (
	"errors"

	"github.com/nodeprof/nodeprof/internal/v8"
)

var (
	// ErrNoActiveCapture is returned when stopping a session that was
	// never started. This is a caller configuration error, not a fault of
	// the profiler.
	ErrNoActiveCapture = errors.New("no capture is active")

	// ErrCaptureActive is returned when starting a session twice.
	ErrCaptureActive = errors.New("capture is already active")
)

type (
	// Engine is the profiler control surface supplied by the runtime
	// binding. The serialization engine only ever consumes the snapshots
	// returned by the stop calls.
	Engine interface {
		SetSamplingInterval(micros int64)
		StartProfiling(name string, lineLevel bool)
		StopProfiling(name string, lineLevel bool) (*v8.TimeProfile, error)

		StartSamplingHeapProfiler(intervalBytes int64, stackDepth int)
		StopSamplingHeapProfiler()
		GetAllocationProfile() (*v8.AllocationProfile, error)
	}

	// TimeSession owns the lifecycle of one CPU capture. The caller holds
	// the session; there is no process-global profiling state.
	TimeSession struct {
		engine       Engine
		name         string
		periodMicros int64
		lineLevel    bool
		active       bool
	}

	// HeapSession owns the lifecycle of the sampling heap profiler.
	HeapSession struct {
		engine        Engine
		intervalBytes int64
		stackDepth    int
		active        bool
	}
)

func NewTimeSession(engine Engine, name string, periodMicros int64, lineLevel bool) *TimeSession {
	return &TimeSession{
		engine:       engine,
		name:         name,
		periodMicros: periodMicros,
		lineLevel:    lineLevel,
	}
}

// PeriodMicros is the sampling interval the session was started with.
func (s *TimeSession) PeriodMicros() int64 {
	return s.periodMicros
}

func (s *TimeSession) LineLevel() bool {
	return s.lineLevel
}

func (s *TimeSession) Start() error {
	if s.active {
		return ErrCaptureActive
	}
	s.engine.SetSamplingInterval(s.periodMicros)
	s.engine.StartProfiling(s.name, s.lineLevel)
	s.active = true
	return nil
}

// Stop ends the capture and hands back the snapshot. The snapshot is owned
// by the caller and is only ever read by the serializer.
func (s *TimeSession) Stop() (*v8.TimeProfile, error) {
	if !s.active {
		return nil, ErrNoActiveCapture
	}
	s.active = false
	return s.engine.StopProfiling(s.name, s.lineLevel)
}

func NewHeapSession(engine Engine, intervalBytes int64, stackDepth int) *HeapSession {
	return &HeapSession{
		engine:        engine,
		intervalBytes: intervalBytes,
		stackDepth:    stackDepth,
	}
}

func (s *HeapSession) IntervalBytes() int64 {
	return s.intervalBytes
}

func (s *HeapSession) Start() error {
	if s.active {
		return ErrCaptureActive
	}
	s.engine.StartSamplingHeapProfiler(s.intervalBytes, s.stackDepth)
	s.active = true
	return nil
}

// Profile reads the current allocation profile without stopping the
// profiler; the sampling heap profiler keeps running between reads.
func (s *HeapSession) Profile() (*v8.AllocationProfile, error) {
	if !s.active {
		return nil, ErrNoActiveCapture
	}
	return s.engine.GetAllocationProfile()
}

func (s *HeapSession) Stop() error {
	if !s.active {
		return ErrNoActiveCapture
	}
	s.engine.StopSamplingHeapProfiler()
	s.active = false
	return nil
}
