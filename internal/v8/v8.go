package v8

import (
	"errors"
	"io"

	gojson "github.com/goccy/go-json"
)

var (
	ErrMissingRoot = errors.New("profile is missing its root node")
	ErrInvalidTime = errors.New("profile end time precedes its start time")
)

type (
	// LineTick is a (line, hit count) pair recorded inside a function when
	// the profiler runs with caller line numbers enabled.
	LineTick struct {
		Line     int64 `json:"line"`
		HitCount int64 `json:"hitCount"`
	}

	// TimeNode is one vertex of the CPU profiler's top-down call tree, as
	// translated by the native binding.
	TimeNode struct {
		Name         string      `json:"name"`
		ScriptName   string      `json:"scriptName"`
		ScriptID     int64       `json:"scriptId"`
		LineNumber   int64       `json:"lineNumber"`
		ColumnNumber int64       `json:"columnNumber"`
		HitCount     int64       `json:"hitCount"`
		LineTicks    []LineTick  `json:"lineTicks,omitempty"`
		Children     []*TimeNode `json:"children"`
	}

	// TimeProfile is the output of one CPU profiling session.
	// Start and end times are in microseconds since epoch, as reported by
	// the runtime.
	TimeProfile struct {
		Title       string    `json:"title"`
		TopDownRoot *TimeNode `json:"topDownRoot"`
		StartTime   int64     `json:"startTime"`
		EndTime     int64     `json:"endTime"`
	}

	// Allocation is one sampled allocation bucket: count allocations of
	// sizeBytes each.
	Allocation struct {
		SizeBytes int64 `json:"sizeBytes"`
		Count     int64 `json:"count"`
	}

	// AllocationNode is one vertex of the sampling heap profiler's tree.
	AllocationNode struct {
		Name         string            `json:"name"`
		ScriptName   string            `json:"scriptName"`
		ScriptID     int64             `json:"scriptId"`
		LineNumber   int64             `json:"lineNumber"`
		ColumnNumber int64             `json:"columnNumber"`
		Allocations  []Allocation      `json:"allocations"`
		Children     []*AllocationNode `json:"children"`
	}

	// AllocationProfile is the output of one heap profiling session.
	AllocationProfile struct {
		RootNode            *AllocationNode `json:"rootNode"`
		SampleIntervalBytes int64           `json:"sampleIntervalBytes"`
	}
)

// DecodeTimeProfile reads a JSON-encoded time profile.
func DecodeTimeProfile(r io.Reader) (*TimeProfile, error) {
	var p TimeProfile
	if err := gojson.NewDecoder(r).Decode(&p); err != nil {
		return nil, err
	}
	if err := p.Valid(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeAllocationProfile reads a JSON-encoded allocation profile.
func DecodeAllocationProfile(r io.Reader) (*AllocationProfile, error) {
	var p AllocationProfile
	if err := gojson.NewDecoder(r).Decode(&p); err != nil {
		return nil, err
	}
	if p.RootNode == nil {
		return nil, ErrMissingRoot
	}
	return &p, nil
}

func (p *TimeProfile) Valid() error {
	if p.TopDownRoot == nil {
		return ErrMissingRoot
	}
	if p.EndTime < p.StartTime {
		return ErrInvalidTime
	}
	return nil
}

// DurationMicros is the wall time covered by the profile.
func (p *TimeProfile) DurationMicros() int64 {
	return p.EndTime - p.StartTime
}
