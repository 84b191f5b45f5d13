package v8

import (
	"errors"
	"strings"
	"testing"

	"github.com/nodeprof/nodeprof/internal/testutil"
)

func TestDecodeTimeProfile(t *testing.T) {
	input := `{
		"title": "bench",
		"startTime": 1000,
		"endTime": 3000,
		"topDownRoot": {
			"name": "(root)",
			"scriptName": "",
			"scriptId": 0,
			"lineNumber": 0,
			"columnNumber": 0,
			"hitCount": 0,
			"children": [
				{
					"name": "busyLoop",
					"scriptName": "busybench.js",
					"scriptId": 42,
					"lineNumber": 3,
					"columnNumber": 18,
					"hitCount": 7,
					"lineTicks": [{"line": 5, "hitCount": 4}],
					"children": []
				}
			]
		}
	}`

	p, err := DecodeTimeProfile(strings.NewReader(input))
	if err != nil {
		t.Fatalf("we should be able to decode the profile: %v", err)
	}

	want := &TimeProfile{
		Title:     "bench",
		StartTime: 1000,
		EndTime:   3000,
		TopDownRoot: &TimeNode{
			Name: "(root)",
			Children: []*TimeNode{
				{
					Name:         "busyLoop",
					ScriptName:   "busybench.js",
					ScriptID:     42,
					LineNumber:   3,
					ColumnNumber: 18,
					HitCount:     7,
					LineTicks:    []LineTick{{Line: 5, HitCount: 4}},
					Children:     []*TimeNode{},
				},
			},
		},
	}
	if diff := testutil.Diff(p, want); diff != "" {
		t.Fatalf("unexpected profile: %s", diff)
	}
	if p.DurationMicros() != 2000 {
		t.Fatalf("unexpected duration: %d", p.DurationMicros())
	}
}

func TestDecodeTimeProfileErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		err   error
	}{
		{
			name:  "missing root",
			input: `{"title":"bench","startTime":1000,"endTime":3000}`,
			err:   ErrMissingRoot,
		},
		{
			name:  "end before start",
			input: `{"topDownRoot":{"name":"(root)"},"startTime":3000,"endTime":1000}`,
			err:   ErrInvalidTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeTimeProfile(strings.NewReader(tt.input)); !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got: %v", tt.err, err)
			}
		})
	}
}

func TestDecodeTimeProfileMalformed(t *testing.T) {
	if _, err := DecodeTimeProfile(strings.NewReader("{")); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestDecodeAllocationProfile(t *testing.T) {
	input := `{
		"sampleIntervalBytes": 524288,
		"rootNode": {
			"name": "(root)",
			"allocations": [],
			"children": [
				{
					"name": "allocate",
					"scriptName": "bench.js",
					"scriptId": 7,
					"lineNumber": 8,
					"columnNumber": 2,
					"allocations": [{"sizeBytes": 32, "count": 3}],
					"children": []
				}
			]
		}
	}`

	p, err := DecodeAllocationProfile(strings.NewReader(input))
	if err != nil {
		t.Fatalf("we should be able to decode the profile: %v", err)
	}

	want := &AllocationProfile{
		SampleIntervalBytes: 524288,
		RootNode: &AllocationNode{
			Name:        "(root)",
			Allocations: []Allocation{},
			Children: []*AllocationNode{
				{
					Name:         "allocate",
					ScriptName:   "bench.js",
					ScriptID:     7,
					LineNumber:   8,
					ColumnNumber: 2,
					Allocations:  []Allocation{{SizeBytes: 32, Count: 3}},
					Children:     []*AllocationNode{},
				},
			},
		},
	}
	if diff := testutil.Diff(p, want); diff != "" {
		t.Fatalf("unexpected profile: %s", diff)
	}
}

func TestDecodeAllocationProfileMissingRoot(t *testing.T) {
	if _, err := DecodeAllocationProfile(strings.NewReader(`{"sampleIntervalBytes":1}`)); !errors.Is(err, ErrMissingRoot) {
		t.Fatalf("expected %v, got: %v", ErrMissingRoot, err)
	}
}
