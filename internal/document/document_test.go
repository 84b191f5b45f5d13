package document

import (
	"errors"
	"testing"

	"github.com/nodeprof/nodeprof/internal/errorutil"
	"github.com/nodeprof/nodeprof/internal/testutil"
)

var cpuSampleTypes = []ValueType{
	{Type: "sample", Unit: "count"},
	{Type: "wall", Unit: "microseconds"},
}

func TestInterningIsIdempotent(t *testing.T) {
	b := NewBuilder(cpuSampleTypes)

	first := b.Function("busyLoop", "busybench.js", 42)
	second := b.Function("busyLoop", "busybench.js", 42)
	if first != second {
		t.Fatalf("same function interned twice: ids %d and %d", first, second)
	}
	if len(b.Document().Functions) != 1 {
		t.Fatalf("expected a single function record, got %d", len(b.Document().Functions))
	}

	locFirst := b.Location(first, 10, 5, 0)
	locSecond := b.Location(first, 10, 5, 0)
	if locFirst != locSecond {
		t.Fatalf("same call site interned twice: ids %d and %d", locFirst, locSecond)
	}
}

func TestInterningAssignsIdsInInsertionOrder(t *testing.T) {
	b := NewBuilder(cpuSampleTypes)

	ids := []uint64{
		b.Function("a", "a.js", 1),
		b.Function("b", "b.js", 2),
		b.Function("a", "a.js", 1),
		b.Function("c", "c.js", 3),
	}
	want := []uint64{1, 2, 1, 3}
	if diff := testutil.Diff(ids, want); diff != "" {
		t.Fatalf("unexpected ids: %s", diff)
	}
}

func TestDistinctValuesGetDistinctIds(t *testing.T) {
	b := NewBuilder(cpuSampleTypes)

	fn := b.Function("f", "f.js", 1)
	tests := []struct {
		name   string
		line   int64
		column int64
	}{
		{"declared position", 3, 12},
		{"different line", 4, 12},
		{"different column", 3, 13},
	}

	seen := make(map[uint64]string)
	for _, tt := range tests {
		id := b.Location(fn, tt.line, tt.column, 0)
		if previous, exists := seen[id]; exists {
			t.Fatalf("%q and %q share location id %d", previous, tt.name, id)
		}
		seen[id] = tt.name
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		wantErr bool
	}{
		{
			name: "consistent document",
			doc: Document{
				SampleTypes: cpuSampleTypes,
				Functions:   []*Function{{ID: 1, Name: "f"}},
				Locations:   []*Location{{ID: 1, FunctionID: 1, Line: 3}},
				Samples:     []Sample{{LocationIDs: []uint64{1}, Values: []int64{5, 5000}}},
			},
		},
		{
			name: "sample references unknown location",
			doc: Document{
				SampleTypes: cpuSampleTypes,
				Functions:   []*Function{{ID: 1, Name: "f"}},
				Locations:   []*Location{{ID: 1, FunctionID: 1}},
				Samples:     []Sample{{LocationIDs: []uint64{2}, Values: []int64{1, 1000}}},
			},
			wantErr: true,
		},
		{
			name: "location references unknown function",
			doc: Document{
				SampleTypes: cpuSampleTypes,
				Locations:   []*Location{{ID: 1, FunctionID: 7}},
			},
			wantErr: true,
		},
		{
			name: "location references unknown mapping",
			doc: Document{
				SampleTypes: cpuSampleTypes,
				Functions:   []*Function{{ID: 1, Name: "f"}},
				Locations:   []*Location{{ID: 1, FunctionID: 1, MappingID: 9}},
			},
			wantErr: true,
		},
		{
			name: "duplicate function id",
			doc: Document{
				SampleTypes: cpuSampleTypes,
				Functions:   []*Function{{ID: 1, Name: "f"}, {ID: 1, Name: "g"}},
			},
			wantErr: true,
		},
		{
			name: "sample value arity mismatch",
			doc: Document{
				SampleTypes: cpuSampleTypes,
				Functions:   []*Function{{ID: 1, Name: "f"}},
				Locations:   []*Location{{ID: 1, FunctionID: 1}},
				Samples:     []Sample{{LocationIDs: []uint64{1}, Values: []int64{5}}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if tt.wantErr {
				if !errors.Is(err, errorutil.ErrDataIntegrity) {
					t.Fatalf("expected a data integrity error, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected a valid document, got: %v", err)
			}
		})
	}
}
