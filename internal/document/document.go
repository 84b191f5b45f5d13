package document

import (
	"fmt"

	"github.com/nodeprof/nodeprof/internal/errorutil"
)

type (
	// ValueType describes one dimension of a sample value.
	ValueType struct {
		Type string `json:"type"`
		Unit string `json:"unit"`
	}

	// Function is a deduplicated function record. Functions carry no
	// location: the same id is reused by every Location inside the
	// function.
	Function struct {
		ID         uint64 `json:"id"`
		Name       string `json:"name"`
		SystemName string `json:"system_name"`
		Filename   string `json:"filename"`
		ScriptID   int64  `json:"script_id"`
	}

	// Location is a deduplicated call site: a function at a line and
	// column. MappingID is 0 when the location belongs to no mapping.
	Location struct {
		ID         uint64 `json:"id"`
		FunctionID uint64 `json:"function_id"`
		Line       int64  `json:"line"`
		Column     int64  `json:"column"`
		MappingID  uint64 `json:"mapping_id,omitempty"`
	}

	// Mapping describes the script or module a location belongs to.
	Mapping struct {
		ID    uint64 `json:"id"`
		File  string `json:"file"`
		Start uint64 `json:"start,omitempty"`
		Limit uint64 `json:"limit,omitempty"`
	}

	// Sample is one weighted call-path observation. LocationIDs are
	// ordered leaf to root.
	Sample struct {
		LocationIDs []uint64 `json:"location_ids"`
		Values      []int64  `json:"values"`
	}

	// Document is the canonical, fully deduplicated in-memory profile.
	// It is built once per serialization call and consumed exactly once
	// by the encoder.
	Document struct {
		SampleTypes []ValueType `json:"sample_types"`
		Samples     []Sample    `json:"samples"`
		Functions   []*Function `json:"functions"`
		Locations   []*Location `json:"locations"`
		Mappings    []*Mapping  `json:"mappings"`

		TimeNanos     int64     `json:"time_nanos"`
		DurationNanos int64     `json:"duration_nanos"`
		PeriodType    ValueType `json:"period_type"`
		Period        int64     `json:"period"`

		DefaultSampleType string `json:"default_sample_type,omitempty"`
	}
)

// Validate checks that every id referenced anywhere in the document exists
// exactly once in its owning table. A violation means the document was
// built incorrectly and is unusable.
func (d *Document) Validate() error {
	functions := make(map[uint64]struct{}, len(d.Functions))
	for _, f := range d.Functions {
		if f.ID == 0 {
			return fmt.Errorf("%w: function %q has reserved id 0", errorutil.ErrDataIntegrity, f.Name)
		}
		if _, seen := functions[f.ID]; seen {
			return fmt.Errorf("%w: duplicate function id %d", errorutil.ErrDataIntegrity, f.ID)
		}
		functions[f.ID] = struct{}{}
	}

	mappings := make(map[uint64]struct{}, len(d.Mappings))
	for _, m := range d.Mappings {
		if m.ID == 0 {
			return fmt.Errorf("%w: mapping %q has reserved id 0", errorutil.ErrDataIntegrity, m.File)
		}
		if _, seen := mappings[m.ID]; seen {
			return fmt.Errorf("%w: duplicate mapping id %d", errorutil.ErrDataIntegrity, m.ID)
		}
		mappings[m.ID] = struct{}{}
	}

	locations := make(map[uint64]struct{}, len(d.Locations))
	for _, l := range d.Locations {
		if l.ID == 0 {
			return fmt.Errorf("%w: location has reserved id 0", errorutil.ErrDataIntegrity)
		}
		if _, seen := locations[l.ID]; seen {
			return fmt.Errorf("%w: duplicate location id %d", errorutil.ErrDataIntegrity, l.ID)
		}
		locations[l.ID] = struct{}{}
		if _, exists := functions[l.FunctionID]; !exists {
			return fmt.Errorf("%w: location %d references unknown function %d", errorutil.ErrDataIntegrity, l.ID, l.FunctionID)
		}
		if l.MappingID != 0 {
			if _, exists := mappings[l.MappingID]; !exists {
				return fmt.Errorf("%w: location %d references unknown mapping %d", errorutil.ErrDataIntegrity, l.ID, l.MappingID)
			}
		}
	}

	for i, s := range d.Samples {
		if len(s.Values) != len(d.SampleTypes) {
			return fmt.Errorf("%w: sample %d has %d values for %d sample types", errorutil.ErrDataIntegrity, i, len(s.Values), len(d.SampleTypes))
		}
		for _, id := range s.LocationIDs {
			if _, exists := locations[id]; !exists {
				return fmt.Errorf("%w: sample %d references unknown location %d", errorutil.ErrDataIntegrity, i, id)
			}
		}
	}

	return nil
}
