package pprofutil

import (
	"bytes"
	"fmt"
	"io"

	"github.com/google/pprof/profile"

	"github.com/nodeprof/nodeprof/internal/document"
	"github.com/nodeprof/nodeprof/internal/errorutil"
)

// Encode serializes a canonical document into the pprof wire format and
// gzip-compresses it. Output is byte-identical across calls for the same
// document.
func Encode(doc *document.Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeTo(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo writes the encoded document to w.
func EncodeTo(w io.Writer, doc *document.Document) error {
	p, err := Profile(doc)
	if err != nil {
		return err
	}
	if err := p.Write(w); err != nil {
		return fmt.Errorf("%w: %v", errorutil.ErrResourceExhausted, err)
	}
	return nil
}

// Profile converts a canonical document into a pprof profile. Ids assigned
// by the interner are carried over unchanged.
func Profile(doc *document.Document) (*profile.Profile, error) {
	p := &profile.Profile{
		TimeNanos:     doc.TimeNanos,
		DurationNanos: doc.DurationNanos,
		Period:        doc.Period,
		PeriodType: &profile.ValueType{
			Type: doc.PeriodType.Type,
			Unit: doc.PeriodType.Unit,
		},
		DefaultSampleType: doc.DefaultSampleType,
	}

	for _, vt := range doc.SampleTypes {
		p.SampleType = append(p.SampleType, &profile.ValueType{
			Type: vt.Type,
			Unit: vt.Unit,
		})
	}

	functions := make(map[uint64]*profile.Function, len(doc.Functions))
	for _, f := range doc.Functions {
		pf := &profile.Function{
			ID:         f.ID,
			Name:       f.Name,
			SystemName: f.SystemName,
			Filename:   f.Filename,
		}
		p.Function = append(p.Function, pf)
		functions[f.ID] = pf
	}

	mappings := make(map[uint64]*profile.Mapping, len(doc.Mappings))
	for _, m := range doc.Mappings {
		pm := &profile.Mapping{
			ID:    m.ID,
			File:  m.File,
			Start: m.Start,
			Limit: m.Limit,
		}
		p.Mapping = append(p.Mapping, pm)
		mappings[m.ID] = pm
	}

	locations := make(map[uint64]*profile.Location, len(doc.Locations))
	for _, l := range doc.Locations {
		fn, exists := functions[l.FunctionID]
		if !exists {
			return nil, fmt.Errorf("%w: location %d references unknown function %d", errorutil.ErrDataIntegrity, l.ID, l.FunctionID)
		}
		pl := &profile.Location{
			ID: l.ID,
			Line: []profile.Line{
				{
					Function: fn,
					Line:     l.Line,
					Column:   l.Column,
				},
			},
		}
		if l.MappingID != 0 {
			m, exists := mappings[l.MappingID]
			if !exists {
				return nil, fmt.Errorf("%w: location %d references unknown mapping %d", errorutil.ErrDataIntegrity, l.ID, l.MappingID)
			}
			pl.Mapping = m
		}
		p.Location = append(p.Location, pl)
		locations[l.ID] = pl
	}

	for i, s := range doc.Samples {
		ps := &profile.Sample{
			Value: s.Values,
		}
		for _, id := range s.LocationIDs {
			l, exists := locations[id]
			if !exists {
				return nil, fmt.Errorf("%w: sample %d references unknown location %d", errorutil.ErrDataIntegrity, i, id)
			}
			ps.Location = append(ps.Location, l)
		}
		p.Sample = append(p.Sample, ps)
	}

	return p, nil
}
