package document

type (
	functionKey struct {
		name       string
		scriptName string
		scriptID   int64
	}

	locationKey struct {
		functionID uint64
		line       int64
		column     int64
		mappingID  uint64
	}

	// Builder interns functions, locations and mappings into a document
	// under construction. Interning the same value twice always returns
	// the id assigned the first time. A builder lives for exactly one
	// serialization call.
	Builder struct {
		doc       *Document
		functions map[functionKey]uint64
		locations map[locationKey]uint64
		mappings  map[string]uint64
	}
)

func NewBuilder(sampleTypes []ValueType) *Builder {
	return &Builder{
		doc: &Document{
			SampleTypes: sampleTypes,
		},
		functions: make(map[functionKey]uint64),
		locations: make(map[locationKey]uint64),
		mappings:  make(map[string]uint64),
	}
}

// Function returns the id of the function record with the given identity,
// creating it if it was never seen. Ids start at 1 and grow in insertion
// order; 0 is reserved to mean "absent".
func (b *Builder) Function(name, scriptName string, scriptID int64) uint64 {
	key := functionKey{name, scriptName, scriptID}
	if id, exists := b.functions[key]; exists {
		return id
	}
	id := uint64(len(b.doc.Functions) + 1)
	b.doc.Functions = append(b.doc.Functions, &Function{
		ID:         id,
		Name:       name,
		SystemName: name,
		Filename:   scriptName,
		ScriptID:   scriptID,
	})
	b.functions[key] = id
	return id
}

// Location returns the id of the location record for the given call site.
// Two call sites with identical (function, line, column, mapping) collapse
// to the same id.
func (b *Builder) Location(functionID uint64, line, column int64, mappingID uint64) uint64 {
	key := locationKey{functionID, line, column, mappingID}
	if id, exists := b.locations[key]; exists {
		return id
	}
	id := uint64(len(b.doc.Locations) + 1)
	b.doc.Locations = append(b.doc.Locations, &Location{
		ID:         id,
		FunctionID: functionID,
		Line:       line,
		Column:     column,
		MappingID:  mappingID,
	})
	b.locations[key] = id
	return id
}

// Mapping returns the id of the mapping record for the given file.
func (b *Builder) Mapping(file string) uint64 {
	if id, exists := b.mappings[file]; exists {
		return id
	}
	id := uint64(len(b.doc.Mappings) + 1)
	b.doc.Mappings = append(b.doc.Mappings, &Mapping{
		ID:   id,
		File: file,
	})
	b.mappings[file] = id
	return id
}

// AddSample appends one sample. locationIDs must be ordered leaf to root.
func (b *Builder) AddSample(locationIDs []uint64, values []int64) {
	b.doc.Samples = append(b.doc.Samples, Sample{
		LocationIDs: locationIDs,
		Values:      values,
	})
}

// Document hands out the document under construction. The builder keeps
// appending to the same document if used again.
func (b *Builder) Document() *Document {
	return b.doc
}
