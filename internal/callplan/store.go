package callplan

import "sync"

// Store holds the live call structure and client card schema. The HTTP config
// endpoints replace them at runtime while session ingest cycles read them, so
// access is mutex-guarded and reads return copies.
type Store struct {
	mu        sync.RWMutex
	structure Structure
	fields    []ClientCardField
}

// NewStore creates a store seeded with the given structure and fields.
func NewStore(structure Structure, fields []ClientCardField) *Store {
	return &Store{
		structure: structure,
		fields:    fields,
	}
}

// NewDefaultStore creates a store seeded with the built-in trial class plan.
func NewDefaultStore() *Store {
	return NewStore(DefaultStructure(), DefaultClientCardFields())
}

// Structure returns a copy of the current call structure.
func (st *Store) Structure() Structure {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make(Structure, len(st.structure))
	copy(out, st.structure)
	return out
}

// ClientCardFields returns a copy of the current client card schema.
func (st *Store) ClientCardFields() []ClientCardField {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]ClientCardField, len(st.fields))
	copy(out, st.fields)
	return out
}

// SetStructure validates and installs a new call structure.
func (st *Store) SetStructure(structure Structure) error {
	if err := structure.Validate(); err != nil {
		return err
	}

	st.mu.Lock()
	st.structure = structure
	st.mu.Unlock()
	return nil
}

// SetClientCardFields validates and installs a new client card schema.
func (st *Store) SetClientCardFields(fields []ClientCardField) error {
	if err := ValidateClientCardFields(fields); err != nil {
		return err
	}

	st.mu.Lock()
	st.fields = fields
	st.mu.Unlock()
	return nil
}
