package domain

import "fmt"

// VectorRecord is one entry in the vector index. ID is
// "<memory_id>_<chunk_id index>"; upsert is idempotent on ID.
type VectorRecord struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Validate reports whether the record is well-formed enough to upsert.
func (v VectorRecord) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("vector record ID is required")
	}

	if len(v.Values) == 0 {
		return fmt.Errorf("vector record %s has no values", v.ID)
	}

	if v.Metadata == nil {
		return fmt.Errorf("vector record %s has no metadata", v.ID)
	}

	return nil
}
