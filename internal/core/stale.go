package core

// FilterStale returns the candidates that need compilation, preserving order.
//
// A candidate is stale when the record has no entry under its RecordKey, or
// when its current modification time differs from the recorded one by any
// amount.
// Older timestamps count too: clock skew and restored backups must rebuild.
//
// A stat failure aborts the step. The file was just discovered, so a
// disappearing file is treated as a fatal race for this run.
func FilterStale(candidates []Candidate, record *Record) ([]Candidate, error) {
	var stale []Candidate
	for _, c := range candidates {
		recorded, ok := record.Lookup(c.RecordKey())
		if !ok {
			stale = append(stale, c)
			continue
		}
		current, err := modTime(c.Path)
		if err != nil {
			return nil, err
		}
		if !current.Equal(recorded) {
			stale = append(stale, c)
		}
	}
	return stale, nil
}
