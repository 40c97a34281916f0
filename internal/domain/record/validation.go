package record

import "strings"

// ValidateOriginal validates fields required to store an original record.
func ValidateOriginal(rec *OriginalRecord) error {
	if rec == nil {
		return ErrInvalidInput
	}
	if strings.TrimSpace(rec.ID) == "" {
		return ErrInvalidInput
	}
	if strings.TrimSpace(rec.SourceID) == "" {
		return ErrInvalidInput
	}
	if !rec.Deleted && strings.TrimSpace(rec.Content) == "" {
		return ErrInvalidInput
	}
	return nil
}

// ValidateAggregation validates fields required to store an aggregation.
func ValidateAggregation(agg *Aggregation) error {
	if agg == nil {
		return ErrInvalidInput
	}
	if strings.TrimSpace(agg.ID) == "" {
		return ErrInvalidInput
	}
	if agg.Record == nil {
		return ErrInvalidInput
	}
	return nil
}
