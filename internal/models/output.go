package models

// PairedItem points an output record back at the input row that produced it.
type PairedItem struct {
	Item int `json:"item"`
}

// OutputRecord is one item handed back to the host.
type OutputRecord struct {
	JSON       map[string]any `json:"json"`
	PairedItem PairedItem     `json:"pairedItem"`
}

func NewOutputRecord(item map[string]any, index int) OutputRecord {
	return OutputRecord{JSON: item, PairedItem: PairedItem{Item: index}}
}

func NewErrorRecord(message string, index int) OutputRecord {
	return OutputRecord{
		JSON:       map[string]any{"error": message},
		PairedItem: PairedItem{Item: index},
	}
}

// IsError reports whether the record is an error-shaped row result.
func (r OutputRecord) IsError() bool {
	if len(r.JSON) != 1 {
		return false
	}
	_, ok := r.JSON["error"].(string)
	return ok
}
