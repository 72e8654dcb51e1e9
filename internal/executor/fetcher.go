package executor

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/stanstork/mapscrape-api/internal/models"
)

// fetch reads every item of datasetID in one call.
func (e *Executor) fetch(ctx context.Context, datasetID string) ([]json.RawMessage, error) {
	items, err := e.api.ListItems(ctx, datasetID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch items of dataset %s", datasetID)
	}
	return items, nil
}

// ToRecords converts dataset items into output records for row index.
// Items that are not JSON objects are wrapped as {"value": item}.
func ToRecords(items []json.RawMessage, index int) []models.OutputRecord {
	records := make([]models.OutputRecord, 0, len(items))
	for _, raw := range items {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			v = string(raw)
		}
		obj, ok := v.(map[string]any)
		if !ok {
			obj = map[string]any{"value": v}
		}
		records = append(records, models.NewOutputRecord(obj, index))
	}
	return records
}
