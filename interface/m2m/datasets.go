package m2m

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avalanchegeo/eros-ingester/common"
)

// DatasetSearch returns the datasets matching the given name that have data
// within the spatial and temporal filters
func (c *Client) DatasetSearch(ctx context.Context, datasetName string, spatial common.SpatialFilter, temporal common.TemporalFilter) ([]common.Dataset, error) {
	if err := c.checkState("dataset-search", StateAuthenticated); err != nil {
		return nil, err
	}

	payload := struct {
		DatasetName    string                `json:"datasetName"`
		SpatialFilter  common.SpatialFilter  `json:"spatialFilter"`
		TemporalFilter common.TemporalFilter `json:"temporalFilter"`
	}{DatasetName: datasetName, SpatialFilter: spatial, TemporalFilter: temporal}

	data, err := c.sendRequest(ctx, "dataset-search", payload)
	if err != nil {
		return nil, fmt.Errorf("DatasetSearch[%s].%w", datasetName, err)
	}

	var datasets []common.Dataset
	if err := json.Unmarshal(data, &datasets); err != nil {
		return nil, fmt.Errorf("DatasetSearch[%s].Unmarshal: %w", datasetName, err)
	}
	return datasets, nil
}
