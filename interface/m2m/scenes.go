package m2m

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avalanchegeo/eros-ingester/common"
)

// SceneSearchResults is the part of a scene-search response consumed by this client
type SceneSearchResults struct {
	RecordsReturned int `json:"recordsReturned"`
	Results         []struct {
		EntityID string `json:"entityId"`
	} `json:"results"`
}

// EntityIDs returns the entity id of every scene of the result page
func (r SceneSearchResults) EntityIDs() []string {
	ids := make([]string, len(r.Results))
	for i, result := range r.Results {
		ids[i] = result.EntityID
	}
	return ids
}

// SceneSearch returns the first page of scenes of the dataset acquired within
// the spatial and temporal filters. maxResults caps the page size; there is no
// pagination loop (datasets with more qualifying scenes only surface the first page).
func (c *Client) SceneSearch(ctx context.Context, datasetAlias string, maxResults int, spatial common.SpatialFilter, temporal common.TemporalFilter) (SceneSearchResults, error) {
	if err := c.checkState("scene-search", StateAuthenticated); err != nil {
		return SceneSearchResults{}, err
	}

	payload := struct {
		DatasetName    string `json:"datasetName"`
		MaxResults     int    `json:"maxResults"`
		StartingNumber int    `json:"startingNumber"`
		SceneFilter    struct {
			SpatialFilter     common.SpatialFilter  `json:"spatialFilter"`
			AcquisitionFilter common.TemporalFilter `json:"acquisitionFilter"`
		} `json:"sceneFilter"`
	}{DatasetName: datasetAlias, MaxResults: maxResults, StartingNumber: 1}
	payload.SceneFilter.SpatialFilter = spatial
	payload.SceneFilter.AcquisitionFilter = temporal

	data, err := c.sendRequest(ctx, "scene-search", payload)
	if err != nil {
		return SceneSearchResults{}, fmt.Errorf("SceneSearch[%s].%w", datasetAlias, err)
	}

	scenes := SceneSearchResults{}
	if err := json.Unmarshal(data, &scenes); err != nil {
		return SceneSearchResults{}, fmt.Errorf("SceneSearch[%s].Unmarshal: %w", datasetAlias, err)
	}
	return scenes, nil
}

// DownloadOption is a downloadable product of a scene
type DownloadOption struct {
	EntityID  string `json:"entityId"`
	ProductID string `json:"id"`
	Available bool   `json:"available"`
}

// DownloadOptions returns the download options of the given scenes.
// NB: the entity id list cannot exceed 50000 items.
func (c *Client) DownloadOptions(ctx context.Context, datasetAlias string, entityIDs []string) ([]DownloadOption, error) {
	if err := c.checkState("download-options", StateAuthenticated); err != nil {
		return nil, err
	}

	payload := struct {
		DatasetName string   `json:"datasetName"`
		EntityIDs   []string `json:"entityIds"`
	}{DatasetName: datasetAlias, EntityIDs: entityIDs}

	data, err := c.sendRequest(ctx, "download-options", payload)
	if err != nil {
		return nil, fmt.Errorf("DownloadOptions[%s].%w", datasetAlias, err)
	}

	var options []DownloadOption
	if err := json.Unmarshal(data, &options); err != nil {
		return nil, fmt.Errorf("DownloadOptions[%s].Unmarshal: %w", datasetAlias, err)
	}
	return options, nil
}
