package m2m

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avalanchegeo/eros-ingester/common"
)

// DownloadID is a server-assigned identifier of a queued download, distinct
// from the entity/product ids. The server may encode it as a number or a string.
type DownloadID string

func (d *DownloadID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*d = DownloadID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("DownloadID: %w", err)
	}
	*d = DownloadID(n.String())
	return nil
}

// AvailableDownload is an entry of the "available" list of a download-retrieve response
type AvailableDownload struct {
	DownloadID DownloadID `json:"downloadId"`
	EntityID   string     `json:"entityId"`
	URL        string     `json:"url"`
}

// DownloadRequest enqueues the downloads server-side under the given label.
// The response content is not needed by the workflow beyond confirming submission:
// ready URLs are fetched with DownloadRetrieve.
func (c *Client) DownloadRequest(ctx context.Context, label string, downloads []common.DownloadCandidate) error {
	if err := c.checkState("download-request", StateAuthenticated); err != nil {
		return err
	}

	payload := struct {
		Downloads []common.DownloadCandidate `json:"downloads"`
		Label     string                     `json:"label"`
	}{Downloads: downloads, Label: label}

	if _, err := c.sendRequest(ctx, "download-request", payload); err != nil {
		return fmt.Errorf("DownloadRequest[%s].%w", label, err)
	}
	return nil
}

// DownloadRetrieve returns the downloads of the label that are available for
// immediate download. Entries still preparing are not returned; the caller
// polls until every requested item shows up.
func (c *Client) DownloadRetrieve(ctx context.Context, label string) ([]AvailableDownload, error) {
	if err := c.checkState("download-retrieve", StateAuthenticated); err != nil {
		return nil, err
	}

	payload := struct {
		Label string `json:"label"`
	}{Label: label}

	data, err := c.sendRequest(ctx, "download-retrieve", payload)
	if err != nil {
		return nil, fmt.Errorf("DownloadRetrieve[%s].%w", label, err)
	}

	retrieved := struct {
		Available []AvailableDownload `json:"available"`
	}{}
	if err := json.Unmarshal(data, &retrieved); err != nil {
		return nil, fmt.Errorf("DownloadRetrieve[%s].Unmarshal: %w", label, err)
	}
	return retrieved.Available, nil
}
