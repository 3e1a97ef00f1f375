package common

// Dataset is the part of a dataset-search record consumed by this client.
// Alias identifies the dataset in subsequent API calls, CollectionName is for display.
type Dataset struct {
	Alias          string `json:"datasetAlias"`
	CollectionName string `json:"collectionName"`
}

// DownloadCandidate is a single downloadable product of a scene
type DownloadCandidate struct {
	EntityID  string `json:"entityId"`
	ProductID string `json:"productId"`
}

// ReadyDownload is a queued download whose URL is available for immediate retrieval
type ReadyDownload struct {
	EntityID string `json:"entityId"`
	URL      string `json:"url"`
}

// ReadyDownloads maps a server-assigned download id to its ReadyDownload.
// The map grows monotonically: an id, once added, is never overwritten.
type ReadyDownloads map[string]ReadyDownload

// Merge adds the download under id and returns true, or returns false if the id
// is already present. Calling Merge twice with the same id is a no-op.
func (rd ReadyDownloads) Merge(id string, download ReadyDownload) bool {
	if _, ok := rd[id]; ok {
		return false
	}
	rd[id] = download
	return true
}
