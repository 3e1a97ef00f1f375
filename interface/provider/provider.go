package provider

import (
	"context"

	"github.com/avalanchegeo/eros-ingester/common"
)

// ImageProvider is the interface of a scene-archive download service
type ImageProvider interface {
	// Download fetches the ready download into localDir and returns the local
	// path of the archive. A file already present is not fetched again.
	Download(ctx context.Context, download common.ReadyDownload, localDir string) (string, error)

	// Name of the provider
	Name() string
}
