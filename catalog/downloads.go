package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/avalanchegeo/eros-ingester/common"
	"github.com/avalanchegeo/eros-ingester/service/log"
)

// DownloadURLs enqueues a download request per dataset and polls
// download-retrieve until every requested item has a ready URL. The result
// maps the server download id to the entity id and URL of each ready download;
// the merge is idempotent (retrieve is called repeatedly and an id is never
// added twice nor overwritten).
//
// The retrieve label is shared by every dataset of the run, so a retrieve call
// returns the entries of all datasets requested so far: the termination target
// is the cumulative requested count, compared against the global map size.
//
// With RetrieveMaxAttempts == 0 the loop is unbounded and a
// permanently-preparing download blocks it forever.
func (c *Catalog) DownloadURLs(ctx context.Context, scenesToDownload map[string][]common.DownloadCandidate) (common.ReadyDownloads, error) {
	ready := common.ReadyDownloads{}
	requested := 0
	for _, alias := range sortedKeys(scenesToDownload) {
		downloads := scenesToDownload[alias]
		requested += len(downloads)

		// Enqueue the requested downloads into the server download queue
		if err := c.Client.DownloadRequest(ctx, c.label(), downloads); err != nil {
			return nil, fmt.Errorf("DownloadURLs.%w", err)
		}

		// A queued download may have a valid link before its data is ready:
		// only download-retrieve lists what is available for immediate download
		if err := c.retrieve(ctx, ready); err != nil {
			return nil, fmt.Errorf("DownloadURLs.%w", err)
		}

		for attempts := 0; len(ready) < requested; attempts++ {
			if c.RetrieveMaxAttempts > 0 && attempts >= c.RetrieveMaxAttempts {
				return nil, fmt.Errorf("DownloadURLs[%s]: %d downloads still preparing after %d retrieve attempts", alias, requested-len(ready), attempts)
			}
			log.Logger(ctx).Sugar().Infof("%d downloads are not available, waiting for %v", requested-len(ready), c.retrieveWait())
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("DownloadURLs: %w", ctx.Err())
			case <-time.After(c.retrieveWait()):
			}
			if err := c.retrieve(ctx, ready); err != nil {
				return nil, fmt.Errorf("DownloadURLs.%w", err)
			}
		}
		log.Logger(ctx).Sugar().Infof("all %d downloads from %s are available to download", len(downloads), alias)
	}
	return ready, nil
}

// retrieve merges the available downloads of the run label into ready
func (c *Catalog) retrieve(ctx context.Context, ready common.ReadyDownloads) error {
	available, err := c.Client.DownloadRetrieve(ctx, c.label())
	if err != nil {
		return err
	}
	for _, download := range available {
		ready.Merge(string(download.DownloadID), common.ReadyDownload{EntityID: download.EntityID, URL: download.URL})
	}
	return nil
}
