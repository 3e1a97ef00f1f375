package catalog

import (
	"context"
	"fmt"

	"github.com/avalanchegeo/eros-ingester/common"
	"github.com/avalanchegeo/eros-ingester/service/log"
)

// Scenes searches each dataset for scenes acquired within the filters and
// resolves which of them have an available downloadable product. The result
// maps the dataset alias to its download candidates, in download-options
// order. Datasets without scenes or without an available product are omitted.
func (c *Catalog) Scenes(ctx context.Context, datasets map[string]common.Dataset, spatial common.SpatialFilter, temporal common.TemporalFilter) (map[string][]common.DownloadCandidate, error) {
	scenesToDownload := map[string][]common.DownloadCandidate{}
	for _, name := range sortedKeys(datasets) {
		dataset := datasets[name]

		log.Logger(ctx).Sugar().Infof("searching scenes in dataset: %s...", dataset.Alias)
		scenes, err := c.Client.SceneSearch(ctx, dataset.Alias, c.maxScenes(), spatial, temporal)
		if err != nil {
			return nil, fmt.Errorf("Scenes.%w", err)
		}
		if scenes.RecordsReturned <= 0 {
			log.Logger(ctx).Sugar().Warnf("search found no results for %s", dataset.CollectionName)
			continue
		}

		options, err := c.Client.DownloadOptions(ctx, dataset.Alias, scenes.EntityIDs())
		if err != nil {
			return nil, fmt.Errorf("Scenes.%w", err)
		}
		var downloads []common.DownloadCandidate
		for _, option := range options {
			if option.Available {
				downloads = append(downloads, common.DownloadCandidate{EntityID: option.EntityID, ProductID: option.ProductID})
			}
		}
		if len(downloads) == 0 {
			log.Logger(ctx).Sugar().Warnf("no available product for %s", dataset.CollectionName)
			continue
		}
		scenesToDownload[dataset.Alias] = downloads
	}
	return scenesToDownload, nil
}
