package catalog

import (
	"context"
	"fmt"

	"github.com/avalanchegeo/eros-ingester/common"
	"github.com/avalanchegeo/eros-ingester/service/log"
)

// Datasets searches each candidate dataset name for data within the spatial and
// temporal filters and returns the matching datasets keyed by candidate name.
// Names without a match are omitted, not an error. When a name matches several
// datasets, only the first is retained: the client assumes at most one
// canonical dataset definition per name for a given area/time combination.
func (c *Catalog) Datasets(ctx context.Context, datasetNames []string, spatial common.SpatialFilter, temporal common.TemporalFilter) (map[string]common.Dataset, error) {
	datasets := map[string]common.Dataset{}
	for _, name := range datasetNames {
		log.Logger(ctx).Sugar().Infof("searching dataset name: %s...", name)
		found, err := c.Client.DatasetSearch(ctx, name, spatial, temporal)
		if err != nil {
			return nil, fmt.Errorf("Datasets.%w", err)
		}
		log.Logger(ctx).Sugar().Infof("found %d datasets", len(found))
		if len(found) == 0 {
			continue
		}
		datasets[name] = found[0]
	}
	return datasets, nil
}
