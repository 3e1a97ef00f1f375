package catalog_test

import (
	"context"
	"time"

	"github.com/avalanchegeo/eros-ingester/catalog"
	"github.com/avalanchegeo/eros-ingester/common"
	"github.com/avalanchegeo/eros-ingester/interface/m2m"
	"github.com/avalanchegeo/eros-ingester/service"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Catalog", func() {
	var (
		ctx      context.Context
		fake     *fakeM2M
		c        catalog.Catalog
		spatial  common.SpatialFilter
		temporal common.TemporalFilter
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = newFakeM2M()

		client := m2m.NewClient(fake.URL())
		Expect(client.Login(ctx, "user", "pswd")).To(Succeed())

		c = catalog.Catalog{Client: client, RetrieveWait: time.Millisecond}

		var err error
		spatial, err = common.NewSpatialFilter(
			common.Coordinate{Latitude: 38.9, Longitude: -107.1},
			common.Coordinate{Latitude: 39.3, Longitude: -106.5})
		Expect(err).NotTo(HaveOccurred())
		temporal = common.NewTemporalFilterLastDays(time.Now(), 14)
	})

	AfterEach(func() {
		fake.Close()
	})

	Describe("Searching datasets", func() {
		Context("With a name matching several datasets", func() {
			BeforeEach(func() {
				fake.datasets["WORLDVIEW-1"] = []map[string]string{
					{"datasetAlias": "wv1_a", "collectionName": "WorldView-1 A"},
					{"datasetAlias": "wv1_b", "collectionName": "WorldView-1 B"},
				}
			})

			It("should retain the first match only", func() {
				datasets, err := c.Datasets(ctx, []string{"WORLDVIEW-1"}, spatial, temporal)
				Expect(err).NotTo(HaveOccurred())
				Expect(datasets).To(HaveLen(1))
				Expect(datasets["WORLDVIEW-1"].Alias).To(Equal("wv1_a"))
			})
		})

		Context("With a name matching nothing", func() {
			BeforeEach(func() {
				fake.datasets["WORLDVIEW-1"] = []map[string]string{
					{"datasetAlias": "wv1_a", "collectionName": "WorldView-1 A"},
				}
			})

			It("should omit the name without failing", func() {
				datasets, err := c.Datasets(ctx, []string{"WORLDVIEW-1", "WORLDVIEW-2"}, spatial, temporal)
				Expect(err).NotTo(HaveOccurred())
				Expect(datasets).To(HaveLen(1))
				Expect(datasets).To(HaveKey("WORLDVIEW-1"))
			})
		})

		Context("With a failing service", func() {
			BeforeEach(func() {
				fake.failWith["dataset-search"] = "AUTH_EXPIRED"
			})

			It("should abort with a fatal error before searching the next name", func() {
				_, err := c.Datasets(ctx, []string{"WORLDVIEW-1", "WORLDVIEW-2"}, spatial, temporal)
				Expect(err).To(HaveOccurred())
				Expect(service.Fatal(err)).To(BeTrue())
				Expect(fake.Calls("dataset-search")).To(Equal(1))
			})
		})
	})

	Describe("Resolving downloadable scenes", func() {
		datasets := map[string]common.Dataset{
			"WORLDVIEW-1": {Alias: "wv1", CollectionName: "WorldView-1"},
			"WORLDVIEW-2": {Alias: "wv2", CollectionName: "WorldView-2"},
		}

		BeforeEach(func() {
			fake.scenes["wv1"] = []string{"A1", "A2", "A3"}
			fake.options["wv1"] = []map[string]interface{}{
				{"entityId": "A1", "id": "P1", "available": true},
				{"entityId": "A2", "id": "P2", "available": false},
				{"entityId": "A3", "id": "P3", "available": true},
			}
		})

		It("should keep available products only, in download-options order", func() {
			scenes, err := c.Scenes(ctx, map[string]common.Dataset{"WORLDVIEW-1": datasets["WORLDVIEW-1"]}, spatial, temporal)
			Expect(err).NotTo(HaveOccurred())
			Expect(scenes["wv1"]).To(Equal([]common.DownloadCandidate{
				{EntityID: "A1", ProductID: "P1"},
				{EntityID: "A3", ProductID: "P3"},
			}))
		})

		It("should omit a dataset without scenes", func() {
			scenes, err := c.Scenes(ctx, datasets, spatial, temporal)
			Expect(err).NotTo(HaveOccurred())
			Expect(scenes).To(HaveLen(1))
			Expect(scenes).NotTo(HaveKey("wv2"))
			// No download-options call for the empty dataset
			Expect(fake.Calls("download-options")).To(Equal(1))
		})

		It("should omit a dataset without available product", func() {
			fake.scenes["wv2"] = []string{"B1"}
			fake.options["wv2"] = []map[string]interface{}{
				{"entityId": "B1", "id": "P4", "available": false},
			}
			scenes, err := c.Scenes(ctx, datasets, spatial, temporal)
			Expect(err).NotTo(HaveOccurred())
			Expect(scenes).NotTo(HaveKey("wv2"))
		})
	})

	Describe("Waiting for download urls", func() {
		scenesToDownload := map[string][]common.DownloadCandidate{
			"wv1": {{EntityID: "A1", ProductID: "P1"}, {EntityID: "A2", ProductID: "P2"}},
		}

		Context("With downloads ready after two polls", func() {
			BeforeEach(func() {
				fake.retrieveBatches = [][]availableDownload{
					{},
					{{DownloadID: "D1", EntityID: "A1", URL: "https://dds.cr.usgs.gov/dl/A1"}},
					{
						{DownloadID: "D1", EntityID: "A1", URL: "https://dds.cr.usgs.gov/dl/A1"},
						{DownloadID: "D2", EntityID: "A2", URL: "https://dds.cr.usgs.gov/dl/A2"},
					},
				}
			})

			It("should poll until every requested download is ready", func() {
				ready, err := c.DownloadURLs(ctx, scenesToDownload)
				Expect(err).NotTo(HaveOccurred())
				Expect(ready).To(Equal(common.ReadyDownloads{
					"D1": {EntityID: "A1", URL: "https://dds.cr.usgs.gov/dl/A1"},
					"D2": {EntityID: "A2", URL: "https://dds.cr.usgs.gov/dl/A2"},
				}))
				Expect(fake.Calls("download-request")).To(Equal(1))
				Expect(fake.Calls("download-retrieve")).To(Equal(3))
			})
		})

		Context("With downloads ready at the first retrieve", func() {
			BeforeEach(func() {
				fake.retrieveBatches = [][]availableDownload{
					{
						{DownloadID: "D1", EntityID: "A1", URL: "https://dds.cr.usgs.gov/dl/A1"},
						{DownloadID: "D2", EntityID: "A2", URL: "https://dds.cr.usgs.gov/dl/A2"},
					},
				}
			})

			It("should not wait at all", func() {
				ready, err := c.DownloadURLs(ctx, scenesToDownload)
				Expect(err).NotTo(HaveOccurred())
				Expect(ready).To(HaveLen(2))
				Expect(fake.Calls("download-retrieve")).To(Equal(1))
			})
		})

		Context("With several datasets sharing the run label", func() {
			BeforeEach(func() {
				fake.retrieveBatches = [][]availableDownload{
					{
						{DownloadID: "D1", EntityID: "A1", URL: "https://dds.cr.usgs.gov/dl/A1"},
						{DownloadID: "D2", EntityID: "A2", URL: "https://dds.cr.usgs.gov/dl/A2"},
					},
					{
						{DownloadID: "D1", EntityID: "A1", URL: "https://dds.cr.usgs.gov/dl/A1"},
						{DownloadID: "D2", EntityID: "A2", URL: "https://dds.cr.usgs.gov/dl/A2"},
						{DownloadID: "D3", EntityID: "B1", URL: "https://dds.cr.usgs.gov/dl/B1"},
					},
				}
			})

			It("should merge the retrieves idempotently across datasets", func() {
				ready, err := c.DownloadURLs(ctx, map[string][]common.DownloadCandidate{
					"wv1": {{EntityID: "A1", ProductID: "P1"}, {EntityID: "A2", ProductID: "P2"}},
					"wv2": {{EntityID: "B1", ProductID: "P3"}},
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(ready).To(HaveLen(3))
				Expect(ready["D3"]).To(Equal(common.ReadyDownload{EntityID: "B1", URL: "https://dds.cr.usgs.gov/dl/B1"}))
				Expect(fake.Calls("download-request")).To(Equal(2))
			})
		})

		Context("With a download never becoming ready", func() {
			BeforeEach(func() {
				fake.retrieveBatches = [][]availableDownload{
					{{DownloadID: "D1", EntityID: "A1", URL: "https://dds.cr.usgs.gov/dl/A1"}},
				}
				c.RetrieveMaxAttempts = 3
			})

			It("should give up after the configured number of polls", func() {
				_, err := c.DownloadURLs(ctx, scenesToDownload)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("still preparing"))
			})
		})

		Context("With a single candidate ready after one wait", func() {
			BeforeEach(func() {
				fake.datasets["WORLDVIEW-1"] = []map[string]string{
					{"datasetAlias": "wv1", "collectionName": "WorldView-1"},
				}
				fake.scenes["wv1"] = []string{"A1"}
				fake.options["wv1"] = []map[string]interface{}{
					{"entityId": "A1", "id": "P1", "available": true},
				}
				fake.retrieveBatches = [][]availableDownload{
					{},
					{{DownloadID: "D1", EntityID: "A1", URL: "https://dds.cr.usgs.gov/dl/A1"}},
				}
			})

			It("should run the whole discovery pipeline", func() {
				datasets, err := c.Datasets(ctx, []string{"WORLDVIEW-1"}, spatial, temporal)
				Expect(err).NotTo(HaveOccurred())
				scenes, err := c.Scenes(ctx, datasets, spatial, temporal)
				Expect(err).NotTo(HaveOccurred())
				ready, err := c.DownloadURLs(ctx, scenes)
				Expect(err).NotTo(HaveOccurred())
				Expect(ready).To(Equal(common.ReadyDownloads{
					"D1": {EntityID: "A1", URL: "https://dds.cr.usgs.gov/dl/A1"},
				}))
				Expect(fake.Calls("download-retrieve")).To(Equal(2))
			})
		})

		Context("With a cancelled context", func() {
			BeforeEach(func() {
				fake.retrieveBatches = [][]availableDownload{{}}
				c.RetrieveWait = time.Minute
			})

			It("should stop waiting", func() {
				cctx, cancel := context.WithCancel(ctx)
				cancel()
				_, err := c.DownloadURLs(cctx, scenesToDownload)
				Expect(err).To(MatchError(context.Canceled))
			})
		})
	})
})
