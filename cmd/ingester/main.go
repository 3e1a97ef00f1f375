package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/araddon/dateparse"
	"github.com/avalanchegeo/eros-ingester/catalog"
	"github.com/avalanchegeo/eros-ingester/common"
	"github.com/avalanchegeo/eros-ingester/downloader"
	"github.com/avalanchegeo/eros-ingester/interface/m2m"
	"github.com/avalanchegeo/eros-ingester/interface/provider"
	"github.com/avalanchegeo/eros-ingester/report"
	"github.com/avalanchegeo/eros-ingester/service"
	"github.com/avalanchegeo/eros-ingester/service/geometry"
	"github.com/avalanchegeo/eros-ingester/service/log"
	"github.com/caarlos0/env/v10"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"
)

type config struct {
	ServiceURL string
	Datasets   []string
	KMLFile    string
	DataDir    string

	DateRange time.Duration
	StartDate time.Time
	EndDate   time.Time

	MaxScenes           int
	Label               string
	RetrieveWait        time.Duration
	RetrieveMaxAttempts int

	Extract    bool
	StorageURI string
	StatusAddr string
	Timeout    time.Duration
	Debug      bool
}

// credentials are never taken from the command line
type credentials struct {
	Username string `env:"EROS_USERNAME,required"`
	Password string `env:"EROS_PASSWORD,required"`
}

func newAppConfig() (*config, error) {
	config := config{}
	// M2M connection
	flag.StringVar(&config.ServiceURL, "service-url", m2m.DefaultServiceURL, "base url of the M2M api")
	datasets := flag.String("datasets", "WORLDVIEW-1,WORLDVIEW-2,WORLDVIEW-3", "dataset names to search, comma-separated")

	// Area and period of interest
	flag.StringVar(&config.KMLFile, "kml", "", "kml file defining the area of interest (required)")
	days := flag.Int("date-range", 14, "number of days before now to search")
	startDate := flag.String("start-date", "", "start of the acquisition period (any common date format, overrides date-range)")
	endDate := flag.String("end-date", "", "end of the acquisition period (requires start-date, defaults to now)")

	// Download behaviour
	flag.StringVar(&config.DataDir, "data-dir", ".", "directory receiving the archives (also the skip list: an existing file is not downloaded again)")
	flag.IntVar(&config.MaxScenes, "max-scenes", catalog.DefaultMaxScenes, "maximum number of scenes per dataset")
	flag.StringVar(&config.Label, "label", catalog.DefaultLabel, "label attached to the download requests")
	flag.DurationVar(&config.RetrieveWait, "retrieve-wait", catalog.DefaultRetrieveWait, "wait between two download-retrieve polls")
	flag.IntVar(&config.RetrieveMaxAttempts, "retrieve-max-attempts", 0, "maximum number of download-retrieve polls (0: no limit)")
	flag.BoolVar(&config.Extract, "extract", false, "extract each archive next to it (the archive is kept)")
	flag.StringVar(&config.StorageURI, "storage-uri", "", "storage uri to export the archives to (currently supported: local, gs) (optional)")

	// Process
	flag.StringVar(&config.StatusAddr, "status-addr", "", "address of the status http server (optional, e.g. :8080)")
	flag.DurationVar(&config.Timeout, "timeout", 0, "global timeout of the run (0: no timeout)")
	flag.BoolVar(&config.Debug, "debug", false, "debug logs")

	flag.Parse()

	if config.KMLFile == "" {
		return nil, fmt.Errorf("missing kml config flag")
	}
	if *datasets == "" {
		return nil, fmt.Errorf("missing datasets config flag")
	}
	config.Datasets = splitNonEmpty(*datasets, ",")
	config.DateRange = time.Duration(*days) * 24 * time.Hour

	var err error
	if *startDate != "" {
		if config.StartDate, err = dateparse.ParseAny(*startDate); err != nil {
			return nil, fmt.Errorf("start-date: %w", err)
		}
		config.EndDate = time.Now()
		if *endDate != "" {
			if config.EndDate, err = dateparse.ParseAny(*endDate); err != nil {
				return nil, fmt.Errorf("end-date: %w", err)
			}
		}
	} else if *endDate != "" {
		return nil, fmt.Errorf("end-date requires start-date")
	}

	return &config, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	err := run(ctx)
	if err != nil {
		log.Fatal("error", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	config, err := newAppConfig()
	if err != nil {
		return err
	}
	log.Init(config.Debug)
	defer log.Sync()

	creds := credentials{}
	if err := env.Parse(&creds); err != nil {
		return fmt.Errorf("credentials: %w", err)
	}

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	runID := uuid.New().String()
	ctx = log.With(ctx, "run", runID)
	rep := report.New(runID)

	// Status server
	if config.StatusAddr != "" {
		headersOk := handlers.AllowedHeaders([]string{"*"})
		originsOk := handlers.AllowedOrigins([]string{"*"})
		methodsOk := handlers.AllowedMethods([]string{"GET", "OPTIONS"})
		s := http.Server{
			Addr:    config.StatusAddr,
			Handler: handlers.CORS(originsOk, headersOk, methodsOk)(rep.NewHandler()),
		}
		go func() {
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Logger(ctx).Fatal("status.ListenAndServe", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cncl := context.WithTimeout(context.Background(), 5*time.Second)
			defer cncl()
			s.Shutdown(sctx)
		}()
	}

	// Area and period of interest
	spatialFilter, err := geometry.SpatialFilterFromKML(config.KMLFile)
	if err != nil {
		return err
	}
	var temporalFilter common.TemporalFilter
	if !config.StartDate.IsZero() {
		temporalFilter = common.NewTemporalFilter(config.StartDate, config.EndDate)
	} else {
		temporalFilter = common.NewTemporalFilterLastDays(time.Now(), int(config.DateRange/(24*time.Hour)))
	}
	log.Logger(ctx).Sugar().Infof("searching %v from %s to %s", config.Datasets, temporalFilter.Start, temporalFilter.End)

	if err := os.MkdirAll(config.DataDir, 0766); err != nil {
		return fmt.Errorf("make directory %s: %w", config.DataDir, err)
	}

	// Storage
	var storage service.Storage
	if config.StorageURI != "" {
		if storage, err = service.NewStorageStrategy(ctx, config.StorageURI); err != nil {
			return fmt.Errorf("storage %s: %w", config.StorageURI, err)
		}
	}

	// M2M connection
	client := m2m.NewClient(config.ServiceURL)
	if err := client.Login(ctx, creds.Username, creds.Password); err != nil {
		return err
	}
	defer func() {
		if err := client.Logout(ctx); err != nil {
			log.Logger(ctx).Sugar().Warnf("logout: %v", err)
		}
	}()

	c := catalog.Catalog{
		Client:              client,
		MaxScenes:           config.MaxScenes,
		Label:               config.Label,
		RetrieveWait:        config.RetrieveWait,
		RetrieveMaxAttempts: config.RetrieveMaxAttempts,
	}

	// Datasets
	rep.SetStage(report.StageDatasets)
	datasets, err := c.Datasets(ctx, config.Datasets, spatialFilter, temporalFilter)
	if err != nil {
		return err
	}
	rep.SetDatasets(len(datasets))
	if len(datasets) == 0 {
		log.Logger(ctx).Info("no dataset matches the search criteria")
		rep.SetStage(report.StageDone)
		return nil
	}

	// Scenes
	rep.SetStage(report.StageScenes)
	scenesToDownload, err := c.Scenes(ctx, datasets, spatialFilter, temporalFilter)
	if err != nil {
		return err
	}
	scenes := 0
	for _, candidates := range scenesToDownload {
		scenes += len(candidates)
	}
	rep.SetScenes(scenes)
	if scenes == 0 {
		log.Logger(ctx).Info("no downloadable scene found")
		rep.SetStage(report.StageDone)
		return nil
	}

	// Downloads
	rep.SetStage(report.StageDownloads)
	readyDownloads, err := c.DownloadURLs(ctx, scenesToDownload)
	if err != nil {
		return err
	}
	rep.SetReady(len(readyDownloads))

	// Fetch
	rep.SetStage(report.StageFetch)
	ip := provider.NewErosImageProvider(nil)
	opts := downloader.Options{DataDir: config.DataDir, Extract: config.Extract, Storage: storage}
	failed := 0
	for _, id := range sortedKeys(readyDownloads) {
		dl := readyDownloads[id]
		err := service.Retriable(ctx, func() error {
			return downloader.ProcessDownload(ctx, ip, dl, opts)
		}, config.RetrieveWait, 3)
		if err != nil {
			log.Logger(ctx).Sugar().Errorf("download %s: %v", dl.EntityID, err)
			rep.AddFailed()
			failed++
			continue
		}
		rep.AddDownloaded()
	}
	rep.SetStage(report.StageDone)

	if failed > 0 {
		return fmt.Errorf("%d/%d downloads failed", failed, len(readyDownloads))
	}
	log.Logger(ctx).Sugar().Infof("%d scenes downloaded to %s", len(readyDownloads), config.DataDir)
	return nil
}

func splitNonEmpty(s, sep string) []string {
	var res []string
	for _, v := range strings.Split(s, sep) {
		if v = strings.TrimSpace(v); v != "" {
			res = append(res, v)
		}
	}
	return res
}

func sortedKeys(m common.ReadyDownloads) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
