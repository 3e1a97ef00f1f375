// Package downloader fetches ready downloads to local storage and optionally
// extracts or exports the archives.
package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/avalanchegeo/eros-ingester/common"
	"github.com/avalanchegeo/eros-ingester/interface/provider"
	"github.com/avalanchegeo/eros-ingester/service"
	"github.com/avalanchegeo/eros-ingester/service/log"
	"github.com/mholt/archiver"
)

// Options of a processing run
type Options struct {
	// DataDir receives the archives and is the cross-run skip list
	DataDir string
	// Extract unzips each archive next to it (the zip is kept: its presence
	// is what makes a later run skip the download)
	Extract bool
	// Storage optionally exports each archive (nil to disable)
	Storage service.Storage
}

// ProcessDownload fetches one ready download and applies the extraction and
// export options.
func ProcessDownload(ctx context.Context, ip provider.ImageProvider, dl common.ReadyDownload, opts Options) error {
	localFile, err := ip.Download(ctx, dl, opts.DataDir)
	if err != nil {
		return fmt.Errorf("ProcessDownload[%s].%w", dl.EntityID, err)
	}

	if opts.Extract {
		if err := unarchive(localFile); err != nil {
			return fmt.Errorf("ProcessDownload[%s].%w", dl.EntityID, err)
		}
	}

	if opts.Storage != nil {
		uri, err := opts.Storage.SaveArchive(ctx, localFile)
		if err != nil {
			return fmt.Errorf("ProcessDownload[%s].%w", dl.EntityID, err)
		}
		log.Logger(ctx).Sugar().Infof("exported %s to %s", filepath.Base(localFile), uri)
	}

	return nil
}

// unarchive extracts localZip into a directory named after it, next to it.
// An already-extracted archive is skipped. Extraction errors are temporary.
func unarchive(localZip string) error {
	dstDir := strings.TrimSuffix(localZip, filepath.Ext(localZip))
	if _, err := os.Stat(dstDir); err == nil {
		return nil
	}

	tmpDir, err := os.MkdirTemp(filepath.Dir(localZip), filepath.Base(dstDir))
	if err != nil {
		return service.MakeTemporary(fmt.Errorf("unarchive.MkdirTemp: %w", err))
	}
	defer os.RemoveAll(tmpDir)
	zip := archiver.Zip{OverwriteExisting: true, MkdirAll: true}
	if err := zip.Unarchive(localZip, tmpDir); err != nil {
		return service.MakeTemporary(fmt.Errorf("unarchive.Unarchive: %w", err))
	}
	if err := os.Rename(tmpDir, dstDir); err != nil {
		return service.MakeTemporary(fmt.Errorf("unarchive.Rename: %w", err))
	}
	return nil
}
