package provider

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/avalanchegeo/eros-ingester/common"
	"github.com/avalanchegeo/eros-ingester/service/log"
	"github.com/cavaliercoder/grab"
)

// ErosImageProvider implements ImageProvider for the URLs returned by the EROS
// download-retrieve operation. The URLs are pre-authorized: no auth header is needed.
type ErosImageProvider struct {
	httpClient *http.Client
}

// NewErosImageProvider creates a new ImageProvider for EROS ready-download URLs
func NewErosImageProvider(httpClient *http.Client) *ErosImageProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ErosImageProvider{httpClient: httpClient}
}

// Name implements ImageProvider
func (ip *ErosImageProvider) Name() string {
	return "EROS"
}

// Download implements ImageProvider.
// A HEAD request reports the expected size (logging only, not verified) and may
// override the file name through Content-Disposition. If the resolved file
// already exists in localDir, the download is skipped entirely: the data
// directory is the cross-run skip list (existence only, no checksum).
func (ip *ErosImageProvider) Download(ctx context.Context, dl common.ReadyDownload, localDir string) (string, error) {
	fileName := common.ArchiveFileName(dl.EntityID)
	size := int64(-1)
	if head, err := ip.head(ctx, dl.URL); err != nil {
		log.Logger(ctx).Sugar().Debugf("HEAD %s: %v", dl.URL, err)
	} else {
		size = head.ContentLength
		if name := fileNameFromHeader(head.Header.Get("Content-Disposition")); name != "" {
			fileName = name
		}
	}

	localFile := filepath.Join(localDir, fileName)
	if _, err := os.Stat(localFile); err == nil {
		log.Logger(ctx).Sugar().Infof("%s already exists, skipping", fileName)
		return localFile, nil
	}

	req, err := grab.NewRequest(localFile, dl.URL)
	if err != nil {
		return "", fmt.Errorf("ErosImageProvider.NewRequest: %w", err)
	}
	req = req.WithContext(ctx)
	if err := download(ctx, req, ip.Name()+":"+dl.EntityID); err != nil {
		return "", fmt.Errorf("ErosImageProvider.%w", err)
	}

	log.Logger(ctx).Sugar().Infof("%s was downloaded (size=%s)", fileName, fmtBytes(size))
	return localFile, nil
}

func (ip *ErosImageProvider) head(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := ip.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return resp, nil
}

// fileNameFromHeader extracts the file name of a Content-Disposition header, if any
func fileNameFromHeader(contentDisposition string) string {
	if contentDisposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil || params["filename"] == "" {
		return ""
	}
	return filepath.Base(params["filename"])
}
