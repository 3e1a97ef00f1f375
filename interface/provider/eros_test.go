package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/avalanchegeo/eros-ingester/common"
)

func newArchiveServer(t *testing.T, fileName string, content []byte) (*httptest.Server, *int) {
	t.Helper()
	transfers := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fileName != "" {
			w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
		}
		if r.Method == http.MethodGet {
			transfers++
		}
		w.Write(content)
	}))
	t.Cleanup(srv.Close)
	return srv, &transfers
}

func TestDownload(t *testing.T) {
	content := []byte("zip content")
	srv, transfers := newArchiveServer(t, "", content)
	dir := t.TempDir()

	ip := NewErosImageProvider(nil)
	local, err := ip.Download(context.Background(), common.ReadyDownload{EntityID: "A1", URL: srv.URL + "/dl/1"}, dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(local) != "A1.zip" {
		t.Errorf("expecting A1.zip, found %s", filepath.Base(local))
	}
	got, err := os.ReadFile(local)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Errorf("wrong content: %q", got)
	}
	if *transfers != 1 {
		t.Errorf("expecting 1 transfer, found %d", *transfers)
	}
}

func TestDownloadSkipsExistingFile(t *testing.T) {
	srv, transfers := newArchiveServer(t, "", []byte("zip content"))
	dir := t.TempDir()

	ip := NewErosImageProvider(nil)
	dl := common.ReadyDownload{EntityID: "A1", URL: srv.URL + "/dl/1"}
	if _, err := ip.Download(context.Background(), dl, dir); err != nil {
		t.Fatal(err)
	}
	// The second call must not transfer anything
	if _, err := ip.Download(context.Background(), dl, dir); err != nil {
		t.Fatal(err)
	}
	if *transfers != 1 {
		t.Errorf("expecting 1 transfer, found %d", *transfers)
	}
}

func TestDownloadContentDispositionName(t *testing.T) {
	srv, _ := newArchiveServer(t, "WV04_ORDER_123.zip", []byte("zip content"))
	dir := t.TempDir()

	ip := NewErosImageProvider(nil)
	local, err := ip.Download(context.Background(), common.ReadyDownload{EntityID: "A1", URL: srv.URL + "/dl/1"}, dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(local) != "WV04_ORDER_123.zip" {
		t.Errorf("expecting the Content-Disposition name, found %s", filepath.Base(local))
	}
}

func TestFileNameFromHeader(t *testing.T) {
	if name := fileNameFromHeader(`attachment; filename="scene.zip"`); name != "scene.zip" {
		t.Errorf("expecting scene.zip, found %q", name)
	}
	if name := fileNameFromHeader(`attachment; filename="../../etc/scene.zip"`); name != "scene.zip" {
		t.Errorf("expecting the path to be stripped, found %q", name)
	}
	if name := fileNameFromHeader("attachment"); name != "" {
		t.Errorf("expecting no name, found %q", name)
	}
	if name := fileNameFromHeader(""); name != "" {
		t.Errorf("expecting no name, found %q", name)
	}
}
