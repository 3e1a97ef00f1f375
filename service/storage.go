package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	gstorage "cloud.google.com/go/storage"
)

// Storage exports downloaded archives to a destination
type Storage interface {
	// SaveArchive copies localFile to the storage and returns the destination uri
	SaveArchive(ctx context.Context, localFile string) (string, error)
}

// NewStorageStrategy creates the Storage for the given uri.
// "gs://bucket/prefix" exports to Google Cloud Storage, anything else is
// treated as a local directory.
func NewStorageStrategy(ctx context.Context, storageURI string) (Storage, error) {
	if strings.HasPrefix(storageURI, "gs://") {
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("NewStorageStrategy.%w", err)
		}
		trimmed := strings.TrimPrefix(storageURI, "gs://")
		bucket, prefix, _ := strings.Cut(trimmed, "/")
		if bucket == "" {
			return nil, fmt.Errorf("NewStorageStrategy: missing bucket in %s", storageURI)
		}
		return gsStorage{client: client, bucket: bucket, prefix: prefix}, nil
	}
	if err := os.MkdirAll(storageURI, 0766); err != nil {
		return nil, fmt.Errorf("NewStorageStrategy.%w", err)
	}
	return localStorage{dir: storageURI}, nil
}

type localStorage struct {
	dir string
}

func (s localStorage) SaveArchive(ctx context.Context, localFile string) (string, error) {
	src, err := os.Open(localFile)
	if err != nil {
		return "", fmt.Errorf("SaveArchive.%w", err)
	}
	defer src.Close()

	dstFile := filepath.Join(s.dir, filepath.Base(localFile))
	dst, err := os.Create(dstFile)
	if err != nil {
		return "", fmt.Errorf("SaveArchive.%w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("SaveArchive.%w", err)
	}
	return dstFile, nil
}

type gsStorage struct {
	client *gstorage.Client
	bucket string
	prefix string
}

func (s gsStorage) SaveArchive(ctx context.Context, localFile string) (string, error) {
	src, err := os.Open(localFile)
	if err != nil {
		return "", fmt.Errorf("SaveArchive.%w", err)
	}
	defer src.Close()

	object := path.Join(s.prefix, filepath.Base(localFile))
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return "", MakeTemporary(fmt.Errorf("SaveArchive.%w", err))
	}
	if err := w.Close(); err != nil {
		return "", MakeTemporary(fmt.Errorf("SaveArchive.%w", err))
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, object), nil
}
