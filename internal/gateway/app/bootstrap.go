package app

import (
	"context"
	"fmt"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"perceptkit/internal/gateway/config"
	"perceptkit/internal/meaning"
)

// bootstrap ingests the configured artifact catalog: the experience page,
// each listed source URL, then the object-storage catalog if one is
// configured. Source failures are logged and skipped here; a broken
// source must not keep the gateway from serving the rest of the catalog.
func bootstrap(ctx context.Context, cfg *config.Config, maker *meaning.Maker) error {
	if err := maker.Init(ctx); err != nil {
		log.Printf("bootstrap: page %s failed: %v", cfg.PageURL, err)
	}
	for _, src := range cfg.ArtifactSources {
		n, err := maker.LoadArtifactsFromURL(ctx, src)
		if err != nil {
			log.Printf("bootstrap: source %s failed: %v", src, err)
			continue
		}
		log.Printf("bootstrap: source %s indexed %d targets", src, n)
	}
	if !cfg.Catalog.Enabled {
		return nil
	}
	client, err := newCatalogClient(cfg.Catalog)
	if err != nil {
		return err
	}
	n, err := maker.LoadArtifactsFromBucket(ctx, client, cfg.Catalog.Bucket, cfg.Catalog.Prefix)
	if err != nil {
		log.Printf("bootstrap: catalog bucket %s failed: %v", cfg.Catalog.Bucket, err)
		return nil
	}
	log.Printf("bootstrap: catalog bucket %s indexed %d targets", cfg.Catalog.Bucket, n)
	return nil
}

func newCatalogClient(cfg config.CatalogConfig) (*minio.Client, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("catalog access key and secret key are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init catalog client: %w", err)
	}
	return client, nil
}
