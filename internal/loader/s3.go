package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"

	"perceptkit/internal/artifact"
)

// FromBucket decodes every .json/.jsonld object under prefix in bucket.
// Deployments keep their artifact catalog in object storage and ingest it
// at gateway startup. Object-listing errors and unreadable objects fail
// the whole load; malformed JSON-LD inside an object degrades to zero
// artifacts per the decoder contract.
func (l *Loader) FromBucket(ctx context.Context, client *minio.Client, bucket, prefix string) ([]*artifact.Artifact, error) {
	var out []*artifact.Artifact
	opts := minio.ListObjectsOptions{Prefix: strings.TrimSpace(prefix), Recursive: true}
	for object := range client.ListObjects(ctx, bucket, opts) {
		if object.Err != nil {
			return nil, fmt.Errorf("list %s: %w", bucket, object.Err)
		}
		if !strings.HasSuffix(object.Key, ".json") && !strings.HasSuffix(object.Key, ".jsonld") {
			continue
		}
		arts, err := l.fromObject(ctx, client, bucket, object.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, arts...)
	}
	return out, nil
}

func (l *Loader) fromObject(ctx context.Context, client *minio.Client, bucket, key string) ([]*artifact.Artifact, error) {
	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()
	raw, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", bucket, key, err)
	}
	var node any
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("parse %s/%s: %w", bucket, key, err)
	}
	return artifact.Decode(node), nil
}
