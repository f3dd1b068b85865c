package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"perceptkit/internal/artifact"
)

const (
	kindBarcode = "barcode"
	kindImage   = "image"
)

// PostgresStore is a Store backed by a shared catalog table, for
// deployments where several gateway instances serve one artifact catalog.
// Rows are canonical; the in-process records map exists to honor the
// stable-identity contract: the same target must resolve to the same
// *NearbyResult instance across repeated lookups, or every recompute would
// report it as simultaneously found and lost.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error

	mu      sync.Mutex
	records map[string]*artifact.NearbyResult
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{
		db:      db,
		records: make(map[string]*artifact.NearbyResult),
	}, nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) ensureSchema() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS perception_targets (
    id SERIAL PRIMARY KEY,
    kind TEXT NOT NULL,
    key TEXT NOT NULL,
    media JSONB NOT NULL DEFAULT '[]'::jsonb,
    content JSONB,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    UNIQUE(kind, key)
);
`)
	})
	return s.schemaErr
}

// AddArtifact upserts one row per recognized target. Last write wins on
// (kind, key); the cached record for an overwritten key is dropped so the
// next lookup resolves to the new artifact.
func (s *PostgresStore) AddArtifact(ctx context.Context, a *artifact.Artifact) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("store is nil")
	}
	if a == nil {
		return 0, nil
	}
	if err := s.ensureSchema(); err != nil {
		return 0, err
	}
	content, err := json.Marshal(a.Content)
	if err != nil {
		return 0, fmt.Errorf("encode artifact content: %w", err)
	}
	count := 0
	for _, t := range a.Targets {
		var kind, key string
		media := []byte("[]")
		switch target := t.(type) {
		case artifact.Barcode:
			if strings.TrimSpace(target.Text) == "" {
				continue
			}
			kind, key = kindBarcode, target.Text
		case artifact.ImageTarget:
			if strings.TrimSpace(target.Name) == "" {
				continue
			}
			kind, key = kindImage, target.Name
			if media, err = json.Marshal(target.Media); err != nil {
				return count, fmt.Errorf("encode target media: %w", err)
			}
		default:
			continue
		}
		_, err := s.db.ExecContext(ctx, `
INSERT INTO perception_targets (kind, key, media, content, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (kind, key)
DO UPDATE SET media=EXCLUDED.media, content=EXCLUDED.content, updated_at=EXCLUDED.updated_at
`, kind, key, media, content)
		if err != nil {
			return count, err
		}
		s.mu.Lock()
		delete(s.records, kind+"/"+key)
		s.mu.Unlock()
		count++
	}
	return count, nil
}

func (s *PostgresStore) FindRelevant(ctx context.Context, markers []artifact.Marker, _ artifact.GeoCoordinates, images []artifact.DetectedImage) ([]*artifact.NearbyResult, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	var out []*artifact.NearbyResult
	for _, m := range markers {
		r, err := s.lookup(ctx, kindBarcode, m.Value)
		if err != nil {
			return nil, err
		}
		if r != nil {
			out = append(out, r)
		}
	}
	for _, img := range images {
		r, err := s.lookup(ctx, kindImage, img.ID)
		if err != nil {
			return nil, err
		}
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *PostgresStore) lookup(ctx context.Context, kind, key string) (*artifact.NearbyResult, error) {
	cacheKey := kind + "/" + key
	s.mu.Lock()
	if r, ok := s.records[cacheKey]; ok {
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	var mediaRaw, contentRaw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT media, content FROM perception_targets WHERE kind=$1 AND key=$2`,
		kind, key).Scan(&mediaRaw, &contentRaw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var target artifact.Target
	if kind == kindBarcode {
		target = artifact.Barcode{Text: key}
	} else {
		t := artifact.ImageTarget{Name: key}
		_ = json.Unmarshal(mediaRaw, &t.Media)
		target = t
	}
	var content any
	if len(contentRaw) > 0 {
		_ = json.Unmarshal(contentRaw, &content)
	}
	r := &artifact.NearbyResult{
		Target:   target,
		Artifact: &artifact.Artifact{Targets: []artifact.Target{target}, Content: content},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A concurrent lookup may have cached the row first; keep the winner so
	// identity stays stable.
	if prev, ok := s.records[cacheKey]; ok {
		return prev, nil
	}
	r.ID = uuid.NewString()
	s.records[cacheKey] = r
	return r, nil
}
