// Package meaning wires loader, stores and dealer into the facade the
// host talks to, and adds the side-loading policy for markers whose value
// is itself a URL.
package meaning

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/minio/minio-go/v7"

	"perceptkit/internal/artifact"
	"perceptkit/internal/dealer"
	"perceptkit/internal/loader"
	"perceptkit/internal/store"
)

// OriginPolicy decides whether artifacts may be side-loaded from a URL.
type OriginPolicy func(*url.URL) bool

// SameOrigin allows only URLs sharing scheme and host with page.
func SameOrigin(page *url.URL) OriginPolicy {
	return func(u *url.URL) bool {
		if page == nil || u == nil {
			return false
		}
		return strings.EqualFold(u.Scheme, page.Scheme) && strings.EqualFold(u.Host, page.Host)
	}
}

// AllowOrigins allows URLs whose origin appears in the list. Entries are
// "scheme://host[:port]".
func AllowOrigins(origins []string) OriginPolicy {
	normalized := make([]string, 0, len(origins))
	for _, o := range origins {
		normalized = append(normalized, strings.TrimRight(strings.TrimSpace(o), "/"))
	}
	return func(u *url.URL) bool {
		if u == nil {
			return false
		}
		origin := u.Scheme + "://" + u.Host
		for _, allowed := range normalized {
			if strings.EqualFold(origin, allowed) {
				return true
			}
		}
		return false
	}
}

// Config carries everything the facade needs explicitly; there is no
// ambient "current page". Hosts state where they run.
type Config struct {
	// PageURL is the document whose declared artifacts Init loads. It is
	// also the anchor for the default same-origin side-load policy.
	PageURL string

	// AllowedOrigins extends the default policy with extra origins
	// side-loads may fetch from.
	AllowedOrigins []string

	Client *http.Client

	// VisitedCacheSize bounds the cache of already side-loaded URLs.
	// Zero means the default.
	VisitedCacheSize int
}

const defaultVisitedCacheSize = 1024

type Maker struct {
	loader  *loader.Loader
	local   *store.LocalStore
	dealer  *dealer.Dealer
	page    *url.URL
	policy  OriginPolicy
	visited *lru.Cache[string, struct{}]
}

// New builds a Maker around one local store plus any extra stores (a
// shared Postgres catalog, for instance).
func New(cfg Config, extra ...store.Store) (*Maker, error) {
	var page *url.URL
	if raw := strings.TrimSpace(cfg.PageURL); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse page url: %w", err)
		}
		page = parsed
	}

	size := cfg.VisitedCacheSize
	if size <= 0 {
		size = defaultVisitedCacheSize
	}
	visited, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}

	local := store.NewLocalStore()
	stores := append([]store.Store{local}, extra...)

	m := &Maker{
		loader:  loader.New(cfg.Client),
		local:   local,
		dealer:  dealer.New(stores...),
		page:    page,
		visited: visited,
	}
	m.policy = m.defaultPolicy(cfg.AllowedOrigins)
	return m, nil
}

func (m *Maker) defaultPolicy(allowed []string) OriginPolicy {
	same := SameOrigin(m.page)
	extra := AllowOrigins(allowed)
	return func(u *url.URL) bool {
		return same(u) || (len(allowed) > 0 && extra(u))
	}
}

// Init loads the artifacts declared in the configured page and indexes
// them. Without a configured page there is nothing to bootstrap.
func (m *Maker) Init(ctx context.Context) error {
	if m.page == nil {
		return nil
	}
	arts, err := m.loader.FromHTMLURL(ctx, m.page.String())
	if err != nil {
		return err
	}
	_, err = m.indexAll(ctx, arts)
	return err
}

// LoadArtifactsFromJSONLDURL loads and indexes artifacts from a direct
// JSON endpoint, returning how many targets were indexed.
func (m *Maker) LoadArtifactsFromJSONLDURL(ctx context.Context, rawURL string) (int, error) {
	arts, err := m.loader.FromJSONURL(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	return m.indexAll(ctx, arts)
}

// LoadArtifactsFromURL loads and indexes artifacts from rawURL, branching
// on the response content type: JSON catalogs and HTML documents both
// work. Startup sources go through here.
func (m *Maker) LoadArtifactsFromURL(ctx context.Context, rawURL string) (int, error) {
	arts, err := m.loader.FromURL(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	return m.indexAll(ctx, arts)
}

// LoadArtifactsFromBucket ingests every JSON-LD document under prefix in
// an object-storage catalog bucket.
func (m *Maker) LoadArtifactsFromBucket(ctx context.Context, client *minio.Client, bucket, prefix string) (int, error) {
	arts, err := m.loader.FromBucket(ctx, client, bucket, prefix)
	if err != nil {
		return 0, err
	}
	return m.indexAll(ctx, arts)
}

// LoadArtifactsFromSupportedURLs loads HTML-embedded artifacts from
// rawURL when the origin policy allows it. A nil policy means the
// configured default. A disallowed origin is a silent no-op: this is a
// security boundary, not a failure.
func (m *Maker) LoadArtifactsFromSupportedURLs(ctx context.Context, rawURL string, policy OriginPolicy) (int, error) {
	if policy == nil {
		policy = m.policy
	}
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return 0, nil
	}
	if !policy(u) {
		return 0, nil
	}
	arts, err := m.loader.FromHTMLURL(ctx, u.String())
	if err != nil {
		return 0, err
	}
	return m.indexAll(ctx, arts)
}

// MarkerFound speculatively treats the marker value as an artifact source
// URL before reporting the marker to the dealer. Most marker values are
// not URLs at all, so parse failures are expected and silent; fetch
// failures are logged and isolated; the marker is always reported and
// its delta returned.
func (m *Maker) MarkerFound(ctx context.Context, marker artifact.Marker, policy OriginPolicy) (*artifact.NearbyResultDelta, error) {
	m.sideLoad(ctx, marker.Value, policy)
	return m.dealer.MarkerFound(ctx, marker)
}

func (m *Maker) sideLoad(ctx context.Context, value string, policy OriginPolicy) {
	u, err := url.Parse(value)
	if err != nil || !u.IsAbs() {
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return
	}
	// Re-detections fire on every frame; one attempt per URL, pass or
	// fail, until it ages out of the cache.
	if _, seen := m.visited.Get(u.String()); seen {
		return
	}
	m.visited.Add(u.String(), struct{}{})
	if _, err := m.LoadArtifactsFromSupportedURLs(ctx, u.String(), policy); err != nil {
		log.Printf("side-load %s failed: %v", u, err)
	}
}

func (m *Maker) MarkerLost(ctx context.Context, marker artifact.Marker) (*artifact.NearbyResultDelta, error) {
	return m.dealer.MarkerLost(ctx, marker)
}

func (m *Maker) ImageFound(ctx context.Context, img artifact.DetectedImage) (*artifact.NearbyResultDelta, error) {
	return m.dealer.ImageFound(ctx, img)
}

func (m *Maker) ImageLost(ctx context.Context, img artifact.DetectedImage) (*artifact.NearbyResultDelta, error) {
	return m.dealer.ImageLost(ctx, img)
}

func (m *Maker) UpdateGeolocation(ctx context.Context, geo artifact.GeoCoordinates) (*artifact.NearbyResultDelta, error) {
	return m.dealer.UpdateGeolocation(ctx, geo)
}

func (m *Maker) indexAll(ctx context.Context, arts []*artifact.Artifact) (int, error) {
	total := 0
	for _, a := range arts {
		n, err := m.local.AddArtifact(ctx, a)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
