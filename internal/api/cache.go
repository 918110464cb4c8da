package api

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/ppe-go/internal/inspection"
)

const defaultArtifactTTL = 30 * time.Minute

// artifacts holds what the download endpoints serve for a recent inspection.
type artifacts struct {
	report         *inspection.Report
	jpeg           []byte
	detectionsJSON []byte
}

// artifactCache keeps annotated images, which are never persisted, for a
// limited time after an inspection.
type artifactCache struct {
	c *cache.Cache
}

func newArtifactCache(ttl time.Duration) *artifactCache {
	if ttl <= 0 {
		ttl = defaultArtifactTTL
	}
	return &artifactCache{c: cache.New(ttl, 2*ttl)}
}

func (a *artifactCache) put(id string, art *artifacts) {
	a.c.SetDefault(id, art)
}

func (a *artifactCache) get(id string) (*artifacts, bool) {
	v, ok := a.c.Get(id)
	if !ok {
		return nil, false
	}
	art, ok := v.(*artifacts)
	return art, ok
}

// hasImage reports whether an annotated JPEG is cached for id.
func (a *artifactCache) hasImage(id string) bool {
	art, ok := a.get(id)
	return ok && art != nil && art.jpeg != nil
}

func (a *artifactCache) flush() {
	a.c.Flush()
}
