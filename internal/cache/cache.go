package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/otcheredev/ris-study-browser/internal/models"
)

// Cache stores completed federation rounds keyed by RoundKey. Backed by
// Redis in multi-instance deployments, by process memory otherwise.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context, pattern string) error
}

// ErrCacheMiss is returned when a key is not present or has expired
var ErrCacheMiss = errors.New("cache miss")

// RoundKey derives a cache key for one federation round from the search
// criteria and the set of servers queried. Two rounds with the same criteria
// against the same servers share a key regardless of server order.
func RoundKey(criteria models.SearchCriteria, servers []models.ArchiveServer) string {
	ids := make([]string, 0, len(servers))
	for _, s := range servers {
		ids = append(ids, s.ID.String())
	}
	sort.Strings(ids)

	payload, _ := json.Marshal(struct {
		Criteria models.SearchCriteria `json:"criteria"`
		Servers  []string              `json:"servers"`
	}{criteria, ids})

	sum := sha256.Sum256(payload)
	return "round:" + hex.EncodeToString(sum[:])
}
