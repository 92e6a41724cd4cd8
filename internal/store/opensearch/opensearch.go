// Package opensearch adapts the elastic driver for OpenSearch clusters.
// The HTTP surface this module relies on is wire-compatible between the two
// backends, so the driver is a thin wrapper that exists to keep the driver
// selection explicit in configuration and logs.
package opensearch

import (
	"github.com/kailas-cloud/matchdex/internal/store"
	"github.com/kailas-cloud/matchdex/internal/store/elastic"
)

var _ store.Store = (*Store)(nil)

// Config mirrors the elastic driver configuration.
type Config = elastic.Config

// Store implements store.Store against an OpenSearch cluster.
type Store struct {
	*elastic.Store
}

// NewStore creates a connected OpenSearch client.
func NewStore(cfg Config) (*Store, error) {
	inner, err := elastic.NewStore(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Store: inner}, nil
}
