// Package storage fans extracted feature rows out to the configured
// storage backends.
package storage

import (
	"context"
	"sync"

	"github.com/arytontediarjo/mpower-analysis/internal/types"
)

// FeatureSink is an interface that provides a few standardized
// methods for various storage backends
type FeatureSink interface {
	StartStorageEngine(context.Context, *sync.WaitGroup) chan<- types.FeatureRow
}
