// Package harvest defines the harvester contract shared by every upstream
// protocol: lazy identifier and record sequences, single-record fetch, and
// the option schema a harvester is configured with.
package harvest

import (
	"context"
	"errors"

	"github.com/jlicht/krikri/internal/domain/record"
)

// ErrNotSupported is returned by harvesters for operations their protocol
// cannot answer.
var ErrNotSupported = errors.New("operation not supported by harvester")

// Harvester pulls records from an upstream repository.
type Harvester interface {
	// RecordIDs lazily lists upstream identifiers.
	RecordIDs(ctx context.Context, opts Options) Iterator[string]

	// Records lazily lists upstream records, minted and tagged with the
	// harvester's provider.
	Records(ctx context.Context, opts Options) Iterator[*record.OriginalRecord]

	// GetRecord fetches a single record by upstream identifier.
	GetRecord(ctx context.Context, id string, opts Options) (*record.OriginalRecord, error)

	// Count reports how many records a listing would yield.
	Count(ctx context.Context, opts Options) (int, error)

	// ExpectedOptions describes the options the harvester accepts.
	ExpectedOptions() OptionSchema
}

// Common option keys understood by every harvester.
const (
	OptURI  = "uri"
	OptName = "name"
)

// BaseSchema holds the options every harvester accepts.
func BaseSchema() OptionSchema {
	return OptionSchema{
		OptURI:  {Type: TypeString, Required: true, Description: "endpoint to harvest"},
		OptName: {Type: TypeString, Description: "provider name used to namespace minted ids"},
	}
}
