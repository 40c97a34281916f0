package oai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jlicht/krikri/internal/domain/record"
	"github.com/jlicht/krikri/internal/harvest"
	"github.com/jlicht/krikri/internal/minter"
)

// Option keys specific to OAI-PMH.
const (
	OptMetadataPrefix = "metadata_prefix"
	OptSet            = "set"
	OptFrom           = "from"
	OptUntil          = "until"
)

// Schema returns the options an OAI harvester accepts.
func Schema() harvest.OptionSchema {
	return harvest.BaseSchema().Merge(harvest.OptionSchema{
		OptMetadataPrefix: {Type: harvest.TypeString, Required: true, Description: "metadata format to request"},
		OptSet:            {Type: harvest.TypeString, Multiple: true, Description: "set spec; repeat to harvest several sets in order"},
		OptFrom:           {Type: harvest.TypeString, Description: "lower datestamp bound"},
		OptUntil:          {Type: harvest.TypeString, Description: "upper datestamp bound"},
	})
}

// Harvester harvests an OAI-PMH repository.
type Harvester struct {
	client *Client
	name   string
	opts   harvest.Options
	minter minter.Minter
	logger *slog.Logger
}

var _ harvest.Harvester = (*Harvester)(nil)

// HarvesterOption customizes a Harvester.
type HarvesterOption func(*Harvester)

// WithMinter replaces the identifier minter.
func WithMinter(m minter.Minter) HarvesterOption {
	return func(h *Harvester) { h.minter = m }
}

// NewHarvester builds a harvester from validated options. Options other
// than uri and name become the defaults of every request.
func NewHarvester(opts harvest.Options, config ClientConfig, logger *slog.Logger, options ...HarvesterOption) (*Harvester, error) {
	if err := Schema().Validate(opts); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	uri, _ := opts.String(harvest.OptURI)
	client, err := NewClient(uri, config, logger)
	if err != nil {
		return nil, err
	}

	defaults := opts.Clone()
	delete(defaults, harvest.OptURI)
	delete(defaults, harvest.OptName)

	h := &Harvester{
		client: client,
		name:   opts.StringOr(harvest.OptName, ""),
		opts:   defaults,
		minter: minter.MD5Minter{},
		logger: logger.With("harvester", "oai", "uri", uri),
	}
	for _, opt := range options {
		opt(h)
	}
	return h, nil
}

// Name returns the provider name ids are minted under.
func (h *Harvester) Name() string {
	return h.name
}

// ExpectedOptions implements harvest.Harvester.
func (h *Harvester) ExpectedOptions() harvest.OptionSchema {
	return Schema()
}

// RecordIDs lazily lists identifiers with ListIdentifiers. No request is
// made until the first call to Next.
func (h *Harvester) RecordIDs(ctx context.Context, opts harvest.Options) harvest.Iterator[string] {
	return perSet(h, opts, func(args ListArgs) harvest.Iterator[string] {
		return harvest.NewPageIterator(ctx, func(ctx context.Context, token string) (harvest.Page[string], error) {
			headers, next, err := h.client.ListIdentifiers(ctx, args, token)
			if err != nil {
				return harvest.Page[string]{}, fmt.Errorf("listing identifiers: %w", err)
			}
			ids := make([]string, 0, len(headers))
			for _, hdr := range headers {
				ids = append(ids, hdr.Identifier)
			}
			return harvest.Page[string]{Items: ids, Next: next}, nil
		})
	})
}

// Records lazily lists records with ListRecords.
func (h *Harvester) Records(ctx context.Context, opts harvest.Options) harvest.Iterator[*record.OriginalRecord] {
	return perSet(h, opts, func(args ListArgs) harvest.Iterator[*record.OriginalRecord] {
		return harvest.NewPageIterator(ctx, func(ctx context.Context, token string) (harvest.Page[*record.OriginalRecord], error) {
			recs, next, err := h.client.ListRecords(ctx, args, token)
			if err != nil {
				return harvest.Page[*record.OriginalRecord]{}, fmt.Errorf("listing records: %w", err)
			}
			out := make([]*record.OriginalRecord, 0, len(recs))
			for _, rec := range recs {
				out = append(out, h.build(rec))
			}
			return harvest.Page[*record.OriginalRecord]{Items: out, Next: next}, nil
		})
	})
}

// GetRecord fetches one record by upstream identifier.
func (h *Harvester) GetRecord(ctx context.Context, id string, opts harvest.Options) (*record.OriginalRecord, error) {
	args := h.args(opts)
	rec, err := h.client.GetRecord(ctx, id, args.MetadataPrefix)
	if err != nil {
		return nil, fmt.Errorf("getting record %s: %w", id, err)
	}
	return h.build(*rec), nil
}

// Count is not answerable without listing every identifier.
func (h *Harvester) Count(context.Context, harvest.Options) (int, error) {
	return 0, harvest.ErrNotSupported
}

// perSet runs one listing per requested set, in order, or a single listing
// when no set is given. Each request receives its own copy of the options.
func perSet[T any](h *Harvester, opts harvest.Options, list func(ListArgs) harvest.Iterator[T]) harvest.Iterator[T] {
	base := h.args(opts)
	sets := h.opts.Merge(opts).Strings(OptSet)
	if len(sets) == 0 {
		return list(base)
	}
	factories := make([]func() harvest.Iterator[T], 0, len(sets))
	for _, set := range sets {
		args := base
		args.Set = set
		factories = append(factories, func() harvest.Iterator[T] { return list(args) })
	}
	return harvest.Concat(factories...)
}

func (h *Harvester) args(opts harvest.Options) ListArgs {
	merged := h.opts.Merge(opts)
	return ListArgs{
		MetadataPrefix: merged.StringOr(OptMetadataPrefix, ""),
		From:           merged.StringOr(OptFrom, ""),
		Until:          merged.StringOr(OptUntil, ""),
	}
}

func (h *Harvester) build(rec Record) *record.OriginalRecord {
	parsed := record.New()
	if !rec.Metadata.Empty() {
		var err error
		parsed, err = ParseMetadata(rec.Metadata.Inner)
		if err != nil {
			h.logger.Warn("unparseable metadata kept verbatim", "identifier", rec.Header.Identifier, "error", err)
			parsed = record.New()
		}
	}
	parsed.SetField("header", record.ValueArray{record.Resource(headerRecord(rec.Header))})

	return &record.OriginalRecord{
		ID:          h.minter.Mint(strings.TrimSpace(rec.Header.Identifier), h.name),
		Provider:    h.name,
		SourceID:    strings.TrimSpace(rec.Header.Identifier),
		Datestamp:   rec.Header.Datestamp,
		SetSpecs:    rec.Header.SetSpecs,
		Deleted:     rec.Header.Deleted(),
		Content:     Payload(rec),
		ContentType: ContentType,
		Record:      parsed,
	}
}
