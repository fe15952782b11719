package regiondata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"wasco/mapcore/internal/sqlcgen"
)

// Archive is the subset of sqlcgen.Queries used by ArchiveFetcher.
type Archive interface {
	GetRegionDetail(ctx context.Context, scenarioKey string) (sqlcgen.RegionDetail, error)
	UpsertRegionDetail(ctx context.Context, arg sqlcgen.UpsertRegionDetailParams) error
}

// ArchiveFetcher reads through a Postgres archive of payloads. Archive
// errors are logged and never fail a fetch.
type ArchiveFetcher struct {
	archive  Archive
	upstream Fetcher
	log      zerolog.Logger
	now      func() time.Time
}

func NewArchiveFetcher(archive Archive, upstream Fetcher, log zerolog.Logger) *ArchiveFetcher {
	return &ArchiveFetcher{
		archive:  archive,
		upstream: upstream,
		log:      log,
		now:      time.Now,
	}
}

func (f *ArchiveFetcher) Fetch(ctx context.Context, req Request) (*Payload, error) {
	if p, ok := f.lookup(ctx, req); ok {
		return p, nil
	}
	return f.Refresh(ctx, req)
}

// Refresh fetches req upstream and stores a non-empty result in the
// archive, bypassing any archived copy.
func (f *ArchiveFetcher) Refresh(ctx context.Context, req Request) (*Payload, error) {
	if f.upstream == nil {
		return nil, errors.New("no upstream region detail fetcher configured")
	}
	p, err := f.upstream.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if !p.Empty() {
		f.store(ctx, req, p)
	}
	return p, nil
}

func (f *ArchiveFetcher) lookup(ctx context.Context, req Request) (*Payload, bool) {
	if f.archive == nil {
		return nil, false
	}
	key := req.Key().String()
	row, err := f.archive.GetRegionDetail(ctx, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		f.log.Warn().Err(err).Str("scenario_key", key).Msg("region archive read failed")
		return nil, false
	}
	var p Payload
	if err := json.Unmarshal(row.Payload, &p); err != nil {
		f.log.Warn().Err(err).Str("scenario_key", key).Msg("region archive payload undecodable")
		return nil, false
	}
	if p.Empty() {
		return nil, false
	}
	return &p, true
}

func (f *ArchiveFetcher) store(ctx context.Context, req Request, p *Payload) {
	if f.archive == nil {
		return
	}
	key := req.Key()
	if err := f.put(ctx, req, p); err != nil {
		f.log.Warn().Err(err).Str("scenario_key", key.String()).Msg("region archive write failed")
	}
}

func (f *ArchiveFetcher) put(ctx context.Context, req Request, p *Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, sid, _, err := req.Key().Split()
	if err != nil {
		return err
	}
	return f.archive.UpsertRegionDetail(ctx, sqlcgen.UpsertRegionDetailParams{
		ScenarioKey: req.Key().String(),
		RegionID:    int32(req.RegionID),
		ScenarioID:  sid,
		Payload:     body,
		FetchedAt:   f.now().UTC(),
	})
}
