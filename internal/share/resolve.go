package share

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ResolverConfig tunes a Resolver. Zero values fall back to defaults.
type ResolverConfig struct {
	BaseURL    string
	PresignTTL time.Duration
	Now        func() time.Time
}

// Resolver turns a share identifier or share code back into records,
// share links, presigned descriptors or a zip archive. It never writes.
type Resolver struct {
	store      ObjectStore
	records    RecordReader
	baseURL    string
	presignTTL time.Duration
	now        func() time.Time
}

func NewResolver(store ObjectStore, records RecordReader, cfg ResolverConfig) *Resolver {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = DefaultPresignTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Resolver{
		store:      store,
		records:    records,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		presignTTL: cfg.PresignTTL,
		now:        cfg.Now,
	}
}

// Resolve returns the records of a batch after checking existence, expiry
// and, when code is non-empty, the share code, in that order.
func (r *Resolver) Resolve(ctx context.Context, shareID, code string) ([]FileRecord, error) {
	recs, err := r.records.RecordsByShareID(ctx, shareID)
	if err != nil {
		return nil, readErr("records_by_share_id", shareID, err)
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	if recs[0].Expired(r.now()) {
		return nil, ErrExpired
	}
	if code != "" && recs[0].ShareCode != code {
		return nil, ErrInvalidCode
	}
	return recs, nil
}

// ResolveCode maps a share code to the identifier of the batch currently
// holding it. A live batch is preferred over expired ones; ties go to the
// latest expiry, then to the smallest identifier.
func (r *Resolver) ResolveCode(ctx context.Context, code string) (string, error) {
	recs, err := r.records.RecordsByShareCode(ctx, code)
	if err != nil {
		return "", readErr("records_by_share_code", code, err)
	}
	if len(recs) == 0 {
		return "", ErrNotFound
	}

	now := r.now()
	expiry := make(map[string]time.Time, 1)
	for _, rec := range recs {
		if _, ok := expiry[rec.ShareID]; !ok {
			expiry[rec.ShareID] = rec.ExpiresAt
		}
	}

	live := make([]string, 0, len(expiry))
	for id, exp := range expiry {
		if now.Unix() <= exp.Unix() {
			live = append(live, id)
		}
	}
	if len(live) == 0 {
		return "", ErrExpired
	}
	sort.Slice(live, func(i, j int) bool {
		ei, ej := expiry[live[i]], expiry[live[j]]
		if !ei.Equal(ej) {
			return ei.After(ej)
		}
		return live[i] < live[j]
	})
	return live[0], nil
}

// ShareLink returns the link recipients use to download a live batch.
func (r *Resolver) ShareLink(ctx context.Context, shareID string) (string, error) {
	recs, err := r.Resolve(ctx, shareID, "")
	if err != nil {
		return "", err
	}
	return r.LinkFor(shareID, recs[0].ShareCode), nil
}

// LinkFor builds the share link for a known identifier and code.
func (r *Resolver) LinkFor(shareID, code string) string {
	return r.baseURL + "/api/files/download/" + url.PathEscape(shareID) + "?code=" + url.QueryEscape(code)
}

// Descriptors presigns a GET for every object in the batch.
func (r *Resolver) Descriptors(ctx context.Context, shareID, code string) ([]AccessDescriptor, error) {
	recs, err := r.Resolve(ctx, shareID, code)
	if err != nil {
		return nil, err
	}
	out := make([]AccessDescriptor, 0, len(recs))
	for _, rec := range recs {
		u, err := r.store.PresignGet(ctx, rec.ObjectKey, r.presignTTL)
		if err != nil {
			return nil, readErr("presign", rec.ObjectKey, err)
		}
		size, err := r.store.Stat(ctx, rec.ObjectKey)
		if err != nil {
			return nil, readErr("stat", rec.ObjectKey, err)
		}
		out = append(out, AccessDescriptor{Name: rec.FileName, Size: size, URL: u})
	}
	return out, nil
}

// Archive validates the batch and returns an archive ready to stream.
// Validation happens here so callers can still report an error status
// before any bytes are written.
func (r *Resolver) Archive(ctx context.Context, shareID, code string) (*Archive, error) {
	recs, err := r.Resolve(ctx, shareID, code)
	if err != nil {
		return nil, err
	}
	return &Archive{ShareID: shareID, Records: recs, store: r.store, ctx: ctx}, nil
}
