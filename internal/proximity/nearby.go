package proximity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/colthorp/proximity-cli/internal/api"
	"github.com/colthorp/proximity-cli/internal/core"
)

// NearbyQuery describes one nearby-place search.
// Zero RadiusMeters and MaxPages use the service defaults.
type NearbyQuery struct {
	Query        string
	Center       Coordinate
	RadiusMeters int
	MaxPages     int
	BypassCache  bool
	SinglePage   bool
	Type         string
}

// stopReason records why a pagination session ended.
type stopReason string

const (
	stopNoToken       stopReason = "no_token"
	stopRepeatedToken stopReason = "repeated_token"
	stopMaxPages      stopReason = "max_pages"
	stopSinglePage    stopReason = "single_page"
	stopCancelled     stopReason = "cancelled"
	stopProviderError stopReason = "provider_error"
)

// Search returns the bucket of places found for q.Query around q.Center.
//
// Unless BypassCache is set, a bucket already present in the amenity store is
// returned without any provider call, even when it is empty.
//
// Otherwise a pagination session runs: the first page is requested without a
// token, and each continuation token is followed until one of these holds:
//
//   - the page carries no token
//   - the token was already followed in this session
//   - MaxPages requests have been issued
//   - SinglePage is set
//   - ctx is cancelled
//
// Each page's places are merged by place id; a place already in the bucket is
// never replaced. The bucket is flushed once when the session ends, including
// when it ends by cancellation (which is not an error) or by a provider error
// (in which case the pages merged before the failing one are kept).
func (s *Service) Search(ctx context.Context, q NearbyQuery) (Bucket, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, eris.New("proximity: empty amenity query")
	}
	if q.RadiusMeters <= 0 {
		q.RadiusMeters = s.opts.RadiusMeters
	}
	if q.MaxPages <= 0 {
		q.MaxPages = s.opts.MaxPages
	}

	if !q.BypassCache {
		if bucket, ok := s.amenities.Get(q.Query); ok {
			return bucket.clone(), nil
		}
	}

	log := zap.L().With(
		zap.String("session", uuid.NewString()),
		zap.String("query", q.Query),
	)
	log.Debug("proximity: search session started",
		zap.String("center", q.Center.String()),
		zap.Int("radius", q.RadiusMeters),
		zap.Int("max_pages", q.MaxPages),
	)
	core.ProgressPrint(fmt.Sprintf("Searching %q around %s…", q.Query, q.Center), s.opts.Quiet)

	var (
		pages    int
		merged   int
		added    int
		token    string
		reason   stopReason
		fatalErr error
	)
	seen := make(map[string]bool)

	for {
		if ctx.Err() != nil {
			reason = stopCancelled
			break
		}
		if pages >= q.MaxPages {
			reason = stopMaxPages
			break
		}

		resp, err := s.transport.NearbySearch(ctx, api.NearbyRequest{
			Query:        q.Query,
			Center:       q.Center.location(),
			RadiusMeters: q.RadiusMeters,
			Type:         q.Type,
			PageToken:    token,
		})
		pages++
		if err != nil {
			if ctx.Err() != nil {
				// The in-flight page is dropped; earlier pages are kept.
				reason = stopCancelled
				break
			}
			reason = stopProviderError
			fatalErr = eris.Wrapf(err, "proximity: search %q page %d", q.Query, pages)
			break
		}

		switch resp.Status {
		case core.StatusOK, core.StatusZeroResults:
		default:
			reason = stopProviderError
			fatalErr = &ProviderError{Op: "nearby search", Status: resp.Status, Message: resp.ErrorMessage}
		}
		if fatalErr != nil {
			break
		}

		n := s.mergePage(q.Query, resp.Results, log)
		merged++
		added += n
		log.Debug("proximity: page merged",
			zap.Int("page", pages),
			zap.Int("results", len(resp.Results)),
			zap.Int("added", n),
		)

		if s.opts.CheckpointPages && n > 0 {
			if err := s.amenities.Flush(context.WithoutCancel(ctx)); err != nil {
				log.Warn("proximity: page checkpoint failed", zap.Error(err))
			}
		}

		next := resp.NextPageToken
		if q.SinglePage {
			reason = stopSinglePage
			break
		}
		if next == "" {
			reason = stopNoToken
			break
		}
		if seen[next] {
			log.Warn("proximity: provider repeated a page token", zap.Int("page", pages))
			reason = stopRepeatedToken
			break
		}
		seen[next] = true
		token = next

		if pages < q.MaxPages {
			if err := sleepCtx(ctx, s.opts.PageTokenDelay); err != nil {
				reason = stopCancelled
				break
			}
		}
	}

	// A session that merged nothing leaves the store as it was, so a query
	// that never got a valid page is not recorded as "queried".
	if merged > 0 {
		if err := s.amenities.Flush(context.WithoutCancel(ctx)); err != nil {
			if fatalErr == nil {
				return nil, err
			}
			log.Error("proximity: flush after failed session", zap.Error(err))
		}
	}

	log.Info("proximity: search session finished",
		zap.String("reason", string(reason)),
		zap.Int("pages", pages),
		zap.Int("added", added),
	)

	if fatalErr != nil {
		return nil, fatalErr
	}
	bucket, ok := s.amenities.Get(q.Query)
	if !ok {
		return Bucket{}, nil
	}
	return bucket.clone(), nil
}

// mergePage folds one page into the query's bucket and returns how many
// places were new. The bucket is replaced rather than mutated so buckets
// already handed out stay unchanged.
func (s *Service) mergePage(query string, results []api.PlaceResult, log *zap.Logger) int {
	records := make([]PlaceRecord, 0, len(results))
	for _, r := range results {
		rec, err := placeFromResult(query, r)
		if err != nil {
			log.Warn("proximity: skipping place", zap.String("place_id", r.PlaceID), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	added := 0
	s.amenities.Merge(query, func(cur Bucket, _ bool) Bucket {
		next := cur.clone()
		for _, rec := range records {
			if _, exists := next[rec.PlaceID]; exists {
				continue
			}
			next[rec.PlaceID] = rec
			added++
		}
		return next
	})
	return added
}

func placeFromResult(query string, r api.PlaceResult) (PlaceRecord, error) {
	if r.PlaceID == "" {
		return PlaceRecord{}, eris.New("missing place_id")
	}
	coord, err := NewCoordinate(r.Geometry.Location.Lat, r.Geometry.Location.Lng)
	if err != nil {
		return PlaceRecord{}, err
	}
	addr := r.FormattedAddress
	if addr == "" {
		addr = r.Vicinity
	}
	return PlaceRecord{
		PlaceID:    r.PlaceID,
		Name:       r.Name,
		Coordinate: coord,
		Address:    addr,
		Rating:     r.Rating,
		Types:      r.Types,
		Amenity:    query,
	}, nil
}

// ResetAmenity removes the bucket for query so the next Search fetches it again.
func (s *Service) ResetAmenity(ctx context.Context, query string) error {
	return s.amenities.Delete(ctx, query)
}

// Amenities lists the queries that have a stored bucket.
func (s *Service) Amenities() []string {
	return s.amenities.Keys()
}

// Bucket returns the stored bucket for query without searching.
func (s *Service) Bucket(query string) (Bucket, bool) {
	b, ok := s.amenities.Get(query)
	if !ok {
		return nil, false
	}
	return b.clone(), true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
