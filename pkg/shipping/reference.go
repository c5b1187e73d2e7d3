package shipping

import (
	"context"

	"github.com/tournevent/shipping/pkg/cache"
	"github.com/tournevent/shipping/pkg/yalidine"
	"go.uber.org/zap"
)

const (
	provincesKey = "wilayas"
	communesKey  = "communes"
	centersKey   = "centers"
)

// cached serves key from the cache, or fetches it with retry. Concurrent
// misses for the same key share one carrier call. The shared call outlives
// any single caller: each caller stops waiting when its own ctx is done,
// and the call itself is bounded by the retry policy's attempt timeout.
func cached[T any](ctx context.Context, s *Service, operation, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := s.ready(); err != nil {
		return zero, s.fail(ctx, operation, err)
	}
	if v, ok := cache.GetJSON[T](ctx, s.cache, key); ok {
		s.succeed(operation)
		return v, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := s.lookups.DoChan(key, func() (any, error) {
		if v, ok := cache.PeekJSON[T](shared, s.cache, key); ok {
			return v, nil
		}
		v, err := withRetry(shared, s, operation, fetch)
		if err != nil {
			return nil, err
		}
		s.store(shared, key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, s.fail(ctx, operation, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return zero, s.fail(ctx, operation, res.Err)
		}
		if res.Shared {
			s.logger.Ctx(ctx).Debug("Shared in-flight carrier lookup", zap.String("cache_key", key))
		}
		s.succeed(operation)
		return res.Val.(T), nil
	}
}

func (s *Service) store(ctx context.Context, key string, v any) {
	if err := cache.SetJSON(ctx, s.cache, key, v); err != nil {
		s.logger.Ctx(ctx).Warn("Failed to store cache entry", zap.String("cache_key", key), zap.Error(err))
	}
}

// Provinces lists the wilayas served by the carrier.
func (s *Service) Provinces(ctx context.Context) ([]Province, error) {
	return cached(ctx, s, "provinces", provincesKey, s.fetchProvinces)
}

// Communes lists the communes of a province. provinceID 0 lists all.
func (s *Service) Communes(ctx context.Context, provinceID int) ([]Commune, error) {
	if provinceID < 0 {
		return nil, s.fail(ctx, "communes", NewError(KindValidation, "must be a province id").WithField("provinceId"))
	}
	return cached(ctx, s, "communes", cache.IntKey(communesKey, "wilaya_id", provinceID),
		func(ctx context.Context) ([]Commune, error) { return s.fetchCommunes(ctx, provinceID) })
}

// PickupCenters lists the stop desks of a province. provinceID 0 lists all.
func (s *Service) PickupCenters(ctx context.Context, provinceID int) ([]PickupCenter, error) {
	if provinceID < 0 {
		return nil, s.fail(ctx, "pickup_centers", NewError(KindValidation, "must be a province id").WithField("provinceId"))
	}
	return cached(ctx, s, "pickup_centers", cache.IntKey(centersKey, "wilaya_id", provinceID),
		func(ctx context.Context) ([]PickupCenter, error) { return s.fetchCenters(ctx, provinceID) })
}

// RefreshReference fetches provinces, communes and pickup centers and
// overwrites their cache entries, one carrier call per list. Per-province
// entries are filled from the full lists.
func (s *Service) RefreshReference(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "shipping.RefreshReference")
	defer span.End()

	if err := s.ready(); err != nil {
		return s.fail(ctx, "refresh_reference", err)
	}

	provinces, err := withRetry(ctx, s, "refresh_reference", s.fetchProvinces)
	if err != nil {
		return s.fail(ctx, "refresh_reference", err)
	}
	communes, err := withRetry(ctx, s, "refresh_reference", func(ctx context.Context) ([]Commune, error) {
		return s.fetchCommunes(ctx, 0)
	})
	if err != nil {
		return s.fail(ctx, "refresh_reference", err)
	}
	centers, err := withRetry(ctx, s, "refresh_reference", func(ctx context.Context) ([]PickupCenter, error) {
		return s.fetchCenters(ctx, 0)
	})
	if err != nil {
		return s.fail(ctx, "refresh_reference", err)
	}

	communesBy := make(map[int][]Commune, len(provinces))
	for _, c := range communes {
		communesBy[c.ProvinceID] = append(communesBy[c.ProvinceID], c)
	}
	centersBy := make(map[int][]PickupCenter, len(provinces))
	for _, c := range centers {
		centersBy[c.ProvinceID] = append(centersBy[c.ProvinceID], c)
	}

	s.store(ctx, provincesKey, provinces)
	s.store(ctx, cache.IntKey(communesKey, "wilaya_id", 0), communes)
	s.store(ctx, cache.IntKey(centersKey, "wilaya_id", 0), centers)
	for _, p := range provinces {
		s.store(ctx, cache.IntKey(communesKey, "wilaya_id", p.ID), nonNil(communesBy[p.ID]))
		s.store(ctx, cache.IntKey(centersKey, "wilaya_id", p.ID), nonNil(centersBy[p.ID]))
	}

	s.logger.Ctx(ctx).Info("Reference data refreshed",
		zap.Int("provinces", len(provinces)),
		zap.Int("communes", len(communes)),
		zap.Int("centers", len(centers)),
	)
	s.succeed("refresh_reference")
	return nil
}

// findCenter looks a stop desk up in the cached center list.
func (s *Service) findCenter(ctx context.Context, centerID int) (PickupCenter, bool, error) {
	centers, err := s.PickupCenters(ctx, 0)
	if err != nil {
		return PickupCenter{}, false, err
	}
	for _, c := range centers {
		if c.CenterID == centerID {
			return c, true, nil
		}
	}
	return PickupCenter{}, false, nil
}

func (s *Service) fetchProvinces(ctx context.Context) ([]Province, error) {
	wilayas, err := s.api.Wilayas(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Province, 0, len(wilayas))
	for _, w := range wilayas {
		out = append(out, provinceFromAPI(w))
	}
	return out, nil
}

func (s *Service) fetchCommunes(ctx context.Context, provinceID int) ([]Commune, error) {
	communes, err := s.api.Communes(ctx, provinceID)
	if err != nil {
		return nil, err
	}
	out := make([]Commune, 0, len(communes))
	for _, c := range communes {
		out = append(out, communeFromAPI(c))
	}
	return out, nil
}

func (s *Service) fetchCenters(ctx context.Context, provinceID int) ([]PickupCenter, error) {
	centers, err := s.api.Centers(ctx, provinceID)
	if err != nil {
		return nil, err
	}
	out := make([]PickupCenter, 0, len(centers))
	for _, c := range centers {
		out = append(out, centerFromAPI(c))
	}
	return out, nil
}

func provinceFromAPI(w yalidine.Wilaya) Province {
	return Province{
		ID:            w.ID,
		Name:          w.Name,
		Zone:          string(w.Zone),
		IsDeliverable: bool(w.IsDeliverable),
	}
}

func communeFromAPI(c yalidine.Commune) Commune {
	return Commune{
		ID:            c.ID,
		Name:          c.Name,
		ProvinceID:    c.WilayaID,
		ProvinceName:  c.WilayaName,
		HasStopDesk:   bool(c.HasStopDesk),
		IsDeliverable: bool(c.IsDeliverable),
	}
}

func centerFromAPI(c yalidine.Center) PickupCenter {
	return PickupCenter{
		CenterID:     c.CenterID,
		Name:         c.Name,
		Address:      c.Address,
		ProvinceID:   c.WilayaID,
		ProvinceName: c.WilayaName,
		CommuneID:    c.CommuneID,
		CommuneName:  c.CommuneName,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
