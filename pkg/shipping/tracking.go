package shipping

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/tournevent/shipping/pkg/yalidine"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// statsPageSize is the page size used when walking every parcel.
const statsPageSize = 1000

// History returns the status history of a parcel, most recent first.
func (s *Service) History(ctx context.Context, tracking string) ([]StatusEvent, error) {
	ctx, span := s.tracer.Start(ctx, "shipping.History")
	defer span.End()

	if err := s.checkTracking(tracking); err != nil {
		return nil, s.fail(ctx, "history", err)
	}
	events, err := withRetry(ctx, s, "history", func(ctx context.Context) ([]yalidine.HistoryEvent, error) {
		return s.api.History(ctx, tracking)
	})
	if err != nil {
		return nil, s.fail(ctx, "history", err)
	}
	s.succeed("history")
	return historyFromAPI(events), nil
}

// CurrentStatus returns the latest event of a history as returned by
// History. ok is false for an empty history.
func CurrentStatus(history []StatusEvent) (event StatusEvent, ok bool) {
	if len(history) == 0 {
		return StatusEvent{}, false
	}
	return history[0], true
}

// Track returns the history of a parcel with its current status.
func (s *Service) Track(ctx context.Context, tracking string) (*Tracking, error) {
	history, err := s.History(ctx, tracking)
	if err != nil {
		return nil, err
	}
	t := &Tracking{Tracking: tracking, History: history}
	if current, ok := CurrentStatus(history); ok {
		t.Current = &current
	}
	return t, nil
}

// ShipmentStats counts shipments per status bucket. Unrecognized and
// intermediate statuses are left out of the buckets; TotalShipments counts
// every shipment, so the buckets may sum to less than the total.
func ShipmentStats(shipments []Shipment) Stats {
	var st Stats
	for _, sh := range shipments {
		st.add(sh.Status)
	}
	return st
}

func (st *Stats) add(status Status) {
	st.TotalShipments++
	switch status {
	case StatusNotYetShipped:
		st.PasEncoreExpedie++
	case StatusInPreparation:
		st.EnPreparation++
	case StatusAtCenter:
		st.Centre++
	case StatusToProvince:
		st.VersWilaya++
	case StatusOutForDelivery:
		st.SortiEnLivraison++
	case StatusDelivered:
		st.Livre++
	case StatusDeliveryFailed:
		st.EchecLivraison++
	case StatusReturnPendingPickup:
		st.RetourARetirer++
	case StatusReturnedToSender:
		st.RetourneAuVendeur++
	case StatusExchangeFailed:
		st.EchangeEchoue++
	}
}

// FleetStats walks every parcel of the account and returns the histogram.
// The first page is fetched alone to learn the total; the rest are fetched
// concurrently. Without a total the pages are walked in order.
func (s *Service) FleetStats(ctx context.Context) (*Stats, error) {
	ctx, span := s.tracer.Start(ctx, "shipping.FleetStats")
	defer span.End()

	key := s.listingPrefix() + ":stats"
	return cached(ctx, s, "shipment_stats", key, s.fetchFleetStats)
}

func (s *Service) fetchFleetStats(ctx context.Context) (*Stats, error) {
	fetch := func(ctx context.Context, page int) (*yalidine.Page[yalidine.Parcel], error) {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(statsPageSize))
		q.Set("fields", "tracking,last_status")
		return s.api.Parcels(ctx, q)
	}

	first, err := fetch(ctx, 1)
	if err != nil {
		return nil, err
	}
	stats := &Stats{}
	for _, p := range first.Data {
		stats.add(ParseStatus(p.LastStatus))
	}
	if !first.HasMore {
		return stats, nil
	}

	pages := (first.TotalData + statsPageSize - 1) / statsPageSize
	if pages < 2 {
		// No usable total: follow has_more one page at a time.
		pages = 1
		for more := true; more; {
			pages++
			p, err := fetch(ctx, pages)
			if err != nil {
				return nil, err
			}
			for _, parcel := range p.Data {
				stats.add(ParseStatus(parcel.LastStatus))
			}
			more = p.HasMore && len(p.Data) > 0
		}
	} else if err := s.fetchStatsPages(ctx, fetch, pages, stats); err != nil {
		return nil, err
	}
	s.logger.Ctx(ctx).Debug("Fleet stats computed",
		zap.Int("pages", pages),
		zap.Int("total_shipments", stats.TotalShipments),
	)
	return stats, nil
}

// fetchStatsPages adds pages 2..pages to stats, several at a time.
func (s *Service) fetchStatsPages(ctx context.Context, fetch func(context.Context, int) (*yalidine.Page[yalidine.Parcel], error), pages int, stats *Stats) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.statsConcurrency)
	for page := 2; page <= pages; page++ {
		page := page
		g.Go(func() error {
			p, err := fetch(gctx, page)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, parcel := range p.Data {
				stats.add(ParseStatus(parcel.LastStatus))
			}
			return nil
		})
	}
	return g.Wait()
}

func historyFromAPI(events []yalidine.HistoryEvent) []StatusEvent {
	out := make([]StatusEvent, 0, len(events))
	for _, e := range events {
		out = append(out, StatusEvent{
			Tracking:     e.Tracking,
			Status:       ParseStatus(e.Status),
			StatusLabel:  e.Status,
			OccurredAt:   yalidine.ParseTime(e.DateStatus),
			Reason:       e.Reason,
			CenterName:   e.CenterName,
			CommuneName:  e.CommuneName,
			ProvinceName: e.WilayaName,
		})
	}
	// The carrier lists events most recent first; ties keep that order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out
}
