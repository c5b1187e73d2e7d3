package shipping

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tournevent/shipping/pkg/cache"
	"github.com/tournevent/shipping/pkg/yalidine"
	"go.uber.org/zap"
)

const (
	// DefaultListLimit is the page size when the filter sets none.
	DefaultListLimit = 50
	dateLayout       = "2006-01-02"
)

// CreateShipment validates req and creates one parcel.
func (s *Service) CreateShipment(ctx context.Context, req ShipmentRequest) (*ShipmentRef, error) {
	outcomes, err := s.CreateShipments(ctx, []ShipmentRequest{req})
	if err != nil {
		return nil, err
	}
	if outcomes[0].Err != nil {
		return nil, outcomes[0].Err
	}
	return outcomes[0].Ref, nil
}

// CreateShipments creates a batch of parcels in one carrier call. Requests
// that fail validation are not sent. The returned outcomes follow the order
// of reqs; err is set only when the batch as a whole failed.
func (s *Service) CreateShipments(ctx context.Context, reqs []ShipmentRequest) ([]CreateOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "shipping.CreateShipments")
	defer span.End()

	if err := s.ready(); err != nil {
		return nil, s.fail(ctx, "create_shipment", err)
	}
	if len(reqs) == 0 {
		return nil, s.fail(ctx, "create_shipment", NewError(KindValidation, "no shipments given"))
	}

	outcomes := make([]CreateOutcome, len(reqs))
	parcels := make([]yalidine.ParcelRequest, 0, len(reqs))
	seen := make(map[string]bool, len(reqs))
	for i := range reqs {
		req := reqs[i]
		outcomes[i].OrderID = req.OrderID

		if err := s.validateStruct(&req); err != nil {
			outcomes[i].Err = s.fail(ctx, "create_shipment", err)
			continue
		}
		if seen[req.OrderID] {
			outcomes[i].Err = s.fail(ctx, "create_shipment",
				NewError(KindValidation, "duplicate order id in batch").WithField("orderId"))
			continue
		}
		seen[req.OrderID] = true

		parcel, err := s.parcelRequest(ctx, req)
		if err != nil {
			outcomes[i].Err = s.fail(ctx, "create_shipment", err)
			continue
		}
		parcels = append(parcels, parcel)
	}
	if len(parcels) == 0 {
		return outcomes, nil
	}

	s.logger.Ctx(ctx).Info("Creating Yalidine parcels", zap.Int("count", len(parcels)))
	results, err := withRetry(ctx, s, "create_shipment", func(ctx context.Context) (map[string]yalidine.CreateResult, error) {
		return s.api.CreateParcels(ctx, parcels)
	})
	if err != nil {
		return nil, s.fail(ctx, "create_shipment", err)
	}

	created := 0
	for i := range outcomes {
		if outcomes[i].Err != nil {
			continue
		}
		orderID := outcomes[i].OrderID
		res, ok := results[orderID]
		switch {
		case !ok:
			outcomes[i].Err = s.fail(ctx, "create_shipment",
				NewError(KindBusinessRejection, "carrier returned no result for this order").WithField("orderId"))
		case !res.Success:
			msg := res.Message
			if msg == "" {
				msg = "carrier rejected the parcel"
			}
			outcomes[i].Err = s.fail(ctx, "create_shipment", NewError(KindBusinessRejection, msg))
		default:
			outcomes[i].Ref = &ShipmentRef{
				OrderID:  orderID,
				Tracking: res.Tracking,
				Label:    res.Label,
				ImportID: res.ImportID.Int(),
			}
			created++
			s.succeed("create_shipment")
			s.logger.Ctx(ctx).Info("Parcel created",
				zap.String("order_id", orderID),
				zap.String("tracking", res.Tracking),
			)
		}
	}
	if created > 0 {
		s.invalidateListings()
	}
	return outcomes, nil
}

// parcelRequest builds the carrier body. A pickup request must name a known
// center, which also fills in a destination the caller left out.
func (s *Service) parcelRequest(ctx context.Context, req ShipmentRequest) (yalidine.ParcelRequest, error) {
	from := req.FromProvinceName
	if from == "" {
		from = s.fromProvince
	}
	if from == "" {
		return yalidine.ParcelRequest{}, NewError(KindValidation, "origin province is not set").WithField("fromProvinceName")
	}

	toProvince, toCommune := req.ToProvinceName, req.ToCommuneName
	if req.IsStopDesk {
		center, ok, err := s.findCenter(ctx, req.StopDeskID)
		if err != nil {
			return yalidine.ParcelRequest{}, err
		}
		if !ok {
			return yalidine.ParcelRequest{}, NewError(KindValidation, "unknown pickup center").WithField("stopDeskId")
		}
		if toProvince == "" {
			toProvince = center.ProvinceName
		}
		if toCommune == "" {
			toCommune = center.CommuneName
		}
	}
	if toProvince == "" {
		return yalidine.ParcelRequest{}, NewError(KindValidation, "is required").WithField("toProvinceName")
	}
	if toCommune == "" {
		return yalidine.ParcelRequest{}, NewError(KindValidation, "is required").WithField("toCommuneName")
	}

	p := yalidine.ParcelRequest{
		OrderID:        req.OrderID,
		FromWilayaName: from,
		FirstName:      req.FirstName,
		FamilyName:     req.FamilyName,
		ContactPhone:   req.ContactPhone,
		Address:        req.Address,
		ToCommuneName:  toCommune,
		ToWilayaName:   toProvince,
		ProductList:    req.ProductList,
		Price:          req.Price,
		DoInsurance:    req.DoInsurance,
		DeclaredValue:  req.DeclaredValue,
		Length:         req.Length,
		Width:          req.Width,
		Height:         req.Height,
		Weight:         req.Weight,
		FreeShipping:   req.FreeShipping,
		IsStopDesk:     req.IsStopDesk,
		HasExchange:    req.HasExchange,
	}
	if req.IsStopDesk {
		p.StopDeskID = req.StopDeskID
	}
	if req.HasExchange {
		p.ProductToCollect = req.ProductToCollect
	}
	return p, nil
}

// GetShipment fetches a parcel by tracking code.
func (s *Service) GetShipment(ctx context.Context, tracking string) (*Shipment, error) {
	ctx, span := s.tracer.Start(ctx, "shipping.GetShipment")
	defer span.End()

	if err := s.checkTracking(tracking); err != nil {
		return nil, s.fail(ctx, "get_shipment", err)
	}
	parcel, err := withRetry(ctx, s, "get_shipment", func(ctx context.Context) (*yalidine.Parcel, error) {
		return s.api.Parcel(ctx, tracking)
	})
	if err != nil {
		return nil, s.fail(ctx, "get_shipment", err)
	}
	s.succeed("get_shipment")
	sh := shipmentFromAPI(*parcel)
	return &sh, nil
}

// UpdateShipment applies a partial update to a parcel.
func (s *Service) UpdateShipment(ctx context.Context, tracking string, patch ShipmentPatch) (*Shipment, error) {
	ctx, span := s.tracer.Start(ctx, "shipping.UpdateShipment")
	defer span.End()

	if err := s.checkTracking(tracking); err != nil {
		return nil, s.fail(ctx, "update_shipment", err)
	}
	if err := s.validateStruct(&patch); err != nil {
		return nil, s.fail(ctx, "update_shipment", err)
	}
	body := parcelPatch(patch)
	if body == (yalidine.ParcelPatch{}) {
		return nil, s.fail(ctx, "update_shipment", NewError(KindValidation, "nothing to update"))
	}

	parcel, err := withRetry(ctx, s, "update_shipment", func(ctx context.Context) (*yalidine.Parcel, error) {
		return s.api.UpdateParcel(ctx, tracking, body)
	})
	if err != nil {
		return nil, s.fail(ctx, "update_shipment", err)
	}
	s.invalidateListings()
	s.succeed("update_shipment")
	s.logger.Ctx(ctx).Info("Parcel updated", zap.String("tracking", tracking))
	sh := shipmentFromAPI(*parcel)
	return &sh, nil
}

// DeleteAck acknowledges a parcel deletion.
type DeleteAck struct {
	Tracking string `json:"tracking"`
	Deleted  bool   `json:"deleted"`
}

// DeleteShipment cancels a parcel. The carrier refuses once the parcel has
// left the sender, which is reported as a business rejection.
func (s *Service) DeleteShipment(ctx context.Context, tracking string) (*DeleteAck, error) {
	ctx, span := s.tracer.Start(ctx, "shipping.DeleteShipment")
	defer span.End()

	if err := s.checkTracking(tracking); err != nil {
		return nil, s.fail(ctx, "delete_shipment", err)
	}
	res, err := withRetry(ctx, s, "delete_shipment", func(ctx context.Context) (*yalidine.DeleteResult, error) {
		return s.api.DeleteParcel(ctx, tracking)
	})
	if err != nil {
		return nil, s.fail(ctx, "delete_shipment", err)
	}
	if !res.Deleted {
		return nil, s.fail(ctx, "delete_shipment", NewError(KindBusinessRejection, "parcel can no longer be deleted"))
	}
	s.invalidateListings()
	s.succeed("delete_shipment")
	s.logger.Ctx(ctx).Info("Parcel deleted", zap.String("tracking", tracking))
	return &DeleteAck{Tracking: tracking, Deleted: true}, nil
}

// ListShipments returns the parcels matching f, skipping f.Offset and
// returning at most f.Limit. Results are cached per normalized filter until
// the TTL expires or this service changes a parcel.
func (s *Service) ListShipments(ctx context.Context, f ShipmentFilter) (*ShipmentPage, error) {
	ctx, span := s.tracer.Start(ctx, "shipping.ListShipments")
	defer span.End()

	if err := s.ready(); err != nil {
		return nil, s.fail(ctx, "list_shipments", err)
	}
	if err := s.validateStruct(&f); err != nil {
		return nil, s.fail(ctx, "list_shipments", err)
	}
	query, err := s.listQuery(f)
	if err != nil {
		return nil, s.fail(ctx, "list_shipments", err)
	}
	limit, _ := strconv.Atoi(query.Get("page_size"))
	skip := max(f.Offset, 0) % limit

	keyParams := cloneQuery(query)
	if skip > 0 {
		keyParams.Set("skip", strconv.Itoa(skip))
	}
	key := cache.Key(s.listingPrefix(), keyParams)

	page, err := cached(ctx, s, "list_shipments", key, func(ctx context.Context) (*ShipmentPage, error) {
		return s.fetchWindow(ctx, query, skip, limit)
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// fetchWindow reads the carrier page in query and, when the window starts
// skip rows into it, the page after, then cuts the rows down to limit.
func (s *Service) fetchWindow(ctx context.Context, query url.Values, skip, limit int) (*ShipmentPage, error) {
	p, err := s.api.Parcels(ctx, query)
	if err != nil {
		return nil, err
	}
	rows := append([]yalidine.Parcel(nil), p.Data...)
	hasMore := p.HasMore
	if skip > 0 && p.HasMore {
		next := cloneQuery(query)
		n, _ := strconv.Atoi(query.Get("page"))
		next.Set("page", strconv.Itoa(n+1))
		np, err := s.api.Parcels(ctx, next)
		if err != nil {
			return nil, err
		}
		rows = append(rows, np.Data...)
		hasMore = np.HasMore
	}

	rows = rows[min(skip, len(rows)):]
	if len(rows) > limit {
		rows = rows[:limit]
		hasMore = true
	}
	out := &ShipmentPage{
		Data:       make([]Shipment, 0, len(rows)),
		HasMore:    hasMore,
		TotalCount: p.TotalData,
	}
	for _, parcel := range rows {
		out.Data = append(out.Data, shipmentFromAPI(parcel))
	}
	return out, nil
}

func cloneQuery(q url.Values) url.Values {
	out := make(url.Values, len(q)+1)
	for k, vs := range q {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// listQuery normalizes f and maps it to carrier query parameters.
func (s *Service) listQuery(f ShipmentFilter) (url.Values, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Month != 0 && f.DateFrom == "" && f.DateTo == "" {
		f.DateFrom, f.DateTo = MonthRange(s.now().Year(), time.Month(f.Month))
	}
	for _, d := range []struct{ field, value string }{{"dateFrom", f.DateFrom}, {"dateTo", f.DateTo}} {
		if d.value == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, d.value); err != nil {
			return nil, NewError(KindValidation, "must be a date formatted YYYY-MM-DD").WithField(d.field)
		}
	}

	q := url.Values{}
	q.Set("last_status", f.Status)
	q.Set("from_wilaya_name", f.From)
	q.Set("to_wilaya_name", f.To)
	q.Set("tracking", f.Tracking)
	q.Set("contact_phone", f.CustomerPhone)
	switch {
	case f.DateFrom != "" && f.DateTo != "":
		q.Set("date_creation", f.DateFrom+","+f.DateTo)
	case f.DateFrom != "":
		q.Set("date_creation", f.DateFrom)
	case f.DateTo != "":
		q.Set("date_creation", f.DateTo)
	}
	q.Set("page", strconv.Itoa(f.Offset/f.Limit+1))
	q.Set("page_size", strconv.Itoa(f.Limit))
	for k, vs := range q {
		if len(vs) == 1 && vs[0] == "" {
			q.Del(k)
		}
	}
	return q, nil
}

// MonthRange returns the first and last day of a month as YYYY-MM-DD.
func MonthRange(year int, month time.Month) (from, to string) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format(dateLayout), last.Format(dateLayout)
}

func (s *Service) listingPrefix() string {
	return fmt.Sprintf("parcels:%d", s.generation.Load())
}

// invalidateListings makes cached parcel listings unreachable.
func (s *Service) invalidateListings() {
	s.generation.Add(1)
}

func (s *Service) checkTracking(tracking string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(tracking) == "" {
		return NewError(KindValidation, "is required").WithField("tracking")
	}
	return nil
}

func parcelPatch(p ShipmentPatch) yalidine.ParcelPatch {
	return yalidine.ParcelPatch{
		FirstName:     p.FirstName,
		FamilyName:    p.FamilyName,
		ContactPhone:  p.ContactPhone,
		Address:       p.Address,
		ToCommuneName: p.ToCommuneName,
		ToWilayaName:  p.ToProvinceName,
		ProductList:   p.ProductList,
		Price:         p.Price,
		DoInsurance:   p.DoInsurance,
		DeclaredValue: p.DeclaredValue,
		Length:        p.Length,
		Width:         p.Width,
		Height:        p.Height,
		Weight:        p.Weight,
		FreeShipping:  p.FreeShipping,
		IsStopDesk:    p.IsStopDesk,
		StopDeskID:    p.StopDeskID,
		HasExchange:   p.HasExchange,
	}
}

func shipmentFromAPI(p yalidine.Parcel) Shipment {
	return Shipment{
		Tracking:      p.Tracking,
		OrderID:       p.OrderID,
		Label:         p.Label,
		ImportID:      p.ImportID.Int(),
		FirstName:     p.FirstName,
		FamilyName:    p.FamilyName,
		ContactPhone:  p.ContactPhone,
		Address:       p.Address,
		FromProvince:  p.FromWilayaName,
		ToProvinceID:  p.ToWilayaID.Int(),
		ToProvince:    p.ToWilayaName,
		ToCommuneID:   p.ToCommuneID.Int(),
		ToCommune:     p.ToCommuneName,
		ProductList:   p.ProductList,
		Price:         int(math.Round(p.Price.Float64())),
		DeclaredValue: int(math.Round(p.DeclaredValue.Float64())),
		DeliveryFee:   int(math.Round(p.DeliveryFee.Float64())),
		IsStopDesk:    bool(p.IsStopDesk),
		StopDeskID:    p.StopDeskID.Int(),
		StopDeskName:  p.StopDeskName,
		DoInsurance:   bool(p.DoInsurance),
		FreeShipping:  bool(p.FreeShipping),
		HasExchange:   bool(p.HasExchange),
		Weight:        p.Weight.Float64(),
		CreatedAt:     yalidine.ParseTime(p.DateCreation),
		LastStatusAt:  yalidine.ParseTime(p.DateLastStatus),
		Status:        ParseStatus(p.LastStatus),
		StatusLabel:   p.LastStatus,
	}
}
