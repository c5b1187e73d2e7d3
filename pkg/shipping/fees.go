package shipping

import (
	"context"
	"math"
	"sort"
	"strconv"

	"github.com/tournevent/shipping/pkg/yalidine"
	"go.uber.org/zap"
)

// FeeRules holds the carrier's weight pricing constants.
type FeeRules struct {
	// AllowanceKg is the weight included in the base delivery fee.
	AllowanceKg float64
	// VolumetricDivisor converts cm³ to volumetric kilograms.
	VolumetricDivisor float64
}

// DefaultFeeRules are the carrier's published constants.
var DefaultFeeRules = FeeRules{
	AllowanceKg:       5,
	VolumetricDivisor: 5000,
}

func (r FeeRules) withDefaults() FeeRules {
	if r.AllowanceKg <= 0 {
		r.AllowanceKg = DefaultFeeRules.AllowanceKg
	}
	if r.VolumetricDivisor <= 0 {
		r.VolumetricDivisor = DefaultFeeRules.VolumetricDivisor
	}
	return r
}

// BillableWeight returns max(weight, l*w*h/divisor).
func (r FeeRules) BillableWeight(weight, length, width, height float64) float64 {
	r = r.withDefaults()
	volumetric := length * width * height / r.VolumetricDivisor
	return math.Max(weight, volumetric)
}

// WeightFees returns the oversize surcharge in whole dinars: zero within the
// allowance, otherwise the excess times the per-kg fee.
func (r FeeRules) WeightFees(billable, oversizeFeePerKg float64) int {
	r = r.withDefaults()
	if billable <= r.AllowanceKg || oversizeFeePerKg <= 0 {
		return 0
	}
	return int(math.Round((billable - r.AllowanceKg) * oversizeFeePerKg))
}

// BillableWeight applies DefaultFeeRules.
func BillableWeight(weight, length, width, height float64) float64 {
	return DefaultFeeRules.BillableWeight(weight, length, width, height)
}

// WeightFees applies DefaultFeeRules.
func WeightFees(billable, oversizeFeePerKg float64) int {
	return DefaultFeeRules.WeightFees(billable, oversizeFeePerKg)
}

// CODFee returns the cash-on-delivery fee in whole dinars.
func CODFee(declaredValue int, codPercentage float64) int {
	if declaredValue <= 0 || codPercentage <= 0 {
		return 0
	}
	return int(math.Round(float64(declaredValue) * codPercentage / 100))
}

// FeeTable is the carrier rate table for a province pair.
type FeeTable struct {
	FromProvinceID      int
	ToProvinceID        int
	FromProvinceName    string
	ToProvinceName      string
	Zone                string
	OversizeFeePerKg    float64
	CODPercentage       float64
	InsurancePercentage float64
	ReturnFee           int
	// Communes is sorted by commune id.
	Communes []RateEntry
}

// Rate returns the row for communeID. When the commune has no row, the
// lowest-id commune of the table is returned with Fallback set. ok is false
// only for an empty table.
func (t *FeeTable) Rate(communeID int) (entry RateEntry, ok bool) {
	if len(t.Communes) == 0 {
		return RateEntry{}, false
	}
	i := sort.Search(len(t.Communes), func(i int) bool { return t.Communes[i].CommuneID >= communeID })
	if i < len(t.Communes) && t.Communes[i].CommuneID == communeID {
		return t.Communes[i], true
	}
	entry = t.Communes[0]
	entry.Fallback = true
	return entry, true
}

func feeTableFromAPI(from, to int, resp *yalidine.FeesResponse) *FeeTable {
	t := &FeeTable{
		FromProvinceID:      from,
		ToProvinceID:        to,
		FromProvinceName:    resp.FromWilayaName,
		ToProvinceName:      resp.ToWilayaName,
		Zone:                string(resp.Zone),
		OversizeFeePerKg:    resp.OversizeFee.Float64(),
		CODPercentage:       resp.CODPercentage.Float64(),
		InsurancePercentage: resp.InsurancePercentage.Float64(),
		ReturnFee:           int(math.Round(resp.RetourFee.Float64())),
		Communes:            make([]RateEntry, 0, len(resp.PerCommune)),
	}
	for key, row := range resp.PerCommune {
		id := row.CommuneID
		if id == 0 {
			id, _ = strconv.Atoi(key)
		}
		t.Communes = append(t.Communes, RateEntry{
			FromProvinceName:    t.FromProvinceName,
			ToProvinceName:      t.ToProvinceName,
			CommuneID:           id,
			CommuneName:         row.CommuneName,
			Zone:                t.Zone,
			ExpressHomeFee:      int(math.Round(row.ExpressHome.Float64())),
			ExpressDeskFee:      int(math.Round(row.ExpressDesk.Float64())),
			EconomicHomeFee:     int(math.Round(row.EconomicHome.Float64())),
			EconomicDeskFee:     int(math.Round(row.EconomicDesk.Float64())),
			OversizeFeePerKg:    t.OversizeFeePerKg,
			CODPercentage:       t.CODPercentage,
			InsurancePercentage: t.InsurancePercentage,
			ReturnFee:           t.ReturnFee,
		})
	}
	sort.Slice(t.Communes, func(i, j int) bool { return t.Communes[i].CommuneID < t.Communes[j].CommuneID })
	return t
}

// QuoteRequest is the input of a fee quote.
type QuoteRequest struct {
	FromProvinceID int     `json:"fromProvinceId" validate:"required,gt=0"`
	ToProvinceID   int     `json:"toProvinceId" validate:"required,gt=0"`
	ToCommuneID    int     `json:"toCommuneId,omitempty" validate:"gte=0"`
	Weight         float64 `json:"weight,omitempty" validate:"gte=0"`
	Length         float64 `json:"length,omitempty" validate:"gte=0"`
	Width          float64 `json:"width,omitempty" validate:"gte=0"`
	Height         float64 `json:"height,omitempty" validate:"gte=0"`
	DeclaredValue  int     `json:"declaredValue,omitempty" validate:"gte=0,lte=150000"`
}

// FeePair is the express/economic price for one delivery type.
type FeePair struct {
	Express  int `json:"express"`
	Economic int `json:"economic"`
}

// DeliveryFees is the home/desk × express/economic matrix.
type DeliveryFees struct {
	Home FeePair `json:"home"`
	Desk FeePair `json:"desk"`
}

// FeeQuote is the fee breakdown shown to staff. It is never collapsed into a
// single total.
type FeeQuote struct {
	FromProvinceName    string       `json:"fromProvinceName"`
	ToProvinceName      string       `json:"toProvinceName"`
	ToCommuneName       string       `json:"toCommuneName"`
	Zone                string       `json:"zone"`
	WeightFees          int          `json:"weightFees"`
	CODFees             int          `json:"codFees"`
	DeliveryFees        DeliveryFees `json:"deliveryFees"`
	BillableWeight      float64      `json:"billableWeight"`
	OversizeFee         float64      `json:"oversizeFee"`
	CODPercentage       float64      `json:"codPercentage"`
	InsurancePercentage float64      `json:"insurancePercentage"`
	ReturnFee           int          `json:"returnFee"`
	CommuneFallback     bool         `json:"communeFallback"`
}

// CalculateFees fetches the rate table for a province pair. It issues exactly
// one carrier call; callers that want retries use Quote.
func (s *Service) CalculateFees(ctx context.Context, fromProvinceID, toProvinceID int) (*FeeTable, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if fromProvinceID <= 0 {
		return nil, NewError(KindValidation, "must be a positive province id").WithField("fromProvinceId")
	}
	if toProvinceID <= 0 {
		return nil, NewError(KindValidation, "must be a positive province id").WithField("toProvinceId")
	}
	resp, err := s.api.Fees(ctx, fromProvinceID, toProvinceID)
	if err != nil {
		return nil, classify(err)
	}
	return feeTableFromAPI(fromProvinceID, toProvinceID, resp), nil
}

// Quote computes the fee breakdown for a parcel. The rate table fetch is
// retried on transient failures.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*FeeQuote, error) {
	ctx, span := s.tracer.Start(ctx, "shipping.Quote")
	defer span.End()

	if err := s.ready(); err != nil {
		return nil, s.fail(ctx, "quote", err)
	}
	if err := s.validateStruct(&req); err != nil {
		return nil, s.fail(ctx, "quote", err)
	}

	table, err := withRetry(ctx, s, "quote", func(ctx context.Context) (*FeeTable, error) {
		return s.CalculateFees(ctx, req.FromProvinceID, req.ToProvinceID)
	})
	if err != nil {
		return nil, s.fail(ctx, "quote", err)
	}

	rate, ok := table.Rate(req.ToCommuneID)
	if !ok {
		return nil, s.fail(ctx, "quote",
			NewError(KindValidation, "no rates published for this destination").WithField("toProvinceId"))
	}
	if rate.Fallback && req.ToCommuneID != 0 {
		s.logger.Ctx(ctx).Warn("Commune missing from rate table, using fallback commune",
			zap.Int("province_id", req.ToProvinceID),
			zap.Int("commune_id", req.ToCommuneID),
			zap.Int("fallback_commune_id", rate.CommuneID),
		)
	}

	billable := s.rules.BillableWeight(req.Weight, req.Length, req.Width, req.Height)
	quote := &FeeQuote{
		FromProvinceName: table.FromProvinceName,
		ToProvinceName:   table.ToProvinceName,
		ToCommuneName:    rate.CommuneName,
		Zone:             table.Zone,
		WeightFees:       s.rules.WeightFees(billable, table.OversizeFeePerKg),
		CODFees:          CODFee(req.DeclaredValue, table.CODPercentage),
		DeliveryFees: DeliveryFees{
			Home: FeePair{Express: rate.ExpressHomeFee, Economic: rate.EconomicHomeFee},
			Desk: FeePair{Express: rate.ExpressDeskFee, Economic: rate.EconomicDeskFee},
		},
		BillableWeight:      billable,
		OversizeFee:         table.OversizeFeePerKg,
		CODPercentage:       table.CODPercentage,
		InsurancePercentage: table.InsurancePercentage,
		ReturnFee:           table.ReturnFee,
		CommuneFallback:     rate.Fallback,
	}
	s.succeed("quote")
	return quote, nil
}
