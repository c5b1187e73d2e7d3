// Package yalidine provides a client for the Yalidine delivery REST API.
package yalidine

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIClient defines the Yalidine API operations used by the shipping layer.
// The HTTP implementation talks to the carrier; the mock implementation is
// used in tests.
type APIClient interface {
	// IsConfigured reports whether credentials are present.
	IsConfigured() bool

	// Wilayas lists the provinces served by the carrier.
	Wilayas(ctx context.Context) ([]Wilaya, error)

	// Communes lists communes, optionally restricted to one wilaya (0 = all).
	Communes(ctx context.Context, wilayaID int) ([]Commune, error)

	// Centers lists pickup centers (stop desks), optionally per wilaya.
	Centers(ctx context.Context, wilayaID int) ([]Center, error)

	// Fees returns the rate table for a wilaya pair.
	Fees(ctx context.Context, fromWilayaID, toWilayaID int) (*FeesResponse, error)

	// CreateParcels creates parcels and returns the per-order results keyed by order_id.
	CreateParcels(ctx context.Context, parcels []ParcelRequest) (map[string]CreateResult, error)

	// Parcel fetches a single parcel.
	Parcel(ctx context.Context, tracking string) (*Parcel, error)

	// UpdateParcel applies a partial update to a parcel that has not been shipped yet.
	UpdateParcel(ctx context.Context, tracking string, patch ParcelPatch) (*Parcel, error)

	// DeleteParcel deletes (cancels) a parcel.
	DeleteParcel(ctx context.Context, tracking string) (*DeleteResult, error)

	// Parcels lists parcels matching the given carrier query parameters.
	Parcels(ctx context.Context, query url.Values) (*Page[Parcel], error)

	// History returns the status history of a parcel.
	History(ctx context.Context, tracking string) ([]HistoryEvent, error)
}

// ============================================================================
// API Request/Response Types (match the Yalidine v1 REST API)
// ============================================================================

// DateTimeLayout is the timestamp layout used by the carrier.
const DateTimeLayout = "2006-01-02 15:04:05"

// Page is the envelope returned by every list endpoint.
type Page[T any] struct {
	HasMore   bool  `json:"has_more"`
	TotalData int   `json:"total_data"`
	Data      []T   `json:"data"`
	Links     Links `json:"links"`
}

// Links holds pagination links.
type Links struct {
	Self   string `json:"self,omitempty"`
	Before string `json:"before,omitempty"`
	Next   string `json:"next,omitempty"`
}

// Wilaya is a province.
// GET /wilayas/
type Wilaya struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Zone          Zone   `json:"zone"`
	IsDeliverable Flag   `json:"is_deliverable"`
}

// Commune is a municipality inside a wilaya.
// GET /communes/?wilaya_id=
type Commune struct {
	ID                  int    `json:"id"`
	Name                string `json:"name"`
	WilayaID            int    `json:"wilaya_id"`
	WilayaName          string `json:"wilaya_name"`
	HasStopDesk         Flag   `json:"has_stop_desk"`
	IsDeliverable       Flag   `json:"is_deliverable"`
	DeliveryTimeParcel  Number `json:"delivery_time_parcel"`
	DeliveryTimePayment Number `json:"delivery_time_payment"`
}

// Center is a pickup center (stop desk).
// GET /centers/?wilaya_id=
type Center struct {
	CenterID    int    `json:"center_id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	GPS         string `json:"gps,omitempty"`
	CommuneID   int    `json:"commune_id"`
	CommuneName string `json:"commune_name"`
	WilayaID    int    `json:"wilaya_id"`
	WilayaName  string `json:"wilaya_name"`
}

// FeesResponse is the rate table for a wilaya pair.
// GET /fees/?from_wilaya_id=&to_wilaya_id=
type FeesResponse struct {
	FromWilayaName      string                 `json:"from_wilaya_name"`
	ToWilayaName        string                 `json:"to_wilaya_name"`
	Zone                Zone                   `json:"zone"`
	RetourFee           Number                 `json:"retour_fee"`
	CODPercentage       Number                 `json:"cod_percentage"`
	InsurancePercentage Number                 `json:"insurance_percentage"`
	OversizeFee         Number                 `json:"oversize_fee"`
	PerCommune          map[string]CommuneFees `json:"per_commune"`
}

// CommuneFees is one destination commune row of a rate table.
type CommuneFees struct {
	CommuneID    int    `json:"commune_id"`
	CommuneName  string `json:"commune_name"`
	ExpressHome  Number `json:"express_home"`
	ExpressDesk  Number `json:"express_desk"`
	EconomicHome Number `json:"economic_home"`
	EconomicDesk Number `json:"economic_desk"`
}

// ParcelRequest is one element of the POST /parcels/ body.
type ParcelRequest struct {
	OrderID          string  `json:"order_id"`
	FromWilayaName   string  `json:"from_wilaya_name"`
	FirstName        string  `json:"firstname"`
	FamilyName       string  `json:"familyname"`
	ContactPhone     string  `json:"contact_phone"`
	Address          string  `json:"address"`
	ToCommuneName    string  `json:"to_commune_name"`
	ToWilayaName     string  `json:"to_wilaya_name"`
	ProductList      string  `json:"product_list"`
	Price            int     `json:"price"`
	DoInsurance      bool    `json:"do_insurance"`
	DeclaredValue    int     `json:"declared_value"`
	Length           float64 `json:"length"`
	Width            float64 `json:"width"`
	Height           float64 `json:"height"`
	Weight           float64 `json:"weight"`
	FreeShipping     bool    `json:"freeshipping"`
	IsStopDesk       bool    `json:"is_stopdesk"`
	StopDeskID       int     `json:"stopdesk_id,omitempty"`
	HasExchange      bool    `json:"has_exchange"`
	ProductToCollect string  `json:"product_to_collect,omitempty"`
}

// CreateResult is the per-order result of POST /parcels/.
// A 200 response can still carry Success=false for individual orders.
type CreateResult struct {
	Success  bool   `json:"success"`
	OrderID  string `json:"order_id"`
	Tracking string `json:"tracking"`
	ImportID Number `json:"import_id"`
	Label    string `json:"label"`
	Labels   string `json:"labels,omitempty"`
	Message  string `json:"message"`
}

// Parcel is a parcel as returned by GET /parcels/.
type Parcel struct {
	Tracking       string `json:"tracking"`
	OrderID        string `json:"order_id"`
	FirstName      string `json:"firstname"`
	FamilyName     string `json:"familyname"`
	ContactPhone   string `json:"contact_phone"`
	Address        string `json:"address"`
	IsStopDesk     Flag   `json:"is_stopdesk"`
	StopDeskID     Number `json:"stopdesk_id"`
	StopDeskName   string `json:"stopdesk_name"`
	FromWilayaName string `json:"from_wilaya_name"`
	ToWilayaID     Number `json:"to_wilaya_id"`
	ToWilayaName   string `json:"to_wilaya_name"`
	ToCommuneID    Number `json:"to_commune_id"`
	ToCommuneName  string `json:"to_commune_name"`
	ProductList    string `json:"product_list"`
	Price          Number `json:"price"`
	DeclaredValue  Number `json:"declared_value"`
	DeliveryFee    Number `json:"delivery_fee"`
	DoInsurance    Flag   `json:"do_insurance"`
	FreeShipping   Flag   `json:"freeshipping"`
	HasExchange    Flag   `json:"has_exchange"`
	ImportID       Number `json:"import_id"`
	Label          string `json:"label"`
	DateCreation   string `json:"date_creation"`
	DateLastStatus string `json:"date_last_status"`
	LastStatus     string `json:"last_status"`
	Weight         Number `json:"weight"`
	Length         Number `json:"length"`
	Width          Number `json:"width"`
	Height         Number `json:"height"`
}

// ParcelPatch is the PATCH /parcels/{tracking} body. Nil fields are not sent.
type ParcelPatch struct {
	FirstName     *string  `json:"firstname,omitempty"`
	FamilyName    *string  `json:"familyname,omitempty"`
	ContactPhone  *string  `json:"contact_phone,omitempty"`
	Address       *string  `json:"address,omitempty"`
	ToCommuneName *string  `json:"to_commune_name,omitempty"`
	ToWilayaName  *string  `json:"to_wilaya_name,omitempty"`
	ProductList   *string  `json:"product_list,omitempty"`
	Price         *int     `json:"price,omitempty"`
	DoInsurance   *bool    `json:"do_insurance,omitempty"`
	DeclaredValue *int     `json:"declared_value,omitempty"`
	Length        *float64 `json:"length,omitempty"`
	Width         *float64 `json:"width,omitempty"`
	Height        *float64 `json:"height,omitempty"`
	Weight        *float64 `json:"weight,omitempty"`
	FreeShipping  *bool    `json:"freeshipping,omitempty"`
	IsStopDesk    *bool    `json:"is_stopdesk,omitempty"`
	StopDeskID    *int     `json:"stopdesk_id,omitempty"`
	HasExchange   *bool    `json:"has_exchange,omitempty"`
}

// DeleteResult is one element of the DELETE /parcels/{tracking} response.
type DeleteResult struct {
	Tracking string `json:"tracking"`
	Deleted  Flag   `json:"deleted"`
}

// HistoryEvent is one status change of a parcel.
// GET /histories/{tracking}
type HistoryEvent struct {
	Tracking    string `json:"tracking"`
	DateStatus  string `json:"date_status"`
	Status      string `json:"status"`
	Reason      string `json:"reason"`
	CenterID    Number `json:"center_id"`
	CenterName  string `json:"center_name"`
	WilayaID    Number `json:"wilaya_id"`
	WilayaName  string `json:"wilaya_name"`
	CommuneID   Number `json:"commune_id"`
	CommuneName string `json:"commune_name"`
}

// ============================================================================
// Lenient scalar types
//
// The carrier is not consistent about scalar encodings: the same field can be
// a number, a numeric string, a boolean or null depending on the endpoint.
// ============================================================================

// Number decodes a JSON number, numeric string or null.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = Number(f)
		return nil
	}
	if bytes.Equal(data, []byte("true")) {
		*n = 1
		return nil
	}
	if bytes.Equal(data, []byte("false")) {
		*n = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Float64 returns the value as float64.
func (n Number) Float64() float64 { return float64(n) }

// Int returns the value truncated to int.
func (n Number) Int() int { return int(n) }

// Flag decodes a JSON boolean, 0/1 number or "0"/"1"/"true"/"false" string.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(s) {
	case "true", "1":
		*f = true
	case "false", "0", "", "null":
		*f = false
	default:
		var n float64
		if err := json.Unmarshal([]byte(s), &n); err != nil {
			return err
		}
		*f = n != 0
	}
	return nil
}

// Zone decodes a zone given either as a number or a string.
type Zone string

// UnmarshalJSON implements json.Unmarshaler.
func (z *Zone) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*z = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*z = Zone(s)
		return nil
	}
	*z = Zone(string(data))
	return nil
}

// ParseTime parses a carrier timestamp. Zero time is returned for empty or
// malformed input.
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.ParseInLocation(DateTimeLayout, s, time.Local); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
