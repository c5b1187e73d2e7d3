package shipping

import (
	"time"
)

// DeliveryType selects where the recipient collects the parcel.
type DeliveryType string

const (
	DeliveryHome   DeliveryType = "home"
	DeliveryPickup DeliveryType = "pickup"
)

// Province is a wilaya.
type Province struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Zone          string `json:"zone,omitempty"`
	IsDeliverable bool   `json:"isDeliverable"`
}

// Commune is a municipality inside a province.
type Commune struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	ProvinceID    int    `json:"provinceId"`
	ProvinceName  string `json:"provinceName,omitempty"`
	HasStopDesk   bool   `json:"hasStopDesk"`
	IsDeliverable bool   `json:"isDeliverable"`
}

// PickupCenter is a carrier stop desk.
type PickupCenter struct {
	CenterID     int    `json:"centerId"`
	Name         string `json:"name"`
	Address      string `json:"address,omitempty"`
	ProvinceID   int    `json:"provinceId"`
	ProvinceName string `json:"provinceName,omitempty"`
	CommuneID    int    `json:"communeId"`
	CommuneName  string `json:"communeName,omitempty"`
}

// RateEntry is the rate row for one (origin, destination, commune) tuple.
type RateEntry struct {
	FromProvinceName    string  `json:"fromProvinceName"`
	ToProvinceName      string  `json:"toProvinceName"`
	CommuneID           int     `json:"communeId"`
	CommuneName         string  `json:"communeName"`
	Zone                string  `json:"zone"`
	ExpressHomeFee      int     `json:"expressHomeFee"`
	ExpressDeskFee      int     `json:"expressDeskFee"`
	EconomicHomeFee     int     `json:"economicHomeFee"`
	EconomicDeskFee     int     `json:"economicDeskFee"`
	OversizeFeePerKg    float64 `json:"oversizeFeePerKg"`
	CODPercentage       float64 `json:"codPercentage"`
	InsurancePercentage float64 `json:"insurancePercentage"`
	ReturnFee           int     `json:"returnFee"`
	// Fallback is set when the requested commune had no row and another
	// commune of the same province was substituted.
	Fallback bool `json:"fallback"`
}

// ShipmentRequest is the input to parcel creation.
type ShipmentRequest struct {
	OrderID          string  `json:"orderId" validate:"required,max=64"`
	FirstName        string  `json:"firstName" validate:"required"`
	FamilyName       string  `json:"familyName" validate:"required"`
	ContactPhone     string  `json:"contactPhone" validate:"required,dzphone"`
	Address          string  `json:"address"`
	FromProvinceName string  `json:"fromProvinceName"`
	ToProvinceName   string  `json:"toProvinceName"`
	ToCommuneName    string  `json:"toCommuneName"`
	ProductList      string  `json:"productList" validate:"required"`
	Price            int     `json:"price" validate:"gte=0,lte=150000"`
	DeclaredValue    int     `json:"declaredValue" validate:"gte=0,lte=150000"`
	Length           float64 `json:"length" validate:"gte=0"`
	Width            float64 `json:"width" validate:"gte=0"`
	Height           float64 `json:"height" validate:"gte=0"`
	Weight           float64 `json:"weight" validate:"gte=0"`
	IsStopDesk       bool    `json:"isStopDesk"`
	StopDeskID       int     `json:"stopDeskId"`
	DoInsurance      bool    `json:"doInsurance"`
	FreeShipping     bool    `json:"freeShipping"`
	HasExchange      bool    `json:"hasExchange"`
	ProductToCollect string  `json:"productToCollect,omitempty"`
}

// DeliveryType returns home or pickup.
func (r *ShipmentRequest) DeliveryType() DeliveryType {
	if r.IsStopDesk {
		return DeliveryPickup
	}
	return DeliveryHome
}

// ShipmentRef identifies a created parcel.
type ShipmentRef struct {
	OrderID  string `json:"orderId"`
	Tracking string `json:"tracking"`
	Label    string `json:"label"`
	ImportID int    `json:"importId"`
}

// CreateOutcome is the per-order result of a batch creation: exactly one of
// Ref and Err is set.
type CreateOutcome struct {
	OrderID string
	Ref     *ShipmentRef
	Err     error
}

// Shipment is a parcel as known to the carrier.
type Shipment struct {
	Tracking      string    `json:"tracking"`
	OrderID       string    `json:"orderId"`
	Label         string    `json:"label,omitempty"`
	ImportID      int       `json:"importId,omitempty"`
	FirstName     string    `json:"firstName"`
	FamilyName    string    `json:"familyName"`
	ContactPhone  string    `json:"contactPhone"`
	Address       string    `json:"address,omitempty"`
	FromProvince  string    `json:"fromProvinceName,omitempty"`
	ToProvinceID  int       `json:"toProvinceId,omitempty"`
	ToProvince    string    `json:"toProvinceName"`
	ToCommuneID   int       `json:"toCommuneId,omitempty"`
	ToCommune     string    `json:"toCommuneName"`
	ProductList   string    `json:"productList"`
	Price         int       `json:"price"`
	DeclaredValue int       `json:"declaredValue"`
	DeliveryFee   int       `json:"deliveryFee"`
	IsStopDesk    bool      `json:"isStopDesk"`
	StopDeskID    int       `json:"stopDeskId,omitempty"`
	StopDeskName  string    `json:"stopDeskName,omitempty"`
	DoInsurance   bool      `json:"doInsurance"`
	FreeShipping  bool      `json:"freeShipping"`
	HasExchange   bool      `json:"hasExchange"`
	Weight        float64   `json:"weight,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	LastStatusAt  time.Time `json:"lastStatusAt"`
	Status        Status    `json:"status"`
	StatusLabel   string    `json:"statusLabel"`
}

// StatusEvent is one entry of a parcel history.
type StatusEvent struct {
	Tracking     string    `json:"tracking"`
	Status       Status    `json:"status"`
	StatusLabel  string    `json:"statusLabel"`
	OccurredAt   time.Time `json:"occurredAt"`
	Reason       string    `json:"reason,omitempty"`
	CenterName   string    `json:"centerName,omitempty"`
	CommuneName  string    `json:"communeName,omitempty"`
	ProvinceName string    `json:"provinceName,omitempty"`
}

// Tracking is a parcel history with its current status.
type Tracking struct {
	Tracking string        `json:"tracking"`
	Current  *StatusEvent  `json:"current"`
	History  []StatusEvent `json:"history"`
}

// ShipmentPatch is a partial update. Nil fields are left unchanged.
type ShipmentPatch struct {
	FirstName      *string  `json:"firstName,omitempty"`
	FamilyName     *string  `json:"familyName,omitempty"`
	ContactPhone   *string  `json:"contactPhone,omitempty" validate:"omitempty,dzphone"`
	Address        *string  `json:"address,omitempty"`
	ToProvinceName *string  `json:"toProvinceName,omitempty"`
	ToCommuneName  *string  `json:"toCommuneName,omitempty"`
	ProductList    *string  `json:"productList,omitempty"`
	Price          *int     `json:"price,omitempty" validate:"omitempty,gte=0,lte=150000"`
	DeclaredValue  *int     `json:"declaredValue,omitempty" validate:"omitempty,gte=0,lte=150000"`
	Length         *float64 `json:"length,omitempty" validate:"omitempty,gte=0"`
	Width          *float64 `json:"width,omitempty" validate:"omitempty,gte=0"`
	Height         *float64 `json:"height,omitempty" validate:"omitempty,gte=0"`
	Weight         *float64 `json:"weight,omitempty" validate:"omitempty,gte=0"`
	IsStopDesk     *bool    `json:"isStopDesk,omitempty"`
	StopDeskID     *int     `json:"stopDeskId,omitempty" validate:"omitempty,gt=0"`
	DoInsurance    *bool    `json:"doInsurance,omitempty"`
	FreeShipping   *bool    `json:"freeShipping,omitempty"`
	HasExchange    *bool    `json:"hasExchange,omitempty"`
}

// ShipmentFilter selects parcels for listing. Zero values are unset.
type ShipmentFilter struct {
	Status        string `json:"status,omitempty"`
	From          string `json:"from,omitempty"`
	To            string `json:"to,omitempty"`
	DateFrom      string `json:"dateFrom,omitempty"`
	DateTo        string `json:"dateTo,omitempty"`
	Month         int    `json:"month,omitempty" validate:"gte=0,lte=12"`
	Tracking      string `json:"tracking,omitempty"`
	CustomerPhone string `json:"customerPhone,omitempty"`
	Limit         int    `json:"limit,omitempty" validate:"gte=0,lte=1000"`
	Offset        int    `json:"offset,omitempty" validate:"gte=0"`
}

// ShipmentPage is one page of a parcel listing.
type ShipmentPage struct {
	Data       []Shipment `json:"data"`
	HasMore    bool       `json:"hasMore"`
	TotalCount int        `json:"totalCount"`
}

// Stats is the status histogram. Parcels with an unrecognized or
// intermediate status count only towards TotalShipments.
type Stats struct {
	PasEncoreExpedie  int `json:"pasEncoreExpedie"`
	EnPreparation     int `json:"enPreparation"`
	Centre            int `json:"centre"`
	VersWilaya        int `json:"versWilaya"`
	SortiEnLivraison  int `json:"sortiEnLivraison"`
	Livre             int `json:"livre"`
	EchecLivraison    int `json:"echecLivraison"`
	RetourARetirer    int `json:"retourARetirer"`
	RetourneAuVendeur int `json:"retourneAuVendeur"`
	EchangeEchoue     int `json:"echangeEchoue"`
	TotalShipments    int `json:"totalShipments"`
}

// ServiceStatus reports whether the carrier integration is usable.
type ServiceStatus struct {
	Configured bool   `json:"configured"`
	Message    string `json:"message"`
}
