package yalidine

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// MockAPIClient is a mock implementation of APIClient for testing.
// Every call is counted; On* hooks override the canned responses.
type MockAPIClient struct {
	Unconfigured    bool
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnWilayas       func(ctx context.Context) ([]Wilaya, error)
	OnCommunes      func(ctx context.Context, wilayaID int) ([]Commune, error)
	OnCenters       func(ctx context.Context, wilayaID int) ([]Center, error)
	OnFees          func(ctx context.Context, fromWilayaID, toWilayaID int) (*FeesResponse, error)
	OnCreateParcels func(ctx context.Context, parcels []ParcelRequest) (map[string]CreateResult, error)
	OnParcel        func(ctx context.Context, tracking string) (*Parcel, error)
	OnUpdateParcel  func(ctx context.Context, tracking string, patch ParcelPatch) (*Parcel, error)
	OnDeleteParcel  func(ctx context.Context, tracking string) (*DeleteResult, error)
	OnParcels       func(ctx context.Context, query url.Values) (*Page[Parcel], error)
	OnHistory       func(ctx context.Context, tracking string) ([]HistoryEvent, error)

	mu    sync.Mutex
	calls map[string]int
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{calls: make(map[string]int)}
}

// Calls returns how many times the named method was invoked.
func (m *MockAPIClient) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// TotalCalls returns the number of outbound calls across all methods.
func (m *MockAPIClient) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func (m *MockAPIClient) enter(method string) error {
	if m.Unconfigured {
		return ErrNotConfigured
	}
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
	m.mu.Unlock()

	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return &APIError{StatusCode: 503, Body: `{"error":{"code":503,"message":"Simulated API error"}}`, Message: "Simulated API error"}
	}
	return nil
}

// IsConfigured reports false when Unconfigured is set.
func (m *MockAPIClient) IsConfigured() bool {
	return !m.Unconfigured
}

// Wilayas returns mock wilayas.
func (m *MockAPIClient) Wilayas(ctx context.Context) ([]Wilaya, error) {
	if err := m.enter("Wilayas"); err != nil {
		return nil, err
	}
	if m.OnWilayas != nil {
		return m.OnWilayas(ctx)
	}
	return []Wilaya{
		{ID: 5, Name: "Batna", Zone: "2", IsDeliverable: true},
		{ID: 16, Name: "Alger", Zone: "1", IsDeliverable: true},
		{ID: 31, Name: "Oran", Zone: "2", IsDeliverable: true},
	}, nil
}

// Communes returns mock communes.
func (m *MockAPIClient) Communes(ctx context.Context, wilayaID int) ([]Commune, error) {
	if err := m.enter("Communes"); err != nil {
		return nil, err
	}
	if m.OnCommunes != nil {
		return m.OnCommunes(ctx, wilayaID)
	}
	all := []Commune{
		{ID: 501, Name: "Batna", WilayaID: 5, WilayaName: "Batna", HasStopDesk: true, IsDeliverable: true},
		{ID: 1601, Name: "Alger Centre", WilayaID: 16, WilayaName: "Alger", HasStopDesk: true, IsDeliverable: true},
		{ID: 1613, Name: "Bab Ezzouar", WilayaID: 16, WilayaName: "Alger", HasStopDesk: true, IsDeliverable: true},
		{ID: 3101, Name: "Oran", WilayaID: 31, WilayaName: "Oran", HasStopDesk: true, IsDeliverable: true},
	}
	if wilayaID == 0 {
		return all, nil
	}
	var result []Commune
	for _, c := range all {
		if c.WilayaID == wilayaID {
			result = append(result, c)
		}
	}
	return result, nil
}

// Centers returns mock pickup centers.
func (m *MockAPIClient) Centers(ctx context.Context, wilayaID int) ([]Center, error) {
	if err := m.enter("Centers"); err != nil {
		return nil, err
	}
	if m.OnCenters != nil {
		return m.OnCenters(ctx, wilayaID)
	}
	all := []Center{
		{CenterID: 160101, Name: "Agence Alger Centre", Address: "Rue Didouche Mourad", CommuneID: 1601, CommuneName: "Alger Centre", WilayaID: 16, WilayaName: "Alger"},
		{CenterID: 161301, Name: "Agence Bab Ezzouar", Address: "Cité 5 Juillet", CommuneID: 1613, CommuneName: "Bab Ezzouar", WilayaID: 16, WilayaName: "Alger"},
		{CenterID: 310101, Name: "Agence Oran", Address: "Bd de l'ALN", CommuneID: 3101, CommuneName: "Oran", WilayaID: 31, WilayaName: "Oran"},
	}
	if wilayaID == 0 {
		return all, nil
	}
	var result []Center
	for _, c := range all {
		if c.WilayaID == wilayaID {
			result = append(result, c)
		}
	}
	return result, nil
}

// Fees returns a mock rate table.
func (m *MockAPIClient) Fees(ctx context.Context, fromWilayaID, toWilayaID int) (*FeesResponse, error) {
	if err := m.enter("Fees"); err != nil {
		return nil, err
	}
	if m.OnFees != nil {
		return m.OnFees(ctx, fromWilayaID, toWilayaID)
	}
	return &FeesResponse{
		FromWilayaName:      "Batna",
		ToWilayaName:        "Alger",
		Zone:                "2",
		RetourFee:           250,
		CODPercentage:       0.75,
		InsurancePercentage: 0.75,
		OversizeFee:         100,
		PerCommune: map[string]CommuneFees{
			"1601": {CommuneID: 1601, CommuneName: "Alger Centre", ExpressHome: 600, ExpressDesk: 400, EconomicHome: 500, EconomicDesk: 350},
			"1613": {CommuneID: 1613, CommuneName: "Bab Ezzouar", ExpressHome: 650, ExpressDesk: 400, EconomicHome: 550, EconomicDesk: 350},
		},
	}, nil
}

// CreateParcels returns a successful result for every parcel.
func (m *MockAPIClient) CreateParcels(ctx context.Context, parcels []ParcelRequest) (map[string]CreateResult, error) {
	if err := m.enter("CreateParcels"); err != nil {
		return nil, err
	}
	if m.OnCreateParcels != nil {
		return m.OnCreateParcels(ctx, parcels)
	}
	result := make(map[string]CreateResult, len(parcels))
	for i, p := range parcels {
		tracking := fmt.Sprintf("yal-%06d", time.Now().UnixNano()%1000000+int64(i))
		result[p.OrderID] = CreateResult{
			Success:  true,
			OrderID:  p.OrderID,
			Tracking: tracking,
			ImportID: 4242,
			Label:    fmt.Sprintf("https://yalidine.app/app/bordereau.php?tracking=%s", tracking),
			Message:  "",
		}
	}
	return result, nil
}

// Parcel returns a mock parcel.
func (m *MockAPIClient) Parcel(ctx context.Context, tracking string) (*Parcel, error) {
	if err := m.enter("Parcel"); err != nil {
		return nil, err
	}
	if m.OnParcel != nil {
		return m.OnParcel(ctx, tracking)
	}
	return &Parcel{
		Tracking:       tracking,
		OrderID:        "order-1",
		FirstName:      "Amina",
		FamilyName:     "Benali",
		ContactPhone:   "0551234567",
		Address:        "12 Rue des Oliviers",
		ToWilayaName:   "Alger",
		ToCommuneName:  "Alger Centre",
		ProductList:    "Robe kabyle x1",
		Price:          4500,
		LastStatus:     "En préparation",
		DateCreation:   time.Now().Add(-time.Hour).Format(DateTimeLayout),
		DateLastStatus: time.Now().Format(DateTimeLayout),
	}, nil
}

// UpdateParcel echoes the patch onto a mock parcel.
func (m *MockAPIClient) UpdateParcel(ctx context.Context, tracking string, patch ParcelPatch) (*Parcel, error) {
	if err := m.enter("UpdateParcel"); err != nil {
		return nil, err
	}
	if m.OnUpdateParcel != nil {
		return m.OnUpdateParcel(ctx, tracking, patch)
	}
	p := &Parcel{Tracking: tracking, LastStatus: "En préparation"}
	if patch.Address != nil {
		p.Address = *patch.Address
	}
	if patch.ContactPhone != nil {
		p.ContactPhone = *patch.ContactPhone
	}
	if patch.FirstName != nil {
		p.FirstName = *patch.FirstName
	}
	if patch.FamilyName != nil {
		p.FamilyName = *patch.FamilyName
	}
	return p, nil
}

// DeleteParcel acknowledges deletion.
func (m *MockAPIClient) DeleteParcel(ctx context.Context, tracking string) (*DeleteResult, error) {
	if err := m.enter("DeleteParcel"); err != nil {
		return nil, err
	}
	if m.OnDeleteParcel != nil {
		return m.OnDeleteParcel(ctx, tracking)
	}
	return &DeleteResult{Tracking: tracking, Deleted: true}, nil
}

// Parcels returns an empty page unless overridden.
func (m *MockAPIClient) Parcels(ctx context.Context, query url.Values) (*Page[Parcel], error) {
	if err := m.enter("Parcels"); err != nil {
		return nil, err
	}
	if m.OnParcels != nil {
		return m.OnParcels(ctx, query)
	}
	return &Page[Parcel]{}, nil
}

// History returns a short mock history, most recent first as the carrier does.
func (m *MockAPIClient) History(ctx context.Context, tracking string) ([]HistoryEvent, error) {
	if err := m.enter("History"); err != nil {
		return nil, err
	}
	if m.OnHistory != nil {
		return m.OnHistory(ctx, tracking)
	}
	now := time.Now()
	return []HistoryEvent{
		{Tracking: tracking, DateStatus: now.Add(-1 * time.Hour).Format(DateTimeLayout), Status: "Sorti en livraison", CommuneName: "Alger Centre", WilayaName: "Alger"},
		{Tracking: tracking, DateStatus: now.Add(-24 * time.Hour).Format(DateTimeLayout), Status: "Vers Wilaya", CenterName: "Agence Batna", WilayaName: "Batna"},
		{Tracking: tracking, DateStatus: now.Add(-48 * time.Hour).Format(DateTimeLayout), Status: "En préparation", WilayaName: "Batna"},
	}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
