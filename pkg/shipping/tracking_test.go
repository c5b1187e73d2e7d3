package shipping_test

import (
	"context"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipping/pkg/shipping"
	"github.com/tournevent/shipping/pkg/yalidine"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		label string
		want  shipping.Status
	}{
		{"Pas encore expédié", shipping.StatusNotYetShipped},
		{"En préparation", shipping.StatusInPreparation},
		{"Centre", shipping.StatusAtCenter},
		{"Vers Wilaya", shipping.StatusToProvince},
		{"Sorti en livraison", shipping.StatusOutForDelivery},
		{"Livré", shipping.StatusDelivered},
		{"livre", shipping.StatusDelivered},
		{"  LIVRÉ ", shipping.StatusDelivered},
		{"Echèc livraison", shipping.StatusDeliveryFailed},
		{"Échec livraison", shipping.StatusDeliveryFailed},
		{"Retour à retirer", shipping.StatusReturnPendingPickup},
		{"Retourné au vendeur", shipping.StatusReturnedToSender},
		{"Echange échoué", shipping.StatusExchangeFailed},
		{"Transfert", shipping.StatusIntermediate},
		{"Tentative échouée", shipping.StatusIntermediate},
		{"UnknownStatus", shipping.StatusUnrecognized},
		{"", shipping.StatusUnrecognized},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, shipping.ParseStatus(tt.label))
		})
	}
}

func TestStatus_TextRoundTrip(t *testing.T) {
	for _, st := range []shipping.Status{shipping.StatusDelivered, shipping.StatusIntermediate, shipping.StatusUnrecognized} {
		text, err := st.MarshalText()
		require.NoError(t, err)
		var got shipping.Status
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, st, got)
	}
	assert.True(t, shipping.StatusDelivered.Terminal())
	assert.False(t, shipping.StatusOutForDelivery.Terminal())
	assert.False(t, shipping.StatusIntermediate.Bucketed())
}

func TestShipmentStats_Scenario(t *testing.T) {
	var shipments []shipping.Shipment
	add := func(label string, n int) {
		for i := 0; i < n; i++ {
			shipments = append(shipments, shipping.Shipment{StatusLabel: label, Status: shipping.ParseStatus(label)})
		}
	}
	add("Livré", 4)
	add("Sorti en livraison", 3)
	add("En préparation", 2)
	add("UnknownStatus", 1)

	stats := shipping.ShipmentStats(shipments)

	assert.Equal(t, shipping.Stats{
		Livre:            4,
		SortiEnLivraison: 3,
		EnPreparation:    2,
		TotalShipments:   10,
	}, stats)
}

func TestShipmentStats_Empty(t *testing.T) {
	assert.Equal(t, shipping.Stats{}, shipping.ShipmentStats(nil))
}

func TestHistory_MostRecentFirst(t *testing.T) {
	api := yalidine.NewMockAPIClient()
	api.OnHistory = func(_ context.Context, tracking string) ([]yalidine.HistoryEvent, error) {
		return []yalidine.HistoryEvent{
			{Tracking: tracking, DateStatus: "2024-03-02 09:00:00", Status: "Vers Wilaya", CenterName: "Agence Batna", WilayaName: "Batna"},
			{Tracking: tracking, DateStatus: "2024-03-01 10:00:00", Status: "En préparation"},
			{Tracking: tracking, DateStatus: "2024-03-03 08:15:00", Status: "Sorti en livraison", CommuneName: "Bab Ezzouar", WilayaName: "Alger"},
			{Tracking: tracking, DateStatus: "2024-03-03 17:40:00", Status: "Echèc livraison", Reason: "Client absent"},
		}, nil
	}
	svc, _ := newService(api)

	history, err := svc.History(context.Background(), "yal-1")

	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, shipping.StatusDeliveryFailed, history[0].Status)
	assert.Equal(t, "Client absent", history[0].Reason)
	assert.Equal(t, shipping.StatusOutForDelivery, history[1].Status)
	assert.Equal(t, "Bab Ezzouar", history[1].CommuneName)
	assert.Equal(t, "Alger", history[1].ProvinceName)
	assert.Equal(t, shipping.StatusToProvince, history[2].Status)
	assert.Equal(t, "Agence Batna", history[2].CenterName)
	assert.Equal(t, shipping.StatusInPreparation, history[3].Status)

	current, ok := shipping.CurrentStatus(history)
	require.True(t, ok)
	assert.Equal(t, history[0], current)
}

func TestHistory_SameSecondKeepsCarrierOrder(t *testing.T) {
	api := yalidine.NewMockAPIClient()
	api.OnHistory = func(_ context.Context, tracking string) ([]yalidine.HistoryEvent, error) {
		return []yalidine.HistoryEvent{
			{Tracking: tracking, DateStatus: "2024-03-03 09:00:00", Status: "Livré"},
			{Tracking: tracking, DateStatus: "2024-03-03 09:00:00", Status: "Sorti en livraison"},
			{Tracking: tracking, DateStatus: "2024-03-02 16:30:00", Status: "Vers Wilaya"},
		}, nil
	}
	svc, _ := newService(api)

	tr, err := svc.Track(context.Background(), "yal-1")

	require.NoError(t, err)
	require.NotNil(t, tr.Current)
	assert.Equal(t, shipping.StatusDelivered, tr.Current.Status)
	assert.Equal(t, shipping.StatusOutForDelivery, tr.History[1].Status)
	assert.Equal(t, shipping.StatusToProvince, tr.History[2].Status)
}

func TestHistory_UnparsableDatesKeepCarrierOrder(t *testing.T) {
	api := yalidine.NewMockAPIClient()
	api.OnHistory = func(_ context.Context, tracking string) ([]yalidine.HistoryEvent, error) {
		return []yalidine.HistoryEvent{
			{Tracking: tracking, DateStatus: "", Status: "Retourné au vendeur"},
			{Tracking: tracking, DateStatus: "", Status: "Echèc livraison"},
		}, nil
	}
	svc, _ := newService(api)

	history, err := svc.History(context.Background(), "yal-1")

	require.NoError(t, err)
	current, ok := shipping.CurrentStatus(history)
	require.True(t, ok)
	assert.Equal(t, shipping.StatusReturnedToSender, current.Status)
}

func TestCurrentStatus_EmptyHistory(t *testing.T) {
	_, ok := shipping.CurrentStatus(nil)
	assert.False(t, ok)
}

func TestTrack(t *testing.T) {
	api := yalidine.NewMockAPIClient()
	svc, _ := newService(api)

	tr, err := svc.Track(context.Background(), "yal-1")

	require.NoError(t, err)
	assert.Equal(t, "yal-1", tr.Tracking)
	require.NotNil(t, tr.Current)
	assert.Equal(t, shipping.StatusOutForDelivery, tr.Current.Status)
	assert.Len(t, tr.History, 3)
}

func TestTrack_NoEvents(t *testing.T) {
	api := yalidine.NewMockAPIClient()
	api.OnHistory = func(context.Context, string) ([]yalidine.HistoryEvent, error) { return nil, nil }
	svc, _ := newService(api)

	tr, err := svc.Track(context.Background(), "yal-1")
	require.NoError(t, err)
	assert.Nil(t, tr.Current)
	assert.Empty(t, tr.History)
}

func TestFleetStats_WalksAllPages(t *testing.T) {
	labels := []string{"Livré", "Sorti en livraison", "En préparation", "Centre", "Transfert"}
	const total = 2500

	api := yalidine.NewMockAPIClient()
	var pagesServed atomic.Int32
	api.OnParcels = func(_ context.Context, q url.Values) (*yalidine.Page[yalidine.Parcel], error) {
		pagesServed.Add(1)
		page, _ := strconv.Atoi(q.Get("page"))
		size, _ := strconv.Atoi(q.Get("page_size"))
		start := (page - 1) * size
		end := min(start+size, total)
		data := make([]yalidine.Parcel, 0, end-start)
		for i := start; i < end; i++ {
			data = append(data, yalidine.Parcel{Tracking: "yal-" + strconv.Itoa(i), LastStatus: labels[i%len(labels)]})
		}
		return &yalidine.Page[yalidine.Parcel]{HasMore: end < total, TotalData: total, Data: data}, nil
	}
	svc, _ := newService(api)

	stats, err := svc.FleetStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int32(3), pagesServed.Load())
	assert.Equal(t, total, stats.TotalShipments)
	assert.Equal(t, 500, stats.Livre)
	assert.Equal(t, 500, stats.SortiEnLivraison)
	assert.Equal(t, 500, stats.EnPreparation)
	assert.Equal(t, 500, stats.Centre)

	_, err = svc.FleetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), pagesServed.Load(), "second call served from cache")
}

func TestFleetStats_WithoutTotalFollowsHasMore(t *testing.T) {
	api := yalidine.NewMockAPIClient()
	api.OnParcels = func(_ context.Context, q url.Values) (*yalidine.Page[yalidine.Parcel], error) {
		switch q.Get("page") {
		case "1":
			return &yalidine.Page[yalidine.Parcel]{HasMore: true, Data: []yalidine.Parcel{{LastStatus: "Livré"}}}, nil
		case "2":
			return &yalidine.Page[yalidine.Parcel]{HasMore: false, Data: []yalidine.Parcel{{LastStatus: "Centre"}}}, nil
		}
		t.Errorf("unexpected page %q", q.Get("page"))
		return &yalidine.Page[yalidine.Parcel]{}, nil
	}
	svc, _ := newService(api)

	stats, err := svc.FleetStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, api.Calls("Parcels"))
	assert.Equal(t, 2, stats.TotalShipments)
	assert.Equal(t, 1, stats.Livre)
	assert.Equal(t, 1, stats.Centre)
}

func TestFleetStats_PageFailure(t *testing.T) {
	api := yalidine.NewMockAPIClient()
	api.OnParcels = func(_ context.Context, q url.Values) (*yalidine.Page[yalidine.Parcel], error) {
		if q.Get("page") == "2" {
			return nil, apiError(500, "boom")
		}
		return &yalidine.Page[yalidine.Parcel]{HasMore: true, TotalData: 1500}, nil
	}
	svc, _ := newService(api)

	_, err := svc.FleetStats(context.Background())
	assert.True(t, shipping.IsRetryable(err))
}
