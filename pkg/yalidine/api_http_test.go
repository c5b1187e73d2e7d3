package yalidine_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipping/pkg/yalidine"
)

type recordingObserver struct {
	endpoints []string
	statuses  []int
}

func (o *recordingObserver) ObserveRequest(method, endpoint string, status int, _ time.Duration) {
	o.endpoints = append(o.endpoints, method+" "+endpoint)
	o.statuses = append(o.statuses, status)
}

func newTestHTTPClient(t *testing.T, handler http.HandlerFunc) (*yalidine.HTTPAPIClient, *recordingObserver) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	obs := &recordingObserver{}
	client := yalidine.NewHTTPAPIClient(yalidine.HTTPAPIClientConfig{
		BaseURL:  srv.URL + "/v1",
		APIID:    "id-123",
		APIToken: "token-456",
		Timeout:  5 * time.Second,
		Observer: obs,
	})
	return client, obs
}

func TestHTTPAPIClient_IsConfigured(t *testing.T) {
	assert.False(t, yalidine.NewHTTPAPIClient(yalidine.HTTPAPIClientConfig{}).IsConfigured())
	assert.False(t, yalidine.NewHTTPAPIClient(yalidine.HTTPAPIClientConfig{APIID: "id"}).IsConfigured())
	assert.True(t, yalidine.NewHTTPAPIClient(yalidine.HTTPAPIClientConfig{APIID: "id", APIToken: "tok"}).IsConfigured())
}

func TestHTTPAPIClient_NotConfigured_NoNetwork(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	client := yalidine.NewHTTPAPIClient(yalidine.HTTPAPIClientConfig{BaseURL: srv.URL})

	_, err := client.Wilayas(context.Background())
	assert.ErrorIs(t, err, yalidine.ErrNotConfigured)
	_, err = client.CreateParcels(context.Background(), []yalidine.ParcelRequest{{OrderID: "o1"}})
	assert.ErrorIs(t, err, yalidine.ErrNotConfigured)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestHTTPAPIClient_AuthHeaders(t *testing.T) {
	client, obs := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "id-123", r.Header.Get("X-API-ID"))
		assert.Equal(t, "token-456", r.Header.Get("X-API-TOKEN"))
		assert.Equal(t, "/v1/wilayas/", r.URL.Path)
		w.Write([]byte(`{"has_more":false,"total_data":2,"data":[{"id":16,"name":"Alger","zone":1,"is_deliverable":1},{"id":31,"name":"Oran","zone":"2","is_deliverable":true}]}`))
	})

	wilayas, err := client.Wilayas(context.Background())

	require.NoError(t, err)
	require.Len(t, wilayas, 2)
	assert.Equal(t, "Alger", wilayas[0].Name)
	assert.Equal(t, yalidine.Zone("1"), wilayas[0].Zone)
	assert.Equal(t, yalidine.Zone("2"), wilayas[1].Zone)
	assert.True(t, bool(wilayas[0].IsDeliverable))
	assert.Equal(t, []string{"GET wilayas"}, obs.endpoints)
	assert.Equal(t, []int{200}, obs.statuses)
}

func TestHTTPAPIClient_ErrorBodyVerbatim(t *testing.T) {
	body := `{"error":{"code":400,"message":"contact_phone is not valid"}}`
	client, _ := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(body))
	})

	_, err := client.CreateParcels(context.Background(), []yalidine.ParcelRequest{{OrderID: "o1"}})

	var apiErr *yalidine.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, body, apiErr.Body)
	assert.Equal(t, "contact_phone is not valid", apiErr.Message)
	assert.False(t, yalidine.IsTransient(err))
}

func TestHTTPAPIClient_ServerErrorIsTransient(t *testing.T) {
	client, _ := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	})

	_, err := client.Fees(context.Background(), 5, 16)

	require.Error(t, err)
	assert.True(t, yalidine.IsTransient(err))
	assert.Equal(t, http.StatusBadGateway, yalidine.StatusCode(err))
	assert.Contains(t, err.Error(), "upstream down")
}

func TestHTTPAPIClient_TransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := yalidine.NewHTTPAPIClient(yalidine.HTTPAPIClientConfig{
		BaseURL:  srv.URL,
		APIID:    "id",
		APIToken: "tok",
	})

	_, err := client.Wilayas(context.Background())

	var transportErr *yalidine.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, yalidine.IsTransient(err))
}

func TestHTTPAPIClient_Fees_LenientScalars(t *testing.T) {
	client, _ := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("from_wilaya_id"))
		assert.Equal(t, "16", r.URL.Query().Get("to_wilaya_id"))
		w.Write([]byte(`{
			"from_wilaya_name":"Batna","to_wilaya_name":"Alger","zone":2,
			"retour_fee":"250","cod_percentage":0.75,"insurance_percentage":"1",
			"oversize_fee":100,
			"per_commune":{"1601":{"commune_id":1601,"commune_name":"Alger Centre","express_home":600,"express_desk":null,"economic_home":"500","economic_desk":350}}
		}`))
	})

	fees, err := client.Fees(context.Background(), 5, 16)

	require.NoError(t, err)
	assert.Equal(t, yalidine.Zone("2"), fees.Zone)
	assert.Equal(t, 250.0, fees.RetourFee.Float64())
	assert.Equal(t, 1.0, fees.InsurancePercentage.Float64())
	row := fees.PerCommune["1601"]
	assert.Equal(t, 600, row.ExpressHome.Int())
	assert.Equal(t, 0, row.ExpressDesk.Int())
	assert.Equal(t, 500, row.EconomicHome.Int())
}

func TestHTTPAPIClient_CreateParcels(t *testing.T) {
	client, _ := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		raw, _ := io.ReadAll(r.Body)
		var parcels []map[string]any
		require.NoError(t, json.Unmarshal(raw, &parcels))
		require.Len(t, parcels, 1)
		assert.Equal(t, "order-7", parcels[0]["order_id"])
		assert.Equal(t, true, parcels[0]["is_stopdesk"])

		w.Write([]byte(`{"order-7":{"success":true,"order_id":"order-7","tracking":"yal-ABC","import_id":"77","label":"https://x/label.pdf","message":""}}`))
	})

	result, err := client.CreateParcels(context.Background(), []yalidine.ParcelRequest{
		{OrderID: "order-7", IsStopDesk: true, StopDeskID: 160101},
	})

	require.NoError(t, err)
	got := result["order-7"]
	assert.True(t, got.Success)
	assert.Equal(t, "yal-ABC", got.Tracking)
	assert.Equal(t, 77, got.ImportID.Int())
}

func TestHTTPAPIClient_Parcel_EmptyPageIsNotFound(t *testing.T) {
	client, _ := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"has_more":false,"total_data":0,"data":[]}`))
	})

	_, err := client.Parcel(context.Background(), "yal-missing")

	assert.True(t, errors.Is(err, yalidine.ErrParcelNotFound))
}

func TestHTTPAPIClient_DeleteParcel_ListBody(t *testing.T) {
	client, _ := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v1/parcels/yal-1", r.URL.Path)
		w.Write([]byte(`[{"tracking":"yal-1","deleted":true}]`))
	})

	res, err := client.DeleteParcel(context.Background(), "yal-1")

	require.NoError(t, err)
	assert.Equal(t, "yal-1", res.Tracking)
	assert.True(t, bool(res.Deleted))
}

func TestHTTPAPIClient_Communes_FollowsPages(t *testing.T) {
	var calls int32
	client, _ := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "16", r.URL.Query().Get("wilaya_id"))
		if r.URL.Query().Get("page") == "1" {
			w.Write([]byte(`{"has_more":true,"data":[{"id":1601,"name":"Alger Centre","wilaya_id":16}]}`))
			return
		}
		assert.Equal(t, int32(2), n)
		w.Write([]byte(`{"has_more":false,"data":[{"id":1613,"name":"Bab Ezzouar","wilaya_id":16}]}`))
	})

	communes, err := client.Communes(context.Background(), 16)

	require.NoError(t, err)
	assert.Len(t, communes, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPAPIClient_Parcels_PassesQuery(t *testing.T) {
	client, _ := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Livré", r.URL.Query().Get("last_status"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Write([]byte(`{"has_more":true,"total_data":120,"data":[{"tracking":"yal-1","last_status":"Livré","price":"3000"}]}`))
	})

	page, err := client.Parcels(context.Background(), url.Values{"last_status": {"Livré"}, "page": {"2"}})

	require.NoError(t, err)
	assert.True(t, page.HasMore)
	assert.Equal(t, 120, page.TotalData)
	assert.Equal(t, 3000, page.Data[0].Price.Int())
}

func TestParseTime(t *testing.T) {
	ts := yalidine.ParseTime("2024-03-05 14:30:00")
	assert.Equal(t, 2024, ts.Year())
	assert.Equal(t, time.March, ts.Month())
	assert.Equal(t, 14, ts.Hour())

	assert.True(t, yalidine.ParseTime("").IsZero())
	assert.True(t, yalidine.ParseTime("not a date").IsZero())
}
