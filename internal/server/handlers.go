package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tournevent/shipping/pkg/shipping"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Status())
}

func (s *Server) handleProvinces(w http.ResponseWriter, r *http.Request) {
	provinces, err := s.service.Provinces(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, provinces)
}

func (s *Server) handleCommunes(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "provinceId")
	if err != nil {
		writeError(w, err)
		return
	}
	communes, err := s.service.Communes(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, communes)
}

func (s *Server) handlePickupCenters(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "provinceId")
	if err != nil {
		writeError(w, err)
		return
	}
	centers, err := s.service.PickupCenters(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, centers)
}

func (s *Server) handleFees(w http.ResponseWriter, r *http.Request) {
	var req shipping.QuoteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	quote, err := s.service.Quote(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type createResponse struct {
	Success bool `json:"success"`
	*shipping.ShipmentRef
}

type batchItem struct {
	OrderID  string `json:"orderId"`
	Success  bool   `json:"success"`
	Tracking string `json:"tracking,omitempty"`
	Label    string `json:"label,omitempty"`
	ImportID int    `json:"importId,omitempty"`
	Error    string `json:"error,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Field    string `json:"field,omitempty"`
}

// handleCreateShipments accepts a single shipment object or an array of
// them. Arrays answer 200 with per-order results.
func (s *Server) handleCreateShipments(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, shipping.NewError(shipping.KindValidation, "unreadable request body").WithCause(err))
		return
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		var reqs []shipping.ShipmentRequest
		if err := unmarshalBody(trimmed, &reqs); err != nil {
			writeError(w, err)
			return
		}
		outcomes, err := s.service.CreateShipments(r.Context(), reqs)
		if err != nil {
			writeError(w, err)
			return
		}
		items := make([]batchItem, len(outcomes))
		for i, o := range outcomes {
			items[i] = batchItemFrom(o)
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "results": items})
		return
	}

	var req shipping.ShipmentRequest
	if err := unmarshalBody(body, &req); err != nil {
		writeError(w, err)
		return
	}
	ref, err := s.service.CreateShipment(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{Success: true, ShipmentRef: ref})
}

func batchItemFrom(o shipping.CreateOutcome) batchItem {
	item := batchItem{OrderID: o.OrderID}
	if o.Err != nil {
		item.Error = o.Err.Error()
		var se *shipping.Error
		if errors.As(o.Err, &se) {
			item.Error = se.Message
			item.Kind = string(se.Kind)
			item.Field = se.Field
		}
		return item
	}
	item.Success = true
	item.Tracking = o.Ref.Tracking
	item.Label = o.Ref.Label
	item.ImportID = o.Ref.ImportID
	return item
}

func (s *Server) handleListShipments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := shipping.ShipmentFilter{
		Status:        q.Get("status"),
		From:          q.Get("from"),
		To:            q.Get("to"),
		DateFrom:      q.Get("date_from"),
		DateTo:        q.Get("date_to"),
		Tracking:      q.Get("tracking"),
		CustomerPhone: q.Get("customer_phone"),
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"month", &f.Month},
		{"limit", &f.Limit},
		{"offset", &f.Offset},
	} {
		if q.Get(p.name) == "" {
			continue
		}
		v, err := intParam(r, p.name)
		if err != nil {
			writeError(w, err)
			return
		}
		*p.dst = v
	}

	page, err := s.service.ListShipments(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.FleetStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	shipment, err := s.service.GetShipment(r.Context(), chi.URLParam(r, "tracking"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shipment)
}

func (s *Server) handleUpdateShipment(w http.ResponseWriter, r *http.Request) {
	var patch shipping.ShipmentPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	shipment, err := s.service.UpdateShipment(r.Context(), chi.URLParam(r, "tracking"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shipment)
}

func (s *Server) handleDeleteShipment(w http.ResponseWriter, r *http.Request) {
	ack, err := s.service.DeleteShipment(r.Context(), chi.URLParam(r, "tracking"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	tracking, err := s.service.Track(r.Context(), chi.URLParam(r, "tracking"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tracking)
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, shipping.NewError(shipping.KindValidation, "must be an integer").WithField(name)
	}
	return v, nil
}

func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return shipping.NewError(shipping.KindValidation, "unreadable request body").WithCause(err)
	}
	return unmarshalBody(body, dst)
}

func unmarshalBody(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return shipping.NewError(shipping.KindValidation, "has the wrong type").WithField(typeErr.Field).WithCause(err)
		}
		return shipping.NewError(shipping.KindValidation, "invalid JSON body").WithCause(err)
	}
	return nil
}
