package graphql

import (
	"context"

	"github.com/tournevent/shipping/pkg/shipping"
)

func (r *Resolver) status(_ context.Context, _ map[string]any) (any, error) {
	return r.Service.Status(), nil
}

func (r *Resolver) provinces(ctx context.Context, _ map[string]any) (any, error) {
	return r.Service.Provinces(ctx)
}

func (r *Resolver) communes(ctx context.Context, args map[string]any) (any, error) {
	id, err := decodeArg[int](args, "provinceId")
	if err != nil {
		return nil, err
	}
	return r.Service.Communes(ctx, id)
}

func (r *Resolver) pickupCenters(ctx context.Context, args map[string]any) (any, error) {
	id, err := decodeArg[int](args, "provinceId")
	if err != nil {
		return nil, err
	}
	return r.Service.PickupCenters(ctx, id)
}

func (r *Resolver) feeQuote(ctx context.Context, args map[string]any) (any, error) {
	input, err := decodeArg[shipping.QuoteRequest](args, "input")
	if err != nil {
		return nil, err
	}
	return r.Service.Quote(ctx, input)
}

func (r *Resolver) shipment(ctx context.Context, args map[string]any) (any, error) {
	tracking, err := decodeArg[string](args, "tracking")
	if err != nil {
		return nil, err
	}
	return r.Service.GetShipment(ctx, tracking)
}

func (r *Resolver) shipments(ctx context.Context, args map[string]any) (any, error) {
	filter, err := decodeArg[shipping.ShipmentFilter](args, "filter")
	if err != nil {
		return nil, err
	}
	return r.Service.ListShipments(ctx, filter)
}

func (r *Resolver) tracking(ctx context.Context, args map[string]any) (any, error) {
	tracking, err := decodeArg[string](args, "tracking")
	if err != nil {
		return nil, err
	}
	return r.Service.Track(ctx, tracking)
}

func (r *Resolver) shipmentStats(ctx context.Context, _ map[string]any) (any, error) {
	return r.Service.FleetStats(ctx)
}

func (r *Resolver) createShipment(ctx context.Context, args map[string]any) (any, error) {
	input, err := decodeArg[shipping.ShipmentRequest](args, "input")
	if err != nil {
		return nil, err
	}
	return r.Service.CreateShipment(ctx, input)
}

func (r *Resolver) updateShipment(ctx context.Context, args map[string]any) (any, error) {
	tracking, err := decodeArg[string](args, "tracking")
	if err != nil {
		return nil, err
	}
	patch, err := decodeArg[shipping.ShipmentPatch](args, "input")
	if err != nil {
		return nil, err
	}
	return r.Service.UpdateShipment(ctx, tracking, patch)
}

func (r *Resolver) deleteShipment(ctx context.Context, args map[string]any) (any, error) {
	tracking, err := decodeArg[string](args, "tracking")
	if err != nil {
		return nil, err
	}
	return r.Service.DeleteShipment(ctx, tracking)
}
