package weighment

import (
	"context"
	"fmt"
	"strings"
)

// VehicleLinkPolicy decides what happens when a known vehicle arrives with
// a different farmer than the one it is linked to.
type VehicleLinkPolicy string

const (
	// LinkFirstUse keeps the farmer recorded when the vehicle was first seen.
	LinkFirstUse VehicleLinkPolicy = "first_use"
	// LinkLatestUse re-links the vehicle to the farmer of the latest weighment.
	LinkLatestUse VehicleLinkPolicy = "latest_use"
)

// ParseVehicleLinkPolicy maps a config value to a policy. Empty means first use.
func ParseVehicleLinkPolicy(s string) (VehicleLinkPolicy, error) {
	switch VehicleLinkPolicy(s) {
	case "", LinkFirstUse:
		return LinkFirstUse, nil
	case LinkLatestUse:
		return LinkLatestUse, nil
	default:
		return "", fmt.Errorf("unknown vehicle link policy: %s", s)
	}
}

// IdentityResolver maps free-text farmer names and vehicle plates to stored
// records, creating them on first use. It is the only writer of farmers and
// vehicles.
//
// Uniqueness relies on the storage layer: InsertFarmerIfAbsent and
// InsertVehicleIfAbsent return the existing row when another terminal won
// the race, so concurrent first use converges on a single record.
type IdentityResolver struct {
	database        Database
	clock           Clock
	idgen           IDGenerator
	logger          Logger
	linkPolicy      VehicleLinkPolicy
	normalizePlates bool
}

// NewIdentityResolver creates a resolver with the first-use link policy.
func NewIdentityResolver(database Database, clock Clock, idgen IDGenerator, logger Logger) *IdentityResolver {
	return &IdentityResolver{
		database:   database,
		clock:      clock,
		idgen:      idgen,
		logger:     logger,
		linkPolicy: LinkFirstUse,
	}
}

// SetLinkPolicy changes how repeat sightings of a vehicle are linked.
func (r *IdentityResolver) SetLinkPolicy(p VehicleLinkPolicy) {
	r.linkPolicy = p
}

// SetNormalizePlates enables upper-casing plates and stripping spaces and hyphens.
func (r *IdentityResolver) SetNormalizePlates(enabled bool) {
	r.normalizePlates = enabled
}

// NormalizePlate returns the plate in the form used for matching.
func (r *IdentityResolver) NormalizePlate(plate string) string {
	plate = strings.TrimSpace(plate)
	if !r.normalizePlates {
		return plate
	}
	plate = strings.ToUpper(plate)
	return strings.Map(func(c rune) rune {
		if c == ' ' || c == '-' || c == '\t' {
			return -1
		}
		return c
	}, plate)
}

// ResolveFarmer returns the id of the farmer with exactly this name,
// creating the farmer if none exists.
func (r *IdentityResolver) ResolveFarmer(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: farmer name is required", ErrValidation)
	}

	existing, err := r.database.FindFarmerByName(ctx, name)
	if err != nil {
		return "", fmt.Errorf("%w: finding farmer %q: %w", ErrIdentityResolution, name, err)
	}
	if existing != nil {
		return existing.ID, nil
	}

	stored, err := r.database.InsertFarmerIfAbsent(ctx, &Farmer{
		ID:        r.idgen.New(),
		Name:      name,
		CreatedAt: r.clock.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("%w: creating farmer %q: %w", ErrIdentityResolution, name, err)
	}

	r.logger.Info("farmer created", "farmer_id", stored.ID, "name", name)
	return stored.ID, nil
}

// ResolveVehicle returns the id of the vehicle with this plate, creating it
// linked to farmerID if none exists.
func (r *IdentityResolver) ResolveVehicle(ctx context.Context, plate string, farmerID string) (string, error) {
	plate = r.NormalizePlate(plate)
	if plate == "" {
		return "", fmt.Errorf("%w: vehicle plate is required", ErrValidation)
	}

	existing, err := r.database.FindVehicleByPlate(ctx, plate)
	if err != nil {
		return "", fmt.Errorf("%w: finding vehicle %q: %w", ErrIdentityResolution, plate, err)
	}
	if existing != nil {
		if err := r.relink(ctx, existing, farmerID); err != nil {
			return "", err
		}
		return existing.ID, nil
	}

	stored, err := r.database.InsertVehicleIfAbsent(ctx, &Vehicle{
		ID:          r.idgen.New(),
		NumberPlate: plate,
		FarmerID:    farmerID,
		CreatedAt:   r.clock.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("%w: creating vehicle %q: %w", ErrIdentityResolution, plate, err)
	}

	r.logger.Info("vehicle created", "vehicle_id", stored.ID, "plate", plate, "farmer_id", stored.FarmerID)
	return stored.ID, nil
}

// relink applies the link policy to a vehicle seen again.
func (r *IdentityResolver) relink(ctx context.Context, v *Vehicle, farmerID string) error {
	if r.linkPolicy != LinkLatestUse || v.FarmerID == farmerID {
		return nil
	}
	if err := r.database.UpdateVehicleFarmer(ctx, v.ID, farmerID); err != nil {
		return fmt.Errorf("%w: re-linking vehicle %q: %w", ErrIdentityResolution, v.NumberPlate, err)
	}
	r.logger.Info("vehicle re-linked", "vehicle_id", v.ID, "from_farmer_id", v.FarmerID, "to_farmer_id", farmerID)
	return nil
}
