package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the identity a visitor checks in with.
type Role string

const (
	RoleSailor Role = "sailor"
	RoleDiver  Role = "diver"
)

// FixedName always resolves to FixedLocation without a lookup.
const FixedName = "Nishchal Srinarayanan"

// FixedLocation is the coordinate assigned to FixedName.
var FixedLocation = Coordinate{Lat: 30.253136, Lon: -79.253909}

// SourceFixed marks check-ins resolved through the fixed-name override.
const SourceFixed = "fixed"

// Locator resolves an approximate coordinate for a client IP. An empty IP
// asks the provider to locate the caller itself.
type Locator interface {
	Locate(ctx context.Context, ip string) (Coordinate, error)

	// Name identifies the provider in metrics and check-in records.
	Name() string
}

// Checkin is one submitted check-in form with its resolved location.
type Checkin struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Name      string     `json:"name"`
	HullID    string     `json:"hull_id,omitempty"`
	Location  Coordinate `json:"location"`
	Source    string     `json:"source"`
	CreatedAt time.Time  `json:"created_at"`
}

// ResolveLocation applies the fixed-name override, otherwise performs one
// lookup through locator. It returns the coordinate and the source label.
func ResolveLocation(ctx context.Context, name, ip string, locator Locator) (Coordinate, string, error) {
	if name == FixedName {
		return FixedLocation, SourceFixed, nil
	}
	if locator == nil {
		return Coordinate{}, "", fmt.Errorf("resolve location: %w", ErrLocationUnavailable)
	}
	loc, err := locator.Locate(ctx, ip)
	if err != nil {
		return Coordinate{}, locator.Name(), fmt.Errorf("resolve location: %w", err)
	}
	return loc, locator.Name(), nil
}

// NewCheckin builds a check-in record stamped with a fresh ID and the current time.
func NewCheckin(role Role, name, hullID string, loc Coordinate, source string) Checkin {
	if role != RoleSailor {
		hullID = ""
	}
	return Checkin{
		ID:        uuid.NewString(),
		Role:      role,
		Name:      name,
		HullID:    hullID,
		Location:  loc,
		Source:    source,
		CreatedAt: clock.Now().UTC(),
	}
}
