// Package putaway chooses storage locations for received stock from a
// prioritized set of per-warehouse rules.
package putaway

import (
	"encoding/json"
	"fmt"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/catalog"
)

// Kind tags a strategy variant.
type Kind string

const (
	KindFixedLocation    Kind = "FIXED_LOCATION"
	KindNearestAvailable Kind = "NEAREST_AVAILABLE"
	KindFEFO             Kind = "FEFO"
	KindABC              Kind = "ABC"
	KindBulkStorage      Kind = "BULK_STORAGE"
	KindCrossDock        Kind = "CROSS_DOCK"

	// KindFallback marks a decision no rule produced
	KindFallback Kind = "FALLBACK"
)

// Strategy is one rule variant. Each carries only the fields it needs.
type Strategy interface {
	Kind() Kind
	Validate() error
}

type FixedLocation struct {
	LocationID id.ID `json:"locationId"`
}

type NearestAvailable struct {
	// Zone restricts candidates; empty means any zone
	Zone catalog.ZoneType `json:"zone,omitempty"`
}

// FEFO sends batches expiring within MaxDaysToExpiry to LocationID.
type FEFO struct {
	LocationID      id.ID `json:"locationId"`
	MaxDaysToExpiry int   `json:"maxDaysToExpiry"`
}

// ABC sends products of Class to the first location of Zone with room.
type ABC struct {
	Class string           `json:"class"`
	Zone  catalog.ZoneType `json:"zone"`
}

// BulkStorage sends receipts of at least MinQuantity to a BULK location.
type BulkStorage struct {
	MinQuantity types.Quantity `json:"minQuantity"`
}

type CrossDock struct {
	LocationID id.ID `json:"locationId"`
}

func (FixedLocation) Kind() Kind    { return KindFixedLocation }
func (NearestAvailable) Kind() Kind { return KindNearestAvailable }
func (FEFO) Kind() Kind             { return KindFEFO }
func (ABC) Kind() Kind              { return KindABC }
func (BulkStorage) Kind() Kind      { return KindBulkStorage }
func (CrossDock) Kind() Kind        { return KindCrossDock }

func (s FixedLocation) Validate() error { return requireLocation(s.LocationID) }
func (s CrossDock) Validate() error     { return requireLocation(s.LocationID) }
func (NearestAvailable) Validate() error { return nil }

func (s FEFO) Validate() error {
	if err := requireLocation(s.LocationID); err != nil {
		return err
	}
	if s.MaxDaysToExpiry <= 0 {
		return apperror.NewValidation("maxDaysToExpiry must be positive")
	}
	return nil
}

func (s ABC) Validate() error {
	switch s.Class {
	case "A", "B", "C":
	default:
		return apperror.NewValidation("abc class must be A, B or C").WithDetail("class", s.Class)
	}
	if s.Zone == "" {
		return apperror.NewValidation("abc rule needs a zone")
	}
	return nil
}

func (s BulkStorage) Validate() error {
	if s.MinQuantity <= 0 {
		return apperror.NewValidation("minQuantity must be positive")
	}
	return nil
}

func requireLocation(locationID id.ID) error {
	if id.IsNil(locationID) {
		return apperror.NewValidation("locationId is required")
	}
	return nil
}

// Envelope is the persisted and wire form of a strategy.
type Envelope struct {
	Kind   Kind            `json:"kind"`
	Params json.RawMessage `json:"params"`
}

// Encode wraps s in an envelope.
func Encode(s Strategy) (Envelope, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s params: %w", s.Kind(), err)
	}
	return Envelope{Kind: s.Kind(), Params: raw}, nil
}

// Decode unwraps an envelope into its variant.
func Decode(env Envelope) (Strategy, error) {
	var s Strategy
	switch env.Kind {
	case KindFixedLocation:
		s = &FixedLocation{}
	case KindNearestAvailable:
		s = &NearestAvailable{}
	case KindFEFO:
		s = &FEFO{}
	case KindABC:
		s = &ABC{}
	case KindBulkStorage:
		s = &BulkStorage{}
	case KindCrossDock:
		s = &CrossDock{}
	default:
		return nil, apperror.NewValidation("unknown put-away strategy").WithDetail("kind", string(env.Kind))
	}
	if len(env.Params) > 0 {
		if err := json.Unmarshal(env.Params, s); err != nil {
			return nil, apperror.NewValidation("invalid put-away params").WithCause(err).WithDetail("kind", string(env.Kind))
		}
	}
	return deref(s), nil
}

func deref(s Strategy) Strategy {
	switch v := s.(type) {
	case *FixedLocation:
		return *v
	case *NearestAvailable:
		return *v
	case *FEFO:
		return *v
	case *ABC:
		return *v
	case *BulkStorage:
		return *v
	case *CrossDock:
		return *v
	}
	return s
}
