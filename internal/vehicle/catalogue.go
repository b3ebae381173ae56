// Package vehicle holds the vehicle-profile and charger-type catalogues:
// read-only shared data loaded once at process init (spec.md §3, §5).
package vehicle

import "fmt"

// ConnectorType is a physical connector shape a vehicle profile supports.
type ConnectorType string

const (
	ConnectorCCS2    ConnectorType = "CCS2"
	ConnectorCHAdeMO ConnectorType = "CHAdeMO"
	ConnectorType2   ConnectorType = "Type2"
)

// CurvePoint is one (socPercent, watts) sample of a charging curve.
type CurvePoint struct {
	SoCPercent float64
	Watts      float64
}

// Profile is the immutable-after-load vehicle profile of spec.md §3.
type Profile struct {
	ID              string
	CapacityWh      float64
	MaxDCPowerKW    float64
	MaxACPowerKW    float64
	ACPhases        int
	ACMaxA          float64
	ConnectorTypes  []ConnectorType
	DCCurve         []CurvePoint // sorted ascending by SoCPercent; nil uses the default envelope
	ACCurve         []CurvePoint
}

// ChargerKind enumerates the fixed charger types of spec.md §3.
type ChargerKind string

const (
	ChargerACMono ChargerKind = "AC_MONO"
	ChargerACBi   ChargerKind = "AC_BI"
	ChargerACTri  ChargerKind = "AC_TRI"
	ChargerDC50   ChargerKind = "DC_50"
	ChargerDC150  ChargerKind = "DC_150"
	ChargerDC350  ChargerKind = "DC_350"
)

// ChargerType is an immutable constant describing one EVSE class, spec.md §3.
type ChargerType struct {
	Kind           ChargerKind
	Phases         int
	NominalVoltage float64
	MaxCurrentA    float64
	MaxPowerKW     float64
	IsDC           bool
}

// ChargerTypes is the immutable catalogue of supported charger classes.
var ChargerTypes = map[ChargerKind]ChargerType{
	ChargerACMono: {Kind: ChargerACMono, Phases: 1, NominalVoltage: 230, MaxCurrentA: 32, MaxPowerKW: 7.4},
	ChargerACBi:   {Kind: ChargerACBi, Phases: 2, NominalVoltage: 230, MaxCurrentA: 32, MaxPowerKW: 14.7},
	ChargerACTri:  {Kind: ChargerACTri, Phases: 3, NominalVoltage: 230, MaxCurrentA: 32, MaxPowerKW: 22.1},
	ChargerDC50:   {Kind: ChargerDC50, Phases: 0, NominalVoltage: 400, MaxCurrentA: 125, MaxPowerKW: 50, IsDC: true},
	ChargerDC150:  {Kind: ChargerDC150, Phases: 0, NominalVoltage: 500, MaxCurrentA: 300, MaxPowerKW: 150, IsDC: true},
	ChargerDC350:  {Kind: ChargerDC350, Phases: 0, NominalVoltage: 920, MaxCurrentA: 500, MaxPowerKW: 350, IsDC: true},
}

// Catalogue is the read-only-after-load set of vehicle profiles, indexed by
// id, shared across every session (spec.md §5).
type Catalogue struct {
	profiles map[string]Profile
}

// NewCatalogue builds a Catalogue from a fixed profile set. Meant to be
// called once at process init; the returned Catalogue is never mutated.
func NewCatalogue(profiles []Profile) (*Catalogue, error) {
	c := &Catalogue{profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		if p.ID == "" {
			return nil, fmt.Errorf("vehicle profile missing id")
		}
		if p.CapacityWh <= 0 {
			return nil, fmt.Errorf("vehicle profile %s: capacityWh must be positive", p.ID)
		}
		c.profiles[p.ID] = p
	}
	return c, nil
}

// Lookup returns the profile for id, or false if unknown. A missing vehicle
// reference at session-creation time is a ConfigurationError (spec.md §7).
func (c *Catalogue) Lookup(id string) (Profile, bool) {
	p, ok := c.profiles[id]
	return p, ok
}

// Default is a reasonable stand-in profile; cmd/fleetsim gives it to every
// session it creates. session.New does not substitute it for a Template
// with no vehicle profile.
func Default() Profile {
	return Profile{
		ID:             "generic-ev",
		CapacityWh:     60000,
		MaxDCPowerKW:   120,
		MaxACPowerKW:   11,
		ACPhases:       3,
		ACMaxA:         16,
		ConnectorTypes: []ConnectorType{ConnectorCCS2, ConnectorType2},
	}
}

// DefaultCatalogue wraps Default() as the single-entry catalogue used when
// no explicit profile set is configured.
func DefaultCatalogue() *Catalogue {
	c, _ := NewCatalogue([]Profile{Default()})
	return c
}
