package material

// MaterialState enumerates the physical phases a point of material can be
// in. The ordering fixes the convention for user-assigned initial state
// labels on mesh cells.
type MaterialState uint8

const (
	Solid MaterialState = iota
	Powder
	Liquid
)

const NMaterialStates = 3

var materialStateNames = [NMaterialStates]string{"solid", "powder", "liquid"}

// StateProperty enumerates the temperature- and state-dependent thermal
// properties, in storage order. The boundary-condition update only touches
// properties from ThermalConductivityZ onward.
type StateProperty uint8

const (
	Density StateProperty = iota
	SpecificHeat
	ThermalConductivityX
	ThermalConductivityZ
	Emissivity
	RadiationHeatTransferCoef
	ConvectionHeatTransferCoef
)

const NThermalStateProperties = 7

// First property touched by UpdateBoundaryMaterialProperties. Density,
// specific heat and the in-plane conductivity play no role in the boundary
// flux law.
const firstBoundaryProperty = 3

var statePropertyNames = []string{
	"density",
	"specific_heat",
	"thermal_conductivity_x",
	"thermal_conductivity_z",
	"emissivity",
	"radiation_heat_transfer_coef",
	"convection_heat_transfer_coef",
}

// MechanicalStateProperty enumerates the mechanical properties. They are a
// separate enumeration from the thermal ones: the input format lists them as
// additional per-state keys, but storage and lookup never share index
// arithmetic with StateProperty. Mechanical properties only exist for the
// solid state and are treated as temperature independent.
type MechanicalStateProperty uint8

const (
	YoungsModulus MechanicalStateProperty = iota
	PoissonsRatio
	ThermalExpansionCoef
)

const NMechanicalStateProperties = 3

var mechanicalPropertyNames = []string{
	"youngs_modulus",
	"poissons_ratio",
	"thermal_expansion_coef",
}

// Property enumerates the scalar, state-independent material properties.
// Unset entries default to math.MaxFloat64 so that, e.g., an unset liquidus
// never triggers melting.
type Property uint8

const (
	Liquidus Property = iota
	Solidus
	LatentHeat
	RadiationTemperatureInfty
	ConvectionTemperatureInfty
)

const NProperties = 5

var propertyNames = [NProperties]string{
	"liquidus",
	"solidus",
	"latent_heat",
	"radiation_temperature_infty",
	"convection_temperature_infty",
}

const (
	// PolynomialOrder is the fixed maximum degree for polynomial-mode
	// properties; unused high-order coefficients stay zero.
	PolynomialOrder = 4

	// TableSize is the fixed breakpoint capacity for table-mode properties;
	// shorter inputs are padded by repeating the last breakpoint.
	TableSize = 16

	// StefanBoltzmann is the radiation constant sigma in W/(m^2 K^4).
	StefanBoltzmann = 5.670374419e-8
)
