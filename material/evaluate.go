package material

import (
	"fmt"

	"github.com/notargets/goam/utils"
)

// computePropertyFromTable interpolates a tabulated property at the given
// temperature. Queries below the first breakpoint saturate to the first
// value, queries at or above the last breakpoint to the last value, and the
// interior is piecewise linear. Padding duplicates never reach the division
// because interpolation requires a strictly greater breakpoint temperature.
func computePropertyFromTable(tables utils.BlockView, materialID, state, prop int,
	temperature float64) float64 {
	if temperature <= tables.At(materialID, state, prop, 0, 0) {
		return tables.At(materialID, state, prop, 0, 1)
	}
	for i := 1; i < TableSize; i++ {
		Ti := tables.At(materialID, state, prop, i, 0)
		if temperature < Ti {
			Tim1 := tables.At(materialID, state, prop, i-1, 0)
			vi := tables.At(materialID, state, prop, i, 1)
			vim1 := tables.At(materialID, state, prop, i-1, 1)
			return vim1 + (temperature-Tim1)*(vi-vim1)/(Ti-Tim1)
		}
	}
	return tables.At(materialID, state, prop, TableSize-1, 1)
}

// computePropertyFromPolynomial evaluates the stored coefficients by
// Horner's rule. Coefficients the input deck did not supply are zero.
func computePropertyFromPolynomial(polys utils.BlockView, materialID, state, prop int,
	temperature float64) (value float64) {
	for i := PolynomialOrder; i >= 0; i-- {
		value = value*temperature + polys.At(materialID, state, prop, i)
	}
	return
}

// Evaluate returns a single state property at the given temperature for one
// material in one pure state. Pure function of the loaded data; safe for
// concurrent callers.
func (db *PropertyDatabase) Evaluate(materialID int, state MaterialState,
	prop StateProperty, temperature float64) float64 {
	db.checkArgs(materialID, state, prop)
	if db.useTable {
		return computePropertyFromTable(db.statePropertyTables.View(),
			materialID, int(state), int(prop), temperature)
	}
	return computePropertyFromPolynomial(db.statePropertyPolynomials.View(),
		materialID, int(state), int(prop), temperature)
}

// ComputeMaterialProperty mixes a state property across phases with the
// given state fractions at the given temperature. This is the scalar entry
// point used inside assembly kernels.
func (db *PropertyDatabase) ComputeMaterialProperty(prop StateProperty,
	materialID int, stateRatios [NMaterialStates]float64, temperature float64) (value float64) {
	if db.useTable {
		tables := db.statePropertyTables.View()
		for state := 0; state < NMaterialStates; state++ {
			value += stateRatios[state] *
				computePropertyFromTable(tables, materialID, state, int(prop), temperature)
		}
		return
	}
	polys := db.statePropertyPolynomials.View()
	for state := 0; state < NMaterialStates; state++ {
		value += stateRatios[state] *
			computePropertyFromPolynomial(polys, materialID, state, int(prop), temperature)
	}
	return
}

// ComputeMaterialPropertyBatch evaluates a state property for a batch of
// points given raw material-id, state-ratio and temperature arrays.
// stateRatios is indexed [state][point]. The result is written into out,
// which determines the batch length.
func (db *PropertyDatabase) ComputeMaterialPropertyBatch(prop StateProperty,
	materialIDs []int, stateRatios [NMaterialStates][]float64,
	temperatures, out []float64) {
	if len(materialIDs) < len(out) || len(temperatures) < len(out) {
		panic(fmt.Sprintf("batch length mismatch: out %d, ids %d, temperatures %d",
			len(out), len(materialIDs), len(temperatures)))
	}
	for n := range out {
		var ratios [NMaterialStates]float64
		for state := 0; state < NMaterialStates; state++ {
			ratios[state] = stateRatios[state][n]
		}
		out[n] = db.ComputeMaterialProperty(prop, materialIDs[n], ratios, temperatures[n])
	}
}

// GetProperty returns a scalar material-level property (solidus, liquidus,
// latent heat, far-field temperatures).
func (db *PropertyDatabase) GetProperty(materialID int, prop Property) float64 {
	if materialID < 0 || materialID >= db.nMaterialIDs {
		panic(fmt.Sprintf("unknown material id %d", materialID))
	}
	return db.properties.View().At(materialID, int(prop))
}

// GetMechanicalProperty returns a solid-state mechanical property.
func (db *PropertyDatabase) GetMechanicalProperty(materialID int,
	prop MechanicalStateProperty) float64 {
	if int(prop) >= NMechanicalStateProperties {
		panic("unknown mechanical property requested")
	}
	return db.mechanicalProperties.View().At(materialID, int(prop))
}

func (db *PropertyDatabase) checkArgs(materialID int, state MaterialState,
	prop StateProperty) {
	if materialID < 0 || materialID >= db.nMaterialIDs {
		panic(fmt.Sprintf("unknown material id %d", materialID))
	}
	if int(state) >= NMaterialStates {
		panic(fmt.Sprintf("unknown material state %d", state))
	}
	if int(prop) >= NThermalStateProperties {
		panic(fmt.Sprintf("unknown state property %d", prop))
	}
}
