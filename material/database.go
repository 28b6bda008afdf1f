package material

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/notargets/goam/InputParameters"
	"github.com/notargets/goam/utils"
)

// PropertyDatabase holds, per material id, per material state, per property,
// either a table of (temperature, value) breakpoints or a polynomial's
// coefficients, selected once globally at load time. The database is
// immutable after loading and safe for concurrent reads.
//
// Storage layout (host blocks, row major):
//
//	properties               (nMaterialIDs, NProperties)
//	statePropertyTables      (nMaterialIDs, NMaterialStates, NThermalStateProperties, TableSize, 2)
//	statePropertyPolynomials (nMaterialIDs, NMaterialStates, NThermalStateProperties, PolynomialOrder+1)
//	mechanicalProperties     (nMaterialIDs, NMechanicalStateProperties)
type PropertyDatabase struct {
	useTable     bool
	nMaterialIDs int

	properties               *utils.MemoryBlock
	statePropertyTables      *utils.MemoryBlock
	statePropertyPolynomials *utils.MemoryBlock
	mechanicalProperties     *utils.MemoryBlock
}

func (db *PropertyDatabase) UseTable() bool    { return db.useTable }
func (db *PropertyDatabase) NMaterialIDs() int { return db.nMaterialIDs }

// LoadDatabase parses the materials section of the input deck into a
// PropertyDatabase. All malformed input is a fatal configuration error
// surfaced here, never at update time.
func LoadDatabase(cfg *InputParameters.MaterialsInput) (db *PropertyDatabase, err error) {
	db = &PropertyDatabase{}
	switch cfg.PropertyFormat {
	case "table":
		db.useTable = true
	case "polynomial":
		db.useTable = false
	default:
		return nil, fmt.Errorf("unknown property_format %q, expected \"table\" or \"polynomial\"",
			cfg.PropertyFormat)
	}
	if cfg.NMaterials <= 0 {
		return nil, fmt.Errorf("materials.n_materials must be positive, got %d", cfg.NMaterials)
	}
	if len(cfg.Materials) < cfg.NMaterials {
		return nil, fmt.Errorf("n_materials is %d but only %d material_<id> entries found",
			cfg.NMaterials, len(cfg.Materials))
	}

	// One contiguous block covers ids 0..maxID, so the largest material id
	// should be kept as small as possible.
	maxID := 0
	for id := range cfg.Materials {
		if id > maxID {
			maxID = id
		}
	}
	db.nMaterialIDs = maxID + 1

	db.properties = utils.NewMemoryBlock(db.nMaterialIDs, NProperties)
	db.mechanicalProperties = utils.NewMemoryBlock(db.nMaterialIDs, NMechanicalStateProperties)
	if db.useTable {
		db.statePropertyTables = utils.NewMemoryBlock(db.nMaterialIDs,
			NMaterialStates, NThermalStateProperties, TableSize, 2)
	} else {
		db.statePropertyPolynomials = utils.NewMemoryBlock(db.nMaterialIDs,
			NMaterialStates, NThermalStateProperties, PolynomialOrder+1)
	}

	for id, mi := range cfg.Materials {
		if err = db.loadMaterial(id, mi); err != nil {
			return nil, fmt.Errorf("material_%d: %w", id, err)
		}
	}
	if err = db.validateTransitionRange(cfg); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *PropertyDatabase) loadMaterial(id int, mi InputParameters.MaterialInput) (err error) {
	for state := 0; state < NMaterialStates; state++ {
		stateDB := mi.State(materialStateNames[state])
		if stateDB == nil {
			continue
		}
		// Thermal properties for this state.
		for p := 0; p < NThermalStateProperties; p++ {
			raw, ok := stateDB[statePropertyNames[p]]
			if !ok {
				continue
			}
			if err = db.loadStateProperty(id, state, p, raw); err != nil {
				return fmt.Errorf("%s.%s: %w",
					materialStateNames[state], statePropertyNames[p], err)
			}
		}
		// Mechanical properties only exist for the solid state. They are
		// treated as temperature independent: table mode keeps the first
		// breakpoint value, polynomial mode the constant coefficient.
		if MaterialState(state) != Solid {
			continue
		}
		for p := 0; p < NMechanicalStateProperties; p++ {
			raw, ok := stateDB[mechanicalPropertyNames[p]]
			if !ok {
				continue
			}
			var val float64
			if val, err = db.firstValue(raw); err != nil {
				return fmt.Errorf("solid.%s: %w", mechanicalPropertyNames[p], err)
			}
			db.mechanicalProperties.View().Set(val, id, p)
		}
	}

	// Scalar material-level properties, defaulting to the largest
	// representable value when absent. An unset liquidus never melts.
	propertiesView := db.properties.View()
	for p := 0; p < NProperties; p++ {
		if val := mi.Scalar(propertyNames[p]); val != nil {
			propertiesView.Set(*val, id, p)
		} else {
			propertiesView.Set(math.MaxFloat64, id, p)
		}
	}
	return nil
}

// loadStateProperty parses one property string in the active format and
// stores it, padding tables by repeating the last breakpoint.
func (db *PropertyDatabase) loadStateProperty(id, state, prop int, raw string) error {
	clean := stripSpace(raw)
	if db.useTable {
		pairs := strings.Split(clean, ";")
		if len(pairs) > TableSize {
			return fmt.Errorf("too many breakpoints (%d), table capacity is %d",
				len(pairs), TableSize)
		}
		view := db.statePropertyTables.View()
		prevT := math.Inf(-1)
		for i, pair := range pairs {
			tv := strings.Split(pair, ",")
			if len(tv) != 2 {
				return fmt.Errorf("breakpoint %d: expected \"T,value\", got %q", i, pair)
			}
			T, err := strconv.ParseFloat(tv[0], 64)
			if err != nil {
				return fmt.Errorf("breakpoint %d temperature: %w", i, err)
			}
			val, err := strconv.ParseFloat(tv[1], 64)
			if err != nil {
				return fmt.Errorf("breakpoint %d value: %w", i, err)
			}
			if T <= prevT {
				return fmt.Errorf("breakpoint temperatures must be strictly increasing, got %g after %g",
					T, prevT)
			}
			prevT = T
			view.Set(T, id, state, prop, i, 0)
			view.Set(val, id, state, prop, i, 1)
		}
		// Pad the remaining capacity with the last breakpoint.
		for i := len(pairs); i < TableSize; i++ {
			view.Set(view.At(id, state, prop, i-1, 0), id, state, prop, i, 0)
			view.Set(view.At(id, state, prop, i-1, 1), id, state, prop, i, 1)
		}
		return nil
	}
	coeffs := strings.Split(clean, ",")
	if len(coeffs) > PolynomialOrder+1 {
		return fmt.Errorf("too many coefficients (%d), polynomial capacity is degree %d",
			len(coeffs), PolynomialOrder)
	}
	view := db.statePropertyPolynomials.View()
	for i, c := range coeffs {
		val, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return fmt.Errorf("coefficient %d: %w", i, err)
		}
		view.Set(val, id, state, prop, i)
	}
	return nil
}

// firstValue reduces a property string to its temperature-independent value:
// the first breakpoint's value in table mode, c0 in polynomial mode.
func (db *PropertyDatabase) firstValue(raw string) (float64, error) {
	clean := stripSpace(raw)
	if db.useTable {
		pair := strings.Split(strings.Split(clean, ";")[0], ",")
		if len(pair) != 2 {
			return 0, fmt.Errorf("expected \"T,value\", got %q", clean)
		}
		return strconv.ParseFloat(pair[1], 64)
	}
	return strconv.ParseFloat(strings.Split(clean, ",")[0], 64)
}

// validateTransitionRange rejects a solidus at or above the liquidus, which
// would divide by zero in the melt-fraction model. Materials that set
// neither never melt and are fine.
func (db *PropertyDatabase) validateTransitionRange(cfg *InputParameters.MaterialsInput) error {
	view := db.properties.View()
	for id := range cfg.Materials {
		solidus := view.At(id, int(Solidus))
		liquidus := view.At(id, int(Liquidus))
		if solidus == math.MaxFloat64 || liquidus == math.MaxFloat64 {
			continue
		}
		if solidus >= liquidus {
			return fmt.Errorf("material_%d: solidus (%g) must be below liquidus (%g)",
				id, solidus, liquidus)
		}
	}
	return nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}
