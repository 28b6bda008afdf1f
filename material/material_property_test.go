package material

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/goam/InputParameters"
	"github.com/notargets/goam/mesh"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func parseMaterials(t *testing.T, deck string) *InputParameters.MaterialsInput {
	t.Helper()
	ip := &InputParameters.InputParameters{}
	require.NoError(t, ip.Parse([]byte(deck)))
	return &ip.Materials
}

const polynomialDeck = `
materials:
  n_materials: 1
  property_format: polynomial
  material_0:
    solidus: 1675.
    liquidus: 1708.
    latent_heat: 290000.
    radiation_temperature_infty: 300.
    solid:
      density: "7904."
      specific_heat: "714."
      thermal_conductivity_x: "31.4"
      thermal_conductivity_z: "31.4"
      emissivity: "0.9"
      youngs_modulus: "1.9e11"
      poissons_ratio: "0.29"
    powder:
      density: "3952."
      specific_heat: "714."
      thermal_conductivity_x: "0.4"
      thermal_conductivity_z: "0.4"
      emissivity: "0.9"
    liquid:
      density: "7302."
      specific_heat: "847."
      thermal_conductivity_x: "35.1"
      thermal_conductivity_z: "35.1"
      emissivity: "0.9"
`

func TestDatabasePolynomialRoundTrip(t *testing.T) {
	db, err := LoadDatabase(parseMaterials(t, `
materials:
  n_materials: 1
  property_format: polynomial
  material_0:
    solid:
      density: "2, 3"
`))
	require.NoError(t, err)
	assert.False(t, db.UseTable())
	// value(T) = 2 + 3*T
	assert.True(t, near(32., db.Evaluate(0, Solid, Density, 10.), 1.e-12))
	assert.True(t, near(2., db.Evaluate(0, Solid, Density, 0.), 1.e-12))
	// Properties never specified evaluate to zero
	assert.True(t, near(0., db.Evaluate(0, Liquid, Density, 10.), 1.e-12))
}

func TestDatabaseTableRoundTrip(t *testing.T) {
	db, err := LoadDatabase(parseMaterials(t, `
materials:
  n_materials: 1
  property_format: table
  material_0:
    solid:
      density: "0,100; 10,200"
`))
	require.NoError(t, err)
	assert.True(t, db.UseTable())
	// Midpoint interpolation, clamp low, clamp high
	assert.True(t, near(150., db.Evaluate(0, Solid, Density, 5.), 1.e-12))
	assert.True(t, near(100., db.Evaluate(0, Solid, Density, -1.), 1.e-12))
	assert.True(t, near(200., db.Evaluate(0, Solid, Density, 20.), 1.e-12))
	// Queries at stored breakpoints return exactly the stored values
	assert.Equal(t, 100., db.Evaluate(0, Solid, Density, 0.))
	assert.Equal(t, 200., db.Evaluate(0, Solid, Density, 10.))
}

func TestDatabaseTableInterior(t *testing.T) {
	db, err := LoadDatabase(parseMaterials(t, `
materials:
  n_materials: 1
  property_format: table
  material_0:
    liquid:
      specific_heat: "0,0; 1,10; 2,40; 4,100"
`))
	require.NoError(t, err)
	assert.True(t, near(5., db.Evaluate(0, Liquid, SpecificHeat, 0.5), 1.e-12))
	assert.True(t, near(25., db.Evaluate(0, Liquid, SpecificHeat, 1.5), 1.e-12))
	assert.True(t, near(70., db.Evaluate(0, Liquid, SpecificHeat, 3.), 1.e-12))
	assert.Equal(t, 40., db.Evaluate(0, Liquid, SpecificHeat, 2.))
	// Idempotent and order independent
	assert.True(t, near(25., db.Evaluate(0, Liquid, SpecificHeat, 1.5), 1.e-12))
}

func TestDatabaseErrors(t *testing.T) {
	// Too many coefficients for the polynomial capacity
	_, err := LoadDatabase(parseMaterials(t, `
materials:
  n_materials: 1
  property_format: polynomial
  material_0:
    solid:
      density: "1,2,3,4,5,6,7"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many coefficients")

	// Too many breakpoints for the table capacity
	pairs := make([]string, TableSize+1)
	for i := range pairs {
		pairs[i] = fmt.Sprintf("%d,%d", i, i)
	}
	_, err = LoadDatabase(parseMaterials(t, `
materials:
  n_materials: 1
  property_format: table
  material_0:
    solid:
      density: "`+strings.Join(pairs, ";")+`"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many breakpoints")

	// Non-increasing breakpoint temperatures are rejected at load time
	_, err = LoadDatabase(parseMaterials(t, `
materials:
  n_materials: 1
  property_format: table
  material_0:
    solid:
      density: "0,100; 0,200"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strictly increasing")

	// A solidus at or above the liquidus would divide by zero at update time
	_, err = LoadDatabase(parseMaterials(t, `
materials:
  n_materials: 1
  property_format: polynomial
  material_0:
    solidus: 1700.
    liquidus: 1700.
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "solidus")

	// Unknown format flag
	_, err = LoadDatabase(parseMaterials(t, `
materials:
  n_materials: 1
  property_format: spline
  material_0: {}
`))
	require.Error(t, err)
}

func TestDatabaseScalarDefaults(t *testing.T) {
	db, err := LoadDatabase(parseMaterials(t, `
materials:
  n_materials: 1
  property_format: polynomial
  material_0:
    solidus: 1675.
`))
	require.NoError(t, err)
	assert.Equal(t, 1675., db.GetProperty(0, Solidus))
	// Unset scalars default to the largest representable value so an unset
	// liquidus never triggers melting
	assert.Equal(t, math.MaxFloat64, db.GetProperty(0, Liquidus))
	assert.Equal(t, math.MaxFloat64, db.GetProperty(0, LatentHeat))
}

// uniformTestSetup builds a small grid with every node at the given
// temperature and a freshly initialized material state on it.
func uniformTestSetup(t *testing.T, deck string, nx, ny int,
	temperature float64) (msh *mesh.Mesh, mp *MaterialProperty, T []float64) {
	t.Helper()
	db, err := LoadDatabase(parseMaterials(t, deck))
	require.NoError(t, err)
	msh = mesh.NewUniformGrid(nx, ny, 1., 1.)
	mp = NewMaterialProperty(msh, db, 2)
	T = make([]float64, msh.NNodes)
	for i := range T {
		T[i] = temperature
	}
	return
}

func TestMeltFraction(t *testing.T) {
	var (
		S = 1675.
		L = 1708.
	)
	cases := []struct {
		temperature, liquid float64
	}{
		{300., 0.},
		{S, 0.},
		{S + 0.25*(L-S), 0.25},
		{1690., (1690. - S) / (L - S)},
		{L, 1.},
		{3000., 1.},
	}
	for _, tc := range cases {
		msh, mp, T := uniformTestSetup(t, polynomialDeck, 2, 2, tc.temperature)
		mp.Update(msh, T)
		for k := range msh.Cells {
			assert.True(t, near(tc.liquid, mp.GetStateRatio(k, Liquid), 1.e-12),
				"T=%g", tc.temperature)
		}
	}
}

func TestStateFractionsSumToOne(t *testing.T) {
	msh, mp, T := uniformTestSetup(t, polynomialDeck, 4, 4, 300.)
	msh.SetPowderLayers(2)
	mp = NewMaterialProperty(msh, mp.Database(), 2)
	sequence := []float64{300., 1680., 1700., 1750., 1690., 1600., 300., 1710.}
	for _, temp := range sequence {
		for i := range T {
			T[i] = temp
		}
		mp.Update(msh, T)
		for k := range msh.Cells {
			sum := mp.GetStateRatio(k, Solid) + mp.GetStateRatio(k, Powder) +
				mp.GetStateRatio(k, Liquid)
			assert.True(t, near(1., sum, 1.e-9), "T=%g cell=%d sum=%g", temp, k, sum)
		}
	}
}

func TestPowderOnlyShrinks(t *testing.T) {
	msh, mp, T := uniformTestSetup(t, polynomialDeck, 4, 4, 300.)
	msh.SetPowderLayers(4) // everything starts as powder
	mp = NewMaterialProperty(msh, mp.Database(), 2)

	prev := make([]float64, len(msh.Cells))
	for k := range msh.Cells {
		prev[k] = mp.GetStateRatio(k, Powder)
		assert.Equal(t, 1., prev[k])
	}
	// Heat into the mushy zone, melt fully, then cool back down: the powder
	// fraction must never increase, and stays zero after full melt.
	sequence := []float64{1690., 1708., 300., 1690., 300.}
	for _, temp := range sequence {
		for i := range T {
			T[i] = temp
		}
		mp.Update(msh, T)
		for k := range msh.Cells {
			p := mp.GetStateRatio(k, Powder)
			assert.True(t, p <= prev[k]+1.e-12, "T=%g: powder grew %g -> %g",
				temp, prev[k], p)
			prev[k] = p
		}
	}
	for k := range msh.Cells {
		assert.Equal(t, 0., prev[k])
		assert.True(t, near(1., mp.GetStateRatio(k, Solid), 1.e-12))
	}
}

func TestMushyZoneLatentHeat(t *testing.T) {
	var (
		S, L       = 1675., 1708.
		latent     = 290000.
		T0         = 1690.
		liquid     = (T0 - S) / (L - S)
		solidCp    = 714.
		liquidCp   = 847.
		correction = latent / (L - S) // state fractions sum to one
	)
	msh, mp, T := uniformTestSetup(t, polynomialDeck, 2, 2, T0)
	mp.Update(msh, T)
	for k := range msh.Cells {
		assert.True(t, near(liquid, mp.GetStateRatio(k, Liquid), 1.e-12))
		expected := (1.-liquid)*solidCp + liquid*liquidCp + correction
		assert.True(t, near(expected, mp.GetCellValue(k, SpecificHeat), 1.e-9),
			"cp=%g expected=%g", mp.GetCellValue(k, SpecificHeat), expected)
		// ~8787.9 added per unit state fraction for this alloy
		assert.True(t, near(8787.878787, correction, 1.e-5))
	}
}

func TestRadiationHeatTransferCoef(t *testing.T) {
	deck := `
materials:
  n_materials: 1
  property_format: polynomial
  material_0:
    radiation_temperature_infty: 300.
    solid:
      emissivity: "0.9"
`
	msh, mp, T := uniformTestSetup(t, deck, 2, 2, 1000.)
	mp.Update(msh, T)
	expected := 0.9 * StefanBoltzmann * (1000. + 300.) * (1000.*1000. + 300.*300.)
	for k := range msh.Cells {
		assert.True(t, near(expected, mp.GetCellValue(k, RadiationHeatTransferCoef), 1.e-9))
		assert.True(t, near(72.3, expected, 0.1))
	}
}

func TestBoundaryUpdateWriteSet(t *testing.T) {
	msh, mp, T := uniformTestSetup(t, polynomialDeck, 2, 2, 300.)
	mp.UpdateBoundaryMaterialProperties(msh, T)
	for k := range msh.Cells {
		// Properties below the boundary range stay zero
		assert.Equal(t, 0., mp.GetCellValue(k, Density))
		assert.Equal(t, 0., mp.GetCellValue(k, SpecificHeat))
		assert.Equal(t, 0., mp.GetCellValue(k, ThermalConductivityX))
		// Properties in the boundary range are populated
		assert.True(t, near(31.4, mp.GetCellValue(k, ThermalConductivityZ), 1.e-12))
		assert.True(t, near(0.9, mp.GetCellValue(k, Emissivity), 1.e-12))
		assert.True(t, mp.GetCellValue(k, RadiationHeatTransferCoef) > 0.)
		// The state is untouched by the boundary variant
		assert.Equal(t, 1., mp.GetStateRatio(k, Solid))
	}

	// The full update touches the whole range
	mp.Update(msh, T)
	for k := range msh.Cells {
		assert.True(t, near(7904., mp.GetCellValue(k, Density), 1.e-12))
		assert.True(t, near(714., mp.GetCellValue(k, SpecificHeat), 1.e-12))
		assert.True(t, near(31.4, mp.GetCellValue(k, ThermalConductivityX), 1.e-12))
	}
}

func TestTemperatureAveraging(t *testing.T) {
	db, err := LoadDatabase(parseMaterials(t, polynomialDeck))
	require.NoError(t, err)
	msh := mesh.NewUniformGrid(4, 2, 4., 2.)
	mp := NewMaterialProperty(msh, db, 1)

	// A nodal field linear in x averages to the cell-center abscissa
	T := make([]float64, msh.NNodes)
	for n := range T {
		x, _ := msh.NodeCoords(n)
		T[n] = x
	}
	mp.Update(msh, T)
	avg := mp.TemperatureAverage()
	for k := range msh.Cells {
		xc, _ := msh.CellCenter(k)
		assert.True(t, near(xc, avg[mp.DofIndex(k)], 1.e-12),
			"cell %d: avg %g, center %g", k, avg[mp.DofIndex(k)], xc)
	}
}

func TestInactiveCellsKeepPreviousAverage(t *testing.T) {
	msh, mp, T := uniformTestSetup(t, polynomialDeck, 2, 2, 500.)
	mp.Update(msh, T)

	msh.Cells[0].Active = false
	for i := range T {
		T[i] = 900.
	}
	mp.Update(msh, T)
	avg := mp.TemperatureAverage()
	assert.True(t, near(500., avg[mp.DofIndex(0)], 1.e-12))
	for k := 1; k < len(msh.Cells); k++ {
		assert.True(t, near(900., avg[mp.DofIndex(k)], 1.e-12))
	}
}

func TestMismatchedMeshesPanics(t *testing.T) {
	msh, mp, T := uniformTestSetup(t, polynomialDeck, 2, 2, 300.)
	other := mesh.NewUniformGrid(3, 3, 1., 1.)
	assert.Panics(t, func() { mp.Update(other, T) })
	_ = msh
}

func TestSparseDofIDs(t *testing.T) {
	db, err := LoadDatabase(parseMaterials(t, polynomialDeck))
	require.NoError(t, err)
	msh := mesh.NewUniformGrid(3, 1, 3., 1.)
	// Non-contiguous, permuted material-point dof ids
	msh.Cells[0].MPDof = 70
	msh.Cells[1].MPDof = 5
	msh.Cells[2].MPDof = 31
	mp := NewMaterialProperty(msh, db, 1)
	assert.Equal(t, 3, mp.NPoints())

	T := make([]float64, msh.NNodes)
	for n := range T {
		x, _ := msh.NodeCoords(n)
		T[n] = 100. * x
	}
	mp.Update(msh, T)
	avg := mp.TemperatureAverage()
	for k := range msh.Cells {
		xc, _ := msh.CellCenter(k)
		assert.True(t, near(100.*xc, avg[mp.DofIndex(k)], 1.e-9))
	}
}

func TestInitialStateFromUserLabels(t *testing.T) {
	db, err := LoadDatabase(parseMaterials(t, polynomialDeck))
	require.NoError(t, err)
	msh := mesh.NewUniformGrid(3, 1, 1., 1.)
	msh.Cells[0].UserIndex = 0 // solid
	msh.Cells[1].UserIndex = 1 // powder
	msh.Cells[2].UserIndex = 2 // liquid
	mp := NewMaterialProperty(msh, db, 1)
	assert.Equal(t, 1., mp.GetStateRatio(0, Solid))
	assert.Equal(t, 1., mp.GetStateRatio(1, Powder))
	assert.Equal(t, 1., mp.GetStateRatio(2, Liquid))
	assert.Equal(t, 0., mp.GetStateRatio(1, Solid))
}

func TestSetStateFromRatios(t *testing.T) {
	msh, mp, _ := uniformTestSetup(t, polynomialDeck, 2, 1, 300.)
	var (
		liquid = [][]float64{{0.2, 0.4, 0.2, 0.4}, {1., 1., 1., 1.}}
		powder = [][]float64{{0.1, 0.1, 0.1, 0.1}, {0., 0., 0., 0.}}
	)
	mp.SetStateFromRatios(liquid, powder)
	assert.True(t, near(0.3, mp.GetStateRatio(0, Liquid), 1.e-12))
	assert.True(t, near(0.1, mp.GetStateRatio(0, Powder), 1.e-12))
	assert.True(t, near(0.6, mp.GetStateRatio(0, Solid), 1.e-12))
	assert.True(t, near(1., mp.GetStateRatio(1, Liquid), 1.e-12))
	assert.True(t, near(0., mp.GetStateRatio(1, Solid), 1.e-12))
}

func TestComputeMaterialPropertyBatch(t *testing.T) {
	db, err := LoadDatabase(parseMaterials(t, polynomialDeck))
	require.NoError(t, err)
	var (
		ids    = []int{0, 0, 0}
		temps  = []float64{300., 500., 1000.}
		out    = make([]float64, 3)
		ratios [NMaterialStates][]float64
	)
	ratios[Solid] = []float64{1., 0.5, 0.}
	ratios[Powder] = []float64{0., 0.5, 0.}
	ratios[Liquid] = []float64{0., 0., 1.}
	db.ComputeMaterialPropertyBatch(Density, ids, ratios, temps, out)
	assert.True(t, near(7904., out[0], 1.e-12))
	assert.True(t, near(0.5*7904.+0.5*3952., out[1], 1.e-12))
	assert.True(t, near(7302., out[2], 1.e-12))

	// The scalar entry point agrees with the batch
	v := db.ComputeMaterialProperty(Density, 0, [NMaterialStates]float64{0.5, 0.5, 0.}, 500.)
	assert.True(t, near(out[1], v, 1.e-12))
}

func TestMechanicalProperties(t *testing.T) {
	msh, mp, _ := uniformTestSetup(t, polynomialDeck, 2, 2, 300.)
	assert.True(t, near(1.9e11, mp.GetMechanicalProperty(0, YoungsModulus), 1.))
	assert.True(t, near(0.29, mp.GetMechanicalProperty(0, PoissonsRatio), 1.e-12))
	assert.Panics(t, func() {
		mp.GetMechanicalProperty(0, MechanicalStateProperty(NMechanicalStateProperties))
	})
	_ = msh
}

func TestMechanicalPropertiesTableMode(t *testing.T) {
	// Table mode keeps the first breakpoint value: mechanical properties
	// are treated as temperature independent.
	db, err := LoadDatabase(parseMaterials(t, `
materials:
  n_materials: 1
  property_format: table
  material_0:
    solid:
      youngs_modulus: "300,2.1e11; 1000,1.5e11"
`))
	require.NoError(t, err)
	assert.True(t, near(2.1e11, db.GetMechanicalProperty(0, YoungsModulus), 1.))
}

func TestUnknownPropertyPanics(t *testing.T) {
	db, err := LoadDatabase(parseMaterials(t, polynomialDeck))
	require.NoError(t, err)
	assert.Panics(t, func() { db.Evaluate(3, Solid, Density, 300.) })
	assert.Panics(t, func() {
		db.Evaluate(0, Solid, StateProperty(NThermalStateProperties), 300.)
	})
}

func TestKernelSourceGeneration(t *testing.T) {
	for _, useTable := range []bool{true, false} {
		src := generateUpdateKernelSource(useTable)
		assert.Contains(t, src, "@kernel void updateMaterialState")
		assert.Contains(t, src, fmt.Sprintf("#define N_STATES %d", NMaterialStates))
		assert.Contains(t, src, fmt.Sprintf("#define N_THERMAL %d", NThermalStateProperties))
		if useTable {
			assert.Contains(t, src, "#define USE_TABLE 1")
		} else {
			assert.Contains(t, src, "#define USE_TABLE 0")
		}
	}
}
