package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInputDeck(t *testing.T) {
	deck := `
Title: "Powder bed scan"
Nx: 40
Ny: 20
Width: 0.02
Height: 0.01
PowderLayers: 2
TimeStep: 1.e-5
FinalTime: 0.01
InitialTemperature: 300.
SourcePower: 200.
SourceRadius: 0.001
SourceSpeed: 0.8
UseAccelerator: true
ParallelDegree: 8
materials:
  n_materials: 2
  property_format: polynomial
  material_0:
    solidus: 1675.
    liquidus: 1708.
    latent_heat: 290000.
    radiation_temperature_infty: 300.
    solid:
      density: "7904."
      specific_heat: "281.0, 0.2"
      emissivity: "0.9"
      youngs_modulus: "1.9e11"
    powder:
      density: "3952."
    liquid:
      density: "7302."
  material_1:
    solid:
      density: "2700."
`
	var ip InputParameters
	require.NoError(t, ip.Parse([]byte(deck)))
	assert.Equal(t, "Powder bed scan", ip.Title)
	assert.Equal(t, 40, ip.Nx)
	assert.Equal(t, 20, ip.Ny)
	assert.Equal(t, 0.02, ip.Width)
	assert.Equal(t, 2, ip.PowderLayers)
	assert.Equal(t, 1.e-5, ip.TimeStep)
	assert.Equal(t, 300., ip.InitialTemp)
	assert.Equal(t, 0.8, ip.SourceSpeed)
	assert.True(t, ip.UseAccel)
	assert.Equal(t, 8, ip.ParallelDeg)

	ms := ip.Materials
	assert.Equal(t, 2, ms.NMaterials)
	assert.Equal(t, "polynomial", ms.PropertyFormat)
	require.Len(t, ms.Materials, 2)

	m0 := ms.Materials[0]
	require.NotNil(t, m0.Solidus)
	assert.Equal(t, 1675., *m0.Solidus)
	require.NotNil(t, m0.LatentHeat)
	assert.Equal(t, 290000., *m0.LatentHeat)
	assert.Nil(t, m0.ConvectionTemperatureInfty)
	assert.Equal(t, "281.0, 0.2", m0.Solid["specific_heat"])
	assert.Equal(t, "3952.", m0.Powder["density"])
	assert.Equal(t, "1.9e11", m0.Solid["youngs_modulus"])

	m1 := ms.Materials[1]
	assert.Nil(t, m1.Solidus)
	assert.Nil(t, m1.Powder)
	assert.Equal(t, "2700.", m1.Solid["density"])
}

func TestStateAndScalarAccessors(t *testing.T) {
	var ip InputParameters
	require.NoError(t, ip.Parse([]byte(`
materials:
  n_materials: 1
  property_format: table
  material_0:
    liquidus: 1708.
    liquid:
      density: "1675,7400; 1708,7302"
`)))
	mi := ip.Materials.Materials[0]
	assert.NotNil(t, mi.State("liquid"))
	assert.Nil(t, mi.State("solid"))
	assert.Nil(t, mi.State("plasma"))
	require.NotNil(t, mi.Scalar("liquidus"))
	assert.Equal(t, 1708., *mi.Scalar("liquidus"))
	assert.Nil(t, mi.Scalar("solidus"))
	assert.Nil(t, mi.Scalar("melting_point"))
}

func TestMaterialKeyScan(t *testing.T) {
	var ip InputParameters
	require.NoError(t, ip.Parse([]byte(`
materials:
  n_materials: 1
  property_format: polynomial
  material_0: {}
  material_05: {}
  material_x: {}
`)))
	// Only well-formed material_<id> keys are picked up; zero-padded or
	// non-numeric suffixes are ignored.
	require.Len(t, ip.Materials.Materials, 1)
	_, ok := ip.Materials.Materials[0]
	assert.True(t, ok)
}
