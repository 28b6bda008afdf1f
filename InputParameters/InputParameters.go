package InputParameters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input file
type InputParameters struct {
	Title        string         `json:"Title"`
	Nx           int            `json:"Nx"`
	Ny           int            `json:"Ny"`
	Width        float64        `json:"Width"`
	Height       float64        `json:"Height"`
	PowderLayers int            `json:"PowderLayers"`
	TimeStep     float64        `json:"TimeStep"`
	FinalTime    float64        `json:"FinalTime"`
	InitialTemp  float64        `json:"InitialTemperature"`
	SourcePower  float64        `json:"SourcePower"`
	SourceRadius float64        `json:"SourceRadius"`
	SourceSpeed  float64        `json:"SourceSpeed"`
	UseAccel     bool           `json:"UseAccelerator"`
	ParallelDeg  int            `json:"ParallelDegree"`
	Materials    MaterialsInput `json:"materials"`
}

func (ip *InputParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

func (ip *InputParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%d x %d]\t\t= Grid\n", ip.Nx, ip.Ny)
	fmt.Printf("%8.5f\t\t= TimeStep\n", ip.TimeStep)
	fmt.Printf("%8.5f\t\t= FinalTime\n", ip.FinalTime)
	fmt.Printf("[%s]\t\t= Property Format\n", ip.Materials.PropertyFormat)
	fmt.Printf("[%d]\t\t\t= Materials\n", ip.Materials.NMaterials)
	ids := make([]int, 0, len(ip.Materials.Materials))
	for id := range ip.Materials.Materials {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fmt.Printf("material_%d = %v\n", id, ip.Materials.Materials[id])
	}
}

// MaterialsInput is the materials section of the input deck. Each material
// appears as a child keyed material_<id>; per-state property values are
// strings in either coefficient form "v0,v1,..." or breakpoint form
// "T0,v0;T1,v1;...", selected once for the whole deck by property_format.
type MaterialsInput struct {
	NMaterials     int                   `json:"n_materials"`
	PropertyFormat string                `json:"property_format"`
	Materials      map[int]MaterialInput `json:"-"`
}

// MaterialInput is one material_<id> child. State sub-records are optional,
// as are the scalar material-level properties.
type MaterialInput struct {
	Solid  map[string]string `json:"solid"`
	Powder map[string]string `json:"powder"`
	Liquid map[string]string `json:"liquid"`

	Solidus                    *float64 `json:"solidus"`
	Liquidus                   *float64 `json:"liquidus"`
	LatentHeat                 *float64 `json:"latent_heat"`
	RadiationTemperatureInfty  *float64 `json:"radiation_temperature_infty"`
	ConvectionTemperatureInfty *float64 `json:"convection_temperature_infty"`
}

// State returns the property map for the named state, nil if the state is
// not defined for this material.
func (mi MaterialInput) State(name string) map[string]string {
	switch name {
	case "solid":
		return mi.Solid
	case "powder":
		return mi.Powder
	case "liquid":
		return mi.Liquid
	}
	return nil
}

// Scalar returns the material-level scalar property by name, nil if unset.
func (mi MaterialInput) Scalar(name string) *float64 {
	switch name {
	case "solidus":
		return mi.Solidus
	case "liquidus":
		return mi.Liquidus
	case "latent_heat":
		return mi.LatentHeat
	case "radiation_temperature_infty":
		return mi.RadiationTemperatureInfty
	case "convection_temperature_infty":
		return mi.ConvectionTemperatureInfty
	}
	return nil
}

// UnmarshalJSON scans for material_<id> children alongside the fixed keys.
// ghodss/yaml routes YAML input through JSON, so this covers the YAML deck.
func (ms *MaterialsInput) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["n_materials"]; ok {
		if err := json.Unmarshal(v, &ms.NMaterials); err != nil {
			return fmt.Errorf("materials.n_materials: %w", err)
		}
	}
	if v, ok := raw["property_format"]; ok {
		if err := json.Unmarshal(v, &ms.PropertyFormat); err != nil {
			return fmt.Errorf("materials.property_format: %w", err)
		}
	}
	ms.Materials = make(map[int]MaterialInput)
	for key, v := range raw {
		var id int
		if n, err := fmt.Sscanf(key, "material_%d", &id); n != 1 || err != nil {
			continue
		}
		if key != "material_"+strconv.Itoa(id) || id < 0 {
			continue
		}
		var mi MaterialInput
		if err := json.Unmarshal(v, &mi); err != nil {
			return fmt.Errorf("materials.%s: %w", key, err)
		}
		ms.Materials[id] = mi
	}
	return nil
}
