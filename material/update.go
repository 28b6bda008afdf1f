package material

import (
	"math"
	"sync"

	"github.com/notargets/goam/mesh"
	"github.com/notargets/goam/utils"
)

// Update recomputes the phase fractions and every derived thermal property
// from the current temperature field. The property-values field is fully
// replaced before Update returns; consumers never observe a partial update.
//
// Per point, with averaged temperature T and solidus/liquidus S/L:
// the liquid fraction is the linear melt fraction clamped to [0,1], the
// powder fraction can only shrink (powder converts to liquid, never
// reappears), and the solid fraction absorbs the remainder clamped at zero
// so round-off never creates matter.
func (mp *MaterialProperty) Update(tempMesh *mesh.Mesh, temperature []float64) {
	mp.computeAverageTemperature(tempMesh, temperature)
	mp.reinitPropertyValues()
	if mp.space == utils.Device {
		mp.kern.run(mp, 0, true)
		return
	}
	mp.updateHost(0, true)
}

// UpdateBoundaryMaterialProperties recomputes only the property subset used
// for boundary-condition assembly, leaving the state fractions untouched.
// Density, specific heat and the in-plane conductivity are skipped.
func (mp *MaterialProperty) UpdateBoundaryMaterialProperties(tempMesh *mesh.Mesh,
	temperature []float64) {
	mp.computeAverageTemperature(tempMesh, temperature)
	mp.reinitPropertyValues()
	if mp.space == utils.Device {
		mp.kern.run(mp, firstBoundaryProperty, false)
		return
	}
	mp.updateHost(firstBoundaryProperty, false)
}

func (mp *MaterialProperty) reinitPropertyValues() {
	switch mp.space {
	case utils.Host:
		mp.propertyValues = utils.NewMemoryBlock(NThermalStateProperties, mp.nPoints)
	case utils.Device:
		if mp.propertyValues != nil {
			mp.propertyValues.Free()
		}
		mp.propertyValues = utils.NewDeviceMemoryBlock(mp.device,
			NThermalStateProperties, mp.nPoints)
		mp.propertyValues.SetZero()
	}
}

// updateHost runs the per-point update as a goroutine parallel-for over
// partitioned point ranges. Iterations share only immutable table data;
// every iteration writes exclusively to its own point's columns.
func (mp *MaterialProperty) updateHost(firstProperty int, updateState bool) {
	var (
		nCells = len(mp.msh.Cells)
		pm     = utils.NewPartitionMap(mp.parallelDegree, nCells)
		wg     = sync.WaitGroup{}
	)
	for np := 0; np < pm.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			kMin, kMax := pm.GetBucketRange(np)
			for k := kMin; k < kMax; k++ {
				mp.updatePoint(k, firstProperty, updateState)
			}
		}(np)
	}
	wg.Wait()
}

func (mp *MaterialProperty) updatePoint(k, firstProperty int, updateState bool) {
	var (
		materialID  = mp.materialIDs[k]
		dof         = mp.mpDofs[k]
		T           = mp.temperatureAverage[dof]
		properties  = mp.db.properties.View()
		stateView   = mp.state.View()
		valuesView  = mp.propertyValues.View()
		solidus     = properties.At(materialID, int(Solidus))
		liquidus    = properties.At(materialID, int(Liquidus))
		liquidRatio float64
	)
	if updateState {
		// First determine the ratio of liquid.
		switch {
		case T < solidus:
			liquidRatio = 0.
		case T > liquidus:
			liquidRatio = 1.
		default:
			liquidRatio = (T - solidus) / (liquidus - solidus)
		}
		// The powder can only become liquid, the solid can only become
		// liquid, and the liquid can only become solid, so the ratio of
		// powder can only decrease.
		powderRatio := math.Min(1.-liquidRatio, stateView.At(int(Powder), dof))
		// Max so that round-off doesn't create matter.
		solidRatio := math.Max(1.-liquidRatio-powderRatio, 0.)

		stateView.Set(liquidRatio, int(Liquid), dof)
		stateView.Set(powderRatio, int(Powder), dof)
		stateView.Set(solidRatio, int(Solid), dof)
	} else {
		liquidRatio = stateView.At(int(Liquid), dof)
	}

	// State-weighted accumulation of every property in range.
	if mp.db.useTable {
		tables := mp.db.statePropertyTables.View()
		for prop := firstProperty; prop < NThermalStateProperties; prop++ {
			for state := 0; state < NMaterialStates; state++ {
				valuesView.Add(stateView.At(state, dof)*
					computePropertyFromTable(tables, materialID, state, prop, T),
					prop, dof)
			}
		}
	} else {
		polys := mp.db.statePropertyPolynomials.View()
		for prop := firstProperty; prop < NThermalStateProperties; prop++ {
			for state := 0; state < NMaterialStates; state++ {
				valuesView.Add(stateView.At(state, dof)*
					computePropertyFromPolynomial(polys, materialID, state, prop, T),
					prop, dof)
			}
		}
	}

	// In the mushy state, part liquid part solid, the specific heat picks
	// up the latent heat released across the transition range.
	if updateState && liquidRatio > 0. && liquidRatio < 1. {
		latentHeat := properties.At(materialID, int(LatentHeat))
		for state := 0; state < NMaterialStates; state++ {
			valuesView.Add(stateView.At(state, dof)*latentHeat/(liquidus-solidus),
				int(SpecificHeat), dof)
		}
	}

	// The radiation heat transfer coefficient is not a real material
	// property but is derived from the just-computed emissivity:
	// h_rad = emissivity * sigma * (T + T_infty) * (T^2 + T_infty^2).
	TInfty := properties.At(materialID, int(RadiationTemperatureInfty))
	emissivity := valuesView.At(int(Emissivity), dof)
	valuesView.Set(emissivity*StefanBoltzmann*(T+TInfty)*(T*T+TInfty*TInfty),
		int(RadiationHeatTransferCoef), dof)
}
