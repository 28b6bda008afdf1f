package material

import (
	"fmt"
	"unsafe"

	"github.com/notargets/goam/utils"
	"github.com/notargets/gocca"
)

// deviceKernel holds the compiled per-point update kernel and the device
// copies of the immutable property data. The kernel source is generated
// with the storage shape baked in as defines, so the device executes the
// same algorithm as updatePoint against identical index arithmetic.
type deviceKernel struct {
	device *gocca.OCCADevice
	kernel *gocca.OCCAKernel

	properties  *utils.MemoryBlock // (nMat, NProperties)
	stateData   *utils.MemoryBlock // tables or polynomials, by mode
	temperature *utils.MemoryBlock // per-point averages, refreshed per run
}

const kernelBlockSize = 64

func newDeviceKernel(device *gocca.OCCADevice, db *PropertyDatabase,
	nPoints int) (dk *deviceKernel) {
	dk = &deviceKernel{device: device}

	// Push the immutable property data once.
	dk.properties = utils.NewDeviceMemoryBlock(device,
		db.nMaterialIDs, NProperties)
	utils.DeepCopy(dk.properties, db.properties)
	if db.useTable {
		dk.stateData = utils.NewDeviceMemoryBlock(device, db.nMaterialIDs,
			NMaterialStates, NThermalStateProperties, TableSize, 2)
		utils.DeepCopy(dk.stateData, db.statePropertyTables)
	} else {
		dk.stateData = utils.NewDeviceMemoryBlock(device, db.nMaterialIDs,
			NMaterialStates, NThermalStateProperties, PolynomialOrder+1)
		utils.DeepCopy(dk.stateData, db.statePropertyPolynomials)
	}
	dk.temperature = utils.NewDeviceMemoryBlock(device, nPoints)

	kernel, err := device.BuildKernelFromString(
		generateUpdateKernelSource(db.useTable), "updateMaterialState", nil)
	if err != nil {
		panic(fmt.Sprintf("failed to build material update kernel: %v", err))
	}
	dk.kernel = kernel
	return
}

// run launches the update over all points. The temperature averages and the
// gather arrays are pushed first; the launch itself is synchronized by the
// device before any host read of the results.
func (dk *deviceKernel) run(mp *MaterialProperty, firstProperty int, updateState bool) {
	var (
		n      = mp.nPoints
		nCells = len(mp.msh.Cells)
	)
	utils.DeepCopy(dk.temperature,
		utils.NewMemoryBlockFromSlice(mp.temperatureAverage, n))

	materialIDs := make([]int32, nCells)
	mpDofs := make([]int32, nCells)
	for k := 0; k < nCells; k++ {
		materialIDs[k] = int32(mp.materialIDs[k])
		mpDofs[k] = int32(mp.mpDofs[k])
	}
	idsMem := dk.device.Malloc(int64(nCells*4), unsafe.Pointer(&materialIDs[0]), nil)
	defer idsMem.Free()
	dofsMem := dk.device.Malloc(int64(nCells*4), unsafe.Pointer(&mpDofs[0]), nil)
	defer dofsMem.Free()

	stateFlag := int32(0)
	if updateState {
		stateFlag = 1
	}
	if err := dk.kernel.RunWithArgs(int32(nCells), int32(firstProperty), stateFlag,
		idsMem, dofsMem,
		dk.temperature.DeviceMemory(),
		dk.properties.DeviceMemory(),
		dk.stateData.DeviceMemory(),
		mp.state.DeviceMemory(),
		mp.propertyValues.DeviceMemory()); err != nil {
		panic(fmt.Sprintf("material update kernel failed: %v", err))
	}
	dk.device.Finish()
}

func (dk *deviceKernel) Free() {
	if dk.kernel != nil {
		dk.kernel.Free()
	}
	dk.properties.Free()
	dk.stateData.Free()
	dk.temperature.Free()
}

// generateUpdateKernelSource emits the OKL source for the per-point update.
// The enum layout and storage shapes are baked in as defines so the index
// arithmetic matches the host MemoryBlock strides exactly.
func generateUpdateKernelSource(useTable bool) string {
	var sb []byte
	add := func(format string, args ...interface{}) {
		sb = append(sb, []byte(fmt.Sprintf(format, args...))...)
	}

	add("#define N_STATES %d\n", NMaterialStates)
	add("#define N_THERMAL %d\n", NThermalStateProperties)
	add("#define N_PROPERTIES %d\n", NProperties)
	add("#define TABLE_SIZE %d\n", TableSize)
	add("#define POLY_DEGREE %d\n", PolynomialOrder)
	add("#define BLOCK %d\n", kernelBlockSize)
	add("#define STATE_SOLID %d\n", Solid)
	add("#define STATE_POWDER %d\n", Powder)
	add("#define STATE_LIQUID %d\n", Liquid)
	add("#define PROP_LIQUIDUS %d\n", Liquidus)
	add("#define PROP_SOLIDUS %d\n", Solidus)
	add("#define PROP_LATENT_HEAT %d\n", LatentHeat)
	add("#define PROP_RAD_TINF %d\n", RadiationTemperatureInfty)
	add("#define SP_SPECIFIC_HEAT %d\n", SpecificHeat)
	add("#define SP_EMISSIVITY %d\n", Emissivity)
	add("#define SP_RAD_COEF %d\n", RadiationHeatTransferCoef)
	add("#define SIGMA_SB %.12e\n", StefanBoltzmann)
	if useTable {
		add("#define USE_TABLE 1\n")
	} else {
		add("#define USE_TABLE 0\n")
	}

	add(`
#if USE_TABLE
// stateData layout: (mat, state, prop, breakpoint, {T, value})
static double evalProperty(const double *stateData, const int mat,
                           const int state, const int prop, const double T) {
  const int base = (((mat * N_STATES + state) * N_THERMAL + prop) * TABLE_SIZE) * 2;
  if (T <= stateData[base + 0]) {
    return stateData[base + 1];
  }
  for (int i = 1; i < TABLE_SIZE; ++i) {
    const double Ti = stateData[base + 2 * i];
    if (T < Ti) {
      const double Tim1 = stateData[base + 2 * (i - 1)];
      const double vi = stateData[base + 2 * i + 1];
      const double vim1 = stateData[base + 2 * (i - 1) + 1];
      return vim1 + (T - Tim1) * (vi - vim1) / (Ti - Tim1);
    }
  }
  return stateData[base + 2 * (TABLE_SIZE - 1) + 1];
}
#else
// stateData layout: (mat, state, prop, coefficient)
static double evalProperty(const double *stateData, const int mat,
                           const int state, const int prop, const double T) {
  const int base = ((mat * N_STATES + state) * N_THERMAL + prop) * (POLY_DEGREE + 1);
  double value = 0.0;
  for (int i = POLY_DEGREE; i >= 0; --i) {
    value = value * T + stateData[base + i];
  }
  return value;
}
#endif

@kernel void updateMaterialState(const int n,
                                 const int firstProperty,
                                 const int updateState,
                                 const int *materialIDs,
                                 const int *mpDofs,
                                 const double *temperature,
                                 const double *properties,
                                 const double *stateData,
                                 double *state,
                                 double *propertyValues) {
  for (int b = 0; b < (n + BLOCK - 1) / BLOCK; ++b; @outer) {
    for (int t = 0; t < BLOCK; ++t; @inner) {
      const int i = b * BLOCK + t;
      if (i < n) {
        const int mat = materialIDs[i];
        const int dof = mpDofs[i];
        const double T = temperature[dof];
        const double solidus = properties[mat * N_PROPERTIES + PROP_SOLIDUS];
        const double liquidus = properties[mat * N_PROPERTIES + PROP_LIQUIDUS];

        double liquidRatio;
        if (updateState) {
          if (T < solidus) {
            liquidRatio = 0.0;
          } else if (T > liquidus) {
            liquidRatio = 1.0;
          } else {
            liquidRatio = (T - solidus) / (liquidus - solidus);
          }
          // Powder can only convert to liquid, never reappear.
          double powderRatio = 1.0 - liquidRatio;
          const double powderPrev = state[STATE_POWDER * n + dof];
          if (powderPrev < powderRatio) {
            powderRatio = powderPrev;
          }
          double solidRatio = 1.0 - liquidRatio - powderRatio;
          if (solidRatio < 0.0) {
            solidRatio = 0.0;
          }
          state[STATE_LIQUID * n + dof] = liquidRatio;
          state[STATE_POWDER * n + dof] = powderRatio;
          state[STATE_SOLID * n + dof] = solidRatio;
        } else {
          liquidRatio = state[STATE_LIQUID * n + dof];
        }

        for (int prop = firstProperty; prop < N_THERMAL; ++prop) {
          double value = 0.0;
          for (int s = 0; s < N_STATES; ++s) {
            value += state[s * n + dof] * evalProperty(stateData, mat, s, prop, T);
          }
          propertyValues[prop * n + dof] += value;
        }

        if (updateState && liquidRatio > 0.0 && liquidRatio < 1.0) {
          const double latentHeat = properties[mat * N_PROPERTIES + PROP_LATENT_HEAT];
          double correction = 0.0;
          for (int s = 0; s < N_STATES; ++s) {
            correction += state[s * n + dof] * latentHeat / (liquidus - solidus);
          }
          propertyValues[SP_SPECIFIC_HEAT * n + dof] += correction;
        }

        const double TInf = properties[mat * N_PROPERTIES + PROP_RAD_TINF];
        const double emissivity = propertyValues[SP_EMISSIVITY * n + dof];
        propertyValues[SP_RAD_COEF * n + dof] =
            emissivity * SIGMA_SB * (T + TInf) * (T * T + TInf * TInf);
      }
    }
  }
}
`)
	return string(sb)
}
