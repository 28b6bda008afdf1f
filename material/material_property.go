package material

import (
	"fmt"
	"math"

	"github.com/notargets/goam/mesh"
	"github.com/notargets/goam/utils"
	"github.com/notargets/gocca"
)

// MaterialProperty tracks the phase-state fractions of every material point
// and derives the temperature-dependent property fields consumed by the
// thermal operator. One material point corresponds to one mesh cell; the
// state field is single valued per cell, decoupled from the temperature
// nodes.
//
// The state block layout is (NMaterialStates x nPoints), the property-values
// block (NThermalStateProperties x nPoints). When a device is attached, the
// device copies are authoritative and host reads stage the blocks back.
type MaterialProperty struct {
	db  *PropertyDatabase
	msh *mesh.Mesh

	space          utils.MemorySpace
	device         *gocca.OCCADevice
	parallelDegree int

	// Dense enumeration of material-point dofs, rebuilt wholesale whenever
	// the mesh connectivity changes.
	dofsMap     map[int]int
	mpDofs      []int // per cell, dense index
	materialIDs []int // per cell
	nPoints     int

	state              *utils.MemoryBlock
	propertyValues     *utils.MemoryBlock
	temperatureAverage []float64

	kern *deviceKernel // nil in host space
}

// NewMaterialProperty builds the host-space material state for the given
// mesh, initializes it from the cells' user-assigned state labels and
// attaches the loaded property database. parallelDegree sets the goroutine
// count for the per-point update loop.
func NewMaterialProperty(msh *mesh.Mesh, db *PropertyDatabase,
	parallelDegree int) (mp *MaterialProperty) {
	if parallelDegree < 1 {
		parallelDegree = 1
	}
	mp = &MaterialProperty{
		db:             db,
		msh:            msh,
		space:          utils.Host,
		parallelDegree: parallelDegree,
	}
	mp.ReinitDofs()
	mp.setInitialState()
	return
}

// NewMaterialPropertyOnDevice is the accelerator-space variant: the state
// and property-values blocks live in device memory and the update runs as a
// compiled kernel. The immutable property data is deep copied to the device
// once, here.
func NewMaterialPropertyOnDevice(msh *mesh.Mesh, db *PropertyDatabase,
	device *gocca.OCCADevice) (mp *MaterialProperty) {
	mp = &MaterialProperty{
		db:             db,
		msh:            msh,
		space:          utils.Device,
		device:         device,
		parallelDegree: 1,
	}
	mp.ReinitDofs()
	mp.setInitialState()
	mp.kern = newDeviceKernel(device, db, mp.nPoints)
	return
}

func (mp *MaterialProperty) Space() utils.MemorySpace { return mp.space }
func (mp *MaterialProperty) NPoints() int             { return mp.nPoints }
func (mp *MaterialProperty) Database() *PropertyDatabase {
	return mp.db
}

// ReinitDofs rebuilds the mapping from (possibly sparse) material-point dof
// ids to compact zero-based indices and reallocates the state field. Called
// at setup and again after any remeshing; the map is always rebuilt
// wholesale, never patched.
func (mp *MaterialProperty) ReinitDofs() {
	mp.dofsMap = make(map[int]int, len(mp.msh.Cells))
	mp.mpDofs = make([]int, len(mp.msh.Cells))
	mp.materialIDs = make([]int, len(mp.msh.Cells))
	i := 0
	for k, cell := range mp.msh.Cells {
		if _, dup := mp.dofsMap[cell.MPDof]; dup {
			panic(fmt.Sprintf("duplicate material-point dof id %d", cell.MPDof))
		}
		mp.dofsMap[cell.MPDof] = i
		mp.mpDofs[k] = i
		mp.materialIDs[k] = cell.MaterialID
		i++
	}
	mp.nPoints = i
	switch mp.space {
	case utils.Host:
		mp.state = utils.NewMemoryBlock(NMaterialStates, mp.nPoints)
	case utils.Device:
		mp.state = utils.NewDeviceMemoryBlock(mp.device, NMaterialStates, mp.nPoints)
	}
	mp.temperatureAverage = make([]float64, mp.nPoints)
}

// setInitialState sets each point's state to the one defined by the cell's
// user index: exactly one fraction is 1, the others 0.
func (mp *MaterialProperty) setInitialState() {
	host := mp.hostStateBlock()
	host.SetZero()
	view := host.View()
	for k, cell := range mp.msh.Cells {
		if cell.UserIndex < 0 || cell.UserIndex >= NMaterialStates {
			panic(fmt.Sprintf("cell %d: invalid initial state label %d", k, cell.UserIndex))
		}
		view.Set(1., cell.UserIndex, mp.mpDofs[k])
	}
	mp.pushState(host)
}

// hostStateBlock returns a host block holding the current state: the state
// block itself in host space, a staged copy in device space.
func (mp *MaterialProperty) hostStateBlock() *utils.MemoryBlock {
	if mp.space == utils.Host {
		return mp.state
	}
	host := utils.NewMemoryBlock(NMaterialStates, mp.nPoints)
	utils.DeepCopy(host, mp.state)
	return host
}

// pushState publishes a host-side state block to the authoritative copy.
func (mp *MaterialProperty) pushState(host *utils.MemoryBlock) {
	if mp.space == utils.Device {
		utils.DeepCopy(mp.state, host)
	}
}

// DofIndex returns the dense index of a cell's material point.
func (mp *MaterialProperty) DofIndex(cellIdx int) int {
	return mp.mpDofs[cellIdx]
}

// GetStateRatio returns one phase fraction of the given cell.
func (mp *MaterialProperty) GetStateRatio(cellIdx int, state MaterialState) float64 {
	if int(state) >= NMaterialStates {
		panic(fmt.Sprintf("unknown material state %d", state))
	}
	return mp.hostStateBlock().View().At(int(state), mp.mpDofs[cellIdx])
}

// GetCellValue returns one derived thermal property of the given cell from
// the most recent update.
func (mp *MaterialProperty) GetCellValue(cellIdx int, prop StateProperty) float64 {
	if int(prop) >= NThermalStateProperties {
		panic(fmt.Sprintf("unknown state property %d", prop))
	}
	if mp.propertyValues == nil {
		panic("property values read before the first update")
	}
	if mp.space == utils.Host {
		return mp.propertyValues.View().At(int(prop), mp.mpDofs[cellIdx])
	}
	host := utils.NewMemoryBlock(NThermalStateProperties, mp.nPoints)
	utils.DeepCopy(host, mp.propertyValues)
	return host.View().At(int(prop), mp.mpDofs[cellIdx])
}

// GetCellProperty returns a scalar material-level property for the cell's
// material.
func (mp *MaterialProperty) GetCellProperty(cellIdx int, prop Property) float64 {
	return mp.db.GetProperty(mp.materialIDs[cellIdx], prop)
}

// GetMechanicalProperty returns a solid-state mechanical property for the
// cell's material.
func (mp *MaterialProperty) GetMechanicalProperty(cellIdx int,
	prop MechanicalStateProperty) float64 {
	return mp.db.GetMechanicalProperty(mp.materialIDs[cellIdx], prop)
}

// TemperatureAverage exposes the per-point averaged temperatures from the
// most recent update.
func (mp *MaterialProperty) TemperatureAverage() []float64 {
	return mp.temperatureAverage
}

// SetStateFromRatios overwrites the state field from externally computed
// liquid and powder ratios sampled per quadrature point, indexed
// [cell][q]. The per-cell value is the plain quadrature average and the
// solid fraction absorbs the remainder, clamped so round-off never creates
// negative mass.
func (mp *MaterialProperty) SetStateFromRatios(liquidRatio, powderRatio [][]float64) {
	if len(liquidRatio) != len(mp.msh.Cells) || len(powderRatio) != len(mp.msh.Cells) {
		panic(fmt.Sprintf("ratio fields sized %d/%d, mesh has %d cells",
			len(liquidRatio), len(powderRatio), len(mp.msh.Cells)))
	}
	host := mp.hostStateBlock()
	view := host.View()
	for k := range mp.msh.Cells {
		var (
			dof  = mp.mpDofs[k]
			nq   = len(liquidRatio[k])
			lSum float64
			pSum float64
		)
		for q := 0; q < nq; q++ {
			lSum += liquidRatio[k][q]
			pSum += powderRatio[k][q]
		}
		l := lSum / float64(nq)
		p := pSum / float64(nq)
		view.Set(l, int(Liquid), dof)
		view.Set(p, int(Powder), dof)
		view.Set(math.Max(1.-l-p, 0.), int(Solid), dof)
	}
	mp.pushState(host)
}

// Free releases device resources. Host-space instances are garbage
// collected.
func (mp *MaterialProperty) Free() {
	if mp.space != utils.Device {
		return
	}
	mp.state.Free()
	if mp.propertyValues != nil {
		mp.propertyValues.Free()
	}
	if mp.kern != nil {
		mp.kern.Free()
	}
}
