package thermal

import (
	"math"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/goam/material"
	"github.com/notargets/goam/mesh"
)

// HeatSource is a Gaussian surface source scanning along the top boundary
// at constant speed, the usual stand-in for a laser track.
type HeatSource struct {
	Power  float64
	Radius float64
	Speed  float64
}

// Flux returns the absorbed surface flux at position x and time t.
func (hs HeatSource) Flux(x, t float64) float64 {
	var (
		center = hs.Speed * t
		r2     = (x - center) * (x - center)
		sigma2 = hs.Radius * hs.Radius
	)
	return hs.Power / (math.Pi * sigma2) * math.Exp(-r2/sigma2)
}

// Solver advances the nodal temperature field with lumped-mass explicit
// Euler steps. Each step consumes a freshly updated property-values field:
// volume terms from the full update, boundary losses from the boundary
// subset update.
type Solver struct {
	Msh         *mesh.Mesh
	MatProps    *material.MaterialProperty
	Temperature []float64
	Source      HeatSource
	Time        float64

	topNodes []int
}

func NewSolver(msh *mesh.Mesh, mp *material.MaterialProperty,
	initialTemperature float64, source HeatSource) (s *Solver) {
	s = &Solver{
		Msh:         msh,
		MatProps:    mp,
		Temperature: make([]float64, msh.NNodes),
		Source:      source,
		topNodes:    msh.TopSurfaceNodes(),
	}
	for i := range s.Temperature {
		s.Temperature[i] = initialTemperature
	}
	return
}

// Reference stiffness matrices for the bilinear quad, xi and eta coupling,
// node ordering (0,0)(1,0)(1,1)(0,1).
var kXi = [4][4]float64{
	{2, -2, -1, 1}, {-2, 2, 1, -1}, {-1, 1, 2, -2}, {1, -1, -2, 2},
}
var kEta = [4][4]float64{
	{2, 1, -1, -2}, {1, 2, -2, -1}, {-1, -2, 2, 1}, {-2, -1, 1, 2},
}

// Step advances the solution by dt.
func (s *Solver) Step(dt float64) {
	var (
		msh = s.Msh
		n   = msh.NNodes
	)
	// Phase fractions and all volume properties from the current field.
	s.MatProps.Update(msh, s.Temperature)

	var (
		lumpedMass = make([]float64, n)
		stiffness  = sparse.NewDOK(n, n)
		cellMass   = msh.Dx * msh.Dy / 4.
	)
	for k, cell := range msh.Cells {
		if !cell.Active {
			continue
		}
		var (
			rho = s.MatProps.GetCellValue(k, material.Density)
			cp  = s.MatProps.GetCellValue(k, material.SpecificHeat)
			kx  = s.MatProps.GetCellValue(k, material.ThermalConductivityX)
			kz  = s.MatProps.GetCellValue(k, material.ThermalConductivityZ)
			cx  = kx * msh.Dy / msh.Dx / 6.
			cy  = kz * msh.Dx / msh.Dy / 6.
		)
		for i, ni := range cell.Nodes {
			lumpedMass[ni] += rho * cp * cellMass
			for j, nj := range cell.Nodes {
				stiffness.Set(ni, nj,
					stiffness.At(ni, nj)+cx*kXi[i][j]+cy*kEta[i][j])
			}
		}
	}

	// Conduction term Kt = K * T
	var (
		csr = stiffness.ToCSR()
		kt  mat.VecDense
		tv  = mat.NewVecDense(n, s.Temperature)
	)
	kt.MulVec(csr, tv)

	rhs := make([]float64, n)
	for i := 0; i < n; i++ {
		rhs[i] = -kt.AtVec(i)
	}

	// Boundary losses and the scan source act on the top surface. The
	// boundary subset update replaces the property-values field before any
	// coefficient is read.
	s.MatProps.UpdateBoundaryMaterialProperties(msh, s.Temperature)
	for _, ni := range s.topNodes {
		var (
			x, _ = msh.NodeCoords(ni)
			k    = s.topCellFor(ni)
			ds   = msh.Dx
		)
		if k < 0 || !msh.Cells[k].Active {
			continue
		}
		hRad := s.MatProps.GetCellValue(k, material.RadiationHeatTransferCoef)
		hConv := s.MatProps.GetCellValue(k, material.ConvectionHeatTransferCoef)
		TRadInf := s.MatProps.GetCellProperty(k, material.RadiationTemperatureInfty)
		TConvInf := s.MatProps.GetCellProperty(k, material.ConvectionTemperatureInfty)
		if TRadInf < math.MaxFloat64 {
			rhs[ni] -= hRad * (s.Temperature[ni] - TRadInf) * ds
		}
		if TConvInf < math.MaxFloat64 {
			rhs[ni] -= hConv * (s.Temperature[ni] - TConvInf) * ds
		}
		rhs[ni] += s.Source.Flux(x, s.Time) * ds
	}

	for i := 0; i < n; i++ {
		if lumpedMass[i] > 0 {
			s.Temperature[i] += dt * rhs[i] / lumpedMass[i]
		}
	}
	s.Time += dt
}

// topCellFor maps a top-surface node to the cell beneath it.
func (s *Solver) topCellFor(node int) int {
	var (
		nvx = s.Msh.Nx + 1
		i   = node % nvx
	)
	if i == s.Msh.Nx {
		i--
	}
	return i + (s.Msh.Ny-1)*s.Msh.Nx
}

// MaxTemperature is a convenience for progress reporting.
func (s *Solver) MaxTemperature() (tMax float64) {
	for _, t := range s.Temperature {
		if t > tMax {
			tMax = t
		}
	}
	return
}
