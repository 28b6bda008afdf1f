package mesh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Cell is one element of the simulation grid. The temperature field lives on
// the cell's Nodes; the material state lives on a single per-cell degree of
// freedom identified by MPDof. MPDof ids need not be contiguous - the
// material layer builds its own dense enumeration from them.
type Cell struct {
	MPDof      int
	MaterialID int
	UserIndex  int // initial material state label: 0=solid, 1=powder, 2=liquid
	Active     bool
	Nodes      []int // temperature dof indices
}

// Mesh couples the cell list with the reference element shared by all cells.
// The temperature mesh and the material-point mesh enumerate the same cells
// in the same order.
type Mesh struct {
	Cells  []Cell
	NNodes int
	Ref    *ReferenceElement

	// Geometry for the uniform grid constructors
	Nx, Ny int
	Dx, Dy float64
}

// ReferenceElement holds the shape values and quadrature weights used for
// volume-weighted cell averages: ShapeValues is (Nq x NNodesPerCell) with
// row q holding N_i evaluated at quadrature point q, and JxW holds the
// Jacobian-scaled quadrature weight per point.
type ReferenceElement struct {
	Nq, NNodesPerCell int
	ShapeValues       *mat.Dense
	JxW               []float64
	QPoints           [][2]float64 // reference coordinates, for source sampling
}

// NewBilinearQuad builds the reference element for a bilinear quadrilateral
// of size dx by dy using a 2x2 Gauss rule.
func NewBilinearQuad(dx, dy float64) (re *ReferenceElement) {
	var (
		g    = 1. / math.Sqrt(3.)
		pts  = [][2]float64{{-g, -g}, {g, -g}, {g, g}, {-g, g}}
		detJ = dx * dy / 4.
	)
	re = &ReferenceElement{
		Nq:            4,
		NNodesPerCell: 4,
		ShapeValues:   mat.NewDense(4, 4, nil),
		JxW:           make([]float64, 4),
		QPoints:       pts,
	}
	for q, p := range pts {
		xi, eta := p[0], p[1]
		re.ShapeValues.Set(q, 0, 0.25*(1-xi)*(1-eta))
		re.ShapeValues.Set(q, 1, 0.25*(1+xi)*(1-eta))
		re.ShapeValues.Set(q, 2, 0.25*(1+xi)*(1+eta))
		re.ShapeValues.Set(q, 3, 0.25*(1-xi)*(1+eta))
		re.JxW[q] = detJ // unit Gauss weights for the 2x2 rule
	}
	return
}

// NewUniformGrid builds an nx by ny grid of bilinear quads covering
// width x height. All cells start active, material 0, solid.
func NewUniformGrid(nx, ny int, width, height float64) (msh *Mesh) {
	if nx < 1 || ny < 1 {
		panic(fmt.Sprintf("invalid grid dimensions %d x %d", nx, ny))
	}
	var (
		dx, dy = width / float64(nx), height / float64(ny)
		nvx    = nx + 1
	)
	msh = &Mesh{
		Cells:  make([]Cell, nx*ny),
		NNodes: (nx + 1) * (ny + 1),
		Ref:    NewBilinearQuad(dx, dy),
		Nx:     nx,
		Ny:     ny,
		Dx:     dx,
		Dy:     dy,
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			k := i + j*nx
			n0 := i + j*nvx
			msh.Cells[k] = Cell{
				MPDof:  k,
				Active: true,
				Nodes:  []int{n0, n0 + 1, n0 + 1 + nvx, n0 + nvx},
			}
		}
	}
	return
}

// NodeCoords returns the coordinates of temperature node n on a uniform grid.
func (msh *Mesh) NodeCoords(n int) (x, y float64) {
	nvx := msh.Nx + 1
	return float64(n%nvx) * msh.Dx, float64(n/nvx) * msh.Dy
}

// CellCenter returns the centroid of cell k on a uniform grid.
func (msh *Mesh) CellCenter(k int) (x, y float64) {
	i, j := k%msh.Nx, k/msh.Nx
	return (float64(i) + 0.5) * msh.Dx, (float64(j) + 0.5) * msh.Dy
}

// SetPowderLayers marks the top nLayers rows of cells as powder with the
// given material id, the remainder stays solid. Typical powder-bed setup.
func (msh *Mesh) SetPowderLayers(nLayers int) {
	for k := range msh.Cells {
		if k/msh.Nx >= msh.Ny-nLayers {
			msh.Cells[k].UserIndex = 1 // powder
		}
	}
}

// TopSurfaceNodes returns the temperature dofs on the top boundary, where
// the heat source deposits energy and radiation/convection losses apply.
func (msh *Mesh) TopSurfaceNodes() (nodes []int) {
	nvx := msh.Nx + 1
	for i := 0; i < nvx; i++ {
		nodes = append(nodes, i+msh.Ny*nvx)
	}
	return
}
