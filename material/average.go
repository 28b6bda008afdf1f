package material

import (
	"fmt"

	"github.com/notargets/goam/mesh"
)

// computeAverageTemperature projects the nodal temperature field onto the
// material points by a volume-weighted cell average. The property evaluation
// needs the properties to be uniform over each cell; a multi-valued
// temperature would break the weak form discretization downstream.
//
// Inactive cells keep their previous average. The temperature mesh and the
// material-point mesh must enumerate the same cells in the same order -
// anything else is a fatal precondition violation.
func (mp *MaterialProperty) computeAverageTemperature(tempMesh *mesh.Mesh,
	temperature []float64) {
	if len(tempMesh.Cells) != len(mp.msh.Cells) {
		panic(fmt.Sprintf("temperature mesh has %d cells, material-point mesh has %d",
			len(tempMesh.Cells), len(mp.msh.Cells)))
	}
	if len(temperature) < tempMesh.NNodes {
		panic(fmt.Sprintf("temperature field has %d entries, mesh has %d nodes",
			len(temperature), tempMesh.NNodes))
	}
	ref := tempMesh.Ref
	for k, cell := range tempMesh.Cells {
		if !cell.Active {
			continue
		}
		dof := mp.mpDofs[k]
		var volume, sum float64
		for q := 0; q < ref.Nq; q++ {
			for i, n := range cell.Nodes {
				sv := ref.ShapeValues.At(q, i)
				volume += sv * ref.JxW[q]
				sum += sv * temperature[n] * ref.JxW[q]
			}
		}
		mp.temperatureAverage[dof] = sum / volume
	}
}
