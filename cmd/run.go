package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/notargets/goam/InputParameters"
	"github.com/notargets/goam/material"
	"github.com/notargets/goam/mesh"
	"github.com/notargets/goam/thermal"
	"github.com/notargets/goam/utils"
)

type RunModel struct {
	InputFile string
	Profile   bool
	Steps     int
}

var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a powder-bed thermal simulation from a YAML input deck",
	Long:  `Run a powder-bed thermal simulation from a YAML input deck`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
			rm  = &RunModel{}
		)
		if rm.InputFile, err = cmd.Flags().GetString("inputFile"); err != nil {
			panic(err)
		}
		rm.Profile, _ = cmd.Flags().GetBool("profile")
		rm.Steps, _ = cmd.Flags().GetInt("maxSteps")
		ip := processInput(rm)
		Run(rm, ip)
	},
}

func processInput(rm *RunModel) (ip *InputParameters.InputParameters) {
	if len(rm.InputFile) == 0 {
		err := fmt.Errorf("must supply an input deck (-I, --inputFile) in YAML format")
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "Bare Plate Scan"
Nx: 40
Ny: 20
Width: 2.e-3
Height: 1.e-3
PowderLayers: 2
TimeStep: 1.e-6
FinalTime: 1.e-3
InitialTemperature: 300.
SourcePower: 150.
SourceRadius: 1.e-4
SourceSpeed: 0.8
materials:
  n_materials: 1
  property_format: polynomial
  material_0:
    solidus: 1675.
    liquidus: 1708.
    latent_heat: 290000.
    radiation_temperature_infty: 300.
    convection_temperature_infty: 300.
    solid:
      density: "7904."
      specific_heat: "714."
      thermal_conductivity_x: "31.4"
      thermal_conductivity_z: "31.4"
      emissivity: "0.9"
      convection_heat_transfer_coef: "10."
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	var data []byte
	data, err := os.ReadFile(rm.InputFile)
	if err != nil {
		panic(err)
	}
	ip = &InputParameters.InputParameters{}
	if err = ip.Parse(data); err != nil {
		panic(err)
	}
	return
}

func init() {
	rootCmd.AddCommand(RunCmd)
	RunCmd.Flags().StringP("inputFile", "I", "", "YAML input deck with grid, source and materials sections")
	RunCmd.Flags().BoolP("profile", "p", false, "write a CPU profile for this run")
	RunCmd.Flags().IntP("maxSteps", "s", 0, "stop after this many steps regardless of FinalTime")
}

func Run(rm *RunModel, ip *InputParameters.InputParameters) {
	if rm.Profile {
		defer profile.Start().Stop()
	}
	ip.Print()

	msh := mesh.NewUniformGrid(ip.Nx, ip.Ny, ip.Width, ip.Height)
	if ip.PowderLayers > 0 {
		msh.SetPowderLayers(ip.PowderLayers)
	}

	db, err := material.LoadDatabase(&ip.Materials)
	if err != nil {
		fmt.Printf("error loading material database: %s\n", err.Error())
		os.Exit(1)
	}

	var mp *material.MaterialProperty
	if ip.UseAccel {
		device := utils.CreateDevice(true)
		defer device.Free()
		mp = material.NewMaterialPropertyOnDevice(msh, db, device)
		defer mp.Free()
	} else {
		pd := ip.ParallelDeg
		if pd == 0 {
			pd = 4
		}
		mp = material.NewMaterialProperty(msh, db, pd)
	}

	s := thermal.NewSolver(msh, mp, ip.InitialTemp, thermal.HeatSource{
		Power:  ip.SourcePower,
		Radius: ip.SourceRadius,
		Speed:  ip.SourceSpeed,
	})

	var (
		step     int
		reportAt = 100
	)
	for s.Time < ip.FinalTime {
		s.Step(ip.TimeStep)
		step++
		if step%reportAt == 0 {
			fmt.Printf("step %d, time %8.6f, Tmax %8.2f\n",
				step, s.Time, s.MaxTemperature())
		}
		if rm.Steps > 0 && step >= rm.Steps {
			break
		}
	}
	fmt.Printf("finished: %d steps, time %8.6f, Tmax %8.2f\n",
		step, s.Time, s.MaxTemperature())
}
