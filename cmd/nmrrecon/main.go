package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"nmrrecon/internal/models"
	"nmrrecon/pkg/config"
	"nmrrecon/pkg/reconstruction"
	"nmrrecon/pkg/wavenet"
)

func main() {
	// Parse command line arguments
	in := flag.String("in", "", "Input NMRPipe file")
	out := flag.String("out", "", "Output NMRPipe file")
	kind := flag.String("kind", "indirect", "Reconstruction kind: indirect (2D plane) or 3d")
	mode := flag.String("mode", "", "Network: dec (13C decoupled) or h1; overrides the config file")
	configPath := flag.String("config", "nmrrecon.yaml", "YAML configuration file")
	workers := flag.Int("workers", -1, "Tiles evaluated concurrently (default: config value)")
	rescale3D := flag.Bool("rescale3d", false, "Restore the input intensity scale of 3D output")
	diagnostics := flag.String("diagnostics", "", "Save diagnostic spectra or previews to this directory")
	writeConfig := flag.String("write-config", "", "Write a default configuration file to this path and exit")
	dryRun := flag.Bool("dry-run", false, "Use a pass-through model instead of trained weights")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *writeConfig)
		return
	}

	// Validate inputs
	if *in == "" || *out == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Explicit flags win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Processing.Mode = *mode
		case "workers":
			cfg.Processing.Workers = *workers
		case "rescale3d":
			cfg.Processing.Rescale3D = *rescale3D
		case "diagnostics":
			cfg.Output.Diagnostics = true
			cfg.Output.DiagnosticsDir = *diagnostics
		}
	})

	params, err := cfg.Params()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	var r *reconstruction.Reconstructor
	if *dryRun {
		width := wavenet.ArchitectureFor(params.Mode).Width
		r = reconstruction.NewReconstructorWithPredictor(params, wavenet.Identity{TileWidth: width})
	} else {
		r, err = reconstruction.NewReconstructor(params)
		if err != nil {
			log.Fatalf("Failed to load model: %v", err)
		}
	}

	fmt.Printf("Reconstructing %s (%s, mode %s, network width %d)\n", *in, *kind, params.Mode, r.Width())
	startTime := time.Now()

	switch *kind {
	case "3d", "3D":
		err = r.Reconstruct3D(*in, *out)
	case "indirect", "2d", "2D":
		var diag *reconstruction.Diagnostics
		diag, err = r.ReconstructIndirect(*in, *out)
		if err == nil && diag != nil {
			fmt.Printf("Spectrum RMSE: %.6f\n", diag.RMSE)
			fmt.Printf("Spectrum correlation: %.4f\n", diag.Correlation)
		}
	default:
		log.Fatalf("Unknown kind %q (want indirect or 3d)", *kind)
	}
	if err != nil {
		log.Fatalf("Reconstruction failed (%s): %v", category(err), err)
	}

	fmt.Printf("Reconstruction completed in %.2f seconds, output saved to %s\n", time.Since(startTime).Seconds(), *out)
}

// category names the error class for the failure message
func category(err error) string {
	switch {
	case errors.Is(err, models.ErrInputShape):
		return "input shape"
	case errors.Is(err, models.ErrModelLoad):
		return "model"
	case errors.Is(err, models.ErrDegenerateScale):
		return "scale"
	case errors.Is(err, models.ErrNonFinite):
		return "model output"
	case errors.Is(err, models.ErrIO):
		return "i/o"
	}
	return "other"
}
