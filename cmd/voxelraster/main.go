package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"voxelraster/pkg/config"
	"voxelraster/pkg/pipeline"
	"voxelraster/pkg/voxelerr"
)

func main() {
	inputPLY := flag.String("input", "", "Path to the input colored PLY point cloud")
	outputDir := flag.String("output", "slices", "Directory to write layer PNGs into")
	configPath := flag.String("config", "", "Path to a YAML job configuration file (optional)")
	writeDefaultConfig := flag.String("write-default-config", "", "Write a default job configuration file to this path and exit")
	dumpNN := flag.Bool("dump-nn", false, "Write a grayscale nn_<layer>.png per layer with raw pre-shell-policy NN distance, for tuning voxel radius")
	flag.Parse()

	if *writeDefaultConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeDefaultConfig); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *writeDefaultConfig)
		return
	}

	if *inputPLY == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *dumpNN {
		cfg.Output.DumpNN = true
	}

	fmt.Println("================================")
	fmt.Println("VOXELRASTER: point cloud to layered PNG raster stack")
	fmt.Println("================================")

	if cfg.Output.Verbose {
		fmt.Printf("Loading point cloud from: %s\n", *inputPLY)
	}

	startTime := time.Now()
	summary, err := pipeline.Run(*inputPLY, *outputDir, cfg)
	if err != nil {
		// Exit-code discipline (spec.md §6): 1 for usage/IO/input errors, all
		// of which pipeline.Run reports as a typed *voxelerr.Error; 2 for
		// anything else, since an untyped error means the pipeline hit a
		// failure mode nobody categorized.
		if kindErr, ok := asVoxelErr(err); ok {
			fmt.Fprintf(os.Stderr, "voxelraster: %s: %v\n", kindErr.Kind, err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "voxelraster: %v\n", err)
		os.Exit(2)
	}
	elapsed := time.Since(startTime)

	fmt.Printf("\nCompleted in %.2f seconds.\n", elapsed.Seconds())
	fmt.Printf("Output slices written to: %s\n\n", *outputDir)
	fmt.Println("Summary:")
	fmt.Println("========")
	fmt.Printf("Raster dimensions: %d x %d x %d\n", summary.Width, summary.Height, summary.Depth)
	fmt.Printf("Input point count: %d\n", summary.PointCount)
	fmt.Printf("Layers with material: %d / %d\n", summary.LayersWithMaterial, summary.Depth)
	fmt.Printf("Total filled pixels: %d\n", summary.TotalFilledPixels)
	fmt.Printf("Mean filled pixels/layer: %.2f (stddev %.2f)\n", summary.MeanFilledPerLayer, summary.StdDevFilledPerLayer)
	if summary.ChamferApplied {
		fmt.Println("Chamfer bevel applied.")
	}
}

func asVoxelErr(err error) (*voxelerr.Error, bool) {
	kindErr, ok := err.(*voxelerr.Error)
	return kindErr, ok
}
