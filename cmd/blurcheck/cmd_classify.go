package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anime-shed/blur-inspector-go/internal/blur"
	"github.com/anime-shed/blur-inspector-go/internal/config"
	"github.com/anime-shed/blur-inspector-go/internal/container"
	"github.com/anime-shed/blur-inspector-go/internal/decode"
	"github.com/anime-shed/blur-inspector-go/internal/repository"
	"github.com/anime-shed/blur-inspector-go/internal/service"
	"github.com/anime-shed/blur-inspector-go/internal/storage"
	"github.com/anime-shed/blur-inspector-go/internal/worker"
	"github.com/anime-shed/blur-inspector-go/pkg/models"
)

// exitBlurry is returned with --fail-on-blurry when any image is blurry
const exitBlurry = 2

// classifyEnv provides the environment for the classify command.
type classifyEnv struct {
	flagThreshold    float64
	flagPreset       string
	flagKernel       string
	flagMaxDimension int
	flagWorkers      int
	flagJSON         bool
	flagFailOnBlurry bool

	// thresholdSet is true when --threshold was given explicitly
	thresholdSet bool
	cfg          *config.Config
}

// getClassifyCmd returns the definition of the classify command.
func getClassifyCmd() *cobra.Command {
	env := &classifyEnv{}

	ret := &cobra.Command{
		Use:     "classify [files|urls...]",
		Aliases: []string{"c"},
		Short:   "Classify images as blurry or sharp",
		Long: `
Classify each image and print its score, the threshold used and the verdict.
An image is blurry when its score is strictly below the threshold.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			env.cfg = cfg
			env.thresholdSet = cmd.Flags().Changed("threshold")
			return env.run(cmd.Context(), args, cmd.OutOrStdout())
		},
	}
	ret.Flags().Float64VarP(&env.flagThreshold, "threshold", "t", blur.DefaultThreshold, "Scores below this are blurry")
	ret.Flags().StringVarP(&env.flagPreset, "preset", "p", "", "Start from a preset: default, strict or lenient")
	ret.Flags().StringVarP(&env.flagKernel, "kernel", "k", "laplacian4", "Edge kernel: laplacian4 or laplacian8")
	ret.Flags().IntVar(&env.flagMaxDimension, "max-dimension", 0, "Downscale so the longer side is at most this many pixels (0 keeps the original size)")
	ret.Flags().IntVarP(&env.flagWorkers, "workers", "w", 0, "Images classified in parallel (0 uses every CPU)")
	ret.Flags().BoolVar(&env.flagJSON, "json", false, "Print JSON instead of a table")
	ret.Flags().BoolVar(&env.flagFailOnBlurry, "fail-on-blurry", false, "Exit with status 2 when any image is blurry")

	return ret
}

func (e *classifyEnv) run(ctx context.Context, args []string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := e.newService()
	if err != nil {
		return err
	}
	defer closeFn()

	reqs := make([]models.ClassifyRequest, len(args))
	for i, arg := range args {
		reqs[i] = models.ClassifyRequest{URL: arg}
		if e.flagPreset != "" {
			reqs[i].Preset = e.flagPreset
			// the preset replaces the threshold and kernel, so pass explicit flags again
			reqs[i].Kernel = e.flagKernel
			if e.thresholdSet {
				threshold := e.flagThreshold
				reqs[i].Threshold = &threshold
			}
		}
	}
	items := svc.ClassifyBatch(ctx, reqs)

	if e.flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(items); err != nil {
			return err
		}
	} else {
		writeTable(out, items)
	}

	failed, blurry := 0, 0
	for _, item := range items {
		switch {
		case item.Error != nil:
			failed++
		case item.Result.Classification.IsBlurry:
			blurry++
		}
	}
	if failed > 0 {
		return &exitError{code: 1, msg: fmt.Sprintf("%d of %d images could not be classified", failed, len(items))}
	}
	if e.flagFailOnBlurry && blurry > 0 {
		return &exitError{code: exitBlurry, msg: fmt.Sprintf("%d of %d images are blurry", blurry, len(items))}
	}
	return nil
}

// newService builds a service without history that reads local files, http(s) and optionally Azure
func (e *classifyEnv) newService() (*service.BlurDetectionService, func(), error) {
	if !blur.ValidThreshold(e.flagThreshold) {
		return nil, nil, fmt.Errorf("invalid threshold %v", e.flagThreshold)
	}
	if e.flagMaxDimension < 0 || (e.flagMaxDimension > 0 && e.flagMaxDimension < blur.MinDimension) {
		return nil, nil, fmt.Errorf("invalid max dimension %d", e.flagMaxDimension)
	}
	kernel, err := blur.KernelByName(e.flagKernel)
	if err != nil {
		return nil, nil, err
	}

	cfg := e.cfg
	if cfg == nil {
		cfg = &config.Config{}
	}
	router, err := container.NewSourceRouter(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.LocalImageRoot == "" {
		router.Register(storage.NewFileFetcher(""), "file")
	}

	pool := worker.NewWorkerPool(e.flagWorkers)
	pool.Start()

	decoder := decode.NewDecoder(decode.DefaultMaxPixels)
	svc := service.NewBlurDetectionService(
		repository.NewSourceImageRepository(router, decoder),
		nil,
		decoder,
		pool,
		nil,
		service.Config{
			Options:        blur.DefaultOptions().WithThreshold(e.flagThreshold).WithKernel(kernel),
			MaxDimension:   e.flagMaxDimension,
			AllowedSchemes: router.Schemes(),
		},
	)
	return svc, pool.Close, nil
}

func writeTable(out io.Writer, items []models.BatchItem) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Image", "Verdict", "Score", "Threshold", "Size"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, item := range items {
		if item.Error != nil {
			table.Append([]string{item.URL, "error", "-", "-", item.Error.Message})
			continue
		}
		c := item.Result.Classification
		table.Append([]string{
			item.URL,
			string(c.Verdict),
			strconv.FormatFloat(c.Score, 'f', 2, 64),
			strconv.FormatFloat(c.ThresholdUsed, 'f', 2, 64),
			fmt.Sprintf("%dx%d", item.Result.OriginalWidth, item.Result.OriginalHeight),
		})
	}
	table.Render()
}
