package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/partpilot/forecast/internal/bundle"
	"github.com/partpilot/forecast/internal/dataset"
	"github.com/partpilot/forecast/internal/features"
	"github.com/partpilot/forecast/internal/training"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	defaults := training.DefaultHyperparams()

	app := &cli.App{
		Name:  "train",
		Usage: "Fit per-group consumption forecast models from historical part logs",
		Flags: []cli.Flag{
			&cli.IntSliceFlag{
				Name:     "years",
				Usage:    "Years of historical data to load (repeatable)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "data-root",
				Usage:   "Root directory holding <year>/Part_*.csv files",
				Value:   "./data",
				EnvVars: []string{"DATA_ROOT"},
			},
			&cli.StringFlag{
				Name:    "model-dir",
				Usage:   "Directory the model bundle is written to",
				Value:   "./models",
				EnvVars: []string{"MODEL_DIR"},
			},
			&cli.IntFlag{Name: "rf-reg", Usage: "Trees in the demand regressor", Value: defaults.RFReg},
			&cli.IntFlag{Name: "rf-days", Usage: "Trees in the depletion-days regressor", Value: defaults.RFDays},
			&cli.IntFlag{Name: "rf-cls", Usage: "Trees in the risk classifiers", Value: defaults.RFCls},
			&cli.IntFlag{Name: "max-depth", Usage: "Tree depth limit, 0 for unlimited", Value: defaults.MaxDepth},
			&cli.Int64Flag{Name: "seed", Usage: "Base RNG seed", Value: defaults.Seed},
			&cli.BoolFlag{Name: "eval-mae", Usage: "Evaluate held-out MAE and embed metrics in the bundle", Value: true},
			&cli.Float64Flag{Name: "eval-split", Usage: "Held-out fraction per group", Value: 0.2},
			&cli.Float64Flag{Name: "event-prob", Usage: "Probability of perturbing a training label", Value: defaults.EventProb},
			&cli.Float64SliceFlag{
				Name:  "event-range",
				Usage: "Lower and upper bound of the label perturbation magnitude",
				Value: cli.NewFloat64Slice(defaults.EventLo, defaults.EventHi),
			},
			&cli.BoolFlag{Name: "save-meta", Usage: "Write a JSON metadata sidecar next to the bundle", Value: true},
			&cli.BoolFlag{Name: "compress", Usage: "Gzip the bundle on disk", Value: true},
			&cli.Float64Flag{Name: "sample-rate", Usage: "Fraction of parts to train on, 1 for all", Value: 1.0},
		},
		Action: runTraining,
	}

	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("training failed")
		os.Exit(1)
	}
}

func runTraining(c *cli.Context) error {
	years := c.IntSlice("years")
	if len(years) == 0 {
		return fmt.Errorf("at least one --years value is required")
	}

	hp := training.DefaultHyperparams()
	hp.RFReg = c.Int("rf-reg")
	hp.RFDays = c.Int("rf-days")
	hp.RFCls = c.Int("rf-cls")
	hp.MaxDepth = c.Int("max-depth")
	hp.Seed = c.Int64("seed")
	hp.EventProb = c.Float64("event-prob")
	if r := c.Float64Slice("event-range"); len(r) == 2 {
		hp.EventLo, hp.EventHi = r[0], r[1]
	} else if len(r) != 0 {
		return fmt.Errorf("--event-range expects exactly two values, got %d", len(r))
	}

	start := time.Now()
	records, err := dataset.LoadYears(c.String("data-root"), years, dataset.Options{
		SampleRate: c.Float64("sample-rate"),
		Seed:       hp.Seed,
	})
	if err != nil {
		return err
	}

	frame, err := features.Build(records)
	if err != nil {
		return err
	}
	log.Info().
		Int("rows", len(frame.X)).
		Int("parts", frame.PartCount).
		Int("features", len(frame.Columns)).
		Msg("feature frame built")

	parts := training.SplitGroups(frame, c.Float64("eval-split"), hp.Seed)
	log.Info().Int("groups", len(parts)).Msg("partitioned by category/size/manufacturer")

	b, err := training.Train(c.Context, frame, parts, hp, time.Now().UTC(), years)
	if err != nil {
		return err
	}

	if c.Bool("eval-mae") {
		b.Meta.Metrics = training.Evaluate(frame, parts, b)
	}

	store := bundle.NewStore(c.String("model-dir"))
	if err := store.Save(b, bundle.SaveOptions{
		Compress: c.Bool("compress"),
		SaveMeta: c.Bool("save-meta"),
	}); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}

	log.Info().
		Str("path", store.Path()).
		Int("groups", len(b.Groups)).
		Dur("elapsed", time.Since(start)).
		Msg("model bundle written")
	return nil
}
