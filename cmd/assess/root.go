package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pronounce-go/internal/config"
	"pronounce-go/internal/dataset"
	"pronounce-go/internal/logger"
	"pronounce-go/internal/pipeline"
	"pronounce-go/internal/processor"
)

type rootOptions struct {
	referenceDir string
	catalog      string
	tuning       string
	mock         bool
	verbose      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "assess",
		Short:        "Offline pronunciation assessment and calibration",
		SilenceUsage: true,
	}
	f := root.PersistentFlags()
	f.StringVar(&opts.referenceDir, "reference-dir", "", "reference recordings directory (overrides REFERENCE_AUDIO_DIR)")
	f.StringVar(&opts.catalog, "catalog", "", "phrase catalog xlsx (overrides PHRASE_CATALOG)")
	f.StringVar(&opts.tuning, "tuning", "", "tuning YAML (overrides TUNING_PATH)")
	f.BoolVar(&opts.mock, "mock", false, "use the deterministic provider stand-in")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(newAssessCmd(opts), newCalibrateCmd(opts))
	return root
}

// build wires the pipeline from the environment plus flag overrides. Logs go
// to stderr so stdout stays clean JSON.
func (o *rootOptions) build() (*pipeline.Pipeline, *logger.Logger, error) {
	log := logger.NewWithOutput(os.Stderr)
	if o.verbose {
		log.Logger.SetLevel(logrus.DebugLevel)
	} else {
		log.Logger.SetLevel(logrus.WarnLevel)
	}

	svc := config.FromEnv()
	if o.referenceDir != "" {
		svc.ReferenceDir = o.referenceDir
	}
	if o.catalog != "" {
		svc.PhraseCatalog = o.catalog
	}
	if o.tuning != "" {
		svc.TuningPath = o.tuning
	}
	if o.mock {
		svc.MockSpeech = true
	}
	p, err := pipeline.Build(svc, log, nil)
	if err != nil {
		return nil, nil, err
	}
	return p, log, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func newAssessCmd(opts *rootOptions) *cobra.Command {
	var (
		file, reference, recognized, prosodyFile, mode string
	)
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess one WAV recording against a reference phrase",
		RunE: func(cmd *cobra.Command, _ []string) error {
			wav, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read audio: %w", err)
			}
			req := processor.Request{Audio: wav, Reference: reference, RecognizedText: recognized}
			if prosodyFile != "" {
				if req.Prosody, err = os.ReadFile(prosodyFile); err != nil {
					return fmt.Errorf("read prosody: %w", err)
				}
			}

			p, _, err := opts.build()
			if err != nil {
				return err
			}
			if mode != "compare" || recognized == "" {
				if err := p.Remote.Ready(); err != nil {
					return err
				}
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			var res any
			switch mode {
			case "evaluate":
				res, err = p.Engine.Evaluate(ctx, req)
			case "compare":
				res, err = p.Engine.Compare(ctx, req)
			case "full":
				res, err = p.Engine.Assess(ctx, req)
			default:
				return fmt.Errorf("unknown mode %q (evaluate, compare, full)", mode)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "WAV recording")
	cmd.Flags().StringVarP(&reference, "reference", "r", "", "reference phrase text")
	cmd.Flags().StringVar(&recognized, "recognized", "", "previously recognized text (compare mode)")
	cmd.Flags().StringVar(&prosodyFile, "prosody", "", "prosody JSON from an earlier provider call (compare mode)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "full", "pipeline: evaluate, compare or full")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}

func newCalibrateCmd(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Run every reference recording through the local pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, log, err := opts.build()
			if err != nil {
				return err
			}
			if p.Store.Len() == 0 {
				return fmt.Errorf("no reference recordings found")
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			rows, err := p.Engine.Calibrate(ctx)
			if err != nil {
				return err
			}
			if out != "" {
				if err := dataset.WriteCalibration(out, rows); err != nil {
					return err
				}
				log.WithField("path", out).WithField("phrases", len(rows)).Info("calibration report written")
			}
			return printJSON(cmd.OutOrStdout(), dataset.Summarize(rows))
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "calibration.xlsx", "xlsx report path, empty to skip")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
