// Package main provides the seqnet CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/klauspost/cpuid/v2"

	"github.com/born-ml/seqnet/internal/config"
	"github.com/born-ml/seqnet/internal/dataset"
	"github.com/born-ml/seqnet/internal/importer"
	"github.com/born-ml/seqnet/internal/modelfile"
	"github.com/born-ml/seqnet/internal/network"
	"github.com/born-ml/seqnet/internal/parallel"
	"github.com/born-ml/seqnet/internal/train"
)

const version = "v0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "seqnet: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return nil
	}

	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "seqnet %s\n", version)
		fmt.Fprintf(stdout, "cpu: %s (%d physical cores, %d default workers)\n",
			cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, parallel.DefaultWorkers())
		return nil
	case "info":
		return runInfo(args[1:], stdout)
	case "train":
		return runTrain(ctx, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	default:
		usage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "seqnet %s\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version                 Show version and CPU")
	fmt.Fprintln(w, "  info -model FILE        Print a model file's layers")
	fmt.Fprintln(w, "  train -config FILE      Train a network (see -h for overrides)")
}

func runInfo(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	modelPath := fs.String("model", "", "Path to model file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" {
		return errors.New("info: -model is required")
	}

	net, err := importer.FromFile(*modelPath)
	if err != nil {
		return err
	}
	return net.Info(stdout)
}

func runTrain(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	cfgPath := fs.String("config", "seqnet.yaml", "Path to YAML config")
	epochs := fs.Int("epochs", 0, "Override number of epochs")
	batchSize := fs.Int("batch", 0, "Override batch size")
	lr := fs.Float64("lr", 0, "Override learning rate")
	workers := fs.Int("workers", 0, "Override number of workers")
	seed := fs.Int64("seed", 0, "Override PRNG seed")
	out := fs.String("out", "", "Override output model path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	var o config.Overrides
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "epochs":
			o.Epochs = epochs
		case "batch":
			o.BatchSize = batchSize
		case "lr":
			o.LearningRate = lr
		case "workers":
			o.Workers = workers
		case "seed":
			o.Seed = seed
		case "out":
			o.Output = out
		}
	})
	cfg.ApplyOverrides(o)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	net, err := buildNetwork(cfg)
	if err != nil {
		return err
	}
	logger.Debug("network ready", "layers", net.Len(), "parameters", net.NumParameters())

	samples, err := loadSamples(cfg)
	if err != nil {
		return err
	}

	tc, err := cfg.TrainConfig(logger)
	if err != nil {
		return err
	}
	tr, err := train.New(net, tc)
	if err != nil {
		return err
	}
	report, err := tr.Run(ctx, samples)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	fmt.Fprintf(stdout, "run %s: %d epochs, %d updates", report.RunID, len(report.Epochs), report.Updates)
	if n := len(report.Epochs); n > 0 {
		fmt.Fprintf(stdout, ", final loss %.6g", report.Epochs[n-1].MeanLoss)
	}
	fmt.Fprintln(stdout)

	if cfg.Output != "" {
		meta := map[string]string{modelfile.MetaRunID: report.RunID}
		if err := importer.Export(net, cfg.Output, meta); err != nil {
			return fmt.Errorf("failed to save model: %w", err)
		}
		fmt.Fprintf(stdout, "saved %s\n", cfg.Output)
	}
	return nil
}

func buildNetwork(cfg *config.Config) (*network.Network, error) {
	if cfg.Model != "" {
		return importer.FromFile(cfg.Model)
	}
	return importer.FromDescriptors(cfg.Descriptors(), nil)
}

func loadSamples(cfg *config.Config) (dataset.Samples, error) {
	d := cfg.Dataset
	switch d.Kind {
	case config.DatasetIDX:
		return dataset.LoadIDX(d.Images, d.Labels, d.Classes, d.MaxSamples)
	default:
		s, _, _ := dataset.Linear(d.Samples, d.Features, d.Outputs, d.Noise, cfg.Seed)
		return s, nil
	}
}
