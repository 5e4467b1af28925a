// Package train runs mini-batch stochastic gradient descent over a network
// with sample-level data parallelism.
//
// Each worker owns a replica of the network. For every batch, worker 0 draws
// one contiguous window of BatchSize sample indices and broadcasts it; every
// worker then runs forward and backward over its share of the window. The
// replicas' accumulated gradients are summed into every replica before each
// of them applies the same update, so all replicas stay identical.
//
// Example:
//
//	report, err := train.Train(ctx, net, samples, train.Config{
//	    BatchSize: 32,
//	    Epochs:    10,
//	    Optimizer: optim.Config{LearningRate: 0.1},
//	})
package train

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/seqnet/internal/dataset"
	"github.com/born-ml/seqnet/internal/layer"
	"github.com/born-ml/seqnet/internal/network"
	"github.com/born-ml/seqnet/internal/optim"
	"github.com/born-ml/seqnet/internal/parallel"
)

// Window is the half-open range [Start, End) of sample indices that forms
// one batch.
type Window struct {
	Start, End int
}

// Len returns the number of samples in the window.
func (w Window) Len() int {
	return w.End - w.Start
}

// EpochStats summarizes one epoch.
type EpochStats struct {
	Epoch    int
	Batches  int
	Samples  int
	MeanLoss float64 // mean loss over the visited samples, measured before each update
	Duration time.Duration
}

// Report summarizes a run.
type Report struct {
	RunID   string
	Workers int
	Updates int
	Epochs  []EpochStats
}

// round is what worker 0 broadcasts before every batch.
type round struct {
	window Window
	stop   bool
}

// Trainer trains one network. A Trainer is not safe for concurrent use.
type Trainer struct {
	net     *network.Network
	cfg     Config
	workers int
	opt     optim.Optimizer
	rng     *rand.Rand
	runID   string
	log     *slog.Logger

	// Per-run state.
	replicas []*network.Network
	params   [][]*layer.Parameter
	bcast    *parallel.Broadcast[round]
	barrier  *parallel.Barrier
	lossSum  []float64
	seen     []int
	updates  int
	stopped  bool
	report   Report
}

// New validates cfg and prepares a trainer for net.
func New(net *network.Network, cfg Config) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = parallel.DefaultWorkers()
	}
	if cfg.Accumulation == PerSample {
		workers = 1
	}
	workers = max(1, min(workers, cfg.BatchSize))

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	runID := uuid.NewString()

	return &Trainer{
		net:     net,
		cfg:     cfg,
		workers: workers,
		opt:     optim.NewSGD(cfg.Optimizer),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		runID:   runID,
		log:     log.With("run", runID),
	}, nil
}

// Train is shorthand for New followed by Run.
func Train(ctx context.Context, net *network.Network, samples dataset.Samples, cfg Config) (Report, error) {
	t, err := New(net, cfg)
	if err != nil {
		return Report{}, err
	}
	return t.Run(ctx, samples)
}

// RunID returns the identifier stamped on this trainer's log records.
func (t *Trainer) RunID() string {
	return t.runID
}

// Workers returns the number of replicas Run uses.
func (t *Trainer) Workers() int {
	return t.workers
}

// Run trains the network on samples for the configured number of epochs.
//
// Each epoch runs samples.Len() / BatchSize batches; remainder samples are
// never visited and a set smaller than one batch causes no update at all.
// Gradients accumulated on the network before Run are discarded.
//
// Cancelling ctx stops training at the next batch boundary; the updates
// applied so far are kept and ctx's error is returned.
func (t *Trainer) Run(ctx context.Context, samples dataset.Samples) (Report, error) {
	if err := t.check(samples); err != nil {
		return Report{}, err
	}

	t.net.ZeroGrad()
	t.replicas = make([]*network.Network, t.workers)
	t.params = make([][]*layer.Parameter, t.workers)
	t.replicas[0] = t.net
	for r := range t.replicas {
		if r > 0 {
			t.replicas[r] = t.net.Clone()
		}
		t.params[r] = t.replicas[r].Parameters()
	}
	t.bcast = parallel.NewBroadcast[round](t.workers)
	t.barrier = parallel.NewBarrier(t.workers)
	t.lossSum = make([]float64, t.workers)
	t.seen = make([]int, t.workers)
	t.updates, t.stopped = 0, false
	t.report = Report{RunID: t.runID, Workers: t.workers}

	t.log.Info("training started",
		"samples", samples.Len(),
		"batch_size", t.cfg.BatchSize,
		"epochs", t.cfg.Epochs,
		"workers", t.workers,
		"accumulation", t.cfg.Accumulation.String(),
		"learning_rate", t.opt.GetLR())

	var wg sync.WaitGroup
	for r := 0; r < t.workers; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			t.work(ctx, rank, samples)
		}(r)
	}
	wg.Wait()

	t.report.Updates = t.updates
	t.replicas, t.params = nil, nil
	if t.stopped {
		err := ctx.Err()
		t.log.Warn("training cancelled", "updates", t.updates, "err", err)
		return t.report, err
	}
	t.log.Info("training finished", "updates", t.updates)
	return t.report, nil
}

func (t *Trainer) check(samples dataset.Samples) error {
	if samples == nil {
		return fmt.Errorf("%w: no samples", ErrInvalidConfig)
	}
	inShape, outLen := t.net.InputShape(), t.net.OutputShape().NumElements()
	for i := 0; i < samples.Len(); i++ {
		in, out := samples.Input(i), samples.Target(i)
		if !in.Shape().Equal(inShape) {
			return fmt.Errorf("%w: sample %d input shape %v, network expects %v", ErrInvalidConfig, i, in.Shape(), inShape)
		}
		if out.Len() != outLen {
			return fmt.Errorf("%w: sample %d target has %d values, network outputs %v", ErrInvalidConfig, i, out.Len(), t.net.OutputShape())
		}
	}
	return nil
}

// work is the body of one worker goroutine.
func (t *Trainer) work(ctx context.Context, rank int, samples dataset.Samples) {
	net := t.replicas[rank]
	batches := samples.Len() / t.cfg.BatchSize

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		start := time.Now()
		for b := 0; b < batches; b++ {
			if rank == 0 {
				t.bcast.Send(t.nextRound(ctx, samples.Len()))
			}
			rd := t.bcast.Recv(rank)
			if rd.stop {
				return
			}

			lo, hi := parallel.Partition(rank, t.workers, rd.window.Start, rd.window.End)
			for i := lo; i < hi; i++ {
				t.lossSum[rank] += net.Accumulate(samples.Input(i), samples.Target(i))
				t.seen[rank]++
				if t.cfg.Accumulation == PerSample {
					t.opt.Step(net, 1)
					t.updates++
				}
			}
			if t.cfg.Accumulation == PerSample {
				continue
			}

			t.collective(t.allReduce)
			if t.cfg.Accumulation == Averaged {
				t.opt.Step(net, rd.window.Len())
			} else {
				t.opt.Step(net, 1)
			}
			if rank == 0 {
				t.updates++
			}
		}
		t.collective(func() { t.endEpoch(epoch, batches, time.Since(start)) })
	}
}

// nextRound draws the next batch window, or signals stop once ctx is done.
func (t *Trainer) nextRound(ctx context.Context, n int) round {
	if ctx.Err() != nil {
		t.stopped = true
		return round{stop: true}
	}
	s := t.rng.Intn(n - t.cfg.BatchSize + 1)
	return round{window: Window{Start: s, End: s + t.cfg.BatchSize}}
}

// collective runs fn on exactly one worker while every worker is parked
// between two barriers.
func (t *Trainer) collective(fn func()) {
	if t.barrier.Wait() {
		fn()
	}
	t.barrier.Wait()
}

// allReduce replaces every replica's gradients with their sum.
func (t *Trainer) allReduce() {
	if t.workers == 1 {
		return
	}
	for p := range t.params[0] {
		sum := t.params[0][p].GradData()
		for r := 1; r < t.workers; r++ {
			floats.Add(sum, t.params[r][p].GradData())
		}
		for r := 1; r < t.workers; r++ {
			copy(t.params[r][p].GradData(), sum)
		}
	}
}

func (t *Trainer) endEpoch(epoch, batches int, d time.Duration) {
	stats := EpochStats{Epoch: epoch, Batches: batches, Duration: d}
	var sum float64
	for r := range t.lossSum {
		sum += t.lossSum[r]
		stats.Samples += t.seen[r]
		t.lossSum[r], t.seen[r] = 0, 0
	}
	if stats.Samples > 0 {
		stats.MeanLoss = sum / float64(stats.Samples)
	}
	t.report.Epochs = append(t.report.Epochs, stats)

	t.log.Info("epoch complete",
		"epoch", epoch,
		"batches", batches,
		"samples", stats.Samples,
		"loss", stats.MeanLoss,
		"elapsed", d)
}
