package train

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seqnet/internal/dataset"
	"github.com/born-ml/seqnet/internal/layer"
	"github.com/born-ml/seqnet/internal/network"
	"github.com/born-ml/seqnet/internal/optim"
	"github.com/born-ml/seqnet/internal/tensor"
)

// regressor builds a 3 -> 4 -> 1 network with fixed initial weights.
func regressor(t *testing.T) *network.Network {
	t.Helper()
	in, err := layer.NewInput1D(3)
	require.NoError(t, err)
	hidden, err := layer.NewDense(4, layer.Tanh, layer.WithSeed(1))
	require.NoError(t, err)
	out, err := layer.NewDense(1, layer.Linear, layer.WithSeed(2))
	require.NoError(t, err)
	net, err := network.FromLayers([]layer.Layer{in, hidden, out})
	require.NoError(t, err)
	return net
}

func params(net *network.Network) [][]float64 {
	var out [][]float64
	for _, p := range net.Parameters() {
		out = append(out, append([]float64(nil), p.Data()...))
	}
	return out
}

func baseConfig() Config {
	return Config{
		BatchSize: 8,
		Epochs:    5,
		Optimizer: optim.Config{LearningRate: 0.1},
		Workers:   1,
		Seed:      42,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"negative epochs", func(c *Config) { c.Epochs = -1 }},
		{"negative workers", func(c *Config) { c.Workers = -2 }},
		{"zero learning rate", func(c *Config) { c.Optimizer.LearningRate = 0 }},
		{"unknown accumulation", func(c *Config) { c.Accumulation = Accumulation(9) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
			_, err := New(regressor(t), cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	assert.NoError(t, baseConfig().Validate())
	cfg := baseConfig()
	cfg.Optimizer.LearningRate = -1
	assert.ErrorIs(t, cfg.Validate(), optim.ErrInvalidLearningRate)
}

func TestParseAccumulation(t *testing.T) {
	for in, want := range map[string]Accumulation{
		"":           Averaged,
		"averaged":   Averaged,
		"Summed":     Summed,
		"per-sample": PerSample,
	} {
		got, err := ParseAccumulation(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseAccumulation("momentum")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	assert.Equal(t, "per-sample", PerSample.String())
	assert.Equal(t, "Accumulation(7)", Accumulation(7).String())
}

func TestNew_Workers(t *testing.T) {
	cfg := baseConfig()
	cfg.Workers = 64
	tr, err := New(regressor(t), cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.BatchSize, tr.Workers())

	cfg.Workers = 0
	tr, err = New(regressor(t), cfg)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, tr.Workers(), 1)
	assert.LessOrEqual(t, tr.Workers(), cfg.BatchSize)

	cfg.Workers = 4
	cfg.Accumulation = PerSample
	tr, err = New(regressor(t), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Workers())
	assert.NotEmpty(t, tr.RunID())
}

func TestRun_ZeroBatchesLeavesParameters(t *testing.T) {
	samples, _, _ := dataset.Linear(5, 3, 1, 0, 1)
	net := regressor(t)
	before := params(net)

	cfg := baseConfig()
	cfg.Workers = 2
	report, err := Train(context.Background(), net, samples, cfg)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Updates)
	assert.Len(t, report.Epochs, cfg.Epochs)
	for _, e := range report.Epochs {
		assert.Equal(t, 0, e.Batches)
		assert.Equal(t, 0, e.Samples)
	}
	assert.Equal(t, before, params(net))
}

func TestRun_DecreasesLoss(t *testing.T) {
	samples, _, _ := dataset.Linear(64, 3, 1, 0, 7)
	net := regressor(t)

	mse := func() float64 {
		var s float64
		for i := 0; i < samples.Len(); i++ {
			s += net.LossValue(samples.Input(i), samples.Target(i))
		}
		return s / float64(samples.Len())
	}
	before := mse()

	cfg := baseConfig()
	cfg.Epochs = 100
	cfg.Workers = 3
	cfg.Optimizer.LearningRate = 0.2
	report, err := Train(context.Background(), net, samples, cfg)
	require.NoError(t, err)

	assert.Equal(t, 100*8, report.Updates)
	require.Len(t, report.Epochs, 100)
	assert.Equal(t, 64, report.Epochs[0].Samples)
	assert.Less(t, report.Epochs[99].MeanLoss, report.Epochs[0].MeanLoss)
	assert.Less(t, mse(), before/5)
}

func TestRun_WorkerCountDoesNotChangeResult(t *testing.T) {
	samples, _, _ := dataset.Linear(40, 3, 1, 0.05, 3)

	run := func(workers int) *network.Network {
		net := regressor(t)
		cfg := baseConfig()
		cfg.BatchSize = 10
		cfg.Workers = workers
		_, err := Train(context.Background(), net, samples, cfg)
		require.NoError(t, err)
		return net
	}

	single := params(run(1))
	for _, workers := range []int{2, 3, 4} {
		multi := params(run(workers))
		for i := range single {
			assert.InDeltaSlice(t, single[i], multi[i], 1e-9, "workers=%d", workers)
		}
	}
}

func TestRun_SummedEqualsAveragedWithScaledRate(t *testing.T) {
	// One batch covering the whole set, so both runs see the same window.
	samples, _, _ := dataset.Linear(6, 3, 1, 0, 5)

	run := func(acc Accumulation, lr float64) [][]float64 {
		net := regressor(t)
		cfg := baseConfig()
		cfg.BatchSize = 6
		cfg.Epochs = 1
		cfg.Workers = 2
		cfg.Accumulation = acc
		cfg.Optimizer.LearningRate = lr
		_, err := Train(context.Background(), net, samples, cfg)
		require.NoError(t, err)
		return params(net)
	}

	averaged := run(Averaged, 0.6)
	summed := run(Summed, 0.1)
	for i := range averaged {
		assert.InDeltaSlice(t, averaged[i], summed[i], 1e-12)
	}
}

func TestRun_PerSample(t *testing.T) {
	samples, _, _ := dataset.Linear(20, 3, 1, 0, 9)
	net := regressor(t)

	cfg := baseConfig()
	cfg.BatchSize = 5
	cfg.Epochs = 3
	cfg.Workers = 4
	cfg.Accumulation = PerSample
	report, err := Train(context.Background(), net, samples, cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Workers)
	assert.Equal(t, 3*4*5, report.Updates)
}

func TestRun_Cancelled(t *testing.T) {
	samples, _, _ := dataset.Linear(32, 3, 1, 0, 1)
	net := regressor(t)
	before := params(net)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := baseConfig()
	cfg.Workers = 2
	report, err := Train(ctx, net, samples, cfg)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, report.Updates)
	assert.Equal(t, before, params(net))
}

func TestRun_RejectsMismatchedSamples(t *testing.T) {
	samples, _, _ := dataset.Linear(16, 2, 1, 0, 1)
	_, err := Train(context.Background(), regressor(t), samples, baseConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	wide, _, _ := dataset.Linear(16, 3, 2, 0, 1)
	_, err = Train(context.Background(), regressor(t), wide, baseConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Train(context.Background(), regressor(t), nil, baseConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRun_RejectsIrregularLaterSample(t *testing.T) {
	inputs := []*tensor.Tensor{tensor.Vector(1, 2, 3), tensor.Vector(4, 5, 6), tensor.Vector(7, 8)}
	targets := []*tensor.Tensor{tensor.Vector(1), tensor.Vector(2), tensor.Vector(3)}
	samples, err := dataset.New(inputs, targets)
	require.NoError(t, err)

	_, err = Train(context.Background(), regressor(t), samples, baseConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "sample 2")

	targets[2] = tensor.Vector(3, 3)
	inputs[2] = tensor.Vector(7, 8, 9)
	_, err = Train(context.Background(), regressor(t), samples, baseConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRun_DiscardsPendingGradients(t *testing.T) {
	samples, _, _ := dataset.Linear(8, 3, 1, 0, 2)

	clean := regressor(t)
	dirty := regressor(t)
	dirty.Accumulate(tensor.Vector(5, 5, 5), tensor.Vector(-100))

	cfg := baseConfig()
	cfg.Epochs = 1
	_, err := Train(context.Background(), clean, samples, cfg)
	require.NoError(t, err)
	_, err = Train(context.Background(), dirty, samples, cfg)
	require.NoError(t, err)
	assert.Equal(t, params(clean), params(dirty))
}

func TestRun_LogsEpochs(t *testing.T) {
	samples, _, _ := dataset.Linear(16, 3, 1, 0, 1)
	var buf bytes.Buffer

	cfg := baseConfig()
	cfg.Epochs = 2
	cfg.Logger = slog.New(slog.NewJSONHandler(&buf, nil))
	tr, err := New(regressor(t), cfg)
	require.NoError(t, err)
	_, err = tr.Run(context.Background(), samples)
	require.NoError(t, err)

	var epochs int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Equal(t, tr.RunID(), rec["run"])
		if rec["msg"] == "epoch complete" {
			epochs++
			assert.Contains(t, rec, "loss")
		}
	}
	assert.Equal(t, 2, epochs)
}
