package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procpool/internal/bits"
	"procpool/internal/console"
	"procpool/internal/events"
	"procpool/internal/notify"
	"procpool/internal/pool"
	"procpool/internal/task"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func newTestEngine(config Config) (*Engine, *syncBuffer) {
	out := &syncBuffer{}
	con := console.New(out, false)
	engine := New(config, &pool.GoroutineLauncher{ComputeDelay: config.ComputeDelay, Console: con})
	engine.SetConsole(con)
	return engine, out
}

func testConfig(numTasks, maxBits, workers int) Config {
	config := DefaultConfig()
	config.NumTasks = numTasks
	config.MaxBits = maxBits
	config.Workers = workers
	config.ComputeDelay = 0
	config.Seed = 42
	return config
}

func expectedValues(config Config) []int {
	tasks := task.NewGenerator(config.MaxBits, config.Seed).Generate(config.NumTasks)
	values := make([]int, len(tasks))
	for i, t := range tasks {
		values[i] = bits.Extract(t.ID, t.Bits)
	}
	slices.Sort(values)
	return values
}

func mainLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "[MAIN] ") {
			lines = append(lines, strings.TrimPrefix(line, "[MAIN] "))
		}
	}
	return lines
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, pool.DefaultWorkers, config.Workers)
	assert.Equal(t, time.Second, config.ComputeDelay)
	assert.False(t, config.EnableChaos)
	assert.NoError(t, config.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero tasks", func(c *Config) { c.NumTasks = 0 }},
		{"negative bits", func(c *Config) { c.MaxBits = -1 }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"negative delay", func(c *Config) { c.ComputeDelay = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(&config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestEngineRunFourTasksThreeWorkers(t *testing.T) {
	config := testConfig(4, 2, 3)
	engine, out := newTestEngine(config)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, engine.RunID(), result.RunID)
	assert.Equal(t, uint64(42), result.Seed)
	assert.Equal(t, 4, result.Assigned)
	assert.Equal(t, 4, result.Completed)
	assert.Equal(t, 0, result.ProtocolErrors)
	assert.Equal(t, 4, result.TotalResults())
	require.Len(t, result.PerWorker, 3)

	// 最初の走査で全ワーカーに1件ずつ割り当てる
	for i, vs := range result.PerWorker {
		assert.NotEmpty(t, vs, "core %d should have at least one result", i+1)
		for _, v := range vs {
			assert.GreaterOrEqual(t, v, 0)
			assert.LessOrEqual(t, v, 3)
		}
	}

	var got []int
	for _, vs := range result.PerWorker {
		got = append(got, vs...)
	}
	slices.Sort(got)
	assert.Equal(t, expectedValues(config), got)

	lines := mainLines(out.String())
	require.GreaterOrEqual(t, len(lines), 6)
	assert.Equal(t, "Core 1 created", lines[0])
	assert.Equal(t, "Core 2 created", lines[1])
	assert.Equal(t, "Core 3 created", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "Assign 0_"))
	assert.True(t, strings.HasSuffix(lines[3], " to Core 1"))
	assert.True(t, strings.HasSuffix(lines[4], " to Core 2"))
	assert.True(t, strings.HasSuffix(lines[5], " to Core 3"))

	text := out.String()
	for i := 1; i <= 3; i++ {
		assert.Contains(t, text, "Reaped and closed pipes for Core "+string(rune('0'+i)))
		assert.Contains(t, text, "[CORE "+string(rune('0'+i))+"] Closed pipes and exiting")
	}
	assert.Equal(t, 4, strings.Count(text, "[MAIN] Received result from"))
}

func TestEngineInFlightBound(t *testing.T) {
	config := testConfig(20, 6, 3)
	engine, out := newTestEngine(config)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, result.TotalResults())

	inFlight, peak, assigned := 0, 0, 0
	for _, line := range mainLines(out.String()) {
		switch {
		case strings.HasPrefix(line, "Assign "):
			inFlight++
			assigned++
		case strings.HasPrefix(line, "Received result from "):
			inFlight--
		}
		assert.GreaterOrEqual(t, inFlight, 0)
		peak = max(peak, inFlight)
	}
	assert.LessOrEqual(t, peak, config.Workers)
	assert.Equal(t, config.NumTasks, assigned)
	assert.Equal(t, 0, inFlight)
}

func TestEngineSingleWorkerKeepsOrder(t *testing.T) {
	config := testConfig(5, 8, 1)
	engine, _ := newTestEngine(config)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.PerWorker, 1)

	tasks := task.NewGenerator(config.MaxBits, config.Seed).Generate(config.NumTasks)
	want := make([]int, len(tasks))
	for i, tk := range tasks {
		want[i] = bits.Extract(tk.ID, tk.Bits)
	}
	assert.Equal(t, want, result.PerWorker[0])
}

func TestEngineMoreWorkersThanTasks(t *testing.T) {
	config := testConfig(2, 3, 4)
	engine, _ := newTestEngine(config)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.PerWorker, 4)

	assert.Len(t, result.PerWorker[0], 1)
	assert.Len(t, result.PerWorker[1], 1)
	assert.Empty(t, result.PerWorker[2])
	assert.Empty(t, result.PerWorker[3])
}

func TestEngineWithChaos(t *testing.T) {
	config := testConfig(12, 10, 3)
	config.EnableChaos = true
	engine, _ := newTestEngine(config)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, result.Completed)
	assert.Equal(t, 12, result.TotalResults())
}

func TestEngineCancel(t *testing.T) {
	config := testConfig(10, 4, 2)
	config.ComputeDelay = 200 * time.Millisecond
	engine, _ := newTestEngine(config)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := engine.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	require.NotNil(t, result)
	assert.Less(t, result.Completed, config.NumTasks)
	assert.False(t, engine.IsRunning())
}

type failingLauncher struct{}

func (failingLauncher) Launch(id int, board *notify.Board) (*pool.Handle, error) {
	return nil, errors.New("no more pipes")
}

func TestEngineLaunchFailure(t *testing.T) {
	config := testConfig(4, 2, 3)
	engine := New(config, failingLauncher{})
	engine.SetConsole(console.New(&syncBuffer{}, false))

	result, err := engine.Run(context.Background())
	assert.Nil(t, result)

	var rerr *pool.ResourceError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 0, rerr.Worker)
}

func TestEngineRunsOnlyOnce(t *testing.T) {
	engine, _ := newTestEngine(testConfig(3, 2, 2))

	first, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Completed)

	second, err := engine.Run(context.Background())
	assert.Nil(t, second)
	assert.ErrorIs(t, err, ErrAlreadyRun)

	assert.Equal(t, uint64(3), engine.Metrics().Assigned())
	assert.Equal(t, uint64(3), engine.Metrics().Completed())
}

func TestEngineRunInvalidConfig(t *testing.T) {
	engine, _ := newTestEngine(testConfig(0, 2, 3))

	_, err := engine.Run(context.Background())
	assert.Error(t, err)
}

func TestEngineEvents(t *testing.T) {
	config := testConfig(6, 4, 3)
	engine, _ := newTestEngine(config)

	bus := events.NewBusWithBuffer(256)
	ch := bus.Subscribe()
	engine.SetEventBus(bus)

	_, err := engine.Run(context.Background())
	require.NoError(t, err)
	bus.Close()

	counts := make(map[events.EventType]int)
	for event := range ch {
		assert.Equal(t, engine.RunID(), event.RunID)
		counts[event.Type]++
	}

	assert.Equal(t, 3, counts[events.EventWorkerStarted])
	assert.Equal(t, 6, counts[events.EventTaskAssigned])
	assert.Equal(t, 6, counts[events.EventResultReceived])
	assert.Equal(t, 1, counts[events.EventRunCompleted])
	assert.Equal(t, 3, counts[events.EventWorkerExited])
	assert.Zero(t, counts[events.EventProtocolError])
}

func TestEngineStatus(t *testing.T) {
	config := testConfig(4, 2, 3)
	engine, _ := newTestEngine(config)

	status := engine.Status()
	assert.False(t, status.Running)
	assert.Empty(t, status.Cores)

	_, err := engine.Run(context.Background())
	require.NoError(t, err)

	status = engine.Status()
	assert.False(t, status.Running)
	assert.Equal(t, engine.RunID(), status.RunID)
	assert.Equal(t, 4, status.NumTasks)
	assert.Len(t, status.Cores, 3)
	assert.Equal(t, 0, status.Busy)
	assert.Equal(t, uint64(4), status.Metrics.Completed)
}

func TestResultReport(t *testing.T) {
	result := &Result{
		RunID:          "run-1",
		Seed:           7,
		NumTasks:       3,
		Workers:        2,
		StartTime:      time.Now().Add(-time.Second),
		EndTime:        time.Now(),
		Duration:       time.Second,
		Assigned:       3,
		Completed:      3,
		ProtocolErrors: 1,
		ChaosAttacks:   5,
		PerWorker:      [][]int{{1, -1}, {3}},
	}

	report := result.Report()
	assert.Contains(t, report, "DISPATCH REPORT")
	assert.Contains(t, report, "run-1")
	assert.Contains(t, report, "Protocol Errors:    1")
	assert.Contains(t, report, "Injected Faults:    5")
	assert.Contains(t, report, "Core 1:")
	assert.Contains(t, report, "1, -1")
	assert.Equal(t, 3, result.TotalResults())
}
