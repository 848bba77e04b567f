package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"procpool/internal/chaos"
	"procpool/internal/console"
	"procpool/internal/core"
	"procpool/internal/events"
	"procpool/internal/logger"
	"procpool/internal/metrics"
	"procpool/internal/pool"
	"procpool/internal/task"
	"procpool/internal/worker"
)

// Config はディスパッチャの設定
type Config struct {
	NumTasks     int           // タスク数
	MaxBits      int           // ビット幅の上限
	Workers      int           // ワーカー数
	ComputeDelay time.Duration // ワーカーの模擬計算時間
	Seed         uint64        // タスク生成のシード（0で時刻から決定）

	// 障害注入設定
	EnableChaos bool
	Chaos       chaos.Config
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		NumTasks:     10,
		MaxBits:      4,
		Workers:      pool.DefaultWorkers,
		ComputeDelay: worker.DefaultComputeDelay,
		Chaos:        chaos.DefaultConfig(),
	}
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if c.NumTasks <= 0 {
		return fmt.Errorf("num_tasks must be positive, got %d", c.NumTasks)
	}
	if c.MaxBits <= 0 {
		return fmt.Errorf("max_bits must be positive, got %d", c.MaxBits)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.ComputeDelay < 0 {
		return fmt.Errorf("compute delay must be non-negative, got %v", c.ComputeDelay)
	}
	return nil
}

// Engine はタスクの割り当てと結果の収集を行う
type Engine struct {
	config   Config
	launcher pool.Launcher
	console  *console.Console
	eventBus *events.Bus
	metrics  *metrics.Metrics
	monkey   *chaos.Monkey
	runID    string
	log      logger.Component

	mu      sync.RWMutex
	pool    *pool.Pool
	running bool
	started bool
}

// ErrAlreadyRun は実行済みの Engine での再実行を表す
// 実行IDとメトリクスは1回の実行に属する
var ErrAlreadyRun = errors.New("dispatcher engine has already run")

// New は新しいEngineを作成する
func New(config Config, launcher pool.Launcher) *Engine {
	e := &Engine{
		config:   config,
		launcher: launcher,
		console:  console.Stdout,
		metrics:  metrics.New(),
		runID:    uuid.NewString(),
		log:      logger.For("main"),
	}
	if config.EnableChaos {
		e.monkey = chaos.New(config.Chaos)
	}
	return e
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// SetConsole は進捗出力先を設定する
func (e *Engine) SetConsole(c *console.Console) {
	e.console = c
}

// RunID は実行IDを返す
func (e *Engine) RunID() string {
	return e.runID
}

// Metrics はメトリクスを返す
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

func (e *Engine) publishEvent(event events.Event) {
	if e.eventBus != nil {
		e.eventBus.Publish(event)
	}
}

// Run は全タスクを処理し、プールを停止して結果を返す
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.config.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("dispatcher is already running")
	}
	if e.started {
		e.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	e.running = true
	e.started = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	gen := task.NewGenerator(e.config.MaxBits, e.config.Seed)
	result := &Result{
		RunID:     e.runID,
		Seed:      gen.Seed(),
		NumTasks:  e.config.NumTasks,
		Workers:   e.config.Workers,
		StartTime: time.Now(),
	}

	p, err := pool.New(ctx, pool.Config{
		Workers: e.config.Workers,
		Chaos:   e.monkey,
		Console: e.console,
	}, e.launcher)
	if err != nil {
		return nil, err
	}
	for i := range p.Size() {
		e.publishEvent(events.NewWorkerStartedEvent(e.runID, i))
	}

	e.mu.Lock()
	e.pool = p
	e.mu.Unlock()

	runErr := e.dispatch(ctx, p, gen)
	if runErr != nil {
		e.log.Error("Dispatch aborted: %v", runErr)
	} else {
		e.publishEvent(events.NewRunCompletedEvent(e.runID, e.config.NumTasks))
	}

	shutdownErr := p.Shutdown()
	e.collectResults(p, result)

	if err := errors.Join(runErr, shutdownErr); err != nil {
		return result, err
	}

	for _, c := range p.Cores() {
		e.console.Main("%s: %s", e.console.CoreName(c.ID()), e.console.Values(c.Results()))
	}
	return result, nil
}

// dispatch は全タスクの結果が揃うまで割り当てと収集を繰り返す
func (e *Engine) dispatch(ctx context.Context, p *pool.Pool, gen *task.Generator) error {
	board := p.Board()
	cores := p.Cores()
	assigned, completed := 0, 0

	for completed < e.config.NumTasks {
		if err := ctx.Err(); err != nil {
			return err
		}

		drained := false
		for i, c := range cores {
			if board.Take(i) {
				drained = true
				if err := e.collect(c); err != nil {
					return err
				}
				completed++
			}

			if assigned < e.config.NumTasks && c.Idle() {
				if err := e.assign(c, gen.Next()); err != nil {
					return err
				}
				assigned++
			}
		}

		if completed >= e.config.NumTasks {
			break
		}
		// 何も受信しなかった場合のみ次の通知まで待つ
		if !drained {
			if err := board.Wait(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// assign はタスクをワーカーに送信する
func (e *Engine) assign(c *core.Core, t task.Task) error {
	e.console.Main("Assign %s to %s", e.console.Task(t), e.console.CoreName(c.ID()))
	if err := c.Assign(t); err != nil {
		return err
	}
	e.metrics.RecordAssigned(c.ID())
	e.publishEvent(events.NewTaskAssignedEvent(e.runID, c.ID(), t.String()))
	return nil
}

// collect はワーカーの結果を受信して記録する
func (e *Engine) collect(c *core.Core) error {
	comp, err := c.Collect()
	if err != nil {
		return err
	}

	if comp.Malformed != nil {
		e.log.Warn("Result from core %d: %v", c.ID()+1, comp.Malformed)
		e.publishEvent(events.NewProtocolErrorEvent(e.runID, c.ID(), comp.Malformed))
	}

	e.console.Main("Received result from %s: %s", e.console.CoreName(c.ID()), e.console.Value(comp.Value))
	e.metrics.RecordCompleted(c.ID(), comp.Latency, comp.Malformed != nil)
	e.publishEvent(events.NewResultReceivedEvent(e.runID, c.ID(), comp.Task.String(), comp.Value, comp.Latency))
	return nil
}

// collectResults は停止後のプールから結果を集める
func (e *Engine) collectResults(p *pool.Pool, result *Result) {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	result.PerWorker = make([][]int, p.Size())
	for i, c := range p.Cores() {
		result.PerWorker[i] = c.Results()
		e.publishEvent(events.NewWorkerExitedEvent(e.runID, i, c.Completed()))
	}

	snap := e.metrics.Snapshot()
	result.Assigned = int(snap.Assigned)
	result.Completed = int(snap.Completed)
	result.ProtocolErrors = int(snap.ProtocolErrors)
	result.AvgLatency = snap.AverageLatency
	result.P99Latency = snap.P99Latency

	if e.monkey != nil {
		stats := e.monkey.Stats()
		result.ChaosAttacks = stats.TotalAttacks
	}
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Status は実行状態のスナップショット
type Status struct {
	RunID    string           `json:"run_id"`
	Running  bool             `json:"running"`
	NumTasks int              `json:"num_tasks"`
	Workers  int              `json:"workers"`
	Busy     int              `json:"busy"`
	Metrics  metrics.Snapshot `json:"metrics"`
	Cores    []core.Info      `json:"cores"`
}

// Status は現在の状態を返す
func (e *Engine) Status() Status {
	e.mu.RLock()
	p := e.pool
	running := e.running
	e.mu.RUnlock()

	status := Status{
		RunID:    e.runID,
		Running:  running,
		NumTasks: e.config.NumTasks,
		Workers:  e.config.Workers,
		Metrics:  e.metrics.Snapshot(),
	}
	if p != nil {
		status.Busy = p.BusyCount()
		for _, c := range p.Cores() {
			status.Cores = append(status.Cores, c.Info())
		}
	}
	return status
}
