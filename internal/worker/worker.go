package worker

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"procpool/internal/bits"
	"procpool/internal/channel"
	"procpool/internal/console"
	"procpool/internal/logger"
	"procpool/internal/notify"
	"procpool/internal/task"
)

// State はワーカーの状態を表す
type State int32

const (
	StateIdle State = iota
	StateProcessing
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Config はワーカーの設定
type Config struct {
	ID           int              // ワーカーID（0 始まり）
	ComputeDelay time.Duration    // 1タスクあたりの模擬計算時間
	Console      *console.Console // 進捗出力先（nilで標準出力）
}

// DefaultComputeDelay はデフォルトの模擬計算時間
const DefaultComputeDelay = time.Second

// DefaultConfig はデフォルト設定を返す
func DefaultConfig(id int) Config {
	return Config{
		ID:           id,
		ComputeDelay: DefaultComputeDelay,
	}
}

// Worker は1タスクずつ処理するワーカー
type Worker struct {
	id       int
	delay    time.Duration
	in       io.ReadCloser
	out      io.WriteCloser
	rx       *channel.Receiver
	notifier notify.Notifier
	console  *console.Console
	log      logger.Component

	state     atomic.Int32
	processed atomic.Uint64
}

// New は新しいワーカーを作成する
func New(config Config, in io.ReadCloser, out io.WriteCloser, notifier notify.Notifier) *Worker {
	con := config.Console
	if con == nil {
		con = console.Stdout
	}
	delay := config.ComputeDelay
	if delay < 0 {
		delay = 0
	}
	return &Worker{
		id:       config.ID,
		delay:    delay,
		in:       in,
		out:      out,
		rx:       channel.NewReceiver(in),
		notifier: notifier,
		console:  con,
		log:      logger.For(fmt.Sprintf("core-%d", config.ID+1)),
	}
}

// ID はワーカーIDを返す
func (w *Worker) ID() int {
	return w.id
}

// State は現在の状態を返す
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Processed は処理済みタスク数を返す
func (w *Worker) Processed() uint64 {
	return w.processed.Load()
}

// Run は入力チャネルが閉じられるまでタスクを処理する
func (w *Worker) Run() error {
	for {
		msg, err := w.rx.Receive()
		if errors.Is(err, channel.ErrClosed) {
			return w.shutdown()
		}
		if err != nil {
			w.abort()
			return fmt.Errorf("core %d receive: %w", w.id+1, err)
		}

		if err := w.handle(msg); err != nil {
			w.abort()
			return err
		}
	}
}

// handle は1件のタスクを処理する
func (w *Worker) handle(msg string) error {
	w.state.Store(int32(StateProcessing))
	w.console.Core(w.id, "Received task %s", w.console.Payload(msg))

	channel.SleepFull(w.delay)

	result := Compute(msg, w.log)
	w.console.Core(w.id, "Finished with result: %s", w.console.Value(result))

	if err := channel.Send(w.out, task.FormatResult(result)); err != nil {
		return fmt.Errorf("core %d send result: %w", w.id+1, err)
	}
	w.processed.Add(1)

	// 通知は必ず結果の書き込み後
	if err := w.notifier.Notify(w.id); err != nil {
		return fmt.Errorf("core %d notify: %w", w.id+1, err)
	}

	w.state.Store(int32(StateIdle))
	return nil
}

// Compute はタスクメッセージから結果を計算する
// 不正なメッセージはログに記録し task.Sentinel を返す
func Compute(msg string, log logger.Component) int {
	t, err := task.ParseTask(msg)
	if err != nil {
		log.Warn("Invalid task message: %v", err)
		return task.Sentinel
	}
	return bits.Extract(t.ID, t.Bits)
}

// shutdown は両端を閉じて終了する
func (w *Worker) shutdown() error {
	w.state.Store(int32(StateShutdown))

	var errs []error
	if err := w.in.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close inbound: %w", err))
	}
	if err := w.out.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close outbound: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("core %d shutdown: %w", w.id+1, err)
	}

	w.console.Core(w.id, "Closed pipes and exiting")
	return nil
}

// abort はエラー時に両端を閉じる
func (w *Worker) abort() {
	w.state.Store(int32(StateShutdown))
	_ = w.in.Close()
	_ = w.out.Close()
}
