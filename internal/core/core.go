package core

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"procpool/internal/channel"
	"procpool/internal/task"
)

// ErrBusy は処理中のワーカーへの割り当てを表す
var ErrBusy = errors.New("core already has a task in flight")

// ErrNoTask は割り当てのないワーカーからの結果受信を表す
var ErrNoTask = errors.New("core has no task in flight")

// Completion は1件のタスク完了
type Completion struct {
	Task      task.Task
	Value     int
	Latency   time.Duration
	Malformed error // 結果メッセージが不正な場合の ProtocolError
}

// Core はディスパッチャ側から見たワーカー
type Core struct {
	id      int
	tasks   io.WriteCloser
	results io.ReadCloser
	rx      *channel.Receiver

	mu         sync.RWMutex
	idle       bool
	closed     bool
	current    task.Task
	assignedAt time.Time
	values     []int
}

// New は新しいCoreを作成する
// 作成直後のワーカーはアイドル状態
func New(id int, tasks io.WriteCloser, results io.ReadCloser) *Core {
	return &Core{
		id:      id,
		tasks:   tasks,
		results: results,
		rx:      channel.NewReceiver(results),
		idle:    true,
	}
}

// ID はワーカーIDを返す
func (c *Core) ID() int {
	return c.id
}

// Idle はアイドル状態かどうかを返す
func (c *Core) Idle() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idle
}

// Current は処理中のタスクを返す
func (c *Core) Current() (task.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, !c.idle
}

// Assign はタスクを送信してワーカーを処理中にする
func (c *Core) Assign(t task.Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.idle {
		return ErrBusy
	}
	if c.closed {
		return fmt.Errorf("core %d: %w", c.id+1, channel.ErrClosed)
	}
	if err := channel.Send(c.tasks, t.String()); err != nil {
		return fmt.Errorf("assign %s to core %d: %w", t, c.id+1, err)
	}

	c.idle = false
	c.current = t
	c.assignedAt = time.Now()
	return nil
}

// Collect は結果を1件受信して記録し、ワーカーをアイドルに戻す
// 不正な結果は task.Sentinel として記録する
func (c *Core) Collect() (Completion, error) {
	c.mu.RLock()
	if c.idle {
		c.mu.RUnlock()
		return Completion{}, ErrNoTask
	}
	current, assignedAt := c.current, c.assignedAt
	c.mu.RUnlock()

	msg, err := c.rx.Receive()
	if err != nil {
		return Completion{}, fmt.Errorf("receive from core %d: %w", c.id+1, err)
	}

	value, perr := task.ParseResult(msg)
	completion := Completion{
		Task:      current,
		Value:     value,
		Latency:   time.Since(assignedAt),
		Malformed: perr,
	}

	c.mu.Lock()
	c.values = append(c.values, value)
	c.idle = true
	c.mu.Unlock()

	return completion, nil
}

// Results は完了順の結果列のコピーを返す
func (c *Core) Results() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.values)
}

// Completed は受信済みの結果数を返す
func (c *Core) Completed() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// CloseInbound はタスク送信側を閉じる
// ワーカーはこれを ChannelClosed として観測し終了する
func (c *Core) CloseInbound() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.tasks.Close(); err != nil {
		return fmt.Errorf("close inbound of core %d: %w", c.id+1, err)
	}
	return nil
}

// CloseOutbound は結果受信側を閉じる
func (c *Core) CloseOutbound() error {
	if err := c.results.Close(); err != nil {
		return fmt.Errorf("close outbound of core %d: %w", c.id+1, err)
	}
	return nil
}

// Info はワーカーの状態のスナップショット
type Info struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Idle      bool   `json:"idle"`
	Current   string `json:"current,omitempty"`
	Completed int    `json:"completed"`
	Results   []int  `json:"results"`
}

// Info は現在の状態を返す
func (c *Core) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := Info{
		ID:        c.id,
		Name:      fmt.Sprintf("Core %d", c.id+1),
		Idle:      c.idle,
		Completed: len(c.values),
		Results:   slices.Clone(c.values),
	}
	if !c.idle {
		info.Current = c.current.String()
	}
	return info
}
