// Package notify carries worker completion notifications to the dispatcher.
//
// Each worker has a counter on a Board. A worker's completion increments only
// its own counter; only the dispatcher decrements. Several completions before
// a drain accumulate as a count. Instead of polling the counters the
// dispatcher blocks in Wait, which returns as soon as any Signal has happened
// since the previous Wait.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"

	"procpool/internal/channel"
	"procpool/internal/logger"
)

// Notifier はタスク完了を通知する
type Notifier interface {
	Notify(workerID int) error
}

// Board はワーカーごとの未処理通知数を保持する
type Board struct {
	counts []atomic.Int64
	wake   chan struct{}
}

// NewBoard は size 個のカウンタを持つ Board を作成する
func NewBoard(size int) *Board {
	return &Board{
		counts: make([]atomic.Int64, size),
		wake:   make(chan struct{}, 1),
	}
}

// Size はカウンタ数を返す
func (b *Board) Size() int {
	return len(b.counts)
}

// Signal は id の通知数を1増やしてディスパッチャを起こす
func (b *Board) Signal(id int) {
	b.counts[id].Add(1)
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Notify は Signal を呼び出す（同一プロセス内ワーカー用）
func (b *Board) Notify(id int) error {
	if id < 0 || id >= len(b.counts) {
		return fmt.Errorf("worker id %d out of range [0, %d)", id, len(b.counts))
	}
	b.Signal(id)
	return nil
}

// Pending は id の未処理通知数を返す
func (b *Board) Pending(id int) int64 {
	return b.counts[id].Load()
}

// Take は id の通知が残っていれば1減らして true を返す
// 減算はディスパッチャのみが行う
func (b *Board) Take(id int) bool {
	if b.counts[id].Load() <= 0 {
		return false
	}
	b.counts[id].Add(-1)
	return true
}

// Wait は前回の Wait 以降に Signal があるまでブロックする
func (b *Board) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.wake:
		return nil
	}
}

// PipeNotifier は通知メッセージをパイプに書き込む（別プロセスのワーカー用）
type PipeNotifier struct {
	w io.Writer
}

// NewPipeNotifier は w に書き込む PipeNotifier を作成する
func NewPipeNotifier(w io.Writer) *PipeNotifier {
	return &PipeNotifier{w: w}
}

// Notify はワーカーIDをタグとした通知を送信する
func (p *PipeNotifier) Notify(id int) error {
	return channel.Send(p.w, strconv.Itoa(id))
}

// Relay は r から通知を読み出して board に転送する
// r が閉じられると nil を返す
func Relay(r io.Reader, id int, board *Board) error {
	log := logger.For("main")
	rx := channel.NewReceiver(r)

	for {
		msg, err := rx.Receive()
		if errors.Is(err, channel.ErrClosed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("notification relay for core %d: %w", id+1, err)
		}

		tag, err := strconv.Atoi(msg)
		if err != nil || tag != id {
			log.Warn("Notification %q on core %d channel does not match its id", msg, id+1)
			continue
		}
		board.Signal(id)
	}
}
