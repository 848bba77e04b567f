package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"procpool/internal/chaos"
	"procpool/internal/console"
	"procpool/internal/core"
	"procpool/internal/logger"
	"procpool/internal/notify"
)

// DefaultWorkers はデフォルトのワーカー数
const DefaultWorkers = 3

// ResourceError はチャネルまたはワーカーの作成失敗
type ResourceError struct {
	Op     string
	Worker int
	Err    error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s for core %d: %v", e.Op, e.Worker+1, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// Handle は起動済みワーカーのディスパッチャ側の端点
type Handle struct {
	Tasks   io.WriteCloser // ディスパッチャ→ワーカー
	Results io.ReadCloser  // ワーカー→ディスパッチャ
	Wait    func() error   // ワーカーの終了を待つ
}

// Launcher はワーカーを1つ起動する
type Launcher interface {
	Launch(id int, board *notify.Board) (*Handle, error)
}

// Config はプールの設定
type Config struct {
	Workers int              // ワーカー数（0でデフォルト）
	Chaos   *chaos.Monkey    // ディスパッチャ側端点への障害注入（nilで無効）
	Console *console.Console // 進捗出力先（nilで標準出力）
}

// Pool は固定数のワーカーを管理する
type Pool struct {
	cores   []*core.Core
	handles []*Handle
	board   *notify.Board
	console *console.Console

	mu       sync.Mutex
	shutdown bool
}

// New は Workers 個のワーカーを起動する
// 1つでも起動に失敗した場合は起動済みのワーカーを停止して ResourceError を返す
func New(ctx context.Context, config Config, launcher Launcher) (*Pool, error) {
	workers := config.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	con := config.Console
	if con == nil {
		con = console.Stdout
	}

	p := &Pool{
		cores:   make([]*core.Core, 0, workers),
		handles: make([]*Handle, 0, workers),
		board:   notify.NewBoard(workers),
		console: con,
	}

	for i := range workers {
		if err := ctx.Err(); err != nil {
			p.abort()
			return nil, &ResourceError{Op: "launch", Worker: i, Err: err}
		}

		h, err := launcher.Launch(i, p.board)
		if err != nil {
			p.abort()
			var rerr *ResourceError
			if errors.As(err, &rerr) {
				return nil, rerr
			}
			return nil, &ResourceError{Op: "launch", Worker: i, Err: err}
		}

		tasks, results := h.Tasks, h.Results
		if config.Chaos != nil {
			tasks = writeCloser{Writer: config.Chaos.Writer(h.Tasks), Closer: h.Tasks}
			results = readCloser{Reader: config.Chaos.Reader(h.Results), Closer: h.Results}
		}

		p.handles = append(p.handles, h)
		p.cores = append(p.cores, core.New(i, tasks, results))
		con.Main("%s created", con.CoreName(i))
	}

	logger.Debug("main", "Pool started with %d workers", workers)
	return p, nil
}

// Size はワーカー数を返す
func (p *Pool) Size() int {
	return len(p.cores)
}

// Cores は全ワーカーをID順に返す
func (p *Pool) Cores() []*core.Core {
	return p.cores
}

// Board は通知ボードを返す
func (p *Pool) Board() *notify.Board {
	return p.board
}

// IdleCount はアイドル状態のワーカー数を返す
func (p *Pool) IdleCount() int {
	count := 0
	for _, c := range p.cores {
		if c.Idle() {
			count++
		}
	}
	return count
}

// BusyCount は処理中のワーカー数を返す
func (p *Pool) BusyCount() int {
	return p.Size() - p.IdleCount()
}

// Shutdown は全ワーカーの入力チャネルを閉じ、終了を待つ
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return nil
	}
	p.shutdown = true
	p.mu.Unlock()

	var errs []error
	for _, c := range p.cores {
		if err := c.CloseInbound(); err != nil {
			errs = append(errs, err)
		}
	}

	var g errgroup.Group
	for i, h := range p.handles {
		g.Go(func() error {
			if err := h.Wait(); err != nil {
				return fmt.Errorf("wait for core %d: %w", i+1, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}

	for i, c := range p.cores {
		if err := c.CloseOutbound(); err != nil {
			errs = append(errs, err)
		}
		p.console.Main("Reaped and closed pipes for %s", p.console.CoreName(i))
	}

	if err := errors.Join(errs...); err != nil {
		logger.Error("main", "Pool shutdown failed: %v", err)
		return err
	}
	return nil
}

// abort は起動途中のワーカーを停止する
func (p *Pool) abort() {
	for _, h := range p.handles {
		_ = h.Tasks.Close()
	}
	for _, h := range p.handles {
		_ = h.Wait()
		_ = h.Results.Close()
	}
}

type writeCloser struct {
	io.Writer
	io.Closer
}

type readCloser struct {
	io.Reader
	io.Closer
}
