package pool

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"procpool/internal/console"
	"procpool/internal/notify"
	"procpool/internal/worker"
)

// ワーカープロセス側のファイルディスクリプタ番号（ExtraFiles の順）
const (
	TaskFD   = 3
	ResultFD = 4
	NotifyFD = 5
)

// GoroutineLauncher はワーカーをゴルーチンとして起動する
type GoroutineLauncher struct {
	ComputeDelay time.Duration
	Console      *console.Console
}

// Launch はパイプを作成してワーカーを起動する
func (l *GoroutineLauncher) Launch(id int, board *notify.Board) (*Handle, error) {
	taskR, taskW, err := os.Pipe()
	if err != nil {
		return nil, &ResourceError{Op: "create task pipe", Worker: id, Err: err}
	}
	resultR, resultW, err := os.Pipe()
	if err != nil {
		closeAll(taskR, taskW)
		return nil, &ResourceError{Op: "create result pipe", Worker: id, Err: err}
	}

	w := worker.New(worker.Config{
		ID:           id,
		ComputeDelay: l.ComputeDelay,
		Console:      l.Console,
	}, taskR, resultW, board)

	done := make(chan error, 1)
	go func() {
		done <- w.Run()
	}()

	return &Handle{
		Tasks:   taskW,
		Results: resultR,
		Wait:    onceWait(done),
	}, nil
}

// ProcessLauncher はワーカーを別プロセスとして起動する
type ProcessLauncher struct {
	Path         string        // 実行ファイル（空で自分自身）
	Args         []string      // ワーカーサブコマンドまでの引数
	ComputeDelay time.Duration // ワーカーに渡す模擬計算時間
	NoColor      bool
	Stdout       io.Writer
	Stderr       io.Writer
}

// NewProcessLauncher は自分自身を "worker" サブコマンドで起動する Launcher を作成する
func NewProcessLauncher(delay time.Duration) (*ProcessLauncher, error) {
	path, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return &ProcessLauncher{
		Path:         path,
		Args:         []string{"worker"},
		ComputeDelay: delay,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
	}, nil
}

// Command はワーカー id を起動するコマンドを組み立てる
func (l *ProcessLauncher) Command(id int) *exec.Cmd {
	args := append([]string{}, l.Args...)
	args = append(args, "-delay", l.ComputeDelay.String())
	if l.NoColor {
		args = append(args, "-no-color")
	}
	args = append(args,
		strconv.Itoa(id),
		strconv.Itoa(TaskFD),
		strconv.Itoa(ResultFD),
		strconv.Itoa(NotifyFD),
	)

	cmd := exec.Command(l.Path, args...)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	return cmd
}

// Launch はパイプを作成してワーカープロセスを起動する
// 子プロセス側の端点は起動後すぐに閉じる
func (l *ProcessLauncher) Launch(id int, board *notify.Board) (*Handle, error) {
	taskR, taskW, err := os.Pipe()
	if err != nil {
		return nil, &ResourceError{Op: "create task pipe", Worker: id, Err: err}
	}
	resultR, resultW, err := os.Pipe()
	if err != nil {
		closeAll(taskR, taskW)
		return nil, &ResourceError{Op: "create result pipe", Worker: id, Err: err}
	}
	notifyR, notifyW, err := os.Pipe()
	if err != nil {
		closeAll(taskR, taskW, resultR, resultW)
		return nil, &ResourceError{Op: "create notify pipe", Worker: id, Err: err}
	}

	cmd := l.Command(id)
	cmd.ExtraFiles = []*os.File{taskR, resultW, notifyW}

	if err := cmd.Start(); err != nil {
		closeAll(taskR, taskW, resultR, resultW, notifyR, notifyW)
		return nil, &ResourceError{Op: "start worker process", Worker: id, Err: err}
	}
	closeAll(taskR, resultW, notifyW)

	relayDone := make(chan error, 1)
	go func() {
		relayDone <- notify.Relay(notifyR, id, board)
		_ = notifyR.Close()
	}()

	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		if rerr := <-relayDone; err == nil {
			err = rerr
		}
		done <- err
	}()

	return &Handle{
		Tasks:   taskW,
		Results: resultR,
		Wait:    onceWait(done),
	}, nil
}

// onceWait は done の結果を何度でも返す Wait 関数を作る
func onceWait(done <-chan error) func() error {
	return sync.OnceValue(func() error {
		return <-done
	})
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
