// Package main is the entry point for procpool.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"procpool/internal/api"
	"procpool/internal/config"
	"procpool/internal/console"
	"procpool/internal/dispatcher"
	"procpool/internal/events"
	"procpool/internal/logger"
	"procpool/internal/notify"
	"procpool/internal/pool"
	"procpool/internal/worker"
)

var (
	version = "dev"
)

// 終了コード
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// ArgumentError はコマンドライン引数の誤り
type ArgumentError struct {
	Msg string
}

func (e *ArgumentError) Error() string {
	return e.Msg
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options はコマンドラインで与えられた設定
type options struct {
	configFile  string
	workers     int
	mode        string
	delay       time.Duration
	seed        uint64
	chaos       bool
	metricsAddr string
	eventsPath  string
	logLevel    string
	noColor     bool
	showVersion bool

	numTasks int
	maxBits  int

	// 明示的に指定されたフラグ
	set map[string]bool
}

func newFlagSet(opts *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("procpool", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configFile, "config", "", "設定ファイルパス (YAML/JSON)")
	fs.IntVar(&opts.workers, "workers", pool.DefaultWorkers, "ワーカー数")
	fs.StringVar(&opts.mode, "mode", config.ModeProcess, "ワーカーの起動モード (process, goroutine)")
	fs.DurationVar(&opts.delay, "delay", worker.DefaultComputeDelay, "1タスクあたりの模擬計算時間")
	fs.Uint64Var(&opts.seed, "seed", 0, "タスク生成のシード (0で時刻から決定)")
	fs.BoolVar(&opts.chaos, "chaos", false, "ディスパッチャ側の入出力に障害を注入")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "ステータスサーバーのアドレス (例: :9100)")
	fs.StringVar(&opts.eventsPath, "events", "", "イベントログ (JSON Lines) の出力先")
	fs.StringVar(&opts.logLevel, "log-level", "info", "ログレベル (debug, info, warn, error)")
	fs.BoolVar(&opts.noColor, "no-color", false, "色付けを無効化")
	fs.BoolVar(&opts.showVersion, "version", false, "バージョンを表示")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `procpool - fixed-size worker pool task dispatcher

Usage:
  procpool [options] <num_tasks> <max_bits>

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(stderr, `
Examples:
  # 10タスクを3ワーカーで処理
  procpool 10 4

  # ゴルーチンのワーカーで即時計算
  procpool -mode goroutine -delay 0 100 16

  # メトリクスを公開しながら実行
  procpool -metrics-addr :9100 -events events.jsonl 20 8
`)
	}
	return fs
}

// parseArgs はコマンドライン引数を解析する
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{set: make(map[string]bool)}
	fs := newFlagSet(opts, stderr)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, &ArgumentError{Msg: err.Error()}
	}
	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})

	if opts.showVersion {
		return opts, nil
	}

	if fs.NArg() != 2 {
		fs.Usage()
		return nil, &ArgumentError{Msg: fmt.Sprintf("expected 2 arguments, got %d", fs.NArg())}
	}

	var err error
	if opts.numTasks, err = parsePositive("num_tasks", fs.Arg(0)); err != nil {
		fs.Usage()
		return nil, err
	}
	if opts.maxBits, err = parsePositive("max_bits", fs.Arg(1)); err != nil {
		fs.Usage()
		return nil, err
	}
	return opts, nil
}

// parsePositive は正の整数をパースする
func parsePositive(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, &ArgumentError{Msg: fmt.Sprintf("%s must be a positive integer, got %q", name, s)}
	}
	return n, nil
}

// settings は実行に必要な設定一式
type settings struct {
	engine      dispatcher.Config
	mode        string
	logLevel    logger.Level
	metricsAddr string
	eventsPath  string
}

// buildSettings は設定ファイルとフラグから設定を構築する
// 明示的に指定されたフラグが設定ファイルの値より優先される
func buildSettings(opts *options) (settings, error) {
	s := settings{mode: config.ModeProcess, logLevel: logger.LevelInfo}
	fileConfig := &config.FileConfig{}

	// 1. 設定ファイルから読み込み
	if opts.configFile != "" {
		var err error
		fileConfig, err = config.LoadFile(opts.configFile)
		if err != nil {
			return s, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
		}
		if err := fileConfig.Validate(); err != nil {
			return s, fmt.Errorf("設定検証エラー: %w", err)
		}
	}

	cfg, err := fileConfig.ToEngineConfig()
	if err != nil {
		return s, fmt.Errorf("設定変換エラー: %w", err)
	}
	s.mode = fileConfig.Mode()
	if s.logLevel, err = fileConfig.LogLevel(); err != nil {
		return s, err
	}
	s.metricsAddr = fileConfig.Server.MetricsAddr
	s.eventsPath = fileConfig.Events.Path

	// 2. フラグでオーバーライド
	cfg.NumTasks = opts.numTasks
	cfg.MaxBits = opts.maxBits
	if opts.set["workers"] {
		cfg.Workers = opts.workers
	}
	if opts.set["delay"] {
		cfg.ComputeDelay = opts.delay
	}
	if opts.set["seed"] {
		cfg.Seed = opts.seed
	}
	if opts.set["chaos"] {
		cfg.EnableChaos = opts.chaos
	}
	if opts.set["mode"] {
		s.mode = opts.mode
	}
	if opts.set["log-level"] {
		if s.logLevel, err = logger.ParseLevel(opts.logLevel); err != nil {
			return s, &ArgumentError{Msg: err.Error()}
		}
	}
	if opts.set["metrics-addr"] {
		s.metricsAddr = opts.metricsAddr
	}
	if opts.set["events"] {
		s.eventsPath = opts.eventsPath
	}

	switch s.mode {
	case config.ModeProcess, config.ModeGoroutine:
	default:
		return s, &ArgumentError{Msg: fmt.Sprintf("unknown mode %q", s.mode)}
	}
	if cfg.Workers <= 0 {
		return s, &ArgumentError{Msg: fmt.Sprintf("workers must be positive, got %d", cfg.Workers)}
	}

	s.engine = cfg
	return s, nil
}

// run はコマンドを実行して終了コードを返す
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "worker" {
		return runWorker(args[1:], stderr)
	}

	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "procpool: %v\n", err)
		return exitUsage
	}

	// バージョン表示
	if opts.showVersion {
		fmt.Fprintf(stdout, "procpool version %s\n", version)
		return exitOK
	}

	s, err := buildSettings(opts)
	if err != nil {
		fmt.Fprintf(stderr, "procpool: %v\n", err)
		var aerr *ArgumentError
		if errors.As(err, &aerr) {
			return exitUsage
		}
		return exitFailure
	}

	logger.SetOutput(stderr)
	logger.SetLevel(s.logLevel)

	if err := runDispatcher(s, opts.noColor, stdout, stderr); err != nil {
		logger.Error("main", "実行エラー: %v", err)
		return exitFailure
	}
	return exitOK
}

// newLauncher は起動モードに応じた Launcher を作成する
// ワーカープロセスの出力は stdout と stderr に流す
func newLauncher(s settings, con *console.Console, noColor bool, stdout, stderr io.Writer) (pool.Launcher, error) {
	if s.mode == config.ModeGoroutine {
		return &pool.GoroutineLauncher{ComputeDelay: s.engine.ComputeDelay, Console: con}, nil
	}

	l, err := pool.NewProcessLauncher(s.engine.ComputeDelay)
	if err != nil {
		return nil, err
	}
	l.NoColor = noColor
	l.Stdout = stdout
	l.Stderr = stderr
	return l, nil
}

// runDispatcher はディスパッチャを実行してレポートを出力する
func runDispatcher(s settings, noColor bool, stdout, stderr io.Writer) error {
	// シグナルハンドリング
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	con := console.New(stdout, !noColor)
	launcher, err := newLauncher(s, con, noColor, stdout, stderr)
	if err != nil {
		return err
	}

	engine := dispatcher.New(s.engine, launcher)
	engine.SetConsole(con)

	var bus *events.Bus
	if s.eventsPath != "" || s.metricsAddr != "" {
		bus = events.NewBus()
		engine.SetEventBus(bus)
	}

	// イベントログ
	var eventsDone <-chan error
	if s.eventsPath != "" {
		f, err := os.Create(s.eventsPath)
		if err != nil {
			return fmt.Errorf("create event log: %w", err)
		}
		eventsDone = writeEvents(f, bus.Subscribe())
	}

	// ステータスサーバー
	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	if s.metricsAddr != "" {
		server := api.NewServer(s.metricsAddr, engine, bus)
		go func() {
			if err := server.Start(serverCtx); err != nil {
				logger.Error("api", "サーバーエラー: %v", err)
			}
		}()
	}

	result, runErr := engine.Run(ctx)

	if bus != nil {
		bus.Close()
	}
	if eventsDone != nil {
		if err := <-eventsDone; err != nil {
			logger.Warn("main", "イベントログ書き込みエラー: %v", err)
		}
		if n := bus.Dropped(); n > 0 {
			logger.Warn("main", "%d events were dropped", n)
		}
	}

	if runErr != nil {
		return runErr
	}

	// レポート出力
	fmt.Fprintln(stdout, result.Report())
	return nil
}

// writeEvents はイベントを JSON Lines で書き出す
// ch が閉じられるとファイルを閉じて終了する
func writeEvents(f *os.File, ch <-chan events.Event) <-chan error {
	done := make(chan error, 1)
	go func() {
		enc := json.NewEncoder(f)
		var werr error
		for event := range ch {
			if werr != nil {
				continue
			}
			werr = enc.Encode(event)
		}
		if err := f.Close(); werr == nil {
			werr = err
		}
		done <- werr
	}()
	return done
}

// runWorker はワーカープロセスとして動作する
// 引数: [-delay d] [-no-color] <index> <in-fd> <out-fd> <notify-fd>
func runWorker(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("procpool worker", flag.ContinueOnError)
	fs.SetOutput(stderr)
	delay := fs.Duration("delay", worker.DefaultComputeDelay, "1タスクあたりの模擬計算時間")
	noColor := fs.Bool("no-color", false, "色付けを無効化")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage:\n  procpool worker [-delay d] <index> <in-fd> <out-fd> <notify-fd>\n")
	}

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 4 {
		fs.Usage()
		return exitUsage
	}

	nums := make([]int, 4)
	for i := range nums {
		n, err := strconv.Atoi(fs.Arg(i))
		if err != nil || n < 0 {
			fmt.Fprintf(stderr, "procpool worker: invalid argument %q\n", fs.Arg(i))
			return exitUsage
		}
		nums[i] = n
	}
	id := nums[0]

	in := os.NewFile(uintptr(nums[1]), "tasks")
	out := os.NewFile(uintptr(nums[2]), "results")
	note := os.NewFile(uintptr(nums[3]), "notify")
	if in == nil || out == nil || note == nil {
		fmt.Fprintf(stderr, "procpool worker: invalid file descriptor\n")
		return exitUsage
	}
	defer note.Close()

	logger.SetOutput(stderr)

	w := worker.New(worker.Config{
		ID:           id,
		ComputeDelay: *delay,
		Console:      console.New(os.Stdout, !*noColor),
	}, in, out, notify.NewPipeNotifier(note))

	if err := w.Run(); err != nil {
		logger.Error(fmt.Sprintf("core-%d", id+1), "%v", err)
		return exitFailure
	}
	return exitOK
}
