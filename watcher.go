package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultPollInterval 默认的轮询间隔
	DefaultPollInterval = 2 * time.Second
	// DefaultDebounce 默认的防抖间隔（两次构建之间的最小墙钟时间）
	DefaultDebounce = 5 * time.Second
)

// ConfigWatcher 用于配置 Watcher
//
// WatchPaths：需要监控的根目录（可指定多个，不存在的目录会被静默跳过）
// ExcludeDirs：遍历时整棵跳过的目录名，默认 DefaultExcludeDirs
// PollInterval：轮询间隔，默认 2s
// Debounce：两次构建之间的最小间隔，默认 5s
// UseNotify：是否使用 fsnotify 事件提前唤醒轮询
// Verbose：是否输出变更摘要等额外信息
// Output：控制台输出位置，默认 os.Stdout
type ConfigWatcher struct {
	WatchPaths   []string
	ExcludeDirs  []string
	PollInterval time.Duration
	Debounce     time.Duration
	UseNotify    bool
	Verbose      bool
	Output       io.Writer
}

// Watcher 负责"快照比较 + 防抖 + 触发构建"的监控循环
//
// prev：上一次轮询得到的快照，只用于和下一次比较
// lastBuild：上一次构建开始检测时的时间，零值表示从未构建过
// builds：已经发起的构建次数
type Watcher struct {
	cfg     ConfigWatcher
	builder Builder
	exclude *Excluder
	out     io.Writer

	prev      Snapshot
	lastBuild time.Time
	builds    int
}

// NewWatcher 根据给定配置创建一个新的 Watcher
//
// 若 cfg.PollInterval <= 0，则默认使用 2s
// 若 cfg.Debounce <= 0，则默认使用 5s
// 若 cfg.ExcludeDirs 为 nil，则默认使用 DefaultExcludeDirs
func NewWatcher(cfg ConfigWatcher, builder Builder) (*Watcher, error) {
	if builder == nil {
		return nil, errors.New("builder is required")
	}
	if len(cfg.WatchPaths) == 0 {
		return nil, errors.New("at least one watch path is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.ExcludeDirs == nil {
		cfg.ExcludeDirs = DefaultExcludeDirs
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	paths := make([]string, 0, len(cfg.WatchPaths))
	for _, p := range cfg.WatchPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve watch path %s: %w", p, err)
		}
		paths = append(paths, abs)
	}
	cfg.WatchPaths = paths

	return &Watcher{
		cfg:     cfg,
		builder: builder,
		exclude: NewExcluder(cfg.ExcludeDirs),
		out:     &syncWriter{w: cfg.Output},
	}, nil
}

// Snapshot 对当前配置的监控目录生成一份新快照
func (w *Watcher) Snapshot() Snapshot {
	return TakeSnapshot(w.cfg.WatchPaths, w.exclude)
}

// Builds 返回已经发起的构建次数
func (w *Watcher) Builds() int {
	return w.builds
}

// LastBuild 返回上一次构建的时间，零值表示从未构建过
func (w *Watcher) LastBuild() time.Time {
	return w.lastBuild
}

// Run 启动监控循环，直到 ctx 被取消
//
// 启动时的快照作为基准，不会触发构建。之后每个轮询周期（或 fsnotify 唤醒）执行一次 Tick。
// ctx 取消后输出停止信息并返回 nil；正在运行的构建不会被中断
func (w *Watcher) Run(ctx context.Context) error {
	w.prev = w.Snapshot()
	w.printf("watching for changes...")

	// 未启用 fsnotify 时 wake 为 nil，对应的 case 永远不会被选中
	var wake <-chan struct{}
	if w.cfg.UseNotify {
		n, err := newNotifier(w.cfg.WatchPaths, w.exclude, w.out)
		if err != nil {
			w.printf("warning: %v, falling back to polling", err)
		} else {
			defer n.Close()
			wake = n.Wake()
		}
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.printf("stopped")
			return nil
		case <-ticker.C:
		case <-wake:
		}
		if ctx.Err() != nil {
			continue
		}
		w.Tick(ctx, time.Now())
	}
}

// Tick 执行一次"快照 -> 比较 -> 防抖 -> 构建"的状态转换，返回本次是否发起了构建
//
// 快照未变化：什么都不做。
// 快照变化且距上次构建不足 Debounce：只记录新快照，变化被防抖窗口吸收。
// 快照变化且已超过 Debounce：同步构建，构建结束后把 lastBuild 设为 now（成功和失败一样）。
func (w *Watcher) Tick(ctx context.Context, now time.Time) bool {
	current := w.Snapshot()
	if current.Equal(w.prev) {
		return false
	}

	if w.cfg.Verbose {
		fp := current.Fingerprint()
		w.printf("change: %s (fp %s)", current.Diff(w.prev), fp[:12])
	}

	built := false
	if w.lastBuild.IsZero() || now.Sub(w.lastBuild) >= w.cfg.Debounce {
		w.build(ctx)
		w.lastBuild = now
		built = true
	} else if w.cfg.Verbose {
		w.printf("change absorbed by debounce window (%s left)", w.cfg.Debounce-now.Sub(w.lastBuild))
	}

	w.prev = current
	return built
}

// build 同步执行一次构建并输出结果，失败不会向上传播
func (w *Watcher) build(ctx context.Context) {
	w.builds++
	w.printf("build start -> %s", w.builder.Target())
	if err := w.builder.Build(ctx); err != nil {
		if log := w.builder.LogFile(); log != "" {
			w.printf("build failed (see %s)", filepath.Base(log))
		} else {
			w.printf("build failed")
		}
		if w.cfg.Verbose {
			w.printf("build error: %v", err)
		}
		return
	}
	w.printf("build success")
}

func (w *Watcher) printf(format string, args ...any) {
	fmt.Fprintf(w.out, "[watch] "+format+"\n", args...)
}

// syncWriter 串行化对控制台的写入：监控循环与 fsnotify goroutine 共用同一个输出
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
