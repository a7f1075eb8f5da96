package watcher

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// resolvedTempDir 返回解析过符号链接的临时目录，与 fsnotify 注册的路径一致
func resolvedTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks failed: %v", err)
	}
	return dir
}

// waitWatched 等待 dir 出现在 fsnotify 的监控列表中
func waitWatched(t *testing.T, n *notifier, dir string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !slices.Contains(n.fsw.WatchList(), dir) {
		if time.Now().After(deadline) {
			t.Fatalf("%s was not registered, watch list: %v", dir, n.fsw.WatchList())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// drainWake 等事件稳定后丢弃已经积压的唤醒信号
func drainWake(n *notifier) {
	time.Sleep(50 * time.Millisecond)
	select {
	case <-n.Wake():
	default:
	}
}

// TestNotifierSkipsExcludedDirs 测试被排除的目录不会注册到 fsnotify
func TestNotifierSkipsExcludedDirs(t *testing.T) {
	root := resolvedTempDir(t)
	writeFile(t, root, "sub/a.cs", 1)
	writeFile(t, root, "sub/Library/cache.bin", 1)
	writeFile(t, root, "Temp/x", 1)

	n, err := newNotifier([]string{root, filepath.Join(root, "missing")}, NewExcluder(DefaultExcludeDirs), io.Discard)
	if err != nil {
		t.Fatalf("newNotifier failed: %v", err)
	}
	defer n.Close()

	list := n.fsw.WatchList()
	for _, want := range []string{root, filepath.Join(root, "sub")} {
		if !slices.Contains(list, want) {
			t.Errorf("expected %s to be watched, got %v", want, list)
		}
	}
	for _, p := range list {
		if n.exclude.Match(p) {
			t.Errorf("excluded dir should not be watched: %s", p)
		}
	}
}

// TestNotifierWakesOnWrite 测试文件写入与新建子目录都会产生唤醒信号
func TestNotifierWakesOnWrite(t *testing.T) {
	root := resolvedTempDir(t)
	n, err := newNotifier([]string{root}, NewExcluder(DefaultExcludeDirs), io.Discard)
	if err != nil {
		t.Fatalf("newNotifier failed: %v", err)
	}
	defer n.Close()

	writeFile(t, root, "a.cs", 1)
	select {
	case <-n.Wake():
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for wake signal")
	}

	sub := filepath.Join(root, "newdir")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	waitWatched(t, n, sub)

	if err := n.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	// 重复关闭是安全的
	_ = n.Close()
}

// TestNotifierSymlinkedRoot 测试指向目录的符号链接根会注册其实际目录
func TestNotifierSymlinkedRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need extra privileges on windows")
	}
	base := resolvedTempDir(t)
	target := filepath.Join(base, "real-assets")
	writeFile(t, target, "sub/Player.cs", 1)
	writeFile(t, target, "Library/cache.bin", 1)
	link := filepath.Join(base, "Assets")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("symlink failed: %v", err)
	}

	n, err := newNotifier([]string{link}, NewExcluder(DefaultExcludeDirs), io.Discard)
	if err != nil {
		t.Fatalf("newNotifier failed: %v", err)
	}
	defer n.Close()

	list := n.fsw.WatchList()
	for _, want := range []string{target, filepath.Join(target, "sub")} {
		if !slices.Contains(list, want) {
			t.Errorf("expected %s to be watched, got %v", want, list)
		}
	}
	if slices.Contains(list, filepath.Join(target, "Library")) {
		t.Errorf("excluded dir should not be watched: %v", list)
	}

	writeFile(t, link, "sub/Player.cs", 2)
	select {
	case <-n.Wake():
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for wake signal through symlinked root")
	}
}

// TestNotifierExcludesOnlyDirectories 测试排除规则只作用于新建目录，同名文件照常唤醒
func TestNotifierExcludesOnlyDirectories(t *testing.T) {
	root := resolvedTempDir(t)
	n, err := newNotifier([]string{root}, NewExcluder([]string{"Temp", "*.tmp"}), io.Discard)
	if err != nil {
		t.Fatalf("newNotifier failed: %v", err)
	}
	defer n.Close()

	for _, name := range []string{"Temp", "cache.tmp"} {
		drainWake(n)
		writeFile(t, root, name, 1)
		select {
		case <-n.Wake():
		case <-time.After(2 * time.Second):
			t.Fatalf("file %s should wake the loop", name)
		}
	}

	// 事件按顺序处理：visible 注册完成时，x.tmp 的事件已经处理过
	if err := os.Mkdir(filepath.Join(root, "x.tmp"), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	visible := filepath.Join(root, "visible")
	if err := os.Mkdir(visible, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	waitWatched(t, n, visible)
	if slices.Contains(n.fsw.WatchList(), filepath.Join(root, "x.tmp")) {
		t.Error("excluded directory should not be registered")
	}
}

// TestWatcherOutputConcurrent 测试监控循环与 fsnotify goroutine 并发写同一个输出
func TestWatcherOutputConcurrent(t *testing.T) {
	var out bytes.Buffer
	w, err := NewWatcher(ConfigWatcher{WatchPaths: []string{t.TempDir()}, Output: &out}, &fakeBuilder{})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	n, err := newNotifier(w.cfg.WatchPaths, w.exclude, w.out)
	if err != nil {
		t.Fatalf("newNotifier failed: %v", err)
	}
	defer n.Close()

	const lines = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < lines; i++ {
			n.logf("fsnotify error: %d", i)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < lines; i++ {
			w.printf("build success")
		}
	}()
	wg.Wait()

	got := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(got) != 2*lines {
		t.Fatalf("expected %d lines, got %d", 2*lines, len(got))
	}
	for _, line := range got {
		if !strings.HasPrefix(line, "[watch] ") {
			t.Errorf("interleaved line %q", line)
		}
	}
}

// TestRunWithNotify 测试启用 fsnotify 时变更同样会触发构建
func TestRunWithNotify(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.cs", 1)
	b := &fakeBuilder{ran: make(chan struct{}, 1)}
	var out bytes.Buffer
	w, err := NewWatcher(ConfigWatcher{
		WatchPaths: []string{root},
		// 轮询间隔很长，构建只能由 fsnotify 唤醒
		PollInterval: time.Hour,
		UseNotify:    true,
		Output:       &out,
	}, b)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	size := 2
wait:
	for {
		writeFile(t, root, "a.cs", size)
		size++
		select {
		case <-b.ran:
			break wait
		case <-deadline:
			cancel()
			t.Fatal("timeout waiting for build")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}
