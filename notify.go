package watcher

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// notifier 把 fsnotify 事件转换为"该检查一次了"的唤醒信号
//
// 它只负责提前唤醒监控循环，是否真的有变更仍由快照比较决定
type notifier struct {
	fsw     *fsnotify.Watcher
	exclude *Excluder
	out     io.Writer

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// newNotifier 递归注册 roots 下所有未被排除的目录，并启动事件读取goroutine
//
// out 会被事件读取goroutine写入，调用方需要保证它可以并发使用
func newNotifier(roots []string, exclude *Excluder, out io.Writer) (*notifier, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	n := &notifier{
		fsw:     fsw,
		exclude: exclude,
		out:     out,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, root := range roots {
		n.addTree(root)
	}

	go n.run()
	return n, nil
}

// Wake 返回唤醒通道，连续的事件会被合并为一个信号
func (n *notifier) Wake() <-chan struct{} {
	return n.wake
}

// Close 停止事件读取并关闭底层 fsnotify.Watcher
func (n *notifier) Close() error {
	var err error
	n.once.Do(func() {
		close(n.done)
		err = n.fsw.Close()
	})
	return err
}

// addTree 注册 root 及其下所有未被排除的目录（root 本身不做排除判断）
//
// root 上的符号链接会先被解析，注册的是实际目录；不存在的 root 被静默跳过
func (n *notifier) addTree(root string) {
	dir, ok := resolveRoot(root)
	if !ok {
		return
	}
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != dir && n.exclude.Match(d.Name()) {
			return filepath.SkipDir
		}
		if e := n.fsw.Add(p); e != nil {
			n.logf("warning: cannot watch dir %s: %v", p, e)
		}
		return nil
	})
}

func (n *notifier) logf(format string, args ...any) {
	fmt.Fprintf(n.out, "[watch] "+format+"\n", args...)
}

func (n *notifier) run() {
	for {
		select {
		case ev, ok := <-n.fsw.Events:
			if !ok {
				return
			}
			// 新建目录需要额外注册；被排除的目录既不注册也不唤醒
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if n.exclude.Match(ev.Name) {
						continue
					}
					n.addTree(ev.Name)
				}
			}
			n.emit()

		case err, ok := <-n.fsw.Errors:
			if !ok {
				return
			}
			n.logf("fsnotify error: %v", err)

		case <-n.done:
			return
		}
	}
}

func (n *notifier) emit() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}
