package watcher

import (
	"path/filepath"
	"strings"
)

// DefaultExcludeDirs 默认剪枝的目录名（引擎缓存、构建产物、日志、临时目录、git元数据）
var DefaultExcludeDirs = []string{"Library", "Builds", "Logs", "Temp", "Obj", ".git"}

// Excluder 判断目录名是否需要在遍历时整棵跳过
//
// names：精确匹配的目录名
// patterns：含通配符的目录名模式，如 "*.tmp"，使用 filepath.Match 匹配
//
// 只匹配路径的最后一个分量，因此对任意深度都生效
type Excluder struct {
	names    map[string]struct{}
	patterns []string
}

// NewExcluder 根据目录名列表创建 Excluder
//
// 包含 * ? [ 的条目视为通配符模式，其余视为精确名称；空字符串会被忽略
func NewExcluder(names []string) *Excluder {
	e := &Excluder{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if strings.ContainsAny(n, "*?[") {
			e.patterns = append(e.patterns, n)
			continue
		}
		e.names[n] = struct{}{}
	}
	return e
}

// Match 判断目录名（或路径的最后一个分量）是否被排除
//
// nil 的 Excluder 不排除任何目录
func (e *Excluder) Match(name string) bool {
	if e == nil {
		return false
	}
	base := filepath.Base(name)
	if _, ok := e.names[base]; ok {
		return true
	}
	for _, pat := range e.patterns {
		if matched, _ := filepath.Match(pat, base); matched {
			return true
		}
	}
	return false
}
