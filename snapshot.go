package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/exp/maps"
)

// FileStat 表示单个文件在某一份快照中的元信息
//
// ModTime：文件的修改时间
// Size：文件大小（单位：字节）
type FileStat struct {
	ModTime time.Time
	Size    int64
}

// Equal 判断两个 FileStat 是否相同（时间用 time.Time.Equal 比较，忽略时区与单调时钟）
func (f FileStat) Equal(other FileStat) bool {
	return f.Size == other.Size && f.ModTime.Equal(other.ModTime)
}

// Snapshot 是某一时刻监控目录下所有普通文件的映射：绝对路径 -> FileStat
//
// 两份快照相等，当且仅当路径集合完全相同且每个路径的 FileStat 都相同
type Snapshot map[string]FileStat

// TakeSnapshot 遍历 roots 下的所有文件并生成快照
//
// 不存在的根目录被静默跳过；命中 exclude 的目录整棵不进入；
// 在枚举与读取元信息之间消失的文件直接省略，不视为错误
func TakeSnapshot(roots []string, exclude *Excluder) Snapshot {
	snap := make(Snapshot)
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		dir, ok := resolveRoot(abs)
		if !ok {
			continue
		}
		_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				// 目录读取失败或条目已消失，跳过即可
				return nil
			}
			if d.IsDir() {
				if p != dir && exclude.Match(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			info, err := os.Stat(p)
			if err != nil || info.IsDir() {
				// 已消失的文件、悬空链接或指向目录的链接
				return nil
			}
			snap[underRoot(abs, dir, p)] = FileStat{ModTime: info.ModTime(), Size: info.Size()}
			return nil
		})
	}
	return snap
}

// resolveRoot 解析根目录上的符号链接，返回实际遍历的目录；根不存在或不是目录时返回 false
func resolveRoot(abs string) (string, bool) {
	dir, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", false
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return "", false
	}
	return dir, true
}

// underRoot 把实际遍历得到的路径映射回配置的根目录之下
func underRoot(abs, dir, p string) string {
	if abs == dir {
		return p
	}
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return p
	}
	return filepath.Join(abs, rel)
}

// paths 返回排序后的路径列表
func (s Snapshot) paths() []string {
	keys := maps.Keys(s)
	slices.Sort(keys)
	return keys
}

// Equal 判断两份快照是否相同，这是唯一的变更判定依据
func (s Snapshot) Equal(other Snapshot) bool {
	return maps.EqualFunc(s, other, func(a, b FileStat) bool { return a.Equal(b) })
}

// Changes 描述两份快照之间的差异，各列表按路径排序
type Changes struct {
	Created  []string
	Modified []string
	Deleted  []string
}

// Empty 判断是否没有任何差异
func (c Changes) Empty() bool {
	return len(c.Created) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

func (c Changes) String() string {
	return fmt.Sprintf("+%d ~%d -%d files", len(c.Created), len(c.Modified), len(c.Deleted))
}

// Diff 计算从 prev 到 s 的差异
func (s Snapshot) Diff(prev Snapshot) Changes {
	var c Changes
	for _, p := range s.paths() {
		old, ok := prev[p]
		switch {
		case !ok:
			c.Created = append(c.Created, p)
		case !old.Equal(s[p]):
			c.Modified = append(c.Modified, p)
		}
	}
	for _, p := range prev.paths() {
		if _, ok := s[p]; !ok {
			c.Deleted = append(c.Deleted, p)
		}
	}
	return c
}

// Fingerprint 返回快照的稳定指纹（xxh3-128，十六进制）
//
// 只对排序后的 路径/修改时间/大小 记录求哈希，不读取文件内容
func (s Snapshot) Fingerprint() string {
	paths := s.paths()

	data := make([]byte, 0, len(paths)*64)
	for _, p := range paths {
		st := s[p]
		data = append(data, p...)
		data = append(data, 0)
		data = strconv.AppendInt(data, st.ModTime.UnixNano(), 10)
		data = append(data, 0)
		data = strconv.AppendInt(data, st.Size, 10)
		data = append(data, '\n')
	}

	return fmt.Sprintf("%x", xxh3.Hash128(data).Bytes())
}
