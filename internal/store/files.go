// 包 store 提供两类存储：
// - Files：将转换后的文章以 Markdown 文件写入输出目录（覆盖策略/原子写入/目录生命周期）
// - SQLite：记录每次运行与逐条结果的运行索引
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go-post-archiver/internal/logx"
	"go-post-archiver/internal/model"
)

// FS 为文件写入所需的最小文件系统操作集合，便于测试中模拟失败。
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	MkdirAll(path string, perm fs.FileMode) error
	RemoveAll(path string) error
	CreateTemp(dir, pattern string) (File, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
}

// File 为暂存文件句柄。
type File interface {
	io.Writer
	Name() string
	Sync() error
	Close() error
}

// OSFS 为基于 os 包的实现。
type OSFS struct{}

func (OSFS) Stat(name string) (fs.FileInfo, error)        { return os.Stat(name) }
func (OSFS) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }
func (OSFS) RemoveAll(path string) error                  { return os.RemoveAll(path) }
func (OSFS) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }
func (OSFS) Remove(name string) error                     { return os.Remove(name) }

func (OSFS) CreateTemp(dir, pattern string) (File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Files 负责输出目录的准备与文章文件的写入。
type Files struct {
	fs FS
}

// NewFiles 创建文件存储；fsys 为 nil 时使用 OSFS。
func NewFiles(fsys FS) *Files {
	if fsys == nil {
		fsys = OSFS{}
	}
	return &Files{fs: fsys}
}

// SaveReport 为一次保存的逐项结果。
type SaveReport struct {
	Dir      string
	Written  []string
	Failures []model.Failure
}

// Exists 判断目录是否存在。
func (s *Files) Exists(dir string) bool {
	fi, err := s.fs.Stat(dir)
	return err == nil && fi.IsDir()
}

// Prepare 为独占阶段：目录存在且不允许覆盖时直接失败，不触碰文件系统；
// 允许覆盖时先整体删除再重建；删除失败则在任何写入前中止。
func (s *Files) Prepare(dir string, overwrite bool) error {
	if s.Exists(dir) {
		if !overwrite {
			return &model.NoOverwriteError{Dir: dir}
		}
		if err := s.fs.RemoveAll(dir); err != nil {
			return &model.CantDeleteError{Dir: dir, Err: err}
		}
		logx.Infof("已删除旧输出目录：%s", dir)
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return nil
}

// Save 准备目录后逐篇写入 <slug>.md；单篇失败记为 SaveItemsError，不影响其他文件。
// 去重后的 slug 会回写到 docs 中。
func (s *Files) Save(ctx context.Context, dir string, docs []model.Document, overwrite bool) (SaveReport, error) {
	rep := SaveReport{Dir: dir}
	if err := s.Prepare(dir, overwrite); err != nil {
		return rep, err
	}
	slugs := make([]string, len(docs))
	for i, d := range docs {
		slugs[i] = d.Slug
		if slugs[i] == "" {
			slugs[i] = Slug(d.URL)
		}
	}
	slugs = uniqueSlugs(slugs)
	for i := range docs {
		docs[i].Slug = slugs[i]
	}
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			rep.Failures = append(rep.Failures, model.NewFailure(d.Index, d.URL, model.StageSave, err))
			continue
		}
		path := filepath.Join(dir, d.Slug+".md")
		if err := s.writeAtomic(dir, path, d); err != nil {
			rep.Failures = append(rep.Failures, model.NewFailure(d.Index, d.URL, model.StageSave, err))
			logx.Warnf("写入文章失败：%s 错误=%v", path, err)
			continue
		}
		logx.Debugf("已写入：%s", path)
		rep.Written = append(rep.Written, path)
	}
	return rep, nil
}

// writeAtomic 先写入同目录下的暂存文件，同步后重命名到目标位置；任何失败都会清理暂存文件。
func (s *Files) writeAtomic(dir, path string, d model.Document) (err error) {
	content, err := Render(d)
	if err != nil {
		return &model.SaveItemsError{Path: path, Err: err}
	}
	tmp, err := s.fs.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &model.SaveItemsError{Path: path, Err: err}
	}
	tmpName := tmp.Name()
	closed := false
	defer func() {
		if !closed {
			_ = tmp.Close()
		}
		if err != nil {
			_ = s.fs.Remove(tmpName)
		}
	}()
	if _, err = tmp.Write(content); err != nil {
		return &model.SaveItemsError{Path: path, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &model.SaveItemsError{Path: path, Err: err}
	}
	closed = true
	if err = tmp.Close(); err != nil {
		return &model.SaveItemsError{Path: path, Err: err}
	}
	if err = s.fs.Rename(tmpName, path); err != nil {
		return &model.SaveItemsError{Path: path, Err: err}
	}
	return nil
}

// Saved 为目录中已保存文章的摘要。
type Saved struct {
	Path        string
	FrontMatter FrontMatter
}

// List 读取目录中全部 .md 文件的 front matter，按文件名排序。
func List(dir string) ([]Saved, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var out []Saved
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") || strings.HasPrefix(e.Name(), ".") || strings.HasPrefix(e.Name(), "_") {
			continue
		}
		p := filepath.Join(dir, e.Name())
		fm, err := readFrontMatter(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, Saved{Path: p, FrontMatter: fm})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, errors.Join(errs...)
}

func readFrontMatter(path string) (FrontMatter, error) {
	f, err := os.Open(path)
	if err != nil {
		return FrontMatter{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	fm, _, err := ReadDocument(f)
	if err != nil {
		return FrontMatter{}, fmt.Errorf("%s: %w", path, err)
	}
	return fm, nil
}
