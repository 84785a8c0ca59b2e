// 包 export 负责运行结果导出：
// - ToJSON：写出 manifest.json（统计/文档元信息/失败项，不含正文）
// - WriteSummary：生成 Markdown 运行摘要
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go-post-archiver/internal/model"
)

// Manifest 为 JSON 导出结构。
type Manifest struct {
	Site      string           `json:"site"`
	State     model.RunState   `json:"state"`
	Cancelled bool             `json:"cancelled,omitempty"`
	OutputDir string           `json:"output_dir,omitempty"`
	Stats     model.Stats      `json:"stats"`
	Documents []model.Document `json:"documents"`
	Failures  []FailureEntry   `json:"failures"`
}

// FailureEntry 为失败项的可序列化形式。
type FailureEntry struct {
	Index   int    `json:"index"`
	URL     string `json:"url"`
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewManifest 由运行结果构造导出结构。
func NewManifest(r *model.Result) Manifest {
	m := Manifest{
		Site:      r.Site,
		State:     r.State,
		Cancelled: r.Cancelled,
		OutputDir: r.OutputDir,
		Stats:     r.Stats(),
		Documents: r.Documents,
		Failures:  make([]FailureEntry, 0, len(r.Failures)),
	}
	if m.Documents == nil {
		m.Documents = []model.Document{}
	}
	for _, f := range r.Failures {
		m.Failures = append(m.Failures, FailureEntry{
			Index:   f.Index,
			URL:     f.URL,
			Stage:   f.Stage,
			Kind:    f.Kind,
			Message: f.Message(),
		})
	}
	return m
}

// ToJSON 将运行结果写入 JSON 文件（带缩进格式），必要时创建父目录。
func ToJSON(r *model.Result, path string) error {
	if r == nil {
		return fmt.Errorf("export %s: nil result", path)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", path, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewManifest(r)); err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	return nil
}
