// 包 model 定义抓取流水线的数据模型（文章记录/Markdown 文档/失败项/运行结果）。
package model

import (
	"sort"
	"time"
)

// Post 为页面内嵌 JSON 记录解码后的文章。
type Post struct {
	URL     string   `json:"canonicalUrl"`
	BaseURL *string  `json:"base_url"`
	Details *Details `json:"post"`
}

// Details 为文章正文及标题等信息，仅在完整文章页中出现。
type Details struct {
	Title        *string `json:"title"`
	Subtitle     *string `json:"subtitle"`
	CanonicalURL *string `json:"canonical_url"`
	BodyHTML     *string `json:"body_html"`
}

// Title 返回标题（缺失时为空串）。
func (p *Post) Title() string {
	if p == nil || p.Details == nil {
		return ""
	}
	return deref(p.Details.Title)
}

// Subtitle 返回副标题（缺失时为空串）。
func (p *Post) Subtitle() string {
	if p == nil || p.Details == nil {
		return ""
	}
	return deref(p.Details.Subtitle)
}

// Document 为转换后的 Markdown 文档及命名/落盘所需的元数据。
type Document struct {
	Index     int       `json:"index"`
	URL       string    `json:"url"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle,omitempty"`
	Author    string    `json:"author,omitempty"`
	Published time.Time `json:"published,omitempty"`
	Markdown  string    `json:"-"`
	Empty     bool      `json:"empty,omitempty"`
}

// 处理阶段，用于标注失败发生的位置。
const (
	StageDiscover = "discover"
	StageFetch    = "fetch"
	StageExtract  = "extract"
	StageDecode   = "decode"
	StageConvert  = "convert"
	StageSave     = "save"
	StageCancel   = "cancel"
)

// Failure 记录单个 URL 的失败原因。
type Failure struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
	Stage string `json:"stage"`
	Kind  string `json:"kind"`
	Err   error  `json:"-"`
}

// Message 返回错误文本（导出与日志使用）。
func (f Failure) Message() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// NewFailure 根据错误自动归类。
func NewFailure(index int, url, stage string, err error) Failure {
	return Failure{Index: index, URL: url, Stage: stage, Kind: KindOf(err), Err: err}
}

// RunState 为一次运行的终态。
type RunState string

const (
	StateDone   RunState = "done"
	StateFailed RunState = "failed"
)

// Result 为一次运行的最终结果：成功文档与逐 URL 失败列表。
type Result struct {
	State      RunState   `json:"state"`
	Site       string     `json:"site"`
	Documents  []Document `json:"documents"`
	Failures   []Failure  `json:"failures"`
	Saved      int        `json:"saved"`
	OutputDir  string     `json:"output_dir,omitempty"`
	Cancelled  bool       `json:"cancelled,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// Sort 按 sitemap 原始顺序排序文档与失败项，保证结果与完成顺序无关。
func (r *Result) Sort() {
	sort.SliceStable(r.Documents, func(i, j int) bool { return r.Documents[i].Index < r.Documents[j].Index })
	sort.SliceStable(r.Failures, func(i, j int) bool { return r.Failures[i].Index < r.Failures[j].Index })
}

// Stats 为运行统计。
type Stats struct {
	URLsTotal  int       `json:"urls_total"`
	Converted  int       `json:"converted"`
	Failed     int       `json:"failed"`
	Empty      int       `json:"empty"`
	Saved      int       `json:"saved"`
	UpdatedAt  time.Time `json:"updated_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Stats 汇总结果统计；URLsTotal 以文档数与失败 URL 去重计数为准。
func (r *Result) Stats() Stats {
	urls := map[int]struct{}{}
	empty := 0
	for _, d := range r.Documents {
		urls[d.Index] = struct{}{}
		if d.Empty {
			empty++
		}
	}
	failedURLs := map[int]struct{}{}
	for _, f := range r.Failures {
		if f.Stage == StageSave {
			continue
		}
		urls[f.Index] = struct{}{}
		failedURLs[f.Index] = struct{}{}
	}
	st := Stats{
		URLsTotal: len(urls),
		Converted: len(r.Documents),
		Failed:    len(failedURLs),
		Empty:     empty,
		Saved:     r.Saved,
		UpdatedAt: r.FinishedAt,
	}
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		st.DurationMS = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	}
	return st
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
