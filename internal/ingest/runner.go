// 包 ingest 负责主流程编排：
// - 从 sitemap 发现文章链接
// - 有限并发抓取、提取内嵌记录并转换为 Markdown
// - 订阅补全作者/日期，落盘与运行索引
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"go-post-archiver/internal/config"
	"go-post-archiver/internal/convert"
	"go-post-archiver/internal/feeds"
	"go-post-archiver/internal/fetch"
	"go-post-archiver/internal/logx"
	"go-post-archiver/internal/meta"
	"go-post-archiver/internal/model"
	"go-post-archiver/internal/record"
	"go-post-archiver/internal/rules"
	"go-post-archiver/internal/sitemap"
	"go-post-archiver/internal/store"
)

// Options 为一次运行的参数。
type Options struct {
	Site        string
	Segment     string
	Concurrency int
	// Timeout 为单个页面抓取的超时，0 表示仅受 ctx 约束。
	Timeout    time.Duration
	Save       bool
	Overwrite  bool
	OutputDir  string
	FeedEnrich bool
	Preset     rules.Preset

	OnState    func(State)
	OnProgress func(done, total int)
	Logger     *slog.Logger
}

// OptionsFromConfig 由配置与规则预设构造 Options。
func OptionsFromConfig(cfg *config.Config, preset rules.Preset) Options {
	return Options{
		Site:        cfg.SiteURL,
		Segment:     cfg.PostSegment,
		Concurrency: cfg.Concurrency.Fetch,
		Timeout:     cfg.TimeoutDuration(),
		Save:        cfg.SaveEnabled(),
		Overwrite:   cfg.Overwrite,
		OutputDir:   cfg.OutputDir,
		FeedEnrich:  cfg.FeedEnrichEnabled(),
		Preset:      preset,
	}
}

// Runner 编排执行器，持有 HTTP 客户端、文件存储与可选的运行索引。
type Runner struct {
	opts  Options
	fetch *fetch.Client
	files *store.Files
	index *store.SQLite
	conv  *convert.Converter

	mu     sync.Mutex
	state  State
	hookMu sync.Mutex
}

// New 创建 Runner；index 可为 nil（不记录运行索引）。
func New(opts Options, cl *fetch.Client, files *store.Files, index *store.SQLite) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Segment == "" {
		opts.Segment = sitemap.DefaultSegment
	}
	if files == nil {
		files = store.NewFiles(nil)
	}
	return &Runner{
		opts:  opts,
		fetch: cl,
		files: files,
		index: index,
		conv:  convert.New(opts.Preset),
		state: State{Phase: PhaseIdle},
	}
}

// State 返回最近一次状态。
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	if r.opts.OnState != nil {
		r.hookMu.Lock()
		r.opts.OnState(s)
		r.hookMu.Unlock()
	}
}

func (r *Runner) progress(done, total int) {
	if r.opts.OnProgress != nil {
		r.hookMu.Lock()
		r.opts.OnProgress(done, total)
		r.hookMu.Unlock()
	}
}

// Run 执行一轮：发现链接 → 并发处理 → 订阅补全 → 落盘 → 记录索引。
// 发现失败时返回 Failed 结果与该错误；其余情况结果为 Done，
// 落盘阶段的 NoOverwriteError/CantDeleteError 与结果一并返回。
func (r *Runner) Run(ctx context.Context) (*model.Result, error) {
	res := &model.Result{Site: r.opts.Site, StartedAt: time.Now()}
	runID := r.beginRun(ctx, res.StartedAt)

	r.setState(State{Phase: PhaseDiscovering})
	urls, err := sitemap.Extract(ctx, r.fetch, r.opts.Site, r.opts.Segment)
	if err != nil {
		logx.Errorf("发现文章链接失败：%v", err)
		res.State = model.StateFailed
		res.FinishedAt = time.Now()
		r.setState(State{Phase: PhaseFailed})
		r.recordRun(ctx, runID, res)
		return res, err
	}
	logx.Infof("sitemap 共发现 %d 篇文章", len(urls))

	total := len(urls)
	col := newCollector(total)
	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			r.progress(col.addFailure(model.NewFailure(i, u, model.StageCancel, err)), total)
			continue
		}
		g.Go(func() error {
			r.process(ctx, i, u, col, total)
			return nil
		})
	}
	_ = g.Wait()

	res.Documents, res.Failures = col.snapshot()
	res.Cancelled = ctx.Err() != nil
	if res.Cancelled {
		logx.Warnf("运行已取消：完成 %d 篇，失败/未开始 %d 篇", len(res.Documents), len(res.Failures))
	}

	if r.opts.FeedEnrich && !res.Cancelled && len(res.Documents) > 0 {
		r.enrich(ctx, res.Documents)
	}

	var saveErr error
	if r.opts.Save && !res.Cancelled {
		res.OutputDir = r.opts.OutputDir
		rep, err := r.files.Save(ctx, r.opts.OutputDir, res.Documents, r.opts.Overwrite)
		if err != nil {
			logx.Errorf("保存失败：%v", err)
			saveErr = err
		}
		res.Saved = len(rep.Written)
		res.Failures = append(res.Failures, rep.Failures...)
	}

	res.Sort()
	res.State = model.StateDone
	res.FinishedAt = time.Now()
	r.setState(State{Phase: PhaseDone})
	r.recordRun(ctx, runID, res)
	st := res.Stats()
	logx.Infof("完成：转换 %d 篇，失败 %d 篇，写入 %d 个文件", st.Converted, st.Failed, st.Saved)
	return res, saveErr
}

// process 处理单个链接：抓取 → 提取 → 转换；任何失败只记录不中断。
func (r *Runner) process(ctx context.Context, i int, u string, col *collector, total int) {
	if err := ctx.Err(); err != nil {
		r.progress(col.addFailure(model.NewFailure(i, u, model.StageCancel, err)), total)
		return
	}
	r.setState(State{Phase: PhaseProcessing, Index: i})

	doc, stage, err := r.processURL(ctx, i, u)
	if err != nil {
		if ctx.Err() != nil {
			stage = model.StageCancel
		}
		f := model.NewFailure(i, u, stage, err)
		logx.Failure(r.opts.Logger, i, u, f.Stage, f.Kind, err)
		r.progress(col.addFailure(f), total)
		return
	}
	logx.Post(r.opts.Logger, i, doc.Title, doc.URL, doc.Empty)
	r.progress(col.addDocument(doc), total)
}

// processURL 返回文档，失败时返回失败阶段与错误。
func (r *Runner) processURL(ctx context.Context, i int, u string) (model.Document, string, error) {
	fctx, cancel := ctx, context.CancelFunc(func() {})
	if r.opts.Timeout > 0 {
		fctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
	}
	html, err := r.fetch.FetchHTML(fctx, u)
	cancel()
	if err != nil {
		return model.Document{}, model.StageFetch, err
	}

	post, err := record.Parse(html)
	if err != nil {
		var de *model.RecordDecodeError
		if errors.As(err, &de) {
			return model.Document{}, model.StageDecode, err
		}
		return model.Document{}, model.StageExtract, err
	}

	md, empty, err := r.conv.Convert(convert.BodyInput(post), u)
	if err != nil {
		return model.Document{}, model.StageConvert, err
	}

	doc := model.Document{
		Index:    i,
		URL:      post.URL,
		Slug:     store.Slug(post.URL),
		Title:    post.Title(),
		Subtitle: post.Subtitle(),
		Markdown: md,
		Empty:    empty,
	}
	// 记录中的值优先，页面元信息只补缺
	m, err := meta.Extract(html, r.opts.Preset)
	if err != nil {
		logx.Debugf("解析页面元信息失败：%s 错误=%v", u, err)
		return doc, "", nil
	}
	if doc.Title == "" {
		doc.Title = m.Title
	}
	if doc.Subtitle == "" {
		doc.Subtitle = m.Subtitle
	}
	doc.Author = m.Author
	doc.Published = m.Published
	return doc, "", nil
}

// enrich 通过站点订阅补全作者与发布时间；订阅问题只记警告。
func (r *Runner) enrich(ctx context.Context, docs []model.Document) {
	need := false
	for _, d := range docs {
		if d.Author == "" || d.Published.IsZero() {
			need = true
			break
		}
	}
	if !need {
		return
	}
	feedURL, err := feeds.DiscoverFeed(ctx, r.fetch, r.opts.Site)
	if err != nil {
		logx.Warnf("发现订阅失败：%s 错误=%v", r.opts.Site, err)
		return
	}
	items, err := feeds.ParseFeed(ctx, r.fetch, feedURL, 0)
	if err != nil {
		logx.Warnf("解析订阅失败：%v", err)
		return
	}
	idx := feeds.Index(items)
	hit := 0
	for i := range docs {
		it, ok := idx[feeds.NormalizeLink(docs[i].URL)]
		if !ok {
			continue
		}
		hit++
		if docs[i].Author == "" {
			docs[i].Author = it.Author
		}
		if docs[i].Published.IsZero() {
			docs[i].Published = it.Published
		}
		if docs[i].Title == "" {
			docs[i].Title = it.Title
		}
	}
	logx.Debugf("订阅 %s 命中 %d/%d 篇", feedURL, hit, len(docs))
}

func (r *Runner) beginRun(ctx context.Context, startedAt time.Time) int64 {
	if r.index == nil {
		return 0
	}
	id, err := r.index.BeginRun(ctx, r.opts.Site, startedAt)
	if err != nil {
		logx.Warnf("写入运行索引失败：%v", err)
		return 0
	}
	return id
}

// recordRun 写入运行结果；取消后仍需落库，因此脱离 ctx 的取消信号。
func (r *Runner) recordRun(ctx context.Context, runID int64, res *model.Result) {
	if r.index == nil || runID == 0 {
		return
	}
	if err := r.index.RecordResult(context.WithoutCancel(ctx), runID, res); err != nil {
		logx.Warnf("写入运行索引失败：%v", err)
	}
}
