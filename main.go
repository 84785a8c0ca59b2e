// 命令行入口：
// - 解析 flags 与 settings.yaml/rules.yaml（命令行优先）
// - 初始化日志、HTTP 客户端、可选运行索引
// - 执行归档流程并按需导出 manifest 与运行摘要
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"go-post-archiver/internal/config"
	"go-post-archiver/internal/export"
	"go-post-archiver/internal/fetch"
	"go-post-archiver/internal/ingest"
	"go-post-archiver/internal/logx"
	"go-post-archiver/internal/rules"
	"go-post-archiver/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post-archiver [site]",
		Short: "Archive every post of a newsletter site as Markdown",
		Long: `post-archiver reads <site>/sitemap.xml, fetches every post page,
extracts the embedded post record and writes one Markdown file per post.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runArchive,
	}
	f := cmd.Flags()
	cmd.PersistentFlags().String("config", "settings.yaml", "path to settings.yaml (optional)")
	f.String("rules", "rules.yaml", "path to rules.yaml (optional)")
	f.String("site", "", "site base URL (overrides SITE_URL)")
	f.StringP("out", "o", "", "output directory (overrides OUTPUT_DIR)")
	f.Bool("overwrite", false, "replace an existing output directory")
	f.Bool("save", true, "write Markdown files")
	f.IntP("concurrency", "c", 0, "concurrent page fetches")
	f.Duration("timeout", 0, "per-page fetch timeout")
	f.Bool("no-feed", false, "skip feed enrichment of author/date")
	f.String("db", "", "sqlite run index path (overrides DATABASE.dsn)")
	f.Bool("reset-index", false, "clear the run index before running")
	f.String("export", "", "write a JSON manifest to this path")
	f.String("summary", "", "write a Markdown run summary to this path")
	f.Bool("progress", false, "show a progress bar on stderr")
	cmd.PersistentFlags().String("log-level", "", "debug|info|warn|error|off")

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newLastRunCmd())
	return cmd
}

// loadConfig 读取配置文件（缺省文件不存在时使用默认值），再应用命令行覆盖。
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
			return nil, err
		}
		cfg = config.Default()
	}
	fl := cmd.Flags()
	if len(args) == 1 {
		cfg.SiteURL = args[0]
	}
	if fl.Changed("site") {
		cfg.SiteURL, _ = fl.GetString("site")
	}
	if fl.Changed("out") {
		cfg.OutputDir, _ = fl.GetString("out")
	}
	if fl.Changed("overwrite") {
		cfg.Overwrite, _ = fl.GetBool("overwrite")
	}
	if fl.Changed("save") {
		v, _ := fl.GetBool("save")
		cfg.Save = &v
	}
	if fl.Changed("concurrency") {
		cfg.Concurrency.Fetch, _ = fl.GetInt("concurrency")
	}
	if fl.Changed("timeout") {
		d, _ := fl.GetDuration("timeout")
		cfg.Timeout = d.String()
	}
	if fl.Changed("no-feed") {
		v, _ := fl.GetBool("no-feed")
		enrich := !v
		cfg.FeedEnrich = &enrich
	}
	if fl.Changed("db") {
		cfg.Database.DSN, _ = fl.GetString("db")
	}
	if fl.Changed("export") {
		cfg.Export.JSON, _ = fl.GetString("export")
	}
	if fl.Changed("summary") {
		cfg.Export.Summary, _ = fl.GetString("summary")
	}
	if fl.Changed("log-level") {
		cfg.LogLevel, _ = fl.GetString("log-level")
	}
	return cfg, nil
}

func runArchive(cmd *cobra.Command, args []string) error {
	// 1) 加载配置与规则
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	logx.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogLocale, cfg.LogColor)

	rulesPath, _ := cmd.Flags().GetString("rules")
	var rl *rules.Rules
	if rulesPath != "" {
		r, err := rules.Load(rulesPath)
		switch {
		case err == nil:
			rl = r
		case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("rules"):
			logx.Debugf("未找到 %s，使用内置规则", rulesPath)
		default:
			return fmt.Errorf("load rules: %w", err)
		}
	}
	preset := rl.Resolve(cfg.Theme)

	// 2) HTTP 客户端（代理/超时/限速/重试）
	cl, err := fetch.New(fetch.Options{
		ProxyHTTP:     cfg.Proxy.HTTP,
		ProxyHTTPS:    cfg.Proxy.HTTPS,
		Timeout:       cfg.TimeoutDuration(),
		Retry:         cfg.Concurrency.Retry,
		RatePerSecond: cfg.Concurrency.Rate,
		Burst:         cfg.Concurrency.Burst,
	})
	if err != nil {
		return fmt.Errorf("http client: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3) 可选运行索引
	var idx *store.SQLite
	if cfg.Database.DSN != "" {
		idx, err = store.OpenSQLite(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open run index: %w", err)
		}
		defer idx.Close()
		if reset, _ := cmd.Flags().GetBool("reset-index"); reset {
			if err := idx.Reset(ctx); err != nil {
				logx.Warnf("清理运行索引失败：%v", err)
			} else {
				logx.Infof("已清理运行索引（runs/items）")
			}
		}
	}

	// 4) 执行归档
	opts := ingest.OptionsFromConfig(cfg, preset)
	var bar *progressbar.ProgressBar
	if show, _ := cmd.Flags().GetBool("progress"); show {
		opts.OnProgress = func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Archiving posts"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetWidth(15),
					progressbar.OptionThrottle(65*time.Millisecond),
					progressbar.OptionShowCount(),
				)
			}
			_ = bar.Set(done)
		}
	}
	logx.Infof("开始归档：%s → %s（保存=%v，覆盖=%v）", cfg.SiteURL, cfg.OutputDir, cfg.SaveEnabled(), cfg.Overwrite)
	res, runErr := ingest.New(opts, cl, store.NewFiles(nil), idx).Run(ctx)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	// 5) 导出（发现失败时同样导出，便于排查）
	if res != nil {
		if cfg.Export.JSON != "" {
			if err := export.ToJSON(res, cfg.Export.JSON); err != nil {
				logx.Errorf("导出 JSON 失败：%v", err)
			} else {
				logx.Infof("已导出 %s", cfg.Export.JSON)
			}
		}
		if cfg.Export.Summary != "" {
			if err := export.WriteSummaryFile(res, cfg.Export.Summary); err != nil {
				logx.Errorf("写入运行摘要失败：%v", err)
			} else {
				logx.Infof("已写入运行摘要 %s", cfg.Export.Summary)
			}
		}
	}
	if runErr != nil {
		return runErr
	}
	if res.Cancelled {
		return context.Canceled
	}
	return nil
}
