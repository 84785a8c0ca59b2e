package main

import (
	"database/sql"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go-post-archiver/internal/store"
)

// newListCmd 列出输出目录中已保存的文章。
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [dir]",
		Short: "List archived posts in an output directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dir string
			if len(args) == 1 {
				dir = args[0]
			} else {
				cfg, err := loadConfig(cmd, nil)
				if err != nil {
					return err
				}
				dir = cfg.OutputDir
			}
			saved, err := store.List(dir)
			if err != nil && len(saved) == 0 {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SLUG\tDATE\tTITLE\tURL")
			for _, s := range saved {
				date := "-"
				if s.FrontMatter.Date != nil {
					date = s.FrontMatter.Date.Format("2006-01-02")
				}
				title := s.FrontMatter.Title
				if s.FrontMatter.Empty {
					title += " (no body)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.FrontMatter.Slug, date, title, s.FrontMatter.URL)
			}
			if ferr := w.Flush(); ferr != nil {
				return ferr
			}
			// 部分文件无法解析时仍输出其余条目，最后返回错误
			return err
		},
	}
}

// newLastRunCmd 从运行索引读取某站点最近一次运行。
func newLastRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "last-run [site]",
		Short: "Show the most recent run recorded in the run index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			if cfg.Database.DSN == "" {
				return errors.New("run index disabled: set DATABASE.dsn or --db")
			}
			if cfg.SiteURL == "" {
				return errors.New("site required")
			}
			db, err := store.OpenSQLite(cfg.Database.DSN)
			if err != nil {
				return fmt.Errorf("open run index: %w", err)
			}
			defer db.Close()
			ctx := cmd.Context()
			run, err := db.LastRun(ctx, cfg.SiteURL)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("no run recorded for %s", cfg.SiteURL)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %d  %s  state=%s converted=%d failed=%d saved=%d\n",
				run.ID, run.StartedAt.Format("2006-01-02 15:04:05"), run.State, run.Converted, run.Failed, run.Saved)
			items, err := db.ListItems(ctx, run.ID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, it := range items {
				if it.Status == "ok" {
					fmt.Fprintf(w, "%d\tok\t%s\t%s\n", it.Index, it.Slug, it.URL)
					continue
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", it.Index, it.Kind, it.URL, it.Message)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("db", "", "sqlite run index path (overrides DATABASE.dsn)")
	cmd.Flags().String("site", "", "site base URL (overrides SITE_URL)")
	return cmd
}
