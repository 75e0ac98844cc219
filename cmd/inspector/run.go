package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/CZERTAINLY/Inspector/internal/batch"
	"github.com/CZERTAINLY/Inspector/internal/inspect"
	"github.com/CZERTAINLY/Inspector/internal/log"
	"github.com/CZERTAINLY/Inspector/internal/model"
	"github.com/CZERTAINLY/Inspector/internal/reporter"
	"github.com/CZERTAINLY/Inspector/internal/resource/httpres"
	"github.com/CZERTAINLY/Inspector/internal/sitemap"
	"github.com/CZERTAINLY/Inspector/internal/telemetry"
)

var (
	flagConcurrency    int
	flagThreshold      int
	flagTimeout        time.Duration
	flagIsolated       bool
	flagJSON           string
	flagSitemap        string
	flagSitemapFind    string
	flagSitemapReplace string
	flagSitemapExclude string
)

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&flagConcurrency, "concurrency", 0, "number of targets inspected at once")
	f.IntVar(&flagThreshold, "threshold", 0, "number of issues a target may have and still pass")
	f.DurationVar(&flagTimeout, "timeout", 0, "timeout of a single inspection, zero waits forever")
	f.BoolVar(&flagIsolated, "isolated", true, "inspect every target in an isolated context")
	f.StringVar(&flagJSON, "json", "", "write a JSON report to the file, - writes to stdout")
	f.StringVar(&flagSitemap, "sitemap", "", "inspect the urls listed in a sitemap")
	f.StringVar(&flagSitemapFind, "sitemap-find", "", "string to replace in sitemap urls")
	f.StringVar(&flagSitemapReplace, "sitemap-replace", "", "replacement of --sitemap-find")
	f.StringVar(&flagSitemapExclude, "sitemap-exclude", "", "regular expression of sitemap urls to skip")
}

// flagOptions returns the options set on the command line.
func flagOptions(cmd *cobra.Command) *model.Options {
	var o model.Options
	f := cmd.Flags()
	if f.Changed("concurrency") {
		o.Concurrency = flagConcurrency
	}
	if f.Changed("threshold") {
		o.Threshold = model.Ptr(flagThreshold)
	}
	if f.Changed("timeout") {
		o.Timeout = flagTimeout
	}
	if f.Changed("isolated") {
		o.UseIsolatedContext = model.Ptr(flagIsolated)
	}
	return &o
}

func sitemapConfig(cmd *cobra.Command) *model.Sitemap {
	s := config.Sitemap
	if cmd.Flags().Changed("sitemap") {
		s = &model.Sitemap{URL: flagSitemap}
	}
	if s == nil {
		return nil
	}
	if cmd.Flags().Changed("sitemap-find") {
		s.Find = flagSitemapFind
		s.Replace = flagSitemapReplace
	}
	if cmd.Flags().Changed("sitemap-exclude") {
		s.Exclude = flagSitemapExclude
	}
	return s
}

func doRun(cmd *cobra.Command, args []string) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.String("cmd", "run"))

	opts, err := model.Merge(config.Defaults, flagOptions(cmd))
	if err != nil {
		return err
	}
	if err := model.ValidateOptions(opts); err != nil {
		return err
	}

	targets := append(config.AllTargets(), model.Targets(args...)...)
	if s := sitemapConfig(cmd); s != nil {
		more, err := sitemapTargets(ctx, *s)
		if err != nil {
			return err
		}
		targets = append(targets, more...)
	}
	if len(targets) == 0 {
		return fmt.Errorf("nothing to inspect: pass urls as arguments or configure targets")
	}

	specs := config.Reporters
	if flagJSON != "" {
		path := flagJSON
		if path == "-" {
			path = ""
		}
		specs = append(specs, model.ReporterSpec{Name: model.ReporterJSON, Options: map[string]any{"path": path}})
	}
	observers, err := reporter.All(specs, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	providers, err := telemetry.Setup(ctx, config.Telemetry, version())
	if err != nil {
		return err
	}
	defer func() {
		if err := providers.Shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.WarnContext(ctx, "telemetry shutdown failed", "err", err)
		}
	}()
	metrics, err := telemetry.NewMetrics(providers.MeterProvider)
	if err != nil {
		return err
	}

	report, err := batch.Run(ctx, targets, opts, batch.Deps{
		Inspector:  inspect.New(),
		Provider:   httpres.Provider{},
		Launch:     config.Launch,
		Observers:  observers,
		HookPolicy: config.HookPolicy,
		Metrics:    metrics,
		Tracer:     providers.Tracer(),
	})
	if err != nil {
		return err
	}
	if !report.Passed() {
		return errTargetsFailed
	}
	return nil
}

func sitemapTargets(ctx context.Context, cfg model.Sitemap) ([]model.Target, error) {
	agent, err := httpres.NewAgent(config.Launch, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = agent.Close()
	}()
	targets, err := sitemap.Targets(ctx, agent, cfg)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "sitemap loaded", "url", cfg.URL, "targets", len(targets))
	return targets, nil
}
