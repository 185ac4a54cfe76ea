package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xmok/rednote-signer/internal/orchestration"
	"github.com/xmok/rednote-signer/internal/storage"
	"github.com/xmok/rednote-signer/pkg/models"
	"github.com/xmok/rednote-signer/pkg/utils"
)

func NewBatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Sign a file of requests on a worker pool",
		Long: `Sign every request listed in a YAML or JSON file. Each worker owns its own
signing session; results are reported in file order.

File format:
  - id: feed-1
    method: POST
    uri: /api/sns/web/v1/feed
    cookies: {a1: 18c...}
    payload: {source_note_id: 65f...}`,
		RunE: runBatch,
	}
	cmd.Flags().StringP("file", "f", "", "jobs file (YAML or JSON list)")
	cmd.Flags().IntP("workers", "w", 0, "worker count (defaults to batch.workers)")
	cmd.Flags().Float64("rps", 0, "signatures per second across workers, 0 keeps batch.rate_per_second")
	cmd.Flags().Duration("timeout", 0, "overall batch timeout (defaults to batch.timeout)")
	cmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address while the batch runs")
	cmd.Flags().String("save-dir", "", "also store the report under this directory")
	cmd.Flags().Bool("compress", true, "gzip stored reports")
	cmd.Flags().Duration("retention", 0, "remove stored reports older than this (0 keeps all)")
	addSignerFlags(cmd)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func loadJobs(path string) ([]orchestration.SignJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}
	var jobs []orchestration.SignJob
	if err := yaml.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("parse jobs file: %w", err)
	}
	return jobs, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := LoadAppConfig()
	if err != nil {
		return err
	}
	if err := applySignerFlags(cmd, cfg); err != nil {
		return err
	}
	if w, _ := cmd.Flags().GetInt("workers"); w > 0 {
		cfg.Batch.Workers = w
	}
	if rps, _ := cmd.Flags().GetFloat64("rps"); rps > 0 {
		cfg.Batch.RatePerSecond = rps
	}
	if t, _ := cmd.Flags().GetDuration("timeout"); t > 0 {
		cfg.Batch.Timeout = t
	}
	cookies, err := cookiesFromFlags(cmd)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("file")
	jobs, err := loadJobs(path)
	if err != nil {
		return err
	}
	for i := range jobs {
		if len(jobs[i].Cookies) == 0 && len(cookies) > 0 {
			jobs[i].Cookies = cookies
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logrus.Info("Received interrupt signal, stopping batch...")
			cancel()
		case <-ctx.Done():
		}
	}()

	metrics, err := utils.NewSignerMetrics(cfg.Metrics.RuntimeMetrics)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	addr, _ := cmd.Flags().GetString("metrics-addr")
	if addr == "" && cfg.Metrics.Enabled {
		addr = cfg.Metrics.Address
	}
	if addr != "" {
		go func() {
			if err := metrics.StartServerWithContext(ctx, addr); err != nil {
				logrus.WithError(err).Error("metrics server stopped")
			}
		}()
		logrus.Infof("Serving metrics on http://%s/metrics", addr)
	}

	sm := newSessionManager(cfg, metrics)
	batch := orchestration.NewBatchSigner(sm, cfg.Batch, signerOptions(cfg), cfg.Signer.UserAgent, metrics, logrus.StandardLogger())
	report, runErr := batch.RunReport(ctx, jobs)
	if report == nil {
		return runErr
	}

	if removed := sm.CleanupSessions(cfg.Fingerprint.SessionMaxAge); removed > 0 {
		logrus.Warnf("Removed %d stale sessions", removed)
	}
	logrus.WithFields(logrus.Fields{
		"succeeded": report.Stats.Succeeded,
		"failed":    report.Stats.Failed,
		"sessions":  sm.GetStats(),
	}).Info("batch complete")

	if dir, _ := cmd.Flags().GetString("save-dir"); dir != "" {
		if err := saveReport(cmd, dir, report); err != nil {
			return err
		}
	}

	if err := writeOutput(os.Stdout, cfg.Global.Output, report); err != nil {
		return err
	}
	return runErr
}

func saveReport(cmd *cobra.Command, dir string, report *models.BatchReport) error {
	compress, _ := cmd.Flags().GetBool("compress")
	store, err := storage.NewReportStore(dir, compress, logrus.StandardLogger())
	if err != nil {
		return err
	}
	if _, err := store.SaveReport(report); err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}
	if retention, _ := cmd.Flags().GetDuration("retention"); retention > 0 {
		if removed := store.Cleanup(retention); removed > 0 {
			logrus.Infof("Removed %d expired reports", removed)
		}
	}
	return nil
}
