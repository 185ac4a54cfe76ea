package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/xmok/rednote-signer/internal/evasion/fingerprinting"
	"github.com/xmok/rednote-signer/internal/signing"
	"github.com/xmok/rednote-signer/pkg/models"
)

func newTestBatchSigner(cfg models.BatchConfig) (*BatchSigner, *fingerprinting.SessionManager) {
	sm := fingerprinting.NewSessionManager(models.DefaultCryptoConfig(), nil, nil)
	return NewBatchSigner(sm, cfg, signing.Options{XSCommon: true}, "", nil, nil), sm
}

func makeJobs(n int) []SignJob {
	jobs := make([]SignJob, n)
	for i := range jobs {
		jobs[i] = SignJob{
			ID: fmt.Sprintf("job-%02d", i),
			Request: signing.Request{
				Method:  "GET",
				URI:     fmt.Sprintf("/api/sns/web/v1/item/%d", i),
				Cookies: map[string]string{"a1": "cookie-a1"},
			},
		}
	}
	return jobs
}

func TestBatchRunKeepsJobOrder(t *testing.T) {
	b, sm := newTestBatchSigner(models.BatchConfig{Workers: 4})
	jobs := makeJobs(20)

	results, err := b.Run(context.Background(), jobs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != len(jobs) {
		t.Fatalf("got %d results for %d jobs", len(results), len(jobs))
	}
	sessions := map[string]bool{}
	for i, res := range results {
		if res.RequestID != jobs[i].ID || res.URI != jobs[i].URI {
			t.Fatalf("result %d is for %s %s", i, res.RequestID, res.URI)
		}
		if res.Status != models.StatusSigned || res.Headers[signing.HeaderXSCommon] == "" {
			t.Fatalf("result %d not signed: %+v", i, res)
		}
		sessions[res.SessionID] = true
	}
	if len(sessions) > 4 {
		t.Fatalf("%d sessions used by 4 workers", len(sessions))
	}
	if n := len(sm.GetActiveSessions()); n != 0 {
		t.Fatalf("%d worker sessions left open", n)
	}
	if n := len(b.ListActiveBatches()); n != 0 {
		t.Fatalf("%d batches still tracked", n)
	}
}

func TestBatchRunRecordsFailedJobs(t *testing.T) {
	b, _ := newTestBatchSigner(models.BatchConfig{Workers: 2})
	jobs := makeJobs(3)
	jobs[1].Method = "DELETE"

	report, err := b.RunReport(context.Background(), jobs)
	if err != nil {
		t.Fatalf("RunReport: %v", err)
	}
	if report.Stats.TotalJobs != 3 || report.Stats.Succeeded != 2 || report.Stats.Failed != 1 {
		t.Fatalf("unexpected stats %+v", report.Stats)
	}
	if report.Results[1].Status != models.StatusFailed || !strings.Contains(report.Results[1].Error, "method") {
		t.Fatalf("unexpected failed result %+v", report.Results[1])
	}
	if report.BatchID == "" || report.EndTime.Before(report.StartTime) {
		t.Fatalf("unexpected report header %+v", report)
	}
}

func TestBatchRunCancelled(t *testing.T) {
	b, _ := newTestBatchSigner(models.BatchConfig{Workers: 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := makeJobs(5)
	results, err := b.Run(ctx, jobs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(results) != len(jobs) {
		t.Fatalf("got %d results for %d jobs", len(results), len(jobs))
	}
	for i, res := range results {
		if res.Status != models.StatusFailed || res.RequestID != jobs[i].ID {
			t.Fatalf("result %d should be a failed placeholder, got %+v", i, res)
		}
	}
}

func TestBatchRunTimeoutWithThrottling(t *testing.T) {
	b, _ := newTestBatchSigner(models.BatchConfig{
		Workers:       1,
		RatePerSecond: 1,
		Burst:         1,
		Timeout:       50 * time.Millisecond,
	})
	results, err := b.Run(context.Background(), makeJobs(3))
	if err == nil {
		t.Fatal("expected the batch to be interrupted by its timeout")
	}
	if results[0].Status != models.StatusSigned {
		t.Fatalf("first job should fit in the burst: %+v", results[0])
	}
	if results[2].Status != models.StatusFailed {
		t.Fatalf("last job should not have run: %+v", results[2])
	}
}

func TestBatchRunEmpty(t *testing.T) {
	b, _ := newTestBatchSigner(models.BatchConfig{})
	results, err := b.Run(context.Background(), nil)
	if err != nil || len(results) != 0 {
		t.Fatalf("got %v, %v", results, err)
	}
	if stats := b.GetStats(); stats["workers"] != 1 {
		t.Fatalf("workers should default to 1, got %v", stats["workers"])
	}
}

func TestCancelBatchUnknown(t *testing.T) {
	b, _ := newTestBatchSigner(models.BatchConfig{Workers: 1})
	if err := b.CancelBatch("nope"); err == nil {
		t.Fatal("expected error for unknown batch")
	}
}
