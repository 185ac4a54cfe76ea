package storage

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xmok/rednote-signer/pkg/models"
)

// ReportStore keeps batch reports as JSON files, one directory per batch:
// <base>/reports/<batch-id>/report_<timestamp>.json[.gz]
type ReportStore struct {
	baseDir     string
	logger      *logrus.Logger
	mu          sync.RWMutex
	compression bool
}

func NewReportStore(baseDir string, compression bool, logger *logrus.Logger) (*ReportStore, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(filepath.Join(baseDir, "reports"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create reports directory: %w", err)
	}
	return &ReportStore{
		baseDir:     baseDir,
		logger:      logger,
		compression: compression,
	}, nil
}

// SaveReport writes report atomically and returns the final path. Cookie and
// a1 values never reach the file: results carry headers only.
func (rs *ReportStore) SaveReport(report *models.BatchReport) (string, error) {
	if report == nil || report.BatchID == "" {
		return "", fmt.Errorf("report must have a batch id")
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()

	dir := filepath.Join(rs.baseDir, "reports", report.BatchID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	name := fmt.Sprintf("report_%s.json", report.EndTime.UTC().Format("20060102_150405"))
	if rs.compression {
		name += ".gz"
	}
	finalPath := filepath.Join(dir, name)

	tmpFile, err := os.CreateTemp(dir, ".report_*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
	}

	var w io.Writer = tmpFile
	var gzw *gzip.Writer
	if rs.compression {
		gzw = gzip.NewWriter(tmpFile)
		w = gzw
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		cleanup()
		return "", fmt.Errorf("encode report: %w", err)
	}
	if gzw != nil {
		if err := gzw.Close(); err != nil {
			cleanup()
			return "", fmt.Errorf("close gzip: %w", err)
		}
	}
	if err := tmpFile.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpFile.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), finalPath); err != nil {
		_ = os.Remove(tmpFile.Name())
		return "", fmt.Errorf("atomic rename: %w", err)
	}

	rs.logger.Infof("Report saved to %s", finalPath)
	return finalPath, nil
}

func (rs *ReportStore) LoadReport(batchID, fileName string) (*models.BatchReport, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return readReportFile(filepath.Join(rs.baseDir, "reports", batchID, fileName))
}

// ListReports returns every stored report, oldest first.
func (rs *ReportStore) ListReports() ([]*models.BatchReport, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	reports := make([]*models.BatchReport, 0, 16)
	err := filepath.Walk(filepath.Join(rs.baseDir, "reports"), func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || !isReportFile(info.Name()) {
			return nil
		}
		r, err := readReportFile(path)
		if err != nil {
			rs.logger.Warnf("Failed to parse report %s: %v", path, err)
			return nil
		}
		reports = append(reports, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk reports directory: %w", err)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].StartTime.Before(reports[j].StartTime) })
	return reports, nil
}

// Cleanup removes report files last modified before now-retention and
// returns how many were removed.
func (rs *ReportStore) Cleanup(retention time.Duration) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	removed := 0
	err := filepath.Walk(filepath.Join(rs.baseDir, "reports"), func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !info.IsDir() && info.ModTime().Before(cutoff) {
			if err := os.Remove(p); err != nil {
				rs.logger.Warnf("Failed to remove old report %s: %v", p, err)
			} else {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		rs.logger.Warnf("Failed to clean up reports: %v", err)
	}
	return removed
}

func (rs *ReportStore) GetStorageStats() (map[string]interface{}, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	var size int64
	count := 0
	err := filepath.Walk(filepath.Join(rs.baseDir, "reports"), func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
			count++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("calculate dir size: %w", err)
	}
	return map[string]interface{}{
		"report_files":        count,
		"total_size_bytes":    size,
		"total_size_human":    fmt.Sprintf("%.2f MB", float64(size)/1024.0/1024.0),
		"compression_enabled": rs.compression,
	}, nil
}

func isReportFile(name string) bool {
	name = strings.ToLower(name)
	return strings.HasPrefix(name, "report_") && (strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".json.gz"))
}

func readReportFile(path string) (*models.BatchReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read report file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gzr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gzr.Close()
		r = gzr
	}

	var report models.BatchReport
	if err := json.NewDecoder(r).Decode(&report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}
