// Package fake provides an in-memory store.Reader for tests and local runs.
package fake

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"

	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/store"
)

type Store struct {
	mu sync.RWMutex

	vulnReports []v1alpha1.VulnerabilityReport
	fixes       []v1alpha1.FixReport
	anomalies   []v1alpha1.AnomalyReport
	runs        []v1alpha1.PipelineRun

	// Err, when set, is returned by every read.
	Err error
	// FixesMissing simulates a deployment without the fix_reports relation.
	FixesMissing bool
}

var _ store.Reader = &Store{}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) AddVulnReports(reports ...v1alpha1.VulnerabilityReport) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vulnReports = append(s.vulnReports, reports...)
	return s
}

func (s *Store) AddFixes(fixes ...v1alpha1.FixReport) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixes = append(s.fixes, fixes...)
	return s
}

func (s *Store) AddAnomalies(anomalies ...v1alpha1.AnomalyReport) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomalies = append(s.anomalies, anomalies...)
	return s
}

func (s *Store) AddRuns(runs ...v1alpha1.PipelineRun) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, runs...)
	return s
}

func (s *Store) FindVulnReports(_ context.Context, filter store.VulnReportFilter) ([]v1alpha1.VulnerabilityReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}

	term := strings.ToLower(filter.Query)
	var reports []v1alpha1.VulnerabilityReport
	for _, r := range s.vulnReports {
		if filter.Pipeline != "" && r.Pipeline != filter.Pipeline {
			continue
		}
		if term != "" && !matches(term, r.Pipeline, r.RunID, r.Status, string(r.Findings)) {
			continue
		}
		reports = append(reports, r)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		if !reports[i].CreatedAt.Equal(reports[j].CreatedAt) {
			return reports[i].CreatedAt.After(reports[j].CreatedAt)
		}
		return reports[i].ID > reports[j].ID
	})
	return truncate(reports, filter.Limit), nil
}

func matches(term string, values ...string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

func (s *Store) ListVulnReportPipelines(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	set := treeset.NewWith(utils.StringComparator)
	for _, r := range s.vulnReports {
		set.Add(r.Pipeline)
	}
	return toStrings(set), nil
}

func (s *Store) LatestFixes(_ context.Context, limit int) ([]v1alpha1.FixReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	fixes := []v1alpha1.FixReport{}
	if s.FixesMissing {
		return fixes, nil
	}
	fixes = append(fixes, s.fixes...)
	sort.SliceStable(fixes, func(i, j int) bool {
		if !fixes[i].CreatedAt.Equal(fixes[j].CreatedAt) {
			return fixes[i].CreatedAt.After(fixes[j].CreatedAt)
		}
		return fixes[i].ID > fixes[j].ID
	})
	return truncate(fixes, limit), nil
}

func (s *Store) CountAnomalies(_ context.Context, pipeline string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return 0, s.Err
	}
	count := 0
	for _, a := range s.anomalies {
		if a.PipelineID == pipeline && a.IsAnomaly {
			count++
		}
	}
	return count, nil
}

func (s *Store) RecentAnomalies(_ context.Context, pipeline string, limit int) ([]v1alpha1.AnomalyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	anomalies := []v1alpha1.AnomalyReport{}
	for _, a := range s.anomalies {
		if a.PipelineID == pipeline {
			anomalies = append(anomalies, a)
		}
	}
	sort.SliceStable(anomalies, func(i, j int) bool {
		return anomalies[i].Timestamp.After(anomalies[j].Timestamp)
	})
	return truncate(anomalies, limit), nil
}

func (s *Store) ListPipelines(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	set := treeset.NewWith(utils.StringComparator)
	for _, r := range s.runs {
		set.Add(r.PipelineID)
	}
	return toStrings(set), nil
}

func (s *Store) LatestRunsPerPipeline(_ context.Context) ([]v1alpha1.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	latest := make(map[string]v1alpha1.PipelineRun)
	for _, r := range s.runs {
		if current, ok := latest[r.PipelineID]; !ok || r.Timestamp.After(current.Timestamp) {
			latest[r.PipelineID] = r
		}
	}
	runs := make([]v1alpha1.PipelineRun, 0, len(latest))
	for _, r := range latest {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].PipelineID < runs[j].PipelineID
	})
	return runs, nil
}

func (s *Store) RecentRuns(_ context.Context, pipeline string, limit int) ([]v1alpha1.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var runs []v1alpha1.PipelineRun
	for _, r := range s.runs {
		if pipeline == "" || r.PipelineID == pipeline {
			runs = append(runs, r)
		}
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return truncate(runs, limit), nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Err
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func toStrings(set *treeset.Set) []string {
	values := make([]string, 0, set.Size())
	for _, v := range set.Values() {
		values = append(values, v.(string))
	}
	return values
}
