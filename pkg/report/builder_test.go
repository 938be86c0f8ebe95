package report_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/safeops/postureboard/pkg/apierrors"
	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/ext"
	"github.com/safeops/postureboard/pkg/report"
	"github.com/safeops/postureboard/pkg/report/templates"
	"github.com/safeops/postureboard/pkg/store/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now = time.Date(2025, time.March, 2, 8, 30, 0, 0, time.UTC)
	t0  = time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	t1  = t0.Add(time.Hour)
)

func newFakeStore() *fake.Store {
	return fake.NewStore().
		AddVulnReports(
			v1alpha1.VulnerabilityReport{
				ID: 1, Pipeline: "demo", RunID: "run-1", Source: "rules", Status: "failed", CreatedAt: t0,
				Findings: []byte(`[{"rule_id":"R1","title":"Old secret","severity":"critical"},{"rule_id":"R2","severity":"low"}]`),
			},
			v1alpha1.VulnerabilityReport{
				ID: 2, Pipeline: "demo", RunID: "run-2", Source: "rules", Status: "failed", CreatedAt: t1,
				Findings: []byte(`[{"rule_id":"R1","title":"New secret","severity":"critical"},{"rule_id":"R3","severity":"medium"}]`),
			},
			v1alpha1.VulnerabilityReport{
				ID: 3, Pipeline: "other", RunID: "run-9", CreatedAt: t1,
				Findings: []byte(`[{"rule_id":"X","severity":"high"}]`),
			},
		).
		AddFixes(
			v1alpha1.FixReport{ID: 1, PipelineID: "other", RuleID: "X", Title: "Pin image", YAMLPatch: "image:\n    tag: 1.2.3\n", CreatedAt: t1},
		).
		AddAnomalies(
			v1alpha1.AnomalyReport{Timestamp: t0, PipelineID: "demo", RunID: "run-1", IsAnomaly: true},
			v1alpha1.AnomalyReport{Timestamp: t1, PipelineID: "demo", RunID: "run-2", IsAnomaly: false},
		)
}

func TestBuilder_Build(t *testing.T) {
	ctx := context.Background()
	builder := report.NewBuilder(newFakeStore(), ext.NewFixedClock(now))

	t.Run("Should build page from all reports", func(t *testing.T) {
		page, err := builder.Build(ctx, "demo", v1alpha1.ReportModeAll)
		require.NoError(t, err)

		assert.Equal(t, "demo", page.Pipeline)
		assert.Equal(t, now, page.GeneratedAt)
		assert.Equal(t, v1alpha1.ReportModeAll, page.Mode)
		require.Len(t, page.Vulns, 2)
		assert.Equal(t, int64(2), page.Vulns[0].Report.ID)
		assert.Equal(t, templates.Stats{Reports: 2, Findings: 4, Critical: 2, Medium: 1, Low: 1}, page.Stats)
		assert.Equal(t, 1, page.Anomalies)

		// risk 10+4+10+1 = 25, vuln penalty 50, anomaly penalty 2
		assert.Equal(t, 48, page.Score.Value)
		assert.Equal(t, templates.Penalties{Vuln: 50, Anomaly: 2}, page.Penalties)

		require.Len(t, page.Fixes, 1)
		assert.Equal(t, "other", page.Fixes[0].PipelineID)
		assert.Equal(t, "image:\n  tag: 1.2.3", page.Fixes[0].Patch)

		require.Len(t, page.TopFindings, 3)
		assert.Equal(t, "R1", page.TopFindings[0].RuleID)
		assert.Equal(t, "New secret", page.TopFindings[0].Title)
		assert.Equal(t, 2, page.TopFindings[0].Occurrences)
		assert.Equal(t, "R3", page.TopFindings[1].RuleID)
	})

	t.Run("Should only read latest report", func(t *testing.T) {
		page, err := builder.Build(ctx, "demo", v1alpha1.ReportModeLatest)
		require.NoError(t, err)

		require.Len(t, page.Vulns, 1)
		assert.Equal(t, "run-2", page.Vulns[0].Report.RunID)
		assert.Equal(t, 2, page.Stats.Findings)
		assert.Len(t, page.Findings(), 2)
	})

	t.Run("Should reject invalid pipeline", func(t *testing.T) {
		_, err := builder.Build(ctx, "../../etc", v1alpha1.ReportModeAll)
		require.Error(t, err)
		assert.True(t, apierrors.IsInvalid(err))
	})

	t.Run("Should surface datastore failure", func(t *testing.T) {
		failing := fake.NewStore()
		failing.Err = apierrors.NewDependency("datastore unavailable", errors.New("dial tcp"))

		_, err := report.NewBuilder(failing, ext.NewFixedClock(now)).Build(ctx, "demo", v1alpha1.ReportModeAll)
		require.Error(t, err)
		assert.True(t, apierrors.IsDependency(err))
	})

	t.Run("Should tolerate missing fix relation", func(t *testing.T) {
		s := newFakeStore()
		s.FixesMissing = true

		page, err := report.NewBuilder(s, ext.NewFixedClock(now)).Build(ctx, "demo", v1alpha1.ReportModeAll)
		require.NoError(t, err)
		assert.Empty(t, page.Fixes)
	})
}

func TestNormalizePatch(t *testing.T) {
	assert.Equal(t, "steps:\n  - uses: actions/checkout@v4", report.NormalizePatch("steps:\n    -   uses: actions/checkout@v4\n"))
	assert.Equal(t, "", report.NormalizePatch(""))
	assert.Equal(t, "key: [unclosed", report.NormalizePatch("key: [unclosed"))
}
