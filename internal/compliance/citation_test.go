package compliance_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-legal/factgate/internal/compliance"
	"github.com/veritas-legal/factgate/internal/metrics"
	"github.com/veritas-legal/factgate/internal/model"
)

func testPolicy() compliance.Policy {
	return compliance.Policy{
		CitationRequired:       true,
		MinCitationConfidence:  0.95,
		AllowedCitationDomains: []string{"legislation.gov.uk", "bailii.org", "judiciary.uk"},
	}
}

func TestEvaluateEmptySetFails(t *testing.T) {
	ok, reason := testPolicy().Evaluate(nil)
	assert.False(t, ok)
	assert.Equal(t, "no citations provided", reason)
}

func TestEvaluateDisabledPolicyPasses(t *testing.T) {
	p := testPolicy()
	p.CitationRequired = false

	ok, reason := p.Evaluate(nil)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestEvaluateAllMustSatisfy(t *testing.T) {
	good := model.Citation{Source: "https://www.legislation.gov.uk/ukpga/1996/18", Confidence: 0.99}

	tests := []struct {
		name      string
		citations []model.Citation
		wantOK    bool
	}{
		{
			name:      "single valid citation",
			citations: []model.Citation{good},
			wantOK:    true,
		},
		{
			name: "one low-confidence citation fails the set",
			citations: []model.Citation{
				good,
				{Source: "https://www.bailii.org/ew/cases/EWCA/Civ/2020/123.html", Confidence: 0.90},
			},
			wantOK: false,
		},
		{
			name: "one unapproved source fails the set",
			citations: []model.Citation{
				good,
				{Source: "https://en.wikipedia.org/wiki/Limitation_Act_1980", Confidence: 0.99},
			},
			wantOK: false,
		},
		{
			name: "confidence exactly at the floor passes",
			citations: []model.Citation{
				{Source: "https://www.judiciary.uk/guidance", Confidence: 0.95},
			},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := testPolicy().Evaluate(tt.citations)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestDomainMatchIsSubstring(t *testing.T) {
	// Sources are free-form references, so the domain match is a substring
	// check rather than URL parsing.
	ok, _ := testPolicy().Evaluate([]model.Citation{
		{Source: "Limitation Act 1980, legislation.gov.uk, s.2", Confidence: 0.99},
	})
	assert.True(t, ok)
}

func TestConfidenceMean(t *testing.T) {
	assert.Equal(t, 0.0, compliance.Confidence(nil))
	assert.InDelta(t, 0.9, compliance.Confidence([]model.Citation{
		{Confidence: 0.8},
		{Confidence: 1.0},
	}), 1e-9)
}

// recordingSink captures metric observations for assertions.
type recordingSink struct {
	metrics.Nop
	checks []bool
}

func (s *recordingSink) CitationCheck(_ context.Context, passed bool) {
	s.checks = append(s.checks, passed)
}

func TestCheckerEmitsMetricPerEvaluation(t *testing.T) {
	sink := &recordingSink{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	checker := compliance.NewChecker(testPolicy, sink, logger)

	ok, _ := checker.CheckCitations(context.Background(), "some fact", []model.Citation{
		{Source: "https://www.bailii.org/ew/cases/EWHC/QB/2021/99.html", Confidence: 0.99},
	})
	require.True(t, ok)

	ok, _ = checker.CheckCitations(context.Background(), "another fact", nil)
	require.False(t, ok)

	assert.Equal(t, []bool{true, false}, sink.checks)
}

func TestCheckerDisabledPolicySkipsMetric(t *testing.T) {
	sink := &recordingSink{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	checker := compliance.NewChecker(func() compliance.Policy {
		p := testPolicy()
		p.CitationRequired = false
		return p
	}, sink, logger)

	ok, _ := checker.CheckCitations(context.Background(), "some fact", nil)
	require.True(t, ok)
	assert.Empty(t, sink.checks)
}
