// Package compliance implements the citation policy that gates AI-extracted
// facts. A fact's citation set passes only when every citation meets the
// confidence floor and cites an approved domain; one bad citation invalidates
// the whole set.
package compliance

import (
	"context"
	"log/slog"
	"strings"

	"github.com/veritas-legal/factgate/internal/metrics"
	"github.com/veritas-legal/factgate/internal/model"
)

// Policy holds the citation enforcement configuration. It is read at
// evaluation time, so a changed policy applies to the next evaluation
// without restart.
type Policy struct {
	CitationRequired       bool
	MinCitationConfidence  float64
	AllowedCitationDomains []string
}

// Evaluate applies the policy to a citation set. It returns whether the set
// passes and, on failure, a short reason suitable for the caller. A disabled
// policy always passes.
func (p Policy) Evaluate(citations []model.Citation) (bool, string) {
	if !p.CitationRequired {
		return true, ""
	}
	if len(citations) == 0 {
		return false, "no citations provided"
	}
	for _, c := range citations {
		if c.Confidence < p.MinCitationConfidence {
			return false, "citation confidence below required minimum"
		}
	}
	for _, c := range citations {
		if !p.domainAllowed(c.Source) {
			return false, "citation source is not an approved domain"
		}
	}
	return true, ""
}

// domainAllowed reports whether the source references at least one approved
// domain token. Substring match follows the original rollout: sources are
// free-form references, not guaranteed to be parseable URLs.
func (p Policy) domainAllowed(source string) bool {
	for _, domain := range p.AllowedCitationDomains {
		if domain != "" && strings.Contains(source, domain) {
			return true
		}
	}
	return false
}

// Confidence returns the arithmetic mean of citation confidences, 0.0 for an
// empty set. No weighting by recency or source reputation; that is a known
// limitation of the scoring design, not an oversight to fix here.
func Confidence(citations []model.Citation) float64 {
	if len(citations) == 0 {
		return 0.0
	}
	var sum float64
	for _, c := range citations {
		sum += c.Confidence
	}
	return sum / float64(len(citations))
}

// Checker evaluates citation sets against the current policy and reports
// every evaluation to the metrics sink.
type Checker struct {
	policy func() Policy
	sink   metrics.Sink
	logger *slog.Logger
}

// NewChecker creates a Checker. policy is called on every evaluation so
// configuration changes take effect between calls.
func NewChecker(policy func() Policy, sink metrics.Sink, logger *slog.Logger) *Checker {
	return &Checker{policy: policy, sink: sink, logger: logger}
}

// CheckCitations evaluates the citation set for a fact. factText is used only
// for logging. Passes unconditionally when the policy is disabled; otherwise
// emits a pass/fail observation for every evaluation.
func (c *Checker) CheckCitations(ctx context.Context, factText string, citations []model.Citation) (bool, string) {
	p := c.policy()
	if !p.CitationRequired {
		return true, ""
	}

	ok, reason := p.Evaluate(citations)
	c.sink.CitationCheck(ctx, ok)
	if !ok {
		c.logger.Warn("citation check failed",
			"reason", reason,
			"citations", len(citations),
			"fact_text", truncate(factText, 100),
		)
	}
	return ok, reason
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
