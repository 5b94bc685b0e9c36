package observability

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestLedgerAlertRules(t *testing.T) {
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "ledger.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read alert file: %v", err)
	}

	var spec alertSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		t.Fatalf("failed to unmarshal alert file: %v", err)
	}

	if len(spec.Groups) == 0 {
		t.Fatal("expected at least one alert group")
	}

	var ledgerGroup *alertGroup
	for i := range spec.Groups {
		if spec.Groups[i].Name == "ledger" {
			ledgerGroup = &spec.Groups[i]
			break
		}
	}
	if ledgerGroup == nil {
		t.Fatal("ledger alert group missing")
	}

	expected := map[string]struct {
		severity string
		runbook  string
	}{
		"HighErrorRate":           {severity: "critical", runbook: "docs/runbook-ops-ledger.md#high-error-rate"},
		"HighLatency":             {severity: "warning", runbook: "docs/runbook-ops-ledger.md#high-latency"},
		"CommitFailureSpike":      {severity: "warning", runbook: "docs/runbook-ops-ledger.md#commit-failure-spike"},
		"LedgerImbalanceDetected": {severity: "critical", runbook: "docs/runbook-ops-ledger.md#ledger-imbalance"},
		"FECExportFailures":       {severity: "warning", runbook: "docs/runbook-ops-ledger.md#fec-export-failures"},
	}

	if len(ledgerGroup.Rules) != len(expected) {
		t.Fatalf("expected %d rules, got %d", len(expected), len(ledgerGroup.Rules))
	}

	for _, rule := range ledgerGroup.Rules {
		want, ok := expected[rule.Alert]
		if !ok {
			t.Fatalf("unexpected rule %q", rule.Alert)
		}
		if rule.Labels["severity"] != want.severity {
			t.Fatalf("rule %s severity mismatch: %s", rule.Alert, rule.Labels["severity"])
		}
		if rule.Annotations["runbook"] != want.runbook {
			t.Fatalf("rule %s runbook mismatch: %s", rule.Alert, rule.Annotations["runbook"])
		}
		if rule.Annotations["summary"] == "" || rule.Annotations["description"] == "" {
			t.Fatalf("rule %s must include summary and description annotations", rule.Alert)
		}
		if rule.Expr == "" {
			t.Fatalf("rule %s must define an expression", rule.Alert)
		}
		if rule.For == "" {
			t.Fatalf("rule %s must define a hold duration", rule.Alert)
		}
	}
}

func TestAlertExprOutcomeLabelsAreEmitted(t *testing.T) {
	// Outcome values each counter can actually produce. A rule selecting a
	// value outside this set matches an empty series and can never fire.
	emitted := map[string]map[string]bool{
		"pacioli_ledger_commits_total": {"ok": true, "rejected": true, "error": true},
		"pacioli_fec_exports_total":    {"ok": true, "error": true},
	}

	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "ledger.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read alert file: %v", err)
	}
	var spec alertSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		t.Fatalf("failed to unmarshal alert file: %v", err)
	}

	selector := regexp.MustCompile(`([a-z_]+)\{[^}]*outcome="([^"]+)"`)
	for _, group := range spec.Groups {
		for _, rule := range group.Rules {
			for _, m := range selector.FindAllStringSubmatch(rule.Expr, -1) {
				metric, value := m[1], m[2]
				values, known := emitted[metric]
				if !known {
					t.Fatalf("rule %s selects outcome on unknown metric %q", rule.Alert, metric)
				}
				if !values[value] {
					t.Fatalf("rule %s selects %s{outcome=%q}, which is never emitted", rule.Alert, metric, value)
				}
			}
		}
	}
}
