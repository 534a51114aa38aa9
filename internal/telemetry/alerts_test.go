package telemetry

import (
	"os"
	"regexp"
	"testing"

	"gopkg.in/yaml.v3"
)

const alertsPath = "../../deploy/prometheus/alerts.yml"

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

func loadAlerts(t *testing.T) []alertGroup {
	t.Helper()
	data, err := os.ReadFile(alertsPath)
	if err != nil {
		t.Skipf("alerts file not found at %s", alertsPath)
	}
	var doc struct {
		Groups []alertGroup `yaml:"groups"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parse alerts: %v", err)
	}
	if len(doc.Groups) == 0 {
		t.Fatal("alerts file has no groups")
	}
	return doc.Groups
}

func TestAlertRulesWellFormed(t *testing.T) {
	severities := map[string]bool{"critical": true, "warning": true, "info": true}
	names := map[string]bool{}
	for _, g := range loadAlerts(t) {
		for _, rule := range g.Rules {
			if rule.Alert == "" {
				continue
			}
			if names[rule.Alert] {
				t.Fatalf("duplicate alert %s", rule.Alert)
			}
			names[rule.Alert] = true
			if rule.Expr == "" {
				t.Fatalf("alert %s has no expr", rule.Alert)
			}
			if !severities[rule.Labels["severity"]] {
				t.Fatalf("alert %s severity: got %q", rule.Alert, rule.Labels["severity"])
			}
			if rule.Annotations["summary"] == "" {
				t.Fatalf("alert %s missing summary", rule.Alert)
			}
		}
	}

	for _, name := range []string{"HighAPIErrorRate", "RefreshFailing", "PlaybackStalled", "DatabaseDown"} {
		if !names[name] {
			t.Fatalf("alert %s not defined", name)
		}
	}
}

// Every series an alert queries must be one this package exports.
func TestAlertsReferenceExportedMetrics(t *testing.T) {
	data, err := os.ReadFile("metrics.go")
	if err != nil {
		t.Fatalf("read metrics.go: %v", err)
	}
	declared := map[string]bool{}
	for _, m := range regexp.MustCompile(`Name:\s+"(signage_[a-z_]+)"`).FindAllStringSubmatch(string(data), -1) {
		declared[m[1]] = true
	}
	if len(declared) == 0 {
		t.Fatal("no metrics found in metrics.go")
	}

	series := regexp.MustCompile(`signage_[a-z_]+`)
	for _, g := range loadAlerts(t) {
		for _, rule := range g.Rules {
			for _, name := range series.FindAllString(rule.Expr, -1) {
				base := regexp.MustCompile(`_(bucket|sum|count)$`).ReplaceAllString(name, "")
				if !declared[name] && !declared[base] {
					t.Fatalf("alert %s uses undeclared metric %s", rule.Alert, name)
				}
			}
		}
	}
}
