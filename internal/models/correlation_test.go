package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationRuleMatches(t *testing.T) {
	alert := AlertData{
		ID:         "a1",
		RuleName:   "High CPU Usage",
		Severity:   SeverityCritical,
		MetricName: "cpu_usage_percent",
		Tags:       map[string]string{"service": "api", "region": "eu-west-1"},
	}

	tests := []struct {
		name string
		rule CorrelationRule
		want bool
	}{
		{"empty rule matches anything", CorrelationRule{}, true},
		{"matching tag", CorrelationRule{MatchTags: map[string]string{"service": "api"}}, true},
		{"mismatching tag", CorrelationRule{MatchTags: map[string]string{"service": "db"}}, false},
		{"missing tag", CorrelationRule{MatchTags: map[string]string{"zone": "a"}}, false},
		{"matching severity", CorrelationRule{MatchSeverity: SeverityCritical}, true},
		{"mismatching severity", CorrelationRule{MatchSeverity: SeverityLow}, false},
		{"matching metric", CorrelationRule{MatchMetric: "cpu_usage_percent"}, true},
		{"mismatching metric", CorrelationRule{MatchMetric: "error_rate"}, false},
		{"rule name pattern", CorrelationRule{RuleNamePattern: "^High"}, true},
		{"rule name pattern miss", CorrelationRule{RuleNamePattern: "^Low"}, false},
		{"invalid pattern never matches", CorrelationRule{RuleNamePattern: "("}, false},
		{
			"all constraints together",
			CorrelationRule{
				MatchTags:     map[string]string{"service": "api"},
				MatchSeverity: SeverityCritical,
				MatchMetric:   "cpu_usage_percent",
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Matches(alert))
		})
	}
}

func TestFieldConditionMatches(t *testing.T) {
	alert := AlertData{
		Severity:    SeverityHigh,
		MetricName:  "response_time_ms",
		MetricValue: 2500,
		Tags:        map[string]string{"service": "checkout"},
	}

	tests := []struct {
		name string
		cond FieldCondition
		want bool
	}{
		{"eq on tag", FieldCondition{Field: "tags.service", Operator: OpEq, Value: "checkout"}, true},
		{"ne on tag", FieldCondition{Field: "tags.service", Operator: OpNe, Value: "cart"}, true},
		{"missing tag fails", FieldCondition{Field: "tags.zone", Operator: OpEq, Value: "a"}, false},
		{"gt on metric value", FieldCondition{Field: "metric_value", Operator: OpGt, Value: 2000.0}, true},
		{"lte on metric value", FieldCondition{Field: "metric_value", Operator: OpLte, Value: 2000.0}, false},
		{"ordering on non-numeric fails", FieldCondition{Field: "severity", Operator: OpGt, Value: 1.0}, false},
		{"in with candidates", FieldCondition{Field: "severity", Operator: OpIn, In: []string{"high", "critical"}}, true},
		{"in without hit", FieldCondition{Field: "severity", Operator: OpIn, In: []string{"low"}}, false},
		{"regex on metric name", FieldCondition{Field: "metric_name", Operator: OpRegex, Value: "^response_"}, true},
		{"invalid regex fails", FieldCondition{Field: "metric_name", Operator: OpRegex, Value: "("}, false},
		{"unknown field fails", FieldCondition{Field: "nope", Operator: OpEq, Value: "x"}, false},
		{"unknown operator fails", FieldCondition{Field: "severity", Operator: "like", Value: "high"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Matches(alert))
		})
	}
}

func TestGroupKey(t *testing.T) {
	alert := AlertData{
		RuleName:   "High CPU Usage",
		Severity:   SeverityHigh,
		MetricName: "cpu_usage_percent",
		Tags:       map[string]string{"service": "api", "region": "eu-west-1"},
	}

	rule := CorrelationRule{GroupBy: []string{"severity", "tags.service"}}
	assert.Equal(t, "high|api", rule.GroupKey(alert))

	// The whole tag map serializes sorted, so key construction is stable.
	rule = CorrelationRule{GroupBy: []string{"tags"}}
	assert.Equal(t, "region=eu-west-1,service=api", rule.GroupKey(alert))

	// Unknown fields contribute an empty fragment, not an error.
	rule = CorrelationRule{GroupBy: []string{"severity", "bogus"}}
	assert.Equal(t, "high|", rule.GroupKey(alert))
}
