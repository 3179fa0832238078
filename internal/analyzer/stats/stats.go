package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrEmptyInput is returned for zero-record input. Callers must treat it
// as a validation failure, not an empty successful result.
var ErrEmptyInput = errors.New("empty input: no records to analyze")

// sensitiveVocab: a column whose lower-cased name contains one of these
// substrings is flagged as a sensitive attribute.
var sensitiveVocab = []string{
	"gender", "sex", "race", "ethnic", "age", "nationality",
	"religion", "disability", "zip", "postal", "location",
}

// outcomeCandidates used when no outcome column is designated.
var outcomeCandidates = []string{"outcome", "approved", "decision", "label", "target", "hired", "selected"}

const (
	missingRatioThreshold   = 0.10
	skewThreshold           = 2.0
	disparateImpactThreshold = 0.8
	imbalanceRatioThreshold  = 10.0
	imbalanceMaxClasses      = 5
)

// NumericStats summarizes a purely numeric column.
type NumericStats struct {
	Min      float64   `json:"min"`
	Max      float64   `json:"max"`
	Mean     float64   `json:"mean"`
	Median   float64   `json:"median"`
	StdDev   float64   `json:"std_dev"`
	Q1       float64   `json:"q1"`
	Q3       float64   `json:"q3"`
	Outliers []float64 `json:"outliers,omitempty"`
}

// ColumnStats describes the distribution of one column.
type ColumnStats struct {
	Distribution map[string]int `json:"distribution"`
	Missing      int            `json:"missing"`
	MissingRatio float64        `json:"missing_ratio"`
	Numeric      *NumericStats  `json:"numeric,omitempty"`
}

// ImpactStat holds the disparate impact computation for one sensitive attribute.
type ImpactStat struct {
	Ratio      float64            `json:"ratio"`
	GroupRates map[string]float64 `json:"group_rates"`
	Flagged    bool               `json:"flagged"`
}

// Issue is one synthesized data quality / fairness finding.
type Issue struct {
	Attribute   string `json:"attribute"`
	Issue       string `json:"issue"`
	Severity    string `json:"severity"`
	Explanation string `json:"explanation"`
}

// Result is the immutable output of one bias analysis run.
type Result struct {
	TotalRecords        int                     `json:"total_records"`
	Columns             map[string]*ColumnStats `json:"columns"`
	SensitiveAttributes []string                `json:"sensitive_attributes"`
	OutcomeColumn       string                  `json:"outcome_column,omitempty"`
	DisparateImpact     map[string]*ImpactStat  `json:"disparate_impact,omitempty"`
	Issues              []Issue                 `json:"issues"`
	Recommendations     []string                `json:"recommendations"`
}

// Analyze computes per-column distributions, sensitive-attribute and
// disparate-impact statistics over uniform records. outcomeColumn may be
// empty; a candidate is then auto-detected from the column names.
func Analyze(records []map[string]any, outcomeColumn string) (*Result, error) {
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	columns := columnNames(records)
	res := &Result{
		TotalRecords: len(records),
		Columns:      make(map[string]*ColumnStats, len(columns)),
	}

	for _, col := range columns {
		if isSensitiveName(col) {
			res.SensitiveAttributes = append(res.SensitiveAttributes, col)
		}
		res.Columns[col] = describeColumn(records, col)
	}

	res.OutcomeColumn = resolveOutcome(columns, outcomeColumn)

	if res.OutcomeColumn != "" {
		res.DisparateImpact = disparateImpact(records, res.SensitiveAttributes, res.OutcomeColumn)
	}

	res.Issues = synthesizeIssues(res)
	res.Recommendations = recommend(res.Issues)
	return res, nil
}

func columnNames(records []map[string]any) []string {
	seen := map[string]bool{}
	var cols []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func isSensitiveName(col string) bool {
	lower := strings.ToLower(col)
	for _, v := range sensitiveVocab {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}

func resolveOutcome(columns []string, designated string) string {
	if designated != "" {
		for _, c := range columns {
			if strings.EqualFold(c, designated) {
				return c
			}
		}
		return ""
	}
	for _, cand := range outcomeCandidates {
		for _, c := range columns {
			if strings.EqualFold(c, cand) {
				return c
			}
		}
	}
	return ""
}

func describeColumn(records []map[string]any, col string) *ColumnStats {
	cs := &ColumnStats{Distribution: map[string]int{}}
	var nums []float64
	allNumeric := true

	for _, r := range records {
		v, ok := r[col]
		if !ok || isMissing(v) {
			cs.Missing++
			continue
		}
		cs.Distribution[render(v)]++
		if n, ok := asNumber(v); ok {
			nums = append(nums, n)
		} else {
			allNumeric = false
		}
	}
	cs.MissingRatio = float64(cs.Missing) / float64(len(records))

	if allNumeric && len(nums) > 0 {
		cs.Numeric = describeNumeric(nums)
	}
	return cs
}

func describeNumeric(nums []float64) *NumericStats {
	sorted := append([]float64(nil), nums...)
	sort.Float64s(sorted)

	n := len(sorted)
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	variance := 0.0
	for _, v := range sorted {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(n)

	ns := &NumericStats{
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   mean,
		Median: median(sorted),
		StdDev: math.Sqrt(variance),
	}

	lower, upper := halves(sorted)
	ns.Q1 = median(lower)
	ns.Q3 = median(upper)

	iqr := ns.Q3 - ns.Q1
	lo := ns.Q1 - 1.5*iqr
	hi := ns.Q3 + 1.5*iqr
	for _, v := range sorted {
		if v < lo || v > hi {
			ns.Outliers = append(ns.Outliers, v)
		}
	}
	return ns
}

// median expects sorted input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// halves splits a sorted slice around its median (middle element excluded
// for odd lengths), for Tukey-style quartiles.
func halves(sorted []float64) ([]float64, []float64) {
	n := len(sorted)
	if n < 2 {
		return sorted, sorted
	}
	if n%2 == 1 {
		return sorted[:n/2], sorted[n/2+1:]
	}
	return sorted[:n/2], sorted[n/2:]
}

func disparateImpact(records []map[string]any, sensitive []string, outcome string) map[string]*ImpactStat {
	out := map[string]*ImpactStat{}
	for _, attr := range sensitive {
		if strings.EqualFold(attr, outcome) {
			continue
		}
		type group struct{ total, favorable int }
		groups := map[string]*group{}
		for _, r := range records {
			v, ok := r[attr]
			if !ok || isMissing(v) {
				continue
			}
			key := render(v)
			g := groups[key]
			if g == nil {
				g = &group{}
				groups[key] = g
			}
			g.total++
			if isFavorable(r[outcome]) {
				g.favorable++
			}
		}
		if len(groups) < 2 {
			continue // four-fifths rule needs at least two populated groups
		}
		rates := make(map[string]float64, len(groups))
		minRate, maxRate := math.Inf(1), math.Inf(-1)
		for key, g := range groups {
			rate := float64(g.favorable) / float64(g.total)
			rates[key] = rate
			if rate < minRate {
				minRate = rate
			}
			if rate > maxRate {
				maxRate = rate
			}
		}
		if maxRate == 0 {
			continue
		}
		ratio := minRate / maxRate
		out[attr] = &ImpactStat{
			Ratio:      ratio,
			GroupRates: rates,
			Flagged:    ratio < disparateImpactThreshold,
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func synthesizeIssues(res *Result) []Issue {
	issues := []Issue{}

	cols := make([]string, 0, len(res.Columns))
	for c := range res.Columns {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	for _, col := range cols {
		cs := res.Columns[col]
		if cs.MissingRatio > missingRatioThreshold {
			issues = append(issues, Issue{
				Attribute:   col,
				Issue:       "high_missing_values",
				Severity:    "medium",
				Explanation: fmt.Sprintf("%.1f%% of values are missing", cs.MissingRatio*100),
			})
		}
		if cs.Numeric != nil && cs.Numeric.Mean != 0 &&
			math.Abs(cs.Numeric.StdDev/cs.Numeric.Mean) > skewThreshold {
			issues = append(issues, Issue{
				Attribute:   col,
				Issue:       "high_skew",
				Severity:    "medium",
				Explanation: fmt.Sprintf("standard deviation %.2f is more than twice the mean %.2f", cs.Numeric.StdDev, cs.Numeric.Mean),
			})
		}
	}

	attrs := make([]string, 0, len(res.DisparateImpact))
	for a := range res.DisparateImpact {
		attrs = append(attrs, a)
	}
	sort.Strings(attrs)
	for _, attr := range attrs {
		di := res.DisparateImpact[attr]
		if di.Flagged {
			issues = append(issues, Issue{
				Attribute:   attr,
				Issue:       "disparate_impact",
				Severity:    "high",
				Explanation: fmt.Sprintf("favorable-outcome ratio %.2f is below the four-fifths threshold", di.Ratio),
			})
		}
	}

	if res.OutcomeColumn != "" {
		if cs := res.Columns[res.OutcomeColumn]; cs != nil {
			if iss, ok := classImbalance(res.OutcomeColumn, cs); ok {
				issues = append(issues, iss)
			}
		}
	}
	return issues
}

func classImbalance(col string, cs *ColumnStats) (Issue, bool) {
	if len(cs.Distribution) < 2 || len(cs.Distribution) > imbalanceMaxClasses {
		return Issue{}, false
	}
	minCount, maxCount := math.MaxInt, 0
	for _, c := range cs.Distribution {
		if c < minCount {
			minCount = c
		}
		if c > maxCount {
			maxCount = c
		}
	}
	if minCount == 0 || float64(maxCount)/float64(minCount) <= imbalanceRatioThreshold {
		return Issue{}, false
	}
	return Issue{
		Attribute:   col,
		Issue:       "class_imbalance",
		Severity:    "high",
		Explanation: fmt.Sprintf("largest class is %dx the smallest", maxCount/minCount),
	}, true
}

func recommend(issues []Issue) []string {
	fired := map[string]bool{}
	for _, i := range issues {
		fired[i.Issue] = true
	}
	var recs []string
	if fired["high_missing_values"] {
		recs = append(recs, "Collect or impute missing values before training on this dataset.")
	}
	if fired["high_skew"] {
		recs = append(recs, "Apply a transform (log or winsorize) to heavily skewed numeric columns.")
	}
	if fired["disparate_impact"] {
		recs = append(recs, "Review the decision process for groups failing the four-fifths rule and re-check after mitigation.")
	}
	if fired["class_imbalance"] {
		recs = append(recs, "Rebalance outcome classes via sampling or class weighting.")
	}
	if len(recs) == 0 {
		recs = append(recs, "No significant bias indicators detected; keep monitoring as the data evolves.")
	}
	return recs
}

func isMissing(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func render(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return n, err == nil
	}
	return 0, false
}

func isFavorable(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x == 1
	case int:
		return x == 1
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "true", "yes", "y", "approved":
			return true
		}
	}
	return false
}
