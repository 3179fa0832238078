package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeEmptyInput(t *testing.T) {
	_, err := Analyze(nil, "")
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = Analyze([]map[string]any{}, "")
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestAnalyzeDisparateImpact(t *testing.T) {
	// 90 male applicants with a 94% approval rate, 10 female with 40%.
	var records []map[string]any
	for i := 0; i < 90; i++ {
		records = append(records, map[string]any{
			"gender":   "male",
			"approved": i < 85,
		})
	}
	for i := 0; i < 10; i++ {
		records = append(records, map[string]any{
			"gender":   "female",
			"approved": i < 4,
		})
	}

	res, err := Analyze(records, "")
	require.NoError(t, err)

	assert.Equal(t, 100, res.TotalRecords)
	assert.Equal(t, []string{"gender"}, res.SensitiveAttributes)
	assert.Equal(t, "approved", res.OutcomeColumn)

	require.Contains(t, res.DisparateImpact, "gender")
	di := res.DisparateImpact["gender"]
	assert.True(t, di.Flagged)
	assert.InDelta(t, 0.4235, di.Ratio, 0.001)
	assert.InDelta(t, 85.0/90.0, di.GroupRates["male"], 1e-9)
	assert.InDelta(t, 0.4, di.GroupRates["female"], 1e-9)

	var found bool
	for _, iss := range res.Issues {
		if iss.Issue == "disparate_impact" {
			found = true
			assert.Equal(t, "gender", iss.Attribute)
			assert.Equal(t, "high", iss.Severity)
		}
	}
	assert.True(t, found, "expected a disparate_impact issue")
	assert.NotEmpty(t, res.Recommendations)
}

func TestAnalyzeBalancedOutcomeNotFlagged(t *testing.T) {
	var records []map[string]any
	for i := 0; i < 50; i++ {
		records = append(records, map[string]any{"gender": "male", "approved": i%2 == 0})
		records = append(records, map[string]any{"gender": "female", "approved": i%2 == 0})
	}

	res, err := Analyze(records, "approved")
	require.NoError(t, err)

	require.Contains(t, res.DisparateImpact, "gender")
	assert.False(t, res.DisparateImpact["gender"].Flagged)
	assert.InDelta(t, 1.0, res.DisparateImpact["gender"].Ratio, 1e-9)
}

func TestAnalyzeNoSensitiveColumns(t *testing.T) {
	records := []map[string]any{
		{"score": 10.0, "amount": 1.0},
		{"score": 20.0, "amount": 2.0},
	}

	res, err := Analyze(records, "")
	require.NoError(t, err)

	assert.Empty(t, res.SensitiveAttributes)
	assert.Empty(t, res.OutcomeColumn)
	assert.Nil(t, res.DisparateImpact)
	assert.Empty(t, res.Issues)
	require.Len(t, res.Recommendations, 1)
	assert.Contains(t, res.Recommendations[0], "No significant bias indicators")
}

func TestNumericColumnStats(t *testing.T) {
	records := []map[string]any{
		{"amount": 1.0},
		{"amount": 2.0},
		{"amount": 3.0},
		{"amount": 4.0},
		{"amount": 5.0},
		{"amount": 100.0},
	}

	res, err := Analyze(records, "")
	require.NoError(t, err)

	cs := res.Columns["amount"]
	require.NotNil(t, cs)
	require.NotNil(t, cs.Numeric)

	ns := cs.Numeric
	assert.Equal(t, 1.0, ns.Min)
	assert.Equal(t, 100.0, ns.Max)
	assert.InDelta(t, 115.0/6.0, ns.Mean, 1e-9)
	assert.Equal(t, 3.5, ns.Median)
	assert.Equal(t, 2.0, ns.Q1)
	assert.Equal(t, 5.0, ns.Q3)
	assert.Equal(t, []float64{100}, ns.Outliers)
}

func TestMixedColumnHasNoNumericStats(t *testing.T) {
	records := []map[string]any{
		{"value": "12"},
		{"value": "n/a"},
	}

	res, err := Analyze(records, "")
	require.NoError(t, err)
	assert.Nil(t, res.Columns["value"].Numeric)
}

func TestMissingValuesIssue(t *testing.T) {
	var records []map[string]any
	for i := 0; i < 20; i++ {
		r := map[string]any{"notes": "present"}
		if i < 5 {
			r["notes"] = ""
		}
		records = append(records, r)
	}

	res, err := Analyze(records, "")
	require.NoError(t, err)

	cs := res.Columns["notes"]
	assert.Equal(t, 5, cs.Missing)
	assert.InDelta(t, 0.25, cs.MissingRatio, 1e-9)

	require.Len(t, res.Issues, 1)
	assert.Equal(t, "high_missing_values", res.Issues[0].Issue)
	assert.Equal(t, "medium", res.Issues[0].Severity)
}

func TestClassImbalanceIssue(t *testing.T) {
	var records []map[string]any
	for i := 0; i < 100; i++ {
		label := "no"
		if i < 5 {
			label = "yes"
		}
		records = append(records, map[string]any{"label": label})
	}

	res, err := Analyze(records, "label")
	require.NoError(t, err)

	var found bool
	for _, iss := range res.Issues {
		if iss.Issue == "class_imbalance" {
			found = true
			assert.Equal(t, "label", iss.Attribute)
			assert.Equal(t, "high", iss.Severity)
		}
	}
	assert.True(t, found, "expected a class_imbalance issue")
}

func TestResolveOutcomeDesignatedCaseInsensitive(t *testing.T) {
	records := []map[string]any{
		{"Decision": "yes", "score": 1.0},
	}

	res, err := Analyze(records, "decision")
	require.NoError(t, err)
	assert.Equal(t, "Decision", res.OutcomeColumn)
}

func TestResolveOutcomeMissingDesignated(t *testing.T) {
	records := []map[string]any{
		{"score": 1.0},
	}

	res, err := Analyze(records, "verdict")
	require.NoError(t, err)
	assert.Empty(t, res.OutcomeColumn)
}
