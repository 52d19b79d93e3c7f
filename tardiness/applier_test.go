package tardiness_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlashr/discipline-engine/tardiness"
)

func normalRule(accumulationCount, equivalent int) tardiness.Rule {
	return tardiness.Rule{
		ID:                      "rule-normal",
		Role:                    tardiness.RoleNormalLateArrival,
		Name:                    "Minor late arrival",
		Type:                    tardiness.RuleTypeLateArrival,
		AccumulationCount:       accumulationCount,
		EquivalentFormalTardies: equivalent,
	}
}

func TestApplyRule_NormalLateArrival_Accumulates(t *testing.T) {
	// GIVEN: two prior late arrivals, threshold of four
	// WHEN: a third minor lateness is applied
	// THEN: the counter increments, no formal tardy yet

	app, err := tardiness.ApplyRule(normalRule(4, 1), tardiness.Accumulation{LateArrivals: 2})
	require.NoError(t, err)

	assert.Equal(t, tardiness.Delta{LateArrivals: 1}, app.Delta)
	assert.Equal(t, tardiness.ClassLateArrival, app.Classification)
	assert.Zero(t, app.FormalTardiesAdded)
}

func TestApplyRule_NormalLateArrival_ThresholdConverts(t *testing.T) {
	// GIVEN: three prior late arrivals, threshold of four
	// WHEN: the fourth minor lateness is applied
	// THEN: one delta resets the late arrivals and adds the formal tardy

	app, err := tardiness.ApplyRule(normalRule(4, 1), tardiness.Accumulation{LateArrivals: 3})
	require.NoError(t, err)

	assert.Equal(t, tardiness.Delta{LateArrivals: -3, FormalTardies: 1}, app.Delta)
	assert.Equal(t, tardiness.ClassFormalTardy, app.Classification)
	assert.Equal(t, 1, app.FormalTardiesAdded)
}

func TestApplyRule_PostFirstTardiness_DirectConversion(t *testing.T) {
	rule := tardiness.Rule{
		ID:   "rule-post-first",
		Role: tardiness.RolePostFirstTardiness,
		Type: tardiness.RuleTypeLateArrival,
	}

	app, err := tardiness.ApplyRule(rule, tardiness.Accumulation{LateArrivals: 2, FormalTardies: 1})
	require.NoError(t, err)

	// Zero tolerance: the formal tardy lands without touching the
	// accumulated late arrivals.
	assert.Equal(t, tardiness.Delta{FormalTardies: 1}, app.Delta)
	assert.Equal(t, tardiness.ClassFormalTardy, app.Classification)
	assert.Equal(t, 1, app.FormalTardiesAdded)
}

func TestApplyRule_DirectTardiness(t *testing.T) {
	rule := tardiness.Rule{
		ID:                      "rule-direct",
		Role:                    tardiness.RoleDirectTardiness,
		Type:                    tardiness.RuleTypeDirectTardiness,
		EquivalentFormalTardies: 1,
	}

	app, err := tardiness.ApplyRule(rule, tardiness.Accumulation{})
	require.NoError(t, err)

	assert.Equal(t, tardiness.Delta{DirectTardiness: 1, FormalTardies: 1}, app.Delta)
	assert.Equal(t, tardiness.ClassDirectTardiness, app.Classification)
	assert.Equal(t, 1, app.FormalTardiesAdded)
}

func TestApplyRule_UnknownRole(t *testing.T) {
	_, err := tardiness.ApplyRule(tardiness.Rule{Role: "unheard_of"}, tardiness.Accumulation{})
	assert.Error(t, err)
}
