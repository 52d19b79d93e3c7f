/*
applier.go - Converts a selected rule into counter deltas

PURPOSE:
  Given the selected rule and the current accumulation snapshot, computes
  the counter deltas and the resulting classification. The threshold
  conversion (N late arrivals -> formal tardies) is expressed as a single
  delta that resets the late-arrival counter and adds the formal tardies
  in one write; no reader ever observes the incremented-but-unconverted
  intermediate state.

RULE SEMANTICS:
  post_first_tardiness: formalTardies += 1, late-arrival counter untouched
  normal_late_arrival:  lateArrivals += 1, unless this event completes the
                        threshold, in which case lateArrivals resets to 0
                        and formalTardies += equivalentFormalTardies
  direct_tardiness:     directTardiness += 1 and
                        formalTardies += equivalentFormalTardies

SEE ALSO:
  - store.go:   ApplyDelta persists the delta atomically
  - service.go: applies the delta and records the event
*/
package tardiness

import "fmt"

// Application is the computed effect of one rule on the current counters.
type Application struct {
	Delta              Delta
	Classification     Classification
	FormalTardiesAdded int
}

// ApplyRule computes the counter deltas for a rule against the current
// accumulation. Pure; the pipeline persists the delta.
func ApplyRule(rule Rule, current Accumulation) (Application, error) {
	switch rule.Role {
	case RolePostFirstTardiness:
		return Application{
			Delta:              Delta{FormalTardies: 1},
			Classification:     ClassFormalTardy,
			FormalTardiesAdded: 1,
		}, nil

	case RoleNormalLateArrival:
		if rule.AccumulationCount > 0 && current.LateArrivals+1 >= rule.AccumulationCount {
			// This event completes the threshold: reset and convert in
			// one atomic delta.
			return Application{
				Delta: Delta{
					LateArrivals:  -current.LateArrivals,
					FormalTardies: rule.EquivalentFormalTardies,
				},
				Classification:     ClassFormalTardy,
				FormalTardiesAdded: rule.EquivalentFormalTardies,
			}, nil
		}
		return Application{
			Delta:          Delta{LateArrivals: 1},
			Classification: ClassLateArrival,
		}, nil

	case RoleDirectTardiness:
		return Application{
			Delta: Delta{
				DirectTardiness: 1,
				FormalTardies:   rule.EquivalentFormalTardies,
			},
			Classification:     ClassDirectTardiness,
			FormalTardiesAdded: rule.EquivalentFormalTardies,
		}, nil

	default:
		return Application{}, fmt.Errorf("%w: unknown rule role %q", ErrRuleNotFound, rule.Role)
	}
}
