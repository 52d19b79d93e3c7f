/*
selector.go - Rule selection for one lateness event

PURPOSE:
  Picks the single applicable tardiness rule for a check-in, given how
  late it was and how many formal tardies the employee already has this
  month.

DECISION TABLE:
  minutesLate | formalTardies | role
  ------------+---------------+------------------------------
  0           | any           | none (on time)
  1-15        | 0             | normal_late_arrival
  1-15        | >= 1          | post_first_tardiness
  >= 16       | any           | direct_tardiness

  Once an employee has incurred one formal tardy in the month, policy is
  zero-tolerance: every subsequent minor lateness becomes an immediate
  formal tardy instead of accumulating.

SEE ALSO:
  - applier.go: turns the selected rule into counter deltas
*/
package tardiness

import "context"

// SelectRole returns the rule role for a lateness band. ok is false when
// the check-in is on time and no rule applies.
func SelectRole(minutesLate, formalTardies int) (role RuleRole, ok bool) {
	switch {
	case minutesLate <= 0:
		return "", false
	case minutesLate > MinorLatenessMax:
		return RoleDirectTardiness, true
	case formalTardies >= 1:
		return RolePostFirstTardiness, true
	default:
		return RoleNormalLateArrival, true
	}
}

// Selector resolves lateness bands to configured rules.
type Selector struct {
	Rules RuleRepository
}

// Select returns the applicable rule, or (nil, nil) for an on-time
// check-in. A role with no configured rule is a configuration error:
// the returned error wraps ErrRuleNotFound and nothing is persisted.
func (s *Selector) Select(ctx context.Context, minutesLate, formalTardies int) (*Rule, error) {
	role, ok := SelectRole(minutesLate, formalTardies)
	if !ok {
		return nil, nil
	}

	rule, err := s.Rules.RuleForRole(ctx, role)
	if err != nil {
		if IsConfigError(err) {
			return nil, &RuleLookupError{
				Role:          role,
				MinutesLate:   minutesLate,
				FormalTardies: formalTardies,
			}
		}
		return nil, err
	}
	return &rule, nil
}
