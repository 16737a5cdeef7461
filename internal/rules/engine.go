package rules

import (
	"math"
	"time"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/model"
)

// ValidTime checks [start, end) against the rule set of a machine type.
// It returns nil when the interval is admissible, otherwise an AppError naming the failed step.
func ValidTime(start, end time.Time, ruleSet []model.ReservationRule) error {
	duration := end.Sub(start)
	if duration > model.MaxReservationLength {
		return apperr.New(apperr.KindExceedsRuleMaxSingle, "Reservations cannot be longer than one week.")
	}

	covering := CoveringRules(start, end, ruleSet)
	if len(covering) == 0 {
		return apperr.New(apperr.KindNotCoveredByAnyRule, "")
	}

	hours := duration.Hours()
	maxHours, minHours := math.Inf(-1), math.Inf(1)
	for _, r := range covering {
		maxHours = math.Max(maxHours, r.MaxHours)
		minHours = math.Min(minHours, r.MaxHours)
	}
	if hours > maxHours {
		return apperr.New(apperr.KindExceedsRuleMaxSingle, "")
	}
	if hours <= minHours {
		return nil
	}

	crossed := len(covering) > 1
	for _, r := range covering {
		if crossed {
			if HoursInside(r, start, end) > r.MaxInsideBorderCrossed {
				return apperr.New(apperr.KindExceedsRuleMaxCrossed, "")
			}
		} else if hours > r.MaxHours {
			return apperr.New(apperr.KindExceedsRuleMaxSingle, "")
		}
	}
	return nil
}

// CoveringRules returns the rules that share at least some time with [start, end).
func CoveringRules(start, end time.Time, ruleSet []model.ReservationRule) []*model.ReservationRule {
	var covering []*model.ReservationRule
	for i := range ruleSet {
		if HoursInside(&ruleSet[i], start, end) > 0 {
			covering = append(covering, &ruleSet[i])
		}
	}
	return covering
}

// ValidateRule checks a rule before it is saved. others holds the remaining rules of the
// same machine type; a rule with the same ID as the candidate is skipped.
func ValidateRule(rule *model.ReservationRule, others []model.ReservationRule) error {
	if rule.StartDays.Empty() {
		return apperr.New(apperr.KindValidation, "At least one start day is required.").OnField("start_days")
	}
	if rule.MaxHours <= 0 {
		return apperr.New(apperr.KindValidation, "Max hours must be positive.").OnField("max_hours")
	}
	if rule.MaxInsideBorderCrossed < 0 {
		return apperr.New(apperr.KindValidation, "Max hours when crossing borders cannot be negative.").OnField("max_inside_border_crossed")
	}

	if (rule.StartTime > rule.EndTime && rule.DaysChanged == 0) ||
		rule.DaysChanged < 0 ||
		rule.DaysChanged > 7 ||
		(rule.DaysChanged == 7 && rule.StartTime < rule.EndTime) {
		return apperr.New(apperr.KindValidation, "Period is either too long (7+ days) or start time is earlier than end time.")
	}
	if rule.DaysChanged == 0 && rule.StartTime == rule.EndTime {
		return apperr.New(apperr.KindValidation, "Period cannot start and end at the same time.")
	}

	periods := Periods(rule)
	for _, p1 := range periods {
		for _, p2 := range periods {
			if p1.End == p2.End || p1.Start == p2.End {
				continue
			}
			if p1.Overlaps(p2) {
				return apperr.New(apperr.KindValidation, "Rule has internal overlap of time periods.")
			}
		}
	}

	for i := range others {
		if rule.ID != 0 && others[i].ID == rule.ID {
			continue
		}
		for _, p1 := range periods {
			for _, p2 := range Periods(&others[i]) {
				if p1.Overlaps(p2) {
					return apperr.New(apperr.KindValidation, "Rule time periods overlap with time periods of other rules.")
				}
			}
		}
	}
	return nil
}
