// Package recurring implements the Recurring-Rule Engine: matching
// incoming invoices against user-defined recurring patterns, and
// detecting new candidate patterns from invoice history.
package recurring

import (
	"math"
	"sort"
	"strconv"
	"time"

	"reconcore/internal/domain"
)

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// frequencyBand maps a RecurringFrequency to its expected
// inter-arrival day range, used both to validate an existing rule's
// cadence and to classify a detected mean interval.
var frequencyBand = map[domain.RecurringFrequency][2]float64{
	domain.FrequencyWeekly:    {5, 9},
	domain.FrequencyBiweekly:  {10, 18},
	domain.FrequencyMonthly:   {25, 35},
	domain.FrequencyQuarterly: {80, 100},
	domain.FrequencyAnnual:    {350, 380},
}

// Process implements spec.md §4.J `process(invoice)`: find the first
// enabled rule matching the invoice's vendor, evaluate amount variance,
// and return the resulting action plus the rule's updated rolling stats.
// Returns nil when no rule matches.
func Process(rules []domain.RecurringRule, vendor string, amount float64, invoiceDate time.Time) (*domain.RecurringInvoiceResult, *domain.RecurringRule) {
	for i := range rules {
		r := rules[i]
		if !r.Enabled || !r.MatchesVendor(vendor) {
			continue
		}

		expected := parseFloat(r.ExpectedAmount)
		variancePct := 0.0
		if expected > 0 {
			variancePct = math.Abs(amount-expected) / expected * 100
		}

		daysFromExpected := 0
		if r.NextExpectedDate != nil {
			daysFromExpected = int(invoiceDate.Sub(*r.NextExpectedDate).Hours() / 24)
		}

		result := &domain.RecurringInvoiceResult{
			MatchedRuleID:     r.ID,
			AmountVariancePct: variancePct,
			DaysFromExpected:  daysFromExpected,
		}

		if r.RequireAmountMatch && variancePct > r.AmountTolerance {
			result.Action = domain.ActionFlagForReview
			result.FlaggedReason = "amount variance exceeds tolerance for recurring rule"
		} else {
			result.Action = r.Action
			result.AutoApproved = r.Action == domain.ActionAutoApprove
		}

		updated := r
		updated.LastInvoiceDate = timePtr(invoiceDate)
		updated.TotalInvoices++
		totalAmount := parseFloat(updated.TotalAmount) + amount
		updated.TotalAmount = formatFloat(totalAmount)
		updated.NextExpectedDate = timePtr(nextExpected(invoiceDate, r.ExpectedFrequency))

		return result, &updated
	}
	return nil, nil
}

func nextExpected(from time.Time, freq domain.RecurringFrequency) time.Time {
	switch freq {
	case domain.FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case domain.FrequencyBiweekly:
		return from.AddDate(0, 0, 14)
	case domain.FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	case domain.FrequencyQuarterly:
		return from.AddDate(0, 3, 0)
	case domain.FrequencyAnnual:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

// Proposal is a new recurring-rule candidate detected from invoice
// history.
type Proposal struct {
	Vendor     string
	Frequency  domain.RecurringFrequency
	Confidence float64
	SampleSize int
}

// DetectNewPattern implements spec.md §4.J's new-pattern detection: given
// a vendor's invoice dates and amounts (sorted or not — DetectNewPattern
// sorts internally), propose a rule if the mean inter-arrival interval
// falls in a known frequency band and amount variance across samples is
// within 20%.
func DetectNewPattern(vendor string, dates []time.Time, amounts []float64) *Proposal {
	if len(dates) < 2 || len(dates) != len(amounts) {
		return nil
	}

	sorted := append([]time.Time{}, dates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var intervals []float64
	for i := 1; i < len(sorted); i++ {
		intervals = append(intervals, sorted[i].Sub(sorted[i-1]).Hours()/24)
	}
	meanInterval := mean(intervals)

	freq, ok := classifyFrequency(meanInterval)
	if !ok {
		return nil
	}

	if amountVariancePct(amounts) > 20 {
		return nil
	}

	confidence := math.Min(0.9, float64(len(dates))*0.15)
	return &Proposal{Vendor: vendor, Frequency: freq, Confidence: confidence, SampleSize: len(dates)}
}

func classifyFrequency(meanInterval float64) (domain.RecurringFrequency, bool) {
	for _, freq := range []domain.RecurringFrequency{
		domain.FrequencyWeekly, domain.FrequencyBiweekly, domain.FrequencyMonthly,
		domain.FrequencyQuarterly, domain.FrequencyAnnual,
	} {
		band := frequencyBand[freq]
		if meanInterval >= band[0] && meanInterval <= band[1] {
			return freq, true
		}
	}
	return "", false
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func amountVariancePct(amounts []float64) float64 {
	if len(amounts) == 0 {
		return 0
	}
	avg := mean(amounts)
	if avg == 0 {
		return 0
	}
	maxDiff := 0.0
	for _, a := range amounts {
		diff := math.Abs(a-avg) / avg * 100
		if diff > maxDiff {
			maxDiff = diff
		}
	}
	return maxDiff
}

func timePtr(t time.Time) *time.Time { return &t }
