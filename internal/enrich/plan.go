package enrich

import "strings"

// Urgency selects the notification path for an analysis.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyUrgent Urgency = "urgent"
)

// Channel names a notification transport.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSlack Channel = "slack"
)

// CompensationKind is the closed set of customer compensation outcomes.
type CompensationKind string

const (
	CompensationNone          CompensationKind = "none"
	CompensationFullRefund    CompensationKind = "full_refund"
	CompensationPartialRefund CompensationKind = "partial_refund"
	CompensationTimeCredit    CompensationKind = "time_credit"
)

// timeCreditMinutes is the fixed credit granted for severity-3 issues with a
// short estimated resolution.
const timeCreditMinutes = 30

// Compensation describes what the affected customer is owed.
type Compensation struct {
	Kind    CompensationKind `json:"kind"`
	Percent int              `json:"percent,omitempty"` // for partial_refund
	Minutes int              `json:"minutes,omitempty"` // for time_credit
}

// NotificationPlan is the derived dispatch decision for an analysis:
// which channels carry the notification and what compensation applies.
type NotificationPlan struct {
	Urgency      Urgency      `json:"urgency"`
	Channels     []Channel    `json:"channels"`
	Compensation Compensation `json:"compensation"`
}

// Plan derives the notification plan from an analysis. Severity below 3 gets
// a single low-urgency channel and no compensation; severity 3 and above
// fans out to every channel with compensation scaled by severity and the
// estimated resolution time.
func Plan(a StructuredAnalysis) NotificationPlan {
	if a.Severity < 3 {
		return NotificationPlan{
			Urgency:      UrgencyLow,
			Channels:     []Channel{ChannelEmail},
			Compensation: Compensation{Kind: CompensationNone},
		}
	}

	plan := NotificationPlan{
		Urgency:  UrgencyUrgent,
		Channels: []Channel{ChannelEmail, ChannelSlack},
	}
	switch {
	case a.Severity >= 4:
		plan.Compensation = Compensation{Kind: CompensationFullRefund}
	case hasHourUnit(a.EstimatedTime):
		plan.Compensation = Compensation{Kind: CompensationPartialRefund, Percent: 50}
	default:
		plan.Compensation = Compensation{Kind: CompensationTimeCredit, Minutes: timeCreditMinutes}
	}
	return plan
}

// hasHourUnit reports whether an estimated time is expressed in hours
// ("2 hours", "1 hr"). Minute-scale estimates get a time credit instead of a
// refund.
func hasHourUnit(estimate string) bool {
	s := strings.ToLower(estimate)
	return strings.Contains(s, "hour") || strings.Contains(s, "hr")
}
