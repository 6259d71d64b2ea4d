package api

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// maxHourlyRate is the top of the published pricing range. Requests quoting
// more get blocked and referred to management.
const maxHourlyRate = 35

// Verdict is the outcome of checking a request against the boundary rules.
type Verdict struct {
	Blocked        bool   `json:"blocked"`
	Reason         string `json:"reason,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
}

// BoundaryRule checks one class of request against facility policy.
type BoundaryRule interface {
	Check(text string) Verdict
}

// Frontier runs every boundary rule in order; the first block wins.
type Frontier struct {
	rules []BoundaryRule
}

// NewFrontier builds the standard rule set: pricing limits and content
// restrictions.
func NewFrontier() *Frontier {
	return &Frontier{rules: []BoundaryRule{pricingRule{}, contentRule{}}}
}

// Check evaluates text against every rule.
func (f *Frontier) Check(text string) Verdict {
	for _, rule := range f.rules {
		if v := rule.Check(text); v.Blocked {
			return v
		}
	}
	return Verdict{}
}

var dollarAmount = regexp.MustCompile(`\$(\d+)`)

// pricingRule blocks pricing requests above the published hourly rate.
type pricingRule struct{}

func (pricingRule) Check(text string) Verdict {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "price") && !strings.Contains(lower, "cost") {
		return Verdict{}
	}
	for _, m := range dollarAmount.FindAllStringSubmatch(lower, -1) {
		amount, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if amount > maxHourlyRate {
			return Verdict{
				Blocked:        true,
				Reason:         fmt.Sprintf("Pricing request $%d exceeds maximum allowed $%d", amount, maxHourlyRate),
				Recommendation: fmt.Sprintf("Contact management for pricing above $%d/hour", maxHourlyRate),
			}
		}
	}
	return Verdict{}
}

// contentRule blocks requests touching off-brand content.
type contentRule struct{}

var prohibitedContent = []string{"off-white", "corporate tone", "dynamic pricing"}

func (contentRule) Check(text string) Verdict {
	lower := strings.ToLower(text)
	for _, item := range prohibitedContent {
		if strings.Contains(lower, item) {
			return Verdict{
				Blocked:        true,
				Reason:         fmt.Sprintf("Request contains prohibited element: %s", item),
				Recommendation: "Refer to brand guidelines for approved alternatives",
			}
		}
	}
	return Verdict{}
}
