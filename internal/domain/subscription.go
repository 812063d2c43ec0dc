/**
 * @description
 * This file defines the core subscription model for the dashboard service.
 * It includes the Subscription struct mirrored from the backend, the form input
 * used for create/update, and the billing-cycle cadence that drives renewal dates.
 */
package domain

import (
	"strings"
	"time"
)

// BillingCycle is the recurrence cadence of a subscription charge.
type BillingCycle string

const (
	CycleMonthly    BillingCycle = "monthly"
	CycleQuarterly  BillingCycle = "quarterly"
	CycleSemiAnnual BillingCycle = "semi-annual"
	CycleAnnual     BillingCycle = "annual"
)

// BillingCycles lists the supported cadences in display order.
var BillingCycles = []BillingCycle{CycleMonthly, CycleQuarterly, CycleSemiAnnual, CycleAnnual}

// Valid reports whether c is one of the supported cadences.
func (c BillingCycle) Valid() bool {
	for _, known := range BillingCycles {
		if c == known {
			return true
		}
	}
	return false
}

// Months returns the cadence length in months. Unknown cycles are treated as monthly.
func (c BillingCycle) Months() int {
	switch c {
	case CycleQuarterly:
		return 3
	case CycleSemiAnnual:
		return 6
	case CycleAnnual:
		return 12
	default:
		return 1
	}
}

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusPaused    SubscriptionStatus = "paused"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription represents a recurring charge as returned by the backend.
type Subscription struct {
	ID              string             `json:"id"`
	UserID          string             `json:"userId,omitempty"`
	Name            string             `json:"name"`
	Amount          float64            `json:"amount"`
	Currency        string             `json:"currency,omitempty"`
	Category        string             `json:"category"`
	BillingCycle    BillingCycle       `json:"billingCycle"`
	StartDate       Date               `json:"startDate"`
	NextRenewalDate Date               `json:"nextRenewalDate"`
	AutoRenewal     bool               `json:"autoRenewal"`
	Notes           string             `json:"notes,omitempty"`
	PaymentMethod   string             `json:"paymentMethod,omitempty"`
	PortalLink      string             `json:"portalLink,omitempty"`
	Status          SubscriptionStatus `json:"status"`
	CreatedAt       Date               `json:"createdAt,omitempty"`
	UpdatedAt       Date               `json:"updatedAt,omitempty"`
}

// IsCancelled reports whether the subscription no longer renews.
func (s Subscription) IsCancelled() bool {
	return strings.EqualFold(string(s.Status), string(StatusCancelled))
}

// NextRenewalDate advances start by one billing cycle.
func NextRenewalDate(start time.Time, cycle BillingCycle) time.Time {
	if cycle == CycleAnnual {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, cycle.Months(), 0)
}

// SubscriptionInput is the create/update form payload.
type SubscriptionInput struct {
	Name          string             `json:"name" validate:"required"`
	Amount        float64            `json:"amount" validate:"required,gte=0.01"`
	Category      string             `json:"category" validate:"required"`
	BillingCycle  BillingCycle       `json:"billingCycle" validate:"required,oneof=monthly quarterly semi-annual annual"`
	StartDate     Date               `json:"startDate"`
	AutoRenewal   bool               `json:"autoRenewal"`
	Notes         string             `json:"notes,omitempty" validate:"max=1000"`
	PaymentMethod string             `json:"paymentMethod,omitempty"`
	PortalLink    string             `json:"portalLink,omitempty" validate:"omitempty,url"`
	Status        SubscriptionStatus `json:"status,omitempty" validate:"omitempty,oneof=active paused cancelled"`
}

// Validate checks the form the same way the dashboard form did, field by field.
func (in SubscriptionInput) Validate() error {
	verr := validateStruct(in)
	if in.StartDate.IsZero() {
		verr.Add("startDate", "Start date is required")
	}
	return verr.OrNil()
}

// Normalize trims free-text fields and applies the form defaults.
func (in SubscriptionInput) Normalize() SubscriptionInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Notes = strings.TrimSpace(in.Notes)
	if in.BillingCycle == "" {
		in.BillingCycle = CycleMonthly
	}
	return in
}

// RenewalPayload is what gets persisted: the form plus the locally computed renewal date.
type RenewalPayload struct {
	SubscriptionInput
	NextRenewalDate Date `json:"nextRenewalDate"`
}

// WithRenewal recomputes the next renewal date from the start date and cycle.
func (in SubscriptionInput) WithRenewal() RenewalPayload {
	return RenewalPayload{
		SubscriptionInput: in,
		NextRenewalDate:   Date{Time: NextRenewalDate(in.StartDate.Time, in.BillingCycle)},
	}
}

// BulkUpdate is one entry of a bulk update request.
type BulkUpdate struct {
	ID      string                 `json:"id"`
	Changes map[string]interface{} `json:"changes"`
}
