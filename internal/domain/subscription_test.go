package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNextRenewalDate_PerCycle(t *testing.T) {
	start := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		cycle BillingCycle
		want  time.Time
	}{
		{CycleMonthly, time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC)},
		{CycleQuarterly, time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC)},
		{CycleSemiAnnual, time.Date(2024, time.July, 15, 0, 0, 0, 0, time.UTC)},
		{CycleAnnual, time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)},
		{BillingCycle("fortnightly"), time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(string(tc.cycle), func(t *testing.T) {
			got := NextRenewalDate(start, tc.cycle)
			if !got.Equal(tc.want) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestSubscriptionInput_WithRenewalNetflix(t *testing.T) {
	in := SubscriptionInput{
		Name:         "Netflix",
		Amount:       15.99,
		Category:     "Streaming",
		BillingCycle: CycleMonthly,
		StartDate:    NewDate(2024, time.January, 1),
	}
	if err := in.Validate(); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
	payload := in.WithRenewal()
	want := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	if !payload.NextRenewalDate.Equal(want) {
		t.Fatalf("expected renewal %s, got %s", want, payload.NextRenewalDate.Time)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["nextRenewalDate"] != "2024-02-01T00:00:00" {
		t.Fatalf("expected wire renewal date, got %v", decoded["nextRenewalDate"])
	}
	if decoded["name"] != "Netflix" {
		t.Fatalf("expected embedded form fields to be flattened, got %v", decoded["name"])
	}
}

func TestSubscriptionInput_ValidateReportsEachField(t *testing.T) {
	err := SubscriptionInput{}.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	for _, field := range []string{"name", "amount", "category", "billingCycle", "startDate"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("expected a message for %q, got %v", field, verr.Fields)
		}
	}
	if verr.Fields["amount"] != "Amount is required" {
		t.Fatalf("unexpected amount message %q", verr.Fields["amount"])
	}
}

func TestSubscriptionInput_ValidateRules(t *testing.T) {
	base := SubscriptionInput{
		Name:         "Spotify",
		Amount:       9.99,
		Category:     "Music",
		BillingCycle: CycleMonthly,
		StartDate:    NewDate(2024, time.March, 1),
	}
	cases := []struct {
		name   string
		mutate func(*SubscriptionInput)
		field  string
		msg    string
	}{
		{"amount below minimum", func(in *SubscriptionInput) { in.Amount = 0.001 }, "amount", "Amount must be at least 0.01"},
		{"unknown cycle", func(in *SubscriptionInput) { in.BillingCycle = "weekly" }, "billingCycle", "Billing cycle must be one of: monthly quarterly semi-annual annual"},
		{"bad portal link", func(in *SubscriptionInput) { in.PortalLink = "not a url" }, "portalLink", "Portal link must be a valid URL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			var verr *ValidationError
			if !errors.As(in.Validate(), &verr) {
				t.Fatal("expected a validation error")
			}
			if verr.Fields[tc.field] != tc.msg {
				t.Fatalf("expected %q for %s, got %q", tc.msg, tc.field, verr.Fields[tc.field])
			}
			if len(verr.Fields) != 1 {
				t.Fatalf("expected only %s to fail, got %v", tc.field, verr.Fields)
			}
		})
	}
}

func TestSubscriptionInput_NormalizeDefaultsCycle(t *testing.T) {
	in := SubscriptionInput{Name: "  Gym  ", Category: " Gym/Fitness "}.Normalize()
	if in.Name != "Gym" || in.Category != "Gym/Fitness" {
		t.Fatalf("expected trimmed fields, got %q %q", in.Name, in.Category)
	}
	if in.BillingCycle != CycleMonthly {
		t.Fatalf("expected monthly default, got %q", in.BillingCycle)
	}
}
