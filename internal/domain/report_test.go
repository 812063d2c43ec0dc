package domain

import (
	"errors"
	"testing"
	"time"
)

var wizardNow = time.Date(2024, time.May, 20, 12, 0, 0, 0, time.UTC)

func TestReportWizard_RefusesSubmitBeforeFinalStep(t *testing.T) {
	w := NewReportWizard(wizardNow, &ReportTemplate{Title: "Monthly Summary", Type: ReportSummary})

	if err := w.ReadyToSubmit(); !errors.Is(err, ErrWizardNotFinal) {
		t.Fatalf("expected ErrWizardNotFinal on step 1, got %v", err)
	}
	if err := w.Next(); err != nil {
		t.Fatalf("unexpected error advancing from step 1: %v", err)
	}
	if err := w.ReadyToSubmit(); !errors.Is(err, ErrWizardNotFinal) {
		t.Fatalf("expected ErrWizardNotFinal on step 2, got %v", err)
	}
	if err := w.Next(); err != nil {
		t.Fatalf("unexpected error advancing from step 2: %v", err)
	}
	if err := w.ReadyToSubmit(); err != nil {
		t.Fatalf("expected submission to be allowed on the final step, got %v", err)
	}
	if err := w.Next(); !errors.Is(err, ErrWizardBounds) {
		t.Fatalf("expected bounds error past the last step, got %v", err)
	}
}

func TestReportWizard_StepValidationIsScoped(t *testing.T) {
	w := NewReportWizard(wizardNow, nil)

	err := w.Next()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for missing name, got %v", err)
	}
	if verr.Fields["name"] != "Report name is required" {
		t.Fatalf("unexpected name message %q", verr.Fields["name"])
	}
	if w.Step != 1 {
		t.Fatalf("expected to stay on step 1, got %d", w.Step)
	}

	w.Form.Name = "Q2"
	w.Form.EndDate = Date{Time: wizardNow.AddDate(0, -2, 0)}
	if err := w.ValidateStep(1); err != nil {
		t.Fatalf("step 1 should not report step 2 fields, got %v", err)
	}
	if err := w.Next(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.As(w.Next(), &verr) || verr.Fields["endDate"] == "" {
		t.Fatalf("expected end date error on step 2, got %v", verr)
	}

	w.Form.DateRange = RangeLast3Months
	if err := w.Next(); err != nil {
		t.Fatalf("preset range should skip custom date checks, got %v", err)
	}

	w.Form.ScheduleFrequency = ScheduleMonthly
	w.Form.ScheduleDay = 31
	if !errors.As(w.ReadyToSubmit(), &verr) || verr.Fields["scheduleDay"] == "" {
		t.Fatalf("expected schedule day error, got %v", verr)
	}
}

func TestReportForm_ScheduleOnlyWhenFrequencySet(t *testing.T) {
	form := DefaultReportForm(wizardNow, nil)
	form.Name = "Spend"
	if form.Schedule("r1", wizardNow) != nil {
		t.Fatal("expected no schedule for frequency none")
	}

	form.ScheduleFrequency = ScheduleWeekly
	form.ScheduleDay = 3
	form.EmailDelivery = true
	form.Categories = []string{"Music"}
	sched := form.Schedule("r1", wizardNow)
	if sched == nil {
		t.Fatal("expected a schedule")
	}
	if sched.ReportID != "r1" || sched.Frequency != ScheduleWeekly || sched.DayOfPeriod != 3 || !sched.EmailDelivery {
		t.Fatalf("unexpected schedule %+v", sched)
	}
	if len(sched.Filters.Categories) != 1 || !sched.Filters.EndDate.Equal(wizardNow) {
		t.Fatalf("unexpected schedule filters %+v", sched.Filters)
	}
}

func TestReportForm_WindowPresets(t *testing.T) {
	form := DefaultReportForm(wizardNow, nil)
	form.DateRange = RangeLastYear
	start, end := form.Window(wizardNow)
	if !start.Equal(wizardNow.AddDate(-1, 0, 0)) || !end.Equal(wizardNow) {
		t.Fatalf("unexpected last-year window %s..%s", start.Time, end.Time)
	}
	form.DateRange = RangeAllTime
	start, _ = form.Window(wizardNow)
	if !start.IsZero() {
		t.Fatalf("expected open start for all time, got %s", start.Time)
	}
}
