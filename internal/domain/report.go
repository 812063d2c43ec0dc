/**
 * @description
 * Report, template and schedule models plus the three-step generation wizard.
 * The wizard is validated locally, step by step, and refuses submission until
 * the final step is reached.
 */
package domain

import (
	"errors"
	"fmt"
	"time"
)

type ReportType string

const (
	ReportSummary  ReportType = "summary"
	ReportDetailed ReportType = "detailed"
	ReportCategory ReportType = "category"
	ReportTrend    ReportType = "trend"
	ReportTax      ReportType = "tax"
	ReportCustom   ReportType = "custom"
)

type ReportFormat string

const (
	FormatPDF   ReportFormat = "pdf"
	FormatExcel ReportFormat = "excel"
	FormatCSV   ReportFormat = "csv"
	FormatJSON  ReportFormat = "json"
)

type ScheduleFrequency string

const (
	ScheduleNone      ScheduleFrequency = "none"
	ScheduleWeekly    ScheduleFrequency = "weekly"
	ScheduleMonthly   ScheduleFrequency = "monthly"
	ScheduleQuarterly ScheduleFrequency = "quarterly"
)

// ReportDateRange is the preset window selected in the wizard's options step.
type ReportDateRange string

const (
	RangeCustom      ReportDateRange = "custom"
	RangeLastMonth   ReportDateRange = "lastMonth"
	RangeLast3Months ReportDateRange = "last3Months"
	RangeLast6Months ReportDateRange = "last6Months"
	RangeLastYear    ReportDateRange = "lastYear"
	RangeAllTime     ReportDateRange = "allTime"
)

// Report is a generated report as listed by the backend.
type Report struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        ReportType   `json:"type"`
	Format      ReportFormat `json:"format"`
	Status      string       `json:"status,omitempty"`
	GeneratedAt Date         `json:"generatedAt"`
	FileSize    int64        `json:"fileSize,omitempty"`
}

// ReportTemplate is a preset the wizard can be opened from.
type ReportTemplate struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        ReportType `json:"type"`
}

// ReportFilters narrows the data a report or schedule covers.
type ReportFilters struct {
	StartDate  Date     `json:"startDate"`
	EndDate    Date     `json:"endDate"`
	Categories []string `json:"categories"`
}

// ReportSchedule is a recurring report delivery.
type ReportSchedule struct {
	ID            string            `json:"id,omitempty"`
	Name          string            `json:"name"`
	Frequency     ScheduleFrequency `json:"frequency"`
	DayOfPeriod   int               `json:"dayOfPeriod"`
	EmailDelivery bool              `json:"emailDelivery"`
	ReportID      string            `json:"reportId"`
	Type          ReportType        `json:"type"`
	Filters       ReportFilters     `json:"filters"`
	NextRunAt     Date              `json:"nextRunAt,omitempty"`
}

// ReportForm holds every wizard field across all steps.
type ReportForm struct {
	Name              string            `json:"name" validate:"required"`
	Type              ReportType        `json:"type" validate:"required,oneof=summary detailed category trend tax custom"`
	DateRange         ReportDateRange   `json:"dateRange" validate:"required,oneof=custom lastMonth last3Months last6Months lastYear allTime"`
	StartDate         Date              `json:"startDate"`
	EndDate           Date              `json:"endDate"`
	Categories        []string          `json:"categories"`
	Format            ReportFormat      `json:"format" validate:"required,oneof=pdf excel csv json"`
	IncludeCharts     bool              `json:"includeCharts"`
	IncludeInsights   bool              `json:"includeInsights"`
	ScheduleFrequency ScheduleFrequency `json:"scheduleFrequency" validate:"required,oneof=none weekly monthly quarterly"`
	ScheduleDay       int               `json:"scheduleDay"`
	EmailDelivery     bool              `json:"emailDelivery"`
}

// DefaultReportForm returns the wizard's initial values; a template pre-fills name and type.
func DefaultReportForm(now time.Time, tmpl *ReportTemplate) ReportForm {
	form := ReportForm{
		Type:              ReportSummary,
		DateRange:         RangeCustom,
		StartDate:         Date{Time: now.AddDate(0, -1, 0)},
		EndDate:           Date{Time: now},
		Categories:        []string{},
		Format:            FormatPDF,
		IncludeCharts:     true,
		IncludeInsights:   true,
		ScheduleFrequency: ScheduleNone,
		ScheduleDay:       1,
	}
	if tmpl != nil {
		form.Name = tmpl.Title
		if tmpl.Type != "" {
			form.Type = tmpl.Type
		}
	}
	return form
}

// Window resolves the date range preset into concrete bounds relative to now.
func (f ReportForm) Window(now time.Time) (Date, Date) {
	end := Date{Time: now}
	switch f.DateRange {
	case RangeLastMonth:
		return Date{Time: now.AddDate(0, -1, 0)}, end
	case RangeLast3Months:
		return Date{Time: now.AddDate(0, -3, 0)}, end
	case RangeLast6Months:
		return Date{Time: now.AddDate(0, -6, 0)}, end
	case RangeLastYear:
		return Date{Time: now.AddDate(-1, 0, 0)}, end
	case RangeAllTime:
		return Date{}, end
	default:
		return f.StartDate, f.EndDate
	}
}

// GenerateRequest is the payload sent to the generate endpoint.
type GenerateRequest struct {
	Name            string          `json:"name"`
	Type            ReportType      `json:"type"`
	Format          ReportFormat    `json:"format"`
	DateRange       ReportDateRange `json:"dateRange"`
	StartDate       Date            `json:"startDate"`
	EndDate         Date            `json:"endDate"`
	Categories      []string        `json:"categories"`
	IncludeCharts   bool            `json:"includeCharts"`
	IncludeInsights bool            `json:"includeInsights"`
}

// GenerateRequest builds the generate payload from the form.
func (f ReportForm) GenerateRequest(now time.Time) GenerateRequest {
	start, end := f.Window(now)
	categories := f.Categories
	if categories == nil {
		categories = []string{}
	}
	return GenerateRequest{
		Name:            f.Name,
		Type:            f.Type,
		Format:          f.Format,
		DateRange:       f.DateRange,
		StartDate:       start,
		EndDate:         end,
		Categories:      categories,
		IncludeCharts:   f.IncludeCharts,
		IncludeInsights: f.IncludeInsights,
	}
}

// Schedule builds the schedule payload for a generated report, or nil when no schedule was chosen.
func (f ReportForm) Schedule(reportID string, now time.Time) *ReportSchedule {
	if f.ScheduleFrequency == "" || f.ScheduleFrequency == ScheduleNone {
		return nil
	}
	req := f.GenerateRequest(now)
	return &ReportSchedule{
		Name:          f.Name,
		Frequency:     f.ScheduleFrequency,
		DayOfPeriod:   f.ScheduleDay,
		EmailDelivery: f.EmailDelivery,
		ReportID:      reportID,
		Type:          f.Type,
		Filters: ReportFilters{
			StartDate:  req.StartDate,
			EndDate:    req.EndDate,
			Categories: req.Categories,
		},
	}
}

const (
	WizardFirstStep = 1
	WizardLastStep  = 3
)

var (
	// ErrWizardNotFinal is returned when submission is attempted before the schedule step.
	ErrWizardNotFinal = errors.New("report can only be generated from the final step")
	// ErrWizardBounds is returned when navigating past either end of the wizard.
	ErrWizardBounds = errors.New("no such wizard step")
)

// WizardStepLabels names the steps for display.
var WizardStepLabels = []string{"Report Type", "Options", "Schedule"}

// ReportWizard is the generation form state machine: 1 type, 2 options, 3 schedule.
type ReportWizard struct {
	Step int        `json:"step"`
	Form ReportForm `json:"form"`
}

// NewReportWizard opens the wizard on the first step.
func NewReportWizard(now time.Time, tmpl *ReportTemplate) *ReportWizard {
	return &ReportWizard{Step: WizardFirstStep, Form: DefaultReportForm(now, tmpl)}
}

// stepFields lists which form fields belong to each step.
var stepFields = map[int][]string{
	1: {"name", "type"},
	2: {"dateRange", "startDate", "endDate", "format"},
	3: {"scheduleFrequency", "scheduleDay"},
}

// ValidateStep checks only the fields shown on the given step.
func (w *ReportWizard) ValidateStep(step int) error {
	if step < WizardFirstStep || step > WizardLastStep {
		return ErrWizardBounds
	}
	all := validateStruct(w.Form)
	if w.Form.DateRange == RangeCustom {
		if w.Form.StartDate.IsZero() {
			all.Add("startDate", "Start date is required")
		}
		if w.Form.EndDate.IsZero() {
			all.Add("endDate", "End date is required")
		}
		if !w.Form.StartDate.IsZero() && !w.Form.EndDate.IsZero() && w.Form.EndDate.Before(w.Form.StartDate.Time) {
			all.Add("endDate", "End date must be after start date")
		}
	}
	if w.Form.ScheduleFrequency != ScheduleNone && (w.Form.ScheduleDay < 1 || w.Form.ScheduleDay > 28) {
		all.Add("scheduleDay", "Schedule day must be between 1 and 28")
	}
	if name, ok := all.Fields["name"]; ok && name == "Name is required" {
		all.Fields["name"] = "Report name is required"
	}

	stepErr := NewValidationError()
	for _, field := range stepFields[step] {
		if msg, ok := all.Fields[field]; ok {
			stepErr.Add(field, msg)
		}
	}
	return stepErr.OrNil()
}

// Next validates the current step and advances.
func (w *ReportWizard) Next() error {
	if w.Step >= WizardLastStep {
		return ErrWizardBounds
	}
	if err := w.ValidateStep(w.Step); err != nil {
		return err
	}
	w.Step++
	return nil
}

// Prev steps back without validation.
func (w *ReportWizard) Prev() error {
	if w.Step <= WizardFirstStep {
		return ErrWizardBounds
	}
	w.Step--
	return nil
}

// ReadyToSubmit refuses anything but the final step, then validates every step.
func (w *ReportWizard) ReadyToSubmit() error {
	if w.Step != WizardLastStep {
		return fmt.Errorf("%w: currently on step %d", ErrWizardNotFinal, w.Step)
	}
	for step := WizardFirstStep; step <= WizardLastStep; step++ {
		if err := w.ValidateStep(step); err != nil {
			return err
		}
	}
	return nil
}
