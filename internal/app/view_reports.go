package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/subsentry/dashboard-service/internal/domain"
)

// ReportsView lists templates, generated and scheduled reports, plus the open wizard.
type ReportsView struct {
	Templates []domain.ReportTemplate `json:"templates"`
	Reports   []domain.Report         `json:"reports"`
	Scheduled []domain.ReportSchedule `json:"scheduled"`
	Wizard    *WizardView             `json:"wizard,omitempty"`
	Meta      ViewMeta                `json:"meta"`
}

// WizardView is the report wizard as shown to the client.
type WizardView struct {
	Step   int               `json:"step"`
	Steps  []string          `json:"steps"`
	Form   domain.ReportForm `json:"form"`
	Final  bool              `json:"final"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (w *Workspace) Reports(ctx context.Context) (*ReportsView, error) {
	userID, err := w.requireUser()
	if err != nil {
		return nil, err
	}

	view := &ReportsView{}
	var meta metaCollector
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return meta.add(load(gctx, w, w.key("reports/templates", nil), "report templates",
			w.client.ReportTemplates, &view.Templates))
	})
	g.Go(func() error {
		return meta.add(load(gctx, w, w.key("reports/list", nil), "reports",
			func(ctx context.Context) ([]domain.Report, error) { return w.client.ListReports(ctx, userID) },
			&view.Reports))
	})
	g.Go(func() error {
		return meta.add(load(gctx, w, w.key("reports/scheduled", nil), "scheduled reports",
			func(ctx context.Context) ([]domain.ReportSchedule, error) { return w.client.ScheduledReports(ctx, userID) },
			&view.Scheduled))
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if view.Templates == nil {
		view.Templates = []domain.ReportTemplate{}
	}
	if view.Reports == nil {
		view.Reports = []domain.Report{}
	}
	if view.Scheduled == nil {
		view.Scheduled = []domain.ReportSchedule{}
	}
	view.Wizard = w.wizardView(nil)
	view.Meta = meta.meta
	return view, nil
}

// wizardView snapshots the open wizard, or nil when none is open.
func (w *Workspace) wizardView(fields map[string]string) *WizardView {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.wizard == nil {
		return nil
	}
	return &WizardView{
		Step:   w.wizard.Step,
		Steps:  domain.WizardStepLabels,
		Form:   w.wizard.Form,
		Final:  w.wizard.Step == domain.WizardLastStep,
		Errors: fields,
	}
}
