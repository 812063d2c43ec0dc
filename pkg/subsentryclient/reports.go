package subsentryclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/subsentry/dashboard-service/internal/domain"
)

// ErrNoReportID is returned when generation succeeds without an identifier to schedule against.
var ErrNoReportID = errors.New("Report generation did not return an identifier")

// ReportTemplates lists the presets; no user id is needed.
func (c *Client) ReportTemplates(ctx context.Context) ([]domain.ReportTemplate, error) {
	out := []domain.ReportTemplate{}
	if err := c.getList(ctx, "/reports/templates", nil, &out, "templates"); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateReport asks the backend to build a report.
func (c *Client) GenerateReport(ctx context.Context, userID string, req domain.GenerateRequest) (*domain.Report, error) {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return nil, err
	}
	var out domain.Report
	if err := c.send(ctx, http.MethodPost, "/reports/generate", q, req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, ErrNoReportID
	}
	return &out, nil
}

func (c *Client) GetReport(ctx context.Context, userID, id string) (*domain.Report, error) {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return nil, err
	}
	var out domain.Report
	if err := c.getJSON(ctx, "/reports/"+url.PathEscape(id), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListReports(ctx context.Context, userID string) ([]domain.Report, error) {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return nil, err
	}
	out := []domain.Report{}
	if err := c.getList(ctx, "/reports", q, &out, "reports"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteReport(ctx context.Context, userID, id string) error {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodDelete, "/reports/"+url.PathEscape(id), q, nil, nil)
}

// DownloadReport fetches the rendered report file.
func (c *Client) DownloadReport(ctx context.Context, userID, id, name string, format domain.ReportFormat) (*Blob, error) {
	if format == "" {
		format = domain.FormatPDF
	}
	params := url.Values{}
	params.Set("format", string(format))
	q, err := c.userQuery(userID, params)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/reports/" + url.PathEscape(id) + "/download", query: q})
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = "report-" + id
	}
	ext := string(format)
	if format == domain.FormatExcel {
		ext = "xlsx"
	}
	return blobFrom(resp, name, ext), nil
}

func (c *Client) ScheduleReport(ctx context.Context, userID string, sched domain.ReportSchedule) (*domain.ReportSchedule, error) {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return nil, err
	}
	var out domain.ReportSchedule
	if err := c.send(ctx, http.MethodPost, "/reports/schedule", q, sched, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ScheduledReports(ctx context.Context, userID string) ([]domain.ReportSchedule, error) {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return nil, err
	}
	out := []domain.ReportSchedule{}
	if err := c.getList(ctx, "/reports/scheduled", q, &out, "schedules", "reports"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateSchedule(ctx context.Context, userID, id string, sched domain.ReportSchedule) error {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPut, "/reports/schedule/"+url.PathEscape(id), q, sched, nil)
}

func (c *Client) DeleteSchedule(ctx context.Context, userID, id string) error {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodDelete, "/reports/schedule/"+url.PathEscape(id), q, nil, nil)
}
