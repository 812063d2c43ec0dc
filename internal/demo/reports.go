package demo

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/subsentry/dashboard-service/internal/domain"
)

var reportContentTypes = map[domain.ReportFormat]string{
	domain.FormatPDF:   "application/pdf",
	domain.FormatExcel: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	domain.FormatCSV:   "text/csv",
	domain.FormatJSON:  "application/json",
}

func (b *Backend) handleTemplates(w http.ResponseWriter, r *http.Request) {
	respondWithData(w, http.StatusOK, Templates)
}

func (b *Backend) handleListReports(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := append([]domain.Report{}, b.data.Reports...)
	b.mu.Unlock()
	respondWithData(w, http.StatusOK, out)
}

func (b *Backend) reportByID(id string) (domain.Report, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, rep := range b.data.Reports {
		if rep.ID == id {
			return rep, true
		}
	}
	return domain.Report{}, false
}

func (b *Backend) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var in domain.GenerateRequest
	if err := decodeBody(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		respondWithError(w, http.StatusBadRequest, "Report name is required")
		return
	}
	if in.Format == "" {
		in.Format = domain.FormatPDF
	}
	rep := domain.Report{
		ID:          "report-" + uuid.NewString(),
		Name:        in.Name,
		Type:        in.Type,
		Format:      in.Format,
		Status:      "completed",
		GeneratedAt: domain.Date{Time: b.now()},
		FileSize:    int64(2048 + 512*len(b.snapshot())),
	}
	b.mu.Lock()
	b.data.Reports = append([]domain.Report{rep}, b.data.Reports...)
	b.mu.Unlock()
	respondWithData(w, http.StatusCreated, rep)
}

func (b *Backend) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := b.reportByID(chi.URLParam(r, "id"))
	if !ok {
		respondWithError(w, http.StatusNotFound, "Report not found")
		return
	}
	respondWithData(w, http.StatusOK, rep)
}

func (b *Backend) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	found := false
	for i, rep := range b.data.Reports {
		if rep.ID == id {
			b.data.Reports = append(b.data.Reports[:i], b.data.Reports[i+1:]...)
			found = true
			break
		}
	}
	b.mu.Unlock()
	if !found {
		respondWithError(w, http.StatusNotFound, "Report not found")
		return
	}
	respondWithSuccess(w)
}

func (b *Backend) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := b.reportByID(chi.URLParam(r, "id"))
	if !ok {
		respondWithError(w, http.StatusNotFound, "Report not found")
		return
	}
	format := domain.ReportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = rep.Format
	}
	ext := string(format)
	if format == domain.FormatExcel {
		ext = "xlsx"
	}
	contentType, known := reportContentTypes[format]
	if !known {
		contentType = "application/octet-stream"
	}
	body := fmt.Sprintf("Mock %s report content for report %s", strings.ToUpper(string(format)), rep.ID)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, rep.ID, ext))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// nextRun returns the first delivery after now for a schedule.
func nextRun(now domain.Date, freq domain.ScheduleFrequency, day int) domain.Date {
	if day < 1 {
		day = 1
	}
	switch freq {
	case domain.ScheduleWeekly:
		return domain.Date{Time: now.AddDate(0, 0, 7)}
	case domain.ScheduleQuarterly:
		first := domain.NewDate(now.Year(), now.Month(), 1)
		return domain.Date{Time: first.AddDate(0, 3, day-1)}
	default:
		first := domain.NewDate(now.Year(), now.Month(), 1)
		return domain.Date{Time: first.AddDate(0, 1, day-1)}
	}
}

func (b *Backend) handleScheduleReport(w http.ResponseWriter, r *http.Request) {
	var in domain.ReportSchedule
	if err := decodeBody(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.Frequency == "" || in.Frequency == domain.ScheduleNone {
		respondWithError(w, http.StatusBadRequest, "Schedule frequency is required")
		return
	}
	in.ID = "schedule-" + uuid.NewString()
	in.NextRunAt = nextRun(domain.DateOf(b.now()), in.Frequency, in.DayOfPeriod)

	b.mu.Lock()
	b.data.Schedules = append(b.data.Schedules, in)
	b.mu.Unlock()
	respondWithData(w, http.StatusCreated, in)
}

func (b *Backend) handleScheduledReports(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := append([]domain.ReportSchedule{}, b.data.Schedules...)
	b.mu.Unlock()
	respondWithData(w, http.StatusOK, out)
}

func (b *Backend) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in domain.ReportSchedule
	if err := decodeBody(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.data.Schedules {
		if s.ID == id {
			in.ID = id
			in.NextRunAt = nextRun(domain.DateOf(b.now()), in.Frequency, in.DayOfPeriod)
			b.data.Schedules[i] = in
			respondWithData(w, http.StatusOK, in)
			return
		}
	}
	respondWithError(w, http.StatusNotFound, "Schedule not found")
}

func (b *Backend) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.data.Schedules {
		if s.ID == id {
			b.data.Schedules = append(b.data.Schedules[:i], b.data.Schedules[i+1:]...)
			respondWithSuccess(w)
			return
		}
	}
	respondWithError(w, http.StatusNotFound, "Schedule not found")
}
