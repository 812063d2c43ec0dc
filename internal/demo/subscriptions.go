package demo

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/subsentry/dashboard-service/internal/domain"
)

// snapshot copies the subscription list under the lock.
func (b *Backend) snapshot() []domain.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Subscription, len(b.data.Subscriptions))
	copy(out, b.data.Subscriptions)
	return out
}

func (b *Backend) indexOf(id string) int {
	for i, s := range b.data.Subscriptions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return fallback
}

func (b *Backend) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	category := strings.ToLower(r.URL.Query().Get("category"))
	search := strings.ToLower(r.URL.Query().Get("search"))

	out := []domain.Subscription{}
	for _, s := range b.snapshot() {
		if category != "" && !strings.Contains(strings.ToLower(s.Category), category) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(s.Name), search) {
			continue
		}
		out = append(out, s)
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"data":  out,
		"total": len(out),
		"page":  queryInt(r, "page", 0),
		"size":  queryInt(r, "size", 20),
	})
}

func (b *Backend) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	i := b.indexOf(id)
	var sub domain.Subscription
	if i >= 0 {
		sub = b.data.Subscriptions[i]
	}
	b.mu.Unlock()
	if i < 0 {
		respondWithError(w, http.StatusNotFound, "Subscription not found")
		return
	}
	respondWithData(w, http.StatusOK, sub)
}

// subscriptionFrom applies a validated payload onto sub.
func subscriptionFrom(sub domain.Subscription, in domain.RenewalPayload) domain.Subscription {
	sub.Name = in.Name
	sub.Amount = in.Amount
	sub.Category = in.Category
	sub.BillingCycle = in.BillingCycle
	sub.StartDate = in.StartDate
	sub.NextRenewalDate = in.NextRenewalDate
	sub.AutoRenewal = in.AutoRenewal
	sub.Notes = in.Notes
	sub.PaymentMethod = in.PaymentMethod
	sub.PortalLink = in.PortalLink
	if in.Status != "" {
		sub.Status = in.Status
	}
	return sub
}

func (b *Backend) decodeSubscription(w http.ResponseWriter, r *http.Request) (domain.RenewalPayload, bool) {
	var in domain.RenewalPayload
	if err := decodeBody(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return in, false
	}
	in.SubscriptionInput = in.SubscriptionInput.Normalize()
	if err := in.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return in, false
	}
	if in.NextRenewalDate.IsZero() {
		in.NextRenewalDate = in.WithRenewal().NextRenewalDate
	}
	return in, true
}

func (b *Backend) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	in, ok := b.decodeSubscription(w, r)
	if !ok {
		return
	}
	now := domain.Date{Time: b.now()}
	sub := subscriptionFrom(domain.Subscription{
		ID:        "sub-" + uuid.NewString(),
		UserID:    b.accountID(),
		Currency:  "USD",
		Status:    domain.StatusActive,
		CreatedAt: now,
	}, in)
	sub.UpdatedAt = now

	b.mu.Lock()
	b.data.Subscriptions = append(b.data.Subscriptions, sub)
	b.data.Notifications = append([]domain.Notification{{
		ID:        "notif-" + uuid.NewString(),
		Type:      domain.NotificationSuccess,
		Title:     "Subscription Added",
		Message:   sub.Name + " has been added to your subscriptions",
		CreatedAt: now,
	}}, b.data.Notifications...)
	b.mu.Unlock()

	respondWithData(w, http.StatusCreated, sub)
}

func (b *Backend) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	in, ok := b.decodeSubscription(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	b.mu.Lock()
	i := b.indexOf(id)
	if i < 0 {
		b.mu.Unlock()
		respondWithError(w, http.StatusNotFound, "Subscription not found")
		return
	}
	sub := subscriptionFrom(b.data.Subscriptions[i], in)
	sub.UpdatedAt = domain.Date{Time: b.now()}
	b.data.Subscriptions[i] = sub
	b.mu.Unlock()

	respondWithData(w, http.StatusOK, sub)
}

func (b *Backend) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	i := b.indexOf(id)
	if i >= 0 {
		b.data.Subscriptions = append(b.data.Subscriptions[:i], b.data.Subscriptions[i+1:]...)
	}
	b.mu.Unlock()
	if i < 0 {
		respondWithError(w, http.StatusNotFound, "Subscription not found")
		return
	}
	respondWithSuccess(w)
}

// applyChanges merges a partial field map onto sub through its JSON form.
func applyChanges(sub domain.Subscription, changes map[string]interface{}) (domain.Subscription, error) {
	raw, err := json.Marshal(sub)
	if err != nil {
		return sub, err
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return sub, err
	}
	for k, v := range changes {
		if k == "id" || k == "userId" {
			continue
		}
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return sub, err
	}
	var out domain.Subscription
	if err := json.Unmarshal(merged, &out); err != nil {
		return sub, err
	}
	return out, nil
}

func (b *Backend) handleBulkUpdate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Updates []domain.BulkUpdate `json:"updates"`
	}
	if err := decodeBody(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	updated := 0
	for _, u := range in.Updates {
		i := b.indexOf(u.ID)
		if i < 0 {
			continue
		}
		sub, err := applyChanges(b.data.Subscriptions[i], u.Changes)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid changes for %s", u.ID))
			return
		}
		sub.UpdatedAt = domain.Date{Time: b.now()}
		b.data.Subscriptions[i] = sub
		updated++
	}
	respondWithData(w, http.StatusOK, map[string]int{"updated": updated})
}

func (b *Backend) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var in struct {
		IDs []string `json:"ids"`
	}
	if err := decodeBody(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	remove := make(map[string]bool, len(in.IDs))
	for _, id := range in.IDs {
		remove[id] = true
	}

	b.mu.Lock()
	kept := b.data.Subscriptions[:0]
	deleted := 0
	for _, s := range b.data.Subscriptions {
		if remove[s.ID] {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	b.data.Subscriptions = kept
	b.mu.Unlock()

	respondWithData(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// handleUpcoming lists renewals due within the next days (inclusive).
func (b *Backend) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	respondWithData(w, http.StatusOK, domain.UpcomingWithin(b.snapshot(), b.now(), days+1))
}

func (b *Backend) handleDateRange(w http.ResponseWriter, r *http.Request) {
	start, err := domain.ParseDate(r.URL.Query().Get("startDate"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid startDate")
		return
	}
	end, err := domain.ParseDate(r.URL.Query().Get("endDate"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid endDate")
		return
	}
	inRange := func(d domain.Date) bool {
		if d.IsZero() {
			return false
		}
		day := domain.DateOf(d.Time).Time
		return !day.Before(start.Time) && !day.After(end.Time)
	}
	out := []domain.Subscription{}
	for _, s := range b.snapshot() {
		if inRange(s.StartDate) || inRange(s.NextRenewalDate) {
			out = append(out, s)
		}
	}
	respondWithData(w, http.StatusOK, out)
}

var exportHeader = []string{"name", "amount", "category", "billingCycle", "startDate", "nextRenewalDate", "status"}

func (b *Backend) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	category := r.URL.Query().Get("category")
	subs := []domain.Subscription{}
	for _, s := range b.snapshot() {
		if category == "" || s.Category == category {
			subs = append(subs, s)
		}
	}
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].Name < subs[j].Name })

	if format == "json" {
		w.Header().Set("Content-Disposition", `attachment; filename="subscriptions.json"`)
		respondWithJSON(w, http.StatusOK, subs)
		return
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	_ = cw.Write(exportHeader)
	for _, s := range subs {
		_ = cw.Write([]string{
			s.Name,
			strconv.FormatFloat(s.Amount, 'f', 2, 64),
			s.Category,
			string(s.BillingCycle),
			s.StartDate.Format("2006-01-02"),
			s.NextRenewalDate.Format("2006-01-02"),
			string(s.Status),
		})
	}
	cw.Flush()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="subscriptions.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleImport reads a CSV upload in the export layout and adds each valid row.
func (b *Backend) handleImport(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "A file is required")
		return
	}
	defer file.Close()

	rows, err := csv.NewReader(io.LimitReader(file, 1<<20)).ReadAll()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Could not parse the uploaded file")
		return
	}

	now := b.now()
	owner := b.accountID()
	var imported []domain.Subscription
	for i, row := range rows {
		if i == 0 && len(row) > 0 && strings.EqualFold(row[0], "name") {
			continue
		}
		if len(row) < 5 {
			continue
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			continue
		}
		start, err := domain.ParseDate(strings.TrimSpace(row[4]))
		if err != nil {
			continue
		}
		in := domain.SubscriptionInput{
			Name:         row[0],
			Amount:       amount,
			Category:     row[2],
			BillingCycle: domain.BillingCycle(strings.TrimSpace(row[3])),
			StartDate:    start,
			AutoRenewal:  true,
		}.Normalize()
		if in.Validate() != nil {
			continue
		}
		imported = append(imported, subscriptionFrom(domain.Subscription{
			ID:        "sub-" + uuid.NewString(),
			UserID:    owner,
			Currency:  "USD",
			Status:    domain.StatusActive,
			CreatedAt: domain.Date{Time: now},
			UpdatedAt: domain.Date{Time: now},
		}, in.WithRenewal()))
	}

	b.mu.Lock()
	b.data.Subscriptions = append(b.data.Subscriptions, imported...)
	b.mu.Unlock()

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"imported": len(imported), "at": now.Format(time.RFC3339)})
}
