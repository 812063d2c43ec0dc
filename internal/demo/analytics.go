package demo

import (
	"net/http"

	"github.com/subsentry/dashboard-service/internal/domain"
)

func analyticsRange(r *http.Request) domain.AnalyticsRange {
	rng := domain.ParseAnalyticsRange(r.URL.Query().Get("dateRange"))
	if rng == "" {
		return domain.Range6Months
	}
	return rng
}

func (b *Backend) handleOverview(w http.ResponseWriter, r *http.Request) {
	respondWithData(w, http.StatusOK, domain.ComputeOverview(b.snapshot(), analyticsRange(r), b.now()))
}

// handleSpendingTrend nests the series under monthlyData like the real backend does.
func (b *Backend) handleSpendingTrend(w http.ResponseWriter, r *http.Request) {
	trend := domain.ComputeTrend(b.snapshot(), analyticsRange(r), b.now())
	respondWithData(w, http.StatusOK, map[string]interface{}{"monthlyData": trend})
}

func (b *Backend) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	respondWithData(w, http.StatusOK, domain.ComputeCategoryBreakdown(b.snapshot(), analyticsRange(r), b.now()))
}

func (b *Backend) handleBillingCycle(w http.ResponseWriter, r *http.Request) {
	respondWithData(w, http.StatusOK, domain.ComputeBillingCycles(b.snapshot(), analyticsRange(r), b.now()))
}

func (b *Backend) handleTopSubscriptions(w http.ResponseWriter, r *http.Request) {
	respondWithData(w, http.StatusOK, domain.ComputeTop(b.snapshot(), analyticsRange(r), b.now()))
}

func (b *Backend) handleProjections(w http.ResponseWriter, r *http.Request) {
	respondWithData(w, http.StatusOK, domain.ComputeProjection(b.snapshot(), b.now()))
}

func (b *Backend) handleInsights(w http.ResponseWriter, r *http.Request) {
	respondWithData(w, http.StatusOK, map[string]interface{}{"insights": domain.ComputeInsights(b.snapshot(), b.now())})
}

func (b *Backend) handleCompare(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SubscriptionIDs []string `json:"subscriptionIds"`
	}
	if err := decodeBody(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	respondWithData(w, http.StatusOK, map[string]interface{}{"comparison": domain.ComputeComparison(b.snapshot(), in.SubscriptionIDs)})
}
