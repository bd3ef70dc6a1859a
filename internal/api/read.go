package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bedwards/imaginary-crime-lab/internal/analytics"
	"github.com/bedwards/imaginary-crime-lab/internal/store"
)

const (
	defaultPurchaseLimit = 50
	maxPurchaseLimit     = 500
)

// CaseView is a case as shown to players. Solution stays empty until the
// case is solved.
type CaseView struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	RequiredEvidenceIDs []string   `json:"required_evidence_ids"`
	Solved              bool       `json:"solved"`
	SolvedAt            *time.Time `json:"solved_at,omitempty"`
	Solution            string     `json:"solution,omitempty"`
}

// EvidenceView is a catalog evidence unit with its ledger status.
type EvidenceView struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Purchased bool    `json:"purchased"`
}

// PurchaseView is a processed order receipt.
type PurchaseView struct {
	OrderID       string    `json:"order_id"`
	EvidenceIDs   []string  `json:"evidence_ids"`
	SolvedCaseIDs []string  `json:"solved_case_ids"`
	TotalAmount   float64   `json:"total_amount"`
	ProcessedAt   time.Time `json:"processed_at"`
}

func caseView(c store.Case) CaseView {
	v := CaseView{
		ID:                  c.ID,
		Title:               c.Title,
		Description:         c.Description,
		RequiredEvidenceIDs: nonNil(c.RequiredEvidence),
		Solved:              c.Solved(),
		SolvedAt:            c.SolvedAt,
	}
	if c.Solved() {
		v.Solution = c.Solution
	}
	return v
}

// ListCases lists every case. A read failure degrades to an empty list.
func (h *Handler) ListCases(c *gin.Context) {
	cases, err := h.Store.ListCases(c.Request.Context())
	if err != nil {
		h.Logger.Warn("list cases failed", "error", err)
		c.JSON(http.StatusOK, []CaseView{})
		return
	}
	views := make([]CaseView, 0, len(cases))
	for _, cs := range cases {
		views = append(views, caseView(cs))
	}
	c.JSON(http.StatusOK, views)
}

// GetCase returns one case. A read failure degrades to 404.
func (h *Handler) GetCase(c *gin.Context) {
	cs, err := h.Store.ReadCase(c.Request.Context(), c.Param("id"))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			h.Logger.Warn("read case failed", "case", c.Param("id"), "error", err)
		}
		c.JSON(http.StatusNotFound, gin.H{"error": errNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, caseView(cs))
}

// ListEvidence lists the evidence catalog with purchased flags.
func (h *Handler) ListEvidence(c *gin.Context) {
	evidence, err := h.Store.ListEvidence(c.Request.Context())
	if err != nil {
		h.Logger.Warn("list evidence failed", "error", err)
		c.JSON(http.StatusOK, []EvidenceView{})
		return
	}
	views := make([]EvidenceView, 0, len(evidence))
	for _, e := range evidence {
		views = append(views, EvidenceView(e))
	}
	c.JSON(http.StatusOK, views)
}

// ListPurchased returns the sorted ids of every purchased evidence unit.
func (h *Handler) ListPurchased(c *gin.Context) {
	ids, err := h.Store.PurchasedIDs(c.Request.Context())
	if err != nil {
		h.Logger.Warn("list purchased evidence failed", "error", err)
		ids = []string{}
	}
	c.JSON(http.StatusOK, ids)
}

// ListPurchases returns recent receipts, newest first.
func (h *Handler) ListPurchases(c *gin.Context) {
	limit := defaultPurchaseLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxPurchaseLimit)
	}

	purchases, err := h.Store.ListPurchases(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]PurchaseView, 0, len(purchases))
	for _, p := range purchases {
		views = append(views, PurchaseView{
			OrderID:       p.OrderID,
			EvidenceIDs:   nonNil(p.EvidenceIDs),
			SolvedCaseIDs: nonNil(p.SolvedCaseIDs),
			TotalAmount:   p.TotalAmount,
			ProcessedAt:   p.ProcessedAt,
		})
	}
	c.JSON(http.StatusOK, views)
}

// Summary returns activity analytics for the requested window.
func (h *Handler) Summary(c *gin.Context) {
	window, err := analytics.ParseWindow(c.Query("window"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.Analytics.Summarize(c.Request.Context(), window))
}
