package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/bedwards/imaginary-crime-lab/internal/engine"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Crimelab-Signature"

const maxWebhookBody = 1 << 20

var validate = validator.New()

// OrderRequest is the storefront's order webhook body.
type OrderRequest struct {
	OrderID     string     `json:"order_id" validate:"required"`
	LineItems   []LineItem `json:"line_items" validate:"required,min=1,dive"`
	TotalAmount float64    `json:"total_amount" validate:"gte=0"`
}

// LineItem is one purchased unit of an order. Storefronts that still send
// evidence_id are accepted; evidence_unit_id takes precedence.
type LineItem struct {
	EvidenceUnitID string `json:"evidence_unit_id,omitempty" validate:"required_without=EvidenceID"`
	EvidenceID     string `json:"evidence_id,omitempty"`
}

func (i LineItem) evidence() string {
	if i.EvidenceUnitID != "" {
		return i.EvidenceUnitID
	}
	return i.EvidenceID
}

// OrderResponse reports the outcome of a processed order.
type OrderResponse struct {
	OrderID       string   `json:"order_id"`
	SolvedCaseIDs []string `json:"solved_case_ids"`
	NewEvidence   []string `json:"new_evidence"`
	Duplicate     bool     `json:"duplicate"`
}

func (r OrderRequest) order() engine.Order {
	ids := make([]string, 0, len(r.LineItems))
	for _, item := range r.LineItems {
		ids = append(ids, item.evidence())
	}
	return engine.Order{ID: r.OrderID, EvidenceIDs: ids, TotalAmount: r.TotalAmount}
}

// Sign returns the signature header value for body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func verifySignature(secret string, body []byte, header string) bool {
	got, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// OrderWebhook processes a completed order.
//
// Duplicate deliveries answer 200 with duplicate set. Failures the storefront
// should retry answer 503.
func (h *Handler) OrderWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.WebhookSecret != "" && !verifySignature(h.WebhookSecret, body, c.GetHeader(SignatureHeader)) {
		h.Logger.Warn("order webhook signature rejected", "client", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var req OrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.Committer.ProcessOrder(c.Request.Context(), req.order())
	switch {
	case err == nil:
	case engine.IsInvalidOrder(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case engine.IsRetryable(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, OrderResponse{
		OrderID:       req.OrderID,
		SolvedCaseIDs: nonNil(res.SolvedCaseIDs),
		NewEvidence:   nonNil(res.NewEvidence),
		Duplicate:     res.Duplicate,
	})
}

var errNotFound = errors.New("not found")

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
