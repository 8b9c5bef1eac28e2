package domain

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// Case is the normalized complaint fed to the decision pipeline.
type Case struct {
	OrderID       string `json:"order_id"`
	CustomerID    string `json:"customer_id"`
	ComplaintText string `json:"complaint_text"`

	// Issue type, either supplied by the caller or detected from the text
	// (e.g., "late_delivery", "missing_delivery")
	OrderStatus string `json:"order_status"`

	// Structured signals
	RefundHistory30d int     `json:"refund_history_30d"`
	HandoffPhoto     bool    `json:"handoff_photo"`
	CourierRating    float64 `json:"courier_rating"`
	OrderValue       float64 `json:"order_value"`
	EvidenceCount    int     `json:"evidence_count"`

	ReceivedAt time.Time `json:"received_at"`
}

// ComplaintRequest is the API request payload for complaint classification.
type ComplaintRequest struct {
	OrderID          string   `json:"order_id"`
	CustomerID       string   `json:"customer_id"`
	Email            string   `json:"email"`
	ComplaintText    string   `json:"complaint_text"`
	IssueType        string   `json:"issue_type"`
	HandoffPhoto     *bool    `json:"handoff_photo"`
	RefundHistory30d *int     `json:"refund_history_30d"`
	CourierRating    *float64 `json:"courier_rating"`
	OrderValue       *float64 `json:"order_value"`
	EvidenceFiles    []string `json:"evidence_files"`
}

// Neutral defaults applied when the caller omits structured fields.
const (
	DefaultCourierRating = 4.5
	DefaultOrderValue    = 15.0
	AnonymousCustomerID  = "anonymous"
)

// ToCase converts a request to a Case, filling in neutral defaults for
// anything the caller left out. Never fails; malformed input degrades to
// defaults rather than rejecting the complaint.
func (r *ComplaintRequest) ToCase() *Case {
	now := time.Now().UTC()

	orderID := r.OrderID
	if orderID == "" {
		orderID = "COMP-" + now.Format("20060102150405")
	}

	customerID := r.CustomerID
	if customerID == "" {
		if r.Email != "" {
			sum := md5.Sum([]byte(r.Email))
			customerID = hex.EncodeToString(sum[:])[:12]
		} else {
			customerID = AnonymousCustomerID
		}
	}

	c := &Case{
		OrderID:          orderID,
		CustomerID:       customerID,
		ComplaintText:    r.ComplaintText,
		OrderStatus:      r.IssueType,
		RefundHistory30d: 0,
		HandoffPhoto:     false,
		CourierRating:    DefaultCourierRating,
		OrderValue:       DefaultOrderValue,
		EvidenceCount:    len(r.EvidenceFiles),
		ReceivedAt:       now,
	}
	if r.HandoffPhoto != nil {
		c.HandoffPhoto = *r.HandoffPhoto
	}
	if r.RefundHistory30d != nil && *r.RefundHistory30d > 0 {
		c.RefundHistory30d = *r.RefundHistory30d
	}
	if r.CourierRating != nil && *r.CourierRating > 0 {
		c.CourierRating = *r.CourierRating
	}
	if r.OrderValue != nil && *r.OrderValue > 0 {
		c.OrderValue = *r.OrderValue
	}
	return c
}

// Fields exposes the case as a flat map for rule condition matching and
// CEL variable binding. Keys match the JSON field names.
func (c *Case) Fields() map[string]interface{} {
	return map[string]interface{}{
		"order_id":           c.OrderID,
		"customer_id":        c.CustomerID,
		"complaint_text":     c.ComplaintText,
		"order_status":       c.OrderStatus,
		"refund_history_30d": c.RefundHistory30d,
		"handoff_photo":      c.HandoffPhoto,
		"courier_rating":     c.CourierRating,
		"order_value":        c.OrderValue,
		"evidence_count":     c.EvidenceCount,
	}
}
