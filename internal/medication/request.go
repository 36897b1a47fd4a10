package medication

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ServiceRequest is the one typed shape every inbound service call is
// normalised into before it reaches a Manager.
type ServiceRequest struct {
	EntryID      string `json:"entry_id,omitempty"`
	MedicationID string `json:"medication_id,omitempty"`
	Inventory    *int   `json:"inventory,omitempty"`
	TagID        string `json:"tag_id,omitempty"`
}

// wireRequest accepts every payload variant seen on the bus.
type wireRequest struct {
	EntryID      string       `json:"entry_id"`
	MedicationID string       `json:"medication_id"`
	Inventory    *json.Number `json:"inventory"`
	TagID        string       `json:"tag_id"`
	NFCID        string       `json:"nfc_id"`
	Data         *wireRequest `json:"data"`
}

// DecodeServiceRequest normalises a JSON service payload. Both the flat form
//
//	{"medication_id": "aspirin", "inventory": 20}
//
// and the wrapped form {"data": {...}} are accepted, and "nfc_id" is read as
// an alias of "tag_id". Fields inside "data" win over top-level ones.
// Inventory may be an integer, an integral float, or a numeric string.
func DecodeServiceRequest(payload []byte) (ServiceRequest, error) {
	var w wireRequest
	if err := json.Unmarshal(payload, &w); err != nil {
		return ServiceRequest{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if w.Data != nil {
		inner := *w.Data
		if inner.EntryID == "" {
			inner.EntryID = w.EntryID
		}
		if inner.MedicationID == "" {
			inner.MedicationID = w.MedicationID
		}
		if inner.Inventory == nil {
			inner.Inventory = w.Inventory
		}
		if inner.TagID == "" {
			inner.TagID = w.TagID
		}
		if inner.NFCID == "" {
			inner.NFCID = w.NFCID
		}
		w = inner
	}

	req := ServiceRequest{
		EntryID:      strings.TrimSpace(w.EntryID),
		MedicationID: strings.TrimSpace(w.MedicationID),
		TagID:        strings.TrimSpace(w.TagID),
	}
	if req.TagID == "" {
		req.TagID = strings.TrimSpace(w.NFCID)
	}

	if w.Inventory != nil {
		n, err := parseCount(*w.Inventory)
		if err != nil {
			return ServiceRequest{}, fmt.Errorf("%w: inventory: %w", ErrInvalidRequest, err)
		}
		req.Inventory = &n
	}
	return req, nil
}

func parseCount(n json.Number) (int, error) {
	if i, err := n.Int64(); err == nil {
		if i > math.MaxInt32 || i < math.MinInt32 {
			return 0, fmt.Errorf("%s out of range", n)
		}
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("%s is not a whole number", n)
	}
	return int(f), nil
}
