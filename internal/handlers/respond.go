package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopfusion/api/internal/services"
)

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func pointerTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeParam(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(value))
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(src))
	for key, value := range src {
		cloned[key] = value
	}
	return cloned
}

type addressPayload struct {
	RecipientName string `json:"recipient_name,omitempty"`
	Line1         string `json:"line1"`
	Line2         string `json:"line2,omitempty"`
	City          string `json:"city"`
	State         string `json:"state,omitempty"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
	PhoneNumber   string `json:"phone_number,omitempty"`
}

func buildAddressPayload(addr services.Address) addressPayload {
	return addressPayload{
		RecipientName: strings.TrimSpace(addr.RecipientName),
		Line1:         strings.TrimSpace(addr.Line1),
		Line2:         strings.TrimSpace(addr.Line2),
		City:          strings.TrimSpace(addr.City),
		State:         strings.TrimSpace(addr.State),
		PostalCode:    strings.TrimSpace(addr.PostalCode),
		Country:       strings.ToUpper(strings.TrimSpace(addr.Country)),
		PhoneNumber:   strings.TrimSpace(addr.PhoneNumber),
	}
}

func parseAddressPayload(payload *addressPayload) *services.Address {
	if payload == nil {
		return nil
	}
	return &services.Address{
		RecipientName: strings.TrimSpace(payload.RecipientName),
		Line1:         strings.TrimSpace(payload.Line1),
		Line2:         strings.TrimSpace(payload.Line2),
		City:          strings.TrimSpace(payload.City),
		State:         strings.TrimSpace(payload.State),
		PostalCode:    strings.TrimSpace(payload.PostalCode),
		Country:       strings.ToUpper(strings.TrimSpace(payload.Country)),
		PhoneNumber:   strings.TrimSpace(payload.PhoneNumber),
	}
}
