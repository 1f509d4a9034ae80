package kafka

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	ListingMessage *ListingMessage
}

// ListingMessage is a raw retailer listing as scraped upstream
type ListingMessage struct {
	Name       string   `json:"name"`
	Brand      *string  `json:"brand,omitempty"`
	RetailerID int64    `json:"retailer_id"`
	Price      *float64 `json:"price,omitempty"`
	Barcode    *string  `json:"barcode,omitempty"`
	ScrapedAt  string   `json:"scraped_at,omitempty"`
}

// ParseListingMessage parses the message value as a raw listing
func (m *IncomingMessage) ParseListingMessage() error {
	var msg ListingMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return err
	}
	if strings.TrimSpace(msg.Name) == "" {
		return errors.New("listing message missing name")
	}
	if msg.RetailerID == 0 {
		return errors.New("listing message missing retailer_id")
	}
	m.ListingMessage = &msg
	return nil
}

// GetRetailerID returns the retailer from the parsed message
func (m *IncomingMessage) GetRetailerID() int64 {
	if m.ListingMessage != nil {
		return m.ListingMessage.RetailerID
	}
	return 0
}

// ToCreateRequest converts the parsed listing into a create request
func (m *IncomingMessage) ToCreateRequest() *models.CreateListingRequest {
	if m.ListingMessage == nil {
		return nil
	}
	return &models.CreateListingRequest{
		Name:       m.ListingMessage.Name,
		Brand:      m.ListingMessage.Brand,
		RetailerID: m.ListingMessage.RetailerID,
		Price:      m.ListingMessage.Price,
		Barcode:    m.ListingMessage.Barcode,
	}
}

// RunTriggerMessage requests a dedupe run over the current listings
type RunTriggerMessage struct {
	Type      string    `json:"type"` // "dedupe.run"
	Profile   string    `json:"profile,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IsRunTrigger checks if the message is a dedupe run trigger
func (m *IncomingMessage) IsRunTrigger() bool {
	if msgType := m.Headers["type"]; msgType == "dedupe.run" {
		return true
	}

	var evt RunTriggerMessage
	if err := json.Unmarshal(m.Value, &evt); err == nil {
		return evt.Type == "dedupe.run"
	}

	return false
}

// ParseRunTrigger parses the message as a dedupe run trigger
func (m *IncomingMessage) ParseRunTrigger() (*RunTriggerMessage, error) {
	var evt RunTriggerMessage
	if err := json.Unmarshal(m.Value, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}
