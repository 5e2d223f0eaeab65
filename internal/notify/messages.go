package notify

import (
	"encoding/json"
	"time"
)

// BudgetAlertMessage is queued when an owner's budget check finds
// categories at or past their alert threshold. Consumers turn it into a
// web-push delivery; the stored subscriptions carry the endpoints.
type BudgetAlertMessage struct {
	OwnerID   int64     `json:"owner_id"`
	Count     int       `json:"count"`
	Messages  []string  `json:"messages"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBudgetAlertMessage(ownerID int64, messages []string) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		OwnerID:   ownerID,
		Count:     len(messages),
		Messages:  messages,
		Timestamp: time.Now(),
	}
}

func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
