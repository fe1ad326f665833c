package paystack

import (
	"encoding/json"
	"fmt"
)

// EventChargeSuccess は決済成功イベントの種別名。
// これ以外のイベントは受講登録を行わない。
const EventChargeSuccess = "charge.success"

// Event はPaystackのWebhookペイロードのうち、受講登録に必要な部分を表す。
type Event struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

// EventData はイベントのdata部を表す。
type EventData struct {
	Reference string   `json:"reference"`
	Metadata  Metadata `json:"metadata"`
}

// Metadata はチェックアウト時に埋め込んだ受講登録用のメタデータ。
type Metadata struct {
	UserID      string `json:"user_id"`
	CourseID    string `json:"course_id"`
	CourseTitle string `json:"course_title"`
}

// IsChargeSuccess は決済成功イベントかどうかを返す。
func (e *Event) IsChargeSuccess() bool {
	return e.Event == EventChargeSuccess
}

// ParseEvent は署名検証済みのrawBodyをEventにデコードする。
func ParseEvent(rawBody []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode paystack event: %w", err)
	}
	return &ev, nil
}
