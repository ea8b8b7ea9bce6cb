package models

import "time"

// Notification is the payload handed to a notification transport.
type Notification struct {
	BondID  string `json:"bond_id"`
	Message string `json:"message"`
	Channel string `json:"channel"`
}

// AlertEvent records an alert decision for streaming and auditing.
type AlertEvent struct {
	ID        string    `json:"id"`
	BondID    string    `json:"bond_id"`
	ZScore    float64   `json:"z_score"`
	Abnormal  bool      `json:"abnormal"`
	Delivered bool      `json:"delivered"`
	Channel   string    `json:"channel,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}
