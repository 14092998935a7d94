package model

import "time"

type PushSubscription struct {
	ID         int64     `json:"id"`
	ChurchID   int64     `json:"church_id"`
	MusicianID *int64    `json:"musician_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
