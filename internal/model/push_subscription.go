package model

import "time"

// PushSubscription holds a browser push subscription tied to a report, used to
// tell the submitter when their report has finished generating.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	ReportID  string    `gorm:"size:36;index;not null"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
