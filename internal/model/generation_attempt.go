package model

import "time"

// GenerationAttempt caches the raw outcome of a successful external generation
// call, keyed by report and attempt sequence. It is written before the report
// row is finalized, so a failed finalize write can be recovered without paying
// for a second external call.
type GenerationAttempt struct {
	ID           int64     `gorm:"autoIncrement;primaryKey"`
	ReportID     string    `gorm:"size:36;index;not null"`
	Seq          int       `gorm:"not null"` // APIRetryCount at the time of the call
	CoreIdentity string    `gorm:"type:text"`
	Content      string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}
