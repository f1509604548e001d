package solartime

import "time"

// beijingLocation is the zone the reference clock is read in. time.FixedZone
// avoids a tzdata dependency for what is a fixed UTC+8 offset.
var beijingLocation = time.FixedZone("CST", 8*60*60)

// InferLongitude derives an approximate longitude from the offset between a
// user-stated local clock time and the reference-meridian clock. refNow is the
// current reference-meridian time; callers outside tests pass ReferenceNow().
//
// Resolution is one degree per 4 minutes of clock skew. This is a coarse
// fallback for when no authoritative location is supplied, not a timezone
// lookup.
func InferLongitude(userHour, userMinute int, refNow time.Time) float64 {
	userMin := userHour*60 + userMinute
	refMin := refNow.Hour()*60 + refNow.Minute()

	diff := userMin - refMin

	// Keep the offset within a half-day so a user near the date line is not
	// misread as nearly a full day off.
	if diff > 720 {
		diff -= 1440
	} else if diff < -720 {
		diff += 1440
	}

	longitude := ReferenceMeridian + float64(diff)/4
	return ClampLongitude(longitude)
}

// ReferenceNow returns the current time on the reference-meridian clock.
func ReferenceNow() time.Time {
	return time.Now().In(beijingLocation)
}

// ClampLongitude restricts a longitude to the valid [-180,180] range.
func ClampLongitude(longitude float64) float64 {
	if longitude > 180 {
		return 180
	}
	if longitude < -180 {
		return -180
	}
	return longitude
}
