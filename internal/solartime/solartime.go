package solartime

import (
	"math"
	"time"
)

// ReferenceMeridian is the meridian (degrees east) the civil clock is calibrated
// to. Beijing time (UTC+8) corresponds to 120°E.
const ReferenceMeridian = 120.0

// doubleHourNames are the twelve traditional two-hour periods, indexed 0-11.
var doubleHourNames = [12]string{"子", "丑", "寅", "卯", "辰", "巳", "午", "未", "申", "酉", "戌", "亥"}

// Result holds the outcome of normalizing a civil timestamp to true solar time.
type Result struct {
	// TrueSolarTime is the civil timestamp shifted by the total adjustment.
	TrueSolarTime time.Time
	// DoubleHour is the traditional two-hour period index (0-11) of the
	// adjusted hour, with hour 23 wrapping to index 0.
	DoubleHour int
	// DoubleHourName is the traditional name for DoubleHour.
	DoubleHourName string
	// LongitudeAdjustmentMinutes is the offset from the reference meridian,
	// at 4 minutes per degree.
	LongitudeAdjustmentMinutes float64
	// EquationOfTimeMinutes is the seasonal mean-vs-apparent solar discrepancy.
	EquationOfTimeMinutes float64
	// TotalAdjustmentMinutes is the sum of the two adjustments.
	TotalAdjustmentMinutes float64
}

// Normalize converts a civil local timestamp at the given longitude (degrees,
// east positive) to true solar time. Longitude must already be within
// [-180,180]; the caller validates before invoking.
func Normalize(localTime time.Time, longitude float64) Result {
	longitudeAdj := (longitude - ReferenceMeridian) * 4
	eot := equationOfTime(localTime)
	total := longitudeAdj + eot

	trueSolar := localTime.Add(time.Duration(total * float64(time.Minute)))
	idx := DoubleHourFromHour(trueSolar.Hour())

	return Result{
		TrueSolarTime:              trueSolar,
		DoubleHour:                 idx,
		DoubleHourName:             doubleHourNames[idx],
		LongitudeAdjustmentMinutes: longitudeAdj,
		EquationOfTimeMinutes:      eot,
		TotalAdjustmentMinutes:     total,
	}
}

// DoubleHourFromHour maps a clock hour (0-23) to the double-hour index.
// The first period spans 23:00-01:00, so hour 23 wraps to index 0.
func DoubleHourFromHour(hour int) int {
	if hour == 23 {
		return 0
	}
	return ((hour + 1) / 2) % 12
}

// DoubleHourName returns the traditional name for a double-hour index.
func DoubleHourName(index int) string {
	if index < 0 || index > 11 {
		return "未知"
	}
	return doubleHourNames[index]
}

// equationOfTime computes the equation of time in minutes for the given date
// using the NOAA approximation. It is a smooth series, not table-driven, so
// leap years only shift the day-of-year input.
func equationOfTime(date time.Time) float64 {
	d := date.YearDay()
	gamma := 2 * math.Pi * float64(d-1) / 365

	return 229.18 * (0.000075 +
		0.001868*math.Cos(gamma) -
		0.032077*math.Sin(gamma) -
		0.014615*math.Cos(2*gamma) -
		0.040849*math.Sin(2*gamma))
}
