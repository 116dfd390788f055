package services

import (
	"fmt"
	"math"
	"sort"

	"github.com/smarttransit/segment-booking/internal/models"
)

// roundFare keeps money at two decimal places
func roundFare(v float64) float64 {
	return math.Round(v*100) / 100
}

// SortLegs returns a copy of legs ordered by sequence
func SortLegs(legs []models.Leg) []models.Leg {
	out := make([]models.Leg, len(legs))
	copy(out, legs)
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceOrder < out[j].SequenceOrder })
	return out
}

// BuildCumulativeFares returns legs in sequence order with CumulativeFare set
// to the running total of PriceFromPrev. The first leg keeps its own
// increment, which is zero for a true origin.
func BuildCumulativeFares(legs []models.Leg) []models.Leg {
	out := SortLegs(legs)
	total := 0.0
	for i := range out {
		total = roundFare(total + out[i].PriceFromPrev)
		out[i].CumulativeFare = total
	}
	return out
}

// FindLeg returns the leg at seq, or nil
func FindLeg(legs []models.Leg, seq int) *models.Leg {
	for i := range legs {
		if legs[i].SequenceOrder == seq {
			return &legs[i]
		}
	}
	return nil
}

// Fare is cumulative(toSeq) - cumulative(fromSeq). Both legs must exist
// and fromSeq must come strictly before toSeq.
func Fare(legs []models.Leg, fromSeq, toSeq int) (float64, error) {
	if fromSeq >= toSeq {
		return 0, fmt.Errorf("%w: from_seq %d must be less than to_seq %d", models.ErrInvalidSegment, fromSeq, toSeq)
	}
	from := FindLeg(legs, fromSeq)
	if from == nil {
		return 0, fmt.Errorf("%w: no stop with sequence %d", models.ErrInvalidSegment, fromSeq)
	}
	to := FindLeg(legs, toSeq)
	if to == nil {
		return 0, fmt.Errorf("%w: no stop with sequence %d", models.ErrInvalidSegment, toSeq)
	}
	return roundFare(to.CumulativeFare - from.CumulativeFare), nil
}

// NeedsRepair reports whether the stored cumulative column has drifted
// from the prefix sum, including the non-positive-past-origin corruption.
func NeedsRepair(legs []models.Leg) bool {
	sorted := SortLegs(legs)
	rebuilt := BuildCumulativeFares(sorted)
	for i := range sorted {
		if i > 0 && sorted[i].CumulativeFare <= 0 && rebuilt[i].CumulativeFare > 0 {
			return true
		}
		if math.Abs(sorted[i].CumulativeFare-rebuilt[i].CumulativeFare) >= 0.005 {
			return true
		}
	}
	return false
}

// TotalFare sums the amounts of a multi-seat booking
func TotalFare(bookings []models.Booking) float64 {
	total := 0.0
	for _, b := range bookings {
		total += b.Amount
	}
	return roundFare(total)
}
