package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/smarttransit/segment-booking/internal/database"
	"github.com/smarttransit/segment-booking/internal/models"
)

// TicketService renders printable tickets for confirmed bookings
type TicketService struct {
	runs database.RunStore
}

// NewTicketService creates a new ticket service
func NewTicketService(runs database.RunStore) *TicketService {
	return &TicketService{runs: runs}
}

// RenderTicket returns a one-page A4 PDF for the booking.
// Cancelled bookings have no ticket.
func (s *TicketService) RenderTicket(ctx context.Context, booking *models.Booking) ([]byte, error) {
	if !booking.IsActive() {
		return nil, models.ErrInvalidInput("cancelled bookings have no ticket")
	}
	run, err := s.runs.GetRun(ctx, booking.RunID)
	if err != nil {
		return nil, err
	}

	departure, arrival := "-", "-"
	if legs, err := s.runs.ListLegs(ctx, run.ID); err == nil {
		if leg := FindLeg(legs, booking.FromSeq); leg != nil && leg.ArrivalTime != "" {
			departure = leg.ArrivalTime
		}
		if leg := FindLeg(legs, booking.ToSeq); leg != nil && leg.ArrivalTime != "" {
			arrival = leg.ArrivalTime
		}
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Ticket "+booking.Reference, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BUS TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		"Reference : " + booking.Reference,
		"Run       : " + run.Name,
		"Operator  : " + orDash(run.OperatorName),
		"Date      : " + booking.JourneyDate.Format("Monday, 02 Jan 2006"),
		fmt.Sprintf("From      : %s (%s)", booking.FromStopName, departure),
		fmt.Sprintf("To        : %s (%s)", booking.ToStopName, arrival),
		"Seat      : " + booking.SeatNumber,
		fmt.Sprintf("Fare      : %.2f", booking.Amount),
	}
	for _, line := range lines {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Valid for one passenger on the seat and segment shown. Issued "+time.Now().Format("2006-01-02 15:04")+".", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render ticket: %w", err)
	}
	return buf.Bytes(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
