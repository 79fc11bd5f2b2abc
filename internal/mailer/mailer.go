package mailer

import (
	"fmt"
	"strings"

	"github.com/teebox/teebox-bookings/internal/domain"
)

type Service interface {
	Send(toEmail, toName, subject, text, html string) (string, error)
	SendBookingConfirmation(toEmail, toName string, booking *domain.BookingDetail, amountCents int64) error
}

// formatBookingConfirmation renders the confirmation email bodies shared by
// every mailer implementation.
func formatBookingConfirmation(toName string, booking *domain.BookingDetail, amountCents int64) (subject, text, html string) {
	subject = fmt.Sprintf("Your TeeBox booking #%d is confirmed", booking.ID)

	var lines []string
	var htmlRows []string
	for _, s := range booking.Slots {
		line := fmt.Sprintf("%s  %s - %s  (%s)",
			s.StartTime.Format("Mon Jan 2"),
			s.StartTime.Format("15:04"),
			s.EndTime.Format("15:04"),
			s.BayName,
		)
		lines = append(lines, line)
		htmlRows = append(htmlRows, "<li>"+line+"</li>")
	}

	amount := fmt.Sprintf("$%.2f", float64(amountCents)/100)
	text = fmt.Sprintf("Hi %s,\n\nYour simulator booking is confirmed.\n\n%s\n\nTotal charged: %s\n\nSee you at the tee!",
		toName, strings.Join(lines, "\n"), amount)
	html = fmt.Sprintf(`<p>Hi %s,</p><p>Your simulator booking is confirmed.</p><ul>%s</ul><p>Total charged: <b>%s</b></p><p>See you at the tee!</p>`,
		toName, strings.Join(htmlRows, ""), amount)
	return subject, text, html
}
