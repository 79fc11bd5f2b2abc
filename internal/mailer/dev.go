package mailer

import (
	"fmt"

	"github.com/teebox/teebox-bookings/internal/domain"
	"github.com/teebox/teebox-bookings/pkg/logger"
)

// DevMailer prints emails to the log instead of sending them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(toEmail, toName, subject, text, html string) (string, error) {
	logger.Info("[DEV MAIL]",
		"to", toEmail,
		"name", toName,
		"subject", subject,
	)
	fmt.Printf("\n"+
		"=================================================================\n"+
		"EMAIL (DEV MODE)\n"+
		"=================================================================\n"+
		"To: %s (%s)\n"+
		"Subject: %s\n"+
		"\n"+
		"%s\n"+
		"=================================================================\n\n",
		toEmail, toName, subject, text)
	return "dev", nil
}

func (d *DevMailer) SendBookingConfirmation(toEmail, toName string, booking *domain.BookingDetail, amountCents int64) error {
	subject, text, html := formatBookingConfirmation(toName, booking, amountCents)
	_, err := d.Send(toEmail, toName, subject, text, html)
	return err
}
