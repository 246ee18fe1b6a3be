package mail

import (
	"fmt"
	"strings"
)

// PaymentNotifier sends billing notifications over SMTP. Implements
// billing.Notifier.
type PaymentNotifier struct {
	AppName string
}

// NewPaymentNotifier creates an SMTP-backed payment notifier.
func NewPaymentNotifier(appName string) *PaymentNotifier {
	if appName == "" {
		appName = "PayFox"
	}
	return &PaymentNotifier{AppName: appName}
}

// NotifyPaymentFailed informs the user that a subscription payment failed and
// that access lapses unless payment succeeds within the grace period.
func (n *PaymentNotifier) NotifyPaymentFailed(email string, amount int64, currency, description string) error {
	subject := fmt.Sprintf("%s: payment failed", n.AppName)
	body := fmt.Sprintf(
		"<p>We could not collect your payment of <strong>%s %.2f</strong> for %s.</p>"+
			"<p>Please update your payment method. We will retry automatically; "+
			"your plan stays active during the grace period.</p>",
		strings.ToUpper(currency), float64(amount)/100, description,
	)
	return SendMail(email, subject, body)
}
