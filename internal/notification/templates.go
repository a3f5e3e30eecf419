package notification

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	donationdomain "github.com/givebridge/givebridge/internal/donation/domain"
)

// All interpolated user-supplied text goes through esc before landing in a
// template, so donor-controlled names cannot inject markup into the email.
func esc(s string) string {
	return html.EscapeString(s)
}

func formatAmount(amountCents int64, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(amountCents)/100, strings.ToUpper(currency))
}

// SendDonationEmails delivers the donor-facing pair for one donation: the
// "donation received" confirmation, then the receipt link. The pause between
// the two keeps dependent sends to the same recipient under the provider's
// rate ceiling; it is skipped entirely when the first send was deduplicated.
func (d *Dispatcher) SendDonationEmails(ctx context.Context, donation *donationdomain.Donation, orgName string) {
	if donation == nil {
		return
	}
	donorName := donation.DonorName
	if donorName == "" {
		donorName = "Friend"
	}
	amount := formatAmount(donation.AmountCents, donation.Currency)
	entityID := donation.ID.String()

	receivedHTML := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>Thank you for your donation of <strong>%s</strong> to %s.</p>
<p>Your generosity makes a real difference.</p>`,
		esc(donorName), esc(amount), esc(orgName),
	)
	outcome := d.Send(ctx,
		EntityDonation, entityID, EmailTypeDonorDonationReceived,
		donation.DonorEmail,
		fmt.Sprintf("Thank you for supporting %s", orgName),
		receivedHTML,
	)

	if outcome == OutcomeSent {
		d.pause()
	}

	receiptURL := d.receiptURL(donation)
	receiptHTML := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>Your receipt for the donation of <strong>%s</strong> to %s is ready.</p>
<p><a href="%s">View your receipt</a></p>`,
		esc(donorName), esc(amount), esc(orgName), receiptURL,
	)
	d.Send(ctx,
		EntityDonation, entityID, EmailTypeDonorReceipt,
		donation.DonorEmail,
		"Your donation receipt",
		receiptHTML,
	)
}

// SendOrgNewDonationEmail notifies the organization owner of a donation.
func (d *Dispatcher) SendOrgNewDonationEmail(ctx context.Context, donation *donationdomain.Donation, orgName, ownerEmail string) {
	if donation == nil {
		return
	}
	donorName := donation.DonorName
	if donorName == "" {
		donorName = "An anonymous donor"
	}
	amount := formatAmount(donation.AmountCents, donation.Currency)

	body := fmt.Sprintf(
		`<p>Good news!</p>
<p>%s just donated <strong>%s</strong> to %s.</p>`,
		esc(donorName), esc(amount), esc(orgName),
	)
	d.Send(ctx,
		EntityDonation, donation.ID.String(), EmailTypeOrgNewDonation,
		ownerEmail,
		"New donation received",
		body,
	)
}

// SendPayoutProcessedEmail notifies the organization owner that a payout
// from their connected account was paid.
func (d *Dispatcher) SendPayoutProcessedEmail(ctx context.Context, payoutID string, amountCents int64, currency, orgName, ownerEmail string) {
	amount := formatAmount(amountCents, currency)
	body := fmt.Sprintf(
		`<p>Hi,</p>
<p>A payout of <strong>%s</strong> for %s has been processed and is on its way to your bank account.</p>`,
		esc(amount), esc(orgName),
	)
	d.Send(ctx,
		EntityPayout, payoutID, EmailTypeOrgPayoutProcessed,
		ownerEmail,
		"Your payout has been processed",
		body,
	)
}

func (d *Dispatcher) receiptURL(donation *donationdomain.Donation) string {
	receipt := fmt.Sprintf("%s/receipts/%s", d.baseURL, donation.ID.String())
	if donation.ReceiptToken != "" {
		receipt += "?token=" + url.QueryEscape(donation.ReceiptToken)
	}
	return receipt
}
