package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/givebridge/givebridge/internal/donation/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// donationColumns names every donation column except created_at: sqlite
// hands TIMESTAMPTZ values back as text, which cannot scan into time.Time,
// and the lookups below never need the timestamp.
const donationColumns = `id, organization_id, campaign_id, fund_request_id, endowment_fund_id,
	user_id, amount_cents, currency, donor_email, donor_name,
	stripe_payment_intent_id, stripe_charge_id, status, receipt_token, metadata`

func (r *repo) FindDonationByPaymentIntent(ctx context.Context, db *gorm.DB, paymentIntentID string) (*domain.Donation, error) {
	var item domain.Donation
	err := db.WithContext(ctx).Raw(
		`SELECT `+donationColumns+` FROM donations
		 WHERE stripe_payment_intent_id = ?
		 LIMIT 1`,
		paymentIntentID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindDonationByCharge(ctx context.Context, db *gorm.DB, chargeID string) (*domain.Donation, error) {
	var item domain.Donation
	err := db.WithContext(ctx).Raw(
		`SELECT `+donationColumns+` FROM donations
		 WHERE stripe_charge_id = ?
		 LIMIT 1`,
		chargeID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindDonationByInvoiceMarker(ctx context.Context, db *gorm.DB, invoiceID string) (*domain.Donation, error) {
	var item domain.Donation
	err := db.WithContext(ctx).
		Model(&domain.Donation{}).
		Select(donationColumns).
		Where(datatypes.JSONQuery("metadata").Equals(invoiceID, "stripe_invoice_id")).
		Limit(1).
		Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertDonation(ctx context.Context, db *gorm.DB, donation *domain.Donation) error {
	return db.WithContext(ctx).Create(donation).Error
}

func (r *repo) MarkDonationFailed(ctx context.Context, db *gorm.DB, paymentIntentID string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE donations
		 SET status = ?
		 WHERE stripe_payment_intent_id = ?`,
		domain.DonationStatusFailed,
		paymentIntentID,
	).Error
}

func (r *repo) IncrementCampaignTotal(ctx context.Context, db *gorm.DB, campaignID snowflake.ID, amountCents int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE donation_campaigns
		 SET current_amount_cents = current_amount_cents + ?
		 WHERE id = ?`,
		amountCents,
		campaignID,
	).Error
}

func (r *repo) ApplyFundRequestFulfillment(ctx context.Context, db *gorm.DB, fundRequestID snowflake.ID, amountCents int64) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row domain.FundRequest
		if err := tx.Raw(
			`SELECT * FROM fund_requests WHERE id = ? LIMIT 1`,
			fundRequestID,
		).Scan(&row).Error; err != nil {
			return err
		}
		if row.ID == 0 {
			return nil
		}

		fulfilled := row.FulfilledAmountCents + amountCents
		status := row.Status
		// One-directional transition: a fulfilled request never reopens here.
		if fulfilled >= row.AmountCents {
			status = domain.FundRequestStatusFulfilled
		}

		return tx.Exec(
			`UPDATE fund_requests
			 SET fulfilled_amount_cents = ?, status = ?
			 WHERE id = ?`,
			fulfilled,
			status,
			fundRequestID,
		).Error
	})
}

func (r *repo) HasSplitTransferRecord(ctx context.Context, db *gorm.DB, paymentIntentID string) (bool, error) {
	return r.markerExists(ctx, db, "split_transfer_records", paymentIntentID)
}

func (r *repo) InsertSplitTransferRecord(ctx context.Context, db *gorm.DB, paymentIntentID string) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO split_transfer_records (stripe_payment_intent_id, created_at)
		 VALUES (?, ?)
		 ON CONFLICT (stripe_payment_intent_id) DO NOTHING`,
		paymentIntentID,
		time.Now().UTC(),
	).Error
}

func (r *repo) HasInternalSplitPayoutRecord(ctx context.Context, db *gorm.DB, paymentIntentID string) (bool, error) {
	return r.markerExists(ctx, db, "internal_split_payout_records", paymentIntentID)
}

func (r *repo) InsertInternalSplitPayoutRecord(ctx context.Context, db *gorm.DB, paymentIntentID string) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO internal_split_payout_records (stripe_payment_intent_id, created_at)
		 VALUES (?, ?)
		 ON CONFLICT (stripe_payment_intent_id) DO NOTHING`,
		paymentIntentID,
		time.Now().UTC(),
	).Error
}

func (r *repo) markerExists(ctx context.Context, db *gorm.DB, table string, paymentIntentID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM `+table+` WHERE stripe_payment_intent_id = ?`,
		paymentIntentID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) HasEmailSendRecord(ctx context.Context, db *gorm.DB, entityType, entityID, emailType string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM email_send_records
		 WHERE entity_type = ? AND entity_id = ? AND email_type = ?`,
		entityType,
		entityID,
		emailType,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) InsertEmailSendRecord(ctx context.Context, db *gorm.DB, entityType, entityID, emailType string) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO email_send_records (entity_type, entity_id, email_type, sent_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (entity_type, entity_id, email_type) DO NOTHING`,
		entityType,
		entityID,
		emailType,
		time.Now().UTC(),
	).Error
}

func (r *repo) FindOrganizationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Organization, error) {
	var item domain.Organization
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM organizations WHERE id = ? LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindOrganizationByAccountID(ctx context.Context, db *gorm.DB, stripeAccountID string) (*domain.Organization, error) {
	var item domain.Organization
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM organizations WHERE stripe_account_id = ? LIMIT 1`,
		stripeAccountID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdateOrganizationOnboarding(ctx context.Context, db *gorm.DB, stripeAccountID string, completed bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE organizations
		 SET onboarding_completed = ?
		 WHERE stripe_account_id = ?`,
		completed,
		stripeAccountID,
	).Error
}

func (r *repo) ListOrganizationSplits(ctx context.Context, db *gorm.DB, organizationID snowflake.ID) ([]domain.OrganizationSplit, error) {
	var rows []domain.OrganizationSplit
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM organization_splits WHERE organization_id = ?`,
		organizationID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) FindEndowmentFund(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.EndowmentFund, error) {
	var item domain.EndowmentFund
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM endowment_funds WHERE id = ? LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindUserEmail(ctx context.Context, db *gorm.DB, userID snowflake.ID) (string, error) {
	var email string
	err := db.WithContext(ctx).Raw(
		`SELECT email FROM users WHERE id = ? LIMIT 1`,
		userID,
	).Scan(&email).Error
	if err != nil {
		return "", err
	}
	return email, nil
}

func (r *repo) UpsertSavedOrganization(ctx context.Context, db *gorm.DB, userID, organizationID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO saved_organizations (user_id, organization_id, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (user_id, organization_id) DO NOTHING`,
		userID,
		organizationID,
		time.Now().UTC(),
	).Error
}

func (r *repo) UpsertDonorSubscription(ctx context.Context, db *gorm.DB, subscription *domain.DonorSubscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO donor_subscriptions (
			id, user_id, organization_id, campaign_id, stripe_subscription_id,
			stripe_customer_id, amount_cents, currency, "interval", status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (stripe_subscription_id) DO UPDATE SET
			stripe_customer_id = excluded.stripe_customer_id,
			amount_cents = excluded.amount_cents,
			currency = excluded.currency,
			"interval" = excluded."interval",
			status = excluded.status,
			updated_at = excluded.updated_at`,
		subscription.ID,
		subscription.UserID,
		subscription.OrganizationID,
		subscription.CampaignID,
		subscription.StripeSubscriptionID,
		subscription.StripeCustomerID,
		subscription.AmountCents,
		subscription.Currency,
		subscription.Interval,
		subscription.Status,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

func (r *repo) UpdateDonorSubscriptionStatus(ctx context.Context, db *gorm.DB, stripeSubscriptionID, status string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE donor_subscriptions
		 SET status = ?, updated_at = ?
		 WHERE stripe_subscription_id = ?`,
		status,
		time.Now().UTC(),
		stripeSubscriptionID,
	).Error
}
