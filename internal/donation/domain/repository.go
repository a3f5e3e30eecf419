package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidEvent = errors.New("invalid payment event")
)

// Repository is the entity read/write surface the event processor uses.
// Finders return (nil, nil) when no row matches.
type Repository interface {
	FindDonationByPaymentIntent(ctx context.Context, db *gorm.DB, paymentIntentID string) (*Donation, error)
	FindDonationByCharge(ctx context.Context, db *gorm.DB, chargeID string) (*Donation, error)
	FindDonationByInvoiceMarker(ctx context.Context, db *gorm.DB, invoiceID string) (*Donation, error)
	InsertDonation(ctx context.Context, db *gorm.DB, donation *Donation) error
	MarkDonationFailed(ctx context.Context, db *gorm.DB, paymentIntentID string) error

	IncrementCampaignTotal(ctx context.Context, db *gorm.DB, campaignID snowflake.ID, amountCents int64) error
	ApplyFundRequestFulfillment(ctx context.Context, db *gorm.DB, fundRequestID snowflake.ID, amountCents int64) error

	HasSplitTransferRecord(ctx context.Context, db *gorm.DB, paymentIntentID string) (bool, error)
	InsertSplitTransferRecord(ctx context.Context, db *gorm.DB, paymentIntentID string) error
	HasInternalSplitPayoutRecord(ctx context.Context, db *gorm.DB, paymentIntentID string) (bool, error)
	InsertInternalSplitPayoutRecord(ctx context.Context, db *gorm.DB, paymentIntentID string) error

	HasEmailSendRecord(ctx context.Context, db *gorm.DB, entityType, entityID, emailType string) (bool, error)
	InsertEmailSendRecord(ctx context.Context, db *gorm.DB, entityType, entityID, emailType string) error

	FindOrganizationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Organization, error)
	FindOrganizationByAccountID(ctx context.Context, db *gorm.DB, stripeAccountID string) (*Organization, error)
	UpdateOrganizationOnboarding(ctx context.Context, db *gorm.DB, stripeAccountID string, completed bool) error
	ListOrganizationSplits(ctx context.Context, db *gorm.DB, organizationID snowflake.ID) ([]OrganizationSplit, error)

	FindEndowmentFund(ctx context.Context, db *gorm.DB, id snowflake.ID) (*EndowmentFund, error)
	FindUserEmail(ctx context.Context, db *gorm.DB, userID snowflake.ID) (string, error)
	UpsertSavedOrganization(ctx context.Context, db *gorm.DB, userID, organizationID snowflake.ID) error

	UpsertDonorSubscription(ctx context.Context, db *gorm.DB, subscription *DonorSubscription) error
	UpdateDonorSubscriptionStatus(ctx context.Context, db *gorm.DB, stripeSubscriptionID, status string) error
}
