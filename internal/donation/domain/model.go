package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	DonationStatusSucceeded = "succeeded"
	DonationStatusFailed    = "failed"

	FundRequestStatusOpen      = "open"
	FundRequestStatusFulfilled = "fulfilled"

	// SplitModeStripeConnect marks donations whose proceeds were divided
	// among peer Connect accounts rather than booked against a campaign.
	SplitModeStripeConnect = "stripe_connect"
)

type Donation struct {
	ID                    snowflake.ID      `json:"id" gorm:"primaryKey"`
	OrganizationID        snowflake.ID      `json:"organization_id" gorm:"not null;index"`
	CampaignID            *snowflake.ID     `json:"campaign_id"`
	FundRequestID         *snowflake.ID     `json:"fund_request_id"`
	EndowmentFundID       *snowflake.ID     `json:"endowment_fund_id"`
	UserID                *snowflake.ID     `json:"user_id"`
	AmountCents           int64             `json:"amount_cents" gorm:"not null"`
	Currency              string            `json:"currency" gorm:"type:text;not null"`
	DonorEmail            string            `json:"donor_email" gorm:"type:text"`
	DonorName             string            `json:"donor_name" gorm:"type:text"`
	StripePaymentIntentID string            `json:"stripe_payment_intent_id" gorm:"type:text;index"`
	StripeChargeID        string            `json:"stripe_charge_id" gorm:"type:text"`
	Status                string            `json:"status" gorm:"type:text;not null"`
	ReceiptToken          string            `json:"receipt_token" gorm:"type:text;not null"`
	Metadata              datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	CreatedAt             time.Time         `json:"created_at" gorm:"not null"`
}

func (Donation) TableName() string { return "donations" }

type DonationCampaign struct {
	ID                 snowflake.ID `json:"id" gorm:"primaryKey"`
	OrganizationID     snowflake.ID `json:"organization_id" gorm:"not null;index"`
	Title              string       `json:"title" gorm:"type:text;not null"`
	CurrentAmountCents int64        `json:"current_amount_cents" gorm:"not null"`
}

func (DonationCampaign) TableName() string { return "donation_campaigns" }

type FundRequest struct {
	ID                   snowflake.ID `json:"id" gorm:"primaryKey"`
	OrganizationID       snowflake.ID `json:"organization_id" gorm:"not null;index"`
	AmountCents          int64        `json:"amount_cents" gorm:"not null"`
	FulfilledAmountCents int64        `json:"fulfilled_amount_cents" gorm:"not null"`
	Status               string       `json:"status" gorm:"type:text;not null"`
}

func (FundRequest) TableName() string { return "fund_requests" }

type DonorSubscription struct {
	ID                   snowflake.ID  `json:"id" gorm:"primaryKey"`
	UserID               *snowflake.ID `json:"user_id"`
	OrganizationID       snowflake.ID  `json:"organization_id" gorm:"not null;index"`
	CampaignID           *snowflake.ID `json:"campaign_id"`
	StripeSubscriptionID string        `json:"stripe_subscription_id" gorm:"type:text;not null;uniqueIndex"`
	StripeCustomerID     string        `json:"stripe_customer_id" gorm:"type:text"`
	AmountCents          int64         `json:"amount_cents" gorm:"not null"`
	Currency             string        `json:"currency" gorm:"type:text;not null"`
	Interval             string        `json:"interval" gorm:"type:text;not null"`
	Status               string        `json:"status" gorm:"type:text;not null"`
	CreatedAt            time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt            time.Time     `json:"updated_at" gorm:"not null"`
}

func (DonorSubscription) TableName() string { return "donor_subscriptions" }

// SplitTransferRecord existence alone marks "peer-split transfers for this
// payment intent already executed".
type SplitTransferRecord struct {
	StripePaymentIntentID string    `json:"stripe_payment_intent_id" gorm:"primaryKey;type:text"`
	CreatedAt             time.Time `json:"created_at" gorm:"not null"`
}

func (SplitTransferRecord) TableName() string { return "split_transfer_records" }

// InternalSplitPayoutRecord is the same idempotency marker for
// organization-configured bank-account splits.
type InternalSplitPayoutRecord struct {
	StripePaymentIntentID string    `json:"stripe_payment_intent_id" gorm:"primaryKey;type:text"`
	CreatedAt             time.Time `json:"created_at" gorm:"not null"`
}

func (InternalSplitPayoutRecord) TableName() string { return "internal_split_payout_records" }

// EmailSendRecord existence is the sole de-duplication mechanism for
// notifications: at most one row per (entity type, entity id, email type).
type EmailSendRecord struct {
	EntityType string    `json:"entity_type" gorm:"primaryKey;type:text"`
	EntityID   string    `json:"entity_id" gorm:"primaryKey;type:text"`
	EmailType  string    `json:"email_type" gorm:"primaryKey;type:text"`
	SentAt     time.Time `json:"sent_at" gorm:"not null"`
}

func (EmailSendRecord) TableName() string { return "email_send_records" }

type Organization struct {
	ID                  snowflake.ID `json:"id" gorm:"primaryKey"`
	Name                string       `json:"name" gorm:"type:text;not null"`
	OwnerID             snowflake.ID `json:"owner_id" gorm:"not null"`
	StripeAccountID     string       `json:"stripe_account_id" gorm:"type:text;index"`
	OnboardingCompleted bool         `json:"onboarding_completed" gorm:"not null"`
}

func (Organization) TableName() string { return "organizations" }

// OrganizationSplit is one entry of an organization's internal split table:
// a percentage of each donation paid out to an external bank account.
type OrganizationSplit struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey"`
	OrganizationID    snowflake.ID `json:"organization_id" gorm:"not null;index"`
	Percentage        float64      `json:"percentage" gorm:"not null"`
	ExternalAccountID string       `json:"external_account_id" gorm:"type:text;not null"`
}

func (OrganizationSplit) TableName() string { return "organization_splits" }

type EndowmentFund struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	Name            string       `json:"name" gorm:"type:text;not null"`
	StripeAccountID string       `json:"stripe_account_id" gorm:"type:text"`
}

func (EndowmentFund) TableName() string { return "endowment_funds" }

type User struct {
	ID    snowflake.ID `json:"id" gorm:"primaryKey"`
	Email string       `json:"email" gorm:"type:text;not null"`
	Name  string       `json:"name" gorm:"type:text"`
}

func (User) TableName() string { return "users" }

// SavedOrganization is the donor "saved this organization" relation.
type SavedOrganization struct {
	UserID         snowflake.ID `json:"user_id" gorm:"primaryKey"`
	OrganizationID snowflake.ID `json:"organization_id" gorm:"primaryKey"`
	CreatedAt      time.Time    `json:"created_at" gorm:"not null"`
}

func (SavedOrganization) TableName() string { return "saved_organizations" }
