package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/nba-decision-core/app/dto"
	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/repository"
	"github.com/amirphl/nba-decision-core/rules"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// HighComplaintRisk is the risk flag suppressed by ExpiringCardAudience
const HighComplaintRisk = "HIGH_COMPLAINT_RISK"

var (
	// Marketer is the actor used by fixtures for campaign edits
	Marketer = models.Actor{ID: "morgan", Role: models.RoleMarketer}
	// Legal is the actor used by fixtures for legal decisions
	Legal = models.Actor{ID: "lena", Role: models.RoleLegal}
)

// Clock is a settable time source for flows under test
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t
func NewClock(t time.Time) *Clock {
	return &Clock{now: t.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Epoch is the fixed instant tests start their clocks at
var Epoch = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

// CustomerOption adjusts a fixture customer
type CustomerOption func(*models.Customer)

// CardExpiresIn sets the card expiry relative to now
func CardExpiresIn(now time.Time, days int) CustomerOption {
	return func(c *models.Customer) {
		t := now.AddDate(0, 0, days)
		c.CreditCardExpAt = &t
	}
}

// WithRiskFlags sets the customer's risk flags
func WithRiskFlags(flags ...string) CustomerOption {
	return func(c *models.Customer) {
		c.RiskFlags = pq.StringArray(flags)
		c.RiskFlag = len(flags) > 0
	}
}

// WithoutConsent clears both consent flags
func WithoutConsent() CustomerOption {
	return func(c *models.Customer) {
		c.ConsentSMS = false
		c.ConsentEmail = false
	}
}

// NewCustomer returns an SMS-consenting customer with no card on file
func NewCustomer(name string, opts ...CustomerOption) *models.Customer {
	c := &models.Customer{
		Name:          name,
		Plan:          "Plus",
		TenureMonths:  12,
		Purchases12mo: 2,
		ConsentSMS:    true,
		RiskFlags:     pq.StringArray{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SaveCustomers stores every customer and returns them with ids assigned
func SaveCustomers(ctx context.Context, repo repository.CustomerRepository, customers ...*models.Customer) ([]*models.Customer, error) {
	if err := repo.SaveBatch(ctx, customers); err != nil {
		return nil, fmt.Errorf("failed to save fixture customers: %w", err)
	}
	return customers, nil
}

// GeneralRequest is a valid campaign running from now to 60 days out
func GeneralRequest(name string, now time.Time, priority int) *dto.CampaignGeneralRequest {
	return &dto.CampaignGeneralRequest{
		Name:              name,
		Description:       "fixture campaign",
		StartDate:         now.AddDate(0, 0, -1),
		EndDate:           now.AddDate(0, 0, 60),
		Priority:          priority,
		ArbitrationWeight: 1,
	}
}

// ExpiringCardAudience matches cards expiring within 45 days with SMS
// consent, excluding high complaint risk
func ExpiringCardAudience() *dto.SaveAudienceRequest {
	include := rules.And(
		rules.Cond(rules.FieldCreditCardExpAt, rules.OpWithinDays, 45),
		rules.Cond(rules.FieldConsentSMS, rules.OpEq, true),
	)
	exclude := rules.Cond(rules.FieldRiskFlags, rules.OpContains, HighComplaintRisk)
	return &dto.SaveAudienceRequest{Rules: rules.Audience{Include: &include, Exclude: &exclude}}
}

// TenureAudience matches every customer with at least the given tenure
func TenureAudience(months int) *dto.SaveAudienceRequest {
	include := rules.Cond(rules.FieldTenureMonths, rules.OpGte, months)
	return &dto.SaveAudienceRequest{Rules: rules.Audience{Include: &include}}
}

// ActionRequest is a valid update_payment_profile action
func ActionRequest(maxOffers int) *dto.SaveActionRequest {
	return &dto.SaveActionRequest{
		ActionType:           "update_payment_profile",
		CompletionEvent:      "PAYMENT_PROFILE_UPDATED",
		SaleChannels:         []string{"Care", "Web"},
		OfferPriority:        3,
		MaxOffersPerCustomer: maxOffers,
	}
}

// BenefitRequest is a valid percent discount with the given redemption logic
func BenefitRequest(redemption string) *dto.SaveBenefitRequest {
	return &dto.SaveBenefitRequest{
		BenefitType: "order_discount",
		Value:       decimal.NewFromInt(10),
		Unit:        "percent",
		Cap:         decimal.NewFromInt(500),
		Redemption:  redemption,
		Description: "10% off the next order",
	}
}

// CommsRequest creates one template per channel
func CommsRequest(channels ...string) *dto.UpsertCommsRequest {
	req := &dto.UpsertCommsRequest{}
	for _, ch := range channels {
		in := dto.TemplateInput{Channel: ch, Body: "Hi {{ firstName }}, update your card: {{shortUrl}}"}
		if ch == string(models.ChannelEmail) {
			in.Subject = "Your card is expiring"
		}
		req.Templates = append(req.Templates, in)
	}
	return req
}
