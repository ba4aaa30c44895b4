// Package seed loads a demo dataset: a customer snapshot and two campaigns
// at different points of their lifecycle
package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/nba-decision-core/app/dto"
	businessflow "github.com/amirphl/nba-decision-core/business_flow"
	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/repository"
	"github.com/amirphl/nba-decision-core/rules"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// HighComplaintRisk is the risk flag the demo audiences suppress
const HighComplaintRisk = "HIGH_COMPLAINT_RISK"

var (
	firstNames = []string{"Alex", "Sam", "Chris", "Jordan", "Taylor", "Jamie"}
	lastNames  = []string{"Lee", "Patel", "Garcia", "Nguyen", "Kim", "Brown"}
	plans      = []string{"Basic", "Plus", "Premium"}
)

// Result lists what a seed run created
type Result struct {
	Customers int    `json:"customers"`
	Campaigns []uint `json:"campaigns"`
}

// Customers builds n deterministic customers whose card expiry dates are spread
// over the next 10 to 99 days
func Customers(n int, now time.Time) []*models.Customer {
	customers := make([]*models.Customer, 0, n)
	for i := range n {
		expiry := now.AddDate(0, 0, 10+i%90)
		purchases := i % 5
		if i%3 == 0 {
			purchases += 2
		}
		var flags pq.StringArray
		if i%17 == 0 {
			flags = pq.StringArray{HighComplaintRisk}
		}
		customers = append(customers, &models.Customer{
			Name:            fmt.Sprintf("%s %s", firstNames[i%6], lastNames[i%6]),
			Plan:            plans[i%len(plans)],
			TenureMonths:    2 + i%48,
			Purchases12mo:   purchases,
			Complaints12mo:  i % 4,
			RiskFlag:        len(flags) > 0,
			ConsentSMS:      i%2 == 0,
			ConsentEmail:    i%3 != 0,
			ABPEnrolled:     i%4 == 0,
			CreditCardExpAt: &expiry,
			RiskFlags:       flags,
		})
	}
	return customers
}

// Run stores n customers and the demo campaigns. It is not idempotent: a
// second run fails on the campaign name constraint.
func Run(ctx context.Context, customers repository.CustomerRepository, flows *businessflow.Flows, n int, now time.Time, actor models.Actor) (*Result, error) {
	batch := Customers(n, now)
	if err := customers.SaveBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to seed customers: %w", err)
	}
	log.Printf("Seeded %d customers", len(batch))

	result := &Result{Customers: len(batch)}

	expiring, err := seedExpiringCard(ctx, flows, now, actor)
	if err != nil {
		return nil, err
	}
	result.Campaigns = append(result.Campaigns, expiring)

	profile, err := seedCompleteProfile(ctx, flows, now, actor)
	if err != nil {
		return nil, err
	}
	result.Campaigns = append(result.Campaigns, profile)

	return result, nil
}

func seedExpiringCard(ctx context.Context, flows *businessflow.Flows, now time.Time, actor models.Actor) (uint, error) {
	campaign, err := flows.Campaigns.Create(ctx, &dto.CampaignGeneralRequest{
		Name:              "Credit Card Expiration Date",
		Description:       "Prompt customers to update expiring payment methods before service is interrupted.",
		StartDate:         now.AddDate(0, 0, 3),
		EndDate:           now.AddDate(0, 0, 60),
		Priority:          3,
		ArbitrationWeight: 6.5,
	}, actor)
	if err != nil {
		return 0, fmt.Errorf("failed to seed campaign: %w", err)
	}

	exclude := rules.Cond(rules.FieldRiskFlags, rules.OpContains, HighComplaintRisk)
	include := rules.And(
		rules.Cond(rules.FieldCreditCardExpAt, rules.OpWithinDays, 45),
		rules.Cond(rules.FieldConsentSMS, rules.OpEq, true),
	)
	if _, err := flows.Audiences.SaveAudience(ctx, campaign.ID, &dto.SaveAudienceRequest{
		Rules: rules.Audience{Include: &include, Exclude: &exclude},
	}, actor); err != nil {
		return 0, err
	}

	if _, err := flows.Offers.SaveAction(ctx, campaign.ID, &dto.SaveActionRequest{
		ActionType:           "update_payment_profile",
		CompletionEvent:      "PAYMENT_PROFILE_UPDATED",
		SaleChannels:         []string{"Care", "Store"},
		OfferPriority:        3,
		MaxOffersPerCustomer: 3,
	}, actor); err != nil {
		return 0, err
	}

	if _, err := flows.Comms.UpsertComms(ctx, campaign.ID, &dto.UpsertCommsRequest{
		Templates: []dto.TemplateInput{
			{Channel: "SMS", Body: "Dear {{firstName}}, your registered card expires soon. Update it to avoid interruption: {{shortUrl}}"},
			{Channel: "Memo", Body: "Payment method update required: the customer's card is expiring soon."},
		},
	}, actor); err != nil {
		return 0, err
	}
	return campaign.ID, nil
}

func seedCompleteProfile(ctx context.Context, flows *businessflow.Flows, now time.Time, actor models.Actor) (uint, error) {
	campaign, err := flows.Campaigns.Create(ctx, &dto.CampaignGeneralRequest{
		Name:              "Complete Profile, Get 10% Off",
		Description:       "Drive profile completion with a lightweight incentive.",
		StartDate:         now.AddDate(0, 0, 1),
		EndDate:           now.AddDate(0, 0, 30),
		Priority:          2,
		ArbitrationWeight: 7,
	}, actor)
	if err != nil {
		return 0, fmt.Errorf("failed to seed campaign: %w", err)
	}

	include := rules.Cond(rules.FieldTenureMonths, rules.OpGte, 1)
	if _, err := flows.Audiences.SaveAudience(ctx, campaign.ID, &dto.SaveAudienceRequest{
		Rules: rules.Audience{Include: &include},
	}, actor); err != nil {
		return 0, err
	}

	if _, err := flows.Offers.SaveAction(ctx, campaign.ID, &dto.SaveActionRequest{
		ActionType:           "complete_profile",
		CompletionEvent:      "PROFILE_COMPLETED",
		SaleChannels:         []string{"SelfService"},
		OfferPriority:        2,
		MaxOffersPerCustomer: 2,
	}, actor); err != nil {
		return 0, err
	}

	if _, err := flows.Offers.SaveBenefit(ctx, campaign.ID, &dto.SaveBenefitRequest{
		BenefitType: "order_discount",
		Value:       decimal.NewFromInt(10),
		Unit:        "percent",
		Cap:         decimal.NewFromInt(50000),
		Exclusions:  []string{"HOLIDAY_PROMO_2025"},
		Redemption:  "auto_apply",
		Description: "10% off the next add-on after completing the profile.",
	}, actor); err != nil {
		return 0, err
	}

	if _, err := flows.Comms.UpsertComms(ctx, campaign.ID, &dto.UpsertCommsRequest{
		Templates: []dto.TemplateInput{
			{Channel: "SMS", Body: "Hi {{firstName}}, complete your profile today and get 10% off your next add-on. {{shortUrl}}"},
			{Channel: "Email", Subject: "Finish your profile and save 10%", Body: "Hi {{firstName}}, complete your profile to unlock 10% off. {{ctaUrl}}"},
		},
	}, actor); err != nil {
		return 0, err
	}

	for _, status := range []models.CampaignStatus{models.CampaignStatusSubmitted, models.CampaignStatusInLegalReview} {
		if _, err := flows.Lifecycle.Transition(ctx, campaign.ID, status.String(), actor); err != nil {
			return 0, err
		}
	}
	return campaign.ID, nil
}
