package repository

import "gorm.io/gorm"

// Set bundles every repository the decision core needs together with the
// transactor they share
type Set struct {
	Tx        Transactor
	Campaigns CampaignRepository
	Versions  CampaignVersionRepository
	Audiences AudienceConfigRepository
	Actions   ActionConfigRepository
	Benefits  BenefitConfigRepository
	Templates CommTemplateRepository
	Approvals LegalApprovalRepository
	Customers CustomerRepository
	Scores    ArbitrationScoreRepository
	Audits    AuditEntryRepository
	Offers    OfferAssignmentRepository
}

// NewSet builds the gorm implementations over one database handle
func NewSet(db *gorm.DB) Set {
	return Set{
		Tx:        NewGormTransactor(db),
		Campaigns: NewCampaignRepository(db),
		Versions:  NewCampaignVersionRepository(db),
		Audiences: NewAudienceConfigRepository(db),
		Actions:   NewActionConfigRepository(db),
		Benefits:  NewBenefitConfigRepository(db),
		Templates: NewCommTemplateRepository(db),
		Approvals: NewLegalApprovalRepository(db),
		Customers: NewCustomerRepository(db),
		Scores:    NewArbitrationScoreRepository(db),
		Audits:    NewAuditEntryRepository(db),
		Offers:    NewOfferAssignmentRepository(db),
	}
}
