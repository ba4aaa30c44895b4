// Package businessflow contains the business logic for the application.
package businessflow

import (
	"log"
	"time"

	"github.com/amirphl/nba-decision-core/repository"
	"github.com/amirphl/nba-decision-core/scoring"
	"github.com/amirphl/nba-decision-core/utils"
)

// Options carries the optional collaborators of the flow graph. Nil
// interfaces switch the matching feature off.
type Options struct {
	Publisher  AuditPublisher
	Cache      AudienceCache
	Uploader   Uploader
	Profile    scoring.Profile
	SampleSize int
	Now        func() time.Time
	Logger     *log.Logger
}

// Flows is the fully wired set of business flows
type Flows struct {
	Audit       AuditTrail
	Versions    VersionManager
	Lifecycle   LifecycleFlow
	Arbitration ArbitrationFlow
	Campaigns   CampaignFlow
	Audiences   AudienceFlow
	Offers      OfferFlow
	Comms       CommsFlow
	Simulation  SimulationFlow
	Export      ExportFlow
}

// NewFlows builds every flow on top of one repository set so they share a
// transactor and an audit trail
func NewFlows(repos repository.Set, opts Options) *Flows {
	if opts.Now == nil {
		opts.Now = utils.UTCNow
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Profile == (scoring.Profile{}) {
		opts.Profile = scoring.DefaultProfile()
	}

	audit := NewAuditTrail(repos.Audits, repos.Tx, opts.Publisher, opts.Logger)
	versions := NewVersionManager(
		repos.Campaigns, repos.Versions, repos.Audiences, repos.Actions,
		repos.Benefits, repos.Templates, audit,
	)
	lifecycle := NewLifecycleFlow(repos.Campaigns, repos.Templates, audit, opts.Now, opts.Logger)

	return &Flows{
		Audit:     audit,
		Versions:  versions,
		Lifecycle: lifecycle,
		Arbitration: NewArbitrationFlow(
			repos.Campaigns, repos.Customers, repos.Audiences, repos.Actions,
			repos.Benefits, repos.Scores, lifecycle, audit, opts.Profile, opts.Now, opts.Logger,
		),
		Campaigns: NewCampaignFlow(
			repos.Campaigns, repos.Versions, repos.Audiences, repos.Actions,
			repos.Benefits, repos.Templates, versions, lifecycle, audit, opts.Logger,
		),
		Audiences: NewAudienceFlow(
			repos.Campaigns, repos.Audiences, repos.Customers, versions,
			opts.Cache, opts.SampleSize, opts.Now, opts.Logger,
		),
		Offers: NewOfferFlow(repos.Actions, repos.Benefits, versions, opts.Logger),
		Comms:  NewCommsFlow(repos.Templates, repos.Approvals, versions, audit, opts.Now, opts.Logger),
		Simulation: NewSimulationFlow(
			repos.Campaigns, repos.Audiences, repos.Actions, repos.Benefits,
			repos.Customers, repos.Offers, audit, opts.Now, opts.Logger,
		),
		Export: NewExportFlow(repos.Audits, repos.Scores, opts.Uploader, opts.Logger),
	}
}
