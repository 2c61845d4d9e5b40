package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tesouraria/church_backend/utils"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("church_backend/models")

type CongregationSummary struct {
	ID             int       `gorm:"primary_key" json:"id"`
	CongregationId int       `gorm:"index:idx_summary_period;not null" json:"congregationId"`
	StartDate      time.Time `gorm:"type:datetime(3);index:idx_summary_period;not null" json:"startDate"`
	EndDate        time.Time `gorm:"type:datetime(3);index:idx_summary_period;not null" json:"endDate"`

	TitheValue              decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"titheValue"`
	OfferValue              decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"offerValue"`
	VotesValue              decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"votesValue"`
	EbdValue                decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"ebdValue"`
	CampaignValue           decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"campaignValue"`
	MissionValue            decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"missionValue"`
	CircleValue             decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"circleValue"`
	InstallmentReviverValue decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"installmentReviverValue"`
	EntryTotal              decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"entryTotal"`
	ExitTotal               decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"exitTotal"`
	TotalValue              decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"totalValue"`
	LaunchCount             int             `gorm:"not null;default:0" json:"launchCount"`

	DepositValue *decimal.Decimal `gorm:"type:decimal(20,2)" json:"depositValue"`
	CashValue    *decimal.Decimal `gorm:"type:decimal(20,2)" json:"cashValue"`
	TalonNumber  *string          `gorm:"size:50" json:"talonNumber"`

	SummaryType SummaryType `gorm:"type:enum('STANDARD','INSTALLMENT_REVIVER','CIRCLE');not null;default:STANDARD" json:"summaryType"`

	TreasurerApproved   bool       `gorm:"not null;default:false" json:"treasurerApproved"`
	TreasurerApprovedBy *string    `gorm:"size:100" json:"treasurerApprovedBy"`
	TreasurerApprovedAt *time.Time `json:"treasurerApprovedAt"`

	AccountantApproved   bool       `gorm:"not null;default:false" json:"accountantApproved"`
	AccountantApprovedBy *string    `gorm:"size:100" json:"accountantApprovedBy"`
	AccountantApprovedAt *time.Time `json:"accountantApprovedAt"`

	DirectorApproved   bool       `gorm:"not null;default:false" json:"directorApproved"`
	DirectorApprovedBy *string    `gorm:"size:100" json:"directorApprovedBy"`
	DirectorApprovedAt *time.Time `json:"directorApprovedAt"`

	Status    SummaryStatus `gorm:"type:enum('PENDING','APPROVED');not null;default:PENDING" json:"status"`
	CreatedBy string        `gorm:"size:100" json:"createdBy"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updatedAt"`

	Launches []Launch `gorm:"foreignKey:SummaryId" json:"launches,omitempty"`
}

func (s CongregationSummary) MarshalJSON() ([]byte, error) {
	type summaryJSON CongregationSummary
	return json.Marshal(struct {
		summaryJSON
		StartDate            string  `json:"startDate"`
		EndDate              string  `json:"endDate"`
		TreasurerApprovedAt  *string `json:"treasurerApprovedAt"`
		AccountantApprovedAt *string `json:"accountantApprovedAt"`
		DirectorApprovedAt   *string `json:"directorApprovedAt"`
		CreatedAt            string  `json:"createdAt"`
		UpdatedAt            string  `json:"updatedAt"`
	}{
		summaryJSON:          summaryJSON(s),
		StartDate:            utils.FormatISO(s.StartDate),
		EndDate:              utils.FormatISO(s.EndDate),
		TreasurerApprovedAt:  utils.FormatISOPtr(s.TreasurerApprovedAt),
		AccountantApprovedAt: utils.FormatISOPtr(s.AccountantApprovedAt),
		DirectorApprovedAt:   utils.FormatISOPtr(s.DirectorApprovedAt),
		CreatedAt:            utils.FormatISO(s.CreatedAt),
		UpdatedAt:            utils.FormatISO(s.UpdatedAt),
	})
}

// statusFor derives the overall status from the director tier.
func statusFor(directorApproved bool) SummaryStatus {
	if directorApproved {
		return SummaryStatusApproved
	}
	return SummaryStatusPending
}

type EntradaSummary struct {
	Tithe              decimal.Decimal `json:"tithe"`
	Offer              decimal.Decimal `json:"offer"`
	Votes              decimal.Decimal `json:"votes"`
	Ebd                decimal.Decimal `json:"ebd"`
	Campaign           decimal.Decimal `json:"campaign"`
	Mission            decimal.Decimal `json:"mission"`
	Circle             decimal.Decimal `json:"circle"`
	InstallmentReviver decimal.Decimal `json:"installmentReviver"`
	Total              decimal.Decimal `json:"total"`
}

type SaidaSummary struct {
	Exits decimal.Decimal `json:"exits"`
	Total decimal.Decimal `json:"total"`
}

type ApprovalSummary struct {
	TreasurerApproved  bool          `json:"treasurerApproved"`
	AccountantApproved bool          `json:"accountantApproved"`
	DirectorApproved   bool          `json:"directorApproved"`
	Status             SummaryStatus `json:"status"`
}

type SummaryPeriodResponse struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type SummaryCreateResult struct {
	EntradaSummary  EntradaSummary        `json:"entradaSummary"`
	SaidaSummary    SaidaSummary          `json:"saidaSummary"`
	ApprovalSummary ApprovalSummary       `json:"approvalSummary"`
	Launches        []Launch              `json:"launches"`
	Summary         *CongregationSummary  `json:"summary"`
	Period          SummaryPeriodResponse `json:"period"`
}

func newSummaryCreateResult(summary *CongregationSummary, launches []Launch) *SummaryCreateResult {
	return &SummaryCreateResult{
		EntradaSummary: EntradaSummary{
			Tithe:              summary.TitheValue,
			Offer:              summary.OfferValue,
			Votes:              summary.VotesValue,
			Ebd:                summary.EbdValue,
			Campaign:           summary.CampaignValue,
			Mission:            summary.MissionValue,
			Circle:             summary.CircleValue,
			InstallmentReviver: summary.InstallmentReviverValue,
			Total:              summary.EntryTotal,
		},
		SaidaSummary: SaidaSummary{
			Exits: summary.ExitTotal,
			Total: summary.ExitTotal,
		},
		ApprovalSummary: ApprovalSummary{
			TreasurerApproved:  summary.TreasurerApproved,
			AccountantApproved: summary.AccountantApproved,
			DirectorApproved:   summary.DirectorApproved,
			Status:             summary.Status,
		},
		Launches: launches,
		Summary:  summary,
		Period: SummaryPeriodResponse{
			StartDate: utils.FormatISO(summary.StartDate),
			EndDate:   utils.FormatISO(summary.EndDate),
		},
	}
}
