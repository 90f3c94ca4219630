package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	donationmodels "fasela/internal/donation/models"
	orgmodels "fasela/internal/organization/models"
	id "fasela/pkg/domain"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestMonthsSecured(t *testing.T) {
	tests := []struct {
		confirmed, cost string
		want            int
	}{
		{"0", "100", 0},
		{"99.99", "100", 0},
		{"100", "100", 1},
		{"250", "100", 2},
		{"250", "0", 0},
		{"-10", "5", 0},
	}
	for _, tt := range tests {
		t.Run(tt.confirmed+"/"+tt.cost, func(t *testing.T) {
			assert.Equal(t, tt.want, MonthsSecured(dec(tt.confirmed), dec(tt.cost)))
		})
	}
}

func TestBuildOrganizationSummary_IncludesUnlistedCases(t *testing.T) {
	orgID := id.NewOrganizationID()
	listed := &orgmodels.Case{ID: id.NewCaseID(), OrganizationID: orgID, Title: "Luna", MonthlyCost: dec("10"), MonthsNeeded: 3}
	unlisted := id.NewCaseID()
	confirmedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	snap := &Snapshot{
		Cases: []*orgmodels.Case{listed},
		Donations: []*donationmodels.Donation{{
			ID: id.NewDonationID(), OrganizationID: orgID, CaseID: unlisted,
			Amount: dec("40"), Status: donationmodels.StatusConfirmed, ConfirmedAt: &confirmedAt,
			TotalHandedOver: decimal.Zero,
		}},
	}

	summary := BuildOrganizationSummary(orgID, snap)
	require.Equal(t, 2, summary.CaseCount)
	assert.True(t, dec("40").Equal(summary.Totals.ConfirmedAmount))
	assert.NotNil(t, summary.Faults)

	for _, c := range summary.Cases {
		if c.CaseID == listed.ID {
			assert.Equal(t, "Luna", c.Title)
			assert.True(t, dec("30").Equal(c.TargetAmount))
			assert.True(t, c.ConfirmedAmount.IsZero())
		} else {
			assert.Equal(t, unlisted, c.CaseID)
			assert.Empty(t, c.Title)
			assert.True(t, dec("40").Equal(c.RemainingAmount))
		}
	}
}

func TestDegradedDashboard(t *testing.T) {
	orgID := id.NewOrganizationID()
	d := DegradedDashboard(orgID)
	assert.True(t, d.Degraded)
	assert.Equal(t, orgID, d.OrganizationID)
	assert.NotNil(t, d.RecentMonths)
	assert.True(t, d.Totals.ConfirmedAmount.IsZero())
}
