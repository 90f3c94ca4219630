package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	id "fasela/pkg/domain"
	dErrors "fasela/pkg/domain-errors"
)

func donatableCase() *Case {
	return &Case{
		ID:             id.NewCaseID(),
		OrganizationID: id.NewOrganizationID(),
		Title:          "Winter shelter",
		MonthlyCost:    decimal.RequireFromString("150.00"),
		MonthsNeeded:   6,
		CareType:       CareTypeSponsorship,
		Status:         CaseStatusActive,
		Published:      true,
	}
}

func TestCase_AcceptsDonations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Case)
		wantErr bool
	}{
		{"active published sponsorship", func(*Case) {}, false},
		{"one-time donation care", func(c *Case) { c.CareType = CareTypeOneTimeDonation }, false},
		{"draft", func(c *Case) { c.Status = CaseStatusDraft }, true},
		{"completed", func(c *Case) { c.Status = CaseStatusCompleted }, true},
		{"unpublished", func(c *Case) { c.Published = false }, true},
		{"care cancelled", func(c *Case) { c.CareType = CareTypeCancelled }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := donatableCase()
			tt.mutate(c)
			err := c.AcceptsDonations()
			if tt.wantErr {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCase_TargetAmount(t *testing.T) {
	c := donatableCase()
	assert.True(t, decimal.RequireFromString("900").Equal(c.TargetAmount()))

	c.MonthsNeeded = 0
	assert.True(t, c.TargetAmount().IsZero())
}

func TestCase_Validate(t *testing.T) {
	c := donatableCase()
	assert.NoError(t, c.Validate())

	c.MonthlyCost = decimal.NewFromInt(-1)
	assert.True(t, dErrors.HasCode(c.Validate(), dErrors.CodeValidation))

	c = donatableCase()
	c.Status = "paused"
	assert.Error(t, c.Validate())
}
