package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "fasela/pkg/domain"
	dErrors "fasela/pkg/domain-errors"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStatus_CanTransitionTo(t *testing.T) {
	all := []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusRedeemed}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusConfirmed}: true,
		{StatusPending, StatusCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestDonation_ConfirmAndCancel(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	actor := id.NewUserID()

	t.Run("confirm stamps receipt", func(t *testing.T) {
		d := &Donation{Status: StatusPending, Amount: dec("50")}
		require.NoError(t, d.CanConfirm())
		d.ApplyConfirmation("BANK-1", "seen on statement", actor, now)

		assert.Equal(t, StatusConfirmed, d.Status)
		assert.Equal(t, "BANK-1", d.PaymentReference)
		assert.Equal(t, now, *d.ConfirmedAt)
		assert.Equal(t, actor, *d.ConfirmedBy)
	})

	t.Run("terminal states reject every transition", func(t *testing.T) {
		for _, s := range []Status{StatusConfirmed, StatusCancelled, StatusRedeemed} {
			d := &Donation{Status: s}
			assert.True(t, dErrors.HasCode(d.CanConfirm(), dErrors.CodeInvalidTransition), s)
			assert.True(t, dErrors.HasCode(d.CanCancel(), dErrors.CodeInvalidTransition), s)
		}
	})

	t.Run("cancel keeps earlier notes when none given", func(t *testing.T) {
		d := &Donation{Status: StatusPending, AdminNotes: "called donor"}
		require.NoError(t, d.CanCancel())
		d.ApplyCancellation("", now)
		assert.Equal(t, StatusCancelled, d.Status)
		assert.Equal(t, "called donor", d.AdminNotes)
		assert.Equal(t, now, *d.CancelledAt)
	})
}

func TestDonation_HandedOverAndRemaining(t *testing.T) {
	d := &Donation{Status: StatusConfirmed, Amount: dec("100"), TotalHandedOver: dec("30")}
	assert.True(t, dec("30").Equal(d.HandedOver()))
	assert.True(t, dec("70").Equal(d.Remaining()))

	legacy := &Donation{Status: StatusRedeemed, Amount: dec("80")}
	assert.True(t, dec("80").Equal(legacy.HandedOver()))
	assert.True(t, legacy.Remaining().IsZero())
}

func TestCreateDonationRequest_Validate(t *testing.T) {
	valid := func() CreateDonationRequest {
		return CreateDonationRequest{
			CaseID:        id.NewCaseID(),
			Amount:        dec("25.00"),
			DonationType:  DonationTypeMonthly,
			MonthsPledged: 3,
			DonorEmail:    "  Ana@Example.org ",
		}
	}

	tests := []struct {
		name   string
		mutate func(r *CreateDonationRequest)
		ok     bool
	}{
		{"valid monthly", func(*CreateDonationRequest) {}, true},
		{"custom defaults months", func(r *CreateDonationRequest) { r.DonationType = DonationTypeCustom; r.MonthsPledged = 0 }, true},
		{"zero amount", func(r *CreateDonationRequest) { r.Amount = decimal.Zero }, false},
		{"negative amount", func(r *CreateDonationRequest) { r.Amount = dec("-5") }, false},
		{"sub-cent amount", func(r *CreateDonationRequest) { r.Amount = dec("1.005") }, false},
		{"unknown type", func(r *CreateDonationRequest) { r.DonationType = "yearly" }, false},
		{"monthly without months", func(r *CreateDonationRequest) { r.MonthsPledged = 0 }, false},
		{"bad email", func(r *CreateDonationRequest) { r.DonorEmail = "not-an-email" }, false},
		{"missing case", func(r *CreateDonationRequest) { r.CaseID = id.CaseID{} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			r.Normalize()
			err := r.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), err)
		})
	}

	r := valid()
	r.Normalize()
	assert.Equal(t, "ana@example.org", r.DonorEmail)
}

func TestListFilter(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	caseID := id.NewCaseID()

	f := ListFilter{CaseID: &caseID, Statuses: []Status{StatusPending}, From: &from, To: &to, Limit: 1000}
	f.Normalize()
	require.NoError(t, f.Validate())
	assert.Equal(t, MaxListLimit, f.Limit)

	in := &Donation{CaseID: caseID, Status: StatusPending, CreatedAt: from}
	assert.True(t, f.Matches(in))
	assert.False(t, f.Matches(&Donation{CaseID: caseID, Status: StatusPending, CreatedAt: to}), "to is exclusive")
	assert.False(t, f.Matches(&Donation{CaseID: caseID, Status: StatusConfirmed, CreatedAt: from}))
	assert.False(t, f.Matches(&Donation{CaseID: id.NewCaseID(), Status: StatusPending, CreatedAt: from}))

	bad := ListFilter{Statuses: []Status{"lost"}}
	assert.Error(t, bad.Validate())
	inverted := ListFilter{From: &to, To: &from}
	assert.Error(t, inverted.Validate())
}
