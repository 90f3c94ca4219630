package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "fasela/pkg/domain"
	dErrors "fasela/pkg/domain-errors"
	"fasela/pkg/requestcontext"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-key", "fasela-idp", "fasela-ledger")
	org := id.NewOrganizationID()
	caller := requestcontext.Caller{
		UserID:          id.NewUserID(),
		Role:            id.RoleAdmin,
		OrganizationIDs: []id.OrganizationID{org, org},
	}

	token, err := svc.GenerateToken(caller, time.Minute)
	require.NoError(t, err)

	got, err := svc.ValidateCaller(token)
	require.NoError(t, err)
	assert.Equal(t, caller.UserID, got.UserID)
	assert.Equal(t, id.RoleAdmin, got.Role)
	assert.Equal(t, []id.OrganizationID{org}, got.OrganizationIDs, "duplicate org claims collapse")
}

func TestJWTService_Rejections(t *testing.T) {
	svc := NewJWTService("test-key", "fasela-idp", "fasela-ledger")
	caller := requestcontext.Caller{UserID: id.NewUserID(), Role: id.RoleVolunteer}

	t.Run("expired token", func(t *testing.T) {
		token, err := svc.GenerateToken(caller, -time.Minute)
		require.NoError(t, err)
		_, err = svc.ValidateCaller(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewJWTService("other-key", "fasela-idp", "fasela-ledger")
		token, err := other.GenerateToken(caller, time.Minute)
		require.NoError(t, err)
		_, err = svc.ValidateCaller(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong audience", func(t *testing.T) {
		other := NewJWTService("test-key", "fasela-idp", "someone-else")
		token, err := other.GenerateToken(caller, time.Minute)
		require.NoError(t, err)
		_, err = svc.ValidateCaller(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateCaller("not-a-jwt")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestToCaller_RejectsMalformedClaims(t *testing.T) {
	_, err := ToCaller(&Claims{Role: "admin", OrganizationIDs: []string{"nope"}})
	assert.Error(t, err)

	claims := &Claims{Role: "superuser"}
	claims.Subject = id.NewUserID().String()
	_, err = ToCaller(claims)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
