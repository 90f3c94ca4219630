// Package identity validates the bearer tokens minted by the external identity
// provider and turns their claims into a requestcontext.Caller.
package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "fasela/pkg/domain"
	dErrors "fasela/pkg/domain-errors"
	strutil "fasela/pkg/platform/strings"
	"fasela/pkg/requestcontext"
)

// Claims is the token payload agreed with the identity provider.
type Claims struct {
	Role            string   `json:"role"`
	OrganizationIDs []string `json:"org_ids"`
	jwt.RegisteredClaims
}

// JWTService validates HS256 tokens signed with the shared key.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateToken mints a token for the given caller. Used by tests and local tooling.
func (s *JWTService) GenerateToken(caller requestcontext.Caller, expiresIn time.Duration) (string, error) {
	orgs := make([]string, 0, len(caller.OrganizationIDs))
	for _, org := range caller.OrganizationIDs {
		orgs = append(orgs, org.String())
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:            caller.Role.String(),
		OrganizationIDs: orgs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken verifies signature, expiry, issuer and audience.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return s.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ValidateCaller validates the token and converts its claims.
func (s *JWTService) ValidateCaller(tokenString string) (requestcontext.Caller, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return requestcontext.Caller{}, err
	}
	return ToCaller(claims)
}

// ToCaller parses the claim strings into typed values. Any malformed claim
// invalidates the whole token.
func ToCaller(claims *Claims) (requestcontext.Caller, error) {
	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return requestcontext.Caller{}, dErrors.New(dErrors.CodeUnauthorized, "invalid subject claim")
	}
	role, err := id.ParseRole(claims.Role)
	if err != nil {
		return requestcontext.Caller{}, dErrors.New(dErrors.CodeUnauthorized, "invalid role claim")
	}
	raw := strutil.NormalizeList(claims.OrganizationIDs)
	orgs := make([]id.OrganizationID, 0, len(raw))
	for _, v := range raw {
		org, err := id.ParseOrganizationID(v)
		if err != nil {
			return requestcontext.Caller{}, dErrors.New(dErrors.CodeUnauthorized, "invalid org_ids claim")
		}
		orgs = append(orgs, org)
	}
	return requestcontext.Caller{UserID: userID, Role: role, OrganizationIDs: orgs}, nil
}
