package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "fasela/pkg/domain-errors"
)

// Typed identifiers keep organization, case, donation and handover keys from being
// swapped at call sites. All are UUIDs underneath.
type (
	OrganizationID uuid.UUID
	CaseID         uuid.UUID
	DonationID     uuid.UUID
	HandoverID     uuid.UUID
	UserID         uuid.UUID
)

// maxIDLength bounds input before handing it to the UUID parser.
const maxIDLength = 45

func parseUUID[T ~[16]byte](s, label string) (T, error) {
	var zero T
	if strings.TrimSpace(s) == "" {
		return zero, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(s) > maxIDLength {
		return zero, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return zero, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return zero, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return T(u), nil
}

// ParseOrganizationID validates external input and returns an OrganizationID.
func ParseOrganizationID(s string) (OrganizationID, error) {
	return parseUUID[OrganizationID](s, "organization id")
}

// ParseCaseID validates external input and returns a CaseID.
func ParseCaseID(s string) (CaseID, error) {
	return parseUUID[CaseID](s, "case id")
}

// ParseDonationID validates external input and returns a DonationID.
func ParseDonationID(s string) (DonationID, error) {
	return parseUUID[DonationID](s, "donation id")
}

// ParseHandoverID validates external input and returns a HandoverID.
func ParseHandoverID(s string) (HandoverID, error) {
	return parseUUID[HandoverID](s, "handover id")
}

// ParseUserID validates external input and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	return parseUUID[UserID](s, "user id")
}

func NewOrganizationID() OrganizationID { return OrganizationID(uuid.New()) }
func NewCaseID() CaseID                 { return CaseID(uuid.New()) }
func NewDonationID() DonationID         { return DonationID(uuid.New()) }
func NewHandoverID() HandoverID         { return HandoverID(uuid.New()) }
func NewUserID() UserID                 { return UserID(uuid.New()) }

func (id OrganizationID) String() string { return uuid.UUID(id).String() }
func (id CaseID) String() string         { return uuid.UUID(id).String() }
func (id DonationID) String() string     { return uuid.UUID(id).String() }
func (id HandoverID) String() string     { return uuid.UUID(id).String() }
func (id UserID) String() string         { return uuid.UUID(id).String() }

func (id OrganizationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id CaseID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id DonationID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id HandoverID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }

func (id OrganizationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id CaseID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id DonationID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id HandoverID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id UserID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }

func (id *OrganizationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CaseID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DonationID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *HandoverID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *UserID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
