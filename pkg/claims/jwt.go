package claims

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tasknest/tasknest/pkg/apperr"
	"github.com/tasknest/tasknest/pkg/authz"
	"github.com/tasknest/tasknest/pkg/identity"
)

// DefaultTokenTTL is the default lifetime of an issued claims token.
const DefaultTokenTTL = 12 * time.Hour

// tokenClaims is the JWT payload carrying a claims snapshot.
type tokenClaims struct {
	Role              authz.Role           `json:"role"`
	AccountType       identity.AccountType `json:"accountType"`
	OrganizationID    *string              `json:"organizationId,omitempty"`
	DepartmentID      *string              `json:"departmentId,omitempty"`
	CustomPermissions []authz.Permission   `json:"customPermissions,omitempty"`
	Flags             identity.Flags       `json:"flags"`
	ClaimsVersion     int64                `json:"claimsVersion"`
	jwt.RegisteredClaims
}

// Codec signs and verifies claims tokens.
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewCodec creates a codec signing with the given HMAC secret.
func NewCodec(secret []byte, issuer string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Codec{secret: secret, issuer: issuer, ttl: ttl}
}

// Encode signs a snapshot as a JWT.
func (c *Codec) Encode(snap *Snapshot) (string, error) {
	now := time.Now().UTC()
	tc := tokenClaims{
		Role:              snap.Role,
		AccountType:       snap.AccountType,
		OrganizationID:    snap.OrganizationID,
		DepartmentID:      snap.DepartmentID,
		CustomPermissions: snap.CustomPermissions,
		Flags:             snap.Flags,
		ClaimsVersion:     snap.ClaimsVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   snap.UserID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tc)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", apperr.Internal(err, "sign claims token")
	}
	return signed, nil
}

// Decode verifies a JWT and returns the snapshot it carries. Expired or
// tampered tokens yield an unauthenticated error.
func (c *Codec) Decode(tokenString string) (*Snapshot, error) {
	var tc tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &tc, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.New(apperr.KindUnauthenticated, "unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithIssuer(c.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, err, "invalid claims token")
	}
	if !token.Valid {
		return nil, apperr.Unauthenticated("invalid claims token")
	}

	snap := &Snapshot{
		UserID:            tc.Subject,
		Role:              tc.Role,
		AccountType:       tc.AccountType,
		OrganizationID:    tc.OrganizationID,
		DepartmentID:      tc.DepartmentID,
		CustomPermissions: tc.CustomPermissions,
		Flags:             tc.Flags,
		ClaimsVersion:     tc.ClaimsVersion,
	}
	if tc.IssuedAt != nil {
		snap.IssuedAt = tc.IssuedAt.Time.UTC()
	}
	return snap, nil
}
