// Package authtoken issues and validates the HMAC-signed access tokens that
// carry an actor's resolved authority: identity, org, roles, and scope grants.
package authtoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"fiat/internal/capability"
	"fiat/internal/policy"
	domain "fiat/pkg/domain"
	dErrors "fiat/pkg/domain-errors"
	strutil "fiat/pkg/platform/strings"
)

// Claims is the JWT payload. Subject is the actor id.
type Claims struct {
	OrgID  string   `json:"org_id"`
	Roles  []string `json:"roles"`
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and validates actor tokens.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewService(signingKey string, issuer string, audience string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

func (s *Service) GenerateToken(actorID domain.ActorID, orgID domain.OrgID, roles []policy.Role, scopes []capability.Scope, expiresIn time.Duration) (string, error) {
	roleNames := make([]string, len(roles))
	for i, role := range roles {
		roleNames[i] = string(role)
	}
	scopeNames := make([]string, len(scopes))
	for i, scope := range scopes {
		scopeNames[i] = string(scope)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		OrgID:  orgID.String(),
		Roles:  strutil.DedupeAndTrim(roleNames),
		Scopes: strutil.DedupeAndTrim(scopeNames),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// Actor converts the validated claims into the kernel's actor projection.
// A token without an org claim yields an actor with a nil OrgID; the planner
// rejects those submissions with MISSING_ORG_ID.
func (c *Claims) Actor() (policy.Actor, error) {
	actorID, err := domain.ParseActorID(c.Subject)
	if err != nil {
		return policy.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "token subject is not an actor id")
	}

	actor := policy.Actor{ID: actorID}
	if c.OrgID != "" {
		orgID, err := domain.ParseOrgID(c.OrgID)
		if err != nil {
			return policy.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "token org claim is not an org id")
		}
		actor.OrgID = orgID
	}
	// Tokens minted elsewhere may carry duplicated or padded claim values.
	for _, role := range strutil.DedupeAndTrim(c.Roles) {
		actor.Roles = append(actor.Roles, policy.Role(role))
	}
	for _, scope := range strutil.DedupeAndTrim(c.Scopes) {
		actor.Scopes = append(actor.Scopes, capability.Scope(scope))
	}
	return actor, nil
}
