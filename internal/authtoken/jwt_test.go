package authtoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiat/internal/capability"
	"fiat/internal/policy"
	domain "fiat/pkg/domain"
	dErrors "fiat/pkg/domain-errors"
)

var (
	tokens    = NewService("test-signing-key", "test-issuer", "test-audience")
	actorID   = domain.ActorID(uuid.New())
	orgID     = domain.OrgID(uuid.New())
	roles     = []policy.Role{policy.RoleManager}
	scopes    = []capability.Scope{"contacts:write"}
	expiresIn = time.Hour
)

func Test_GenerateAndValidate(t *testing.T) {
	token, err := tokens.GenerateToken(actorID, orgID, roles, scopes, expiresIn)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, actorID.String(), claims.Subject)
	assert.Equal(t, orgID.String(), claims.OrgID)
	assert.Equal(t, []string{"manager"}, claims.Roles)
	assert.Equal(t, []string{"contacts:write"}, claims.Scopes)
	assert.WithinDuration(t, time.Now().Add(expiresIn), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := tokens.ValidateToken("not-a-token")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := tokens.GenerateToken(actorID, orgID, roles, scopes, -time.Hour)
	require.NoError(t, err)

	_, err = tokens.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	forged, err := NewService("other-key", "test-issuer", "test-audience").
		GenerateToken(actorID, orgID, roles, scopes, expiresIn)
	require.NoError(t, err)

	_, err = tokens.ValidateToken(forged)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_Claims_Actor(t *testing.T) {
	claims := &Claims{OrgID: orgID.String(), Roles: []string{"manager", " manager ", "viewer"}}
	claims.Subject = actorID.String()

	actor, err := claims.Actor()
	require.NoError(t, err)
	assert.Equal(t, actorID, actor.ID)
	assert.Equal(t, orgID, actor.OrgID)
	assert.Equal(t, []policy.Role{policy.RoleManager, policy.RoleViewer}, actor.Roles,
		"duplicated claim values collapse")
}

func Test_Claims_Actor_MissingOrg(t *testing.T) {
	claims := &Claims{Roles: []string{"admin"}}
	claims.Subject = actorID.String()

	actor, err := claims.Actor()
	require.NoError(t, err)
	assert.True(t, actor.OrgID.IsNil(), "no org claim yields a nil org actor")
}

func Test_Claims_Actor_BadSubject(t *testing.T) {
	claims := &Claims{OrgID: orgID.String()}
	claims.Subject = "not-an-id"

	_, err := claims.Actor()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
