package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valcore/pkg/errs"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewService("test-key", "valcore", "valcore-api")

	tok, err := svc.GenerateAccessToken("op-1", "operator", time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.OperatorID)
	assert.Equal(t, "operator", claims.Role)
}

func TestValidateExpired(t *testing.T) {
	svc := NewService("test-key", "valcore", "valcore-api")

	tok, err := svc.GenerateAccessToken("op-1", "operator", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(tok)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeUnauthorized))
}

func TestValidateWrongKey(t *testing.T) {
	issuer := NewService("key-a", "valcore", "valcore-api")
	verifier := NewService("key-b", "valcore", "valcore-api")

	tok, err := issuer.GenerateAccessToken("op-1", "operator", time.Minute)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(tok)
	assert.Error(t, err)
}
