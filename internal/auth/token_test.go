package auth

import (
	"testing"
	"time"

	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueParse(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), time.Hour)
	user := &model.User{ID: uuid.New(), Email: "a@b.c", Role: model.RoleOwner}

	token, err := issuer.Issue(user)
	require.NoError(t, err)

	id, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
}

func TestParse_Rejects(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), time.Hour)
	user := &model.User{ID: uuid.New(), Role: model.RoleUser}

	other, err := NewTokenIssuer([]byte("other"), time.Hour).Issue(user)
	require.NoError(t, err)
	_, err = issuer.Parse(other)
	assert.Error(t, err, "foreign signature")

	expired, err := NewTokenIssuer([]byte("secret"), -time.Minute).Issue(user)
	require.NoError(t, err)
	_, err = issuer.Parse(expired)
	assert.Error(t, err, "expired token")

	_, err = issuer.Parse("not-a-token")
	assert.Error(t, err)
}
