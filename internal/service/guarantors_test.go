package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "seller", NormalizeUsername("@Seller"))
	assert.Equal(t, "seller", NormalizeUsername("  SELLER "))
	assert.Equal(t, "", NormalizeUsername("@"))
}

func TestGuarantorAddLookupRemove(t *testing.T) {
	ctx := context.Background()
	svc := NewGuarantors(&fakeGuarantorsStore{})

	require.NoError(t, svc.Add(ctx, "@TrustedShop", "Trusted Shop", 1))

	ok, err := svc.IsGuarantor(ctx, "trustedshop")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsGuarantor(ctx, "@TRUSTEDSHOP")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsGuarantor(ctx, "somebody")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.Remove(ctx, "TrustedShop"))
	ok, err = svc.IsGuarantor(ctx, "trustedshop")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGuarantorRejectsEmptyUsername(t *testing.T) {
	ctx := context.Background()
	svc := NewGuarantors(&fakeGuarantorsStore{})

	assert.ErrorIs(t, svc.Add(ctx, "@", "x", 1), ErrEmptyUsername)
	assert.ErrorIs(t, svc.Remove(ctx, "  "), ErrEmptyUsername)

	ok, err := svc.IsGuarantor(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}
