package repositories

import (
	"testing"

	"github.com/stretchr/testify/require"

	"housing-chat-service/internal/models"
)

func TestNormalizePairIsOrderIndependent(t *testing.T) {
	cases := []struct {
		a, b models.UserID
	}{
		{1, 2},
		{2, 1},
		{42, 7},
		{7, 42},
	}

	for _, tc := range cases {
		lo, hi := normalizePair(tc.a, tc.b)
		revLo, revHi := normalizePair(tc.b, tc.a)
		require.Equal(t, lo, revLo)
		require.Equal(t, hi, revHi)
		require.LessOrEqual(t, lo, hi)
	}
}

func TestNormalizePairKeepsBothParticipants(t *testing.T) {
	lo, hi := normalizePair(models.UserID(9), models.UserID(3))
	require.Equal(t, models.UserID(3), lo)
	require.Equal(t, models.UserID(9), hi)
}
