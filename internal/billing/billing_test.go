package billing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestWithTaxRoundsToCents(t *testing.T) {
	got := withTax(decimal.RequireFromString("100.00"), decimal.RequireFromString("11"))
	require.True(t, got.Equal(decimal.RequireFromString("111.00")), got.String())

	got = withTax(decimal.RequireFromString("33.33"), decimal.RequireFromString("7.5"))
	require.True(t, got.Equal(decimal.RequireFromString("35.83")), got.String())

	got = withTax(decimal.RequireFromString("50"), decimal.Zero)
	require.True(t, got.Equal(decimal.RequireFromString("50")), got.String())
}

func TestParseIDRejectsGarbage(t *testing.T) {
	id, err := parseID(" 42 ", ErrInvoiceNotFound)
	require.NoError(t, err)
	require.EqualValues(t, 42, id)

	for _, raw := range []string{"", "abc", "-1", "0"} {
		_, err := parseID(raw, ErrInvoiceNotFound)
		require.True(t, errors.Is(err, ErrInvoiceNotFound), raw)
	}
}

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/billing?sslmode=disable", migrateURL("postgres://u:p@db:5432/billing?sslmode=disable"))
	require.Equal(t, "pgx5://db/billing", migrateURL("postgresql://db/billing"))
	require.Equal(t, "pgx5://db/billing", migrateURL("pgx5://db/billing"))
}
