//go:build integration

package paymentrepo_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/internal/integrationtest/helpers"
	"github.com/go-petr/splitfx/internal/paymentrepo"
	"github.com/go-petr/splitfx/pkg/currencypkg"
)

var ctx = context.Background()

func TestCreate(t *testing.T) {
	testCases := []struct {
		name    string
		payment func(t *testing.T, tx *sql.Tx) domain.Payment
		wantErr error
	}{
		{
			name: "OK",
			payment: func(t *testing.T, tx *sql.Tx) domain.Payment {
				group, admin := helpers.SeedGroup(t, tx)
				member := helpers.SeedMember(t, tx, group.ID)

				return helpers.RandomPayment(group.ID, member.ID, admin.ID, "12.50", currencypkg.GBP)
			},
		},
		{
			name: "PayeeNotMember",
			payment: func(t *testing.T, tx *sql.Tx) domain.Payment {
				group, admin := helpers.SeedGroup(t, tx)

				return helpers.RandomPayment(group.ID, admin.ID, uuid.New(), "12.50", currencypkg.GBP)
			},
			wantErr: domain.ErrPayeeNotMember,
		},
		{
			name: "SelfPayment",
			payment: func(t *testing.T, tx *sql.Tx) domain.Payment {
				group, admin := helpers.SeedGroup(t, tx)

				return helpers.RandomPayment(group.ID, admin.ID, admin.ID, "12.50", currencypkg.GBP)
			},
			wantErr: domain.ErrSelfPayment,
		},
		{
			name: "ZeroAmount",
			payment: func(t *testing.T, tx *sql.Tx) domain.Payment {
				group, admin := helpers.SeedGroup(t, tx)
				member := helpers.SeedMember(t, tx, group.ID)

				return helpers.RandomPayment(group.ID, member.ID, admin.ID, "0", currencypkg.GBP)
			},
			wantErr: domain.ErrNegativeAmount,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			tx := helpers.SetupTX(t)
			want := tc.payment(t, tx)

			got, err := paymentrepo.NewRepoPGS(tx).Create(ctx, want)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)

			equalDecimal := cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })
			if diff := cmp.Diff(want, got, equalDecimal, cmpopts.EquateApproxTime(time.Second)); diff != "" {
				t.Errorf("Create() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListByGroup(t *testing.T) {
	tx := helpers.SetupTX(t)
	repo := paymentrepo.NewRepoPGS(tx)

	group, admin := helpers.SeedGroup(t, tx)
	member := helpers.SeedMember(t, tx, group.ID)
	other, otherAdmin := helpers.SeedGroup(t, tx)
	otherMember := helpers.SeedMember(t, tx, other.ID)

	p1 := helpers.SeedPayment(t, tx, group.ID, member.ID, admin.ID, "5.00", currencypkg.EUR)
	p2 := helpers.SeedPayment(t, tx, group.ID, admin.ID, member.ID, "2.00", currencypkg.USD)
	helpers.SeedPayment(t, tx, other.ID, otherMember.ID, otherAdmin.ID, "1.00", currencypkg.EUR)

	got, err := repo.ListByGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.ElementsMatch(t, []uuid.UUID{p1.ID, p2.ID}, []uuid.UUID{got[0].ID, got[1].ID})

	got, err = repo.ListByGroup(ctx, uuid.New())
	require.NoError(t, err)
	require.Empty(t, got)
}
