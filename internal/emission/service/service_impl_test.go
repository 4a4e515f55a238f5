package service_test

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ecotrail/emissiondesk/internal/emission/domain"
	"github.com/ecotrail/emissiondesk/internal/emission/repository"
	"github.com/ecotrail/emissiondesk/internal/emission/service"
	"github.com/ecotrail/emissiondesk/internal/sessionctx"
	"github.com/ecotrail/emissiondesk/pkg/db"
)

const testCompanyID int64 = 42

func setupService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.EmissionRecord{}))

	node, err := snowflake.NewNode(7)
	require.NoError(t, err)

	svc := service.New(service.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, conn
}

func companyCtx() context.Context {
	return sessionctx.WithCompanyID(context.Background(), testCompanyID)
}

func TestCreateAndList(t *testing.T) {
	svc, _ := setupService(t)
	ctx := companyCtx()

	created, err := svc.Create(ctx, domain.CreateRequest{
		ProductID: "100200300",
		Distance:  "120.5",
		Weight:    "3.2",
		Reference: "Road freight, lorry 16-32t, EURO6",
		OverrideFactors: []domain.OverrideFactor{
			{LifecycleStage: "A4", CO2Biogenic: 0.5, CO2NonBiogenic: 1.1},
		},
		LineItems: []string{"9001", "9002"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 120.5, created.Distance)
	assert.Equal(t, []string{"9001", "9002"}, created.LineItems)

	records, err := svc.List(ctx, "100200300")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, created.ID, records[0].ID)
	require.Len(t, records[0].OverrideFactors, 1)
	assert.Equal(t, "A4", records[0].OverrideFactors[0].LifecycleStage)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := companyCtx()

	cases := []struct {
		name string
		req  domain.CreateRequest
		want error
	}{
		{
			name: "bad distance",
			req:  domain.CreateRequest{ProductID: "1", Distance: "abc", Weight: "1", Reference: "ref"},
			want: domain.ErrInvalidDistance,
		},
		{
			name: "negative weight",
			req:  domain.CreateRequest{ProductID: "1", Distance: "1", Weight: "-4", Reference: "ref"},
			want: domain.ErrInvalidWeight,
		},
		{
			name: "blank reference",
			req:  domain.CreateRequest{ProductID: "1", Distance: "1", Weight: "1", Reference: "   "},
			want: domain.ErrInvalidReference,
		},
		{
			name: "bad line item",
			req:  domain.CreateRequest{ProductID: "1", Distance: "1", Weight: "1", Reference: "ref", LineItems: []string{"x"}},
			want: domain.ErrInvalidLineItem,
		},
		{
			name: "bad product id",
			req:  domain.CreateRequest{ProductID: "not-a-number", Distance: "1", Weight: "1", Reference: "ref"},
			want: domain.ErrInvalidProductID,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestMissingCompany(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.List(context.Background(), "1")
	assert.ErrorIs(t, err, domain.ErrInvalidCompany)

	_, err = svc.Create(context.Background(), domain.CreateRequest{ProductID: "1", Distance: "1", Weight: "1", Reference: "ref"})
	assert.ErrorIs(t, err, domain.ErrInvalidCompany)
}

func TestUpdateReplacesRecord(t *testing.T) {
	svc, _ := setupService(t)
	ctx := companyCtx()

	created, err := svc.Create(ctx, domain.CreateRequest{
		ProductID: "55",
		Distance:  "10",
		Weight:    "2",
		Reference: "old",
		LineItems: []string{"1"},
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, domain.UpdateRequest{
		ID:        created.ID,
		Distance:  "20",
		Weight:    "4",
		Reference: "new",
	})
	require.NoError(t, err)
	assert.Equal(t, 20.0, updated.Distance)
	assert.Equal(t, "new", updated.Reference)
	assert.Empty(t, updated.LineItems)
	assert.Empty(t, updated.OverrideFactors)
}

func TestUpdateUnknownRecord(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Update(companyCtx(), domain.UpdateRequest{
		ID:        "999999",
		Distance:  "1",
		Weight:    "1",
		Reference: "ref",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc, _ := setupService(t)
	ctx := companyCtx()

	created, err := svc.Create(ctx, domain.CreateRequest{
		ProductID: "77",
		Distance:  "1",
		Weight:    "1",
		Reference: "ref",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))

	records, err := svc.List(ctx, "77")
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.ErrorIs(t, svc.Delete(ctx, created.ID), domain.ErrNotFound)
}

func TestDeleteScopedByCompany(t *testing.T) {
	svc, _ := setupService(t)

	created, err := svc.Create(companyCtx(), domain.CreateRequest{
		ProductID: "77",
		Distance:  "1",
		Weight:    "1",
		Reference: "ref",
	})
	require.NoError(t, err)

	otherCtx := sessionctx.WithCompanyID(context.Background(), testCompanyID+1)
	assert.ErrorIs(t, svc.Delete(otherCtx, created.ID), domain.ErrNotFound)
}

func TestImportRows(t *testing.T) {
	svc, _ := setupService(t)
	ctx := companyCtx()

	created, err := svc.ImportRows(ctx, "88", []domain.ImportRow{
		{Distance: "1", Weight: "2", Reference: "a"},
		{Distance: "3", Weight: "4", Reference: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	records, err := svc.List(ctx, "88")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestImportRowsRollsBackOnBadRow(t *testing.T) {
	svc, _ := setupService(t)
	ctx := companyCtx()

	created, err := svc.ImportRows(ctx, "88", []domain.ImportRow{
		{Distance: "1", Weight: "2", Reference: "a"},
		{Distance: "oops", Weight: "4", Reference: "b"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDistance)
	assert.Equal(t, 0, created)

	records, err := svc.List(ctx, "88")
	require.NoError(t, err)
	assert.Empty(t, records)
}
