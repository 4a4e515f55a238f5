package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ecotrail/emissiondesk/internal/emission/domain"
	"github.com/ecotrail/emissiondesk/internal/sessionctx"
	"github.com/ecotrail/emissiondesk/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Metrics *telemetry.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	genID   *snowflake.Node
	metrics *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("emission.service"),
		repo:    p.Repo,
		genID:   p.GenID,
		metrics: p.Metrics,
	}
}

func (s *Service) List(ctx context.Context, productID string) ([]domain.Response, error) {
	companyID, ok := sessionctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}

	product, err := snowflake.ParseString(strings.TrimSpace(productID))
	if err != nil {
		return nil, domain.ErrInvalidProductID
	}

	items, err := s.repo.FindAllByProduct(ctx, s.db, int64(companyID), product.Int64())
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		resp = append(resp, s.toResponse(&item))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	companyID, ok := sessionctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}

	product, err := snowflake.ParseString(strings.TrimSpace(req.ProductID))
	if err != nil {
		return nil, domain.ErrInvalidProductID
	}

	fields, err := parseRecordFields(req.Distance, req.Weight, req.Reference, req.LineItems)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &domain.EmissionRecord{
		ID:              s.genID.Generate().Int64(),
		CompanyID:       int64(companyID),
		ProductID:       product.Int64(),
		Distance:        fields.distance,
		Weight:          fields.weight,
		Reference:       fields.reference,
		OverrideFactors: datatypes.NewJSONSlice(normalizeFactors(req.OverrideFactors)),
		LineItems:       datatypes.NewJSONSlice(fields.lineItems),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, s.db, record); err != nil {
		s.metrics.ObserveRecordMutation("create", "error")
		return nil, err
	}
	s.metrics.ObserveRecordMutation("create", "ok")

	s.log.Info("emission record created",
		zap.Int64("record_id", record.ID),
		zap.Int64("product_id", record.ProductID),
	)

	resp := s.toResponse(record)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	companyID, ok := sessionctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}

	recordID, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	record, err := s.repo.FindByID(ctx, s.db, int64(companyID), recordID.Int64())
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrNotFound
	}

	fields, err := parseRecordFields(req.Distance, req.Weight, req.Reference, req.LineItems)
	if err != nil {
		return nil, err
	}

	// Last write wins; the whole record is replaced by the submitted draft.
	record.Distance = fields.distance
	record.Weight = fields.weight
	record.Reference = fields.reference
	record.OverrideFactors = datatypes.NewJSONSlice(normalizeFactors(req.OverrideFactors))
	record.LineItems = datatypes.NewJSONSlice(fields.lineItems)
	record.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, s.db, record); err != nil {
		s.metrics.ObserveRecordMutation("update", "error")
		return nil, err
	}
	s.metrics.ObserveRecordMutation("update", "ok")

	resp := s.toResponse(record)
	return &resp, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	companyID, ok := sessionctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return domain.ErrInvalidCompany
	}

	recordID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return domain.ErrInvalidID
	}

	record, err := s.repo.FindByID(ctx, s.db, int64(companyID), recordID.Int64())
	if err != nil {
		return err
	}
	if record == nil {
		return domain.ErrNotFound
	}

	if err := s.repo.Delete(ctx, s.db, int64(companyID), recordID.Int64()); err != nil {
		s.metrics.ObserveRecordMutation("delete", "error")
		return err
	}
	s.metrics.ObserveRecordMutation("delete", "ok")

	s.log.Info("emission record deleted", zap.Int64("record_id", recordID.Int64()))
	return nil
}

func (s *Service) ImportRows(ctx context.Context, productID string, rows []domain.ImportRow) (int, error) {
	companyID, ok := sessionctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return 0, domain.ErrInvalidCompany
	}

	product, err := snowflake.ParseString(strings.TrimSpace(productID))
	if err != nil {
		return 0, domain.ErrInvalidProductID
	}

	// A bad row aborts the whole upload. Rows already written are rolled
	// back so an import never lands partially.
	created := 0
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			fields, err := parseRecordFields(row.Distance, row.Weight, row.Reference, nil)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			record := &domain.EmissionRecord{
				ID:              s.genID.Generate().Int64(),
				CompanyID:       int64(companyID),
				ProductID:       product.Int64(),
				Distance:        fields.distance,
				Weight:          fields.weight,
				Reference:       fields.reference,
				OverrideFactors: datatypes.NewJSONSlice([]domain.OverrideFactor{}),
				LineItems:       datatypes.NewJSONSlice([]int64{}),
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := s.repo.Create(ctx, tx, record); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		s.metrics.ObserveRecordMutation("import", "error")
		return 0, err
	}
	s.metrics.ObserveRecordMutation("import", "ok")

	s.log.Info("emission records imported",
		zap.Int64("product_id", product.Int64()),
		zap.Int("count", created),
	)
	return created, nil
}

type recordFields struct {
	distance  float64
	weight    float64
	reference string
	lineItems []int64
}

func parseRecordFields(distance, weight, reference string, lineItems []string) (recordFields, error) {
	var out recordFields

	parsedDistance, err := strconv.ParseFloat(strings.TrimSpace(distance), 64)
	if err != nil || parsedDistance < 0 {
		return out, domain.ErrInvalidDistance
	}

	parsedWeight, err := strconv.ParseFloat(strings.TrimSpace(weight), 64)
	if err != nil || parsedWeight < 0 {
		return out, domain.ErrInvalidWeight
	}

	ref := strings.TrimSpace(reference)
	if ref == "" {
		return out, domain.ErrInvalidReference
	}

	ids := make([]int64, 0, len(lineItems))
	for _, raw := range lineItems {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return out, domain.ErrInvalidLineItem
		}
		ids = append(ids, id)
	}

	out.distance = parsedDistance
	out.weight = parsedWeight
	out.reference = ref
	out.lineItems = ids
	return out, nil
}

func normalizeFactors(factors []domain.OverrideFactor) []domain.OverrideFactor {
	if factors == nil {
		return []domain.OverrideFactor{}
	}
	return factors
}

func (s *Service) toResponse(record *domain.EmissionRecord) domain.Response {
	lineItems := make([]string, 0, len(record.LineItems))
	for _, id := range record.LineItems {
		lineItems = append(lineItems, strconv.FormatInt(id, 10))
	}

	return domain.Response{
		ID:              snowflake.ID(record.ID).String(),
		ProductID:       snowflake.ID(record.ProductID).String(),
		Distance:        record.Distance,
		Weight:          record.Weight,
		Reference:       record.Reference,
		OverrideFactors: []domain.OverrideFactor(record.OverrideFactors),
		LineItems:       lineItems,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
}
