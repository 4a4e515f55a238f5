package domain

import "context"

type Repository interface {
	ListEmissionReferences(ctx context.Context) ([]EmissionReference, error)
	ListLifecycleStageChoices(ctx context.Context, productID int64) ([]LifecycleStageChoice, error)
	ListBomLineItems(ctx context.Context, productID int64) ([]BomLineItem, error)
}
