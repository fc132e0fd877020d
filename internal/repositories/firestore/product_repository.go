package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/shopfusion/api/internal/domain"
	pfirestore "github.com/shopfusion/api/internal/platform/firestore"
	"github.com/shopfusion/api/internal/repositories"
)

const productsCollection = "products"

// ProductRepository reads catalog snapshots used to enrich order line items.
type ProductRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil)
	return &ProductRepository{base: base}, nil
}

// FindByID fetches a single product summary.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.ProductSummary, error) {
	if r == nil || r.base == nil {
		return domain.ProductSummary{}, errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.ProductSummary{}, errors.New("product repository: product id is required")
	}
	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.ProductSummary{}, err
	}
	return domain.ProductSummary{
		ID:        doc.ID,
		Name:      strings.TrimSpace(doc.Data.Name),
		ImagePath: strings.TrimSpace(doc.Data.Image),
		Price:     doc.Data.Price,
		InStock:   doc.Data.CountInStock,
		IsPublic:  doc.Data.IsPublic,
		UpdatedAt: chooseTime(doc.Data.UpdatedAt, doc.UpdateTime),
	}, nil
}

type productDocument struct {
	Name         string    `firestore:"name"`
	Image        string    `firestore:"image"`
	Price        int64     `firestore:"price"`
	CountInStock int       `firestore:"countInStock"`
	IsPublic     bool      `firestore:"isPublic"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
