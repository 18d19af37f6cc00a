package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/charlesng35/shopadmin/internal/models"
	"github.com/charlesng35/shopadmin/internal/repository"
	"github.com/charlesng35/shopadmin/internal/upload"
	appErrors "github.com/charlesng35/shopadmin/pkg/errors"
	"github.com/charlesng35/shopadmin/pkg/validator"
)

// Multipart fields carrying product images. The single product_image file is listed first.
const (
	ProductImageField = "product_image"
	ImagesField       = "images"
)

var (
	errInvalidImages   = appErrors.NewFieldValidation("images", "Images must be a valid JSON array string.")
	errDiscountTooHigh = appErrors.NewFieldValidation("discount_price", "Discount price cannot be greater than the original price")
)

// CreateProductInput captures a new product. Numeric fields accept numbers or numeric strings.
type CreateProductInput struct {
	Name          string             `json:"name" mapstructure:"name" validate:"required,min=3,max=200"`
	Description   string             `json:"description" mapstructure:"description" validate:"required,max=1000"`
	Price         RawField[float64]  `json:"price" mapstructure:"price"`
	DiscountPrice RawField[float64]  `json:"discount_price" mapstructure:"discount_price"`
	Stock         RawField[int]      `json:"stock" mapstructure:"stock"`
	Category      string             `json:"category" mapstructure:"category" validate:"required,max=50"`
	Brand         string             `json:"brand" mapstructure:"brand" validate:"max=100"`
	Images        RawField[[]string] `json:"images" mapstructure:"images"`
	Uploads       upload.Set         `json:"-" mapstructure:"-" validate:"-"`
}

// UpdateProductInput carries the fields to change. Images augment the current set; the clear
// sentinel (null or "") drops the current images first.
type UpdateProductInput struct {
	Name          *string            `json:"name" mapstructure:"name" validate:"omitempty,min=3,max=200"`
	Description   *string            `json:"description" mapstructure:"description" validate:"omitempty,max=1000"`
	Price         RawField[float64]  `json:"price" mapstructure:"price"`
	DiscountPrice RawField[float64]  `json:"discount_price" mapstructure:"discount_price"`
	Stock         RawField[int]      `json:"stock" mapstructure:"stock"`
	Category      *string            `json:"category" mapstructure:"category" validate:"omitempty,max=50"`
	Brand         *string            `json:"brand" mapstructure:"brand" validate:"omitempty,max=100"`
	Images        RawField[[]string] `json:"images" mapstructure:"images"`
	Uploads       upload.Set         `json:"-" mapstructure:"-" validate:"-"`
}

// ProductService manages products, their images and the cached views of both.
type ProductService struct {
	entity
	repo repository.ProductRepository
}

// NewProductService constructs a ProductService.
func NewProductService(repo repository.ProductRepository, deps Dependencies) (*ProductService, error) {
	if repo == nil {
		return nil, errors.New("product service: repository is required")
	}
	base, err := newEntity("product", "products", deps)
	if err != nil {
		return nil, err
	}
	base.dir = base.settings.ProductDir
	return &ProductService{entity: base, repo: repo}, nil
}

// GetByID returns one product, served from cache when possible.
func (s *ProductService) GetByID(ctx context.Context, id string) (*models.Product, Source, error) {
	ctx = ensureContext(ctx)
	key := s.entityKey(id)

	var cached models.Product
	if s.readCached(ctx, key, &cached) {
		return &cached, SourceCache, nil
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, "", translate(s.name, err)
	}
	s.writeCached(ctx, key, product)
	return product, SourceRepository, nil
}

// List returns products whose name contains search, newest first.
func (s *ProductService) List(ctx context.Context, search string) ([]models.Product, Source, error) {
	ctx = ensureContext(ctx)
	key := s.listKey(search)

	var cached []models.Product
	if s.readCached(ctx, key, &cached) {
		return cached, SourceCache, nil
	}

	products, err := s.repo.List(ctx, search)
	if err != nil {
		return nil, "", translate(s.name, err)
	}
	s.writeCached(ctx, key, products)
	return products, SourceRepository, nil
}

// Create stores a new product. Uploaded images come first, followed by any explicit list.
func (s *ProductService) Create(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	ctx = ensureContext(ctx)
	pending := s.track(in.Uploads)
	defer pending.release(ctx)

	if err := validator.ValidateStruct(in); err != nil {
		return nil, validator.AsAppError(err)
	}

	price, ok, err := in.Price.Decode()
	if err != nil {
		return nil, invalidNumber("price")
	}
	if !ok {
		return nil, appErrors.NewFieldValidation("price", "Product price is required")
	}
	stock, ok, err := in.Stock.Decode()
	if err != nil {
		return nil, invalidNumber("stock")
	}
	if !ok {
		return nil, appErrors.NewFieldValidation("stock", "Product stock is required")
	}
	discount, err := decodeOptionalNumber("discount_price", in.DiscountPrice)
	if err != nil {
		return nil, err
	}
	if discount != nil && *discount > price {
		return nil, errDiscountTooHigh
	}

	explicit, err := decodeImageNames(in.Images)
	if err != nil {
		return nil, err
	}
	images := s.withPlaceholder(append(uploadedImages(in.Uploads), explicit...))

	product := &models.Product{
		Name:          in.Name,
		Description:   strings.TrimSpace(in.Description),
		Price:         price,
		DiscountPrice: discount,
		Stock:         stock,
		Category:      in.Category,
		Brand:         in.Brand,
		Images:        datatypes.JSONSlice[string](images),
	}
	product.Normalize()

	if err := s.repo.Insert(ctx, product); err != nil {
		return nil, translate(s.name, err)
	}
	pending.keep(images...)

	s.invalidate(ctx, product.ID)
	s.logWrite(ctx, "product created", zap.String("product_id", product.ID), zap.Int("images", len(images)))
	return product, nil
}

// Update applies in to the product. Images dropped from the stored set are deleted once the
// change is stored, unless another product still lists them.
func (s *ProductService) Update(ctx context.Context, id string, in UpdateProductInput) (*models.Product, error) {
	ctx = ensureContext(ctx)
	pending := s.track(in.Uploads)
	defer pending.release(ctx)

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translate(s.name, err)
	}

	if err := validator.ValidateStruct(in); err != nil {
		return nil, validator.AsAppError(err)
	}

	fields := make(map[string]any)
	if name := trimPtr(in.Name); name != nil {
		fields["name"] = *name
	}
	if description := trimPtr(in.Description); description != nil {
		fields["description"] = *description
	}
	if category := trimPtr(in.Category); category != nil {
		fields["category"] = *category
	}
	if brand := trimPtr(in.Brand); brand != nil {
		fields["brand"] = *brand
	}

	price := current.Price
	if in.Price.IsSet() {
		value, ok, err := in.Price.Decode()
		if err != nil || !ok {
			return nil, invalidNumber("price")
		}
		price = value
		fields["price"] = value
	}
	if in.Stock.IsSet() {
		value, ok, err := in.Stock.Decode()
		if err != nil || !ok {
			return nil, invalidNumber("stock")
		}
		fields["stock"] = value
	}
	discount := current.DiscountPrice
	if in.DiscountPrice.IsSet() {
		discount, err = decodeOptionalNumber("discount_price", in.DiscountPrice)
		if err != nil {
			return nil, err
		}
		fields["discount_price"] = discount
	}
	if discount != nil && *discount > price {
		return nil, errDiscountTooHigh
	}

	var dropped []string
	uploaded := uploadedImages(in.Uploads)
	if len(uploaded) > 0 || in.Images.IsSet() {
		explicit, err := decodeImageNames(in.Images)
		if err != nil {
			return nil, err
		}

		var images []string
		if !in.Images.IsNull() {
			images = append(images, current.Images...)
		}
		images = s.withPlaceholder(append(append(images, uploaded...), explicit...))

		for _, name := range current.Images {
			if !containsString(images, name) {
				dropped = append(dropped, name)
			}
		}
		fields["images"] = datatypes.JSONSlice[string](images)
	}

	updated, err := s.repo.UpdateByID(ctx, id, fields)
	if err != nil {
		return nil, translate(s.name, err)
	}
	pending.keep(updated.Images...)

	s.releaseImages(ctx, dropped)
	s.invalidate(ctx, id)
	s.logWrite(ctx, "product updated", zap.String("product_id", id), zap.Int("fields", len(fields)))
	return updated, nil
}

// Delete removes the product, then the images no other product references.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	current, err := s.repo.FindByID(ctx, id, "images")
	if err != nil {
		return translate(s.name, err)
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return translate(s.name, err)
	}
	s.releaseImages(ctx, current.Images)

	s.invalidate(ctx, id)
	s.logWrite(ctx, "product deleted", zap.String("product_id", id))
	return nil
}

// ReferencedImages returns every image filename stored on a product record.
func (s *ProductService) ReferencedImages(ctx context.Context) ([]string, error) {
	products, err := s.repo.List(ensureContext(ctx), "")
	if err != nil {
		return nil, translate(s.name, err)
	}
	var names []string
	for _, product := range products {
		names = append(names, product.Images...)
	}
	return normaliseNames(names), nil
}

// withPlaceholder normalises images and keeps the placeholder only when nothing else is left.
func (s *ProductService) withPlaceholder(images []string) []string {
	placeholder := s.settings.DefaultProductImage
	var out []string
	for _, name := range normaliseNames(images) {
		if name != placeholder {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return []string{placeholder}
	}
	return out
}

// releaseImages deletes the blobs behind names that no stored product references any more.
// A failed lookup leaves the files for the maintenance sweep.
func (s *ProductService) releaseImages(ctx context.Context, names []string) {
	if len(names) == 0 {
		return
	}
	referenced, err := s.ReferencedImages(ctx)
	if err != nil {
		s.log.Warn("image cleanup skipped, reference lookup failed", zap.Strings("images", names), zap.Error(err))
		return
	}

	var unreferenced []string
	for _, name := range names {
		if !containsString(referenced, name) {
			unreferenced = append(unreferenced, name)
		}
	}
	s.deleteImages(ctx, s.settings.DefaultProductImage, unreferenced...)
}

// decodeImageNames decodes an explicit image list. Every entry must be a bare filename.
func decodeImageNames(raw RawField[[]string]) ([]string, error) {
	names, _, err := raw.Decode()
	if err != nil {
		return nil, errInvalidImages
	}
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" && !plainFilename(name) {
			return nil, errInvalidImages
		}
	}
	return names, nil
}

func uploadedImages(set upload.Set) []string {
	var names []string
	if file, ok := set.Single(ProductImageField); ok {
		names = append(names, file.Filename)
	}
	return append(names, set.Filenames(ImagesField)...)
}

// decodeOptionalNumber returns nil for an absent or cleared value.
func decodeOptionalNumber(field string, raw RawField[float64]) (*float64, error) {
	value, ok, err := raw.Decode()
	if err != nil {
		return nil, invalidNumber(field)
	}
	if !ok {
		return nil, nil
	}
	return &value, nil
}

func invalidNumber(field string) error {
	return appErrors.NewFieldValidation(field, capitalize(field)+" must be a valid number.")
}
