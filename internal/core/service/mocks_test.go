package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

// Mock CatalogRepository
type mockCatalog struct {
	mu        sync.Mutex
	products  []domain.Product
	fetchErr  error
	fetches   int
	lookupErr error
}

func newMockCatalog(products ...domain.Product) *mockCatalog {
	return &mockCatalog{products: products}
}

func (m *mockCatalog) FetchProducts(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	out := make([]domain.Product, len(m.products))
	for i, p := range m.products {
		out[i] = p.Clone()
	}
	return out, nil
}

func (m *mockCatalog) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, p := range m.products {
		if p.Barcode == barcode {
			c := p.Clone()
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.ID == id {
			c := p.Clone()
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockCatalog) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = append(m.products, product)
	return product, nil
}

func (m *mockCatalog) UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.products {
		if p.ID == product.ID {
			m.products[i] = product
			return product, nil
		}
	}
	return domain.Product{}, errors.New("no such product")
}

// setStock replaces the server side stock of a flat stock product.
func (m *mockCatalog) setStock(id string, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.products {
		if m.products[i].ID == id {
			m.products[i].TotalStock = domain.IntPtr(stock)
		}
	}
}

// Mock SaleRepository
type mockSales struct {
	mu       sync.Mutex
	requests []domain.SaleRequest
	voided   []domain.Sale
	failFor  map[string]error // product ID -> error
	voidErr  error
	seq      int
}

func newMockSales() *mockSales {
	return &mockSales{failFor: make(map[string]error)}
}

func (m *mockSales) CreateSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if err, ok := m.failFor[req.ProductID]; ok {
		return domain.Sale{}, err
	}
	m.seq++
	return domain.Sale{
		ID:             fmt.Sprintf("sale-%d", m.seq),
		RequestID:      req.RequestID,
		ProductID:      req.ProductID,
		Size:           req.Size,
		Quantity:       req.Quantity,
		UnitPrice:      req.UnitPrice,
		Subtotal:       req.Subtotal,
		Discount:       req.Discount,
		DiscountAmount: req.DiscountAmount,
		TotalPrice:     req.TotalPrice,
		PaymentMethod:  req.PaymentMethod,
		CreatedAt:      time.Now(),
	}, nil
}

func (m *mockSales) VoidSale(ctx context.Context, sale domain.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.voidErr != nil {
		return m.voidErr
	}
	m.voided = append(m.voided, sale)
	return nil
}

func (m *mockSales) attempted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.requests))
	for i, r := range m.requests {
		ids[i] = r.ProductID
	}
	return ids
}

// Recording notifier
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingNotifier) Notify(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingNotifier) last() domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return domain.Event{}
	}
	return r.events[len(r.events)-1]
}

func (r *recordingNotifier) ofType(t domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func flatProduct(id, name string, price int64, stock int) domain.Product {
	return domain.Product{
		ID:         id,
		Barcode:    "bc-" + id,
		Name:       name,
		Price:      decimal.NewFromInt(price),
		TotalStock: domain.IntPtr(stock),
	}
}

func sizedProduct(id, name string, price int64, variants ...domain.Variant) domain.Product {
	return domain.Product{
		ID:       id,
		Barcode:  "bc-" + id,
		Name:     name,
		Price:    decimal.NewFromInt(price),
		Variants: variants,
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("line-%d", n)
	}
}
