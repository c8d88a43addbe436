package service

import (
	"context"
	"errors"
	"io"
	"maps"
	"sync"

	"github.com/Dhoini/Plugin-billing-service/internal/domain"
	"github.com/Dhoini/Plugin-billing-service/internal/stripe"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"
)

func testLogger() *logger.Logger {
	l := logger.New(logger.DEBUG)
	l.SetOutput(io.Discard)
	return l
}

type metadataUpdate struct {
	identityID   string
	appMetadata  map[string]any
	userMetadata map[string]any
}

// fakeDirectory хранит пользователей в памяти
type fakeDirectory struct {
	mu        sync.Mutex
	users     map[string]domain.Identity
	getErr    error
	updateErr error
	updates   []metadataUpdate
}

func newFakeDirectory(users ...domain.Identity) *fakeDirectory {
	d := &fakeDirectory{users: make(map[string]domain.Identity)}
	for _, u := range users {
		d.users[u.UserID] = u
	}
	return d
}

func (d *fakeDirectory) GetIdentity(_ context.Context, identityID string) (*domain.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.getErr != nil {
		return nil, d.getErr
	}
	u, ok := d.users[identityID]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	u.AppMetadata = maps.Clone(u.AppMetadata)
	return &u, nil
}

func (d *fakeDirectory) UpdateMetadata(_ context.Context, identityID string, appMetadata, userMetadata map[string]any) (*domain.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, metadataUpdate{
		identityID:   identityID,
		appMetadata:  maps.Clone(appMetadata),
		userMetadata: maps.Clone(userMetadata),
	})
	if d.updateErr != nil {
		return nil, d.updateErr
	}
	u := d.users[identityID]
	if appMetadata != nil {
		u.AppMetadata = maps.Clone(appMetadata)
	}
	if userMetadata != nil {
		u.UserMetadata = maps.Clone(userMetadata)
	}
	d.users[identityID] = u
	return &u, nil
}

func (d *fakeDirectory) updateCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.updates)
}

// fakeBilling имитирует stripe.Client
type fakeBilling struct {
	mu sync.Mutex

	nextCustomerID string
	createErr      error
	created        []stripe.CustomerParams

	getErr    error
	customers map[string]*domain.BillingCustomer

	checkoutURL   string
	checkoutErr   error
	checkouts     []stripe.CheckoutParams
	portalURL     string
	portalReturns []string
	portalKeys    []string

	active       bool
	subsErr      error
	invoice      string
	invoiceFound bool
	invoiceErr   error

	products    []domain.Product
	productsErr error
	listCalls   int
}

func newFakeBilling() *fakeBilling {
	return &fakeBilling{
		nextCustomerID: "cus_1",
		customers:      make(map[string]*domain.BillingCustomer),
		checkoutURL:    "https://checkout.stripe.com/c/cs_1",
		portalURL:      "https://billing.stripe.com/p/session/bps_1",
	}
}

func (b *fakeBilling) CreateCustomer(_ context.Context, p stripe.CustomerParams) (*domain.BillingCustomer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, p)
	if b.createErr != nil {
		return nil, b.createErr
	}
	cus := &domain.BillingCustomer{ID: b.nextCustomerID, Email: p.Email, Name: p.Name}
	b.customers[cus.ID] = cus
	return cus, nil
}

func (b *fakeBilling) GetCustomer(_ context.Context, customerID string) (*domain.BillingCustomer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return nil, b.getErr
	}
	if cus, ok := b.customers[customerID]; ok {
		return cus, nil
	}
	return &domain.BillingCustomer{ID: customerID}, nil
}

func (b *fakeBilling) CreateCheckoutSession(_ context.Context, p stripe.CheckoutParams) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkouts = append(b.checkouts, p)
	if b.checkoutErr != nil {
		return "", b.checkoutErr
	}
	return b.checkoutURL, nil
}

func (b *fakeBilling) CreatePortalSession(_ context.Context, _ string, returnURL, idempotencyKey string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.portalReturns = append(b.portalReturns, returnURL)
	b.portalKeys = append(b.portalKeys, idempotencyKey)
	return b.portalURL, nil
}

func (b *fakeBilling) HasActiveSubscription(context.Context, string) (bool, error) {
	return b.active, b.subsErr
}

func (b *fakeBilling) LatestInvoiceStatus(context.Context, string) (string, bool, error) {
	return b.invoice, b.invoiceFound, b.invoiceErr
}

func (b *fakeBilling) ListProducts(context.Context) ([]domain.Product, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	return b.products, b.productsErr
}

func (b *fakeBilling) createCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.created)
}

// fakeProducer запоминает опубликованные события
type fakeProducer struct {
	mu     sync.Mutex
	events []domain.BillingEvent
}

func (p *fakeProducer) Publish(_ context.Context, event domain.BillingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

// fakeMetrics считает вызовы
type fakeMetrics struct {
	mu       sync.Mutex
	resolved map[string]int
	failed   map[string]int
	unlinked int
	sessions map[string]int
	lookups  map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		resolved: make(map[string]int),
		failed:   make(map[string]int),
		sessions: make(map[string]int),
		lookups:  make(map[string]int),
	}
}

func (m *fakeMetrics) IncCustomerResolved(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved[source]++
}

func (m *fakeMetrics) IncCustomerResolutionFailed(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[reason]++
}

func (m *fakeMetrics) IncUnlinkedCustomer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlinked++
}

func (m *fakeMetrics) IncSessionCreated(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[kind]++
}

func (m *fakeMetrics) IncStatusLookup(kind, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups[kind+":"+status]++
}

// fakeCache кэш каталога в памяти
type fakeCache struct {
	products []domain.Product
	getErr   error
	sets     int
}

func (c *fakeCache) GetCachedCatalog(context.Context) ([]domain.Product, error) {
	return c.products, c.getErr
}

func (c *fakeCache) CacheCatalog(_ context.Context, products []domain.Product) error {
	c.sets++
	c.products = products
	return nil
}

var errBoom = errors.New("boom")
