package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                     []OnInit
	onShutdown                 []OnShutdown
	onUserEnsured              []OnUserEnsured
	onSubscriptionSynced       []OnSubscriptionSynced
	onSubscriptionEventApplied []OnSubscriptionEventApplied
	onWalletOpened             []OnWalletOpened
	onWalletClosed             []OnWalletClosed
	onUsageReserved            []OnUsageReserved
	onUsageCommitted           []OnUsageCommitted
	onUsageRolledBack          []OnUsageRolledBack
	onQuotaExceeded            []OnQuotaExceeded
	onWebhookReceived          []OnWebhookReceived
	onWebhookDuplicate         []OnWebhookDuplicate
	onWebhookProcessed         []OnWebhookProcessed
	onCacheInvalidated         []OnCacheInvalidated
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnUserEnsured); ok {
		r.onUserEnsured = append(r.onUserEnsured, v)
	}
	if v, ok := p.(OnSubscriptionSynced); ok {
		r.onSubscriptionSynced = append(r.onSubscriptionSynced, v)
	}
	if v, ok := p.(OnSubscriptionEventApplied); ok {
		r.onSubscriptionEventApplied = append(r.onSubscriptionEventApplied, v)
	}
	if v, ok := p.(OnWalletOpened); ok {
		r.onWalletOpened = append(r.onWalletOpened, v)
	}
	if v, ok := p.(OnWalletClosed); ok {
		r.onWalletClosed = append(r.onWalletClosed, v)
	}
	if v, ok := p.(OnUsageReserved); ok {
		r.onUsageReserved = append(r.onUsageReserved, v)
	}
	if v, ok := p.(OnUsageCommitted); ok {
		r.onUsageCommitted = append(r.onUsageCommitted, v)
	}
	if v, ok := p.(OnUsageRolledBack); ok {
		r.onUsageRolledBack = append(r.onUsageRolledBack, v)
	}
	if v, ok := p.(OnQuotaExceeded); ok {
		r.onQuotaExceeded = append(r.onQuotaExceeded, v)
	}
	if v, ok := p.(OnWebhookReceived); ok {
		r.onWebhookReceived = append(r.onWebhookReceived, v)
	}
	if v, ok := p.(OnWebhookDuplicate); ok {
		r.onWebhookDuplicate = append(r.onWebhookDuplicate, v)
	}
	if v, ok := p.(OnWebhookProcessed); ok {
		r.onWebhookProcessed = append(r.onWebhookProcessed, v)
	}
	if v, ok := p.(OnCacheInvalidated); ok {
		r.onCacheInvalidated = append(r.onCacheInvalidated, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnUserEnsured)(nil)).Elem(), "OnUserEnsured")
	checkInterface(reflect.TypeOf((*OnSubscriptionSynced)(nil)).Elem(), "OnSubscriptionSynced")
	checkInterface(reflect.TypeOf((*OnSubscriptionEventApplied)(nil)).Elem(), "OnSubscriptionEventApplied")
	checkInterface(reflect.TypeOf((*OnWalletOpened)(nil)).Elem(), "OnWalletOpened")
	checkInterface(reflect.TypeOf((*OnWalletClosed)(nil)).Elem(), "OnWalletClosed")
	checkInterface(reflect.TypeOf((*OnUsageReserved)(nil)).Elem(), "OnUsageReserved")
	checkInterface(reflect.TypeOf((*OnUsageCommitted)(nil)).Elem(), "OnUsageCommitted")
	checkInterface(reflect.TypeOf((*OnUsageRolledBack)(nil)).Elem(), "OnUsageRolledBack")
	checkInterface(reflect.TypeOf((*OnQuotaExceeded)(nil)).Elem(), "OnQuotaExceeded")
	checkInterface(reflect.TypeOf((*OnWebhookReceived)(nil)).Elem(), "OnWebhookReceived")
	checkInterface(reflect.TypeOf((*OnWebhookDuplicate)(nil)).Elem(), "OnWebhookDuplicate")
	checkInterface(reflect.TypeOf((*OnWebhookProcessed)(nil)).Elem(), "OnWebhookProcessed")
	checkInterface(reflect.TypeOf((*OnCacheInvalidated)(nil)).Elem(), "OnCacheInvalidated")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, core interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, core)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitUserEnsured emits a user-ensured event.
func (r *Registry) EmitUserEnsured(ctx context.Context, userID string, created bool) {
	r.mu.RLock()
	plugins := r.onUserEnsured
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUserEnsured(ctx, userID, created)
		}); err != nil {
			r.logger.Warn("plugin OnUserEnsured failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitSubscriptionSynced emits a subscription-synced event.
func (r *Registry) EmitSubscriptionSynced(ctx context.Context, userID, planID string) {
	r.mu.RLock()
	plugins := r.onSubscriptionSynced
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionSynced(ctx, userID, planID)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionSynced failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitSubscriptionEventApplied emits a subscription-event-applied event.
func (r *Registry) EmitSubscriptionEventApplied(ctx context.Context, userID, eventType, newStatus string) {
	r.mu.RLock()
	plugins := r.onSubscriptionEventApplied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionEventApplied(ctx, userID, eventType, newStatus)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionEventApplied failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitWalletOpened emits a wallet-opened event.
func (r *Registry) EmitWalletOpened(ctx context.Context, userID, walletID, planID string, quotaTotal int64) {
	r.mu.RLock()
	plugins := r.onWalletOpened
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWalletOpened(ctx, userID, walletID, planID, quotaTotal)
		}); err != nil {
			r.logger.Warn("plugin OnWalletOpened failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitWalletClosed emits a wallet-closed event.
func (r *Registry) EmitWalletClosed(ctx context.Context, userID, walletID, reason string) {
	r.mu.RLock()
	plugins := r.onWalletClosed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWalletClosed(ctx, userID, walletID, reason)
		}); err != nil {
			r.logger.Warn("plugin OnWalletClosed failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitUsageReserved emits a usage-reserved event.
func (r *Registry) EmitUsageReserved(ctx context.Context, userID, requestID string, amount, remaining int64) {
	r.mu.RLock()
	plugins := r.onUsageReserved
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUsageReserved(ctx, userID, requestID, amount, remaining)
		}); err != nil {
			r.logger.Warn("plugin OnUsageReserved failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitUsageCommitted emits a usage-committed event.
func (r *Registry) EmitUsageCommitted(ctx context.Context, userID, requestID string) {
	r.mu.RLock()
	plugins := r.onUsageCommitted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUsageCommitted(ctx, userID, requestID)
		}); err != nil {
			r.logger.Warn("plugin OnUsageCommitted failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitUsageRolledBack emits a usage-rolled-back event.
func (r *Registry) EmitUsageRolledBack(ctx context.Context, userID, requestID string) {
	r.mu.RLock()
	plugins := r.onUsageRolledBack
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUsageRolledBack(ctx, userID, requestID)
		}); err != nil {
			r.logger.Warn("plugin OnUsageRolledBack failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitQuotaExceeded emits a quota-exceeded event.
func (r *Registry) EmitQuotaExceeded(ctx context.Context, userID, requestID string, used, limit int64) {
	r.mu.RLock()
	plugins := r.onQuotaExceeded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnQuotaExceeded(ctx, userID, requestID, used, limit)
		}); err != nil {
			r.logger.Warn("plugin OnQuotaExceeded failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitWebhookReceived emits a webhook-received event.
func (r *Registry) EmitWebhookReceived(ctx context.Context, eventType string, raw []byte) {
	r.mu.RLock()
	plugins := r.onWebhookReceived
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWebhookReceived(ctx, eventType, raw)
		}); err != nil {
			r.logger.Warn("plugin OnWebhookReceived failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitWebhookDuplicate emits a webhook-duplicate event.
func (r *Registry) EmitWebhookDuplicate(ctx context.Context, eventID, eventType string) {
	r.mu.RLock()
	plugins := r.onWebhookDuplicate
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWebhookDuplicate(ctx, eventID, eventType)
		}); err != nil {
			r.logger.Warn("plugin OnWebhookDuplicate failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitWebhookProcessed emits a webhook-processed event.
func (r *Registry) EmitWebhookProcessed(ctx context.Context, eventID, eventType string, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onWebhookProcessed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWebhookProcessed(ctx, eventID, eventType, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnWebhookProcessed failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitCacheInvalidated emits a cache-invalidated event.
func (r *Registry) EmitCacheInvalidated(ctx context.Context, userID string) {
	r.mu.RLock()
	plugins := r.onCacheInvalidated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCacheInvalidated(ctx, userID)
		}); err != nil {
			r.logger.Warn("plugin OnCacheInvalidated failed", "plugin", p.Name(), "error", err)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the quota pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
