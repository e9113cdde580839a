package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jpalmerr/channelboard/datatable"
	"github.com/jpalmerr/channelboard/internal/store"
)

const (
	defaultViewTTL      = 30 * time.Minute
	viewCleanupInterval = 5 * time.Minute
)

// view is the table state of one operator session.
//
// datatable.Table is not safe for concurrent use; every access goes through
// mu.
type view struct {
	mu    sync.Mutex
	table *datatable.Table[store.Channel]
}

// viewCache holds one view per session view ID, expiring idle views.
type viewCache struct {
	cache       *cache.Cache
	columns     []datatable.Column[store.Channel]
	visibility  map[string]bool
	placeholder string
	logger      *slog.Logger
	newMu       sync.Mutex
}

func newViewCache(ttl time.Duration, visibility map[string]bool, placeholder string, logger *slog.Logger) (*viewCache, error) {
	if ttl <= 0 {
		ttl = defaultViewTTL
	}
	vc := &viewCache{
		cache:       cache.New(ttl, viewCleanupInterval),
		columns:     channelColumns(),
		visibility:  visibility,
		placeholder: placeholder,
		logger:      logger,
	}

	// validate the schema once so get can use MustNew
	if _, err := datatable.New(vc.columns, vc.tableOptions()...); err != nil {
		return nil, err
	}
	return vc, nil
}

func (vc *viewCache) tableOptions() []datatable.Option {
	placeholder := vc.placeholder
	if placeholder == "" {
		placeholder = defaultFilterPlaceholder
	}
	return []datatable.Option{
		datatable.WithInitialVisibility(vc.visibility),
		datatable.WithFilterPlaceholder(placeholder),
		datatable.WithLogger(vc.logger),
	}
}

// get returns the view for id, creating it on first use. Every access
// restarts the idle expiry.
func (vc *viewCache) get(id string) *view {
	vc.newMu.Lock()
	defer vc.newMu.Unlock()

	if v, ok := vc.cache.Get(id); ok {
		vc.cache.Set(id, v, cache.DefaultExpiration)
		return v.(*view)
	}

	v := &view{table: datatable.MustNew(vc.columns, vc.tableOptions()...)}
	vc.cache.Set(id, v, cache.DefaultExpiration)
	return v
}

// drop removes the view for id.
func (vc *viewCache) drop(id string) {
	vc.cache.Delete(id)
}

// len returns the number of live views.
func (vc *viewCache) len() int {
	return vc.cache.ItemCount()
}
