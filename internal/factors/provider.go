package factors

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"alpha_sim/internal/clock"
	"alpha_sim/internal/models"

	"go.uber.org/zap"
)

// ArchiveSearchDays bounds the backward archive scan. Starting from
// yesterday (today's archive is assumed not yet published), a week covers
// any weekend/holiday gap; past that the market's data is simply missing and
// an unbounded scan would hide it.
const ArchiveSearchDays = 7

// DefaultInvalidationPeriod is how often hydration bookkeeping is cleared so
// a long-running process picks up newly published archives.
const DefaultInvalidationPeriod = 24 * time.Hour

// FileSource abstracts the on-disk factor layout. *storage.Store implements
// it; tests substitute an in-memory source.
type FileSource interface {
	FactorFileLines(securityType models.SecurityType, market, permtick string) ([]string, bool, error)
	FactorArchive(securityType models.SecurityType, market string, date time.Time) (map[string][]string, bool, error)
}

// Provider resolves symbols to factor chains, hiding whether the chain comes
// from a per-instrument flat file or a dated whole-market archive.
//
// The chain cache tolerates concurrent readers; the hydration bookkeeping has
// its own lock so deciding whether an archive pass is needed never contends
// with cache reads.
type Provider struct {
	source      FileSource
	resolver    models.TickerResolver
	clk         clock.Clock
	log         *zap.Logger
	useArchives bool

	mu     sync.RWMutex
	chains map[string]*Chain // keyed by Symbol.Key()

	hydrateMu sync.Mutex
	hydrated  map[string]struct{} // "<market>/<securityType>"

	stopOnce sync.Once
	stop     chan struct{}
}

// NewProvider builds a provider. With useArchives the first request for a
// (market, security type) pair triggers a whole-market archive load; without
// it every instrument loads from its own flat file.
func NewProvider(source FileSource, resolver models.TickerResolver, clk clock.Clock, log *zap.Logger, useArchives bool) *Provider {
	if resolver == nil {
		resolver = models.IdentityResolver{}
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{
		source:      source,
		resolver:    resolver,
		clk:         clk,
		log:         log,
		useArchives: useArchives,
		chains:      make(map[string]*Chain),
		hydrated:    make(map[string]struct{}),
		stop:        make(chan struct{}),
	}
}

// Start launches the background invalidation timer. Only the hydration
// bookkeeping is cleared on each tick; loaded chains stay cached until a
// fresh archive actually replaces them.
func (p *Provider) Start(period time.Duration) {
	if period <= 0 {
		period = DefaultInvalidationPeriod
	}
	go func() {
		for {
			select {
			case <-p.stop:
				return
			case <-p.clk.After(period):
				p.hydrateMu.Lock()
				p.hydrated = make(map[string]struct{})
				p.hydrateMu.Unlock()
				p.log.Debug("factor archive bookkeeping invalidated")
			}
		}
	}()
}

// Stop terminates the invalidation timer. Safe to call more than once.
func (p *Provider) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// Get returns the factor chain for a symbol. Cache hits are lock-free for
// writers and safe for concurrent readers. A symbol with no factor data gets
// a synthetic identity chain: adjustment absence is tolerable, a missing
// whole-market archive (bounded search exhausted) is not and fails.
func (p *Provider) Get(symbol models.Symbol) (*Chain, error) {
	key := symbol.Key()

	p.mu.RLock()
	chain, ok := p.chains[key]
	p.mu.RUnlock()
	if ok {
		return chain, nil
	}

	// Derivatives resolve through their underlying's identity; the result is
	// still cached under the original symbol so each derivative keeps its own
	// slot.
	canonical := symbol.Canonical()
	permtick, err := p.resolver.Resolve(canonical, p.clk.Now())
	if err != nil {
		return nil, fmt.Errorf("resolving permtick for %s: %w", symbol, err)
	}

	if p.useArchives {
		if err := p.ensureHydrated(canonical.Market, canonical.SecurityType); err != nil {
			return nil, err
		}
		p.mu.RLock()
		chain, ok = p.chains[chainKey(canonical.Market, canonical.SecurityType, permtick)]
		p.mu.RUnlock()
	}

	if chain == nil {
		chain, err = p.loadFlatFile(canonical, permtick)
		if err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	p.chains[key] = chain
	p.mu.Unlock()
	return chain, nil
}

func (p *Provider) loadFlatFile(canonical models.Symbol, permtick string) (*Chain, error) {
	lines, found, err := p.source.FactorFileLines(canonical.SecurityType, canonical.Market, permtick)
	if err != nil {
		return nil, err
	}
	if !found {
		p.log.Warn("no factor file found, using identity chain",
			zap.String("permtick", permtick),
			zap.String("market", canonical.Market))
		return NewEmptyChain(permtick), nil
	}
	return Parse(permtick, lines), nil
}

// ensureHydrated performs the once-per-key archive load, searching backward
// day by day from yesterday. The bookkeeping lock covers a single key's
// archive read; cache merging happens under the cache lock afterward.
func (p *Provider) ensureHydrated(market string, securityType models.SecurityType) error {
	key := strings.ToLower(market) + "/" + string(securityType)

	p.hydrateMu.Lock()
	defer p.hydrateMu.Unlock()
	if _, done := p.hydrated[key]; done {
		return nil
	}

	now := p.clk.Now()
	for i := 1; i <= ArchiveSearchDays; i++ {
		date := now.AddDate(0, 0, -i)
		entries, found, err := p.source.FactorArchive(securityType, market, date)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		p.merge(market, securityType, entries)
		p.hydrated[key] = struct{}{}
		p.log.Info("factor archive hydrated",
			zap.String("market", market),
			zap.String("security_type", string(securityType)),
			zap.String("date", date.Format("20060102")),
			zap.Int("instruments", len(entries)))
		return nil
	}
	return fmt.Errorf("factors: no factor archive for %s/%s within the last %d days",
		market, securityType, ArchiveSearchDays)
}

// merge inserts every archive entry into the cache. Keys are market scoped,
// so hydrating one market never disturbs another's entries.
func (p *Provider) merge(market string, securityType models.SecurityType, entries map[string][]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for permtick, lines := range entries {
		p.chains[chainKey(market, securityType, permtick)] = Parse(permtick, lines)
	}
}

func chainKey(market string, securityType models.SecurityType, permtick string) string {
	return strings.ToLower(market) + ":" + string(securityType) + ":" + strings.ToUpper(permtick)
}
