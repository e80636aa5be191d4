// Package quota estimates each account's remaining upstream allowance. Probes
// never touch the live auth file: the bearer token comes from the unwrapped
// credential of the target account. Probe failures degrade into an `unknown`
// snapshot instead of failing the refresh.
package quota

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/githubbzxs/codex-switch/internal/apperr"
	"github.com/githubbzxs/codex-switch/internal/config"
	"github.com/githubbzxs/codex-switch/internal/logx"
	"github.com/githubbzxs/codex-switch/internal/store"
	"github.com/githubbzxs/codex-switch/internal/switcher"
	"github.com/githubbzxs/codex-switch/internal/vault"
)

var log = logx.Scoped("quota")

const (
	primaryHost  = "https://chatgpt.com"
	fallbackHost = "https://chat.openai.com"

	codexOrigin    = "https://chatgpt.com"
	codexUserAgent = "codex_cli_rs/0.98.0 (codex-switch)"

	// Probe path sources recorded on snapshots.
	sourcePrimary  = "primary-usage"
	sourceFallback = "fallback-status"
	sourceNone     = "none"
)

// primaryPaths are tried in order; the first is the canonical usage endpoint,
// the second a mirror that some deployments still serve.
var primaryPaths = []string{
	"/backend-api/api/codex/usage",
	"/backend-api/wham/usage",
}

const fallbackPath = "/backend-api/account/status"

// Prober runs bounded concurrent probes and persists one QuotaSnapshot per
// refresh. The HTTP client is shared and safe for concurrent use.
type Prober struct {
	store *store.Store
	vault *vault.Manager

	mu      sync.Mutex
	policy  config.ProbePolicy
	sem     *semaphore.Weighted
	client  *http.Client
	primary string
	fallbck string

	now func() time.Time
}

func NewProber(s *store.Store, v *vault.Manager, policy config.ProbePolicy) *Prober {
	p := &Prober{
		store:   s,
		vault:   v,
		policy:  policy,
		sem:     semaphore.NewWeighted(policy.MaxConcurrency),
		client:  &http.Client{},
		primary: primaryHost,
		fallbck: fallbackHost,
		now:     time.Now,
	}
	return p
}

// NewProberWithHosts builds a Prober aimed at alternate hosts. Integration
// tests point this at local stub servers.
func NewProberWithHosts(s *store.Store, v *vault.Manager, policy config.ProbePolicy, primary, fallback string) *Prober {
	p := NewProber(s, v, policy)
	p.primary = primary
	p.fallbck = fallback
	return p
}

// UpdatePolicy applies a new refresh policy to subsequent probes.
func (p *Prober) UpdatePolicy(policy config.ProbePolicy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if policy.MaxConcurrency != p.policy.MaxConcurrency {
		p.sem = semaphore.NewWeighted(policy.MaxConcurrency)
	}
	p.policy = policy
}

func (p *Prober) currentPolicy() (config.ProbePolicy, *semaphore.Weighted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.policy, p.sem
}

// RefreshAccount produces exactly one snapshot for the account. Non-forced
// refreshes inside the cache TTL return the stored snapshot unchanged.
func (p *Prober) RefreshAccount(ctx context.Context, accountID string, force bool) (*store.QuotaSnapshot, error) {
	policy, sem := p.currentPolicy()

	if !force {
		if cached, err := p.cachedSnapshot(accountID, policy.CacheTTL); err != nil {
			return nil, err
		} else if cached != nil {
			log.Debugf("account %s served from cache (snapshot %s)", accountID, cached.ID)
			return cached, nil
		}
	}

	account, err := p.store.GetAccount(accountID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "load account")
	}
	if account == nil {
		return nil, apperr.New(apperr.KindNotFound, "account %s not found", accountID)
	}

	plaintext, err := p.vault.Unwrap(account.AuthCiphertext)
	if err != nil {
		return nil, err
	}
	doc, err := switcher.ParseAuthDocument(plaintext)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCryptoFailed, err, "stored credential is corrupt")
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer sem.Release(1)

	outcome := p.probe(ctx, doc.AccessToken(), doc.AccountID(), policy)
	snap, err := p.store.SaveQuotaSnapshot(outcome.snapshot(accountID))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "persist quota snapshot")
	}
	return snap, nil
}

// RefreshAll fans out over every account under the concurrency bound and
// returns the resulting snapshots. Probe failures degrade per account; only
// store and vault errors abort.
func (p *Prober) RefreshAll(ctx context.Context, force bool) ([]store.QuotaSnapshot, error) {
	accounts, err := p.store.ListAccounts()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "list accounts")
	}

	var (
		mu    sync.Mutex
		snaps []store.QuotaSnapshot
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, account := range accounts {
		g.Go(func() error {
			snap, err := p.RefreshAccount(ctx, account.ID, force)
			if err != nil {
				return err
			}
			mu.Lock()
			snaps = append(snaps, *snap)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snaps, nil
}

// cachedSnapshot returns the latest stored snapshot when it is younger than
// the TTL.
func (p *Prober) cachedSnapshot(accountID string, ttl time.Duration) (*store.QuotaSnapshot, error) {
	latest, err := p.store.LatestQuotaSnapshot(accountID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, err, "read cached snapshot")
	}
	if latest == nil {
		return nil, nil
	}
	if age := p.now().Sub(latest.CreatedAt); age < 0 || age > ttl {
		return nil, nil
	}
	return latest, nil
}

// probe runs the primary and fallback paths concurrently. A precise result
// wins outright; otherwise the higher-confidence status result; otherwise an
// unknown outcome combining both reasons.
func (p *Prober) probe(ctx context.Context, token, upstreamAccountID string, policy config.ProbePolicy) probeOutcome {
	var primary, fallback probeOutcome

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		primary = p.probePrimary(ctx, token, upstreamAccountID, policy)
	}()
	go func() {
		defer wg.Done()
		fallback = p.probeFallback(ctx, token, upstreamAccountID, policy)
	}()
	wg.Wait()

	return mergeOutcomes(primary, fallback)
}
