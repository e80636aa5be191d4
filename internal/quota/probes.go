package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/githubbzxs/codex-switch/internal/config"
	"github.com/githubbzxs/codex-switch/internal/store"
)

// Confidence scale per probe path.
const (
	confidencePrimaryPrecise   = 90
	confidenceSecondaryPrecise = 80
	confidenceStatus           = 50
	confidenceUnknown          = 0
)

// probeOutcome is one probe path's verdict before persistence.
type probeOutcome struct {
	mode           string
	remainingValue *float64
	remainingUnit  *string
	quotaState     string
	resetAt        *time.Time
	source         string
	confidence     int
	reason         *string
}

func unknownOutcome(source, reason string) probeOutcome {
	return probeOutcome{
		mode:       store.QuotaModeUnknown,
		quotaState: store.QuotaStateUnknown,
		source:     source,
		confidence: confidenceUnknown,
		reason:     &reason,
	}
}

func (o probeOutcome) snapshot(accountID string) *store.QuotaSnapshot {
	return &store.QuotaSnapshot{
		AccountID:      accountID,
		Mode:           o.mode,
		RemainingValue: o.remainingValue,
		RemainingUnit:  o.remainingUnit,
		QuotaState:     o.quotaState,
		ResetAt:        o.resetAt,
		Source:         o.source,
		Confidence:     o.confidence,
		Reason:         o.reason,
	}
}

// probePrimary tries the usage endpoints in order. A parsed remaining value
// yields a precise outcome whose confidence depends on which endpoint
// answered; a 429 maps to a near_limit status outcome.
func (p *Prober) probePrimary(ctx context.Context, token, upstreamAccountID string, policy config.ProbePolicy) probeOutcome {
	lastReason := "source_unavailable"

	for i, path := range primaryPaths {
		endpoint := p.primary + path
		resp, err := p.get(ctx, endpoint, token, upstreamAccountID, policy.Timeout)
		if err != nil {
			lastReason = requestErrorReason(err, endpoint)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			drain(resp)
			return probeOutcome{
				mode:       store.QuotaModeStatus,
				quotaState: store.QuotaStateNearLimit,
				source:     sourcePrimary,
				confidence: confidenceStatus,
			}
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			drain(resp)
			return unknownOutcome(sourcePrimary, httpStatusReason(resp.StatusCode, endpoint))
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			drain(resp)
			lastReason = httpStatusReason(resp.StatusCode, endpoint)
			continue
		}
		drain(resp)

		confidence := confidencePrimaryPrecise
		if i > 0 {
			confidence = confidenceSecondaryPrecise
		}
		if outcome, ok := outcomeFromHeaders(resp.Header, policy, confidence); ok {
			return outcome
		}
		lastReason = "quota_headers_missing@" + endpoint
	}

	return unknownOutcome(sourcePrimary, lastReason)
}

// fallbackStatus is the account status document the fallback endpoint serves.
type fallbackStatus struct {
	Plan  string `json:"plan"`
	Error string `json:"error"`
}

// probeFallback asks the mirror host for a coarse account status.
// 200 with a plan -> available; 402 or quota_exceeded -> exhausted;
// 429 -> near_limit; anything else -> unknown with a short reason.
func (p *Prober) probeFallback(ctx context.Context, token, upstreamAccountID string, policy config.ProbePolicy) probeOutcome {
	endpoint := p.fallbck + fallbackPath
	resp, err := p.get(ctx, endpoint, token, upstreamAccountID, policy.Timeout)
	if err != nil {
		return unknownOutcome(sourceFallback, requestErrorReason(err, endpoint))
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()

	status := func(state string) probeOutcome {
		return probeOutcome{
			mode:       store.QuotaModeStatus,
			quotaState: state,
			source:     sourceFallback,
			confidence: confidenceStatus,
		}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var parsed fallbackStatus
		if err := json.Unmarshal(body, &parsed); err != nil {
			return unknownOutcome(sourceFallback, "status_parse_failed@"+endpoint)
		}
		if strings.EqualFold(parsed.Error, "quota_exceeded") {
			return status(store.QuotaStateExhausted)
		}
		if strings.TrimSpace(parsed.Plan) == "" {
			return unknownOutcome(sourceFallback, "plan_missing@"+endpoint)
		}
		return status(store.QuotaStateAvailable)
	case http.StatusPaymentRequired:
		return status(store.QuotaStateExhausted)
	case http.StatusTooManyRequests:
		return status(store.QuotaStateNearLimit)
	default:
		if strings.Contains(strings.ToLower(string(body)), "quota_exceeded") {
			return status(store.QuotaStateExhausted)
		}
		return unknownOutcome(sourceFallback, httpStatusReason(resp.StatusCode, endpoint))
	}
}

// mergeOutcomes picks the winner: precise beats everything, then the
// higher-confidence status, then a combined unknown.
func mergeOutcomes(primary, fallback probeOutcome) probeOutcome {
	if primary.mode == store.QuotaModePrecise {
		return primary
	}
	if fallback.mode == store.QuotaModePrecise {
		return fallback
	}

	primaryIsStatus := primary.mode == store.QuotaModeStatus
	fallbackIsStatus := fallback.mode == store.QuotaModeStatus
	switch {
	case primaryIsStatus && fallbackIsStatus:
		if fallback.confidence > primary.confidence {
			return fallback
		}
		return primary
	case primaryIsStatus:
		return primary
	case fallbackIsStatus:
		return fallback
	}

	reason := fmt.Sprintf("primary:%s|fallback:%s", reasonOrUnknown(primary.reason), reasonOrUnknown(fallback.reason))
	return unknownOutcome(sourceNone, reason)
}

func reasonOrUnknown(reason *string) string {
	if reason == nil {
		return "unknown"
	}
	return *reason
}

// outcomeFromHeaders parses the X-Codex response headers. A present
// remaining value makes the outcome precise.
func outcomeFromHeaders(h http.Header, policy config.ProbePolicy, confidence int) (probeOutcome, bool) {
	raw := strings.TrimSpace(h.Get(policy.RemainingHeader))
	if raw == "" {
		return probeOutcome{}, false
	}
	remaining, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return probeOutcome{}, false
	}

	outcome := probeOutcome{
		mode:           store.QuotaModePrecise,
		remainingValue: &remaining,
		quotaState:     stateFromRemaining(remaining),
		source:         sourcePrimary,
		confidence:     confidence,
	}
	if unit := strings.TrimSpace(h.Get(policy.UnitHeader)); unit != "" {
		outcome.remainingUnit = &unit
	}
	if raw := strings.TrimSpace(h.Get(policy.ResetHeader)); raw != "" {
		if resetAt, err := time.Parse(time.RFC3339, raw); err == nil {
			outcome.resetAt = &resetAt
		}
	}
	return outcome, true
}

func stateFromRemaining(value float64) string {
	switch {
	case value <= 0:
		return store.QuotaStateExhausted
	case value <= 3:
		return store.QuotaStateNearLimit
	default:
		return store.QuotaStateAvailable
	}
}

func (p *Prober) get(ctx context.Context, endpoint, token, upstreamAccountID string, timeout time.Duration) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", codexUserAgent)
	req.Header.Set("Origin", codexOrigin)
	req.Header.Set("Accept", "application/json")
	if upstreamAccountID != "" {
		req.Header.Set("Chatgpt-Account-Id", upstreamAccountID)
	}
	return p.client.Do(req)
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
}

func requestErrorReason(err error, endpoint string) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "request_timeout@" + endpoint
	case errors.Is(err, context.Canceled):
		return "request_canceled@" + endpoint
	default:
		return "connect_failed@" + endpoint
	}
}

func httpStatusReason(code int, endpoint string) string {
	label := "source_unavailable"
	switch {
	case code == http.StatusUnauthorized:
		label = "auth_expired"
	case code == http.StatusForbidden:
		label = "auth_forbidden"
	case code == http.StatusNotFound:
		label = "endpoint_not_found"
	case code == http.StatusTooManyRequests:
		label = "rate_limited"
	case code >= 500:
		label = "upstream_unavailable"
	case code >= 400:
		label = "client_error"
	}
	return fmt.Sprintf("%s@%d:%s", label, code, endpoint)
}
