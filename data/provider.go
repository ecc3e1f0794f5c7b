// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Provider retrieves quotes and dividend events from an upstream market data service
type Provider interface {
	GetEOD(ctx context.Context, ticker string, begin, end time.Time) ([]*Eod, error)
	GetDividends(ctx context.Context, ticker string, begin, end time.Time) ([]*DividendEvent, error)
}

// RetryingProvider wraps a Provider with bounded exponential backoff. Requests
// that fail with ErrNotFound are not retried; requests that exhaust their
// retry budget or run out the context are reported as ErrDataUnavailable.
type RetryingProvider struct {
	provider   Provider
	maxRetries uint64
}

func NewRetryingProvider(provider Provider) *RetryingProvider {
	return &RetryingProvider{
		provider:   provider,
		maxRetries: configuredMaxRetries(),
	}
}

func configuredMaxRetries() uint64 {
	maxRetries := viper.GetUint64("data.max_retries")
	if maxRetries == 0 {
		maxRetries = 3
	}
	return maxRetries
}

// withRetry runs operation with exponential backoff until it succeeds, returns
// a permanent error, exhausts maxRetries or the context ends
func withRetry(ctx context.Context, maxRetries uint64, operation backoff.Operation) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 250 * time.Millisecond
	exp.MaxInterval = 5 * time.Second
	exp.MaxElapsedTime = 0

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(exp, maxRetries), ctx))
}

func (retry *RetryingProvider) GetEOD(ctx context.Context, ticker string, begin, end time.Time) ([]*Eod, error) {
	var quotes []*Eod

	operation := func() error {
		var err error
		quotes, err = retry.provider.GetEOD(ctx, ticker, begin, end)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	if err := withRetry(ctx, retry.maxRetries, operation); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		log.Warn().Err(err).Str("Ticker", ticker).Msg("eod download failed after retries")
		return nil, fmt.Errorf("%w: %s", ErrDataUnavailable, err.Error())
	}

	return quotes, nil
}

func (retry *RetryingProvider) GetDividends(ctx context.Context, ticker string, begin, end time.Time) ([]*DividendEvent, error) {
	var dividends []*DividendEvent

	operation := func() error {
		var err error
		dividends, err = retry.provider.GetDividends(ctx, ticker, begin, end)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	if err := withRetry(ctx, retry.maxRetries, operation); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		log.Warn().Err(err).Str("Ticker", ticker).Msg("dividend download failed after retries")
		return nil, fmt.Errorf("%w: %s", ErrDataUnavailable, err.Error())
	}

	return dividends, nil
}
