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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/penny-vault/portfolio-tracker/common"
	"github.com/penny-vault/portfolio-tracker/dataframe"
	"github.com/penny-vault/portfolio-tracker/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
)

const defaultCacheBytes = int64(64 * 1024 * 1024)

// Manager combines the series cache with an upstream provider and serves all
// market data requests. Requests whose range ends before today may be answered
// from cache; any request touching today always goes to the provider.
type Manager struct {
	cache    *SeriesCache
	provider Provider
	rates    *fred
}

var (
	managerOnce     sync.Once
	managerInstance *Manager
)

// GetManagerInstance returns the package singleton, creating it on first use
func GetManagerInstance() *Manager {
	managerOnce.Do(func() {
		cacheBytes := viper.GetInt64("data.series_cache_bytes")
		if cacheBytes == 0 {
			cacheBytes = defaultCacheBytes
		}

		provider := NewRetryingProvider(NewTiingo(viper.GetString("tiingo.token")))
		managerInstance = NewManager(NewSeriesCache(cacheBytes), provider, NewFred())
	})
	return managerInstance
}

// NewManager creates a manager with the given collaborators
func NewManager(cache *SeriesCache, provider Provider, rates *fred) *Manager {
	return &Manager{
		cache:    cache,
		provider: provider,
		rates:    rates,
	}
}

// Reset discards all cached series
func (manager *Manager) Reset() {
	manager.cache.Clear()
}

// GetHistories returns an adjusted close frame per ticker over the requested
// period. Failures are isolated per ticker so a single unknown or unavailable
// security does not fail the whole request.
func (manager *Manager) GetHistories(ctx context.Context, tickers []string, begin, end time.Time) (dataframe.DataFrameMap, map[string]error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "manager.GetHistories")
	defer span.End()

	subLog := log.With().Time("Begin", begin).Time("End", end).Logger()

	tickers = normalizeTickers(tickers)
	frames := make(dataframe.DataFrameMap, len(tickers))
	errs := make(map[string]error)
	cacheEnd := cacheHorizon(end)

	toPull := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		if !end.After(cacheEnd) {
			if contains, _ := manager.cache.Check(ticker, MetricAdjustedClose, begin, cacheEnd); contains {
				if df, err := manager.cache.Get(ticker, MetricAdjustedClose, begin, cacheEnd); err == nil {
					frames[ticker] = df
					continue
				}
			}
		}
		toPull = append(toPull, ticker)
	}

	ch := make(chan eodResult)
	for idx, chunk := range partitionArray(toPull, 10) {
		subLog.Debug().Int("Chunk", idx).Int("NumTickers", len(toPull)).Msg("download eod chunk")
		for ii := range chunk {
			go manager.eodWorker(ctx, ch, chunk[ii], begin, end)
		}

		for range chunk {
			v := <-ch
			if v.Err != nil {
				subLog.Warn().Err(v.Err).Str("Ticker", v.Ticker).Msg("cannot download ticker data")
				errs[v.Ticker] = v.Err
				continue
			}
			frames[v.Ticker] = v.Frame
		}
	}

	return frames, errs
}

// GetDividends returns dividend events with ex-dates in the requested period,
// sorted by ex-date. Tickers that pay no dividends contribute no events.
func (manager *Manager) GetDividends(ctx context.Context, tickers []string, begin, end time.Time) ([]*DividendEvent, map[string]error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "manager.GetDividends")
	defer span.End()

	subLog := log.With().Time("Begin", begin).Time("End", end).Logger()

	tickers = normalizeTickers(tickers)
	events := make([]*DividendEvent, 0)
	errs := make(map[string]error)
	cacheEnd := cacheHorizon(end)

	toPull := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		if !end.After(cacheEnd) {
			if contains, _ := manager.cache.Check(ticker, MetricDividendCash, begin, cacheEnd); contains {
				if df, err := manager.cache.Get(ticker, MetricDividendCash, begin, cacheEnd); err == nil {
					events = append(events, eventsFromFrame(ticker, df)...)
					continue
				}
			}
		}
		toPull = append(toPull, ticker)
	}

	ch := make(chan dividendResult)
	for _, chunk := range partitionArray(toPull, 10) {
		for ii := range chunk {
			go manager.dividendWorker(ctx, ch, chunk[ii], begin, end)
		}

		for range chunk {
			v := <-ch
			if v.Err != nil {
				subLog.Warn().Err(v.Err).Str("Ticker", v.Ticker).Msg("cannot download dividends")
				errs[v.Ticker] = v.Err
				continue
			}
			events = append(events, v.Dividends...)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].ExDate.Equal(events[j].ExDate) {
			return events[i].Ticker < events[j].Ticker
		}
		return events[i].ExDate.Before(events[j].ExDate)
	})

	return events, errs
}

// GetLatestClose returns the most recent closing price available for ticker
// and the date it was observed
func (manager *Manager) GetLatestClose(ctx context.Context, ticker string) (float64, time.Time, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "manager.GetLatestClose")
	defer span.End()

	ticker = strings.ToUpper(ticker)

	nyc := common.GetTimezone()
	now := time.Now().In(nyc)
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, nyc)
	begin := end.AddDate(0, 0, -14)

	bars, err := manager.provider.GetEOD(ctx, ticker, begin, end)
	if err != nil {
		return 0, time.Time{}, err
	}

	if len(bars) == 0 {
		return 0, time.Time{}, fmt.Errorf("%w: no recent close for %s", ErrDataUnavailable, ticker)
	}

	manager.cacheBars(ticker, begin, end, bars)

	last := bars[len(bars)-1]
	return last.Close, last.Date, nil
}

// RiskFreeRate returns the current annualized risk free rate as a decimal
// fraction, e.g. 0.0185 for 1.85%
func (manager *Manager) RiskFreeRate(ctx context.Context) (float64, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "manager.RiskFreeRate")
	defer span.End()

	nyc := common.GetTimezone()
	now := time.Now().In(nyc)
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, nyc)
	begin := end.AddDate(-1, 0, 0)
	cacheEnd := end.AddDate(0, 0, -1)

	var rates *dataframe.DataFrame
	if contains, _ := manager.cache.Check(RiskFreeSeriesID, MetricClose, begin, cacheEnd); contains {
		if df, err := manager.cache.Get(RiskFreeSeriesID, MetricClose, begin, cacheEnd); err == nil {
			rates = df
		}
	}

	if rates == nil {
		operation := func() error {
			var err error
			rates, err = manager.rates.GetRate(ctx, RiskFreeSeriesID, begin, end)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return backoff.Permanent(err)
				}
				return err
			}
			return nil
		}

		if err := withRetry(ctx, configuredMaxRetries(), operation); err != nil {
			log.Warn().Err(err).Str("SeriesID", RiskFreeSeriesID).Msg("risk free rate download failed")
			return 0, fmt.Errorf("%w: %s", ErrDataUnavailable, err.Error())
		}

		if err := manager.cache.Set(RiskFreeSeriesID, MetricClose, begin, end, rates); err != nil {
			log.Warn().Err(err).Str("SeriesID", RiskFreeSeriesID).Msg("could not cache risk free rate")
		}
	}

	if rates.Len() == 0 {
		return 0, fmt.Errorf("%w: no observations for %s", ErrDataUnavailable, RiskFreeSeriesID)
	}

	return rates.Vals[0][rates.Len()-1] / 100.0, nil
}

// Private Implementation

type eodResult struct {
	Ticker string
	Frame  *dataframe.DataFrame
	Err    error
}

type dividendResult struct {
	Ticker    string
	Dividends []*DividendEvent
	Err       error
}

func (manager *Manager) eodWorker(ctx context.Context, result chan<- eodResult, ticker string, begin, end time.Time) {
	bars, err := manager.provider.GetEOD(ctx, ticker, begin, end)
	if err != nil {
		result <- eodResult{Ticker: ticker, Err: err}
		return
	}

	frames := manager.cacheBars(ticker, begin, end, bars)
	result <- eodResult{Ticker: ticker, Frame: frames[MetricAdjustedClose].Trim(begin, end)}
}

func (manager *Manager) dividendWorker(ctx context.Context, result chan<- dividendResult, ticker string, begin, end time.Time) {
	dividends, err := manager.provider.GetDividends(ctx, ticker, begin, end)
	if err != nil {
		result <- dividendResult{Ticker: ticker, Err: err}
		return
	}

	frame := frameFromDividends(ticker, dividends)
	if err := manager.cache.Set(ticker, MetricDividendCash, begin, end, frame); err != nil {
		log.Warn().Err(err).Str("Ticker", ticker).Msg("could not cache dividend series")
	}

	result <- dividendResult{Ticker: ticker, Dividends: dividends}
}

// cacheBars stores the metric series derived from a single eod download; one
// tiingo response carries prices, adjusted prices and dividends
func (manager *Manager) cacheBars(ticker string, begin, end time.Time, bars []*Eod) map[Metric]*dataframe.DataFrame {
	frames := framesFromBars(ticker, bars)
	for metric, frame := range frames {
		if err := manager.cache.Set(ticker, metric, begin, end, frame); err != nil {
			log.Warn().Err(err).Str("Ticker", ticker).Str("Metric", string(metric)).Msg("could not cache series")
		}
	}
	return frames
}

func framesFromBars(ticker string, bars []*Eod) map[Metric]*dataframe.DataFrame {
	dates := make([]time.Time, 0, len(bars))
	adjClose := make([]float64, 0, len(bars))
	closes := make([]float64, 0, len(bars))
	divCash := make([]float64, 0, len(bars))

	for _, bar := range bars {
		dates = append(dates, bar.Date)
		adjClose = append(adjClose, bar.AdjClose)
		closes = append(closes, bar.Close)
		divCash = append(divCash, bar.DivCash)
	}

	return map[Metric]*dataframe.DataFrame{
		MetricAdjustedClose: {Dates: dates, ColNames: []string{ticker}, Vals: [][]float64{adjClose}},
		MetricClose:         {Dates: dates, ColNames: []string{ticker}, Vals: [][]float64{closes}},
		MetricDividendCash:  {Dates: dates, ColNames: []string{ticker}, Vals: [][]float64{divCash}},
	}
}

func frameFromDividends(ticker string, dividends []*DividendEvent) *dataframe.DataFrame {
	dates := make([]time.Time, 0, len(dividends))
	amounts := make([]float64, 0, len(dividends))

	for _, div := range dividends {
		dates = append(dates, div.ExDate)
		amounts = append(amounts, div.Amount)
	}

	return &dataframe.DataFrame{
		Dates:    dates,
		ColNames: []string{ticker},
		Vals:     [][]float64{amounts},
	}
}

func eventsFromFrame(ticker string, df *dataframe.DataFrame) []*DividendEvent {
	events := make([]*DividendEvent, 0, df.Len())
	for idx, date := range df.Dates {
		if df.Vals[0][idx] <= 0 {
			continue
		}
		events = append(events, &DividendEvent{
			Ticker: ticker,
			ExDate: date,
			Amount: df.Vals[0][idx],
		})
	}
	return events
}

// cacheHorizon returns the latest date that may be served from cache; today is
// never served stale
func cacheHorizon(end time.Time) time.Time {
	nyc := common.GetTimezone()
	now := time.Now().In(nyc)
	yesterday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, nyc).AddDate(0, 0, -1)
	if end.After(yesterday) {
		return yesterday
	}
	return end
}

func normalizeTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	normalized := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if ticker == "" || seen[ticker] {
			continue
		}
		seen[ticker] = true
		normalized = append(normalized, ticker)
	}
	return normalized
}

func partitionArray(xs []string, chunkSize int) [][]string {
	if len(xs) == 0 {
		return nil
	}
	divided := make([][]string, (len(xs)+chunkSize-1)/chunkSize)
	prev := 0
	i := 0
	till := len(xs) - chunkSize
	for prev < till {
		next := prev + chunkSize
		divided[i] = xs[prev:next]
		prev = next
		i++
	}
	divided[i] = xs[prev:]
	return divided
}
