// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/penny-vault/portfolio-tracker/common"
	"github.com/penny-vault/portfolio-tracker/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

type tiingo struct {
	apikey  string
	limiter *rate.Limiter
}

type tiingoJSONResponse struct {
	Date        string  `json:"date"`
	Close       float64 `json:"close"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Open        float64 `json:"open"`
	Volume      int64   `json:"volume"`
	AdjClose    float64 `json:"adjClose"`
	AdjHigh     float64 `json:"adjHigh"`
	AdjLow      float64 `json:"adjLow"`
	AdjOpen     float64 `json:"adjOpen"`
	AdjVolume   int64   `json:"adjVolume"`
	DivCash     float64 `json:"divCash"`
	SplitFactor float64 `json:"splitFactor"`
}

var tiingoAPI = "https://api.tiingo.com"

const defaultTiingoRate = 5

// NewTiingo Create a new Tiingo data provider
func NewTiingo(key string) *tiingo {
	rps := viper.GetFloat64("tiingo.rate_limit")
	if rps <= 0 {
		rps = defaultTiingoRate
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &tiingo{
		apikey:  key,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Provider functions

// GetEOD returns daily price bars for ticker over the requested period
func (t *tiingo) GetEOD(ctx context.Context, ticker string, begin, end time.Time) ([]*Eod, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.GetEOD")
	defer span.End()

	quotes, err := t.fetchPrices(ctx, ticker, begin, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "eod download failed")
		return nil, err
	}

	bars := make([]*Eod, 0, len(quotes))
	for _, quote := range quotes {
		date, err := t.parseDate(quote.Date)
		if err != nil {
			return nil, err
		}

		bars = append(bars, &Eod{
			Date:        date,
			Open:        quote.Open,
			High:        quote.High,
			Low:         quote.Low,
			Close:       quote.Close,
			Volume:      quote.Volume,
			AdjClose:    quote.AdjClose,
			DivCash:     quote.DivCash,
			SplitFactor: quote.SplitFactor,
		})
	}

	return bars, nil
}

// GetDividends returns cash dividends paid on ticker with an ex-date in the requested period
func (t *tiingo) GetDividends(ctx context.Context, ticker string, begin, end time.Time) ([]*DividendEvent, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.GetDividends")
	defer span.End()

	quotes, err := t.fetchPrices(ctx, ticker, begin, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dividend download failed")
		return nil, err
	}

	dividends := make([]*DividendEvent, 0, len(quotes))
	for _, quote := range quotes {
		if quote.DivCash <= 0 {
			continue
		}

		date, err := t.parseDate(quote.Date)
		if err != nil {
			return nil, err
		}

		dividends = append(dividends, &DividendEvent{
			Ticker: ticker,
			ExDate: date,
			Amount: quote.DivCash,
		})
	}

	return dividends, nil
}

// Private Implementation

func (t *tiingo) fetchPrices(ctx context.Context, ticker string, begin, end time.Time) ([]tiingoJSONResponse, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.fetchPrices")
	defer span.End()

	ticker = strings.ToUpper(ticker)
	subLog := log.With().Str("Ticker", ticker).Time("Begin", begin).Time("End", end).Logger()

	url := fmt.Sprintf("%s/tiingo/daily/%s/prices?startDate=%s&endDate=%s&format=json&resampleFreq=daily&token=%s", tiingoAPI, ticker, begin.Format("2006-01-02"), end.Format("2006-01-02"), t.apikey)

	span.SetAttributes(
		attribute.KeyValue{
			Key:   "Url",
			Value: attribute.StringValue(fmt.Sprintf("%s/tiingo/daily/%s/prices?startDate=%s&endDate=%s&format=json&resampleFreq=daily", tiingoAPI, ticker, begin.Format("2006-01-02"), end.Format("2006-01-02"))),
		},
		attribute.KeyValue{
			Key:   "Ticker",
			Value: attribute.StringValue(ticker),
		},
	)

	if err := t.limiter.Wait(ctx); err != nil {
		subLog.Warn().Err(err).Msg("rate limiter interrupted")
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		subLog.Error().Err(err).Msg("could not build tiingo request")
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		subLog.Warn().Err(err).Msg("tiingo http request failed")
		return nil, fmt.Errorf("%w: %s", ErrTransient, err.Error())
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		subLog.Warn().Err(err).Int("HTTPResponseStatusCode", resp.StatusCode).Msg("read tiingo body failed")
		return nil, fmt.Errorf("%w: %s", ErrTransient, err.Error())
	}

	if resp.StatusCode == http.StatusNotFound {
		subLog.Warn().Int("HTTPResponseStatusCode", resp.StatusCode).Msg("security not known to tiingo")
		return nil, ErrNotFound
	}

	if resp.StatusCode >= 400 {
		subLog.Warn().Int("HTTPResponseStatusCode", resp.StatusCode).Bytes("Body", body).Msg("tiingo returned invalid response code")
		return nil, fmt.Errorf("%w: invalid status code %d", ErrTransient, resp.StatusCode)
	}

	quotes := []tiingoJSONResponse{}
	if err := json.Unmarshal(body, &quotes); err != nil {
		subLog.Error().Err(err).Bytes("Body", body).Msg("could not unmarshal json")
		return nil, fmt.Errorf("%w: %s", ErrTransient, err.Error())
	}

	return quotes, nil
}

func (t *tiingo) parseDate(dateStr string) (time.Time, error) {
	dtParts := strings.Split(dateStr, "T")
	date, err := time.ParseInLocation("2006-01-02", dtParts[0], common.GetTimezone())
	if err != nil {
		log.Error().Err(err).Str("DateStr", dateStr).Msg("cannot parse date string")
		return time.Time{}, fmt.Errorf("%w: cannot parse date %s", ErrTransient, dateStr)
	}
	return date, nil
}
