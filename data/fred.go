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
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"time"

	"github.com/penny-vault/portfolio-tracker/common"
	"github.com/penny-vault/portfolio-tracker/dataframe"
	"github.com/penny-vault/portfolio-tracker/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var fredURL = "https://fred.stlouisfed.org"

type fred struct{}

// NewFred Create a new Fred data provider
func NewFred() *fred {
	return &fred{}
}

// GetRate downloads the requested rate series and returns it as a single
// column dataframe. Observations FRED reports as missing are skipped.
func (f *fred) GetRate(ctx context.Context, seriesID string, begin, end time.Time) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "fred.GetRate")
	defer span.End()

	subLog := log.With().Str("SeriesID", seriesID).Time("Begin", begin).Time("End", end).Logger()

	url := fmt.Sprintf("%s/graph/fredgraph.csv?mode=fred&id=%s&cosd=%s&coed=%s&fq=Daily&fam=avg", fredURL, seriesID, begin.Format("2006-01-02"), end.Format("2006-01-02"))

	span.SetAttributes(
		attribute.KeyValue{
			Key:   "Url",
			Value: attribute.StringValue(url),
		},
		attribute.KeyValue{
			Key:   "SeriesID",
			Value: attribute.StringValue(seriesID),
		},
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		subLog.Error().Err(err).Msg("could not build fred request")
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		span.RecordError(err)
		msg := "fred http request failed"
		span.SetStatus(codes.Error, msg)
		subLog.Warn().Err(err).Msg(msg)
		return nil, fmt.Errorf("%w: %s", ErrTransient, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		subLog.Warn().Int("HTTPResponseStatusCode", resp.StatusCode).Msg("rate series not known to fred")
		return nil, ErrNotFound
	}

	if resp.StatusCode >= 400 {
		msg := "fred returned invalid response code"
		span.SetStatus(codes.Error, msg)
		subLog.Warn().Int("HTTPResponseStatusCode", resp.StatusCode).Msg(msg)
		return nil, fmt.Errorf("%w: invalid status code %d", ErrTransient, resp.StatusCode)
	}

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		msg := "read fred body failed"
		span.SetStatus(codes.Error, msg)
		subLog.Warn().Err(err).Msg(msg)
		return nil, fmt.Errorf("%w: %s", ErrTransient, err.Error())
	}

	return f.parseRateCSV(seriesID, body)
}

func (f *fred) parseRateCSV(seriesID string, body []byte) (*dataframe.DataFrame, error) {
	subLog := log.With().Str("SeriesID", seriesID).Logger()

	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		subLog.Error().Err(err).Msg("could not parse fred csv")
		return nil, fmt.Errorf("%w: %s", ErrTransient, err.Error())
	}

	df := &dataframe.DataFrame{
		Dates:    []time.Time{},
		ColNames: []string{seriesID},
		Vals:     [][]float64{{}},
	}

	nyc := common.GetTimezone()
	for idx, record := range records {
		// first row is the header
		if idx == 0 || len(record) < 2 {
			continue
		}

		date, err := time.ParseInLocation("2006-01-02", record[0], nyc)
		if err != nil {
			subLog.Warn().Err(err).Str("DateStr", record[0]).Msg("cannot parse date string")
			continue
		}

		// fred reports missing observations as '.'
		val, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			continue
		}

		df.Dates = append(df.Dates, date)
		df.Vals[0] = append(df.Vals[0], val)
	}

	return df, nil
}
