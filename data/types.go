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
	"time"

	"github.com/rs/zerolog"
)

// RiskFreeSeriesID is the FRED series used as the risk free rate proxy
const RiskFreeSeriesID = "DGS3MO"

// Eod is a single daily price bar for a ticker
type Eod struct {
	Date        time.Time `json:"date"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      int64     `json:"volume"`
	AdjClose    float64   `json:"adjClose"`
	DivCash     float64   `json:"divCash"`
	SplitFactor float64   `json:"splitFactor"`
}

// DividendEvent is a cash dividend paid by ticker with the given ex-date
type DividendEvent struct {
	Ticker string    `json:"ticker"`
	ExDate time.Time `json:"exDate"`
	Amount float64   `json:"amount"`
}

// MarshalZerologObject implement the log marshaller interface for zerolog
func (div *DividendEvent) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Ticker", div.Ticker).Time("ExDate", div.ExDate).Float64("Amount", div.Amount)
}

// Metric identifies which series of a ticker is requested
type Metric string

const (
	MetricOpen          Metric = "Open"
	MetricLow           Metric = "Low"
	MetricHigh          Metric = "High"
	MetricClose         Metric = "Close"
	MetricVolume        Metric = "Volume"
	MetricAdjustedClose Metric = "AdjustedClose"
	MetricDividendCash  Metric = "DividendCash"
	MetricSplitFactor   Metric = "SplitFactor"
)
