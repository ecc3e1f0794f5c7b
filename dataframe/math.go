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

package dataframe

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PctChange computes the percent change between successive rows for every column
// and returns a new dataframe. The first row is dropped since it has no prior
// value to compare against
func (df *DataFrame) PctChange() *DataFrame {
	if df.Len() < 2 {
		return &DataFrame{
			ColNames: df.ColNames,
			Dates:    []time.Time{},
			Vals:     make([][]float64, len(df.ColNames)),
		}
	}

	n := df.Len() - 1
	retVals := make([][]float64, len(df.Vals))
	for colIdx, col := range df.Vals {
		rets := make([]float64, n)
		copy(rets, col[1:])
		floats.Div(rets, col[:n])
		floats.AddConst(-1, rets)
		retVals[colIdx] = rets
	}

	return &DataFrame{
		ColNames: df.ColNames,
		Dates:    df.Dates[1:],
		Vals:     retVals,
	}
}

// Mean computes the arithmetic mean of each column
func (df *DataFrame) Mean() []float64 {
	res := make([]float64, len(df.Vals))
	for colIdx, col := range df.Vals {
		res[colIdx] = stat.Mean(col, nil)
	}
	return res
}

// Stdev computes the sample standard deviation of each column
func (df *DataFrame) Stdev() []float64 {
	res := make([]float64, len(df.Vals))
	for colIdx, col := range df.Vals {
		res[colIdx] = stat.StdDev(col, nil)
	}
	return res
}

// MulScalar multiplies all columns in dataframe df by the scalar and returns a new dataframe
func (df *DataFrame) MulScalar(scalar float64) *DataFrame {
	df = df.Copy()

	for colIdx := range df.ColNames {
		for rowIdx := range df.Vals[colIdx] {
			df.Vals[colIdx][rowIdx] *= scalar
		}
	}
	return df
}
