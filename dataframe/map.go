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
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

type DataFrameMap map[string]*DataFrame

// Keys returns the map keys in sorted order
func (dfMap DataFrameMap) Keys() []string {
	keys := make([]string, 0, len(dfMap))
	for k := range dfMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Align reduces each dataframe in the map to the dates all dataframes share
// (an inner join on the date index). Dates present in one frame but missing
// from another are discarded, not filled.
func (dfMap DataFrameMap) Align() DataFrameMap {
	if len(dfMap) == 0 {
		return dfMap
	}

	// count how many frames contain each date
	dateCnt := make(map[int64]int, 252)
	for _, df := range dfMap {
		for _, dt := range df.Dates {
			dateCnt[dt.Unix()]++
		}
	}

	shared := make(map[int64]bool, len(dateCnt))
	for dt, cnt := range dateCnt {
		if cnt == len(dfMap) {
			shared[dt] = true
		}
	}

	dfMapAligned := make(DataFrameMap, len(dfMap))
	for k, df := range dfMap {
		aligned := &DataFrame{
			ColNames: df.ColNames,
			Dates:    make([]time.Time, 0, len(shared)),
			Vals:     make([][]float64, len(df.Vals)),
		}

		for rowIdx, dt := range df.Dates {
			if !shared[dt.Unix()] {
				continue
			}
			aligned.Dates = append(aligned.Dates, dt)
			for colIdx := range df.Vals {
				aligned.Vals[colIdx] = append(aligned.Vals[colIdx], df.Vals[colIdx][rowIdx])
			}
		}

		dfMapAligned[k] = aligned
	}

	return dfMapAligned
}

// Drop calls dataframe.Drop on each dataframe in the map
func (dfMap DataFrameMap) Drop(val float64) DataFrameMap {
	for _, v := range dfMap {
		v.Drop(val)
	}
	return dfMap
}

// Trim calls dataframe.Trim on each dataframe in the map and returns a new map
func (dfMap DataFrameMap) Trim(begin, end time.Time) DataFrameMap {
	dfMapTrimmed := make(DataFrameMap, len(dfMap))
	for k, df := range dfMap {
		dfMapTrimmed[k] = df.Trim(begin, end)
	}
	return dfMapTrimmed
}

// DataFrame converts each item in the map to a column in the dataframe. If dataframes
// do not align they are first reduced to their shared dates. Columns are ordered by
// sorted map key so repeated calls produce the same layout
func (dfMap DataFrameMap) DataFrame() *DataFrame {
	df := &DataFrame{}
	first := true
	dfMap2 := dfMap.Align()
	for _, k := range dfMap2.Keys() {
		v := dfMap2[k]
		if first {
			df.Dates = v.Dates
			df.ColNames = v.ColNames
			df.Vals = v.Vals
			first = false
		} else {
			if len(df.Dates) != len(v.Dates) ||
				!df.Start().Equal(v.Start()) ||
				!df.End().Equal(v.End()) {
				log.Panic().Time("df1.Start", df.Start()).Time("df1.End", df.End()).Time("df2.Start", v.Start()).Time("df2.End", v.End()).Msg("date indexes do not match - cannot merge into single dataframe")
			}
			df.ColNames = append(df.ColNames, v.ColNames...)
			df.Vals = append(df.Vals, v.Vals...)
		}
	}

	return df
}
