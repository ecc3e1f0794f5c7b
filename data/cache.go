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
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/penny-vault/portfolio-tracker/common"
	"github.com/penny-vault/portfolio-tracker/dataframe"
	"github.com/rs/zerolog/log"
)

// CacheItem is a cached series covering Period. Period may extend beyond the
// frame's first and last rows when the covered range includes non-trading days.
type CacheItem struct {
	Frame  *dataframe.DataFrame
	Period *Interval
}

// SeriesCache is an in-memory LRU cache of metric series keyed by ticker and
// metric. Cached ranges never cover the current day so that today's values are
// always re-fetched from the provider.
type SeriesCache struct {
	sizeBytes    int64
	maxSizeBytes int64
	values       map[string][]*CacheItem
	lastSeen     map[string]time.Time
	locker       sync.RWMutex
}

type pair struct {
	key  string
	last time.Time
}

// ByDate sorts key pairs from least- to most-recently used
type ByDate []pair

func (a ByDate) Len() int           { return len(a) }
func (a ByDate) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a ByDate) Less(i, j int) bool { return a[i].last.Before(a[j].last) }

// Functions

func NewSeriesCache(sz int64) *SeriesCache {
	return &SeriesCache{
		sizeBytes:    0,
		maxSizeBytes: sz,
		values:       make(map[string][]*CacheItem, 10),
		lastSeen:     make(map[string]time.Time, 10),
		locker:       sync.RWMutex{},
	}
}

// Check returns if the requested range is in the cache. If the range is not completely covered by the cache
// returns false and a list of intervals covered by the cache that partially match the requested range.
func (cache *SeriesCache) Check(ticker string, metric Metric, begin, end time.Time) (bool, []*Interval) {
	cache.locker.RLock()
	defer cache.locker.RUnlock()

	requestedInterval := &Interval{
		Begin: begin,
		End:   end,
	}

	if err := requestedInterval.Valid(); err != nil {
		log.Error().Err(err).Msg("cannot check cache with invalid interval")
		return false, []*Interval{}
	}

	touchingIntervals := []*Interval{}
	if items, ok := cache.values[key(ticker, metric)]; ok {
		for _, item := range items {
			if item.Period.Contains(requestedInterval) {
				return true, []*Interval{item.Period}
			}
			if item.Period.Overlaps(requestedInterval) {
				touchingIntervals = append(touchingIntervals, item.Period)
			}
		}
	}

	return false, touchingIntervals
}

// Get returns the cached rows within the requested range. If no cached item
// covers the full range return ErrRangeDoesNotExist. An empty frame is a valid
// result when the covered range holds no trading days.
func (cache *SeriesCache) Get(ticker string, metric Metric, begin, end time.Time) (*dataframe.DataFrame, error) {
	cache.locker.RLock()
	defer cache.locker.RUnlock()

	requestedInterval := &Interval{
		Begin: begin,
		End:   end,
	}

	if err := requestedInterval.Valid(); err != nil {
		log.Error().Err(err).Msg("cannot get cache value with invalid interval")
		return nil, ErrInvalidTimeRange
	}

	if items, ok := cache.values[key(ticker, metric)]; ok {
		for _, item := range items {
			if item.Period.Contains(requestedInterval) {
				return item.Frame.Trim(begin, end), nil
			}
		}
	}

	return nil, ErrRangeDoesNotExist
}

// Set adds the frame covering the period begin to end for the specified ticker
// and metric to the cache. Coverage is clamped to yesterday; rows dated today
// or later are discarded so they are always fetched fresh.
func (cache *SeriesCache) Set(ticker string, metric Metric, begin, end time.Time, frame *dataframe.DataFrame) error {
	cache.locker.Lock()
	defer cache.locker.Unlock()

	nyc := common.GetTimezone()
	now := time.Now().In(nyc)
	yesterday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, nyc).AddDate(0, 0, -1)

	if end.After(yesterday) {
		end = yesterday
	}

	if begin.After(end) {
		// nothing cacheable -- the requested period has not completed yet
		return nil
	}

	if frame.Len() > 0 && frame.End().After(end) {
		frame = frame.Trim(frame.Start(), end)
	}

	interval := &Interval{
		Begin: begin,
		End:   end,
	}

	if err := interval.Valid(); err != nil {
		log.Error().Err(err).Msg("cannot set cache value with invalid interval")
		return ErrInvalidTimeRange
	}

	toAddBytes := frameBytes(frame)
	if cache.maxSizeBytes < toAddBytes {
		return ErrDataLargerThanCache
	}

	newTotalSize := toAddBytes + cache.sizeBytes
	if newTotalSize > cache.maxSizeBytes {
		cache.deleteLRU(newTotalSize - cache.maxSizeBytes)
	}

	k := key(ticker, metric)

	var items []*CacheItem
	var ok bool

	if items, ok = cache.values[k]; !ok {
		items = []*CacheItem{}
	}

	items, sizeAdded := cache.merge(&CacheItem{
		Frame:  frame,
		Period: interval,
	}, items)

	cache.values[k] = items
	cache.lastSeen[k] = time.Now()
	cache.sizeBytes += sizeAdded

	return nil
}

// Clear discards all cached items
func (cache *SeriesCache) Clear() {
	cache.locker.Lock()
	defer cache.locker.Unlock()

	cache.values = make(map[string][]*CacheItem, 10)
	cache.lastSeen = make(map[string]time.Time, 10)
	cache.sizeBytes = 0
}

// Count returns the number of ticker + metric series in the cache
func (cache *SeriesCache) Count() int {
	cache.locker.RLock()
	defer cache.locker.RUnlock()
	return len(cache.values)
}

func (cache *SeriesCache) Size() int64 {
	cache.locker.RLock()
	defer cache.locker.RUnlock()
	return cache.sizeBytes
}

// Private Implementation

func key(ticker string, metric Metric) string {
	return fmt.Sprintf("%s:%s", ticker, metric)
}

func frameBytes(frame *dataframe.DataFrame) int64 {
	if frame == nil {
		return 0
	}
	return int64(frame.Len()) * int64(8+8*frame.ColCount())
}

func (cache *SeriesCache) deleteLRU(bytesToDelete int64) {
	lastAccess := make([]pair, 0, len(cache.lastSeen))
	for k, t := range cache.lastSeen {
		lastAccess = append(lastAccess, pair{
			key:  k,
			last: t,
		})
	}

	sort.Sort(ByDate(lastAccess))

	cleared := int64(0)
	for _, keyPair := range lastAccess {
		entry := cache.values[keyPair.key]
		delete(cache.values, keyPair.key)
		delete(cache.lastSeen, keyPair.key)

		for _, item := range entry {
			cleared += frameBytes(item.Frame)
		}

		if cleared >= bytesToDelete {
			break
		}
	}

	cache.sizeBytes -= cleared
}

// merge adds a new item to the list of cached items. Any existing items that
// overlap or are adjacent to the new period are folded into a single item;
// otherwise the new item is inserted in Begin sorted order. Returns the
// updated list and the net change in cached bytes.
func (cache *SeriesCache) merge(newItem *CacheItem, items []*CacheItem) ([]*CacheItem, int64) {
	for _, item := range items {
		if item.Period.Contains(newItem.Period) {
			// nothing to be done data already in cache
			return items, 0
		}
	}

	merged := newItem
	var reclaimed int64
	kept := make([]*CacheItem, 0, len(items)+1)

	for _, item := range items {
		if merged.Period.Contains(item.Period) || merged.Period.Contiguous(item.Period) {
			reclaimed += frameBytes(item.Frame)
			merged = &CacheItem{
				Frame:  mergeFrames(item.Frame, merged.Frame),
				Period: merged.Period.Union(item.Period),
			}
			continue
		}
		kept = append(kept, item)
	}

	kept = append(kept, merged)
	sort.Slice(kept, func(i, j int) bool {
		return kept[i].Period.Begin.Before(kept[j].Period.Begin)
	})

	return kept, frameBytes(merged.Frame) - reclaimed
}

// mergeFrames unions the rows of a and b by date; where both frames hold the
// same date the row from b wins
func mergeFrames(a, b *dataframe.DataFrame) *dataframe.DataFrame {
	if a.Len() == 0 {
		return b.Copy()
	}
	if b.Len() == 0 {
		return a.Copy()
	}

	if len(a.ColNames) != len(b.ColNames) {
		log.Panic().Strs("AColNames", a.ColNames).Strs("BColNames", b.ColNames).Msg("cannot merge frames with different columns")
	}

	nCols := len(b.ColNames)
	rows := make(map[int64][]float64, a.Len()+b.Len())
	dateFor := make(map[int64]time.Time, a.Len()+b.Len())

	addRows := func(df *dataframe.DataFrame) {
		for rowIdx, date := range df.Dates {
			row := make([]float64, nCols)
			for colIdx := 0; colIdx < nCols; colIdx++ {
				row[colIdx] = df.Vals[colIdx][rowIdx]
			}
			rows[date.Unix()] = row
			dateFor[date.Unix()] = date
		}
	}

	addRows(a)
	addRows(b)

	epochs := make([]int64, 0, len(rows))
	for epoch := range rows {
		epochs = append(epochs, epoch)
	}
	sort.Slice(epochs, func(i, j int) bool { return epochs[i] < epochs[j] })

	merged := &dataframe.DataFrame{
		Dates:    make([]time.Time, 0, len(epochs)),
		ColNames: make([]string, nCols),
		Vals:     make([][]float64, nCols),
	}
	copy(merged.ColNames, b.ColNames)
	for colIdx := range merged.Vals {
		merged.Vals[colIdx] = make([]float64, 0, len(epochs))
	}

	for _, epoch := range epochs {
		merged.Dates = append(merged.Dates, dateFor[epoch])
		row := rows[epoch]
		for colIdx := 0; colIdx < nCols; colIdx++ {
			merged.Vals[colIdx] = append(merged.Vals[colIdx], row[colIdx])
		}
	}

	return merged
}
