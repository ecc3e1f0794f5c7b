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

package data_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gmeasure"

	"github.com/penny-vault/portfolio-tracker/common"
	"github.com/penny-vault/portfolio-tracker/data"
	"github.com/penny-vault/portfolio-tracker/dataframe"
)

func tz() *time.Location {
	return common.GetTimezone()
}

// priceFrame builds a single column frame with one row per calendar day
func priceFrame(ticker string, start time.Time, vals ...float64) *dataframe.DataFrame {
	dates := make([]time.Time, len(vals))
	for idx := range vals {
		dates[idx] = start.AddDate(0, 0, idx)
	}
	return &dataframe.DataFrame{
		Dates:    dates,
		ColNames: []string{ticker},
		Vals:     [][]float64{vals},
	}
}

func frameWithDates(ticker string, dates []time.Time, vals []float64) *dataframe.DataFrame {
	return &dataframe.DataFrame{
		Dates:    dates,
		ColNames: []string{ticker},
		Vals:     [][]float64{vals},
	}
}

var _ = Describe("Cache", func() {
	Describe("When the cache is initialized", func() {
		Context("with a contiguous series for a single ticker and metric", func() {
			var (
				cache *data.SeriesCache
				dates []time.Time
			)

			BeforeEach(func() {
				dates = []time.Time{
					time.Date(2022, 8, 1, 0, 0, 0, 0, tz()),
					time.Date(2022, 8, 2, 0, 0, 0, 0, tz()),
					time.Date(2022, 8, 3, 0, 0, 0, 0, tz()),
					time.Date(2022, 8, 4, 0, 0, 0, 0, tz()),
					time.Date(2022, 8, 5, 0, 0, 0, 0, tz()),
					time.Date(2022, 8, 8, 0, 0, 0, 0, tz()),
					time.Date(2022, 8, 9, 0, 0, 0, 0, tz()),
				}

				cache = data.NewSeriesCache(1024)
			})

			It("benchmarks performance", func() {
				begin := time.Date(2022, 8, 1, 0, 0, 0, 0, tz())
				end := time.Date(2022, 8, 9, 0, 0, 0, 0, tz())
				frame := frameWithDates("VFINX", dates, []float64{0, 1, 2, 3, 4, 5, 6})

				experiment := gmeasure.NewExperiment("cache set")
				AddReportEntry(experiment.Name, experiment)

				experiment.SampleDuration("simple set", func(_ int) {
					cache = data.NewSeriesCache(1024)
					err := cache.Set("VFINX", data.MetricAdjustedClose, begin, end, frame)
					Expect(err).To(BeNil())
				}, gmeasure.SamplingConfig{N: 1000})

				cache = data.NewSeriesCache(1024)
				err := cache.Set("VFINX", data.MetricAdjustedClose, begin, end, frame)
				Expect(err).To(BeNil())

				beginSubset := time.Date(2022, 8, 4, 0, 0, 0, 0, tz())
				endSubset := time.Date(2022, 8, 8, 0, 0, 0, 0, tz())

				experiment.SampleDuration("simple get", func(_ int) {
					df, err := cache.Get("VFINX", data.MetricAdjustedClose, beginSubset, endSubset)
					Expect(err).To(BeNil())
					Expect(df.Vals[0]).To(Equal([]float64{3, 4, 5}))
				}, gmeasure.SamplingConfig{N: 1000})
			})

			It("should have default count of 0", func() {
				Expect(cache.Count()).To(Equal(0))
			})

			It("should successfully set values", func() {
				begin := time.Date(2022, 8, 1, 0, 0, 0, 0, tz())
				end := time.Date(2022, 8, 9, 0, 0, 0, 0, tz())
				frame := frameWithDates("VFINX", dates, []float64{0, 1, 2, 3, 4, 5, 6})

				err := cache.Set("VFINX", data.MetricAdjustedClose, begin, end, frame)
				Expect(err).To(BeNil())

				Expect(cache.Count()).To(Equal(1), "number of series stored")
				Expect(cache.Size()).To(BeNumerically("==", 112), "cache size after set")
			})

			It("tracks metrics for the same ticker separately", func() {
				begin := time.Date(2022, 8, 1, 0, 0, 0, 0, tz())
				end := time.Date(2022, 8, 9, 0, 0, 0, 0, tz())
				frame := frameWithDates("VFINX", dates, []float64{0, 1, 2, 3, 4, 5, 6})

				Expect(cache.Set("VFINX", data.MetricAdjustedClose, begin, end, frame)).To(BeNil())
				Expect(cache.Set("VFINX", data.MetricClose, begin, end, frame)).To(BeNil())

				Expect(cache.Count()).To(Equal(2))

				_, err := cache.Get("VFINX", data.MetricDividendCash, begin, end)
				Expect(errors.Is(err, data.ErrRangeDoesNotExist)).To(BeTrue())
			})

			It("returns the requested subset", func() {
				begin := time.Date(2022, 8, 1, 0, 0, 0, 0, tz())
				end := time.Date(2022, 8, 9, 0, 0, 0, 0, tz())
				frame := frameWithDates("VFINX", dates, []float64{0, 1, 2, 3, 4, 5, 6})

				Expect(cache.Set("VFINX", data.MetricAdjustedClose, begin, end, frame)).To(BeNil())

				df, err := cache.Get("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 4, 0, 0, 0, 0, tz()), time.Date(2022, 8, 8, 0, 0, 0, 0, tz()))
				Expect(err).To(BeNil())
				Expect(df.Len()).To(Equal(3))
				Expect(df.Vals[0]).To(Equal([]float64{3, 4, 5}))
			})

			It("returns an empty frame for a covered range with no trading days", func() {
				begin := time.Date(2022, 8, 1, 0, 0, 0, 0, tz())
				end := time.Date(2022, 8, 9, 0, 0, 0, 0, tz())
				frame := frameWithDates("VFINX", dates, []float64{0, 1, 2, 3, 4, 5, 6})

				Expect(cache.Set("VFINX", data.MetricAdjustedClose, begin, end, frame)).To(BeNil())

				// august 6th and 7th are a weekend
				df, err := cache.Get("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 6, 0, 0, 0, 0, tz()), time.Date(2022, 8, 7, 0, 0, 0, 0, tz()))
				Expect(err).To(BeNil())
				Expect(df.Len()).To(Equal(0))
			})

			It("returns ErrRangeDoesNotExist for an uncovered range", func() {
				begin := time.Date(2022, 8, 1, 0, 0, 0, 0, tz())
				end := time.Date(2022, 8, 9, 0, 0, 0, 0, tz())
				frame := frameWithDates("VFINX", dates, []float64{0, 1, 2, 3, 4, 5, 6})

				Expect(cache.Set("VFINX", data.MetricAdjustedClose, begin, end, frame)).To(BeNil())

				_, err := cache.Get("VFINX", data.MetricAdjustedClose, time.Date(2022, 7, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 9, 0, 0, 0, 0, tz()))
				Expect(errors.Is(err, data.ErrRangeDoesNotExist)).To(BeTrue())
			})

			It("returns ErrInvalidTimeRange when begin is after end", func() {
				_, err := cache.Get("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 9, 0, 0, 0, 0, tz()), time.Date(2022, 8, 1, 0, 0, 0, 0, tz()))
				Expect(errors.Is(err, data.ErrInvalidTimeRange)).To(BeTrue())
			})

			It("rejects values larger than the cache", func() {
				small := data.NewSeriesCache(64)
				begin := time.Date(2022, 8, 1, 0, 0, 0, 0, tz())
				end := time.Date(2022, 8, 9, 0, 0, 0, 0, tz())
				frame := frameWithDates("VFINX", dates, []float64{0, 1, 2, 3, 4, 5, 6})

				err := small.Set("VFINX", data.MetricAdjustedClose, begin, end, frame)
				Expect(errors.Is(err, data.ErrDataLargerThanCache)).To(BeTrue())
			})

			DescribeTable("check various time ranges",
				func(a, b int, expectedPresent bool, expectedIntervals []*data.Interval) {
					begin := time.Date(2022, 8, 3, 0, 0, 0, 0, tz())
					end := time.Date(2022, 8, 8, 0, 0, 0, 0, tz())
					frame := priceFrame("VFINX", begin, 0, 1, 2, 3)
					Expect(cache.Set("VFINX", data.MetricAdjustedClose, begin, end, frame)).To(BeNil())

					rangeA := time.Date(2022, 8, a, 0, 0, 0, 0, tz())
					rangeB := time.Date(2022, 8, b, 0, 0, 0, 0, tz())
					present, intervals := cache.Check("VFINX", data.MetricAdjustedClose, rangeA, rangeB)

					Expect(present).To(Equal(expectedPresent))
					Expect(intervals).To(Equal(expectedIntervals))
				},
				Entry("When range is completely before the covered interval", 1, 1, false, []*data.Interval{}),
				Entry("When range starts before and ends within the interval", 2, 4, false, []*data.Interval{{
					Begin: time.Date(2022, 8, 3, 0, 0, 0, 0, tz()),
					End:   time.Date(2022, 8, 8, 0, 0, 0, 0, tz()),
				}}),
				Entry("When range starts within and ends after the interval", 4, 9, false, []*data.Interval{{
					Begin: time.Date(2022, 8, 3, 0, 0, 0, 0, tz()),
					End:   time.Date(2022, 8, 8, 0, 0, 0, 0, tz()),
				}}),
				Entry("When range matches the interval exactly", 3, 8, true, []*data.Interval{{
					Begin: time.Date(2022, 8, 3, 0, 0, 0, 0, tz()),
					End:   time.Date(2022, 8, 8, 0, 0, 0, 0, tz()),
				}}),
				Entry("When range is interior to the interval", 4, 5, true, []*data.Interval{{
					Begin: time.Date(2022, 8, 3, 0, 0, 0, 0, tz()),
					End:   time.Date(2022, 8, 8, 0, 0, 0, 0, tz()),
				}}),
				Entry("When range is completely after the covered interval", 9, 10, false, []*data.Interval{}),
			)
		})

		Context("with multiple disjoint periods", func() {
			var cache *data.SeriesCache

			BeforeEach(func() {
				cache = data.NewSeriesCache(4096)
			})

			It("keeps disjoint periods as separate items", func() {
				frameA := priceFrame("VFINX", time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), 0, 1, 2, 3, 4)
				frameB := priceFrame("VFINX", time.Date(2022, 8, 15, 0, 0, 0, 0, tz()), 10, 11, 12)

				Expect(cache.Set("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 5, 0, 0, 0, 0, tz()), frameA)).To(BeNil())
				Expect(cache.Set("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 15, 0, 0, 0, 0, tz()), time.Date(2022, 8, 17, 0, 0, 0, 0, tz()), frameB)).To(BeNil())

				present, intervals := cache.Check("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 17, 0, 0, 0, 0, tz()))
				Expect(present).To(BeFalse())
				Expect(intervals).To(HaveLen(2))
			})

			It("merges contiguous periods into a single item", func() {
				frameA := priceFrame("VFINX", time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), 0, 1, 2, 3, 4)
				frameB := priceFrame("VFINX", time.Date(2022, 8, 6, 0, 0, 0, 0, tz()), 5, 6, 7)

				Expect(cache.Set("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 5, 0, 0, 0, 0, tz()), frameA)).To(BeNil())
				Expect(cache.Set("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 6, 0, 0, 0, 0, tz()), time.Date(2022, 8, 8, 0, 0, 0, 0, tz()), frameB)).To(BeNil())

				present, intervals := cache.Check("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 8, 0, 0, 0, 0, tz()))
				Expect(present).To(BeTrue())
				Expect(intervals).To(HaveLen(1))

				df, err := cache.Get("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 8, 0, 0, 0, 0, tz()))
				Expect(err).To(BeNil())
				Expect(df.Vals[0]).To(Equal([]float64{0, 1, 2, 3, 4, 5, 6, 7}))
			})

			It("bridges two disjoint periods when the gap is filled", func() {
				frameA := priceFrame("VFINX", time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), 0, 1, 2)
				frameB := priceFrame("VFINX", time.Date(2022, 8, 10, 0, 0, 0, 0, tz()), 9, 10, 11)
				frameC := priceFrame("VFINX", time.Date(2022, 8, 4, 0, 0, 0, 0, tz()), 3, 4, 5, 6, 7, 8)

				Expect(cache.Set("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 3, 0, 0, 0, 0, tz()), frameA)).To(BeNil())
				Expect(cache.Set("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 10, 0, 0, 0, 0, tz()), time.Date(2022, 8, 12, 0, 0, 0, 0, tz()), frameB)).To(BeNil())
				Expect(cache.Set("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 4, 0, 0, 0, 0, tz()), time.Date(2022, 8, 9, 0, 0, 0, 0, tz()), frameC)).To(BeNil())

				present, intervals := cache.Check("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 12, 0, 0, 0, 0, tz()))
				Expect(present).To(BeTrue())
				Expect(intervals).To(HaveLen(1))

				df, err := cache.Get("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 12, 0, 0, 0, 0, tz()))
				Expect(err).To(BeNil())
				Expect(df.Len()).To(Equal(12))
			})

			It("prefers newly set values where periods overlap", func() {
				frameA := priceFrame("VFINX", time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), 0, 1, 2, 3, 4)
				frameB := priceFrame("VFINX", time.Date(2022, 8, 4, 0, 0, 0, 0, tz()), 30, 40, 50, 60)

				Expect(cache.Set("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 5, 0, 0, 0, 0, tz()), frameA)).To(BeNil())
				Expect(cache.Set("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 4, 0, 0, 0, 0, tz()), time.Date(2022, 8, 7, 0, 0, 0, 0, tz()), frameB)).To(BeNil())

				df, err := cache.Get("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 7, 0, 0, 0, 0, tz()))
				Expect(err).To(BeNil())
				Expect(df.Vals[0]).To(Equal([]float64{0, 1, 2, 30, 40, 50, 60}))
			})

			It("ignores a set whose period is already covered", func() {
				frameA := priceFrame("VFINX", time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), 0, 1, 2, 3, 4)
				frameB := priceFrame("VFINX", time.Date(2022, 8, 2, 0, 0, 0, 0, tz()), 100, 200)

				Expect(cache.Set("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 5, 0, 0, 0, 0, tz()), frameA)).To(BeNil())
				sizeBefore := cache.Size()

				Expect(cache.Set("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 2, 0, 0, 0, 0, tz()), time.Date(2022, 8, 3, 0, 0, 0, 0, tz()), frameB)).To(BeNil())
				Expect(cache.Size()).To(Equal(sizeBefore))

				df, err := cache.Get("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 2, 0, 0, 0, 0, tz()), time.Date(2022, 8, 3, 0, 0, 0, 0, tz()))
				Expect(err).To(BeNil())
				Expect(df.Vals[0]).To(Equal([]float64{1, 2}))
			})
		})

		Context("when the cache fills up", func() {
			It("evicts the least recently written series", func() {
				cache := data.NewSeriesCache(160)

				frameA := priceFrame("VFINX", time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), 0, 1, 2, 3, 4)
				Expect(cache.Set("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 5, 0, 0, 0, 0, tz()), frameA)).To(BeNil())

				time.Sleep(5 * time.Millisecond)

				frameB := priceFrame("PRIDX", time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), 5, 6, 7, 8, 9)
				Expect(cache.Set("PRIDX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 5, 0, 0, 0, 0, tz()), frameB)).To(BeNil())

				time.Sleep(5 * time.Millisecond)

				frameC := priceFrame("VUSTX", time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), 10, 11)
				Expect(cache.Set("VUSTX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 2, 0, 0, 0, 0, tz()), frameC)).To(BeNil())

				_, err := cache.Get("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 5, 0, 0, 0, 0, tz()))
				Expect(errors.Is(err, data.ErrRangeDoesNotExist)).To(BeTrue(), "oldest series should be evicted")

				_, err = cache.Get("PRIDX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 5, 0, 0, 0, 0, tz()))
				Expect(err).To(BeNil())

				_, err = cache.Get("VUSTX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 2, 0, 0, 0, 0, tz()))
				Expect(err).To(BeNil())

				Expect(cache.Size()).To(BeNumerically("<=", 160))
			})
		})

		Context("with data extending through today", func() {
			It("never serves today from the cache", func() {
				cache := data.NewSeriesCache(4096)

				nyc := common.GetTimezone()
				now := time.Now().In(nyc)
				today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, nyc)
				begin := today.AddDate(0, 0, -5)

				frame := priceFrame("VFINX", begin, 0, 1, 2, 3, 4, 5)
				Expect(cache.Set("VFINX", data.MetricAdjustedClose, begin, today, frame)).To(BeNil())

				present, _ := cache.Check("VFINX", data.MetricAdjustedClose, begin, today)
				Expect(present).To(BeFalse(), "today must not be covered")

				present, _ = cache.Check("VFINX", data.MetricAdjustedClose, begin, today.AddDate(0, 0, -1))
				Expect(present).To(BeTrue())

				df, err := cache.Get("VFINX", data.MetricAdjustedClose, begin, today.AddDate(0, 0, -1))
				Expect(err).To(BeNil())
				Expect(df.Len()).To(Equal(5), "today's row should be discarded")
			})

			It("caches nothing when the period has not completed", func() {
				cache := data.NewSeriesCache(4096)

				nyc := common.GetTimezone()
				now := time.Now().In(nyc)
				today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, nyc)

				frame := priceFrame("VFINX", today, 100)
				Expect(cache.Set("VFINX", data.MetricAdjustedClose, today, today, frame)).To(BeNil())
				Expect(cache.Count()).To(Equal(0))
			})
		})

		Context("after the cache is cleared", func() {
			It("contains no items", func() {
				cache := data.NewSeriesCache(1024)
				frame := priceFrame("VFINX", time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), 0, 1, 2)
				Expect(cache.Set("VFINX", data.MetricAdjustedClose, time.Date(2022, 8, 1, 0, 0, 0, 0, tz()), time.Date(2022, 8, 3, 0, 0, 0, 0, tz()), frame)).To(BeNil())

				cache.Clear()

				Expect(cache.Count()).To(Equal(0))
				Expect(cache.Size()).To(BeNumerically("==", 0))
			})
		})
	})
})
