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
	"time"

	"github.com/penny-vault/portfolio-tracker/common"
)

// Today returns midnight of the current day in the market timezone
func Today() time.Time {
	nyc := common.GetTimezone()
	now := time.Now().In(nyc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, nyc)
}

// LookbackPeriod returns the interval covering the given number of calendar
// days ending today
func LookbackPeriod(days int) *Interval {
	end := Today()
	return &Interval{
		Begin: end.AddDate(0, 0, -days),
		End:   end,
	}
}
