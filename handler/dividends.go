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

package handler

import (
	"time"

	"github.com/penny-vault/portfolio-tracker/common"
	"github.com/penny-vault/portfolio-tracker/data"
	"github.com/penny-vault/portfolio-tracker/observability/opentelemetry"
	"github.com/penny-vault/portfolio-tracker/portfolio"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

// GetDividends reports realized dividend income over the requested period
// along with projected annual income and yield for the current holdings.
// The period defaults to the year ending today, New York time.
func GetDividends(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(c.Context(), "GetDividends")
	defer span.End()
	span.SetAttributes(opentelemetry.SpanAttributesFromFiber(c)...)

	var begin time.Time
	var end time.Time
	var err error

	nyc := common.GetTimezone()

	endDateStr := c.Query("endDate", "now")
	if endDateStr == "now" {
		end = data.Today()
	} else {
		end, err = time.ParseInLocation("2006-01-02", endDateStr, nyc)
		if err != nil {
			log.Warn().Err(err).Str("EndDate", endDateStr).Msg("cannot parse endDate query parameter")
			return fiber.NewError(fiber.StatusBadRequest, "endDate must be formatted as 2006-01-02")
		}
	}

	startDateStr := c.Query("startDate", "")
	if startDateStr == "" {
		begin = end.AddDate(-1, 0, 0)
	} else {
		begin, err = time.ParseInLocation("2006-01-02", startDateStr, nyc)
		if err != nil {
			log.Warn().Err(err).Str("StartDate", startDateStr).Msg("cannot parse startDate query parameter")
			return fiber.NewError(fiber.StatusBadRequest, "startDate must be formatted as 2006-01-02")
		}
	}

	report, err := portfolio.GetModelInstance().DividendReportForPeriod(ctx, &data.Interval{
		Begin: begin,
		End:   end,
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(report)
}
