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
	"strconv"

	"github.com/penny-vault/portfolio-tracker/analytics"
	"github.com/penny-vault/portfolio-tracker/observability/opentelemetry"
	"github.com/penny-vault/portfolio-tracker/portfolio"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
)

// GetRiskSnapshot evaluates risk statistics for the current holdings. The
// lookbackDays, riskFreeRate, and profile query parameters override the
// configured defaults; a negative riskFreeRate selects the current 3-month
// treasury rate.
func GetRiskSnapshot(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(c.Context(), "GetRiskSnapshot")
	defer span.End()
	span.SetAttributes(opentelemetry.SpanAttributesFromFiber(c)...)

	lookbackDays, err := strconv.Atoi(c.Query("lookbackDays", "0"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "lookbackDays must be an integer")
	}

	riskFreeRate, err := strconv.ParseFloat(c.Query("riskFreeRate", "-1"), 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "riskFreeRate must be a number")
	}

	snapshot, err := portfolio.GetModelInstance().RiskSnapshot(ctx, lookbackDays, riskFreeRate, c.Query("profile"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(snapshot)
}

// ListRiskProfiles returns the risk profiles bundled with the api
func ListRiskProfiles(c *fiber.Ctx) error {
	analytics.InitializeProfileMap()
	return c.JSON(analytics.ProfileList)
}
