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
	"fmt"
	"time"

	"github.com/penny-vault/portfolio-tracker/common"
	"github.com/penny-vault/portfolio-tracker/observability/opentelemetry"
	"github.com/penny-vault/portfolio-tracker/portfolio"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

// GetHoldings returns the current positions valued at their latest close.
// Reports are cached per ledger version and trading day so repeated requests
// do not hammer the quote provider.
func GetHoldings(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(c.Context(), "GetHoldings")
	defer span.End()
	span.SetAttributes(opentelemetry.SpanAttributesFromFiber(c)...)

	model := portfolio.GetModelInstance()

	nyc := common.GetTimezone()
	key := fmt.Sprintf("holdings:%d:%s", model.Ledger.Version(), time.Now().In(nyc).Format("2006-01-02"))
	if cached, err := common.CacheGet(key); err == nil {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
		return c.Send(cached)
	}

	report := model.CurrentHoldings(ctx)
	raw, err := json.Marshal(report)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not serialize holdings report")
		return fiber.ErrInternalServerError
	}

	if err := common.CacheSet(key, raw); err != nil {
		log.Warn().Err(err).Str("Key", key).Msg("could not cache holdings report")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(raw)
}
