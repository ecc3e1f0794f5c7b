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

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/penny-vault/portfolio-tracker/common"
	"github.com/penny-vault/portfolio-tracker/database"
	"github.com/penny-vault/portfolio-tracker/portfolio"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var recordDate string
var recordMemo string

func init() {
	recordCmd.Flags().StringVar(&recordDate, "date", "", "Trade date specified as YYYY-MM-dd (default today)")
	recordCmd.Flags().StringVar(&recordMemo, "memo", "", "Free-form note to attach to the transaction")
	rootCmd.AddCommand(recordCmd)
}

var recordCmd = &cobra.Command{
	Use:   "record <kind> <ticker> <shares> <pricePerShare>",
	Short: "Record a trade in the transaction log",
	Long:  `Record a BUY or SELL transaction in the transaction log, e.g. pvtracker record buy VFINX 10 112.34`,
	Args:  cobra.ExactArgs(4),
	Run: func(_ *cobra.Command, args []string) {
		common.SetupLogging()

		nyc := common.GetTimezone()
		var date time.Time
		var err error
		if recordDate == "" {
			now := time.Now().In(nyc)
			date = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, nyc)
		} else {
			date, err = time.ParseInLocation("2006-01-02", recordDate, nyc)
			if err != nil {
				log.Fatal().Err(err).Str("InputStr", recordDate).Msg("could not parse date - expected format 2006-01-02")
			}
		}

		shares, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			log.Fatal().Err(err).Str("InputStr", args[2]).Msg("could not parse shares")
		}

		pricePerShare, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			log.Fatal().Err(err).Str("InputStr", args[3]).Msg("could not parse price per share")
		}

		ctx := context.Background()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}

		model := portfolio.GetModelInstance()
		if err := model.Load(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not load transaction ledger")
		}

		trx, err := model.RecordTransaction(ctx, date, args[1], strings.ToUpper(args[0]), shares, pricePerShare, recordMemo)
		if err != nil {
			log.Fatal().Err(err).Msg("could not record transaction")
		}

		fmt.Printf("recorded transaction %s\n", trx.IDString())
	},
}
