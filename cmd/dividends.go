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
	"time"

	"github.com/penny-vault/portfolio-tracker/common"
	"github.com/penny-vault/portfolio-tracker/data"
	"github.com/penny-vault/portfolio-tracker/database"
	"github.com/penny-vault/portfolio-tracker/portfolio"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var dividendsStartDate string
var dividendsEndDate string

func init() {
	dividendsCmd.Flags().StringVar(&dividendsStartDate, "start-date", "", "Period start specified as YYYY-MM-dd (default one year before end)")
	dividendsCmd.Flags().StringVar(&dividendsEndDate, "end-date", "", "Period end specified as YYYY-MM-dd (default today)")
	rootCmd.AddCommand(dividendsCmd)
}

var dividendsCmd = &cobra.Command{
	Use:   "dividends",
	Short: "Report dividend income for the portfolio",
	Long:  `Report dividend income realized over the period along with projected annual income and yield for the current holdings`,
	Run: func(_ *cobra.Command, _ []string) {
		common.SetupLogging()
		common.SetupCache()

		nyc := common.GetTimezone()
		var begin time.Time
		var end time.Time
		var err error

		if dividendsEndDate == "" {
			end = data.Today()
		} else {
			end, err = time.ParseInLocation("2006-01-02", dividendsEndDate, nyc)
			if err != nil {
				log.Fatal().Err(err).Str("InputStr", dividendsEndDate).Msg("could not parse end date - expected format 2006-01-02")
			}
		}

		if dividendsStartDate == "" {
			begin = end.AddDate(-1, 0, 0)
		} else {
			begin, err = time.ParseInLocation("2006-01-02", dividendsStartDate, nyc)
			if err != nil {
				log.Fatal().Err(err).Str("InputStr", dividendsStartDate).Msg("could not parse start date - expected format 2006-01-02")
			}
		}

		ctx := context.Background()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}

		model := portfolio.GetModelInstance()
		if err := model.Load(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not load transaction ledger")
		}

		report, err := model.DividendReportForPeriod(ctx, &data.Interval{
			Begin: begin,
			End:   end,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("could not compute dividend report")
		}

		fmt.Println("Realized income:")
		fmt.Println(report.Realized.Table())
		fmt.Println("Projected annual income:")
		fmt.Println(report.Projected.Table())
		fmt.Printf("Portfolio yield: %.2f%% (mean %.2f%%, median %.2f%% among payers)\n",
			report.Yield.PortfolioYield*100, report.Yield.MeanYield*100, report.Yield.MedianYield*100)
	},
}
