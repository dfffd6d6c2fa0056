package yahoo

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/raghuneu/finsage/internal/models"
)

const summaryModules = "price,financialData,defaultKeyStatistics,summaryDetail,balanceSheetHistoryQuarterly"

type rawValue struct {
	Raw *float64 `json:"raw"`
}

func (v rawValue) decimal() *decimal.Decimal {
	if v.Raw == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v.Raw)
	return &d
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				MarketCap rawValue `json:"marketCap"`
			} `json:"price"`
			FinancialData struct {
				TotalRevenue  rawValue `json:"totalRevenue"`
				ProfitMargins rawValue `json:"profitMargins"`
				DebtToEquity  rawValue `json:"debtToEquity"`
				TotalDebt     rawValue `json:"totalDebt"`
			} `json:"financialData"`
			DefaultKeyStatistics struct {
				NetIncomeToCommon rawValue `json:"netIncomeToCommon"`
				TrailingEps       rawValue `json:"trailingEps"`
			} `json:"defaultKeyStatistics"`
			SummaryDetail struct {
				TrailingPE rawValue `json:"trailingPE"`
			} `json:"summaryDetail"`
			BalanceSheetHistoryQuarterly struct {
				Statements []struct {
					TotalAssets rawValue `json:"totalAssets"`
				} `json:"balanceSheetStatements"`
			} `json:"balanceSheetHistoryQuarterly"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// FetchFundamentals returns one snapshot keyed by the current calendar
// quarter. since is ignored: fundamentals are always refetched in full.
func (c *Client) FetchFundamentals(ctx context.Context, ticker string, _ *string) ([]models.Fundamental, error) {
	params := url.Values{}
	params.Set("modules", summaryModules)

	var resp quoteSummaryResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/v10/finance/quoteSummary/"+url.PathEscape(ticker), params, &resp); err != nil {
		return nil, err
	}
	if e := resp.QuoteSummary.Error; e != nil {
		return nil, fmt.Errorf("quoteSummary %s: %s %s", ticker, e.Code, e.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, nil
	}
	r := resp.QuoteSummary.Result[0]

	f := models.Fundamental{
		FiscalQuarter:    models.FiscalQuarterOf(c.now()),
		MarketCap:        r.Price.MarketCap.decimal(),
		Revenue:          r.FinancialData.TotalRevenue.decimal(),
		NetIncome:        r.DefaultKeyStatistics.NetIncomeToCommon.decimal(),
		EPS:              r.DefaultKeyStatistics.TrailingEps.decimal(),
		PERatio:          r.SummaryDetail.TrailingPE.decimal(),
		ProfitMargin:     r.FinancialData.ProfitMargins.decimal(),
		DebtToEquity:     r.FinancialData.DebtToEquity.decimal(),
		TotalLiabilities: r.FinancialData.TotalDebt.decimal(),
		Source:           models.SourceYahooFinance,
	}
	if s := r.BalanceSheetHistoryQuarterly.Statements; len(s) > 0 {
		f.TotalAssets = s[0].TotalAssets.decimal()
	}
	return []models.Fundamental{f}, nil
}
