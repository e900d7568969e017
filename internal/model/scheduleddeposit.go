package model

import "github.com/shopspring/decimal"

// ScheduledDeposit is a deposit intent recorded while the asset is still
// trade-locked, executed by the redeposit scheduler once the lock clears.
// Eligibility is resolved through WithdrawalID against the trade ledger.
type ScheduledDeposit struct {
	Marketplace         string                 `json:"marketplace"`
	WithdrawMarketplace string                 `json:"withdraw_marketplace"`
	AmountUSD           decimal.Decimal        `json:"amount_usd"`
	AssetID             string                 `json:"asset_id"`
	MarketplaceData     map[string]interface{} `json:"marketplace_data,omitempty"`
	WithdrawalID        string                 `json:"withdrawal_id"`
}
