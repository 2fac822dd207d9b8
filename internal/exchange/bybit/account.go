package bybit

import (
	"context"
	"fmt"
)

// AccountType represents different account types in Bybit
type AccountType string

const (
	AccountTypeUnified  AccountType = "UNIFIED"
	AccountTypeContract AccountType = "CONTRACT"
)

// Balance represents a coin balance in the account
type Balance struct {
	Coin                string
	WalletBalance       float64
	AvailableToWithdraw float64
	Locked              float64
}

// GetCoinBalance retrieves balance for a specific coin
func (c *Client) GetCoinBalance(ctx context.Context, accountType AccountType, coin string) (*Balance, error) {
	params := map[string]interface{}{
		"accountType": string(accountType),
		"coin":        coin,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get account balance: %w", err)
	}

	var body walletResult
	if err := decodeResult(result, &body); err != nil {
		return nil, err
	}
	return findCoin(body, coin)
}

func findCoin(body walletResult, coin string) (*Balance, error) {
	for _, account := range body.List {
		for _, cb := range account.Coin {
			if cb.Coin != coin {
				continue
			}
			return &Balance{
				Coin:                cb.Coin,
				WalletBalance:       parseFloat64(cb.WalletBalance),
				AvailableToWithdraw: parseFloat64(cb.AvailableToWithdraw),
				Locked:              parseFloat64(cb.Locked) + parseFloat64(cb.TotalOrderIM) + parseFloat64(cb.TotalPositionIM),
			}, nil
		}
	}
	return nil, fmt.Errorf("coin %s not found in account", coin)
}
