// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package executor

import (
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/coinpoll/models"
)

// SettlementWinner returns the first index holding the highest count, or
// NoWinner when every count is zero. A later index with an equal count
// does not take the win.
func SettlementWinner(counts []int64) int {
	winner, best := models.NoWinner, int64(0)
	for i, c := range counts {
		if c > best {
			winner, best = i, c
		}
	}
	return winner
}

// RewardShare returns floor(coins * pool / total) using decimal arithmetic
// for the product. The remainder of the split stays in the pool.
func RewardShare(coins, total, pool int64) int64 {
	if coins <= 0 || total <= 0 || pool <= 0 {
		return 0
	}
	if coins > total {
		coins = total
	}
	q, _ := decimal.NewFromInt(coins).Mul(decimal.NewFromInt(pool)).QuoRem(decimal.NewFromInt(total), 0)
	return q.IntPart()
}
