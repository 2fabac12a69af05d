package engine

import (
	"math"
	"math/bits"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
)

func checkedAdd64(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, domain.Errorf(domain.CodeOverflow, "%d + %d overflows u64", a, b)
	}
	return sum, nil
}

// debit subtracts amount from a balance; a short balance is InsufficientFunds, not Overflow.
func debit(balance, amount uint64) (uint64, error) {
	if balance < amount {
		return 0, domain.Errorf(domain.CodeInsufficientFunds, "balance %d below %d", balance, amount)
	}
	return balance - amount, nil
}

func checkedAdd32(a, b uint32) (uint32, error) {
	if a > math.MaxUint32-b {
		return 0, domain.Errorf(domain.CodeOverflow, "%d + %d overflows u32", a, b)
	}
	return a + b, nil
}
