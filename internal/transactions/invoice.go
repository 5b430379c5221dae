package transactions

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const invoiceSuffixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewInvoiceNumber builds an INV-YYYYMMDD-XXXXXX candidate. Uniqueness is
// enforced by the database; collisions retry at the caller.
func NewInvoiceNumber(now time.Time) (string, error) {
	suffix := make([]byte, 6)
	max := big.NewInt(int64(len(invoiceSuffixAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate invoice suffix: %w", err)
		}
		suffix[i] = invoiceSuffixAlphabet[n.Int64()]
	}
	return fmt.Sprintf("INV-%s-%s", now.UTC().Format("20060102"), suffix), nil
}
