package domain

import (
	"fmt"
	"strings"
	"time"
)

// FormatProductCode builds PRD-<first three letters of category>-<seq padded to 4>.
func FormatProductCode(categoryName string, seq int64) string {
	prefix := []rune(strings.ToUpper(categoryName))
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return fmt.Sprintf("PRD-%s-%04d", string(prefix), seq)
}

// FormatBranchCode builds BR-<seq padded to 4>.
func FormatBranchCode(seq int64) string {
	return fmt.Sprintf("BR-%04d", seq)
}

// FormatSKU builds SKU-<seq padded to 6>.
func FormatSKU(seq int64) string {
	return fmt.Sprintf("SKU-%06d", seq)
}

// FormatLabelCode builds LBL-<seq padded to 4>.
func FormatLabelCode(seq int64) string {
	return fmt.Sprintf("LBL-%04d", seq)
}

// FormatReceiptNo builds RCPT-YYYYMMDD-<seq padded to 6> using the UTC date of at.
func FormatReceiptNo(seq int64, at time.Time) string {
	return fmt.Sprintf("RCPT-%s-%06d", at.UTC().Format("20060102"), seq)
}
