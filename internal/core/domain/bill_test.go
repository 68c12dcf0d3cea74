package domain_test

import (
	"testing"
	"time"

	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDeriveBillStatus(t *testing.T) {
	testCases := []struct {
		name       string
		amount     int64
		amountPaid string
		expected   domain.BillStatus
	}{
		{"nothing paid", 100, "0", domain.BillUnpaid},
		{"partial payment", 100, "40", domain.BillPartiallyPaid},
		{"fractional partial", 100, "99.99", domain.BillPartiallyPaid},
		{"exactly paid", 100, "100", domain.BillPaid},
		{"overpaid still paid", 100, "120", domain.BillPaid},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			paid, err := decimal.NewFromString(tc.amountPaid)
			assert.NoError(t, err)
			got := domain.DeriveBillStatus(decimal.NewFromInt(tc.amount), paid)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestBillOutstanding(t *testing.T) {
	bill := domain.Bill{
		Amount:     decimal.NewFromInt(100),
		AmountPaid: decimal.RequireFromString("33.50"),
	}
	assert.True(t, bill.Outstanding().Equal(decimal.RequireFromString("66.50")))
}

func TestBillIsTerminal(t *testing.T) {
	assert.False(t, domain.Bill{Status: domain.BillUnpaid}.IsTerminal())
	assert.False(t, domain.Bill{Status: domain.BillPartiallyPaid}.IsTerminal())
	assert.True(t, domain.Bill{Status: domain.BillPaid}.IsTerminal())
	assert.True(t, domain.Bill{Status: domain.BillCancelled}.IsTerminal())
}

func TestAgingBucketsAdd_BandBoundaries(t *testing.T) {
	var buckets domain.AgingBuckets
	one := decimal.NewFromInt(1)

	buckets.Add(0, one)   // current
	buckets.Add(1, one)   // 1-30
	buckets.Add(30, one)  // 1-30
	buckets.Add(31, one)  // 31-60
	buckets.Add(60, one)  // 31-60
	buckets.Add(61, one)  // 61-90
	buckets.Add(90, one)  // 61-90
	buckets.Add(91, one)  // 90+
	buckets.Add(365, one) // 90+

	assert.Equal(t, 1, buckets.Current.Count)
	assert.Equal(t, 2, buckets.Days1To30.Count)
	assert.Equal(t, 2, buckets.Days31To60.Count)
	assert.Equal(t, 2, buckets.Days61To90.Count)
	assert.Equal(t, 2, buckets.Days90Plus.Count)
	assert.Equal(t, 9, buckets.TotalCount)
	assert.True(t, buckets.TotalAmount.Equal(decimal.NewFromInt(9)))
}

func TestFiscalPeriodContains(t *testing.T) {
	period := domain.FiscalPeriod{
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	assert.True(t, period.Contains(period.StartDate), "start is inclusive")
	assert.True(t, period.Contains(time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC)))
	assert.False(t, period.Contains(period.EndDate), "end is exclusive")
	assert.False(t, period.Contains(period.StartDate.Add(-time.Second)))
}
