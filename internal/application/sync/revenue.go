package sync

// Budget bucket labels as captured by the lead form
const (
	BudgetBucket50LTo1Cr = "₹50L – ₹1 Cr"
	BudgetBucket1To2Cr   = "₹1 Cr – ₹2 Cr"
	BudgetBucket2To5Cr   = "₹2 Cr – ₹5 Cr"
	BudgetBucket5To10Cr  = "₹5 Cr – ₹10 Cr"
)

// defaultRevenue is the midpoint estimate used when the budget bucket is
// missing or unrecognized, roughly ₹2 Cr.
const defaultRevenue int64 = 20_000_000

var revenueByBucket = map[string]int64{
	BudgetBucket50LTo1Cr: 7_500_000,
	BudgetBucket1To2Cr:   15_000_000,
	BudgetBucket2To5Cr:   35_000_000,
	BudgetBucket5To10Cr:  75_000_000,
}

// EstimateRevenue maps a budget bucket label to an estimated deal value in
// rupees for conversion reporting
func EstimateRevenue(budgetBucket string) int64 {
	if revenue, ok := revenueByBucket[budgetBucket]; ok {
		return revenue
	}
	return defaultRevenue
}
