package core

// DailyTotal is the sum of all expenses recorded for a single day.
type DailyTotal struct {
	Date  Date
	Total Money
}

// SumAmounts adds up the amounts of the given expenses.
func SumAmounts(expenses []Expense) Money {
	var total Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}
