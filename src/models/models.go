package models

import (
	"fmt"
	"time"
)

// Normalized buy/sell side values. Unrecognized feed values are passed
// through unchanged so they still group, they just never match a side rule.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Account identifies one brokerage account and its FlexQuery credentials.
type Account struct {
	Name    string
	QueryID string
	Token   string
}

// Period is the calendar month being reported.
type Period struct {
	Year  int
	Month time.Month
}

// Start returns the first instant of the reporting month.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the following month. The reporting
// window is [Start, End).
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// RawTrade is a single Trade row from the FlexQuery statement, before any
// filtering. TradeDate keeps the feed's own formatting; it is parsed during
// normalization.
type RawTrade struct {
	Currency        string
	AssetCategory   string
	Description     string
	ISIN            string
	OrderID         string
	TradeDate       string
	BuySell         string
	Price           float64
	Quantity        float64
	Proceeds        float64
	PutCall         string
	ListingExchange string
	TransactionType string
	Account         string
}

// NormalizedTrade is a trade that survived filtering, restricted to the
// reporting month. ISIN and PutCall use "" as the documented no-value
// sentinel, never a nullable type, so group-key equality stays well-defined.
type NormalizedTrade struct {
	Currency        string
	Description     string
	ISIN            string
	OrderID         string
	TradeDate       time.Time
	Side            string
	Quantity        float64
	Proceeds        float64 // in trade currency
	PutCall         string
	ListingExchange string
}

// OrderAggregate combines all partial fills sharing the same economic order
// key into one row. AmountEUR is expressed in thousands of EUR.
type OrderAggregate struct {
	OrderID         string
	Currency        string
	Description     string
	ISIN            string
	Side            string
	PutCall         string
	ListingExchange string
	Quantity        float64
	TradeDate       time.Time // mean fill time, diagnostics only
	AmountEUR       float64
}

// MonthlyAggregate is the counterparty-level monthly total, carrying the
// regulatory codes. Classification 0 means "not classified".
type MonthlyAggregate struct {
	Currency        string
	Description     string
	CountryCode     string
	ISIN            string
	PutCall         string
	ListingExchange string
	Side            string
	Quantity        float64
	AmountEUR       float64
	DocumentType    int
	Classification  int
}

// OutputRecord is one line of the filing extract, in final column order.
// AmountEUR and Quantity are rounded, non-negative integers.
type OutputRecord struct {
	DocumentType   int
	Classification int
	Description    string
	CountryCode    string
	AmountEUR      int
	ISIN           string
	Quantity       int
	Currency       string
}
