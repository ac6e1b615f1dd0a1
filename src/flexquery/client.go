package flexquery

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/username/awvreport/src/logger"
	"github.com/username/awvreport/src/models"
	"golang.org/x/time/rate"
)

// --- XML Data Structures ---

// FlexQueryResponse is the root element of the IBKR Flex Query report.
type FlexQueryResponse struct {
	XMLName        xml.Name        `xml:"FlexQueryResponse"`
	FlexStatements []FlexStatement `xml:"FlexStatements>FlexStatement"`
}

// FlexStatement contains all the data for a given account and period.
type FlexStatement struct {
	XMLName   xml.Name `xml:"FlexStatement"`
	AccountId string   `xml:"accountId,attr"`
	Trades    []Trade  `xml:"Trades>Trade"`
}

// Trade represents a stock or option trade transaction.
type Trade struct {
	Currency        string  `xml:"currency,attr"`
	AssetCategory   string  `xml:"assetCategory,attr"`
	Description     string  `xml:"description,attr"`
	ISIN            string  `xml:"isin,attr"`
	IBOrderID       string  `xml:"ibOrderID,attr"`
	TradeDate       string  `xml:"tradeDate,attr"`
	DateTime        string  `xml:"dateTime,attr"`
	BuySell         string  `xml:"buySell,attr"`
	OrigTradePrice  float64 `xml:"origTradePrice,attr"`
	Quantity        float64 `xml:"quantity,attr"`
	Proceeds        float64 `xml:"proceeds,attr"`
	PutCall         string  `xml:"putCall,attr"` // For Options
	ListingExchange string  `xml:"listingExchange,attr"`
	TransactionType string  `xml:"transactionType,attr"`
}

// statementResponse is the envelope the Flex web service answers with for
// both the initial request and a statement that is not ready yet.
type statementResponse struct {
	XMLName       xml.Name `xml:"FlexStatementResponse"`
	Status        string   `xml:"Status"`
	ReferenceCode string   `xml:"ReferenceCode"`
	URL           string   `xml:"Url"`
	ErrorCode     string   `xml:"ErrorCode"`
	ErrorMessage  string   `xml:"ErrorMessage"`
}

// inProgressCodes are the web service's "statement not yet ready" answers.
var inProgressCodes = map[string]bool{
	"1019": true, // statement generation in progress
	"1021": true, // statement not yet available
}

// --- Client ---

// Client downloads Flex Query statements via IBKR's two-phase web service:
// SendRequest returns a reference code, GetStatement is then polled with it
// until the statement has been generated.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	limiter     *rate.Limiter
	maxAttempts int
	retryDelay  time.Duration
}

// NewClient creates a Flex web service client against the given base URL
// (e.g. https://gdcdyn.interactivebrokers.com/Universal/servlet).
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     baseURL,
		limiter:     rate.NewLimiter(rate.Every(time.Second), 1),
		maxAttempts: 10,
		retryDelay:  5 * time.Second,
	}
}

// FetchTrades downloads the account's statement and returns its Trade rows.
func (c *Client) FetchTrades(account models.Account) ([]models.RawTrade, error) {
	reference, statementURL, err := c.sendRequest(account)
	if err != nil {
		return nil, fmt.Errorf("flexquery: send request for account %s: %w", account.Name, err)
	}

	body, err := c.getStatement(account, reference, statementURL)
	if err != nil {
		return nil, fmt.Errorf("flexquery: get statement for account %s: %w", account.Name, err)
	}

	var response FlexQueryResponse
	if err := xml.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("flexquery: failed to decode statement XML for account %s: %w", account.Name, err)
	}

	var trades []models.RawTrade
	for _, stmt := range response.FlexStatements {
		for _, trade := range stmt.Trades {
			trades = append(trades, toRawTrade(trade, account.Name))
		}
	}
	logger.L.Info("FlexQuery statement fetched", "account", account.Name, "trades", len(trades))
	return trades, nil
}

// sendRequest asks the service to generate the statement.
func (c *Client) sendRequest(account models.Account) (reference, statementURL string, err error) {
	requestURL := fmt.Sprintf("%s/FlexStatementService.SendRequest?t=%s&q=%s&v=3",
		c.baseURL, url.QueryEscape(account.Token), url.QueryEscape(account.QueryID))

	body, err := c.get(requestURL)
	if err != nil {
		return "", "", err
	}

	var resp statementResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return "", "", fmt.Errorf("failed to decode SendRequest response: %w", err)
	}
	if resp.Status != "Success" {
		return "", "", fmt.Errorf("SendRequest failed: code=%s message=%q", resp.ErrorCode, resp.ErrorMessage)
	}
	if resp.URL == "" {
		resp.URL = c.baseURL + "/FlexStatementService.GetStatement"
	}
	return resp.ReferenceCode, resp.URL, nil
}

// getStatement polls for the generated statement until it is ready.
func (c *Client) getStatement(account models.Account, reference, statementURL string) ([]byte, error) {
	requestURL := fmt.Sprintf("%s?t=%s&q=%s&v=3",
		statementURL, url.QueryEscape(account.Token), url.QueryEscape(reference))

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		body, err := c.get(requestURL)
		if err != nil {
			return nil, err
		}

		// A ready statement has FlexQueryResponse as its root; anything
		// else is the service envelope reporting progress or an error.
		if bytes.Contains(body, []byte("<FlexQueryResponse")) {
			return body, nil
		}

		var resp statementResponse
		if err := xml.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode GetStatement response: %w", err)
		}
		if !inProgressCodes[resp.ErrorCode] {
			return nil, fmt.Errorf("GetStatement failed: code=%s message=%q", resp.ErrorCode, resp.ErrorMessage)
		}

		logger.L.Debug("Statement not ready yet, retrying", "account", account.Name, "attempt", attempt)
		time.Sleep(c.retryDelay)
	}
	return nil, fmt.Errorf("statement not ready after %d attempts", c.maxAttempts)
}

func (c *Client) get(requestURL string) ([]byte, error) {
	if err := c.limiter.Wait(context.Background()); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Get(requestURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flex web service returned non-OK status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// toRawTrade maps a statement Trade to the internal raw schema. The dateTime
// attribute is preferred over the date-only tradeDate when present.
func toRawTrade(trade Trade, accountName string) models.RawTrade {
	tradeDate := trade.DateTime
	if tradeDate == "" {
		tradeDate = trade.TradeDate
	}
	return models.RawTrade{
		Currency:        trade.Currency,
		AssetCategory:   trade.AssetCategory,
		Description:     trade.Description,
		ISIN:            trade.ISIN,
		OrderID:         trade.IBOrderID,
		TradeDate:       tradeDate,
		BuySell:         trade.BuySell,
		Price:           trade.OrigTradePrice,
		Quantity:        trade.Quantity,
		Proceeds:        trade.Proceeds,
		PutCall:         trade.PutCall,
		ListingExchange: trade.ListingExchange,
		TransactionType: trade.TransactionType,
		Account:         accountName,
	}
}
