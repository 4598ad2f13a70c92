// Package mailer предоставляет клиент для внешнего сервиса отправки писем.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultRetryMax = 2
	requestTimeout  = 10 * time.Second
)

// InvoiceEmail содержит данные одного письма со счётом.
type InvoiceEmail struct {
	To            []string
	InvoiceNumber string
	CustomerName  string
	Amount        decimal.Decimal
	Currency      string
	Link          string
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

var invoiceTemplate = template.Must(template.New("invoice").Parse(`<h2>Invoice {{.InvoiceNumber}}</h2>
<p>Dear {{.CustomerName}},</p>
<p>Your rental invoice is ready. Amount due: <strong>{{.Currency}} {{.Amount}}</strong>.</p>
<p><a href="{{.Link}}">View invoice</a></p>
`))

// Client инкапсулирует HTTP-взаимодействие с сервисом отправки писем.
type Client struct {
	baseURL    string
	apiKey     string
	from       string
	httpClient *retryablehttp.Client
	logger     *zap.Logger
}

// NewClient создаёт клиент почтового сервиса. При пустом baseURL письма только логируются.
func NewClient(baseURL, apiKey, from string, logger *zap.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = defaultRetryMax
	rc.HTTPClient.Timeout = requestTimeout
	rc.Logger = leveledLogger{s: logger.Sugar()}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		from:       from,
		httpClient: rc,
		logger:     logger,
	}
}

// SendInvoice отправляет одно письмо со счётом всем получателям.
func (c *Client) SendInvoice(ctx context.Context, msg InvoiceEmail) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	html, err := renderInvoice(msg)
	if err != nil {
		return err
	}

	subject := "Invoice " + msg.InvoiceNumber

	if c.baseURL == "" {
		c.logger.Info("mail transport not configured, skipping send",
			zap.String("invoice", msg.InvoiceNumber),
			zap.Strings("to", msg.To),
		)
		return nil
	}

	body, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      msg.To,
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, base+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}

func renderInvoice(msg InvoiceEmail) (string, error) {
	data := struct {
		InvoiceNumber string
		CustomerName  string
		Amount        string
		Currency      string
		Link          string
	}{
		InvoiceNumber: msg.InvoiceNumber,
		CustomerName:  msg.CustomerName,
		Amount:        msg.Amount.StringFixed(2),
		Currency:      msg.Currency,
		Link:          msg.Link,
	}
	if data.CustomerName == "" {
		data.CustomerName = "Customer"
	}

	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render invoice email: %w", err)
	}
	return buf.String(), nil
}

// leveledLogger направляет журнал retryablehttp в zap.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) { l.s.Errorw(msg, keysAndValues...) }
func (l leveledLogger) Info(msg string, keysAndValues ...interface{})  { l.s.Infow(msg, keysAndValues...) }
func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) { l.s.Debugw(msg, keysAndValues...) }
func (l leveledLogger) Warn(msg string, keysAndValues ...interface{})  { l.s.Warnw(msg, keysAndValues...) }
