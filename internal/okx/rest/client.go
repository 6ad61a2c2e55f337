package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"okx-spread-bot/internal/config"
	"okx-spread-bot/internal/okx/auth"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const orderPath = "/api/v5/trade/order"

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type TradeMode string

const (
	ModeCash  TradeMode = "cash"
	ModeCross TradeMode = "cross"
)

type PosSide string

const (
	PosSideNone  PosSide = ""
	PosSideLong  PosSide = "long"
	PosSideShort PosSide = "short"
)

// OrderRequest is one market order intent. Spot orders use ModeCash with no
// position side; swap orders use ModeCross with an explicit long/short side.
type OrderRequest struct {
	InstID        string
	Side          Side
	Size          decimal.Decimal
	Mode          TradeMode
	PosSide       PosSide
	ClientOrderID string
}

type OrderResult struct {
	OrderID       string
	ClientOrderID string
}

// Client submits signed orders to the OKX v5 trade endpoint.
type Client struct {
	baseURL   string
	creds     config.Credentials
	simulated bool
	http      *http.Client
	log       *zap.Logger
	now       func() time.Time
}

func New(cfg config.OKXConfig, creds config.Credentials, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxy)}
	}
	return &Client{
		baseURL:   cfg.RESTURL,
		creds:     creds,
		simulated: cfg.Simulated,
		http:      httpClient,
		log:       log,
		now:       time.Now,
	}, nil
}

type orderBody struct {
	InstID  string `json:"instId"`
	TdMode  string `json:"tdMode"`
	Side    string `json:"side"`
	OrdType string `json:"ordType"`
	Size    string `json:"sz"`
	PosSide string `json:"posSide,omitempty"`
	ClOrdID string `json:"clOrdId,omitempty"`
}

type orderResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		OrdID   string `json:"ordId"`
		ClOrdID string `json:"clOrdId"`
		SCode   string `json:"sCode"`
		SMsg    string `json:"sMsg"`
	} `json:"data"`
}

func (c *Client) PlaceMarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if req.InstID == "" {
		return OrderResult{}, errors.New("instrument id is required")
	}
	if req.Size.Sign() <= 0 {
		return OrderResult{}, fmt.Errorf("order size must be positive, got %s", req.Size)
	}
	body, err := json.Marshal(orderBody{
		InstID:  req.InstID,
		TdMode:  string(req.Mode),
		Side:    string(req.Side),
		OrdType: "market",
		Size:    req.Size.String(),
		PosSide: string(req.PosSide),
		ClOrdID: req.ClientOrderID,
	})
	if err != nil {
		return OrderResult{}, err
	}
	timestamp := c.now().UTC().Format("2006-01-02T15:04:05.000Z")
	sign := auth.RestSign(c.creds.SecretKey, timestamp, http.MethodPost, orderPath, string(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+orderPath, bytes.NewReader(body))
	if err != nil {
		return OrderResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("OK-ACCESS-KEY", c.creds.APIKey)
	httpReq.Header.Set("OK-ACCESS-SIGN", sign)
	httpReq.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
	httpReq.Header.Set("OK-ACCESS-PASSPHRASE", c.creds.Passphrase)
	if c.simulated {
		httpReq.Header.Set("x-simulated-trading", "1")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return OrderResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return OrderResult{}, fmt.Errorf("order rejected: http %d: %s", resp.StatusCode, string(raw))
	}
	var parsed orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return OrderResult{}, err
	}
	if parsed.Code != "0" {
		return OrderResult{}, fmt.Errorf("order rejected: code %s: %s", parsed.Code, parsed.Msg)
	}
	if len(parsed.Data) == 0 {
		return OrderResult{}, errors.New("order response has no data")
	}
	entry := parsed.Data[0]
	if entry.SCode != "" && entry.SCode != "0" {
		return OrderResult{}, fmt.Errorf("order rejected: sCode %s: %s", entry.SCode, entry.SMsg)
	}
	if entry.OrdID == "" {
		return OrderResult{}, errors.New("order response missing order id")
	}
	c.log.Debug("order accepted",
		zap.String("inst_id", req.InstID),
		zap.String("side", string(req.Side)),
		zap.String("size", req.Size.String()),
		zap.String("order_id", entry.OrdID),
	)
	return OrderResult{OrderID: entry.OrdID, ClientOrderID: entry.ClOrdID}, nil
}
