// Package kalshi 封装交易所 REST 网关：行情查询、下单、撤单、持仓
package kalshi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/MuditaSai/weather/internal/domain"
	"github.com/MuditaSai/weather/pkg/ratelimit"
)

const apiPrefix = "/trade-api/v2"

// Client 交易所 REST 客户端，所有请求走 RSA-PSS 签名
type Client struct {
	http   *resty.Client
	signer *Signer
	limits *ratelimit.Manager
	now    func() time.Time
}

// NewClient 创建客户端
// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY）
func NewClient(baseURL string, signer *Signer) *Client {
	http := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			// 429 限流时优先尊重 Retry-After 头
			if resp.StatusCode() == 429 {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return seconds, nil
					}
				}
				return 10 * time.Second, nil
			}
			return 0, nil
		})
	return &Client{http: http, signer: signer, limits: ratelimit.NewManager(), now: time.Now}
}

// newRequest 构造带签名头的请求，path 为不含查询参数的完整路径。
// 发出前先消耗本地配额：读写分开计数，写类配额更紧
func (c *Client) newRequest(ctx context.Context, method, path string) (*resty.Request, error) {
	endpoint := ratelimit.KalshiRead
	if method != "GET" {
		endpoint = ratelimit.KalshiOrder
	}
	if err := c.limits.Wait(ctx, endpoint); err != nil {
		return nil, err
	}

	r := c.http.R().SetContext(ctx)
	r.SetHeader("Accept", "application/json")
	if c.signer != nil {
		headers, err := c.signer.Headers(c.now().UnixMilli(), method, path)
		if err != nil {
			return nil, err
		}
		r.SetHeaders(headers)
	}
	return r, nil
}

// check 把非 2xx 响应转成 StatusError
func check(resp *resty.Response, err error) error {
	if err != nil {
		return errors.Wrap(err, "kalshi: request")
	}
	if resp.IsSuccess() {
		return nil
	}
	return &StatusError{Code: resp.StatusCode(), Body: strings.TrimSpace(string(resp.Body()))}
}

// EventTicker 拼出某系列在某结算日的事件代码，例如 KXHIGHNY-25SEP01
func EventTicker(series string, date time.Time) string {
	return fmt.Sprintf("%s-%s", series, strings.ToUpper(date.Format("06Jan02")))
}

// GetEventMarkets 拉取一个事件下的全部市场（温度桶）
func (c *Client) GetEventMarkets(ctx context.Context, eventTicker string) ([]Market, error) {
	path := apiPrefix + "/events/" + eventTicker
	r, err := c.newRequest(ctx, "GET", path)
	if err != nil {
		return nil, err
	}
	var out eventResponse
	resp, err := r.SetResult(&out).Get(path)
	if cerr := check(resp, err); cerr != nil {
		return nil, cerr
	}
	return out.Markets, nil
}

// GetMarket 拉取单个市场
func (c *Client) GetMarket(ctx context.Context, ticker string) (*Market, error) {
	path := apiPrefix + "/markets/" + ticker
	r, err := c.newRequest(ctx, "GET", path)
	if err != nil {
		return nil, err
	}
	var out marketResponse
	resp, err := r.SetResult(&out).Get(path)
	if cerr := check(resp, err); cerr != nil {
		return nil, cerr
	}
	return &out.Market, nil
}

// placeOrder 统一的限价单入口，action 为 buy 或 sell
func (c *Client) placeOrder(ctx context.Context, ticker string, side domain.Side, action string, price, count int) (string, error) {
	path := apiPrefix + "/portfolio/orders"
	r, err := c.newRequest(ctx, "POST", path)
	if err != nil {
		return "", err
	}
	req := orderRequest{
		Ticker:        ticker,
		ClientOrderID: uuid.NewString(),
		Side:          string(side),
		Action:        action,
		Type:          "limit",
		Count:         count,
	}
	if side == domain.SideYes {
		req.YesPrice = &price
	} else {
		req.NoPrice = &price
	}
	var out orderResponse
	resp, err := r.SetBody(&req).SetResult(&out).Post(path)
	if cerr := check(resp, err); cerr != nil {
		return "", cerr
	}
	return out.Order.OrderID, nil
}

// PlaceLimitOrder 挂限价买单，返回订单 ID
func (c *Client) PlaceLimitOrder(ctx context.Context, ticker string, side domain.Side, price, count int) (string, error) {
	return c.placeOrder(ctx, ticker, side, "buy", price, count)
}

// SellLimitOrder 挂限价卖单（平仓用）
func (c *Client) SellLimitOrder(ctx context.Context, ticker string, side domain.Side, price, count int) (string, error) {
	return c.placeOrder(ctx, ticker, side, "sell", price, count)
}

// CancelOrder 撤单
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	path := apiPrefix + "/portfolio/orders/" + orderID
	r, err := c.newRequest(ctx, "DELETE", path)
	if err != nil {
		return err
	}
	resp, err := r.Delete(path)
	return check(resp, err)
}

// GetPositions 拉取全部温度市场持仓（只保留本策略关心的系列前缀）
func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	path := apiPrefix + "/portfolio/positions"
	var all []Position
	cursor := ""
	for {
		r, err := c.newRequest(ctx, "GET", path)
		if err != nil {
			return nil, err
		}
		if cursor != "" {
			r.SetQueryParam("cursor", cursor)
		}
		var out positionsResponse
		resp, err := r.SetResult(&out).Get(path)
		if cerr := check(resp, err); cerr != nil {
			return nil, cerr
		}
		for _, p := range out.MarketPositions {
			if strings.HasPrefix(p.Ticker, "KXHIGH") || strings.HasPrefix(p.Ticker, "KXLOW") {
				all = append(all, p)
			}
		}
		if out.Cursor == "" {
			break
		}
		cursor = out.Cursor
	}
	return all, nil
}

// GetBalance 查询账户余额（分）
func (c *Client) GetBalance(ctx context.Context) (int, error) {
	path := apiPrefix + "/portfolio/balance"
	r, err := c.newRequest(ctx, "GET", path)
	if err != nil {
		return 0, err
	}
	var out balanceResponse
	resp, err := r.SetResult(&out).Get(path)
	if cerr := check(resp, err); cerr != nil {
		return 0, cerr
	}
	return out.Balance, nil
}
