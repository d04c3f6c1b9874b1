package binance

import (
	"context"
	"fmt"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/rotabot/internal/domain"
)

func (c *Client) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	var res []*gobinance.Order
	err := c.read(ctx, "open_orders", func() error {
		var err error
		res, err = c.api.NewListOpenOrdersService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("binance.OpenOrders: %w", err)
	}
	out := make([]domain.OpenOrder, 0, len(res))
	for _, o := range res {
		oo, err := toOpenOrder(o)
		if err != nil {
			return nil, err
		}
		out = append(out, oo)
	}
	return out, nil
}

// Balances returns every asset with a non-zero free or locked amount.
func (c *Client) Balances(ctx context.Context) ([]domain.Balance, error) {
	var acc *gobinance.Account
	err := c.read(ctx, "account", func() error {
		var err error
		acc, err = c.api.NewGetAccountService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("binance.Balances: %w", err)
	}
	var out []domain.Balance
	for _, b := range acc.Balances {
		bal, err := toBalance(b)
		if err != nil {
			return nil, err
		}
		if bal.Total().IsZero() {
			continue
		}
		out = append(out, bal)
	}
	return out, nil
}

func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, qty decimal.Decimal, clientID string) (domain.PlacedOrder, error) {
	var res *gobinance.CreateOrderResponse
	err := c.write(ctx, func() error {
		var err error
		res, err = c.api.NewCreateOrderService().
			Symbol(symbol).
			Side(gobinance.SideType(side)).
			Type(gobinance.OrderTypeMarket).
			Quantity(qty.String()).
			NewClientOrderID(clientID).
			NewOrderRespType(gobinance.NewOrderRespTypeFULL).
			Do(ctx)
		return err
	})
	if err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("binance.PlaceMarketOrder %s %s %s: %w", symbol, side, qty, err)
	}
	return toPlaced(res)
}

func (c *Client) PlaceLimitOrder(ctx context.Context, symbol string, side domain.Side, qty, price decimal.Decimal, clientID string) (domain.PlacedOrder, error) {
	var res *gobinance.CreateOrderResponse
	err := c.write(ctx, func() error {
		var err error
		res, err = c.api.NewCreateOrderService().
			Symbol(symbol).
			Side(gobinance.SideType(side)).
			Type(gobinance.OrderTypeLimit).
			TimeInForce(gobinance.TimeInForceTypeGTC).
			Quantity(qty.String()).
			Price(price.String()).
			NewClientOrderID(clientID).
			NewOrderRespType(gobinance.NewOrderRespTypeFULL).
			Do(ctx)
		return err
	})
	if err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("binance.PlaceLimitOrder %s %s %s@%s: %w", symbol, side, qty, price, err)
	}
	return toPlaced(res)
}

// CancelOrder returns an error wrapping domain.ErrOrderNotFound when the
// order was already filled or cancelled.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	err := c.write(ctx, func() error {
		_, err := c.api.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("binance.CancelOrder %s %d: %w", symbol, orderID, err)
	}
	return nil
}

func (c *Client) OrderStatus(ctx context.Context, symbol string, orderID int64) (domain.OrderStatus, error) {
	var res *gobinance.Order
	err := c.read(ctx, "order_status", func() error {
		var err error
		res, err = c.api.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("binance.OrderStatus %s %d: %w", symbol, orderID, err)
	}
	return domain.OrderStatus(res.Status), nil
}

// Fills returns the account trades of one order. The trade list is fetched
// per symbol and filtered locally.
func (c *Client) Fills(ctx context.Context, symbol string, orderID int64) ([]domain.Fill, error) {
	var res []*gobinance.TradeV3
	err := c.read(ctx, "my_trades", func() error {
		var err error
		res, err = c.api.NewListTradesService().Symbol(symbol).Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("binance.Fills %s %d: %w", symbol, orderID, err)
	}
	var out []domain.Fill
	for _, t := range res {
		if t.OrderID != orderID {
			continue
		}
		f, err := toFill(t)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
