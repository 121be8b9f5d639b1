// Package cli 提供门店的交互式命令行菜单
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/MorseWayne/catalog_shop/internal/domain"
	"github.com/MorseWayne/catalog_shop/internal/service"
)

const (
	choiceList     = "1"
	choiceTotal    = "2"
	choiceOrder    = "3"
	choiceQuit     = "4"
	menuText       = "\n   Store Menu\n   ----------\n1. List all products in store\n2. Show total amount in store\n3. Make an order\n4. Quit\n"
	invalidChoice  = "Error with your choice! Try again!"
	invalidAmount  = "Order quantity must be greater than zero and not exceed the stock."
	finishOrderTip = "When you want to finish order, enter empty text."
)

// errInputClosed 输入流结束
var errInputClosed = errors.New("input closed")

// Menu 交互式菜单，读写任意流，便于测试
type Menu struct {
	svc    service.StoreService
	in     *bufio.Scanner
	out    io.Writer
	logger *zap.Logger
}

// NewMenu 创建菜单
func NewMenu(svc service.StoreService, in io.Reader, out io.Writer, logger *zap.Logger) *Menu {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Menu{svc: svc, in: bufio.NewScanner(in), out: out, logger: logger}
}

// Run 循环显示菜单直到用户退出或输入结束
func (m *Menu) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.printf("%s", menuText)

		choice, err := m.askChoice()
		if errors.Is(err, errInputClosed) {
			m.println("Bye!")
			return nil
		}
		if err != nil {
			return err
		}

		switch choice {
		case choiceList:
			err = m.listProducts(ctx)
		case choiceTotal:
			err = m.showTotal(ctx)
		case choiceOrder:
			err = m.makeOrder(ctx)
		case choiceQuit:
			m.println("Bye!")
			return nil
		}
		if errors.Is(err, errInputClosed) {
			m.println("Bye!")
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (m *Menu) askChoice() (string, error) {
	for {
		line, err := m.prompt("Please choose a number: ")
		if err != nil {
			return "", err
		}
		switch line {
		case choiceList, choiceTotal, choiceOrder, choiceQuit:
			return line, nil
		}
		m.println(invalidChoice)
	}
}

func (m *Menu) listProducts(ctx context.Context) error {
	views, err := m.svc.ListProducts(ctx, true)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	m.printf("\n   Products in store\n   -----------------\n")
	for _, v := range views {
		m.printf("%d: %s\n", v.Index, v.Display)
	}
	return nil
}

func (m *Menu) showTotal(ctx context.Context) error {
	total, err := m.svc.TotalQuantity(ctx)
	if err != nil {
		return fmt.Errorf("total quantity: %w", err)
	}
	m.printf("\n   Total amount in store\n   ---------------------\n")
	m.printf("Total amount: %d\n", total)
	return nil
}

// makeOrder 收集订单行，空行结束后统一下单
// 下单失败只打印错误，菜单继续运行。
func (m *Menu) makeOrder(ctx context.Context) error {
	views, err := m.svc.ListProducts(ctx, true)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	byIndex := make(map[int]*domain.ProductView, len(views))
	for _, v := range views {
		byIndex[v.Index] = v
	}

	m.printf("\n   Make an order\n   --------------\n")
	m.println(finishOrderTip)

	req := &domain.OrderRequest{}
	for {
		view, err := m.askProduct(byIndex)
		if err != nil {
			return err
		}
		if view == nil {
			break
		}
		quantity, err := m.askQuantity(view)
		if err != nil {
			return err
		}
		req.Items = append(req.Items, domain.OrderItemRequest{ProductIndex: view.Index, Quantity: quantity})
	}

	if len(req.Items) == 0 {
		m.println("Order is empty.")
		return nil
	}
	for _, item := range req.Items {
		v := byIndex[item.ProductIndex]
		m.printf("%d x %s: $%s\n", item.Quantity, v.Name, formatAmount(v.Price))
	}

	receipt, err := m.svc.PlaceOrder(ctx, req)
	if err != nil {
		m.logger.Debug("order rejected", zap.Error(err))
		if receipt != nil && receipt.Status == domain.OrderStatusPartial {
			m.printf("Order partially made, charged $%s before failing: %v\n", formatAmount(receipt.Total), err)
			return nil
		}
		m.printf("Order failed: %v\n", err)
		return nil
	}
	m.printf("Order made! Total payment: $%s\n", formatAmount(receipt.Total))
	return nil
}

// askProduct 返回 nil 表示用户结束下单
func (m *Menu) askProduct(byIndex map[int]*domain.ProductView) (*domain.ProductView, error) {
	for {
		line, err := m.prompt("Which product # do you want? ")
		if err != nil {
			return nil, err
		}
		if line == "" {
			return nil, nil
		}
		if n, err := strconv.Atoi(line); err == nil {
			if v, ok := byIndex[n]; ok {
				return v, nil
			}
		}
		m.println(invalidChoice)
	}
}

// askQuantity 有库存商品限制在 1..库存，无库存商品只要求为正数
func (m *Menu) askQuantity(view *domain.ProductView) (int, error) {
	for {
		line, err := m.prompt("How many do you want? ")
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(line)
		if err == nil && n > 0 && (view.Kind == domain.ProductKindNonStocked || n <= view.Quantity) {
			return n, nil
		}
		m.println(invalidAmount)
	}
}

func (m *Menu) prompt(text string) (string, error) {
	m.printf("%s", text)
	if !m.in.Scan() {
		if err := m.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", errInputClosed
	}
	return strings.TrimSpace(m.in.Text()), nil
}

func (m *Menu) printf(format string, args ...any) {
	fmt.Fprintf(m.out, format, args...)
}

func (m *Menu) println(text string) {
	fmt.Fprintln(m.out, text)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
