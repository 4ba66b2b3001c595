package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// overviewConcurrency bounds the item reads of the lists page.
const overviewConcurrency = 8

// ============================================================
// Shopping lists
// ============================================================

func (s *FinanceService) CreateList(ctx context.Context, name string) (*domain.ShoppingList, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.CreateList")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ErrValidation{Field: "nome", Message: "required"}
	}

	list, err := s.store.CreateList(ctx, name)
	if err != nil {
		return nil, s.observe(err)
	}
	s.logger.Info("list created", zap.Int64("list_id", list.ID))
	return list, nil
}

// DeleteList removes the list and its items. Transactions of a paid list stay.
func (s *FinanceService) DeleteList(ctx context.Context, listID int64) error {
	ctx, span := financeTracer.Start(ctx, "FinanceService.DeleteList")
	defer span.End()
	span.SetAttributes(attribute.Int64("list.id", listID))

	unlock := s.locks.Lock(listKey(listID))
	defer unlock()

	if _, err := s.store.GetList(ctx, listID); err != nil {
		return s.observe(err)
	}
	return s.observe(s.store.DeleteList(ctx, listID))
}

// AddItem appends an item to an incomplete list. Quantity 0 means 1.
func (s *FinanceService) AddItem(ctx context.Context, listID int64, req *domain.NewListItem) (*domain.ListItem, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.AddItem")
	defer span.End()
	span.SetAttributes(attribute.Int64("list.id", listID))

	if err := validateItem(req); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(listKey(listID))
	defer unlock()

	if err := s.requireOpenList(ctx, listID); err != nil {
		return nil, err
	}

	item, err := s.store.AddItem(ctx, listID, req)
	return item, s.observe(err)
}

// RemoveItem deletes an item from an incomplete list.
func (s *FinanceService) RemoveItem(ctx context.Context, listID, itemID int64) error {
	ctx, span := financeTracer.Start(ctx, "FinanceService.RemoveItem")
	defer span.End()
	span.SetAttributes(attribute.Int64("list.id", listID), attribute.Int64("item.id", itemID))

	unlock := s.locks.Lock(listKey(listID))
	defer unlock()

	if err := s.requireOpenList(ctx, listID); err != nil {
		return err
	}

	items, err := s.store.ListItems(ctx, listID)
	if err != nil {
		return s.observe(err)
	}
	found := false
	for _, it := range items {
		if it.ID == itemID {
			found = true
			break
		}
	}
	if !found {
		return &domain.ErrNotFound{Resource: "item", ID: strconv.FormatInt(itemID, 10)}
	}

	return s.observe(s.store.DeleteItem(ctx, listID, itemID))
}

// ListDetail returns the list, its items, the live total and every account
// that could pay it.
func (s *FinanceService) ListDetail(ctx context.Context, listID int64) (*domain.ListDetail, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.ListDetail")
	defer span.End()
	span.SetAttributes(attribute.Int64("list.id", listID))

	var detail domain.ListDetail

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.store.GetList(gCtx, listID)
		detail.List = list
		return err
	})
	g.Go(func() error {
		items, err := s.store.ListItems(gCtx, listID)
		detail.Items = items
		return err
	})
	g.Go(func() error {
		accounts, err := s.store.ListAccounts(gCtx)
		detail.Accounts = accounts
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.observe(err)
	}

	detail.Total = domain.ListTotal(detail.Items)
	return &detail, nil
}

// ListsOverview returns the active lists newest first and the most recently
// completed ones, each with items, total and settling account name.
func (s *FinanceService) ListsOverview(ctx context.Context) (*domain.ListsOverview, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.ListsOverview")
	defer span.End()

	var (
		active, completed []domain.ShoppingList
		accounts          []domain.Account
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		active, err = s.store.ListShoppingLists(gCtx, false, 0)
		return err
	})
	g.Go(func() error {
		var err error
		completed, err = s.store.ListShoppingLists(gCtx, true, completedListsLimit)
		return err
	})
	g.Go(func() error {
		var err error
		accounts, err = s.store.ListAccounts(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.observe(err)
	}

	names := make(map[int64]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Name
	}

	overview := &domain.ListsOverview{
		Active:    make([]domain.ListWithItems, len(active)),
		Completed: make([]domain.ListWithItems, len(completed)),
	}

	g, gCtx = errgroup.WithContext(ctx)
	g.SetLimit(overviewConcurrency)
	fill := func(dst []domain.ListWithItems, lists []domain.ShoppingList) {
		for i, l := range lists {
			i, l := i, l
			g.Go(func() error {
				items, err := s.store.ListItems(gCtx, l.ID)
				if err != nil {
					return fmt.Errorf("items of list %d: %w", l.ID, err)
				}
				dst[i] = domain.ListWithItems{ShoppingList: l, Items: items, Total: domain.ListTotal(items)}
				if l.AccountID != nil {
					dst[i].AccountName = names[*l.AccountID]
				}
				return nil
			})
		}
	}
	fill(overview.Active, active)
	fill(overview.Completed, completed)
	if err := g.Wait(); err != nil {
		return nil, s.observe(err)
	}

	return overview, nil
}

func (s *FinanceService) requireOpenList(ctx context.Context, listID int64) error {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return s.observe(err)
	}
	if list.Completed {
		return &domain.ErrConflict{Message: fmt.Sprintf("list %d is already completed", listID)}
	}
	return nil
}

func validateItem(req *domain.NewListItem) error {
	switch {
	case req == nil || strings.TrimSpace(req.Description) == "":
		return &domain.ErrValidation{Field: "descricao", Message: "required"}
	case req.UnitPrice.IsNegative():
		return &domain.ErrValidation{Field: "valor", Message: "cannot be negative"}
	case !domain.AmountFits(req.UnitPrice):
		return &domain.ErrValidation{Field: "valor", Message: "must not exceed " + domain.MaxAmount.StringFixed(2)}
	case req.Quantity < 0:
		return &domain.ErrValidation{Field: "quantidade", Message: "must be at least 1"}
	}
	return nil
}
