package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/medicore/medicore/internal/billing/domain"
	"gorm.io/gorm"
)

func (s *Service) AddCustomItem(ctx context.Context, invoiceID string, req domain.CustomItemRequest) (domain.LineItem, error) {
	id, err := parseID(invoiceID)
	if err != nil {
		return domain.LineItem{}, domain.ErrInvalidInvoiceID
	}
	if strings.TrimSpace(req.Name) == "" || req.Quantity <= 0 || req.UnitPrice < 0 {
		return domain.LineItem{}, domain.ErrInvalidItem
	}

	var item domain.LineItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadInvoice(ctx, tx, id); err != nil {
			return err
		}

		now := s.clock.Now()
		item = domain.LineItem{
			ID:              s.genID.Generate(),
			InvoiceID:       id,
			ItemType:        domain.ItemTypeCustom,
			ItemName:        strings.TrimSpace(req.Name),
			ItemDescription: strings.TrimSpace(req.Description),
			Quantity:        req.Quantity,
			UnitPrice:       req.UnitPrice,
			TotalPrice:      req.Quantity * req.UnitPrice,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.itemRepo.WithTrx(tx).Create(ctx, &item); err != nil {
			return err
		}

		_, err := s.recomputeTotal(ctx, tx, id)
		return err
	})
	if err != nil {
		return domain.LineItem{}, err
	}

	s.logMutation(ctx, "item.added", id)
	return item, nil
}

func (s *Service) UpdateItem(ctx context.Context, invoiceID, itemID string, req domain.UpdateItemRequest) (domain.LineItem, error) {
	id, err := parseID(invoiceID)
	if err != nil {
		return domain.LineItem{}, domain.ErrInvalidInvoiceID
	}
	lineID, err := parseID(itemID)
	if err != nil {
		return domain.LineItem{}, domain.ErrLineItemNotFound
	}

	var updated domain.LineItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.loadItem(ctx, tx, id, lineID)
		if err != nil {
			return err
		}

		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				return domain.ErrInvalidItem
			}
			item.ItemName = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			item.ItemDescription = strings.TrimSpace(*req.Description)
		}
		if req.Quantity != nil {
			if *req.Quantity <= 0 {
				return domain.ErrInvalidItem
			}
			item.Quantity = *req.Quantity
		}
		if req.UnitPrice != nil {
			if *req.UnitPrice < 0 {
				return domain.ErrInvalidItem
			}
			item.UnitPrice = *req.UnitPrice
		}
		item.TotalPrice = item.Quantity * item.UnitPrice
		item.UpdatedAt = s.clock.Now()

		// Save writes the full row; a cleared description must persist.
		if err := tx.WithContext(ctx).Save(item).Error; err != nil {
			return err
		}
		updated = *item

		_, err = s.recomputeTotal(ctx, tx, id)
		return err
	})
	if err != nil {
		return domain.LineItem{}, err
	}

	s.logMutation(ctx, "item.updated", id)
	return updated, nil
}

func (s *Service) DeleteItem(ctx context.Context, invoiceID, itemID string) error {
	id, err := parseID(invoiceID)
	if err != nil {
		return domain.ErrInvalidInvoiceID
	}
	lineID, err := parseID(itemID)
	if err != nil {
		return domain.ErrLineItemNotFound
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadItem(ctx, tx, id, lineID); err != nil {
			return err
		}
		if err := s.itemRepo.WithTrx(tx).Delete(ctx, lineID.String()); err != nil {
			return err
		}
		_, err = s.recomputeTotal(ctx, tx, id)
		return err
	})
	if err != nil {
		return err
	}

	s.logMutation(ctx, "item.deleted", id)
	return nil
}

func (s *Service) loadItem(ctx context.Context, tx *gorm.DB, invoiceID, itemID snowflake.ID) (*domain.LineItem, error) {
	item, err := s.itemRepo.WithTrx(tx).FindOne(ctx, &domain.LineItem{ID: itemID, InvoiceID: invoiceID})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrLineItemNotFound
	}
	return item, nil
}
