package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tillpoint/tillpoint/internal/inventory"
	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	CountGRNsBetween(ctx context.Context, from, to time.Time) (int, error)
	CreateGRN(ctx context.Context, g GoodsReceipt) (GoodsReceipt, error)
	GetGRN(ctx context.Context, id int64) (GoodsReceipt, error)
	ListGRNs(ctx context.Context, filter ListFilter) ([]GoodsReceipt, int, error)
	MarkGRNPosted(ctx context.Context, id int64, at time.Time) error
	CountReturnsBetween(ctx context.Context, from, to time.Time) (int, error)
	CreateReturn(ctx context.Context, ret SupplierReturn) (SupplierReturn, error)
	DeleteReturn(ctx context.Context, id int64) error
	ListReturns(ctx context.Context, filter ListFilter) ([]SupplierReturn, int, error)
	ReturnedQty(ctx context.Context, grnID int64) (map[int64]int64, error)
}

// InventoryPort posts stock changes. Apply with a key runs at most once.
type InventoryPort interface {
	Apply(ctx context.Context, key string, inputs []inventory.AdjustmentInput) ([]inventory.Movement, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates procurement flows.
type Service struct {
	repo      RepositoryPort
	inventory InventoryPort
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, inventory InventoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, inventory: inventory, audit: audit, logger: logger, now: time.Now}
}

// CreateGoodsReceipt stores a draft receipt. Stock is untouched until posting.
func (s *Service) CreateGoodsReceipt(ctx context.Context, in GRNInput) (GoodsReceipt, error) {
	in.Number = strings.ToUpper(strings.TrimSpace(in.Number))
	in.Note = strings.TrimSpace(in.Note)
	if err := httpx.Validate(in); err != nil {
		return GoodsReceipt{}, err
	}
	now := s.now()
	if in.Number == "" {
		n, err := s.nextNumber(ctx, GRNPrefix, now, s.repo.CountGRNsBetween)
		if err != nil {
			return GoodsReceipt{}, err
		}
		in.Number = n
	}
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = now
	}
	created, err := s.repo.CreateGRN(ctx, GoodsReceipt{
		Number:     in.Number,
		SupplierID: in.SupplierID,
		Status:     GRNStatusDraft,
		ReceivedAt: in.ReceivedAt,
		Note:       in.Note,
		CreatedBy:  shared.ActorFromContext(ctx),
		CreatedAt:  now,
		Lines:      in.Lines,
	})
	if err != nil {
		return GoodsReceipt{}, err
	}
	s.recordAudit(ctx, "procurement:grn_create", "grn", created.ID, map[string]any{"number": created.Number, "total": created.Total()})
	return created, nil
}

// PostGoodsReceipt adds every line to stock and marks the receipt posted.
// Stock is applied under the key grn:<number> so a retried post never
// receives the same goods twice.
func (s *Service) PostGoodsReceipt(ctx context.Context, id int64) (GoodsReceipt, error) {
	grn, err := s.repo.GetGRN(ctx, id)
	if err != nil {
		return GoodsReceipt{}, err
	}
	if grn.Status != GRNStatusDraft {
		return GoodsReceipt{}, ErrAlreadyPosted
	}
	adjustments := make([]inventory.AdjustmentInput, 0, len(grn.Lines))
	for _, l := range grn.Lines {
		adjustments = append(adjustments, inventory.AdjustmentInput{
			ProductID: l.ProductID,
			Quantity:  l.Qty,
			Reason:    inventory.ReasonReceived,
			Note:      "Goods receipt " + grn.Number,
			Ref:       grn.Number,
		})
	}
	_, err = s.inventory.Apply(ctx, "grn:"+grn.Number, adjustments)
	switch {
	case errors.Is(err, inventory.ErrAlreadyApplied):
		s.logger.Warn("goods receipt stock already applied, completing post", slog.String("grn", grn.Number))
	case err != nil:
		return GoodsReceipt{}, err
	}

	at := s.now()
	if err := s.repo.MarkGRNPosted(ctx, grn.ID, at); err != nil {
		return GoodsReceipt{}, err
	}
	grn.Status = GRNStatusPosted
	grn.PostedAt = &at
	s.recordAudit(ctx, "procurement:grn_post", "grn", grn.ID, map[string]any{"number": grn.Number, "lines": len(grn.Lines)})
	return grn, nil
}

// GetGoodsReceipt returns one receipt with lines.
func (s *Service) GetGoodsReceipt(ctx context.Context, id int64) (GoodsReceipt, error) {
	return s.repo.GetGRN(ctx, id)
}

// ListGoodsReceipts lists receipt headers.
func (s *Service) ListGoodsReceipts(ctx context.Context, filter ListFilter) ([]GoodsReceipt, int, error) {
	return s.repo.ListGRNs(ctx, filter)
}

// CreateReturn records a supplier return and removes its lines from stock.
// When the return references a receipt, quantities are capped by what that
// receipt delivered minus earlier returns.
func (s *Service) CreateReturn(ctx context.Context, in ReturnInput) (SupplierReturn, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	if err := httpx.Validate(in); err != nil {
		return SupplierReturn{}, err
	}
	if in.GRNID != nil {
		if err := s.checkAgainstReceipt(ctx, in); err != nil {
			return SupplierReturn{}, err
		}
	}
	now := s.now()
	number, err := s.nextNumber(ctx, ReturnPrefix, now, s.repo.CountReturnsBetween)
	if err != nil {
		return SupplierReturn{}, err
	}
	ret, err := s.repo.CreateReturn(ctx, SupplierReturn{
		Number:     number,
		SupplierID: in.SupplierID,
		GRNID:      in.GRNID,
		Reason:     in.Reason,
		CreatedBy:  shared.ActorFromContext(ctx),
		CreatedAt:  now,
		Lines:      in.Lines,
	})
	if err != nil {
		return SupplierReturn{}, err
	}

	adjustments := make([]inventory.AdjustmentInput, 0, len(ret.Lines))
	for _, l := range ret.Lines {
		adjustments = append(adjustments, inventory.AdjustmentInput{
			ProductID: l.ProductID,
			Quantity:  -l.Qty,
			Reason:    inventory.ReasonReturned,
			Note:      ret.Reason,
			Ref:       ret.Number,
		})
	}
	if _, err := s.inventory.Apply(ctx, "return:"+ret.Number, adjustments); err != nil {
		if derr := s.repo.DeleteReturn(ctx, ret.ID); derr != nil {
			s.logger.Error("remove unposted supplier return", slog.String("number", ret.Number), slog.Any("error", derr))
		}
		return SupplierReturn{}, err
	}
	s.recordAudit(ctx, "procurement:return", "supplier_return", ret.ID, map[string]any{"number": ret.Number, "reason": ret.Reason})
	return ret, nil
}

// ListReturns lists supplier returns.
func (s *Service) ListReturns(ctx context.Context, filter ListFilter) ([]SupplierReturn, int, error) {
	return s.repo.ListReturns(ctx, filter)
}

func (s *Service) checkAgainstReceipt(ctx context.Context, in ReturnInput) error {
	grn, err := s.repo.GetGRN(ctx, *in.GRNID)
	if err != nil {
		return err
	}
	if grn.Status != GRNStatusPosted {
		return ErrReturnNotPosted
	}
	if grn.SupplierID != in.SupplierID {
		return ErrSupplierMismatch
	}
	returned, err := s.repo.ReturnedQty(ctx, grn.ID)
	if err != nil {
		return err
	}
	received := map[int64]int64{}
	for _, l := range grn.Lines {
		received[l.ProductID] += l.Qty
	}
	requested := map[int64]int64{}
	for _, l := range in.Lines {
		requested[l.ProductID] += l.Qty
	}
	for id, qty := range requested {
		if qty+returned[id] > received[id] {
			return ErrReturnExceedsReceipt
		}
	}
	return nil
}

func (s *Service) nextNumber(ctx context.Context, prefix string, now time.Time, count func(context.Context, time.Time, time.Time) (int, error)) (string, error) {
	from, to := shared.MonthBounds(now)
	n, err := count(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("procurement: %s sequence: %w", prefix, err)
	}
	return shared.SequenceNumber(prefix, now, n+1), nil
}

func (s *Service) recordAudit(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
}
