package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tillpoint/tillpoint/internal/catalog"
	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards referenced postings against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates stock adjustments.
type Service struct {
	repo        RepositoryPort
	notifier    catalog.ChangeNotifier
	audit       AuditPort
	idempotency IdempotencyPort
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service. notifier, audit and idem may be nil.
func NewService(repo RepositoryPort, notifier catalog.ChangeNotifier, audit AuditPort, idem IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, notifier: notifier, audit: audit, idempotency: idem, logger: logger, now: time.Now}
}

// Adjust applies one signed stock change and logs it.
func (s *Service) Adjust(ctx context.Context, in AdjustmentInput) (Movement, error) {
	moves, err := s.Apply(ctx, "", []AdjustmentInput{in})
	if err != nil {
		return Movement{}, err
	}
	return moves[0], nil
}

// Apply posts every adjustment in one transaction. A non-empty key makes the
// posting idempotent: a second Apply with the same key returns
// ErrAlreadyApplied.
func (s *Service) Apply(ctx context.Context, key string, inputs []AdjustmentInput) ([]Movement, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no adjustments", httpx.ErrValidation)
	}
	actor := shared.ActorFromContext(ctx)
	for i := range inputs {
		if err := normalize(&inputs[i]); err != nil {
			return nil, err
		}
		if inputs[i].ActorID == 0 {
			inputs[i].ActorID = actor
		}
	}

	claimed := false
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil, ErrAlreadyApplied
			}
			return nil, err
		}
		claimed = true
	}

	now := s.now()
	moves := make([]Movement, 0, len(inputs))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		moves = moves[:0]
		for _, in := range inputs {
			product, err := tx.LockProduct(ctx, in.ProductID)
			if err != nil {
				return err
			}
			newStock := max(product.Stock+in.Quantity, 0)
			if delta := newStock - product.Stock; delta != 0 {
				if err := tx.IncrementStock(ctx, product.ID, delta); err != nil {
					return err
				}
			}
			m := Movement{
				ID:            uuid.NewString(),
				ProductID:     product.ID,
				ProductName:   product.Name,
				Quantity:      in.Quantity,
				PreviousStock: product.Stock,
				NewStock:      newStock,
				Reason:        in.Reason,
				Note:          in.Note,
				Ref:           in.Ref,
				ActorID:       in.ActorID,
				CreatedAt:     now,
			}
			if err := tx.InsertMovement(ctx, m); err != nil {
				return err
			}
			moves = append(moves, m)
		}
		return nil
	})
	if err != nil {
		if claimed {
			_ = s.idempotency.Delete(ctx, key)
		}
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx); err != nil {
			s.logger.Warn("publish catalog change after adjustment", slog.Any("error", err))
		}
	}
	if s.audit != nil {
		for _, m := range moves {
			_ = s.audit.Record(ctx, shared.AuditLog{
				ActorID:  m.ActorID,
				Action:   "inventory:" + string(m.Reason),
				Entity:   "stock_movement",
				EntityID: m.ID,
				Meta: map[string]any{
					"product_id":     m.ProductID,
					"quantity":       m.Quantity,
					"previous_stock": m.PreviousStock,
					"new_stock":      m.NewStock,
					"ref":            m.Ref,
				},
			})
		}
	}
	return moves, nil
}

// ListMovements returns the stock card for the filter.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	return s.repo.ListMovements(ctx, filter)
}

func normalize(in *AdjustmentInput) error {
	in.Reason = Reason(strings.ToLower(strings.TrimSpace(string(in.Reason))))
	in.Note = strings.TrimSpace(in.Note)
	in.Ref = strings.TrimSpace(in.Ref)
	if err := httpx.Validate(*in); err != nil {
		return err
	}
	if !in.Reason.Valid() {
		return ErrInvalidReason
	}
	if in.Reason == ReasonOther && in.Note == "" {
		return ErrNoteRequired
	}
	return nil
}
