package escrow

import (
	"context"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/talkincode/supplychain/internal/domain"
	"github.com/talkincode/supplychain/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Event bus topics
const (
	TopicOrderCreated       = "escrow:created"
	TopicOrderReleased      = "escrow:released"
	TopicOrderReleaseFailed = "escrow:release_failed"
)

// OrderEvent is published on the escrow topics
type OrderEvent struct {
	OrderID string
	Digest  string
	Action  string
	Status  string
	Payload interface{}
	Err     string
	At      time.Time
}

func publish(bus EventBus.Bus, topic string, ev OrderEvent) {
	if bus == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	bus.Publish(topic, ev)
}

// OrderLogRepository handles database operations for escrow audit logs
type OrderLogRepository interface {
	// Create inserts a new audit log entry
	Create(ctx context.Context, log *domain.EscrowOrderLog) error

	// GetByOrderID retrieves all logs of one order, newest first
	GetByOrderID(ctx context.Context, orderID string) ([]*domain.EscrowOrderLog, error)

	// List retrieves logs with pagination, newest first
	List(ctx context.Context, page, pageSize int) ([]*domain.EscrowOrderLog, int64, error)

	// DeleteOlderThan removes logs older than N days
	DeleteOlderThan(ctx context.Context, days int) error
}

// GormOrderLogRepository is the GORM implementation of OrderLogRepository
type GormOrderLogRepository struct {
	db *gorm.DB
}

// NewGormOrderLogRepository creates a new GORM-based repository
func NewGormOrderLogRepository(db *gorm.DB) *GormOrderLogRepository {
	return &GormOrderLogRepository{db: db}
}

func (r *GormOrderLogRepository) Create(ctx context.Context, log *domain.EscrowOrderLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *GormOrderLogRepository) GetByOrderID(ctx context.Context, orderID string) ([]*domain.EscrowOrderLog, error) {
	var logs []*domain.EscrowOrderLog
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}

func (r *GormOrderLogRepository) List(ctx context.Context, page, pageSize int) ([]*domain.EscrowOrderLog, int64, error) {
	var total int64
	var logs []*domain.EscrowOrderLog
	db := r.db.WithContext(ctx).Model(&domain.EscrowOrderLog{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&logs).Error
	return logs, total, err
}

func (r *GormOrderLogRepository) DeleteOlderThan(ctx context.Context, days int) error {
	return r.db.WithContext(ctx).
		Where("created_at < ?", time.Now().AddDate(0, 0, -days)).
		Delete(&domain.EscrowOrderLog{}).Error
}

// AuditLogger writes every escrow event to the order log
type AuditLogger struct {
	repo OrderLogRepository
}

// NewAuditLogger creates an audit logger on repo
func NewAuditLogger(repo OrderLogRepository) *AuditLogger {
	return &AuditLogger{repo: repo}
}

// Subscribe attaches the logger to the escrow topics of bus
func (a *AuditLogger) Subscribe(bus EventBus.Bus) error {
	for _, topic := range []string{TopicOrderCreated, TopicOrderReleased, TopicOrderReleaseFailed} {
		if err := bus.SubscribeAsync(topic, a.handle, false); err != nil {
			return err
		}
	}
	return nil
}

func (a *AuditLogger) handle(ev OrderEvent) {
	payload := ""
	if ev.Payload != nil {
		if b, err := json.Marshal(ev.Payload); err == nil {
			payload = string(b)
		}
	}
	log := &domain.EscrowOrderLog{
		ID:         common.UUIDint64(),
		OrderID:    ev.OrderID,
		Action:     ev.Action,
		Status:     ev.Status,
		Digest:     ev.Digest,
		Payload:    payload,
		ErrorMsg:   ev.Err,
		ExecutedAt: ev.At,
		CreatedAt:  time.Now(),
	}
	if err := a.repo.Create(context.Background(), log); err != nil {
		zap.L().Error("failed to write escrow audit log",
			zap.String("order_id", ev.OrderID),
			zap.String("action", ev.Action),
			zap.Error(err),
			zap.String("namespace", "escrow"),
		)
	}
}
