package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pixelprecision/reticstudio/internal/model"
	"github.com/pixelprecision/reticstudio/internal/repository"
)

// 请求上下文中的键,由 API 层的请求中间件写入
const (
	ContextKeyRequestID = "request_id"
	ContextKeyIP        = "ip"
	ContextKeyUserAgent = "user_agent"
	ContextKeyActor     = "actor"
)

// AnonymousActor 未携带操作人信息时使用的操作人
const AnonymousActor = "anonymous"

// AuditLogService 审计日志服务
type AuditLogService interface {
	RecordAction(ctx context.Context, action string, resourceType string, resourceID string, containerID string, details interface{}) error
	ListByContainer(containerID string, limit int) ([]*model.AuditLogModel, error)
	ListByResource(resourceType string, resourceID string) ([]*model.AuditLogModel, error)
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository) AuditLogService {
	return &auditLogService{
		auditRepo: auditRepo,
	}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	action string,
	resourceType string,
	resourceID string,
	containerID string,
	details interface{},
) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	auditLog := &model.AuditLogModel{
		ID:           uuid.New().String(),
		Actor:        GetActor(ctx),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ContainerID:  containerID,
		RequestID:    contextString(ctx, ContextKeyRequestID),
		IP:           GetClientIP(ctx),
		UserAgent:    GetUserAgent(ctx),
		Details:      detailsJSON,
		CreatedAt:    time.Now(),
	}
	if err := auditLog.Validate(); err != nil {
		return err
	}

	return s.auditRepo.Save(auditLog)
}

// ListByContainer 查询容器的操作历史
func (s *auditLogService) ListByContainer(containerID string, limit int) ([]*model.AuditLogModel, error) {
	return s.auditRepo.FindByContainer(containerID, limit)
}

// ListByResource 查询资源的操作历史
func (s *auditLogService) ListByResource(resourceType string, resourceID string) ([]*model.AuditLogModel, error) {
	return s.auditRepo.FindByResource(resourceType, resourceID)
}

// WithRequestInfo 将请求信息写入 context
func WithRequestInfo(ctx context.Context, requestID, ip, userAgent, actor string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyRequestID, requestID)
	ctx = context.WithValue(ctx, ContextKeyIP, ip)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	ctx = context.WithValue(ctx, ContextKeyActor, actor)
	return ctx
}

func contextString(ctx context.Context, key string) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetActor 从 context 获取操作人
func GetActor(ctx context.Context) string {
	if actor := contextString(ctx, ContextKeyActor); actor != "" {
		return actor
	}
	return AnonymousActor
}

// GetRequestID 从 context 获取请求 ID
func GetRequestID(ctx context.Context) string {
	return contextString(ctx, ContextKeyRequestID)
}

// GetClientIP 从 context 获取客户端 IP
func GetClientIP(ctx context.Context) string {
	return contextString(ctx, ContextKeyIP)
}

// GetUserAgent 从 context 获取 User Agent
func GetUserAgent(ctx context.Context) string {
	return contextString(ctx, ContextKeyUserAgent)
}
