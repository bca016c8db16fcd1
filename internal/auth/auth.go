package auth

import (
	"context"
	"strconv"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
)

// 网关鉴权后透传的请求头
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// 定义 context key
type contextKey string

const (
	// UserIDKey 用户ID的context key
	UserIDKey contextKey = "user_id"
	// UserRoleKey 用户角色的context key
	UserRoleKey contextKey = "user_role"
)

// Role 用户角色
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Server 从网关透传的请求头中提取用户身份，不做校验
func Server() middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if tr, ok := transport.FromServerContext(ctx); ok {
				if uid, err := strconv.ParseUint(tr.RequestHeader().Get(HeaderUserID), 10, 64); err == nil && uid > 0 {
					ctx = context.WithValue(ctx, UserIDKey, uid)
				}
				if role := tr.RequestHeader().Get(HeaderUserRole); role != "" {
					ctx = context.WithValue(ctx, UserRoleKey, Role(role))
				}
			}
			return handler(ctx, req)
		}
	}
}

// WithUser 设置用户身份（CLI 与测试使用）
func WithUser(ctx context.Context, uid uint64, role Role) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, uid)
	return context.WithValue(ctx, UserRoleKey, role)
}

// GetUIDFromContext 从context中获取用户ID
func GetUIDFromContext(ctx context.Context) (uint64, bool) {
	uid, ok := ctx.Value(UserIDKey).(uint64)
	return uid, ok && uid > 0
}

// GetRoleFromContext 从context中获取用户角色
func GetRoleFromContext(ctx context.Context) (Role, bool) {
	role, ok := ctx.Value(UserRoleKey).(Role)
	return role, ok
}

// IsAdmin 判断当前用户是否为管理员
func IsAdmin(ctx context.Context) bool {
	role, ok := GetRoleFromContext(ctx)
	return ok && role == RoleAdmin
}

// RequireUser 返回当前用户ID，未登录时返回 401
func RequireUser(ctx context.Context) (uint64, error) {
	uid, ok := GetUIDFromContext(ctx)
	if !ok {
		return 0, errors.Unauthorized("UNAUTHORIZED", "authentication required")
	}
	return uid, nil
}

// RequireAdmin 请款、退款等运维操作只允许管理员调用
func RequireAdmin(ctx context.Context) error {
	if _, err := RequireUser(ctx); err != nil {
		return err
	}
	if !IsAdmin(ctx) {
		return errors.Forbidden("FORBIDDEN", "permission denied: admin role required")
	}
	return nil
}

// CheckOwnership 检查用户是否有权限访问指定资源
func CheckOwnership(ctx context.Context, resourceUID uint64) error {
	currentUID, err := RequireUser(ctx)
	if err != nil {
		return err
	}

	// 管理员可以访问所有资源
	if IsAdmin(ctx) {
		return nil
	}

	// 普通用户只能访问自己的资源
	if currentUID != resourceUID {
		return errors.Forbidden("FORBIDDEN", "permission denied: you can only access your own resources")
	}

	return nil
}
