package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dianxiu-server/internal/models"
)

const userStateCacheTTL = 10 * time.Minute

// UserState 用户鉴权快照，避免每个请求都回表
type UserState struct {
	UserID    uint   `json:"user_id"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	UpdatedAt int64  `json:"updated_at"`
}

func userStateKey(userID uint) string {
	return fmt.Sprintf("auth:user:%d", userID)
}

// GetUserState 读取用户鉴权快照
func GetUserState(ctx context.Context, userID uint) (*UserState, bool, error) {
	if !Enabled() {
		return nil, false, nil
	}
	var state UserState
	found, err := GetJSON(ctx, userStateKey(userID), &state)
	if err != nil || !found {
		return nil, false, err
	}
	return &state, true, nil
}

// SetUserState 写入用户鉴权快照
func SetUserState(ctx context.Context, user *models.User) error {
	if user == nil {
		return nil
	}
	return SetJSON(ctx, userStateKey(user.ID), UserState{
		UserID:    user.ID,
		Role:      user.Role,
		Status:    user.Status,
		UpdatedAt: time.Now().Unix(),
	}, userStateCacheTTL)
}

// InvalidateUserState 清除用户鉴权快照
func InvalidateUserState(ctx context.Context, userID uint) error {
	return Del(ctx, userStateKey(userID))
}
