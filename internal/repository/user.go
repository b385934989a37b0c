package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
)

// UserRepository は利用者の参照を担当するインターフェースです
// 利用者の登録はこのサービスの範囲外です
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Developer, error)
	FindByPublicToken(ctx context.Context, token string) (*model.Developer, error)
}

// UserRepositoryImpl は利用者の参照を担当します
type UserRepositoryImpl struct {
	db *DB
}

// NewUserRepository は新しいUserRepositoryを作成します
func NewUserRepository(db *DB) *UserRepositoryImpl {
	return &UserRepositoryImpl{
		db: db,
	}
}

const userColumns = `id, role, display_name, email, telegram_chat_id, public_token, created_at`

func (r *UserRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Developer, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "UserRepository.FindByID")
	defer seg.Close(nil)

	var user model.Developer
	if err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFound("developer not found")
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *UserRepositoryImpl) FindByPublicToken(ctx context.Context, token string) (*model.Developer, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "UserRepository.FindByPublicToken")
	defer seg.Close(nil)

	var user model.Developer
	if err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE public_token = $1`, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFound("developer not found")
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
