package services

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"user-management/internal/entities"
	"user-management/internal/repositories"
	"user-management/pkg/eventbus"
	apperrors "user-management/pkg/errors"
	"user-management/pkg/types"
	"user-management/pkg/utils"
)

// fakeUserRepo - хранилище в памяти с теми же ошибками, что и у настоящего репозитория.
type fakeUserRepo struct {
	mu          sync.Mutex
	users       map[uuid.UUID]entities.User
	failWith    error
	createErr   error
	emailLookup int
}

func newFakeUserRepo(users ...entities.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[uuid.UUID]entities.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) GetUsers(_ context.Context, filter types.Filter) ([]entities.User, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, 0, r.failWith
	}
	out := make([]entities.User, 0, len(r.users))
	for _, u := range r.users {
		if filter.Role != "" && string(u.Role) != filter.Role {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	total := uint64(len(out))
	if filter.Limit > 0 {
		start := min(filter.Offset, total)
		end := min(start+filter.Limit, total)
		out = out[start:end]
	}
	return out, total, nil
}

func (r *fakeUserRepo) FindUserByID(_ context.Context, _ pgx.Tx, id uuid.UUID) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	return r.FindByEmailTx(ctx, nil, email)
}

func (r *fakeUserRepo) FindByEmailTx(_ context.Context, _ pgx.Tx, email string) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emailLookup++
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeUserRepo) CreateUser(_ context.Context, _ pgx.Tx, user *entities.User) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return nil, apperrors.ErrEmailExists
		}
		if u.Nickname == user.Nickname {
			return nil, apperrors.ErrNicknameExists
		}
	}
	now := time.Now()
	created := *user
	created.CreatedAt = &now
	created.UpdatedAt = &now
	r.users[created.ID] = created
	return &created, nil
}

func (r *fakeUserRepo) UpdateUser(_ context.Context, _ pgx.Tx, user *entities.User) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return nil, apperrors.ErrNotFound
	}
	for id, u := range r.users {
		if id != user.ID && strings.EqualFold(u.Email, user.Email) {
			return nil, apperrors.ErrEmailExists
		}
	}
	updated := *user
	updated.UpdatedAt = utils.ToPtr(time.Now())
	r.users[user.ID] = updated
	return &updated, nil
}

func (r *fakeUserRepo) DeleteUser(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type fakeCache struct {
	mu      sync.Mutex
	data    map[string]string
	failGet bool
	deleted []string
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string]string)} }

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return "", errors.New("redis: connection refused")
	}
	v, ok := c.data[key]
	if !ok {
		return "", repositories.ErrCacheMiss
	}
	return v, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		c.data[key] = string(v)
	case string:
		c.data[key] = v
	}
	return nil
}

func (c *fakeCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func (c *fakeCache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, _ := strconv.ParseInt(c.data[key], 10, 64)
	n++
	c.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (c *fakeCache) SetIfVersion(
	_ context.Context,
	versionKey, version, key string,
	value interface{},
	_ time.Duration,
) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data[versionKey] != version {
		return false, nil
	}
	switch v := value.(type) {
	case []byte:
		c.data[key] = string(v)
	case string:
		c.data[key] = v
	}
	return true, nil
}

// pausingRepo останавливает первый FindByEmail после чтения из хранилища,
// пока тест не закроет release.
type pausingRepo struct {
	*fakeUserRepo
	paused  atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func newPausingRepo(base *fakeUserRepo) *pausingRepo {
	return &pausingRepo{fakeUserRepo: base, read: make(chan struct{}), release: make(chan struct{})}
}

func (r *pausingRepo) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	user, err := r.fakeUserRepo.FindByEmail(ctx, email)
	if r.paused.CompareAndSwap(false, true) {
		close(r.read)
		<-r.release
	}
	return user, err
}

type recordingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *recordingBus) Publish(_ context.Context, e eventbus.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}
