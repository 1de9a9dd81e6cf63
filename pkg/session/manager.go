package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSessionNotFound 会话不存在
var ErrSessionNotFound = errors.New("session not found")

// Manager 会话管理器。同一会话的修改串行执行，不同会话互不阻塞。
type Manager struct {
	store  Store
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager 创建会话管理器
func NewManager(store Store, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockFor(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// Create 创建新会话
func (m *Manager) Create(name string) (*State, error) {
	id := uuid.New().String()
	if strings.TrimSpace(name) == "" {
		name = "session-" + id[:8]
	}

	state := NewState(id, name)
	if err := m.store.Create(state); err != nil {
		return nil, fmt.Errorf("创建会话失败: %w", err)
	}

	m.logger.Info("会话已创建", zap.String("session", id), zap.String("name", name))
	return state, nil
}

// Get 读取会话快照
func (m *Manager) Get(id string) (*State, error) {
	state, err := m.store.Load(id)
	if err != nil {
		return nil, fmt.Errorf("读取会话失败: %w", err)
	}
	if state == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return state, nil
}

// List 列出所有会话
func (m *Manager) List() ([]Summary, error) {
	return m.store.List()
}

// Update 在会话锁内读取、修改并保存。fn 返回错误时已做的修改仍会保存。
func (m *Manager) Update(id string, fn func(*State) error) (*State, error) {
	l := m.lockFor(id)
	l.Lock()
	defer l.Unlock()

	state, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	fnErr := fn(state)
	if err := m.store.Save(state); err != nil {
		m.logger.Error("保存会话失败", zap.String("session", id), zap.Error(err))
		return nil, fmt.Errorf("保存会话失败: %w", err)
	}
	return state, fnErr
}

// Delete 删除会话
func (m *Manager) Delete(id string) error {
	l := m.lockFor(id)
	l.Lock()
	defer l.Unlock()

	if err := m.store.Delete(id); err != nil {
		return fmt.Errorf("删除会话失败: %w", err)
	}

	m.mu.Lock()
	delete(m.locks, id)
	m.mu.Unlock()
	return nil
}
