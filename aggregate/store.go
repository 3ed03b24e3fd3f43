package aggregate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chris576/Gluon/errors"
	"github.com/chris576/Gluon/logging"
)

// Reducer 把事件归约到聚合快照上，返回新状态
// reducer 返回错误时，聚合状态与版本保持不变。
type Reducer func(snapshot Aggregate) (newState any, err error)

// Store 聚合存储
//
// 并发模型：按标识互斥（per-identity exclusivity）。
// 每个聚合实例携带自己的互斥锁，同一标识的 Apply 串行执行，
// 不同标识的 Apply 互不阻塞。这是引擎唯一的临界区。
type Store struct {
	instances map[string]*instance
	mutex     sync.RWMutex

	logger logging.Logger
}

// instance 单个聚合实例（状态 + 版本 + 实例级锁）
type instance struct {
	mutex   sync.Mutex
	state   any
	version uint64
}

// NewStore 创建聚合存储
func NewStore(logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.ComponentLogger("aggregate.store")
	}
	return &Store{
		instances: make(map[string]*instance),
		logger:    logger,
	}
}

// Register 注册聚合，初始版本为 0
//
// 同一标识重复注册是配置冲突，返回错误。
func (s *Store) Register(identity string, initialState any) error {
	if identity == "" {
		return errors.NewError(errors.ErrCodeInvalidInput, "aggregate identity cannot be empty")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.instances[identity]; exists {
		return errors.NewError(errors.ErrCodeConfigurationConflict,
			fmt.Sprintf("aggregate already registered: %s", identity))
	}

	s.instances[identity] = &instance{state: initialState}
	return nil
}

// Get 获取聚合快照
func (s *Store) Get(identity string) (Aggregate, error) {
	s.mutex.RLock()
	inst, exists := s.instances[identity]
	s.mutex.RUnlock()

	if !exists {
		return Aggregate{}, errors.NewError(errors.ErrCodeNotFound,
			fmt.Sprintf("aggregate not found: %s", identity))
	}

	inst.mutex.Lock()
	defer inst.mutex.Unlock()

	return Aggregate{Identity: identity, State: inst.state, Version: inst.version}, nil
}

// Apply 在按标识互斥的前提下应用 reducer，返回新版本号
//
// 执行流程：
//  1. 查找聚合实例，不存在返回 NotFound
//  2. 获取实例锁（同一标识串行，不同标识并行）
//  3. 以当前快照调用 reducer
//  4. reducer 成功则安装新状态并将版本加一
//
// reducer 失败时状态与版本均不变，错误原样向上传播。
func (s *Store) Apply(ctx context.Context, identity string, reducer Reducer) (uint64, error) {
	if reducer == nil {
		return 0, errors.NewError(errors.ErrCodeInvalidInput, "reducer cannot be nil")
	}

	s.mutex.RLock()
	inst, exists := s.instances[identity]
	s.mutex.RUnlock()

	if !exists {
		return 0, errors.NewError(errors.ErrCodeNotFound,
			fmt.Sprintf("aggregate not found: %s", identity))
	}

	inst.mutex.Lock()
	defer inst.mutex.Unlock()

	snapshot := Aggregate{Identity: identity, State: inst.state, Version: inst.version}
	newState, err := reducer(snapshot)
	if err != nil {
		return 0, err
	}

	inst.state = newState
	inst.version++

	s.logger.Debug(ctx, "聚合状态已更新",
		logging.String("identity", identity),
		logging.Uint64("version", inst.version),
	)

	return inst.version, nil
}

// Len 当前注册的聚合数量
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.instances)
}

// Identities 返回已注册的聚合标识（排序后，便于测试与巡检）
func (s *Store) Identities() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := make([]string, 0, len(s.instances))
	for id := range s.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
