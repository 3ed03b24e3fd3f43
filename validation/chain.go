// Package validation 提供按优先级排序的命令验证链
package validation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chris576/Gluon/command"
	"github.com/chris576/Gluon/errors"
	"github.com/chris576/Gluon/logging"
)

// Predicate 命令验证谓词
//
// 契约：谓词必须是确定性的、无副作用的纯函数。
// 引擎不强制这一点，但违反契约会表现为不稳定的验证结果。
type Predicate func(cmd *command.Command) error

// Rule 一条验证规则
type Rule struct {
	Name     string
	Priority int
	Check    Predicate

	// seq 注册顺序，用于同优先级的稳定排序
	seq int
}

// Chain 验证链
//
// 每个命令类型维护一条有序规则链：优先级小的先执行，
// 同优先级按注册顺序执行。链在第一个失败处短路，
// 规则之间除顺序外不能观察彼此的结果。
type Chain struct {
	rules map[string][]Rule
	next  int
	mutex sync.RWMutex

	logger logging.Logger
}

// NewChain 创建验证链
func NewChain(logger logging.Logger) *Chain {
	if logger == nil {
		logger = logging.ComponentLogger("validation.chain")
	}
	return &Chain{
		rules:  make(map[string][]Rule),
		logger: logger,
	}
}

// AddRule 为命令类型追加一条验证规则
func (c *Chain) AddRule(commandType, name string, priority int, predicate Predicate) error {
	if commandType == "" {
		return errors.NewError(errors.ErrCodeInvalidInput, "command type cannot be empty")
	}
	if name == "" {
		return errors.NewError(errors.ErrCodeInvalidInput, "validation rule requires a name")
	}
	if predicate == nil {
		return errors.NewError(errors.ErrCodeInvalidInput,
			fmt.Sprintf("predicate cannot be nil for rule %s", name))
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	rules := append(c.rules[commandType], Rule{
		Name:     name,
		Priority: priority,
		Check:    predicate,
		seq:      c.next,
	})
	c.next++

	// 注册即排序，RunAll 只读
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].seq < rules[j].seq
	})
	c.rules[commandType] = rules
	return nil
}

// RunAll 按序执行命令类型的全部规则，第一个失败即返回
//
// 失败结果归因到具体规则：错误详情携带规则名与优先级。
// 没有注册规则的命令类型直接通过。
func (c *Chain) RunAll(ctx context.Context, cmd *command.Command) error {
	if cmd == nil {
		return errors.NewError(errors.ErrCodeInvalidInput, "command cannot be nil")
	}

	c.mutex.RLock()
	rules := c.rules[cmd.Type]
	c.mutex.RUnlock()

	for _, rule := range rules {
		if err := rule.Check(cmd); err != nil {
			c.logger.Debug(ctx, "验证规则失败",
				logging.String("command_type", cmd.Type),
				logging.String("rule", rule.Name),
				logging.Int("priority", rule.Priority),
				logging.Error(err),
			)
			return errors.WrapError(err, errors.ErrCodeValidationFailed,
				fmt.Sprintf("validation rule %s rejected command %s", rule.Name, cmd.Type)).
				WithDetails(map[string]any{
					"rule":     rule.Name,
					"priority": rule.Priority,
				})
		}
	}
	return nil
}

// RuleCount 命令类型已注册的规则数量
func (c *Chain) RuleCount(commandType string) int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.rules[commandType])
}
