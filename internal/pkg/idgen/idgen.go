package idgen

import (
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/errs"
	"github.com/sony/sonyflake"
)

// Generator 通知ID生成器，基于雪花算法
type Generator struct {
	sf *sonyflake.Sonyflake
}

// NewGenerator 创建ID生成器
func NewGenerator() *Generator {
	return &Generator{
		sf: sonyflake.NewSonyflake(sonyflake.Settings{
			StartTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}),
	}
}

// NewGeneratorWithMachineID 固定机器ID。没有内网IP的环境（比如测试容器）
// 无法自动推导机器ID，用这个构造
func NewGeneratorWithMachineID(machineID uint16) *Generator {
	return &Generator{
		sf: sonyflake.NewSonyflake(sonyflake.Settings{
			StartTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			MachineID: func() (uint16, error) {
				return machineID, nil
			},
		}),
	}
}

// NextID 生成下一个ID
func (g *Generator) NextID() (uint64, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errs.ErrNotificationIDGenerateFailed, err)
	}
	return id, nil
}
