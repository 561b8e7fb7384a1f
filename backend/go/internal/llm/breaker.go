package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Memora/backend/go/internal/models"

	"github.com/sony/gobreaker"
)

// BreakerSettings 控制 Guarded 的超时与熔断行为。
type BreakerSettings struct {
	Name             string
	Timeout          time.Duration // 单次请求 (或整条流) 的超时时间，0 表示不限制
	FailureThreshold uint32        // 连续失败多少次后打开熔断器
	HalfOpenRequests uint32        // 半开状态允许通过的请求数
	OpenTimeout      time.Duration // 打开状态持续时间
}

// Guarded 为任意 LLM 客户端增加请求超时与熔断保护。
// 流式调用使用两阶段熔断器：流正常结束计为成功，出现 Err 计为失败。
type Guarded struct {
	next    LLM
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
	stream  *gobreaker.TwoStepCircuitBreaker
}

// NewGuarded 创建一个带熔断保护的 LLM 客户端。
func NewGuarded(next LLM, s BreakerSettings) *Guarded {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	settings := func(suffix string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        s.Name + suffix,
			MaxRequests: s.HalfOpenRequests,
			Timeout:     s.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= s.FailureThreshold
			},
		}
	}
	return &Guarded{
		next:    next,
		timeout: s.Timeout,
		cb:      gobreaker.NewCircuitBreaker(settings("-generate")),
		stream:  gobreaker.NewTwoStepCircuitBreaker(settings("-stream")),
	}
}

func (g *Guarded) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

// GenerateContent 在熔断器保护下调用下游客户端。
func (g *Guarded) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	out, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.GenerateContent(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("llm request rejected or failed: %w", err)
	}
	return out.(*models.GenerateContentResponse), nil
}

// GenerateContentStream 在两阶段熔断器保护下转发下游的流。
func (g *Guarded) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	done, err := g.stream.Allow()
	if err != nil {
		return nil, fmt.Errorf("llm stream rejected: %w", err)
	}

	parent := ctx
	ctx, cancel := g.withTimeout(parent)
	upstream, err := g.next.GenerateContentStream(ctx, req)
	if err != nil {
		cancel()
		done(false)
		return nil, err
	}

	out := make(chan *models.GenerateContentResponse)
	go func() {
		defer close(out)
		defer cancel()
		ok := true
		for resp := range upstream {
			if resp.Err != nil {
				ok = false
			}
			if !send(ctx, out, resp) {
				// 调用方放弃了流，继续排空上游以便其退出。
				for range upstream {
				}
				break
			}
		}
		if ok && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			ok = false
			send(parent, out, &models.GenerateContentResponse{Err: fmt.Errorf("llm stream timed out: %w", ctx.Err())})
		}
		done(ok)
	}()
	return out, nil
}
