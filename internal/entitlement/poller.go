package entitlement

import (
	"context"
	"sync"
	"time"
)

// FetchFunc возвращает актуальное решение о доступе.
type FetchFunc func(ctx context.Context) (Decision, error)

// Poller периодически перевычисляет решение о доступе до явной остановки.
type Poller struct {
	interval time.Duration
	fetch    FetchFunc
	notify   func(Decision, error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller создаёт Poller. notify вызывается после каждого опроса из одной горутины.
func NewPoller(interval time.Duration, fetch FetchFunc, notify func(Decision, error)) *Poller {
	return &Poller{
		interval: interval,
		fetch:    fetch,
		notify:   notify,
	}
}

// Start выполняет первый опрос сразу и затем раз в interval.
// Повторный вызов без Stop ничего не делает.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(ctx, p.done)
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	decision, err := p.fetch(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		// Ошибка проверки всегда трактуется как отказ в доступе
		decision = Decision{AccessBlocked: true, IsExpired: true}
	}
	p.notify(decision, err)
}

// Stop останавливает опрос и дожидается завершения горутины.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
