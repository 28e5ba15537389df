package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/sasha-s/go-deadlock"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/gameconfig"
	"github.com/rhofour/InfiniTDBackend-sub000/pkg/logger"
)

var ErrPoolClosed = errors.New("battle computer pool is closed")

// Job - запрос на расчет. Seed == nil означает сид из входных данных.
type Job struct {
	Battleground domain.Battleground
	Wave         domain.Wave
	Seed         *int64
}

// Future - результат расчета, который появится позже.
type Future struct {
	done chan struct{}
	res  *CalcResults
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(res *CalcResults, err error) {
	f.res, f.err = res, err
	close(f.done)
}

// Done закрывается, когда результат готов.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait ждет результат или отмену ctx.
func (f *Future) Wait(ctx context.Context) (*CalcResults, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type poolTask struct {
	ctx    context.Context
	job    Job
	future *Future
}

// Pool считает битвы на фиксированном наборе воркеров.
// Каждый воркер держит свой Computer с заранее загруженными правилами.
type Pool struct {
	mu     deadlock.RWMutex
	closed bool
	jobs   chan poolTask
	wg     sync.WaitGroup
}

func NewPool(rules *gameconfig.Rules, cfg Config, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{jobs: make(chan poolTask, workers*4)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i, NewComputer(rules, cfg))
	}
	logger.WithComponent("pool").WithField("workers", workers).Info("Battle computer pool started")
	return p
}

func (p *Pool) worker(n int, comp *Computer) {
	defer p.wg.Done()
	log := logger.WithComponent("pool").WithField("worker", n)

	for task := range p.jobs {
		// Отмененные задачи не считаем.
		if err := task.ctx.Err(); err != nil {
			task.future.resolve(nil, err)
			continue
		}

		var (
			res *CalcResults
			err error
		)
		if task.job.Seed != nil {
			res, err = comp.ComputeWithSeed(task.job.Battleground, task.job.Wave, *task.job.Seed)
		} else {
			res, err = comp.Compute(task.job.Battleground, task.job.Wave)
		}
		if err != nil && !IsInputError(err) {
			log.WithError(err).Warn("Job failed")
		}
		task.future.resolve(res, err)
	}
}

// Submit ставит задачу в очередь. Блокируется, если очередь заполнена.
func (p *Pool) Submit(ctx context.Context, job Job) (*Future, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	f := newFuture()
	select {
	case p.jobs <- poolTask{ctx: ctx, job: job, future: f}:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Compute - Submit + Wait.
func (p *Pool) Compute(ctx context.Context, bg domain.Battleground, wave domain.Wave) (*CalcResults, error) {
	f, err := p.Submit(ctx, Job{Battleground: bg, Wave: wave})
	if err != nil {
		return nil, err
	}
	return f.Wait(ctx)
}

// Close дожидается обработки уже принятых задач и останавливает воркеров.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	logger.WithComponent("pool").Info("Battle computer pool stopped")
}
