// Package workflow submits reconfiguration jobs to the external workflow
// runtime, coalescing repeated triggers into one job per name per window.
package workflow

import (
	"sync"
	"time"

	"github.com/SpaghettiHub/maas-sub001/internal/logs"

	"github.com/google/uuid"
)

// Client — внешний раннер воркфлоу. Ядро только отправляет задания.
type Client interface {
	Submit(jobName string, param any) error
}

// ClientFunc adapts a plain function to Client.
type ClientFunc func(jobName string, param any) error

func (f ClientFunc) Submit(jobName string, param any) error { return f(jobName, param) }

// MergeFunc combines the pending parameter with a newly registered one.
// Должна быть ассоциативной: порядок слияния в окне не определён.
type MergeFunc func(old, new any) any

type pendingJob struct {
	id    string
	param any
	timer *time.Timer
	done  chan struct{}
	err   error
}

// Coalescer guarantees at most one pending job per job name per batching
// window. Глобальная таблица pending-заданий живёт столько же, сколько
// сервис, и закрыта одним мьютексом — стор тут ни при чём.
type Coalescer struct {
	mu      sync.Mutex
	pending map[string]*pendingJob
	client  Client
	window  time.Duration
}

func NewCoalescer(client Client, window time.Duration) *Coalescer {
	return &Coalescer{
		pending: make(map[string]*pendingJob),
		client:  client,
		window:  window,
	}
}

// RegisterOrUpdate registers a job or merges param into the already
// pending one. wait=false возвращается сразу (fire-and-forget); wait=true
// блокируется до подтверждения отправки и возвращает её ошибку.
func (c *Coalescer) RegisterOrUpdate(jobName string, param any, merge MergeFunc, wait bool) error {
	c.mu.Lock()
	job, ok := c.pending[jobName]
	if ok {
		if merge != nil {
			job.param = merge(job.param, param)
		} else {
			job.param = param
		}
	} else {
		job = &pendingJob{
			id:    uuid.NewString(),
			param: param,
			done:  make(chan struct{}),
		}
		c.pending[jobName] = job
		job.timer = time.AfterFunc(c.window, func() { c.fire(jobName) })
	}
	c.mu.Unlock()

	if !wait {
		return nil
	}
	<-job.done
	return job.err
}

// fire снимает задание из таблицы и отдаёт раннеру. Ошибка отправки
// логируется и не откатывает уже закоммиченную мутацию: downstream
// переотправит сам.
func (c *Coalescer) fire(jobName string) {
	c.mu.Lock()
	job, ok := c.pending[jobName]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, jobName)
	c.mu.Unlock()

	job.err = c.client.Submit(jobName, job.param)
	if job.err != nil {
		logs.Logger.WithField("job", jobName).WithField("id", job.id).
			Warnf("workflow submit failed: %v", job.err)
	}
	close(job.done)
}

// Drain fires every pending job immediately. Для тестов и shutdown.
func (c *Coalescer) Drain() {
	c.mu.Lock()
	names := make([]string, 0, len(c.pending))
	for name, job := range c.pending {
		job.timer.Stop()
		names = append(names, name)
	}
	c.mu.Unlock()
	for _, name := range names {
		c.fire(name)
	}
}

// Reset drops pending jobs without submitting them.
func (c *Coalescer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, job := range c.pending {
		job.timer.Stop()
		close(job.done)
		delete(c.pending, name)
	}
}

// PendingCount — сколько заданий ждёт окна.
func (c *Coalescer) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
