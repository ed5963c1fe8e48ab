package service

import (
	"log"
	"sync"
)

// Handle 一次已提交任务的句柄，Done 在任务函数返回后关闭
type Handle struct {
	done chan struct{}
}

func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait 阻塞直到任务结束（主要用于测试）
func (h *Handle) Wait() {
	<-h.done
}

// Runner 进程内的有界后台任务池。
// 固定数量的 worker 协程消费无界 FIFO 队列：超过并发上限的提交只排队，
// 不阻塞调用方也不拒绝。按 key（项目 id）登记句柄供后续查询，
// 同 key 重复提交时句柄表后写覆盖（两次任务都会执行，仅查询表去重）。
// Runner 不捕获任务内部的 panic/错误，任务函数自己负责把失败落库。
type Runner struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	handles map[string]*Handle
}

func NewRunner(workers int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	r := &Runner{
		handles: make(map[string]*Handle),
	}
	r.cond = sync.NewCond(&r.mu)
	for i := 0; i < workers; i++ {
		go r.worker()
	}
	log.Printf("[Runner] started with concurrency %d", workers)
	return r
}

func (r *Runner) worker() {
	for {
		r.mu.Lock()
		for len(r.queue) == 0 {
			r.cond.Wait()
		}
		fn := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		fn()
	}
}

// Submit 提交后台任务并返回句柄
func (r *Runner) Submit(key string, fn func()) *Handle {
	h := &Handle{done: make(chan struct{})}

	r.mu.Lock()
	r.handles[key] = h
	r.queue = append(r.queue, func() {
		defer close(h.done)
		fn()
	})
	r.mu.Unlock()
	r.cond.Signal()
	return h
}

// Get 按 key 查询最近一次提交的任务句柄，不存在返回 nil
func (r *Runner) Get(key string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[key]
}
