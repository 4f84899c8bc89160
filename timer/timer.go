// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// TimerTask is one scheduled callback. Interval > 0 makes it repeat until removed.
type TimerTask struct {
	Id       int64
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x any) {
	task := x.(*TimerTask)
	task.index = len(*q)
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() any {
	old := *q
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*q = old[:n-1]
	return task
}

// TimerManager runs every room's countdowns and grace periods from one goroutine.
// Callbacks are started on their own goroutine and must not assume they still matter:
// a task removed while its callback is already in flight cannot be recalled.
type TimerManager struct {
	queue  TimerQueue
	tasks  map[int64]*TimerTask
	mutex  sync.Mutex
	nextId int64
	wake   chan struct{}
	stop   chan struct{}
	once   sync.Once
}

func NewTimerManager() *TimerManager {
	manager := &TimerManager{
		queue:  make(TimerQueue, 0),
		tasks:  make(map[int64]*TimerTask),
		nextId: 1,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	heap.Init(&manager.queue)
	go manager.process()
	return manager
}

// AddTimer schedules callback after delay, then every interval if interval > 0.
// The returned id is never 0.
func (m *TimerManager) AddTimer(delay time.Duration, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	task := &TimerTask{
		Id:       m.nextId,
		Execute:  time.Now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextId++
	heap.Push(&m.queue, task)
	m.tasks[task.Id] = task
	m.mutex.Unlock()

	m.notify()
	return task.Id
}

// RemoveTimer cancels a task. It reports false if the id is unknown or a one-shot
// task already fired.
func (m *TimerManager) RemoveTimer(timerId int64) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task, ok := m.tasks[timerId]
	if !ok {
		return false
	}
	delete(m.tasks, timerId)
	if task.index >= 0 {
		heap.Remove(&m.queue, task.index)
	}
	return true
}

// Len is the number of pending tasks.
func (m *TimerManager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.tasks)
}

// Stop halts the scheduler; pending tasks never fire.
func (m *TimerManager) Stop() {
	m.once.Do(func() { close(m.stop) })
}

func (m *TimerManager) notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *TimerManager) process() {
	t := time.NewTimer(time.Hour)
	defer t.Stop()

	for {
		wait := m.fireDue(time.Now())
		t.Reset(wait)

		select {
		case <-t.C:
		case <-m.wake:
		case <-m.stop:
			return
		}
	}
}

// fireDue starts every due callback and returns how long to sleep until the next one.
func (m *TimerManager) fireDue(now time.Time) time.Duration {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for m.queue.Len() > 0 {
		task := m.queue[0]
		if task.Execute.After(now) {
			return task.Execute.Sub(now)
		}

		heap.Pop(&m.queue)
		go task.Callback()

		if task.Interval > 0 {
			// Drift-free: the next deadline follows the previous one, not now.
			task.Execute = task.Execute.Add(task.Interval)
			if task.Execute.Before(now) {
				task.Execute = now.Add(task.Interval)
			}
			heap.Push(&m.queue, task)
		} else {
			delete(m.tasks, task.Id)
		}
	}
	return time.Hour
}
