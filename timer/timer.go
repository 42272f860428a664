// timer/timer.go
package timer

import (
	"container/heap"
	"strings"
	"sync"
	"time"
)

// TimerTask 一个待执行的定时回调, 同一 Key 同时最多只有一个
type TimerTask struct {
	Id       int64
	Key      string
	Execute  time.Time
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

func (q *TimerQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*TimerTask)
	task.index = n
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// TimerManager runs one-shot callbacks by key. Scheduling a key replaces any pending
// task for it; a cancelled task never runs. Callbacks run on their own goroutine.
type TimerManager struct {
	queue  TimerQueue
	keys   map[string]*TimerTask
	mutex  sync.Mutex
	nextId int64
	now    func() time.Time

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewTimerManager() *TimerManager {
	manager := &TimerManager{
		queue:  make(TimerQueue, 0),
		keys:   make(map[string]*TimerTask),
		nextId: 1,
		now:    time.Now,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	heap.Init(&manager.queue)
	go manager.process()
	return manager
}

// Schedule arms key to run callback after delay and returns the task id.
func (m *TimerManager) Schedule(key string, delay time.Duration, callback func()) int64 {
	m.mutex.Lock()
	m.removeKey(key)
	task := &TimerTask{
		Id:       m.nextId,
		Key:      key,
		Execute:  m.now().Add(delay),
		Callback: callback,
	}
	m.nextId++
	heap.Push(&m.queue, task)
	m.keys[key] = task
	m.mutex.Unlock()

	m.notify()
	return task.Id
}

// Cancel drops the pending task for key. It reports whether one was pending.
func (m *TimerManager) Cancel(key string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.removeKey(key)
}

// CancelPrefix drops every pending task whose key starts with prefix.
func (m *TimerManager) CancelPrefix(prefix string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	n := 0
	for key := range m.keys {
		if strings.HasPrefix(key, prefix) && m.removeKey(key) {
			n++
		}
	}
	return n
}

func (m *TimerManager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}

// Stop cancels everything and ends the scheduling goroutine.
func (m *TimerManager) Stop() {
	m.stopOnce.Do(func() {
		m.mutex.Lock()
		m.queue = m.queue[:0]
		m.keys = make(map[string]*TimerTask)
		m.mutex.Unlock()
		close(m.done)
	})
}

func (m *TimerManager) removeKey(key string) bool {
	task, ok := m.keys[key]
	if !ok {
		return false
	}
	delete(m.keys, key)
	if task.index >= 0 {
		heap.Remove(&m.queue, task.index)
	}
	return true
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
		m.mutex.Lock()
		now := m.now()
		var due []*TimerTask
		for m.queue.Len() > 0 {
			task := m.queue[0]
			if task.Execute.After(now) {
				break
			}
			heap.Pop(&m.queue)
			delete(m.keys, task.Key)
			due = append(due, task)
		}
		wait := time.Hour
		if m.queue.Len() > 0 {
			wait = m.queue[0].Execute.Sub(now)
		}
		m.mutex.Unlock()

		for _, task := range due {
			go task.Callback()
		}

		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		t.Reset(wait)

		select {
		case <-t.C:
		case <-m.wake:
		case <-m.done:
			return
		}
	}
}
