// Package ae is a small event loop. Everything submitted to it, time events
// and posted jobs, runs on the goroutine calling Main or ProcessEvents, so
// the state they touch needs no locking.
package ae

import (
	"errors"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pengdafu/redis-dict/util"
)

const (
	PostedEvents = 1 << iota
	TimeEvents
	DontWait
	CallBeforeSleep
	AllEvents = PostedEvents | TimeEvents
)

// NoMore returned by a TimeProc deletes the time event.
const NoMore = -1

const deletedEventID = -1

var ErrNoSuchEvent = errors.New("ae: no such time event")

type BeforeSleepProc func(eventLoop *EventLoop)

// TimeProc returns the number of milliseconds before it should run again,
// or NoMore.
type TimeProc func(eventLoop *EventLoop, id int64, clientData interface{}) int
type EventFinalizerProc func(eventLoop *EventLoop, clientData interface{})

type EventLoop struct {
	timeEventNextId int64
	timeEventHead   *timeEvent
	beforeSleep     BeforeSleepProc

	mu     sync.Mutex
	posted []func()
	wakeup chan struct{}
	stop   atomic.Bool
}

type timeEvent struct {
	id            int64
	when          int64 // monotonic us
	timeProc      TimeProc
	finalizerProc EventFinalizerProc
	clientData    interface{}
	prev          *timeEvent
	next          *timeEvent
	refCount      int // 在递归时间事件被调用时，refCount为了防止时间器事件被释放
}

func CreateEventLoop() *EventLoop {
	return &EventLoop{
		wakeup: make(chan struct{}, 1),
	}
}

func (el *EventLoop) notify() {
	select {
	case el.wakeup <- struct{}{}:
	default:
	}
}

// CreateTimeEvent schedules proc to run in milliseconds ms and returns the
// id of the event.
func (el *EventLoop) CreateTimeEvent(milliseconds int64, proc TimeProc, clientData interface{}, finalizerProc EventFinalizerProc) int64 {
	id := el.timeEventNextId
	el.timeEventNextId++

	te := &timeEvent{
		id:            id,
		when:          util.GetMonotonicUs() + milliseconds*1000,
		timeProc:      proc,
		finalizerProc: finalizerProc,
		clientData:    clientData,
		next:          el.timeEventHead,
	}
	if te.next != nil {
		te.next.prev = te
	}
	el.timeEventHead = te
	return id
}

// DeleteTimeEvent marks the event as deleted, it is unlinked on the next
// processing of the time events.
func (el *EventLoop) DeleteTimeEvent(id int64) error {
	for te := el.timeEventHead; te != nil; te = te.next {
		if te.id == id {
			te.id = deletedEventID
			return nil
		}
	}
	return ErrNoSuchEvent
}

// Post queues fn to run on the loop goroutine. It is safe to call from any
// goroutine.
func (el *EventLoop) Post(fn func()) {
	el.mu.Lock()
	el.posted = append(el.posted, fn)
	el.mu.Unlock()
	el.notify()
}

func (el *EventLoop) SetBeforeSleepProc(beforeSleep BeforeSleepProc) {
	el.beforeSleep = beforeSleep
}

// Stop makes Main return after the current iteration. It is safe to call
// from any goroutine.
func (el *EventLoop) Stop() {
	el.stop.Store(true)
	el.notify()
}

func (el *EventLoop) Main() {
	defer func() {
		if err := recover(); err != nil {
			slog.Error("event loop panic", "err", err, "stack", string(debug.Stack()))
			os.Exit(1)
		}
	}()
	for !el.stop.Load() {
		el.ProcessEvents(AllEvents | CallBeforeSleep)
	}
}

// ProcessEvents waits until a posted job or a time event is ready (unless
// DontWait is set), then runs them. It returns the number of events
// processed.
func (el *EventLoop) ProcessEvents(flags int) (processed int) {
	// 没有时间事件和投递的任务，什么也不处理
	if flags&(TimeEvents|PostedEvents) == 0 {
		return
	}

	if el.beforeSleep != nil && flags&CallBeforeSleep != 0 {
		el.beforeSleep(el)
	}

	if flags&DontWait == 0 {
		el.wait(flags)
	}

	if flags&PostedEvents != 0 {
		processed += el.processPosted()
	}
	if flags&TimeEvents != 0 {
		processed += el.processTimeEvents()
	}
	return processed
}

func (el *EventLoop) wait(flags int) {
	el.mu.Lock()
	pending := len(el.posted) > 0
	el.mu.Unlock()
	if pending && flags&PostedEvents != 0 {
		return
	}

	msUntilTimer := int64(-1)
	if flags&TimeEvents != 0 {
		msUntilTimer = el.msUntilEarliestTimer()
	}
	if msUntilTimer == 0 {
		return
	}
	if msUntilTimer < 0 {
		// 没有定时器，一直等到有新任务或者 Stop
		<-el.wakeup
		return
	}
	timer := time.NewTimer(time.Duration(msUntilTimer) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-el.wakeup:
	case <-timer.C:
	}
}

func (el *EventLoop) processPosted() int {
	el.mu.Lock()
	jobs := el.posted
	el.posted = nil
	el.mu.Unlock()

	for _, fn := range jobs {
		fn()
	}
	return len(jobs)
}

func (el *EventLoop) processTimeEvents() int {
	processed := 0
	te := el.timeEventHead
	maxId := el.timeEventNextId - 1
	now := util.GetMonotonicUs()
	for te != nil {
		// 删除被标记删除的事件
		if te.id == deletedEventID {
			next := te.next
			// 还在被调用中，不能释放
			if te.refCount > 0 {
				te = next
				continue
			}
			if te.prev != nil {
				te.prev.next = te.next
			} else {
				el.timeEventHead = te.next
			}
			if te.next != nil {
				te.next.prev = te.prev
			}
			if te.finalizerProc != nil {
				te.finalizerProc(el, te.clientData)
				now = util.GetMonotonicUs()
			}
			te = next
			continue
		}

		// 本次循环中新创建的事件留到下一次
		if te.id > maxId {
			te = te.next
			continue
		}

		if te.when <= now {
			id := te.id
			te.refCount++
			retval := te.timeProc(el, id, te.clientData)
			te.refCount--
			processed++
			now = util.GetMonotonicUs()
			if retval != NoMore {
				te.when = now + int64(retval)*1000
			} else {
				te.id = deletedEventID
			}
		}
		te = te.next
	}
	return processed
}

// msUntilEarliestTimer 返回距离第一个定时器被触发的时间还剩多少ms
// 如果没有定时器，返回-1
// 注意，time event 没有排序，获取的时间复杂度为O(N)
func (el *EventLoop) msUntilEarliestTimer() int64 {
	var earliest *timeEvent
	for te := el.timeEventHead; te != nil; te = te.next {
		if te.id == deletedEventID {
			continue
		}
		if earliest == nil || te.when < earliest.when {
			earliest = te
		}
	}
	if earliest == nil {
		if el.timeEventHead != nil {
			// 只剩待删除的事件，马上处理
			return 0
		}
		return -1
	}
	now := util.GetMonotonicUs()
	if now >= earliest.when {
		return 0
	}
	return (earliest.when - now + 999) / 1000
}
