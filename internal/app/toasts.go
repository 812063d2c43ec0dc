package app

import "sync"

// ToastLevel is the severity of a toast.
type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
	ToastInfo    ToastLevel = "info"
)

// Toast is a transient user-facing message.
type Toast struct {
	Level   ToastLevel `json:"level"`
	Message string     `json:"message"`
}

const maxQueuedToasts = 50

// Toasts is a per-workspace queue drained into HTTP responses and websocket frames.
type Toasts struct {
	mu     sync.Mutex
	items  []Toast
	notify func()
}

func (t *Toasts) Success(msg string) { t.push(Toast{Level: ToastSuccess, Message: msg}) }
func (t *Toasts) Error(msg string) { t.push(Toast{Level: ToastError, Message: msg}) }
func (t *Toasts) Info(msg string) { t.push(Toast{Level: ToastInfo, Message: msg}) }

func (t *Toasts) push(toast Toast) {
	t.mu.Lock()
	t.items = append(t.items, toast)
	if len(t.items) > maxQueuedToasts {
		t.items = t.items[len(t.items)-maxQueuedToasts:]
	}
	notify := t.notify
	t.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// OnPush registers a callback run after each push, outside the lock.
func (t *Toasts) OnPush(fn func()) {
	t.mu.Lock()
	t.notify = fn
	t.mu.Unlock()
}

// Drain returns and clears the queued toasts. The result is never nil.
func (t *Toasts) Drain() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.items
	t.items = nil
	if out == nil {
		out = []Toast{}
	}
	return out
}
