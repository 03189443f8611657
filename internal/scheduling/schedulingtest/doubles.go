package schedulingtest

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

// LocalLocker serializes callers per key inside one process. Waiting callers
// give up with ErrLockNotAcquired when their context ends.
type LocalLocker struct {
	mu   sync.Mutex
	keys map[string]chan struct{}
}

var _ redisclient.Locker = (*LocalLocker)(nil)

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{keys: make(map[string]chan struct{})}
}

func (l *LocalLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	sem := l.sem(key)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return redisclient.ErrLockNotAcquired
	}
	defer func() { <-sem }()

	return fn(ctx)
}

func (l *LocalLocker) sem(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.keys[key]
	if !ok {
		sem = make(chan struct{}, 1)
		l.keys[key] = sem
	}
	return sem
}

// Sent is one delivered notification.
type Sent struct {
	UserID  uuid.UUID
	Kind    scheduling.NotificationKind
	Message string
}

var ErrNotifierDown = errors.New("notifier unavailable")

// RecordingNotifier keeps every notification it is asked to send. When Fail
// is set it records nothing and returns ErrNotifierDown.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Sent
	Fail bool
}

var _ scheduling.Notifier = (*RecordingNotifier)(nil)

func (n *RecordingNotifier) Notify(_ context.Context, userID uuid.UUID, kind scheduling.NotificationKind, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.Fail {
		return ErrNotifierDown
	}
	n.sent = append(n.sent, Sent{UserID: userID, Kind: kind, Message: message})
	return nil
}

func (n *RecordingNotifier) Sent() []Sent {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Sent, len(n.sent))
	copy(out, n.sent)
	return out
}

// For returns the notifications addressed to userID.
func (n *RecordingNotifier) For(userID uuid.UUID) []Sent {
	out := make([]Sent, 0)
	for _, s := range n.Sent() {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}
