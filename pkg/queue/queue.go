// Package queue provides the FIFO queue of deferred negotiation tasks.
//
// Tasks are tagged descriptors rather than closures: a fixed-size switch
// in the drain loop dispatches them, which keeps the queue serializable
// and every task kind guaranteed to have a handler.
package queue

import "sync"

// Kind tags what the drain loop must do with a task.
type Kind string

const (
	// KindSendRequest transmits the stored command to the counterpart.
	KindSendRequest Kind = "send_request"
	// KindRunFollowUp runs the resolved business action for the stored command.
	KindRunFollowUp Kind = "run_follow_up"
)

// Task is one deferred operation, closing over exactly one conversation.
type Task struct {
	Kind        Kind
	ReferenceID string
}

// Queue is a FIFO of tasks. Enqueue is safe to call concurrently from
// the inbound-request path and from the drain loop itself.
type Queue struct {
	mu    sync.Mutex
	tasks []Task
}

func New() *Queue {
	return &Queue{}
}

// Enqueue appends a task.
func (q *Queue) Enqueue(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
}

// Pop removes and returns the oldest task. ok is false when the queue
// is empty.
func (q *Queue) Pop() (t Task, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return Task{}, false
	}
	t = q.tasks[0]
	q.tasks = q.tasks[1:]
	return t, true
}

// Len reports the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
