package store

import (
	"context"
	"sync"

	"github.com/trustrail/trustrail/pkg/command"
	"github.com/trustrail/trustrail/pkg/protocol"
)

// MemoryStore is the in-process reference backend: a map of latest
// accepted versions plus one advisory mutex per reference id.
type MemoryStore struct {
	mu       sync.Mutex
	commands map[string]command.Command
	locks    map[string]*sync.Mutex
	onAccept OnAccept
}

// NewMemoryStore builds an empty store. onAccept may be nil.
func NewMemoryStore(onAccept OnAccept) *MemoryStore {
	return &MemoryStore{
		commands: make(map[string]command.Command),
		locks:    make(map[string]*sync.Mutex),
		onAccept: onAccept,
	}
}

// lock returns the advisory mutex for a reference id, creating it on
// first use. The store mutex only guards the two maps, never a Save.
func (s *MemoryStore) lock(refID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[refID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[refID] = l
	}
	return l
}

func (s *MemoryStore) Save(_ context.Context, cmd command.Command) error {
	refID := cmd.ReferenceID()
	l := s.lock(refID)
	if !l.TryLock() {
		return protocol.NewCommandError(protocol.ErrorCodeConflict, refID,
			"command is locked by a concurrent update")
	}
	defer l.Unlock()

	s.mu.Lock()
	prior, hasPrior := s.commands[refID]
	s.mu.Unlock()

	if hasPrior {
		same, err := command.Equal(cmd, prior)
		if err != nil {
			return err
		}
		if same {
			return nil
		}
	}

	if err := cmd.Validate(prior); err != nil {
		return err
	}

	s.mu.Lock()
	s.commands[refID] = cmd
	s.mu.Unlock()

	if s.onAccept != nil {
		s.onAccept(cmd)
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, referenceID string) (command.Command, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd, ok := s.commands[referenceID]
	return cmd, ok, nil
}
