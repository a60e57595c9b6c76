package ipc

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Factory creates the namespace of a build on the coordinator side and opens
// it again, by id, on the worker side.
type Factory interface {
	Create(id string) (Namespace, error)
	Open(id string) (Namespace, error)
	Remove(id string) error
}

// NewNamespaceID returns a fresh application-instance id
func NewNamespaceID() string {
	return uuid.NewString()
}

// MemoryFactory hands out MemoryNamespaces; Open returns the instance created
// under the same id so in-process workers share it with the coordinator.
type MemoryFactory struct {
	mu         sync.Mutex
	namespaces map[string]*MemoryNamespace
}

// NewMemoryFactory creates an empty MemoryFactory
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{namespaces: make(map[string]*MemoryNamespace)}
}

func (f *MemoryFactory) Create(id string) (Namespace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ns := NewMemoryNamespace(id)
	f.namespaces[id] = ns
	return ns, nil
}

func (f *MemoryFactory) Open(id string) (Namespace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ns, ok := f.namespaces[id]
	if !ok {
		return nil, fmt.Errorf("namespace %s not found", id)
	}
	return ns, nil
}

func (f *MemoryFactory) Remove(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.namespaces, id)
	return nil
}

// SQLiteFactory keeps namespaces as database files under Dir
type SQLiteFactory struct {
	Dir string
}

func (f SQLiteFactory) Create(id string) (Namespace, error) {
	ns, err := CreateSQLiteNamespace(f.Dir, id)
	if err != nil {
		return nil, err
	}
	return ns, nil
}

func (f SQLiteFactory) Open(id string) (Namespace, error) {
	ns, err := OpenSQLiteNamespace(f.Dir, id)
	if err != nil {
		return nil, err
	}
	return ns, nil
}

func (f SQLiteFactory) Remove(id string) error {
	return removeDatabaseFiles(namespacePath(f.Dir, id))
}
