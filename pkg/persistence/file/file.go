// Package file provides file-based persistence for workflows, credentials, tags and ownership.
package file

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/dukex/flowport/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	repositories

	root string
	disk *disk
	txMu sync.Mutex
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	store := &disk{root: cleanRoot}

	return &Persistence{
		repositories: repositories{docs: store},
		root:         cleanRoot,
		disk:         store,
	}
}

// Transact stages every write made through repos and flushes them on success.
// Transactions are serialized within the process.
func (fp *Persistence) Transact(ctx context.Context, fn persistence.TxFunc) error {
	fp.txMu.Lock()
	defer fp.txMu.Unlock()

	tx := newStaged(fp.disk)

	err := fn(ctx, &repositories{docs: tx})
	if err != nil {
		tx.rollback()

		return err
	}

	err = tx.commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks that the root directory exists and is writable.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	err := os.MkdirAll(fp.root, 0750)
	if err != nil {
		return fmt.Errorf("file store root is not usable: %w", err)
	}

	info, err := os.Stat(fp.root)
	if err != nil {
		return fmt.Errorf("file store root is not usable: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("file store root %s is not a directory", fp.root)
	}

	return nil
}
