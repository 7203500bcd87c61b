package maildir

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	gomaildir "github.com/emersion/go-maildir"
)

// FolderPath returns the directory of folder under base. An empty folder or
// "." is the base itself.
func FolderPath(base, folder string) string {
	if folder == "" || folder == "." {
		return base
	}
	return filepath.Join(base, filepath.FromSlash(folder))
}

// InitFolder creates the cur, new and tmp directories of folder under base,
// creating base and any intermediate directories as needed.
func InitFolder(base, folder string) error {
	dir := FolderPath(base, folder)
	if err := os.MkdirAll(filepath.Dir(dir), 0o700); err != nil {
		return fmt.Errorf("creating parent of %s: %w", dir, err)
	}
	if err := gomaildir.Dir(dir).Init(); err != nil {
		return fmt.Errorf("initializing maildir folder %s: %w", dir, err)
	}
	return nil
}

// Deliver writes a message into the new directory of folder under base using
// the maildir tmp-then-rename protocol. The folder is initialized first.
func Deliver(base, folder string, message io.Reader) error {
	if err := InitFolder(base, folder); err != nil {
		return err
	}

	dir := FolderPath(base, folder)
	delivery, err := gomaildir.NewDelivery(dir)
	if err != nil {
		return fmt.Errorf("starting delivery to %s: %w", dir, err)
	}
	if _, err := io.Copy(delivery, message); err != nil {
		_ = delivery.Abort()
		return fmt.Errorf("writing message to %s: %w", dir, err)
	}
	if err := delivery.Close(); err != nil {
		return fmt.Errorf("finishing delivery to %s: %w", dir, err)
	}
	return nil
}
