package meta

import (
	"fmt"
	"os"
	"strings"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/util"
)

// Head reads the head pointer. An unborn chain yields an empty ID.
func (mc *Context) Head() (string, error) {
	data, err := os.ReadFile(mc.Layout.HeadPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read head: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SetHead atomically replaces the head pointer. This is the commit point of
// every head-moving operation, pruning included.
func (mc *Context) SetHead(id string) error {
	if err := util.WriteFileAtomic(mc.Layout.HeadPath(), []byte(id+"\n"), 0o644); err != nil {
		return fmt.Errorf("write head: %w", err)
	}
	return nil
}
