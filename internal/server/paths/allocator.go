// Package paths derives collision-free storage keys for uploads.
package paths

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/akarpovs/cryptodrive/internal/common"
	"github.com/akarpovs/cryptodrive/internal/server/blob"
)

var unsafeChars = regexp.MustCompile(`[^\w\-. ]`)

const maxNameLen = 100

// Sanitize replaces characters outside the safe set with underscores and
// truncates to 100 code points. Empty results fall back to "file".
func Sanitize(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	if runes := []rune(name); len(runes) > maxNameLen {
		name = string(runes[:maxNameLen])
	}
	if strings.Trim(name, ". ") == "" {
		return "file"
	}
	return name
}

// Allocator claims storage keys in the blob store. The probe and the byte
// write are one conditional put, so concurrent uploads of the same name in
// the same (user, folder) namespace can never claim the same key.
type Allocator struct {
	store blob.Store
}

func NewAllocator(store blob.Store) *Allocator {
	return &Allocator{store: store}
}

// namespace builds the per-(user, folder) key prefix. folderID nil means the
// user's root.
func namespace(userID string, folderID *string) string {
	part := "root"
	if folderID != nil {
		part = "folder_" + *folderID
	}
	return fmt.Sprintf("files/user_%s/%s", userID, part)
}

// Allocate writes data under a unique key derived from desiredName within
// the (userID, folderID) namespace, appending numeric suffixes before the
// extension (name_1.ext, name_2.ext, ...) until a free key is claimed. It
// returns the claimed key; suffix retries are invisible to the caller.
func (a *Allocator) Allocate(ctx context.Context, userID string, folderID *string, desiredName string, data []byte) (string, error) {
	safe := Sanitize(desiredName)
	ext := path.Ext(safe)
	base := strings.TrimSuffix(safe, ext)
	ns := namespace(userID, folderID)

	for i := 0; ; i++ {
		candidate := safe
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		key := ns + "/" + candidate

		err := a.store.PutIfAbsent(ctx, key, data)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, common.ErrKeyExists) {
			return "", fmt.Errorf("claiming storage key: %w", err)
		}
	}
}
