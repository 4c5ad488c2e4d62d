package memory

import (
	"fmt"
	"time"

	"github.com/dnfs3/dnfs3/internal/logger"
	"github.com/dnfs3/dnfs3/pkg/metadata"
)

// ============================================================================
// File Modification Operations
// ============================================================================

// SetFileAttributes updates file attributes with access control.
//
// This implements support for the SETATTR NFS procedure (RFC 1813 section 3.3.2).
// It handles selective attribute updates based on the Set* flags in the attrs
// parameter, with proper permission checking and validation.
//
// Permission Requirements:
//   - Mode changes: Only owner or root
//   - UID changes: Only root
//   - GID changes: Only root (or owner if in supplementary groups)
//   - Size changes: Write permission required
//   - Time changes: Write permission or owner
//
// The method automatically updates ctime (change time) whenever any attribute
// is modified, as required by RFC 1813.
//
// Note: size changes here only update the recorded size; the content store
// is responsible for actually truncating/extending file data (see
// PrepareWrite/CommitWrite in io.go for the coordinated write path).
func (s *MemoryMetadataStore) SetFileAttributes(
	ctx *metadata.AuthContext,
	handle metadata.FileHandle,
	attrs *metadata.SetAttrs,
) error {
	if err := ctx.Context.Err(); err != nil {
		return fmt.Errorf("context cancelled before setting file attributes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Context.Err(); err != nil {
		return fmt.Errorf("context cancelled while setting file attributes: %w", err)
	}

	key := handleToKey(handle)
	fd, exists := s.files[key]
	if !exists {
		return &metadata.StoreError{
			Code:    metadata.ErrNotFound,
			Message: "file not found",
		}
	}
	fileAttr := fd.Attr

	modified := false

	// ------------------------------------------------------------------------
	// Mode (permissions) - only owner or root can change
	// ------------------------------------------------------------------------

	if attrs.SetMode {
		if !isOwnerOrRoot(ctx, fileAttr) {
			return &metadata.StoreError{
				Code:    metadata.ErrPermissionDenied,
				Message: "only owner or root can change permissions",
			}
		}
		if attrs.Mode > 0o7777 {
			return &metadata.StoreError{
				Code:    metadata.ErrInvalidArgument,
				Message: fmt.Sprintf("invalid mode value: 0%o (max 0o7777)", attrs.Mode),
			}
		}

		fileAttr.Mode = attrs.Mode
		modified = true

		logger.Debug("SetFileAttributes: mode changed to 0%o for handle %x", attrs.Mode, handle)
	}

	// ------------------------------------------------------------------------
	// UID (owner) - only root can change ownership
	// ------------------------------------------------------------------------

	if attrs.SetUID {
		uid, _, _, authenticated := credentials(ctx)
		if !authenticated || uid != 0 {
			return &metadata.StoreError{
				Code:    metadata.ErrPermissionDenied,
				Message: "only root can change file ownership",
			}
		}

		fileAttr.UID = attrs.UID
		modified = true

		logger.Debug("SetFileAttributes: uid changed to %d for handle %x", attrs.UID, handle)
	}

	// ------------------------------------------------------------------------
	// GID (group) - only root or owner (if in target group) can change
	// ------------------------------------------------------------------------

	if attrs.SetGID {
		if !canChangeGroup(ctx, fileAttr, attrs.GID) {
			return &metadata.StoreError{
				Code:    metadata.ErrPermissionDenied,
				Message: "only root or owner (if in target group) can change group",
			}
		}

		fileAttr.GID = attrs.GID
		modified = true

		logger.Debug("SetFileAttributes: gid changed to %d for handle %x", attrs.GID, handle)
	}

	// ------------------------------------------------------------------------
	// Size - write permission required, only valid for regular files
	// ------------------------------------------------------------------------

	if attrs.SetSize {
		if fileAttr.Type != metadata.FileTypeRegular {
			return &metadata.StoreError{
				Code:    metadata.ErrIsDirectory,
				Message: fmt.Sprintf("cannot set size on non-regular file (type=%d)", fileAttr.Type),
			}
		}

		if !hasWritePermission(ctx, fileAttr) {
			return &metadata.StoreError{
				Code:    metadata.ErrPermissionDenied,
				Message: "write permission denied for size change",
			}
		}

		oldSize := fileAttr.Size
		fileAttr.Size = attrs.Size
		modified = true

		logger.Debug("SetFileAttributes: size changed from %d to %d for handle %x", oldSize, attrs.Size, handle)

		fileAttr.Mtime = time.Now()
	}

	// ------------------------------------------------------------------------
	// Atime (access time) - owner or write permission required
	// ------------------------------------------------------------------------

	if attrs.SetAtime {
		if !isOwnerOrRoot(ctx, fileAttr) && !hasWritePermission(ctx, fileAttr) {
			return &metadata.StoreError{
				Code:    metadata.ErrPermissionDenied,
				Message: "insufficient permission to set atime",
			}
		}

		fileAttr.Atime = attrs.Atime
		modified = true

		logger.Debug("SetFileAttributes: atime changed to %v for handle %x", attrs.Atime, handle)
	}

	// ------------------------------------------------------------------------
	// Mtime (modification time) - owner or write permission required
	// ------------------------------------------------------------------------

	if attrs.SetMtime {
		if !isOwnerOrRoot(ctx, fileAttr) && !hasWritePermission(ctx, fileAttr) {
			return &metadata.StoreError{
				Code:    metadata.ErrPermissionDenied,
				Message: "insufficient permission to set mtime",
			}
		}

		fileAttr.Mtime = attrs.Mtime
		modified = true

		logger.Debug("SetFileAttributes: mtime changed to %v for handle %x", attrs.Mtime, handle)
	}

	// Per RFC 1813, ctime is automatically updated by the server whenever
	// any file metadata changes. Clients cannot set it directly.
	if modified {
		fileAttr.Ctime = time.Now()
		logger.Debug("SetFileAttributes: ctime updated to %v for handle %x", fileAttr.Ctime, handle)
	}

	return nil
}
