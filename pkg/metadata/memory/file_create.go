package memory

import (
	"fmt"
	"time"

	"github.com/dnfs3/dnfs3/internal/logger"
	"github.com/dnfs3/dnfs3/pkg/metadata"
)

// ============================================================================
// File Creation Operations
// ============================================================================

// Create creates a new regular file or directory under parentHandle,
// as determined by attr.Type. Symlinks and special files have their
// own dedicated constructors (CreateSymlink, CreateSpecialFile) since
// they take extra parameters the generic path doesn't need.
//
// This implements support for the CREATE and MKDIR NFS procedures
// (RFC 1813 sections 3.3.8 and 3.3.9).
func (s *MemoryMetadataStore) Create(
	ctx *metadata.AuthContext,
	parentHandle metadata.FileHandle,
	name string,
	attr *metadata.FileAttr,
) (metadata.FileHandle, error) {
	if err := ctx.Context.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before create: %w", err)
	}
	if attr == nil || (attr.Type != metadata.FileTypeRegular && attr.Type != metadata.FileTypeDirectory) {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrInvalidArgument,
			Message: "Create requires Type to be FileTypeRegular or FileTypeDirectory",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Context.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled while creating: %w", err)
	}

	parentKey := handleToKey(parentHandle)
	parentFd, exists := s.files[parentKey]
	if !exists {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrNotFound,
			Message: "parent directory not found",
		}
	}
	parentAttr := parentFd.Attr

	if parentAttr.Type != metadata.FileTypeDirectory {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrNotDirectory,
			Message: "parent is not a directory",
		}
	}

	if !hasWritePermission(ctx, parentAttr) {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrPermissionDenied,
			Message: "write permission denied on parent directory",
		}
	}

	if s.children[parentKey] == nil {
		s.children[parentKey] = make(map[string]metadata.FileHandle)
	}
	if _, exists := s.children[parentKey][name]; exists {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrAlreadyExists,
			Message: fmt.Sprintf("name already exists: %s", name),
		}
	}

	now := time.Now()
	completeAttr := &metadata.FileAttr{
		Type: attr.Type,
		Mode: attr.Mode,
		UID:  attr.UID,
		GID:  attr.GID,

		Atime: now,
		Mtime: now,
		Ctime: now,
	}

	switch attr.Type {
	case metadata.FileTypeDirectory:
		if completeAttr.Mode == 0 {
			completeAttr.Mode = 0755
		}
		completeAttr.Size = 4096
	case metadata.FileTypeRegular:
		if completeAttr.Mode == 0 {
			completeAttr.Mode = 0644
		}
		completeAttr.Size = 0
	}

	handle := s.generateFileHandle()
	key := handleToKey(handle)
	s.files[key] = &fileData{Attr: completeAttr, ShareName: parentFd.ShareName}

	if attr.Type == metadata.FileTypeDirectory {
		s.children[key] = make(map[string]metadata.FileHandle)
		s.linkCounts[key] = 2
	} else {
		s.linkCounts[key] = 1
	}

	s.children[parentKey][name] = handle
	s.parents[key] = parentHandle

	parentAttr.Mtime = now
	parentAttr.Ctime = now

	logger.Debug("Create: created '%s' (type=%d) in parent %x with handle %x", name, attr.Type, parentHandle, handle)

	return handle, nil
}

// CreateHardLink creates a new directory entry that references an
// existing file's handle directly, without copying its content.
//
// This implements support for the LINK NFS procedure (RFC 1813 section 3.3.15).
func (s *MemoryMetadataStore) CreateHardLink(
	ctx *metadata.AuthContext,
	dirHandle metadata.FileHandle,
	name string,
	targetHandle metadata.FileHandle,
) error {
	if err := ctx.Context.Err(); err != nil {
		return fmt.Errorf("context cancelled before creating link: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Context.Err(); err != nil {
		return fmt.Errorf("context cancelled while creating link: %w", err)
	}

	fileKey := handleToKey(targetHandle)
	fileFd, exists := s.files[fileKey]
	if !exists {
		return &metadata.StoreError{
			Code:    metadata.ErrNotFound,
			Message: "source file not found",
		}
	}

	dirKey := handleToKey(dirHandle)
	dirFd, exists := s.files[dirKey]
	if !exists {
		return &metadata.StoreError{
			Code:    metadata.ErrNotFound,
			Message: "target directory not found",
		}
	}
	dirAttr := dirFd.Attr

	if dirAttr.Type != metadata.FileTypeDirectory {
		return &metadata.StoreError{
			Code:    metadata.ErrNotDirectory,
			Message: "target is not a directory",
		}
	}

	if !hasWritePermission(ctx, dirAttr) {
		return &metadata.StoreError{
			Code:    metadata.ErrPermissionDenied,
			Message: "write permission denied on target directory",
		}
	}

	if s.children[dirKey] == nil {
		s.children[dirKey] = make(map[string]metadata.FileHandle)
	}
	if _, exists := s.children[dirKey][name]; exists {
		return &metadata.StoreError{
			Code:    metadata.ErrAlreadyExists,
			Message: fmt.Sprintf("name already exists: %s", name),
		}
	}

	s.children[dirKey][name] = targetHandle

	now := time.Now()
	dirAttr.Mtime = now
	dirAttr.Ctime = now

	fileFd.Attr.Ctime = now
	s.linkCounts[fileKey]++

	logger.Debug("CreateHardLink: created link '%s' in directory %x to file %x", name, dirHandle, targetHandle)

	return nil
}

// CreateSpecialFile creates a device, socket, or FIFO special file.
//
// This implements support for the MKNOD NFS procedure (RFC 1813 section 3.3.11).
// Device numbers are stored in FileAttr.LinkTarget encoded as
// "device:major:minor"; this store has no dedicated device-number field.
func (s *MemoryMetadataStore) CreateSpecialFile(
	ctx *metadata.AuthContext,
	parentHandle metadata.FileHandle,
	name string,
	fileType metadata.FileType,
	attr *metadata.FileAttr,
	deviceMajor, deviceMinor uint32,
) (metadata.FileHandle, error) {
	if err := ctx.Context.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before creating special file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Context.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled while creating special file: %w", err)
	}

	parentKey := handleToKey(parentHandle)
	parentFd, exists := s.files[parentKey]
	if !exists {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrNotFound,
			Message: "parent directory not found",
		}
	}
	parentAttr := parentFd.Attr

	if parentAttr.Type != metadata.FileTypeDirectory {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrNotDirectory,
			Message: "parent is not a directory",
		}
	}

	if !hasWritePermission(ctx, parentAttr) {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrPermissionDenied,
			Message: "write permission denied on parent directory",
		}
	}

	// Device files typically require root privileges to create.
	if fileType == metadata.FileTypeChar || fileType == metadata.FileTypeBlock {
		if ctx.Identity == nil || ctx.Identity.UID == nil || *ctx.Identity.UID != 0 {
			return nil, &metadata.StoreError{
				Code:    metadata.ErrPermissionDenied,
				Message: "device file creation requires root privileges",
			}
		}
	}

	if s.children[parentKey] == nil {
		s.children[parentKey] = make(map[string]metadata.FileHandle)
	}
	if _, exists := s.children[parentKey][name]; exists {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrAlreadyExists,
			Message: fmt.Sprintf("file already exists: %s", name),
		}
	}

	now := time.Now()
	var mode uint32 = 0644
	if attr != nil && attr.Mode != 0 {
		mode = attr.Mode
	}
	var uid, gid uint32
	if attr != nil {
		uid, gid = attr.UID, attr.GID
	}

	completeAttr := &metadata.FileAttr{
		Type:  fileType,
		Mode:  mode,
		UID:   uid,
		GID:   gid,
		Size:  0,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}

	if fileType == metadata.FileTypeChar || fileType == metadata.FileTypeBlock {
		completeAttr.LinkTarget = fmt.Sprintf("device:%d:%d", deviceMajor, deviceMinor)
	}

	handle := s.generateFileHandle()
	key := handleToKey(handle)
	s.files[key] = &fileData{Attr: completeAttr, ShareName: parentFd.ShareName}
	s.linkCounts[key] = 1

	s.children[parentKey][name] = handle
	s.parents[key] = parentHandle

	parentAttr.Mtime = now
	parentAttr.Ctime = now

	logger.Debug("CreateSpecialFile: created special file '%s' (type=%d) in parent %x with handle %x",
		name, fileType, parentHandle, handle)

	return handle, nil
}

// CreateSymlink creates a symbolic link with the specified target path.
//
// This implements support for the SYMLINK NFS procedure (RFC 1813 section 3.3.10).
// The target path is stored without validation; dangling symlinks are allowed.
func (s *MemoryMetadataStore) CreateSymlink(
	ctx *metadata.AuthContext,
	parentHandle metadata.FileHandle,
	name string,
	target string,
	attr *metadata.FileAttr,
) (metadata.FileHandle, error) {
	if err := ctx.Context.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before creating symlink: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Context.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled while creating symlink: %w", err)
	}

	parentKey := handleToKey(parentHandle)
	parentFd, exists := s.files[parentKey]
	if !exists {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrNotFound,
			Message: "parent directory not found",
		}
	}
	parentAttr := parentFd.Attr

	if parentAttr.Type != metadata.FileTypeDirectory {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrNotDirectory,
			Message: "parent is not a directory",
		}
	}

	if !hasWritePermission(ctx, parentAttr) {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrPermissionDenied,
			Message: "write permission denied on parent directory",
		}
	}

	if s.children[parentKey] == nil {
		s.children[parentKey] = make(map[string]metadata.FileHandle)
	}
	if _, exists := s.children[parentKey][name]; exists {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrAlreadyExists,
			Message: fmt.Sprintf("file already exists: %s", name),
		}
	}

	now := time.Now()
	var mode uint32 = 0777
	var uid, gid uint32
	if attr != nil {
		if attr.Mode != 0 {
			mode = attr.Mode
		}
		uid, gid = attr.UID, attr.GID
	}

	completeAttr := &metadata.FileAttr{
		Type:       metadata.FileTypeSymlink,
		Mode:       mode,
		UID:        uid,
		GID:        gid,
		Size:       uint64(len(target)),
		Atime:      now,
		Mtime:      now,
		Ctime:      now,
		ContentID:  "",
		LinkTarget: target,
	}

	handle := s.generateFileHandle()
	key := handleToKey(handle)
	s.files[key] = &fileData{Attr: completeAttr, ShareName: parentFd.ShareName}
	s.linkCounts[key] = 1

	s.children[parentKey][name] = handle
	s.parents[key] = parentHandle

	parentAttr.Mtime = now
	parentAttr.Ctime = now

	logger.Debug("CreateSymlink: created symlink '%s' -> '%s' in parent %x with handle %x",
		name, target, parentHandle, handle)

	return handle, nil
}
