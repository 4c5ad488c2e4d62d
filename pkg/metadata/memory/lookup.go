package memory

import (
	"context"

	"github.com/dnfs3/dnfs3/pkg/metadata"
)

// Lookup resolves a name within a directory to a file handle and attributes,
// checking traverse (search) permission on the directory along the way.
//
// "." resolves to dirHandle itself; ".." resolves to the parent recorded in
// store.parents, or to dirHandle if dirHandle has no parent (a share root).
func (store *MemoryMetadataStore) Lookup(
	ctx *metadata.AuthContext,
	dirHandle metadata.FileHandle,
	name string,
) (metadata.FileHandle, *metadata.FileAttr, error) {
	if err := ctx.Context.Err(); err != nil {
		return nil, nil, err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	dirKey := handleToKey(dirHandle)
	dirFd, exists := store.files[dirKey]
	if !exists {
		return nil, nil, &metadata.StoreError{
			Code:    metadata.ErrNotFound,
			Message: "directory not found",
		}
	}
	if dirFd.Attr.Type != metadata.FileTypeDirectory {
		return nil, nil, &metadata.StoreError{
			Code:    metadata.ErrNotDirectory,
			Message: "not a directory",
		}
	}

	granted, err := store.checkPermissionsLocked(ctx, dirHandle, metadata.PermissionTraverse)
	if err != nil {
		return nil, nil, err
	}
	if granted&metadata.PermissionTraverse == 0 {
		return nil, nil, &metadata.StoreError{
			Code:    metadata.ErrAccessDenied,
			Message: "no search permission on directory",
		}
	}

	switch name {
	case ".":
		attrCopy := *dirFd.Attr
		return dirHandle, &attrCopy, nil

	case "..":
		parentHandle, hasParent := store.parents[dirKey]
		if !hasParent {
			// Share root: ".." loops back to itself.
			attrCopy := *dirFd.Attr
			return dirHandle, &attrCopy, nil
		}
		parentFd, exists := store.files[handleToKey(parentHandle)]
		if !exists {
			return nil, nil, &metadata.StoreError{
				Code:    metadata.ErrIOError,
				Message: "parent handle exists but attributes missing",
			}
		}
		attrCopy := *parentFd.Attr
		return parentHandle, &attrCopy, nil

	default:
		children, hasChildren := store.children[dirKey]
		if !hasChildren {
			return nil, nil, &metadata.StoreError{
				Code:    metadata.ErrNotFound,
				Message: "not found: " + name,
				Path:    name,
			}
		}
		childHandle, exists := children[name]
		if !exists {
			return nil, nil, &metadata.StoreError{
				Code:    metadata.ErrNotFound,
				Message: "not found: " + name,
				Path:    name,
			}
		}
		childFd, exists := store.files[handleToKey(childHandle)]
		if !exists {
			return nil, nil, &metadata.StoreError{
				Code:    metadata.ErrIOError,
				Message: "child handle exists but attributes missing",
			}
		}
		attrCopy := *childFd.Attr
		return childHandle, &attrCopy, nil
	}
}

// GetFile retrieves file attributes by handle without performing any
// permission check; callers that need access control should go through
// Lookup or CheckPermissions instead.
func (store *MemoryMetadataStore) GetFile(
	ctx context.Context,
	handle metadata.FileHandle,
) (*metadata.FileAttr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	fd, exists := store.files[handleToKey(handle)]
	if !exists {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrNotFound,
			Message: "file not found",
		}
	}

	attrCopy := *fd.Attr
	return &attrCopy, nil
}
