package handlers

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/dnfs3/dnfs3/internal/logger"
	"github.com/dnfs3/dnfs3/internal/protocol/nfs/types"
	"github.com/dnfs3/dnfs3/internal/xdr"
	"github.com/dnfs3/dnfs3/pkg/metadata"
)

// RenameContext carries per-request state for the RENAME handler.
type RenameContext struct {
	Context context.Context

	// ClientAddr is the network address of the client making the request.
	ClientAddr string

	// AuthFlavor indicates the authentication method used (AUTH_NULL or AUTH_UNIX).
	AuthFlavor uint32

	// UID is the authenticated user ID (from AUTH_UNIX).
	UID *uint32

	// GID is the authenticated group ID (from AUTH_UNIX).
	GID *uint32

	// GIDs is a list of supplementary group IDs (from AUTH_UNIX).
	GIDs []uint32
}

func (c *RenameContext) GetContext() context.Context { return c.Context }
func (c *RenameContext) GetClientAddr() string       { return c.ClientAddr }
func (c *RenameContext) GetAuthFlavor() uint32       { return c.AuthFlavor }
func (c *RenameContext) GetUID() *uint32             { return c.UID }
func (c *RenameContext) GetGID() *uint32             { return c.GID }
func (c *RenameContext) GetGIDs() []uint32           { return c.GIDs }

// ============================================================================
// Request and Response Structures
// ============================================================================

// RenameRequest represents a RENAME request from an NFS client.
// The client provides source and destination directory handles and names
// to move or rename a file or directory.
//
// RFC 1813 Section 3.3.14 specifies the RENAME procedure as:
//
//	RENAME3res NFSPROC3_RENAME(RENAME3args) = 14;
type RenameRequest struct {
	// FromDirHandle is the file handle of the source directory.
	FromDirHandle []byte

	// FromName is the current name of the file or directory to rename.
	FromName string

	// ToDirHandle is the file handle of the destination directory.
	ToDirHandle []byte

	// ToName is the new name for the file or directory. If a file with this
	// name already exists in the destination, it will be replaced atomically
	// if the store's replacement rules allow it.
	ToName string
}

// RenameResponse represents the response to a RENAME request.
type RenameResponse struct {
	NFSResponseBase // Embeds Status field and GetStatus() method

	FromDirWccBefore *types.WccAttr
	FromDirWccAfter  *types.NFSFileAttr
	ToDirWccBefore   *types.WccAttr
	ToDirWccAfter    *types.NFSFileAttr
}

// ============================================================================
// Protocol Handler
// ============================================================================

// Rename changes the name of a file or directory, optionally moving it to a
// different directory and atomically replacing an existing destination.
//
// This implements the NFS RENAME procedure as defined in RFC 1813 Section 3.3.14.
//
// Special Cases:
//   - Renaming to the same name in the same directory: success (no-op)
//   - Renaming over an existing file: replaced atomically if allowed
//   - Renaming over an existing directory: only if empty
//   - Renaming directory over file, or file over directory: rejected
//   - Renaming "." or "..": rejected
func (h *DefaultNFSHandler) Rename(
	ctx *RenameContext,
	metadataStore metadata.MetadataStore,
	req *RenameRequest,
) (*RenameResponse, error) {
	select {
	case <-ctx.Context.Done():
		logger.Debug("RENAME cancelled before processing: from='%s' to='%s' client=%s error=%v",
			req.FromName, req.ToName, ctx.ClientAddr, ctx.Context.Err())
		return nil, ctx.Context.Err()
	default:
	}

	clientIP := xdr.ExtractClientIP(ctx.ClientAddr)

	logger.Info("RENAME: from='%s' in dir=%x to='%s' in dir=%x client=%s auth=%d",
		req.FromName, req.FromDirHandle, req.ToName, req.ToDirHandle, clientIP, ctx.AuthFlavor)

	// ========================================================================
	// Step 1: Validate request parameters
	// ========================================================================

	if err := validateRenameRequest(req); err != nil {
		logger.Warn("RENAME validation failed: from='%s' to='%s' client=%s error=%v",
			req.FromName, req.ToName, clientIP, err)
		return &RenameResponse{NFSResponseBase: NFSResponseBase{Status: err.nfsStatus}}, nil
	}

	fromDirHandle := metadata.FileHandle(req.FromDirHandle)
	toDirHandle := metadata.FileHandle(req.ToDirHandle)

	// ========================================================================
	// Step 2: Verify source directory exists and is valid
	// ========================================================================

	fromDirAttr, err := metadataStore.GetFile(ctx.Context, fromDirHandle)
	if err != nil {
		if err == context.Canceled || err == context.DeadlineExceeded {
			logger.Debug("RENAME cancelled during source directory lookup: client=%s", clientIP)
			return nil, err
		}
		logger.Warn("RENAME failed: source directory not found: dir=%x client=%s error=%v",
			req.FromDirHandle, clientIP, err)
		return &RenameResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrNoEnt}}, nil
	}

	fromDirWccBefore := xdr.CaptureWccAttr(fromDirAttr)

	if fromDirAttr.Type != metadata.FileTypeDirectory {
		fromDirID := xdr.ExtractFileID(fromDirHandle)
		return &RenameResponse{
			NFSResponseBase:  NFSResponseBase{Status: types.NFS3ErrNotDir},
			FromDirWccBefore: fromDirWccBefore,
			FromDirWccAfter:  xdr.MetadataToNFS(fromDirAttr, fromDirID),
		}, nil
	}

	// ========================================================================
	// Step 3: Verify destination directory exists and is valid
	// ========================================================================

	toDirAttr, err := metadataStore.GetFile(ctx.Context, toDirHandle)
	if err != nil {
		if err == context.Canceled || err == context.DeadlineExceeded {
			logger.Debug("RENAME cancelled during destination directory lookup: client=%s", clientIP)
			return nil, err
		}
		logger.Warn("RENAME failed: destination directory not found: dir=%x client=%s error=%v",
			req.ToDirHandle, clientIP, err)
		fromDirID := xdr.ExtractFileID(fromDirHandle)
		return &RenameResponse{
			NFSResponseBase:  NFSResponseBase{Status: types.NFS3ErrNoEnt},
			FromDirWccBefore: fromDirWccBefore,
			FromDirWccAfter:  xdr.MetadataToNFS(fromDirAttr, fromDirID),
		}, nil
	}

	toDirWccBefore := xdr.CaptureWccAttr(toDirAttr)

	if toDirAttr.Type != metadata.FileTypeDirectory {
		fromDirID := xdr.ExtractFileID(fromDirHandle)
		toDirID := xdr.ExtractFileID(toDirHandle)
		return &RenameResponse{
			NFSResponseBase:  NFSResponseBase{Status: types.NFS3ErrNotDir},
			FromDirWccBefore: fromDirWccBefore,
			FromDirWccAfter:  xdr.MetadataToNFS(fromDirAttr, fromDirID),
			ToDirWccBefore:   toDirWccBefore,
			ToDirWccAfter:    xdr.MetadataToNFS(toDirAttr, toDirID),
		}, nil
	}

	select {
	case <-ctx.Context.Done():
		logger.Debug("RENAME cancelled before rename operation: client=%s", clientIP)
		return nil, ctx.Context.Err()
	default:
	}

	// ========================================================================
	// Step 4: Build authentication context with share-level identity mapping
	// ========================================================================

	authCtx, err := BuildAuthContextWithMapping(ctx, metadataStore, fromDirHandle)
	if err != nil {
		if ctx.Context.Err() != nil {
			logger.Debug("RENAME cancelled during auth context building: client=%s", clientIP)
			return nil, ctx.Context.Err()
		}
		logger.Error("RENAME failed: failed to build auth context: client=%s error=%v", clientIP, err)
		return &RenameResponse{
			NFSResponseBase:  NFSResponseBase{Status: types.NFS3ErrIO},
			FromDirWccBefore: fromDirWccBefore,
			ToDirWccBefore:   toDirWccBefore,
		}, nil
	}

	// ========================================================================
	// Step 5: Perform rename via store
	// ========================================================================
	// The store verifies the source exists, checks write permissions on both
	// directories, handles atomic replacement of the destination, and updates
	// parent relationships and timestamps. We don't check cancellation inside
	// Move to maintain atomicity.

	err = metadataStore.Move(authCtx, fromDirHandle, req.FromName, toDirHandle, req.ToName)
	if err != nil {
		if err == context.Canceled || err == context.DeadlineExceeded {
			logger.Debug("RENAME cancelled during rename operation: client=%s", clientIP)
			return nil, err
		}

		logger.Error("RENAME failed: store error: from='%s' to='%s' client=%s error=%v",
			req.FromName, req.ToName, clientIP, err)

		var fromDirWccAfter *types.NFSFileAttr
		if updated, getErr := metadataStore.GetFile(ctx.Context, fromDirHandle); getErr == nil {
			fromDirID := xdr.ExtractFileID(fromDirHandle)
			fromDirWccAfter = xdr.MetadataToNFS(updated, fromDirID)
		}
		var toDirWccAfter *types.NFSFileAttr
		if updated, getErr := metadataStore.GetFile(ctx.Context, toDirHandle); getErr == nil {
			toDirID := xdr.ExtractFileID(toDirHandle)
			toDirWccAfter = xdr.MetadataToNFS(updated, toDirID)
		}

		return &RenameResponse{
			NFSResponseBase:  NFSResponseBase{Status: mapMetadataErrorToNFS(err)},
			FromDirWccBefore: fromDirWccBefore,
			FromDirWccAfter:  fromDirWccAfter,
			ToDirWccBefore:   toDirWccBefore,
			ToDirWccAfter:    toDirWccAfter,
		}, nil
	}

	// ========================================================================
	// Step 6: Build success response with updated WCC data
	// ========================================================================

	var fromDirWccAfter *types.NFSFileAttr
	if updated, getErr := metadataStore.GetFile(ctx.Context, fromDirHandle); getErr != nil {
		logger.Warn("RENAME: successful but cannot get updated source directory attributes: dir=%x error=%v",
			req.FromDirHandle, getErr)
	} else {
		fromDirID := xdr.ExtractFileID(fromDirHandle)
		fromDirWccAfter = xdr.MetadataToNFS(updated, fromDirID)
	}

	var toDirWccAfter *types.NFSFileAttr
	if updated, getErr := metadataStore.GetFile(ctx.Context, toDirHandle); getErr != nil {
		logger.Warn("RENAME: successful but cannot get updated destination directory attributes: dir=%x error=%v",
			req.ToDirHandle, getErr)
	} else {
		toDirID := xdr.ExtractFileID(toDirHandle)
		toDirWccAfter = xdr.MetadataToNFS(updated, toDirID)
	}

	logger.Info("RENAME successful: from='%s' to='%s' client=%s", req.FromName, req.ToName, clientIP)
	logger.Debug("RENAME details: same_dir=%v", bytes.Equal(req.FromDirHandle, req.ToDirHandle))

	return &RenameResponse{
		NFSResponseBase:  NFSResponseBase{Status: types.NFS3OK},
		FromDirWccBefore: fromDirWccBefore,
		FromDirWccAfter:  fromDirWccAfter,
		ToDirWccBefore:   toDirWccBefore,
		ToDirWccAfter:    toDirWccAfter,
	}, nil
}

// ============================================================================
// Request Validation
// ============================================================================

// renameValidationError represents a RENAME request validation error.
type renameValidationError struct {
	message   string
	nfsStatus uint32
}

func (e *renameValidationError) Error() string {
	return e.message
}

// validateRenameRequest validates RENAME request parameters.
func validateRenameRequest(req *RenameRequest) *renameValidationError {
	if len(req.FromDirHandle) == 0 {
		return &renameValidationError{message: "empty source directory handle", nfsStatus: types.NFS3ErrBadHandle}
	}
	if len(req.FromDirHandle) > 64 {
		return &renameValidationError{
			message:   fmt.Sprintf("source directory handle too long: %d bytes (max 64)", len(req.FromDirHandle)),
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}
	if len(req.ToDirHandle) == 0 {
		return &renameValidationError{message: "empty destination directory handle", nfsStatus: types.NFS3ErrBadHandle}
	}
	if len(req.ToDirHandle) > 64 {
		return &renameValidationError{
			message:   fmt.Sprintf("destination directory handle too long: %d bytes (max 64)", len(req.ToDirHandle)),
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}

	if req.FromName == "" {
		return &renameValidationError{message: "empty source name", nfsStatus: types.NFS3ErrInval}
	}
	if len(req.FromName) > 255 {
		return &renameValidationError{
			message:   fmt.Sprintf("source name too long: %d bytes (max 255)", len(req.FromName)),
			nfsStatus: types.NFS3ErrNameTooLong,
		}
	}
	if req.FromName == "." || req.FromName == ".." {
		return &renameValidationError{message: fmt.Sprintf("cannot rename '%s'", req.FromName), nfsStatus: types.NFS3ErrInval}
	}
	if strings.ContainsAny(req.FromName, "/\x00") {
		return &renameValidationError{message: "source name contains invalid characters", nfsStatus: types.NFS3ErrInval}
	}

	if req.ToName == "" {
		return &renameValidationError{message: "empty destination name", nfsStatus: types.NFS3ErrInval}
	}
	if len(req.ToName) > 255 {
		return &renameValidationError{
			message:   fmt.Sprintf("destination name too long: %d bytes (max 255)", len(req.ToName)),
			nfsStatus: types.NFS3ErrNameTooLong,
		}
	}
	if req.ToName == "." || req.ToName == ".." {
		return &renameValidationError{message: fmt.Sprintf("cannot rename to '%s'", req.ToName), nfsStatus: types.NFS3ErrInval}
	}
	if strings.ContainsAny(req.ToName, "/\x00") {
		return &renameValidationError{message: "destination name contains invalid characters", nfsStatus: types.NFS3ErrInval}
	}

	return nil
}

// ============================================================================
// XDR Decoding
// ============================================================================

// DecodeRenameRequest decodes a RENAME request from XDR-encoded bytes.
func DecodeRenameRequest(data []byte) (*RenameRequest, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("data too short: need at least 16 bytes, got %d", len(data))
	}

	reader := bytes.NewReader(data)

	fromDirHandle, err := xdr.DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("decode source directory handle: %w", err)
	}

	fromName, err := xdr.DecodeString(reader)
	if err != nil {
		return nil, fmt.Errorf("decode source name: %w", err)
	}

	toDirHandle, err := xdr.DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("decode destination directory handle: %w", err)
	}

	toName, err := xdr.DecodeString(reader)
	if err != nil {
		return nil, fmt.Errorf("decode destination name: %w", err)
	}

	logger.Debug("Decoded RENAME request: from='%s' in dir_len=%d to='%s' in dir_len=%d",
		fromName, len(fromDirHandle), toName, len(toDirHandle))

	return &RenameRequest{
		FromDirHandle: fromDirHandle,
		FromName:      fromName,
		ToDirHandle:   toDirHandle,
		ToName:        toName,
	}, nil
}

// ============================================================================
// XDR Encoding
// ============================================================================

// Encode serializes the RenameResponse into XDR-encoded bytes.
func (resp *RenameResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer

	if err := binary.Write(&buf, binary.BigEndian, resp.Status); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}

	if err := xdr.EncodeWccData(&buf, resp.FromDirWccBefore, resp.FromDirWccAfter); err != nil {
		return nil, fmt.Errorf("encode source directory wcc data: %w", err)
	}

	if err := xdr.EncodeWccData(&buf, resp.ToDirWccBefore, resp.ToDirWccAfter); err != nil {
		return nil, fmt.Errorf("encode destination directory wcc data: %w", err)
	}

	logger.Debug("Encoded RENAME response: %d bytes status=%d", buf.Len(), resp.Status)
	return buf.Bytes(), nil
}
