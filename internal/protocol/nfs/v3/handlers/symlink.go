package handlers

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/dnfs3/dnfs3/internal/logger"
	"github.com/dnfs3/dnfs3/internal/protocol/nfs/types"
	"github.com/dnfs3/dnfs3/internal/xdr"
	"github.com/dnfs3/dnfs3/pkg/metadata"
)

// ============================================================================
// Request and Response Structures
// ============================================================================

// SymlinkRequest represents a SYMLINK request from an NFS client.
//
// RFC 1813 Section 3.3.10 specifies the SYMLINK procedure as:
//
//	SYMLINK3res NFSPROC3_SYMLINK(SYMLINK3args) = 10;
type SymlinkRequest struct {
	// DirHandle is the file handle of the parent directory.
	DirHandle []byte

	// Name is the name of the symbolic link to create.
	Name string

	// Attr contains the attributes to set on the new symlink (mode, uid, gid).
	Attr *metadata.SetAttrs

	// Target is the string the symlink resolves to.
	Target string
}

// SymlinkResponse represents the response to a SYMLINK request.
type SymlinkResponse struct {
	Status uint32

	// Handle is the file handle of the newly created symlink. Only present on success.
	Handle []byte

	// Attr contains the attributes of the newly created symlink. Only present on success.
	Attr *types.NFSFileAttr

	// WccBefore/WccAfter carry weak cache consistency data for the parent directory.
	WccBefore *types.WccAttr
	WccAfter  *types.NFSFileAttr
}

// SymlinkContext contains the context information needed to process a SYMLINK request.
type SymlinkContext struct {
	Context    context.Context
	ClientAddr string
	AuthFlavor uint32
	UID        *uint32
	GID        *uint32
	GIDs       []uint32
}

func (c *SymlinkContext) GetContext() context.Context { return c.Context }
func (c *SymlinkContext) GetClientAddr() string       { return c.ClientAddr }
func (c *SymlinkContext) GetAuthFlavor() uint32       { return c.AuthFlavor }
func (c *SymlinkContext) GetUID() *uint32             { return c.UID }
func (c *SymlinkContext) GetGID() *uint32             { return c.GID }
func (c *SymlinkContext) GetGIDs() []uint32           { return c.GIDs }

// ============================================================================
// Protocol Handler
// ============================================================================

// Symlink creates a new symbolic link within a parent directory.
//
// This implements the NFS SYMLINK procedure as defined in RFC 1813 Section 3.3.10.
func (h *DefaultNFSHandler) Symlink(
	ctx *SymlinkContext,
	metadataStore metadata.MetadataStore,
	req *SymlinkRequest,
) (*SymlinkResponse, error) {
	select {
	case <-ctx.Context.Done():
		logger.Debug("SYMLINK cancelled before processing: name='%s' dir=%x client=%s error=%v",
			req.Name, req.DirHandle, ctx.ClientAddr, ctx.Context.Err())
		return &SymlinkResponse{Status: types.NFS3ErrIO}, ctx.Context.Err()
	default:
	}

	clientIP := xdr.ExtractClientIP(ctx.ClientAddr)

	logger.Info("SYMLINK: name='%s' dir=%x target='%s' client=%s auth=%d",
		req.Name, req.DirHandle, req.Target, clientIP, ctx.AuthFlavor)

	if err := validateSymlinkRequest(req); err != nil {
		logger.Warn("SYMLINK validation failed: name='%s' client=%s error=%v", req.Name, clientIP, err)
		return &SymlinkResponse{Status: err.nfsStatus}, nil
	}

	parentHandle := metadata.FileHandle(req.DirHandle)
	parentAttr, err := metadataStore.GetFile(ctx.Context, parentHandle)
	if err != nil {
		if ctx.Context.Err() != nil {
			return &SymlinkResponse{Status: types.NFS3ErrIO}, ctx.Context.Err()
		}
		logger.Warn("SYMLINK failed: parent not found: dir=%x client=%s error=%v", req.DirHandle, clientIP, err)
		return &SymlinkResponse{Status: types.NFS3ErrNoEnt}, nil
	}

	wccBefore := xdr.CaptureWccAttr(parentAttr)

	authCtx, err := BuildAuthContextWithMapping(ctx, metadataStore, parentHandle)
	if err != nil {
		parentAttr, _ = metadataStore.GetFile(ctx.Context, parentHandle)
		wccAfter := xdr.MetadataToNFS(parentAttr, xdr.ExtractFileID(parentHandle))

		if ctx.Context.Err() != nil {
			return &SymlinkResponse{Status: types.NFS3ErrIO, WccBefore: wccBefore, WccAfter: wccAfter}, ctx.Context.Err()
		}

		logger.Error("SYMLINK failed: failed to build auth context: name='%s' dir=%x client=%s error=%v",
			req.Name, req.DirHandle, clientIP, err)
		return &SymlinkResponse{Status: types.NFS3ErrIO, WccBefore: wccBefore, WccAfter: wccAfter}, nil
	}

	if parentAttr.Type != metadata.FileTypeDirectory {
		logger.Warn("SYMLINK failed: parent not a directory: dir=%x type=%d client=%s",
			req.DirHandle, parentAttr.Type, clientIP)
		wccAfter := xdr.MetadataToNFS(parentAttr, xdr.ExtractFileID(parentHandle))
		return &SymlinkResponse{Status: types.NFS3ErrNotDir, WccBefore: wccBefore, WccAfter: wccAfter}, nil
	}

	if _, _, err := metadataStore.Lookup(authCtx, parentHandle, req.Name); err == nil {
		logger.Debug("SYMLINK failed: '%s' already exists: dir=%x client=%s", req.Name, req.DirHandle, clientIP)
		parentAttr, _ = metadataStore.GetFile(ctx.Context, parentHandle)
		wccAfter := xdr.MetadataToNFS(parentAttr, xdr.ExtractFileID(parentHandle))
		return &SymlinkResponse{Status: types.NFS3ErrExist, WccBefore: wccBefore, WccAfter: wccAfter}, nil
	}

	linkAttr := &metadata.FileAttr{
		Type: metadata.FileTypeSymlink,
		Mode: 0777,
	}
	if authCtx.Identity.UID != nil {
		linkAttr.UID = *authCtx.Identity.UID
	}
	if authCtx.Identity.GID != nil {
		linkAttr.GID = *authCtx.Identity.GID
	}
	if req.Attr != nil {
		if req.Attr.SetMode {
			linkAttr.Mode = req.Attr.Mode
		}
		if req.Attr.SetUID {
			linkAttr.UID = req.Attr.UID
		}
		if req.Attr.SetGID {
			linkAttr.GID = req.Attr.GID
		}
	}

	newHandle, err := metadataStore.CreateSymlink(authCtx, parentHandle, req.Name, req.Target, linkAttr)
	if err != nil {
		status := mapMetadataErrorToNFS(err)
		logger.Error("SYMLINK failed: store error: name='%s' client=%s error=%v", req.Name, clientIP, err)

		parentAttr, _ = metadataStore.GetFile(ctx.Context, parentHandle)
		wccAfter := xdr.MetadataToNFS(parentAttr, xdr.ExtractFileID(parentHandle))
		return &SymlinkResponse{Status: status, WccBefore: wccBefore, WccAfter: wccAfter}, nil
	}

	newAttr, err := metadataStore.GetFile(ctx.Context, newHandle)
	if err != nil {
		logger.Error("SYMLINK: failed to get new symlink attributes: handle=%x error=%v", newHandle, err)
		return &SymlinkResponse{Status: types.NFS3ErrIO}, nil
	}

	nfsAttr := xdr.MetadataToNFS(newAttr, xdr.ExtractFileID(newHandle))

	parentAttr, _ = metadataStore.GetFile(ctx.Context, parentHandle)
	wccAfter := xdr.MetadataToNFS(parentAttr, xdr.ExtractFileID(parentHandle))

	logger.Info("SYMLINK successful: name='%s' handle=%x target='%s' client=%s",
		req.Name, newHandle, req.Target, clientIP)

	return &SymlinkResponse{
		Status:    types.NFS3OK,
		Handle:    newHandle,
		Attr:      nfsAttr,
		WccBefore: wccBefore,
		WccAfter:  wccAfter,
	}, nil
}

// ============================================================================
// Request Validation
// ============================================================================

type symlinkValidationError struct {
	message   string
	nfsStatus uint32
}

func (e *symlinkValidationError) Error() string { return e.message }

func validateSymlinkRequest(req *SymlinkRequest) *symlinkValidationError {
	if len(req.DirHandle) == 0 {
		return &symlinkValidationError{message: "empty parent directory handle", nfsStatus: types.NFS3ErrBadHandle}
	}
	if len(req.DirHandle) > 64 {
		return &symlinkValidationError{
			message:   fmt.Sprintf("parent handle too long: %d bytes (max 64)", len(req.DirHandle)),
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}
	if len(req.DirHandle) < 8 {
		return &symlinkValidationError{
			message:   fmt.Sprintf("parent handle too short: %d bytes (min 8)", len(req.DirHandle)),
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}
	if req.Name == "" || req.Name == "." || req.Name == ".." {
		return &symlinkValidationError{message: "invalid symlink name", nfsStatus: types.NFS3ErrInval}
	}
	if len(req.Name) > 255 {
		return &symlinkValidationError{message: "symlink name too long", nfsStatus: types.NFS3ErrNameTooLong}
	}
	if bytes.ContainsAny([]byte(req.Name), "/\x00") {
		return &symlinkValidationError{message: "symlink name contains invalid character", nfsStatus: types.NFS3ErrInval}
	}
	if req.Target == "" {
		return &symlinkValidationError{message: "empty symlink target", nfsStatus: types.NFS3ErrInval}
	}
	if len(req.Target) > 1024 {
		return &symlinkValidationError{message: "symlink target too long", nfsStatus: types.NFS3ErrNameTooLong}
	}
	return nil
}

// ============================================================================
// XDR Decoding
// ============================================================================

// DecodeSymlinkRequest decodes a SYMLINK request from XDR-encoded bytes.
//
//	struct SYMLINK3args {
//	    diropargs3    where;
//	    symlinkdata3  symlink;   // sattr3 attributes + nfspath3 data
//	};
func DecodeSymlinkRequest(data []byte) (*SymlinkRequest, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("data too short: need at least 8 bytes, got %d", len(data))
	}

	reader := bytes.NewReader(data)
	req := &SymlinkRequest{}

	handle, err := xdr.DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("decode handle: %w", err)
	}
	req.DirHandle = handle

	name, err := xdr.DecodeString(reader)
	if err != nil {
		return nil, fmt.Errorf("decode name: %w", err)
	}
	req.Name = name

	attr, err := xdr.DecodeSetAttrs(reader)
	if err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	req.Attr = attr

	target, err := xdr.DecodeString(reader)
	if err != nil {
		return nil, fmt.Errorf("decode target: %w", err)
	}
	req.Target = target

	logger.Debug("Decoded SYMLINK request: handle_len=%d name='%s' target='%s'", len(handle), name, target)

	return req, nil
}

// ============================================================================
// XDR Encoding
// ============================================================================

// Encode serializes the SymlinkResponse into XDR-encoded bytes.
func (resp *SymlinkResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer

	if err := binary.Write(&buf, binary.BigEndian, resp.Status); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}

	if resp.Status == types.NFS3OK {
		if err := xdr.EncodeOptionalOpaque(&buf, resp.Handle); err != nil {
			return nil, fmt.Errorf("encode handle: %w", err)
		}
		if err := xdr.EncodeOptionalFileAttr(&buf, resp.Attr); err != nil {
			return nil, fmt.Errorf("encode attributes: %w", err)
		}
	}

	if err := xdr.EncodeWccData(&buf, resp.WccBefore, resp.WccAfter); err != nil {
		return nil, fmt.Errorf("encode wcc data: %w", err)
	}

	logger.Debug("Encoded SYMLINK response: %d bytes status=%d", buf.Len(), resp.Status)
	return buf.Bytes(), nil
}
