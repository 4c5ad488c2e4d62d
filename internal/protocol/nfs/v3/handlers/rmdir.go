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

// RmdirRequest represents a RMDIR request from an NFS client.
//
// RFC 1813 Section 3.3.13 specifies the RMDIR procedure as:
//
//	RMDIR3res NFSPROC3_RMDIR(RMDIR3args) = 13;
//
// RMDIR removes an empty subdirectory from a parent directory. Unlike REMOVE,
// it only operates on directories, and only on directories that are empty.
type RmdirRequest struct {
	// DirHandle is the file handle of the parent directory.
	DirHandle []byte

	// Name is the name of the subdirectory to remove.
	Name string
}

// RmdirResponse represents the response to a RMDIR request.
type RmdirResponse struct {
	Status uint32

	// WccBefore/WccAfter carry weak cache consistency data for the parent directory.
	WccBefore *types.WccAttr
	WccAfter  *types.NFSFileAttr
}

// RmdirContext contains the context information needed to process a RMDIR request.
type RmdirContext struct {
	Context    context.Context
	ClientAddr string
	AuthFlavor uint32
	UID        *uint32
	GID        *uint32
	GIDs       []uint32
}

func (c *RmdirContext) GetContext() context.Context { return c.Context }
func (c *RmdirContext) GetClientAddr() string       { return c.ClientAddr }
func (c *RmdirContext) GetAuthFlavor() uint32       { return c.AuthFlavor }
func (c *RmdirContext) GetUID() *uint32             { return c.UID }
func (c *RmdirContext) GetGID() *uint32             { return c.GID }
func (c *RmdirContext) GetGIDs() []uint32           { return c.GIDs }

// ============================================================================
// Protocol Handler
// ============================================================================

// Rmdir removes an empty subdirectory from a parent directory.
//
// This implements the NFS RMDIR procedure as defined in RFC 1813 Section 3.3.13.
//
// RMDIR only removes directories, and only if they are empty. A non-empty
// directory returns types.NFS3ErrNotEmpty; a non-directory handle returns
// types.NFS3ErrNotDir (use REMOVE instead).
func (h *DefaultNFSHandler) Rmdir(
	ctx *RmdirContext,
	metadataStore metadata.MetadataStore,
	req *RmdirRequest,
) (*RmdirResponse, error) {
	select {
	case <-ctx.Context.Done():
		logger.Debug("RMDIR cancelled before processing: name='%s' dir=%x client=%s error=%v",
			req.Name, req.DirHandle, ctx.ClientAddr, ctx.Context.Err())
		return &RmdirResponse{Status: types.NFS3ErrIO}, ctx.Context.Err()
	default:
	}

	clientIP := xdr.ExtractClientIP(ctx.ClientAddr)

	logger.Info("RMDIR: name='%s' dir=%x client=%s auth=%d", req.Name, req.DirHandle, clientIP, ctx.AuthFlavor)

	if err := validateRmdirRequest(req); err != nil {
		logger.Warn("RMDIR validation failed: name='%s' client=%s error=%v", req.Name, clientIP, err)
		return &RmdirResponse{Status: err.nfsStatus}, nil
	}

	parentHandle := metadata.FileHandle(req.DirHandle)
	parentAttr, err := metadataStore.GetFile(ctx.Context, parentHandle)
	if err != nil {
		if ctx.Context.Err() != nil {
			return &RmdirResponse{Status: types.NFS3ErrIO}, ctx.Context.Err()
		}
		logger.Warn("RMDIR failed: parent not found: dir=%x client=%s error=%v", req.DirHandle, clientIP, err)
		return &RmdirResponse{Status: types.NFS3ErrNoEnt}, nil
	}

	wccBefore := xdr.CaptureWccAttr(parentAttr)

	if parentAttr.Type != metadata.FileTypeDirectory {
		wccAfter := xdr.MetadataToNFS(parentAttr, xdr.ExtractFileID(parentHandle))
		return &RmdirResponse{Status: types.NFS3ErrNotDir, WccBefore: wccBefore, WccAfter: wccAfter}, nil
	}

	authCtx, err := BuildAuthContextWithMapping(ctx, metadataStore, parentHandle)
	if err != nil {
		parentAttr, _ = metadataStore.GetFile(ctx.Context, parentHandle)
		wccAfter := xdr.MetadataToNFS(parentAttr, xdr.ExtractFileID(parentHandle))

		if ctx.Context.Err() != nil {
			return &RmdirResponse{Status: types.NFS3ErrIO, WccBefore: wccBefore, WccAfter: wccAfter}, ctx.Context.Err()
		}
		logger.Error("RMDIR failed: failed to build auth context: name='%s' dir=%x client=%s error=%v",
			req.Name, req.DirHandle, clientIP, err)
		return &RmdirResponse{Status: types.NFS3ErrIO, WccBefore: wccBefore, WccAfter: wccAfter}, nil
	}

	select {
	case <-ctx.Context.Done():
		parentAttr, _ = metadataStore.GetFile(ctx.Context, parentHandle)
		wccAfter := xdr.MetadataToNFS(parentAttr, xdr.ExtractFileID(parentHandle))
		return &RmdirResponse{Status: types.NFS3ErrIO, WccBefore: wccBefore, WccAfter: wccAfter}, ctx.Context.Err()
	default:
	}

	if err := metadataStore.RemoveDirectory(authCtx, parentHandle, req.Name); err != nil {
		status := mapMetadataErrorToNFS(err)
		logger.Warn("RMDIR failed: name='%s' dir=%x client=%s error=%v status=%d",
			req.Name, req.DirHandle, clientIP, err, status)

		parentAttr, _ = metadataStore.GetFile(ctx.Context, parentHandle)
		wccAfter := xdr.MetadataToNFS(parentAttr, xdr.ExtractFileID(parentHandle))
		return &RmdirResponse{Status: status, WccBefore: wccBefore, WccAfter: wccAfter}, nil
	}

	parentAttr, _ = metadataStore.GetFile(ctx.Context, parentHandle)
	wccAfter := xdr.MetadataToNFS(parentAttr, xdr.ExtractFileID(parentHandle))

	logger.Info("RMDIR successful: name='%s' dir=%x client=%s", req.Name, req.DirHandle, clientIP)

	return &RmdirResponse{
		Status:    types.NFS3OK,
		WccBefore: wccBefore,
		WccAfter:  wccAfter,
	}, nil
}

// ============================================================================
// Request Validation
// ============================================================================

type rmdirValidationError struct {
	message   string
	nfsStatus uint32
}

func (e *rmdirValidationError) Error() string { return e.message }

func validateRmdirRequest(req *RmdirRequest) *rmdirValidationError {
	if len(req.DirHandle) == 0 {
		return &rmdirValidationError{message: "empty parent directory handle", nfsStatus: types.NFS3ErrBadHandle}
	}
	if len(req.DirHandle) > 64 {
		return &rmdirValidationError{
			message:   fmt.Sprintf("parent handle too long: %d bytes (max 64)", len(req.DirHandle)),
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}
	if len(req.DirHandle) < 8 {
		return &rmdirValidationError{
			message:   fmt.Sprintf("parent handle too short: %d bytes (min 8)", len(req.DirHandle)),
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}
	if req.Name == "" {
		return &rmdirValidationError{message: "empty directory name", nfsStatus: types.NFS3ErrInval}
	}
	if req.Name == "." {
		return &rmdirValidationError{message: "cannot remove '.'", nfsStatus: types.NFS3ErrInval}
	}
	if req.Name == ".." {
		return &rmdirValidationError{message: "cannot remove '..'", nfsStatus: types.NFS3ErrExist}
	}
	if len(req.Name) > 255 {
		return &rmdirValidationError{message: "directory name too long", nfsStatus: types.NFS3ErrNameTooLong}
	}
	if bytes.ContainsAny([]byte(req.Name), "/\x00") {
		return &rmdirValidationError{message: "directory name contains invalid character", nfsStatus: types.NFS3ErrInval}
	}
	return nil
}

// ============================================================================
// XDR Decoding
// ============================================================================

// DecodeRmdirRequest decodes a RMDIR request from XDR-encoded bytes.
//
//	struct RMDIR3args {
//	    diropargs3  object;
//	};
func DecodeRmdirRequest(data []byte) (*RmdirRequest, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("data too short: need at least 8 bytes, got %d", len(data))
	}

	reader := bytes.NewReader(data)
	req := &RmdirRequest{}

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

	logger.Debug("Decoded RMDIR request: handle_len=%d name='%s'", len(handle), name)

	return req, nil
}

// ============================================================================
// XDR Encoding
// ============================================================================

// Encode serializes the RmdirResponse into XDR-encoded bytes.
func (resp *RmdirResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer

	if err := binary.Write(&buf, binary.BigEndian, resp.Status); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}

	if err := xdr.EncodeWccData(&buf, resp.WccBefore, resp.WccAfter); err != nil {
		return nil, fmt.Errorf("encode wcc data: %w", err)
	}

	logger.Debug("Encoded RMDIR response: %d bytes status=%d", buf.Len(), resp.Status)
	return buf.Bytes(), nil
}
