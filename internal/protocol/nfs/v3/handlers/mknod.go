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

// DeviceSpec carries the major/minor device numbers for block and char devices.
type DeviceSpec struct {
	SpecData1 uint32
	SpecData2 uint32
}

// MknodRequest represents a MKNOD request from an NFS client.
//
// RFC 1813 Section 3.3.11 specifies the MKNOD procedure as:
//
//	MKNOD3res NFSPROC3_MKNOD(MKNOD3args) = 11;
type MknodRequest struct {
	// DirHandle is the file handle of the parent directory.
	DirHandle []byte

	// Name is the name of the special file to create.
	Name string

	// Type is the ftype3 value: NF3Chr, NF3Blk, NF3Sock, or NF3Fifo.
	Type uint32

	// Attr contains the attributes to set on the new special file.
	Attr *metadata.SetAttrs

	// Spec carries the device major/minor numbers, only meaningful for NF3Chr/NF3Blk.
	Spec DeviceSpec
}

// MknodResponse represents the response to a MKNOD request.
type MknodResponse struct {
	Status uint32

	Handle []byte
	Attr   *types.NFSFileAttr

	WccBefore *types.WccAttr
	WccAfter  *types.NFSFileAttr
}

// MknodContext contains the context information needed to process a MKNOD request.
type MknodContext struct {
	Context    context.Context
	ClientAddr string
	AuthFlavor uint32
	UID        *uint32
	GID        *uint32
	GIDs       []uint32
}

func (c *MknodContext) GetContext() context.Context { return c.Context }
func (c *MknodContext) GetClientAddr() string       { return c.ClientAddr }
func (c *MknodContext) GetAuthFlavor() uint32       { return c.AuthFlavor }
func (c *MknodContext) GetUID() *uint32             { return c.UID }
func (c *MknodContext) GetGID() *uint32             { return c.GID }
func (c *MknodContext) GetGIDs() []uint32           { return c.GIDs }

// ============================================================================
// Protocol Handler
// ============================================================================

// Mknod creates a special file (device, socket, or FIFO) within a parent directory.
//
// This implements the NFS MKNOD procedure as defined in RFC 1813 Section 3.3.11.
func (h *DefaultNFSHandler) Mknod(
	ctx *MknodContext,
	metadataStore metadata.MetadataStore,
	req *MknodRequest,
) (*MknodResponse, error) {
	select {
	case <-ctx.Context.Done():
		return &MknodResponse{Status: types.NFS3ErrIO}, ctx.Context.Err()
	default:
	}

	clientIP := xdr.ExtractClientIP(ctx.ClientAddr)

	logger.Info("MKNOD: name='%s' dir=%x type=%d client=%s auth=%d",
		req.Name, req.DirHandle, req.Type, clientIP, ctx.AuthFlavor)

	if err := validateMknodRequest(req); err != nil {
		logger.Warn("MKNOD validation failed: name='%s' client=%s error=%v", req.Name, clientIP, err)
		return &MknodResponse{Status: err.nfsStatus}, nil
	}

	fileType, err := nfsTypeToMetadataFileType(req.Type)
	if err != nil {
		logger.Warn("MKNOD failed: unsupported type=%d name='%s' client=%s", req.Type, req.Name, clientIP)
		return &MknodResponse{Status: types.NFS3ErrBadType}, nil
	}

	parentHandle := metadata.FileHandle(req.DirHandle)
	parentAttr, err := metadataStore.GetFile(ctx.Context, parentHandle)
	if err != nil {
		if ctx.Context.Err() != nil {
			return &MknodResponse{Status: types.NFS3ErrIO}, ctx.Context.Err()
		}
		logger.Warn("MKNOD failed: parent not found: dir=%x client=%s error=%v", req.DirHandle, clientIP, err)
		return &MknodResponse{Status: types.NFS3ErrNoEnt}, nil
	}

	wccBefore := xdr.CaptureWccAttr(parentAttr)

	authCtx, err := BuildAuthContextWithMapping(ctx, metadataStore, parentHandle)
	if err != nil {
		parentAttr, _ = metadataStore.GetFile(ctx.Context, parentHandle)
		wccAfter := xdr.MetadataToNFS(parentAttr, xdr.ExtractFileID(parentHandle))

		if ctx.Context.Err() != nil {
			return &MknodResponse{Status: types.NFS3ErrIO, WccBefore: wccBefore, WccAfter: wccAfter}, ctx.Context.Err()
		}
		logger.Error("MKNOD failed: failed to build auth context: name='%s' dir=%x client=%s error=%v",
			req.Name, req.DirHandle, clientIP, err)
		return &MknodResponse{Status: types.NFS3ErrIO, WccBefore: wccBefore, WccAfter: wccAfter}, nil
	}

	if parentAttr.Type != metadata.FileTypeDirectory {
		wccAfter := xdr.MetadataToNFS(parentAttr, xdr.ExtractFileID(parentHandle))
		return &MknodResponse{Status: types.NFS3ErrNotDir, WccBefore: wccBefore, WccAfter: wccAfter}, nil
	}

	if _, _, err := metadataStore.Lookup(authCtx, parentHandle, req.Name); err == nil {
		parentAttr, _ = metadataStore.GetFile(ctx.Context, parentHandle)
		wccAfter := xdr.MetadataToNFS(parentAttr, xdr.ExtractFileID(parentHandle))
		return &MknodResponse{Status: types.NFS3ErrExist, WccBefore: wccBefore, WccAfter: wccAfter}, nil
	}

	specAttr := &metadata.FileAttr{
		Type: fileType,
		Mode: 0644,
	}
	if authCtx.Identity.UID != nil {
		specAttr.UID = *authCtx.Identity.UID
	}
	if authCtx.Identity.GID != nil {
		specAttr.GID = *authCtx.Identity.GID
	}
	if req.Attr != nil {
		if req.Attr.SetMode {
			specAttr.Mode = req.Attr.Mode
		}
		if req.Attr.SetUID {
			specAttr.UID = req.Attr.UID
		}
		if req.Attr.SetGID {
			specAttr.GID = req.Attr.GID
		}
	}

	newHandle, err := metadataStore.CreateSpecialFile(authCtx, parentHandle, req.Name, fileType, specAttr,
		req.Spec.SpecData1, req.Spec.SpecData2)
	if err != nil {
		status := mapMetadataErrorToNFS(err)
		logger.Error("MKNOD failed: store error: name='%s' client=%s error=%v", req.Name, clientIP, err)

		parentAttr, _ = metadataStore.GetFile(ctx.Context, parentHandle)
		wccAfter := xdr.MetadataToNFS(parentAttr, xdr.ExtractFileID(parentHandle))
		return &MknodResponse{Status: status, WccBefore: wccBefore, WccAfter: wccAfter}, nil
	}

	newAttr, err := metadataStore.GetFile(ctx.Context, newHandle)
	if err != nil {
		logger.Error("MKNOD: failed to get new special file attributes: handle=%x error=%v", newHandle, err)
		return &MknodResponse{Status: types.NFS3ErrIO}, nil
	}

	nfsAttr := xdr.MetadataToNFS(newAttr, xdr.ExtractFileID(newHandle))

	parentAttr, _ = metadataStore.GetFile(ctx.Context, parentHandle)
	wccAfter := xdr.MetadataToNFS(parentAttr, xdr.ExtractFileID(parentHandle))

	logger.Info("MKNOD successful: name='%s' handle=%x type=%d client=%s", req.Name, newHandle, req.Type, clientIP)

	return &MknodResponse{
		Status:    types.NFS3OK,
		Handle:    newHandle,
		Attr:      nfsAttr,
		WccBefore: wccBefore,
		WccAfter:  wccAfter,
	}, nil
}

// nfsTypeToMetadataFileType maps an ftype3 value to the store's FileType enum.
// Only device, socket, and fifo types are valid for MKNOD; regular files,
// directories, and symlinks must go through CREATE/MKDIR/SYMLINK instead.
func nfsTypeToMetadataFileType(nfsType uint32) (metadata.FileType, error) {
	switch nfsType {
	case types.NF3Chr:
		return metadata.FileTypeChar, nil
	case types.NF3Blk:
		return metadata.FileTypeBlock, nil
	case types.NF3Sock:
		return metadata.FileTypeSocket, nil
	case types.NF3Fifo:
		return metadata.FileTypeFifo, nil
	default:
		return 0, fmt.Errorf("unsupported mknod type: %d", nfsType)
	}
}

// ============================================================================
// Request Validation
// ============================================================================

type mknodValidationError struct {
	message   string
	nfsStatus uint32
}

func (e *mknodValidationError) Error() string { return e.message }

func validateMknodRequest(req *MknodRequest) *mknodValidationError {
	if len(req.DirHandle) == 0 {
		return &mknodValidationError{message: "empty parent directory handle", nfsStatus: types.NFS3ErrBadHandle}
	}
	if len(req.DirHandle) > 64 {
		return &mknodValidationError{
			message:   fmt.Sprintf("parent handle too long: %d bytes (max 64)", len(req.DirHandle)),
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}
	if len(req.DirHandle) < 8 {
		return &mknodValidationError{
			message:   fmt.Sprintf("parent handle too short: %d bytes (min 8)", len(req.DirHandle)),
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}
	if req.Name == "" || req.Name == "." || req.Name == ".." {
		return &mknodValidationError{message: "invalid special file name", nfsStatus: types.NFS3ErrInval}
	}
	if len(req.Name) > 255 {
		return &mknodValidationError{message: "special file name too long", nfsStatus: types.NFS3ErrNameTooLong}
	}
	if bytes.ContainsAny([]byte(req.Name), "/\x00") {
		return &mknodValidationError{message: "special file name contains invalid character", nfsStatus: types.NFS3ErrInval}
	}
	switch req.Type {
	case types.NF3Chr, types.NF3Blk, types.NF3Sock, types.NF3Fifo:
	default:
		return &mknodValidationError{
			message:   fmt.Sprintf("invalid mknod type: %d", req.Type),
			nfsStatus: types.NFS3ErrBadType,
		}
	}
	return nil
}

// ============================================================================
// XDR Decoding
// ============================================================================

// DecodeMknodRequest decodes a MKNOD request from XDR-encoded bytes.
//
//	struct MKNOD3args {
//	    diropargs3  where;
//	    mknoddata3  what;  // ftype3 + sattr3 (+ specdata3 for char/block)
//	};
func DecodeMknodRequest(data []byte) (*MknodRequest, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("data too short: need at least 12 bytes, got %d", len(data))
	}

	reader := bytes.NewReader(data)
	req := &MknodRequest{}

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

	var ftype uint32
	if err := binary.Read(reader, binary.BigEndian, &ftype); err != nil {
		return nil, fmt.Errorf("decode type: %w", err)
	}
	req.Type = ftype

	attr, err := xdr.DecodeSetAttrs(reader)
	if err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	req.Attr = attr

	if ftype == types.NF3Chr || ftype == types.NF3Blk {
		var spec DeviceSpec
		if err := binary.Read(reader, binary.BigEndian, &spec.SpecData1); err != nil {
			return nil, fmt.Errorf("decode specdata1: %w", err)
		}
		if err := binary.Read(reader, binary.BigEndian, &spec.SpecData2); err != nil {
			return nil, fmt.Errorf("decode specdata2: %w", err)
		}
		req.Spec = spec
	}

	logger.Debug("Decoded MKNOD request: handle_len=%d name='%s' type=%d", len(handle), name, ftype)

	return req, nil
}

// ============================================================================
// XDR Encoding
// ============================================================================

// Encode serializes the MknodResponse into XDR-encoded bytes.
func (resp *MknodResponse) Encode() ([]byte, error) {
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

	logger.Debug("Encoded MKNOD response: %d bytes status=%d", buf.Len(), resp.Status)
	return buf.Bytes(), nil
}
