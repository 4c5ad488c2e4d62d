package handlers

import (
	"bytes"
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

// GetAttrRequest represents a GETATTR request from an NFS client.
//
// RFC 1813 Section 3.3.1 specifies the GETATTR procedure as:
//
//	GETATTR3res NFSPROC3_GETATTR(GETATTR3args) = 1;
type GetAttrRequest struct {
	// Handle is the file handle of the object whose attributes are wanted.
	Handle []byte
}

// GetAttrResponse represents the response to a GETATTR request.
type GetAttrResponse struct {
	// Status indicates the result of the getattr operation.
	Status uint32

	// Attr holds the object's attributes. Only present when Status == types.NFS3OK.
	Attr *types.NFSFileAttr
}

// GetAttrContext is the context type used by the GETATTR handler; it is
// the same shape every other NFS v3 handler uses.
type GetAttrContext = NFSHandlerContext

// ============================================================================
// Protocol Handler
// ============================================================================

// GetAttr returns the attributes for a file system object.
//
// This implements the NFS GETATTR procedure as defined in RFC 1813 Section 3.3.1.
//
// GETATTR never returns WCC data: it has no parent directory to report
// before/after state for, it simply reflects the current attributes of the
// object named by the handle.
func (h *DefaultNFSHandler) GetAttr(
	ctx *GetAttrContext,
	metadataStore metadata.MetadataStore,
	req *GetAttrRequest,
) (*GetAttrResponse, error) {
	clientIP := xdr.ExtractClientIP(ctx.ClientAddr)

	logger.Info("GETATTR: handle=%x client=%s auth=%d", req.Handle, clientIP, ctx.AuthFlavor)

	select {
	case <-ctx.Context.Done():
		logger.Warn("GETATTR cancelled: handle=%x client=%s error=%v", req.Handle, clientIP, ctx.Context.Err())
		return &GetAttrResponse{Status: types.NFS3ErrIO}, nil
	default:
	}

	if err := validateGetAttrRequest(req); err != nil {
		logger.Warn("GETATTR validation failed: handle=%x client=%s error=%v", req.Handle, clientIP, err)
		return &GetAttrResponse{Status: err.nfsStatus}, nil
	}

	handle := metadata.FileHandle(req.Handle)

	attr, err := metadataStore.GetFile(ctx.Context, handle)
	if err != nil {
		status := mapMetadataErrorToNFS(err)
		logger.Warn("GETATTR failed: handle=%x client=%s error=%v status=%d", req.Handle, clientIP, err, status)
		return &GetAttrResponse{Status: status}, nil
	}

	fileID := xdr.ExtractFileID(handle)
	nfsAttr := xdr.MetadataToNFS(attr, fileID)

	logger.Debug("GETATTR successful: handle=%x type=%d size=%d client=%s",
		req.Handle, nfsAttr.Type, nfsAttr.Size, clientIP)

	return &GetAttrResponse{
		Status: types.NFS3OK,
		Attr:   nfsAttr,
	}, nil
}

// ============================================================================
// Request Validation
// ============================================================================

type getAttrValidationError struct {
	message   string
	nfsStatus uint32
}

func (e *getAttrValidationError) Error() string {
	return e.message
}

func validateGetAttrRequest(req *GetAttrRequest) *getAttrValidationError {
	if len(req.Handle) == 0 {
		return &getAttrValidationError{
			message:   "empty file handle",
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}

	if len(req.Handle) > 64 {
		return &getAttrValidationError{
			message:   fmt.Sprintf("file handle too long: %d bytes (max 64)", len(req.Handle)),
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}

	if len(req.Handle) < 8 {
		return &getAttrValidationError{
			message:   fmt.Sprintf("file handle too short: %d bytes (min 8)", len(req.Handle)),
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}

	return nil
}

// ============================================================================
// XDR Decoding
// ============================================================================

// DecodeGetAttrRequest decodes a GETATTR request from XDR-encoded bytes.
func DecodeGetAttrRequest(data []byte) (*GetAttrRequest, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("data too short: need at least 4 bytes for handle length, got %d", len(data))
	}

	reader := bytes.NewReader(data)

	var handleLen uint32
	if err := binary.Read(reader, binary.BigEndian, &handleLen); err != nil {
		return nil, fmt.Errorf("failed to read handle length: %w", err)
	}

	if handleLen > 64 {
		return nil, fmt.Errorf("invalid handle length: %d (max 64)", handleLen)
	}

	if handleLen == 0 {
		return nil, fmt.Errorf("invalid handle length: 0 (must be > 0)")
	}

	handle := make([]byte, handleLen)
	if err := binary.Read(reader, binary.BigEndian, &handle); err != nil {
		return nil, fmt.Errorf("failed to read handle data: %w", err)
	}

	return &GetAttrRequest{Handle: handle}, nil
}

// ============================================================================
// XDR Encoding
// ============================================================================

// Encode serializes the GetAttrResponse into XDR-encoded bytes.
func (resp *GetAttrResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer

	if err := binary.Write(&buf, binary.BigEndian, resp.Status); err != nil {
		return nil, fmt.Errorf("failed to write status: %w", err)
	}

	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}

	if err := xdr.EncodeFileAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("failed to encode attributes: %w", err)
	}

	return buf.Bytes(), nil
}
