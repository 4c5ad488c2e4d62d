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

// FsInfoRequest represents a FSINFO request from an NFS client.
//
// RFC 1813 Section 3.3.19 specifies the FSINFO procedure as:
//
//	FSINFO3res NFSPROC3_FSINFO(FSINFO3args) = 19;
//
// FSINFO is called once, typically right after MOUNT, to discover server-wide
// capabilities such as preferred transfer sizes and supported operations.
type FsInfoRequest struct {
	// Handle identifies the filesystem (usually the root handle from MOUNT).
	Handle []byte
}

// FsInfoResponse represents the response to a FSINFO request.
type FsInfoResponse struct {
	NFSResponseBase

	// Attr contains post-operation attributes of the filesystem root object.
	Attr *types.NFSFileAttr

	// Rtmax is the maximum size in bytes of a READ request.
	Rtmax uint32
	// Rtpref is the preferred size in bytes of a READ request.
	Rtpref uint32
	// Rtmult is the suggested multiple for READ request sizes.
	Rtmult uint32

	// Wtmax is the maximum size in bytes of a WRITE request.
	Wtmax uint32
	// Wtpref is the preferred size in bytes of a WRITE request.
	Wtpref uint32
	// Wtmult is the suggested multiple for WRITE request sizes.
	Wtmult uint32

	// Dtpref is the preferred size of a READDIR request.
	Dtpref uint32

	// MaxFileSize is the maximum supported file size in bytes.
	MaxFileSize uint64

	// TimeDeltaSeconds and TimeDeltaNseconds express the server's time granularity.
	TimeDeltaSeconds  uint32
	TimeDeltaNseconds uint32

	// Properties is a bitmask of FSF_* flags (RFC 1813 Section 3.3.19).
	Properties uint32
}

// FsInfoContext is the context type used by the FSINFO handler; it is
// the same shape every other NFS v3 handler uses.
type FsInfoContext = NFSHandlerContext

// ============================================================================
// Protocol Handler
// ============================================================================

// FsInfo returns static, server-wide filesystem capabilities.
//
// This implements the NFS FSINFO procedure as defined in RFC 1813 Section 3.3.19.
//
// FSINFO complements PATHCONF (per-object POSIX properties) and FSSTAT
// (dynamic space/inode usage): it reports the transfer-size hints and
// feature bitmask that rarely, if ever, change for a given export.
func (h *DefaultNFSHandler) FsInfo(
	ctx *FsInfoContext,
	metadataStore metadata.MetadataStore,
	req *FsInfoRequest,
) (*FsInfoResponse, error) {
	clientIP := xdr.ExtractClientIP(ctx.ClientAddr)

	logger.Info("FSINFO: handle=%x client=%s auth=%d", req.Handle, clientIP, ctx.AuthFlavor)

	select {
	case <-ctx.Context.Done():
		logger.Warn("FSINFO cancelled: handle=%x client=%s error=%v", req.Handle, clientIP, ctx.Context.Err())
		return &FsInfoResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrIO}}, nil
	default:
	}

	if err := validateFsInfoHandle(req.Handle); err != nil {
		logger.Warn("FSINFO validation failed: client=%s error=%v", clientIP, err)
		return &FsInfoResponse{NFSResponseBase: NFSResponseBase{Status: err.nfsStatus}}, nil
	}

	fileHandle := metadata.FileHandle(req.Handle)

	attr, err := metadataStore.GetFile(ctx.Context, fileHandle)
	if err != nil {
		logger.Warn("FSINFO failed: handle not found: handle=%x client=%s error=%v", req.Handle, clientIP, err)
		return &FsInfoResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrNoEnt}}, nil
	}

	caps, err := metadataStore.GetFilesystemCapabilities(ctx.Context, fileHandle)
	if err != nil {
		logger.Error("FSINFO failed: could not get filesystem capabilities: handle=%x client=%s error=%v",
			req.Handle, clientIP, err)
		return &FsInfoResponse{NFSResponseBase: NFSResponseBase{Status: types.NFS3ErrIO}}, nil
	}

	fileid := xdr.ExtractFileID(fileHandle)
	nfsAttr := xdr.MetadataToNFS(attr, fileid)

	var properties uint32 = types.FSFCanSetTime
	if caps.SupportsHardLinks {
		properties |= types.FSFLink
	}
	if caps.SupportsSymlinks {
		properties |= types.FSFSymlink
	}
	if !caps.CaseSensitive || caps.CasePreserving {
		// FSF_HOMOGENEOUS: pathconf information is the same across every
		// object in the export, which holds for this single-backend server.
		properties |= types.FSFHomogeneous
	}

	timeDelta := caps.TimestampResolution
	if timeDelta <= 0 {
		timeDelta = 1
	}
	timeDeltaSeconds := uint32(timeDelta / 1e9)
	timeDeltaNseconds := uint32(timeDelta % 1e9)

	logger.Info("FSINFO successful: handle=%x client=%s", req.Handle, clientIP)

	return &FsInfoResponse{
		NFSResponseBase:   NFSResponseBase{Status: types.NFS3OK},
		Attr:              nfsAttr,
		Rtmax:             caps.MaxReadSize,
		Rtpref:            caps.PreferredReadSize,
		Rtmult:            4096,
		Wtmax:             caps.MaxWriteSize,
		Wtpref:            caps.PreferredWriteSize,
		Wtmult:            4096,
		Dtpref:            caps.PreferredReadSize,
		MaxFileSize:       caps.MaxFileSize,
		TimeDeltaSeconds:  timeDeltaSeconds,
		TimeDeltaNseconds: timeDeltaNseconds,
		Properties:        properties,
	}, nil
}

// ============================================================================
// Request Validation
// ============================================================================

type fsInfoValidationError struct {
	message   string
	nfsStatus uint32
}

func (e *fsInfoValidationError) Error() string { return e.message }

func validateFsInfoHandle(handle []byte) *fsInfoValidationError {
	if len(handle) == 0 {
		return &fsInfoValidationError{message: "empty file handle", nfsStatus: types.NFS3ErrBadHandle}
	}
	if len(handle) > 64 {
		return &fsInfoValidationError{
			message:   fmt.Sprintf("file handle too long: %d bytes (max 64)", len(handle)),
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}
	if len(handle) < 8 {
		return &fsInfoValidationError{
			message:   fmt.Sprintf("file handle too short: %d bytes (min 8)", len(handle)),
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}
	return nil
}

// ============================================================================
// XDR Decoding
// ============================================================================

// DecodeFsInfoRequest decodes a FSINFO request from XDR-encoded bytes.
//
//	struct FSINFO3args {
//	    nfs_fh3  fsroot;
//	};
func DecodeFsInfoRequest(data []byte) (*FsInfoRequest, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("data too short: need at least 4 bytes for handle length, got %d", len(data))
	}

	reader := bytes.NewReader(data)

	handle, err := xdr.DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("decode handle: %w", err)
	}

	logger.Debug("Decoded FSINFO request: handle_len=%d", len(handle))

	return &FsInfoRequest{Handle: handle}, nil
}

// ============================================================================
// XDR Encoding
// ============================================================================

// Encode serializes the FsInfoResponse into XDR-encoded bytes.
func (resp *FsInfoResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer

	if err := binary.Write(&buf, binary.BigEndian, resp.Status); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}

	if err := xdr.EncodeOptionalFileAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}

	if resp.Status != types.NFS3OK {
		logger.Debug("Encoded FSINFO error response: status=%d", resp.Status)
		return buf.Bytes(), nil
	}

	fields := []uint32{
		resp.Rtmax, resp.Rtpref, resp.Rtmult,
		resp.Wtmax, resp.Wtpref, resp.Wtmult,
		resp.Dtpref,
	}
	for _, f := range fields {
		if err := binary.Write(&buf, binary.BigEndian, f); err != nil {
			return nil, fmt.Errorf("write transfer size field: %w", err)
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, resp.MaxFileSize); err != nil {
		return nil, fmt.Errorf("write maxfilesize: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, resp.TimeDeltaSeconds); err != nil {
		return nil, fmt.Errorf("write time_delta seconds: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, resp.TimeDeltaNseconds); err != nil {
		return nil, fmt.Errorf("write time_delta nseconds: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, resp.Properties); err != nil {
		return nil, fmt.Errorf("write properties: %w", err)
	}

	logger.Debug("Encoded FSINFO response: %d bytes status=%d", buf.Len(), resp.Status)
	return buf.Bytes(), nil
}
