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

// ReadDirRequest represents a READDIR request from an NFS client.
//
// RFC 1813 Section 3.3.16 specifies the READDIR procedure as:
//
//	READDIR3res NFSPROC3_READDIR(READDIR3args) = 16;
//
// Unlike READDIRPLUS, READDIR returns only the basic directory entry
// information (fileid, name, cookie) without attributes or file handles.
type ReadDirRequest struct {
	// DirHandle is the file handle of the directory to read.
	DirHandle []byte

	// Cookie is the position in the directory to start reading from.
	Cookie uint64

	// CookieVerf is a verifier to detect directory modifications.
	CookieVerf uint64

	// Count is the maximum size in bytes of the response.
	Count uint32
}

// ReadDirResponse represents the response to a READDIR request.
type ReadDirResponse struct {
	Status uint32

	// DirAttr contains post-operation attributes of the directory. Optional.
	DirAttr *types.NFSFileAttr

	// CookieVerf is the directory verifier, echoed on subsequent requests.
	CookieVerf uint64

	// Entries is the list of directory entries.
	Entries []*DirEntry

	// Eof indicates whether this is the last batch of entries.
	Eof bool
}

// DirEntry represents a single basic directory entry.
type DirEntry struct {
	Fileid uint64
	Name   string
	Cookie uint64
}

// ReadDirContext is the context type used by the READDIR handler; it is
// the same shape every other NFS v3 handler uses.
type ReadDirContext = NFSHandlerContext

// ============================================================================
// Protocol Handler
// ============================================================================

// ReadDir lists the entries of a directory.
//
// This implements the NFS READDIR procedure as defined in RFC 1813 Section 3.3.16.
func (h *DefaultNFSHandler) ReadDir(
	ctx *ReadDirContext,
	metadataStore metadata.MetadataStore,
	req *ReadDirRequest,
) (*ReadDirResponse, error) {
	clientIP := xdr.ExtractClientIP(ctx.ClientAddr)

	logger.Info("READDIR: dir=%x cookie=%d count=%d client=%s auth=%d",
		req.DirHandle, req.Cookie, req.Count, clientIP, ctx.AuthFlavor)

	select {
	case <-ctx.Context.Done():
		logger.Warn("READDIR cancelled: dir=%x client=%s error=%v", req.DirHandle, clientIP, ctx.Context.Err())
		return &ReadDirResponse{Status: types.NFS3ErrIO}, nil
	default:
	}

	if err := validateReadDirRequest(req); err != nil {
		logger.Warn("READDIR validation failed: dir=%x client=%s error=%v", req.DirHandle, clientIP, err)
		return &ReadDirResponse{Status: err.nfsStatus}, nil
	}

	dirHandle := metadata.FileHandle(req.DirHandle)
	dirAttr, err := metadataStore.GetFile(ctx.Context, dirHandle)
	if err != nil {
		logger.Warn("READDIR failed: directory not found: dir=%x client=%s error=%v", req.DirHandle, clientIP, err)
		return &ReadDirResponse{Status: types.NFS3ErrNoEnt}, nil
	}

	dirID := xdr.ExtractFileID(dirHandle)
	nfsDirAttr := xdr.MetadataToNFS(dirAttr, dirID)

	if dirAttr.Type != metadata.FileTypeDirectory {
		logger.Warn("READDIR failed: handle not a directory: dir=%x type=%d client=%s",
			req.DirHandle, dirAttr.Type, clientIP)
		return &ReadDirResponse{Status: types.NFS3ErrNotDir, DirAttr: nfsDirAttr}, nil
	}

	authCtx, err := BuildAuthContextWithMapping(ctx, metadataStore, dirHandle)
	if err != nil {
		logger.Error("READDIR failed: failed to build auth context: dir=%x client=%s error=%v",
			req.DirHandle, clientIP, err)
		return &ReadDirResponse{Status: types.NFS3ErrIO, DirAttr: nfsDirAttr}, nil
	}

	page, err := metadataStore.ReadDirectory(authCtx, dirHandle, "", req.Count)
	if err != nil {
		status := mapMetadataErrorToNFS(err)
		logger.Error("READDIR failed: error retrieving entries: dir=%x client=%s error=%v", req.DirHandle, clientIP, err)
		return &ReadDirResponse{Status: status, DirAttr: nfsDirAttr}, nil
	}

	entries := make([]*DirEntry, 0, len(page.Entries))
	for i, entry := range page.Entries {
		entries = append(entries, &DirEntry{
			Fileid: entry.ID,
			Name:   entry.Name,
			Cookie: uint64(i + 1),
		})
	}

	eof := !page.HasMore

	logger.Info("READDIR successful: dir=%x entries=%d eof=%v client=%s", req.DirHandle, len(entries), eof, clientIP)

	return &ReadDirResponse{
		Status:     types.NFS3OK,
		DirAttr:    nfsDirAttr,
		CookieVerf: 0,
		Entries:    entries,
		Eof:        eof,
	}, nil
}

// ============================================================================
// Request Validation
// ============================================================================

type readDirValidationError struct {
	message   string
	nfsStatus uint32
}

func (e *readDirValidationError) Error() string { return e.message }

func validateReadDirRequest(req *ReadDirRequest) *readDirValidationError {
	if len(req.DirHandle) == 0 {
		return &readDirValidationError{message: "empty directory handle", nfsStatus: types.NFS3ErrBadHandle}
	}
	if len(req.DirHandle) > 64 {
		return &readDirValidationError{
			message:   fmt.Sprintf("directory handle too long: %d bytes (max 64)", len(req.DirHandle)),
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}
	if len(req.DirHandle) < 8 {
		return &readDirValidationError{
			message:   fmt.Sprintf("directory handle too short: %d bytes (min 8)", len(req.DirHandle)),
			nfsStatus: types.NFS3ErrBadHandle,
		}
	}
	if req.Count == 0 {
		return &readDirValidationError{message: "count cannot be zero", nfsStatus: types.NFS3ErrInval}
	}
	const maxReasonableSize = 1024 * 1024
	if req.Count > maxReasonableSize {
		return &readDirValidationError{
			message:   fmt.Sprintf("count too large: %d bytes (max %d)", req.Count, maxReasonableSize),
			nfsStatus: types.NFS3ErrInval,
		}
	}
	return nil
}

// ============================================================================
// XDR Decoding
// ============================================================================

// DecodeReadDirRequest decodes a READDIR request from XDR-encoded bytes.
//
//	struct READDIR3args {
//	    nfs_fh3      dir;
//	    cookie3      cookie;
//	    cookieverf3  cookieverf;
//	    count3       count;
//	};
func DecodeReadDirRequest(data []byte) (*ReadDirRequest, error) {
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

	dirHandle := make([]byte, handleLen)
	if err := binary.Read(reader, binary.BigEndian, &dirHandle); err != nil {
		return nil, fmt.Errorf("failed to read handle data: %w", err)
	}

	padding := (4 - (handleLen % 4)) % 4
	for i := range padding {
		if _, err := reader.ReadByte(); err != nil {
			return nil, fmt.Errorf("failed to read handle padding byte %d: %w", i, err)
		}
	}

	var cookie uint64
	if err := binary.Read(reader, binary.BigEndian, &cookie); err != nil {
		return nil, fmt.Errorf("failed to read cookie: %w", err)
	}

	var cookieVerf uint64
	if err := binary.Read(reader, binary.BigEndian, &cookieVerf); err != nil {
		return nil, fmt.Errorf("failed to read cookieverf: %w", err)
	}

	var count uint32
	if err := binary.Read(reader, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read count: %w", err)
	}

	logger.Debug("Decoded READDIR request: handle_len=%d cookie=%d cookieverf=%d count=%d",
		handleLen, cookie, cookieVerf, count)

	return &ReadDirRequest{
		DirHandle:  dirHandle,
		Cookie:     cookie,
		CookieVerf: cookieVerf,
		Count:      count,
	}, nil
}

// ============================================================================
// XDR Encoding
// ============================================================================

// Encode serializes the ReadDirResponse into XDR-encoded bytes.
func (resp *ReadDirResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer

	if err := binary.Write(&buf, binary.BigEndian, resp.Status); err != nil {
		return nil, fmt.Errorf("failed to write status: %w", err)
	}

	if err := xdr.EncodeOptionalFileAttr(&buf, resp.DirAttr); err != nil {
		return nil, fmt.Errorf("failed to encode directory attributes: %w", err)
	}

	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}

	if err := binary.Write(&buf, binary.BigEndian, resp.CookieVerf); err != nil {
		return nil, fmt.Errorf("failed to write cookieverf: %w", err)
	}

	for _, entry := range resp.Entries {
		if err := binary.Write(&buf, binary.BigEndian, uint32(1)); err != nil {
			return nil, fmt.Errorf("failed to write value_follows flag: %w", err)
		}
		if err := binary.Write(&buf, binary.BigEndian, entry.Fileid); err != nil {
			return nil, fmt.Errorf("failed to write fileid for entry '%s': %w", entry.Name, err)
		}

		nameLen := uint32(len(entry.Name))
		if err := binary.Write(&buf, binary.BigEndian, nameLen); err != nil {
			return nil, fmt.Errorf("failed to write name length for entry '%s': %w", entry.Name, err)
		}
		if _, err := buf.Write([]byte(entry.Name)); err != nil {
			return nil, fmt.Errorf("failed to write name data for entry '%s': %w", entry.Name, err)
		}
		padding := (4 - (nameLen % 4)) % 4
		for i := range padding {
			if err := buf.WriteByte(0); err != nil {
				return nil, fmt.Errorf("failed to write name padding byte %d for entry '%s': %w", i, entry.Name, err)
			}
		}

		if err := binary.Write(&buf, binary.BigEndian, entry.Cookie); err != nil {
			return nil, fmt.Errorf("failed to write cookie for entry '%s': %w", entry.Name, err)
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, uint32(0)); err != nil {
		return nil, fmt.Errorf("failed to write end-of-list marker: %w", err)
	}

	eofVal := uint32(0)
	if resp.Eof {
		eofVal = 1
	}
	if err := binary.Write(&buf, binary.BigEndian, eofVal); err != nil {
		return nil, fmt.Errorf("failed to write eof flag: %w", err)
	}

	logger.Debug("Encoded READDIR response: %d bytes status=%d entries=%d eof=%v",
		buf.Len(), resp.Status, len(resp.Entries), resp.Eof)

	return buf.Bytes(), nil
}
