package memory

import (
	"testing"

	"github.com/dnfs3/dnfs3/pkg/metadata"
	metadatatesting "github.com/dnfs3/dnfs3/pkg/metadata/testing"
)

// TestMemoryMetadataStore runs the complete MetadataStore test suite
// against the MemoryMetadataStore implementation.
func TestMemoryMetadataStore(t *testing.T) {
	suite := &metadatatesting.StoreTestSuite{
		NewStore: func() metadata.MetadataStore {
			return NewMemoryMetadataStoreWithDefaults()
		},
	}

	suite.Run(t)
}
