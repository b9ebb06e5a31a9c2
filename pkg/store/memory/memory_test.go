package memory

import (
	"testing"

	"github.com/marmos91/yak/pkg/store"
	storetesting "github.com/marmos91/yak/pkg/store/testing"
)

func TestMemoryObjectStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) store.ObjectStore {
			return NewMemoryObjectStore()
		},
	}
	suite.Run(t)
}
