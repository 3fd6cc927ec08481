package memory

import (
	"testing"

	"rideshare/internal/storage/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Backend { return NewStore() })
}
