package memstore

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/Match-Score-project/Match-Score/internal/docstore"
	"github.com/Match-Score-project/Match-Score/internal/docstore/storetest"
)

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store {
		log := zerolog.Nop()
		return New(&log)
	})
}
