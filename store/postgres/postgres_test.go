package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/embedsync/cascade/logger"
)

func TestNew_RejectsInvalidTableNames(t *testing.T) {
	log := logger.Discard()

	for _, table := range []string{"", "Documents", "docs; drop table x", "1docs", `docs"`} {
		_, err := New(nil, table, log)
		assert.Error(t, err, "table %q", table)
	}

	for _, table := range []string{"documents", "cascade_docs", "d1"} {
		_, err := New(nil, table, log)
		assert.NoError(t, err, "table %q", table)
	}
}
