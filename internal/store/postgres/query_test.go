package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

func TestPageQuery(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q, args := pageQuery("SELECT 1 FROM signals WHERE deployment_id = $1", []any{"d1"}, "created_at",
		domain.ListOpts{Since: &since, Limit: 20, Offset: 40})

	assert.Equal(t,
		"SELECT 1 FROM signals WHERE deployment_id = $1 AND created_at >= $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4", q)
	assert.Equal(t, []any{"d1", since, 20, 40}, args)
}

func TestPageQueryNoOptions(t *testing.T) {
	q, args := pageQuery("SELECT 1 FROM audit_log WHERE TRUE", nil, "created_at", domain.ListOpts{})
	assert.Equal(t, "SELECT 1 FROM audit_log WHERE TRUE ORDER BY created_at DESC", q)
	assert.Empty(t, args)
}
