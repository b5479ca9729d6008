package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginationLimit(t *testing.T) {
	assert.Equal(t, defaultPageSize, Pagination{}.Limit())
	assert.Equal(t, defaultPageSize, Pagination{PageSize: -5}.Limit())
	assert.Equal(t, 25, Pagination{PageSize: 25}.Limit())
	assert.Equal(t, maxPageSize, Pagination{PageSize: 10000}.Limit())
}

func TestPaginationOffset(t *testing.T) {
	assert.Zero(t, Pagination{}.Offset())
	assert.Zero(t, Pagination{Page: 1, PageSize: 20}.Offset())
	assert.Equal(t, 20, Pagination{Page: 2, PageSize: 20}.Offset())
	assert.Equal(t, 2*defaultPageSize, Pagination{Page: 3}.Offset())
}
