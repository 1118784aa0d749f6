package main

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"igsync/pkg/ui"
)

func TestUniqueEntitiesDropsNormalizedDuplicates(t *testing.T) {
	ui.SetOutput(io.Discard)
	t.Cleanup(func() { ui.SetOutput(nil) })

	got := uniqueEntities([]string{"nasa", "@nasa", " nasa/", "esa", "@esa"})
	assert.Equal(t, []string{"nasa", "esa"}, got)
}
