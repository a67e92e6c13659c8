package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDriversShipPairedFiles(t *testing.T) {
	var names [2][]string
	for i, driver := range []string{"sqlite", "postgres"} {
		ups, err := fs.Glob(FS, driver+"/*.up.sql")
		require.NoError(t, err)
		downs, err := fs.Glob(FS, driver+"/*.down.sql")
		require.NoError(t, err)
		require.NotEmpty(t, ups, driver)
		require.Len(t, downs, len(ups), driver)
		for _, u := range ups {
			names[i] = append(names[i], strings.TrimPrefix(u, driver+"/"))
		}
	}
	require.Equal(t, names[0], names[1], "drivers must share migration versions")
}
