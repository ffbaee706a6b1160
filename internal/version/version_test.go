package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoDefault(t *testing.T) {
	info := Info()
	assert.Contains(t, info, "replybot dev")
	assert.Contains(t, info, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestInfoWithBuildValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	t.Cleanup(func() {
		Version, Commit, Date = origVersion, origCommit, origDate
	})

	Version = "1.2.3"
	Commit = "abc1234567890"
	Date = "2026-01-15"

	info := Info()
	assert.Contains(t, info, "replybot 1.2.3")
	assert.Contains(t, info, "commit: abc1234,")
	assert.NotContains(t, info, "abc1234567890")
	assert.Contains(t, info, "built: 2026-01-15")
	assert.Equal(t, "replybot/1.2.3", UserAgent())
}

func TestShort(t *testing.T) {
	assert.Equal(t, "abc", short("abc"))
	assert.Equal(t, "1234567", short("1234567"))
	assert.Equal(t, "1234567", short("123456789"))
}
