package whisper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveEnginePathFindsLibexecSibling(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	binDir := filepath.Join(root, "bin")
	engineDir := filepath.Join(root, "libexec", "whisper")
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	require.NoError(t, os.MkdirAll(engineDir, 0o755))

	scribe := filepath.Join(binDir, "scribe")
	require.NoError(t, os.WriteFile(scribe, []byte(""), 0o755))

	enginePath := filepath.Join(engineDir, engineBinaryName())
	require.NoError(t, os.WriteFile(enginePath, []byte(""), 0o755))

	resolved, err := ResolveEnginePath(scribe)
	require.NoError(t, err)
	require.Equal(t, enginePath, resolved)
}

func TestResolveEnginePathFindsBinarySibling(t *testing.T) {
	t.Parallel()

	binDir := t.TempDir()
	scribe := filepath.Join(binDir, "scribe")
	require.NoError(t, os.WriteFile(scribe, []byte(""), 0o755))

	enginePath := filepath.Join(binDir, engineBinaryName())
	require.NoError(t, os.WriteFile(enginePath, []byte(""), 0o755))

	resolved, err := ResolveEnginePath(scribe)
	require.NoError(t, err)
	require.Equal(t, enginePath, resolved)
}

func TestResolveEnginePathMissing(t *testing.T) {
	// Empty PATH keeps the LookPath fallback from finding a system install.
	// t.Setenv means no t.Parallel here.
	t.Setenv("PATH", t.TempDir())

	scribe := filepath.Join(t.TempDir(), "bin", "scribe")
	require.NoError(t, os.MkdirAll(filepath.Dir(scribe), 0o755))
	require.NoError(t, os.WriteFile(scribe, []byte(""), 0o755))

	_, err := ResolveEnginePath(scribe)
	require.Error(t, err)
	require.Contains(t, err.Error(), "whisper engine not found")
}

func TestEnsureExecutableRejectsDirectoriesAndPlainFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.Error(t, ensureExecutable(dir))

	plain := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(plain, []byte(""), 0o644))
	require.Error(t, ensureExecutable(plain))

	executable := filepath.Join(dir, "bin")
	require.NoError(t, os.WriteFile(executable, []byte(""), 0o755))
	require.NoError(t, ensureExecutable(executable))
}

func TestIsMissingSharedLibraryError(t *testing.T) {
	t.Parallel()

	require.True(t, isMissingSharedLibraryError("error while loading shared libraries: libwhisper.so.1: cannot open shared object file"))
	require.True(t, isMissingSharedLibraryError("dyld: Library not loaded: @rpath/libwhisper.dylib"))
	require.False(t, isMissingSharedLibraryError("some other runtime error"))
	require.False(t, isMissingSharedLibraryError(""))
}

func TestIsIllegalInstructionError(t *testing.T) {
	t.Parallel()

	require.True(t, isIllegalInstructionError("signal: illegal instruction (core dumped)"))
	require.False(t, isIllegalInstructionError("some other runtime error"))
	require.False(t, isIllegalInstructionError(""))
}
