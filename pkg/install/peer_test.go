package install

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/mpnp/pkg/errors"
	"github.com/matzehuels/mpnp/pkg/manifest"
)

// installedWithPeer lays out an installed package A declaring a peer on
// react, with react@linkedVersion linked in its dependency directory.
func installedWithPeer(t *testing.T, linkedVersion string) string {
	t.Helper()
	root := t.TempDir()
	pkgDir := filepath.Join(root, "A@1.0.0")
	writeManifest(t, pkgDir, map[string]any{
		"name": "A", "version": "1.0.0",
		"peerDependencies": deps("react", "^16.0.0"),
	})
	if linkedVersion != "" {
		reactDir := filepath.Join(root, "react@"+linkedVersion)
		writeManifest(t, reactDir, map[string]any{"name": "react", "version": linkedVersion})
		_, err := link(pkgDir, "react", reactDir)
		require.NoError(t, err)
	}
	return pkgDir
}

func TestValidatePeers(t *testing.T) {
	tests := []struct {
		name     string
		linked   string
		consumer manifest.Map
		code     errors.Code
	}{
		{"agreement", "16.2.0", manifest.NewMap("react", "16.2.0"), ""},
		{"conflict", "17.0.0", manifest.NewMap("react", "16.2.0"), errors.ErrCodePeerConflict},
		{"range satisfaction is not enough", "16.3.0", manifest.NewMap("react", "16.2.0"), errors.ErrCodePeerConflict},
		{"absent from consumer", "16.2.0", manifest.NewMap("vue", "3.0.0"), errors.ErrCodeUnmetPeer},
		{"not linked", "", manifest.NewMap("react", "16.2.0"), errors.ErrCodePeerConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkgDir := installedWithPeer(t, tt.linked)
			err := validatePeers(pkgDir, tt.consumer, nil)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
			assert.Contains(t, err.Error(), "A@1.0.0")
		})
	}
}

func TestValidatePeersWorkspaceVersion(t *testing.T) {
	ws := &Workspace{byName: map[string]*WorkspacePackage{
		"react": {Name: "react", Manifest: &manifest.Manifest{Name: "react", Version: "16.2.0"}},
	}}
	pkgDir := installedWithPeer(t, "16.2.0")
	assert.NoError(t, validatePeers(pkgDir, manifest.NewMap("react", Local), ws))
}
