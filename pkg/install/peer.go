package install

import (
	"github.com/matzehuels/mpnp/pkg/errors"
	"github.com/matzehuels/mpnp/pkg/manifest"
)

// validatePeers checks the peer dependencies of the package installed at
// pkgDir against the resolved set of the consumer linking it. Every peer
// must be present in consumer, and the version consumer resolved must equal,
// as a string, the version of the peer instance linked under pkgDir.
func validatePeers(pkgDir string, consumer manifest.Map, ws *Workspace) error {
	m, err := manifest.Read(pkgDir)
	if err != nil {
		return err
	}

	for _, peer := range m.PeerDependencies.Entries() {
		want, ok := consumer.Get(peer.Key)
		if !ok {
			return errors.New(errors.ErrCodeUnmetPeer,
				"%s requires peer %s@%s, which is not provided by its consumer (%s)", m.Key(), peer.Key, peer.Value, pkgDir)
		}
		if want == Local {
			if wp, ok := ws.Get(peer.Key); ok {
				want = wp.Manifest.Version
			}
		}

		linked, err := manifest.Read(linkPath(pkgDir, peer.Key))
		if err != nil {
			return errors.Wrap(errors.ErrCodePeerConflict, err,
				"%s requires peer %s@%s, but no instance is linked in %s", m.Key(), peer.Key, want, ModulesDir(pkgDir))
		}
		if linked.Version != want {
			return errors.New(errors.ErrCodePeerConflict,
				"%s links peer %s@%s, but its consumer resolved %s@%s (%s)", m.Key(), peer.Key, linked.Version, peer.Key, want, pkgDir)
		}
	}
	return nil
}
