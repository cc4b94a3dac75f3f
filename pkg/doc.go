// Package pkg holds the libraries behind the mpnp package manager.
//
// # Overview
//
// mpnp installs npm packages without hoisting. Every name@version is
// extracted once into a shared store, and each package's node_modules holds
// symlinks to exactly the dependencies it declared. A lockfile pins every
// resolved range so repeat installs make no registry queries.
//
// # Layout
//
//  1. [install] - the tree builder, peer validation, shims and lifecycle hooks
//  2. [resolve] - range to version resolution through the lockfile and registry
//  3. [store] - download cache, install cache and the extract-once guarantee
//  4. [registry] - npm registry client; [registry/registrytest] fakes it
//  5. [manifest], [lockfile], [config] - the files mpnp reads and writes
//  6. [cache], [errors], [observability], [buildinfo] - shared plumbing
//
// # Data flow
//
//	package.json ─▶ resolve ─▶ store ─▶ install ─▶ node_modules + .bin
//	                  │          │
//	               lockfile   registry
//
// [install]: github.com/matzehuels/mpnp/pkg/install
// [resolve]: github.com/matzehuels/mpnp/pkg/resolve
// [store]: github.com/matzehuels/mpnp/pkg/store
// [registry]: github.com/matzehuels/mpnp/pkg/registry
// [registry/registrytest]: github.com/matzehuels/mpnp/pkg/registry/registrytest
// [manifest]: github.com/matzehuels/mpnp/pkg/manifest
// [lockfile]: github.com/matzehuels/mpnp/pkg/lockfile
// [config]: github.com/matzehuels/mpnp/pkg/config
// [cache]: github.com/matzehuels/mpnp/pkg/cache
// [errors]: github.com/matzehuels/mpnp/pkg/errors
// [observability]: github.com/matzehuels/mpnp/pkg/observability
// [buildinfo]: github.com/matzehuels/mpnp/pkg/buildinfo
package pkg
