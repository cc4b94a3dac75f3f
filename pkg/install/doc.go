// Package install builds per-project dependency trees out of the shared
// content store.
//
// An [Installer] run installs the project directory and then every
// workspace package found under its workspace directory. For each package
// instance the builder:
//
//  1. reads the manifest and resets the instance's node_modules directory
//     (rebuilt from scratch for local instances, created if absent for
//     store instances)
//  2. resolves every declared dependency (devDependencies too for local
//     instances) and inherits peer dependencies from the consumer
//  3. links each dependency: workspace packages directly, registry packages
//     through the content store, descending into packages extracted during
//     this run and validating the peers of packages that were already there
//  4. writes executable shims for each linked package
//  5. runs the instance's install, postinstall and prepare hooks
//
// The traversal is an explicit stack of frames; the stack is the dependency
// path, so a name@version already on it is skipped and the path length is
// bounded by [Options.MaxDepth]. Resolution and archive downloads for one
// instance's dependencies run concurrently; linking and descent follow
// manifest order.
//
// The lockfile is saved only after every instance installed successfully.
//
//	inst := install.New(registryClient, contentStore, install.Options{})
//	report, err := inst.Run(ctx, "./my-app")
package install
