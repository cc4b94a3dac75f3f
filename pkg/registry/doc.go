// Package registry talks to an npm-compatible package registry.
//
// Two endpoints are used:
//
//   - metadata: GET {registry}/{name} returns every published version and the
//     dist-tags of a package ([Client.Metadata])
//   - archive: GET {registry}/{name}/-/{basename}-{version}.tgz returns the
//     package tarball ([Client.Download])
//
// Metadata responses are cached through a [cache.Cache] and every request is
// retried with exponential backoff on network errors and 5xx responses.
//
//	c := registry.NewClient("https://registry.npmjs.org", fileCache, 10*time.Minute)
//	meta, err := c.Metadata(ctx, "react", false)
//
// [cache.Cache]: github.com/matzehuels/mpnp/pkg/cache.Cache
package registry
