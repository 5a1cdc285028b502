// Package config defines the format-agnostic scenario model: the problem
// domain, the named layouts over it and the transfers to run between them,
// along with the Loader interface that concrete formats implement.
//
// The `config.Model` is the single source of truth for the `app` package.
// The HCL implementation lives in the hcl_adapter package.
package config
