// Package config defines the format-agnostic measurement-plan model for the
// application, along with the Loader interface for reading it from various
// sources.
//
// The `config.Plan` is the single source of truth for the `app` package.
// Concrete loaders, such as the HCL one, translate their file format into it
// so that nothing downstream touches parser types.
package config
