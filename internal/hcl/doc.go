// Package hcl provides the concrete HCL implementation of the plan loading
// interface defined in the `config` package. It is responsible for file
// discovery, HCL parsing, schema-to-model translation and the evaluation of
// parameter attributes into native Go values.
package hcl
