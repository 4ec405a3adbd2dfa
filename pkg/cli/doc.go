// Package cli implements the jsonguard command line tool.
//
// # Commands
//
// validate checks instance documents against one schema. Instances are
// validated concurrently and reported in argument order:
//
//	jsonguard validate -schema order.json order1.json order2.yaml
//	cat order.json | jsonguard validate -schema order.schema.json -
//	jsonguard validate -schema order.json -output json -concurrency 8 data/*.json
//
// check meta-validates and compiles schema documents:
//
//	jsonguard check -dialect draft-07 schemas/*.json
//
// Both accept -dialect, -unknown-dialect, -assert-format, -output and -v.
//
// # Exit Status
//
// Commands return ErrInvalid (wrapped) when a document was rejected; the
// binary maps it to exit status 1 and any other error to 2.
package cli
